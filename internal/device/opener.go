package device

import (
	"context"
	"fmt"

	"holocap/internal/config"
	"holocap/internal/services"
	"holocap/internal/stream"
)

// Companion controls the device-side recording state.
type Companion interface {
	Start(ctx context.Context, kinds []stream.Kind) error
	Stop(ctx context.Context) error
	UTCOffset(ctx context.Context) (int64, error)
}

// NewOpener returns the stream.Opener for the configured device mode.
func NewOpener(cfg *config.Config) stream.Opener {
	if cfg.Device.Mode == config.DeviceModeSimulated {
		format := SimFormat{
			PVWidth:     cfg.Capture.PVWidth,
			PVHeight:    cfg.Capture.PVHeight,
			PVStride:    cfg.Capture.PVStride,
			PVFramerate: cfg.Capture.PVFramerate,
			DepthWidth:  cfg.Capture.DepthWidth,
			DepthHeight: cfg.Capture.DepthHeight,
		}
		return func(kind stream.Kind) (stream.Source, error) {
			return NewSimSource(kind, format), nil
		}
	}
	host := cfg.Device.Host
	timeout := cfg.ConnectTimeout()
	return func(kind stream.Kind) (stream.Source, error) {
		port, ok := cfg.PortFor(string(kind))
		if !ok {
			return nil, services.Wrap(services.ErrUnavailable, "device", "resolve port", fmt.Sprintf("no port configured for %s", kind), nil)
		}
		return NewTCPSource(kind, host, port, timeout), nil
	}
}

// NewCompanion returns the control client for the device, or a Static
// companion when the control channel is disabled or the device is simulated.
func NewCompanion(cfg *config.Config) Companion {
	if cfg.Device.Mode == config.DeviceModeSimulated || cfg.Device.ControlPort <= 0 {
		return Static{Offset: cfg.Device.UTCOffset}
	}
	return NewControl(cfg.Device.Host, cfg.Device.ControlPort, cfg.ConnectTimeout())
}
