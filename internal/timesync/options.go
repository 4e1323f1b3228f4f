package timesync

import (
	"fmt"

	"holocap/internal/config"
	"holocap/internal/stream"
)

// Options controls one engine instance.
type Options struct {
	// BaseStream is the master timeline; defaults to video.
	BaseStream stream.Kind
	// Streams lists the kinds aligned onto the base. The base itself is
	// ignored when listed.
	Streams []stream.Kind
	// Tolerance is the maximum accepted match distance in ticks.
	Tolerance uint64
	// GapFactor scales the nominal period when flagging gaps.
	GapFactor float64
	// Periods holds nominal sample periods; missing kinds use EstimatePeriod.
	Periods map[stream.Kind]uint64
	// Parallel aligns the non-base streams concurrently.
	Parallel bool
	// Progress, when set, is called as each stream's outputs are written.
	// With Parallel it is called from several goroutines.
	Progress func(kind stream.Kind, percent float64)
}

// OptionsFromConfig converts the [sync] config section.
func OptionsFromConfig(cfg config.Sync) (Options, error) {
	opts := Options{
		Tolerance: cfg.ToleranceTicks,
		GapFactor: cfg.GapFactor,
		Parallel:  cfg.ParallelStreams,
		Periods:   make(map[stream.Kind]uint64, len(cfg.Periods)),
	}
	if cfg.BaseStream != "" {
		base, err := stream.ParseKind(cfg.BaseStream)
		if err != nil {
			return Options{}, fmt.Errorf("sync base_stream: %w", err)
		}
		opts.BaseStream = base
	}
	kinds, err := stream.ParseKinds(cfg.Streams)
	if err != nil {
		return Options{}, fmt.Errorf("sync streams: %w", err)
	}
	opts.Streams = kinds
	for name, period := range cfg.Periods {
		kind, err := stream.ParseKind(name)
		if err != nil {
			return Options{}, fmt.Errorf("sync periods: %w", err)
		}
		opts.Periods[kind] = period
	}
	return opts.withDefaults(), nil
}

func (o Options) withDefaults() Options {
	if o.BaseStream == "" {
		o.BaseStream = stream.KindVideo
	}
	if o.Tolerance == 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.GapFactor <= 0 {
		o.GapFactor = DefaultGapFactor
	}
	targets := make([]stream.Kind, 0, len(o.Streams))
	seen := map[stream.Kind]struct{}{o.BaseStream: {}}
	for _, kind := range o.Streams {
		if _, dup := seen[kind]; dup {
			continue
		}
		seen[kind] = struct{}{}
		targets = append(targets, kind)
	}
	o.Streams = targets
	return o
}
