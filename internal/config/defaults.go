package config

const (
	defaultConfigPath            = "~/.config/holocap/config.toml"
	defaultDataDir               = "~/.local/share/holocap/recordings"
	defaultLogDir                = "~/.local/share/holocap/logs"
	defaultAPIBind               = "127.0.0.1:7488"
	defaultDeviceName            = "hololens2"
	defaultDeviceHost            = "192.168.0.117"
	defaultDeviceInterface       = "usb0"
	defaultDeviceMode            = DeviceModeTCP
	defaultConnectTimeout        = 5
	defaultControlPort           = 3809
	defaultQueueCapacity         = 0
	defaultPopTimeoutSeconds     = 3
	defaultPVWidth               = 640
	defaultPVHeight              = 360
	defaultPVFramerate           = 30
	defaultDepthWidth            = 512
	defaultDepthHeight           = 512
	defaultJPEGQuality           = 90
	defaultBaseStream            = "pv"
	defaultToleranceTicks uint64 = 100_000_000
	defaultGapFactor             = 1.5
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	defaultQueuePollInterval     = 5
	defaultErrorRetryInterval    = 10
	defaultHeartbeatInterval     = 15
	defaultHeartbeatTimeout      = 120
)

// Device transport modes.
const (
	DeviceModeTCP       = "tcp"
	DeviceModeSimulated = "simulated"
)

// Ticks per second of the device clock (100ns units).
const TicksPerSecond = 10_000_000

// StreamNames lists every stream the capture pipeline knows about, in
// canonical order.
var StreamNames = []string{"pv", "depth_ahat", "spatial", "imu_accel", "imu_gyro", "imu_mag", "microphone"}

func defaultPorts() map[string]int {
	return map[string]int{
		"depth_ahat": 3804,
		"imu_accel":  3806,
		"imu_gyro":   3807,
		"imu_mag":    3808,
		"pv":         3810,
		"microphone": 3811,
		"spatial":    3812,
	}
}

func defaultPeriods() map[string]uint64 {
	return map[string]uint64{
		"pv":         TicksPerSecond / defaultPVFramerate,
		"depth_ahat": TicksPerSecond / 45,
		"spatial":    TicksPerSecond / 60,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Device: Device{
			Name:           defaultDeviceName,
			Host:           defaultDeviceHost,
			Interface:      defaultDeviceInterface,
			Mode:           defaultDeviceMode,
			ConnectTimeout: defaultConnectTimeout,
			ControlPort:    defaultControlPort,
		},
		Capture: Capture{
			Streams:           []string{"pv", "depth_ahat", "spatial", "imu_accel", "imu_gyro", "imu_mag"},
			Ports:             defaultPorts(),
			QueueCapacity:     defaultQueueCapacity,
			PopTimeoutSeconds: defaultPopTimeoutSeconds,
			PVWidth:           defaultPVWidth,
			PVHeight:          defaultPVHeight,
			PVFramerate:       defaultPVFramerate,
			PVStride:          defaultPVWidth,
			DepthWidth:        defaultDepthWidth,
			DepthHeight:       defaultDepthHeight,
			JPEGQuality:       defaultJPEGQuality,
		},
		Sync: Sync{
			BaseStream:     defaultBaseStream,
			Streams:        []string{"depth_ahat", "spatial", "imu_accel", "imu_gyro", "imu_mag"},
			ToleranceTicks: defaultToleranceTicks,
			GapFactor:      defaultGapFactor,
			Periods:        defaultPeriods(),
			AutoSync:       true,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Metrics: Metrics{
			Enabled: true,
		},
	}
}
