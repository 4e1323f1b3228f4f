package preflight

import (
	"context"
	"time"

	"holocap/internal/config"
)

// MinFreeBytes is the free space a recording run needs on the data volume.
const MinFreeBytes uint64 = 2 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks the daemon needs before it accepts recordings.
// The device is only dialed in tcp mode.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := RunStorageChecks(cfg)
	if cfg.Device.Mode == config.DeviceModeTCP {
		timeout := time.Duration(cfg.Device.ConnectTimeout) * time.Second
		results = append(results, CheckDeviceReachable(ctx, cfg.Device.Host, cfg.Device.ControlPort, timeout))
	}
	return results
}

// RunStorageChecks covers the directories every recording and sync run
// writes into.
func RunStorageChecks(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFreeSpace("Data volume", cfg.Paths.DataDir, MinFreeBytes),
	}
}

// Failed returns only the failing results.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
