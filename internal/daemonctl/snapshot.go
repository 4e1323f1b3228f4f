package daemonctl

import (
	"context"
	"errors"
	"time"

	"holocap/internal/api"
	"holocap/internal/config"
	"holocap/internal/ipc"
	"holocap/internal/preflight"
	"holocap/internal/queue"
)

// Snapshot is the CLI view of daemon status, with offline fallbacks.
type Snapshot struct {
	Reachable bool              `json:"reachable"`
	Status    api.DaemonStatus  `json:"status"`
	Checks    []api.CheckResult `json:"checks,omitempty"`
}

// BuildStatusSnapshot asks the daemon for status. When the daemon is not
// reachable it reads catalogue counts directly and runs local checks.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snap := &Snapshot{}
	if client, err := ipc.Dial(socketPath); err == nil {
		if status, err := client.Status(); err == nil && status != nil {
			snap.Reachable = true
			snap.Status = *status
		}
		if checks, err := client.Preflight(); err == nil && checks != nil {
			snap.Checks = checks.Checks
		}
		_ = client.Close()
	}
	if !snap.Reachable {
		snap.Status = offlineStatus(ctx, socketPath, cfg)
	}
	if len(snap.Checks) == 0 {
		snap.Checks = api.FromPreflight(preflight.RunStorageChecks(cfg))
	}
	return snap, nil
}

func offlineStatus(ctx context.Context, socketPath string, cfg *config.Config) api.DaemonStatus {
	var status api.DaemonStatus
	status.DeviceMode = cfg.Device.Mode
	status.DeviceAddress = cfg.Device.Host
	status.CatalogPath = cfg.CatalogPath()
	status.SocketPath = socketPath
	status.Session.State = "offline"
	status.Workflow.AutoSync = cfg.Sync.AutoSync
	status.Workflow.QueueStats = catalogueCounts(ctx, cfg)

	if iface := cfg.Device.Interface; iface != "" {
		probe := preflight.ProbeLink(iface)
		status.Link = api.LinkStatus{
			Interface: iface,
			Present:   probe.Present,
			Up:        probe.Up,
			State:     probe.State,
			Detail:    probe.LinkDetail(),
		}
	}
	return status
}

// catalogueCounts reads per-status counts straight from the database, or
// nil when it cannot be opened.
func catalogueCounts(ctx context.Context, cfg *config.Config) map[string]int {
	store, err := queue.Open(cfg)
	if err != nil {
		return nil
	}
	defer store.Close()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	stats, err := store.Stats(ctx)
	if err != nil {
		return nil
	}
	counts := make(map[string]int, len(stats))
	for status, n := range stats {
		counts[string(status)] = n
	}
	return counts
}
