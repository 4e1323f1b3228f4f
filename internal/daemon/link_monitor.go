package daemon

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"holocap/internal/config"
	"holocap/internal/logging"
	"holocap/internal/metrics"
	"holocap/internal/preflight"
)

// LinkStatus is the daemon's view of the device network interface.
type LinkStatus struct {
	Interface  string    `json:"interface"`
	Monitoring bool      `json:"monitoring"`
	Present    bool      `json:"present"`
	Up         bool      `json:"up"`
	State      string    `json:"state"`
	Changed    time.Time `json:"changed,omitempty"`
}

// Detail renders a one-line summary for status output.
func (s LinkStatus) Detail() string {
	return preflight.LinkProbe{Interface: s.Interface, Present: s.Present, Up: s.Up, State: s.State}.LinkDetail()
}

// linkMonitor listens for udev netlink events on the device's USB network
// interface and tracks whether the link is up.
type linkMonitor struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	iface   string
	onLoss  func()
	probe   func(string) preflight.LinkProbe

	mu      sync.Mutex
	status  LinkStatus
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// newLinkMonitor returns nil when no device interface is configured.
func newLinkMonitor(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, onLoss func()) *linkMonitor {
	if cfg == nil {
		return nil
	}
	iface := strings.TrimSpace(cfg.Device.Interface)
	if iface == "" {
		return nil
	}
	return &linkMonitor{
		logger:  logging.NewComponentLogger(logger, "link-monitor"),
		metrics: m,
		iface:   iface,
		onLoss:  onLoss,
		probe:   preflight.ProbeLink,
		status:  LinkStatus{Interface: iface},
	}
}

// Start seeds the link state from sysfs and begins listening for uevents.
// A netlink failure is logged and leaves the seeded state in place.
func (m *linkMonitor) Start(ctx context.Context) {
	if m == nil {
		return
	}
	m.refresh("probe")

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; link state will not update",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "device link loss is not detected"),
		)
		return
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true
	m.status.Monitoring = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("link monitor started",
		logging.String(logging.FieldEventType, "link_monitor_started"),
		logging.String("interface", m.iface),
	)
}

// Stop shuts down the netlink listener.
func (m *linkMonitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
	m.status.Monitoring = false
	m.logger.Info("link monitor stopped", logging.String(logging.FieldEventType, "link_monitor_stopped"))
}

// Running reports whether the netlink listener is active.
func (m *linkMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Status returns the last observed link state.
func (m *linkMonitor) Status() LinkStatus {
	if m == nil {
		return LinkStatus{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *linkMonitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	events := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(events, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-events:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "link state may be stale"),
			)
		}
	}
}

// buildMatcher matches SUBSYSTEM=net events for the configured interface.
func (m *linkMonitor) buildMatcher() netlink.Matcher {
	action := "add|remove|change|move|online|offline"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "net",
			"INTERFACE": m.iface,
		},
	})
	return rules
}

func (m *linkMonitor) handleEvent(uevent netlink.UEvent) {
	iface := uevent.Env["INTERFACE"]
	if iface != m.iface {
		m.logger.Debug("ignoring event for other interface",
			logging.String("interface", iface),
			logging.String("configured_interface", m.iface),
		)
		return
	}
	action := string(uevent.Action)
	if uevent.Action == netlink.REMOVE {
		m.apply(preflight.LinkProbe{Interface: m.iface, State: "removed"}, action)
		return
	}
	m.refresh(action)
}

func (m *linkMonitor) refresh(reason string) {
	m.apply(m.probe(m.iface), reason)
}

func (m *linkMonitor) apply(probe preflight.LinkProbe, reason string) {
	m.mu.Lock()
	wasUp := m.status.Up
	changed := wasUp != probe.Up || m.status.State != probe.State || m.status.Changed.IsZero()
	m.status.Present = probe.Present
	m.status.Up = probe.Up
	m.status.State = probe.State
	if changed {
		m.status.Changed = time.Now().UTC()
	}
	m.mu.Unlock()

	m.metrics.SetLinkUp(probe.Up)
	if !changed {
		return
	}
	m.logger.Info("device link state",
		logging.String(logging.FieldEventType, "link_state_changed"),
		logging.String("interface", m.iface),
		logging.String("state", probe.State),
		logging.Bool("up", probe.Up),
		logging.String("reason", reason),
	)
	if wasUp && !probe.Up && m.onLoss != nil {
		m.onLoss()
	}
}
