package daemon

import (
	"holocap/internal/api"
)

// Payload converts the status into its API representation.
func (s Status) Payload() api.DaemonStatus {
	return api.DaemonStatus{
		Running:       s.Running,
		PID:           s.PID,
		DeviceMode:    s.DeviceMode,
		DeviceAddress: s.DeviceAddress,
		CatalogPath:   s.CatalogPath,
		LockFilePath:  s.LockFilePath,
		SocketPath:    s.SocketPath,
		APIBind:       s.APIBind,
		Session:       api.FromSnapshot(s.Session),
		Link: api.LinkStatus{
			Interface:  s.Link.Interface,
			Monitoring: s.Link.Monitoring,
			Present:    s.Link.Present,
			Up:         s.Link.Up,
			State:      s.Link.State,
			Detail:     linkDetail(s.Link),
			Changed:    api.FormatTime(s.Link.Changed),
		},
		Workflow: api.FromStatusSummary(s.Workflow),
	}
}

func linkDetail(link LinkStatus) string {
	if link.Interface == "" {
		return ""
	}
	return link.Detail()
}
