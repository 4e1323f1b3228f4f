package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// sysClassNet is where the kernel exposes network interface state.
var sysClassNet = "/sys/class/net"

// LinkProbe reports the current state of the device's network interface.
type LinkProbe struct {
	Interface string
	Present   bool
	Up        bool
	State     string
}

// ProbeLink reads the interface operstate from sysfs. The daemon uses it to
// seed link state before the first netlink event arrives.
func ProbeLink(iface string) LinkProbe {
	iface = strings.TrimSpace(iface)
	probe := LinkProbe{Interface: iface}
	if iface == "" {
		return probe
	}
	data, err := os.ReadFile(filepath.Join(sysClassNet, iface, "operstate"))
	if err != nil {
		return probe
	}
	probe.Present = true
	probe.State = strings.TrimSpace(string(data))
	probe.Up = probe.State == "up"
	return probe
}

// LinkDetail renders a display-friendly summary for status UIs.
func (p LinkProbe) LinkDetail() string {
	switch {
	case p.Interface == "":
		return "No interface configured"
	case !p.Present:
		return fmt.Sprintf("%s not present", p.Interface)
	case p.Up:
		return fmt.Sprintf("%s up", p.Interface)
	default:
		state := p.State
		if state == "" {
			state = "unknown"
		}
		return fmt.Sprintf("%s %s", p.Interface, state)
	}
}
