package device

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"holocap/internal/stream"
)

// Control talks to the companion service on the device that toggles its
// physical recording state (camera subsystem, capture indicator) and reports
// the device clock offset.
//
// The protocol is one request line per connection, answered by a single line:
// "OK[ <value>]" or "ERR <message>".
type Control struct {
	addr    string
	timeout time.Duration
}

// NewControl returns a control client for host:port.
func NewControl(host string, port int, timeout time.Duration) *Control {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Control{addr: net.JoinHostPort(host, strconv.Itoa(port)), timeout: timeout}
}

// Start asks the device to begin recording for the given streams.
func (c *Control) Start(ctx context.Context, kinds []stream.Kind) error {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	_, err := c.command(ctx, "START "+strings.Join(names, ","))
	return err
}

// Stop asks the device to end its recording state.
func (c *Control) Stop(ctx context.Context) error {
	_, err := c.command(ctx, "STOP")
	return err
}

// UTCOffset returns the device clock to UTC offset in 100ns ticks.
func (c *Control) UTCOffset(ctx context.Context) (int64, error) {
	reply, err := c.command(ctx, "UTC_OFFSET")
	if err != nil {
		return 0, err
	}
	offset, err := strconv.ParseInt(reply, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("control %s: bad utc offset %q", c.addr, reply)
	}
	return offset, nil
}

func (c *Control) command(ctx context.Context, line string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return "", fmt.Errorf("control %s: %w", c.addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		return "", fmt.Errorf("control %s: send %q: %w", c.addr, line, err)
	}
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("control %s: read reply: %w", c.addr, err)
	}
	reply = strings.TrimSpace(reply)
	switch {
	case reply == "OK":
		return "", nil
	case strings.HasPrefix(reply, "OK "):
		return strings.TrimSpace(reply[3:]), nil
	case strings.HasPrefix(reply, "ERR"):
		return "", fmt.Errorf("control %s: %s rejected: %s", c.addr, line, strings.TrimSpace(strings.TrimPrefix(reply, "ERR")))
	default:
		return "", fmt.Errorf("control %s: unexpected reply %q", c.addr, reply)
	}
}

// Static is a companion that does nothing and reports a fixed clock offset.
// It stands in when no control channel is configured.
type Static struct {
	Offset int64
}

func (Static) Start(context.Context, []stream.Kind) error { return nil }

func (Static) Stop(context.Context) error { return nil }

func (s Static) UTCOffset(context.Context) (int64, error) { return s.Offset, nil }
