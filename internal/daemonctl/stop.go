package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"holocap/internal/config"
	"holocap/internal/daemonrun"
	"holocap/internal/ipc"
)

// ErrDaemonNotRunning means nothing is listening on the IPC socket.
var ErrDaemonNotRunning = errors.New("daemon not running")

// StopResult reports how far StopAndTerminate got.
type StopResult struct {
	StopAcknowledged bool
	Signaled         bool
	PID              int
}

// StopAndTerminate stops the daemon's workers over IPC, sends SIGTERM to its
// process and waits up to gracePeriod for the socket to go away.
func StopAndTerminate(socketPath string, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	var result StopResult
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if unreachable(err) {
			return result, ErrDaemonNotRunning
		}
		return result, err
	}
	if status, err := client.Status(); err == nil && status != nil {
		result.PID = status.PID
	}
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return result, err
	}
	result.StopAcknowledged = resp.Stopped

	if result.PID == 0 && cfg != nil {
		result.PID, _ = ReadPID(cfg.Paths.LogDir)
	}
	if result.PID > 0 && result.PID != os.Getpid() {
		result.Signaled = syscall.Kill(result.PID, syscall.SIGTERM) == nil
	}

	err = poll(gracePeriod, func() (bool, error) {
		c, dialErr := ipc.Dial(socketPath)
		if dialErr != nil {
			return unreachable(dialErr), dialErr
		}
		defer c.Close()
		status, statusErr := c.Status()
		if statusErr != nil {
			return false, statusErr
		}
		if status.Running {
			return false, errors.New("daemon still running")
		}
		return true, nil
	})
	if err != nil {
		return result, fmt.Errorf("daemon did not stop: %w", err)
	}
	return result, nil
}

// ReadPID returns the pid holocapd wrote into logDir, or 0 without a file.
func ReadPID(logDir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(logDir, daemonrun.PIDFileName))
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	text := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(text)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file contents %q", text)
	}
	return pid, nil
}

func unreachable(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED)
}
