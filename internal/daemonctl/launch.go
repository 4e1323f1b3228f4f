package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"holocap/internal/ipc"
)

// DaemonBinary is the daemon executable name resolved by ResolveExecutable.
const DaemonBinary = "holocapd"

const pollInterval = 200 * time.Millisecond

// LaunchOptions are passed through to holocapd's flags.
type LaunchOptions struct {
	ConfigPath string
	Diagnostic bool
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
	StartStateRequested      StartState = "start_requested"
)

// StartResult reports what EnsureStarted had to do.
type StartResult struct {
	State    StartState
	Launched bool
	Message  string
}

// ResolveExecutable prefers a holocapd next to the running binary, then PATH.
func ResolveExecutable() (string, error) {
	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), DaemonBinary)
		if info, err := os.Stat(sibling); err == nil && info.Mode().IsRegular() {
			return sibling, nil
		}
	}
	path, err := exec.LookPath(DaemonBinary)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", DaemonBinary, err)
	}
	return path, nil
}

// Launch starts holocapd in its own session so it outlives the CLI.
func Launch(executablePath string, opts LaunchOptions) error {
	executablePath = strings.TrimSpace(executablePath)
	if executablePath == "" {
		return errors.New("launch daemon: executable path is empty")
	}
	var args []string
	if opts.ConfigPath != "" {
		args = append(args, "--config", opts.ConfigPath)
	}
	if opts.Diagnostic {
		args = append(args, "--diagnostic")
	}
	cmd := exec.Command(executablePath, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return cmd.Process.Release()
}

// EnsureStarted connects to a running daemon or launches one, then makes
// sure its workers are running.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	var result StartResult
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if err := Launch(executablePath, opts); err != nil {
			return result, err
		}
		result.Launched = true
		err = poll(waitTimeout, func() (bool, error) {
			c, dialErr := ipc.Dial(socketPath)
			client = c
			return dialErr == nil, dialErr
		})
		if err != nil {
			return result, fmt.Errorf("daemon failed to start: %w", err)
		}
	}
	defer client.Close()

	if status, err := client.Status(); err == nil && status != nil && status.Running {
		result.State = StartStateAlreadyRunning
		if result.Launched {
			result.State = StartStateStarted
		}
		return result, nil
	}
	resp, err := client.Start()
	if err != nil {
		return result, err
	}
	result.Message = strings.TrimSpace(resp.Message)
	switch {
	case resp.Started:
		result.State = StartStateStarted
	default:
		result.State = StartStateRequested
		if result.Message == "" {
			result.Message = "Start request sent"
		}
	}
	return result, nil
}

// poll calls check every pollInterval until it reports done or timeout
// passes. On timeout the last check error, if any, is returned.
func poll(timeout time.Duration, check func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	var last error
	for {
		done, err := check()
		if done {
			return nil
		}
		last = err
		if time.Now().Add(pollInterval).After(deadline) {
			break
		}
		time.Sleep(pollInterval)
	}
	if last == nil {
		last = errors.New("timed out")
	}
	return last
}
