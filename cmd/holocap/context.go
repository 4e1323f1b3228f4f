package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"holocap/internal/config"
	"holocap/internal/ipc"
	"holocap/internal/queue"
)

// commandContext carries the persistent flags and a lazily loaded config
// shared by every subcommand.
type commandContext struct {
	socketFlag *string
	configFlag *string

	load   sync.Once
	cfg    *config.Config
	cfgErr error
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	return &commandContext{socketFlag: socketFlag, configFlag: configFlag}
}

func flagValue(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.load.Do(func() {
		cfg, _, _, err := config.Load(c.explicitConfigPath())
		if err == nil {
			err = cfg.EnsureDirectories()
		}
		if err != nil {
			c.cfgErr = err
			return
		}
		c.cfg = cfg
	})
	return c.cfg, c.cfgErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// explicitConfigPath is forwarded to holocapd on launch so both processes
// read the same file.
func (c *commandContext) explicitConfigPath() string {
	return flagValue(c.configFlag)
}

func (c *commandContext) socketPath() string {
	if s := flagValue(c.socketFlag); s != "" {
		return s
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.SocketPath()
	}
	return fallbackSocketPath()
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return explainDial(err, socket)
	}
	defer client.Close()
	return fn(client)
}

// withStore prefers the daemon and falls back to opening the catalogue
// directly. Exactly one of the callback arguments is non-nil.
func (c *commandContext) withStore(fn func(*ipc.Client, *queue.Store) error) error {
	if client, err := ipc.Dial(c.socketPath()); err == nil {
		defer client.Close()
		return fn(client, nil)
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open recording catalogue: %w", err)
	}
	defer store.Close()
	return fn(nil, store)
}

func explainDial(err error, socket string) error {
	var hint string
	switch {
	case errors.Is(err, syscall.ENOENT), errors.Is(err, fs.ErrNotExist):
		hint = "no socket at " + socket + "; run `holocap start` first"
	case errors.Is(err, syscall.ECONNREFUSED):
		hint = socket + " refused the connection; is holocapd still running?"
	default:
		return fmt.Errorf("connect to holocapd: %w", err)
	}
	return errors.New("connect to holocapd: " + hint)
}

func fallbackSocketPath() string {
	if cfg, _, _, err := config.Load(""); err == nil {
		return cfg.SocketPath()
	}
	if dir, err := config.ExpandPath("~/.local/share/holocap/logs"); err == nil {
		return filepath.Join(dir, "holocap.sock")
	}
	return filepath.Join(os.TempDir(), "holocap.sock")
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		if cmd.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
