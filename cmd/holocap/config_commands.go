package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"holocap/internal/config"
)

var skipConfig = map[string]string{"skipConfigLoad": "true"}

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect or scaffold holocap.toml"}
	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigValidateCommand(ctx),
		newConfigShowCommand(ctx),
	)
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var dest string
	var force bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample config",
		Annotations: skipConfig,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := initTarget(dest)
			if err != nil {
				return err
			}
			if err := refuseExisting(target, force); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create %s: %w", filepath.Dir(target), err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n"+
				"Edit device.host or export HOLOCAP_DEVICE_HOST before the first recording.\n", target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dest, "path", "p", "", "Where to write the file (default: user config dir)")
	cmd.Flags().BoolVar(&force, "overwrite", false, "Replace an existing file")
	return cmd
}

func initTarget(flag string) (string, error) {
	if flag = strings.TrimSpace(flag); flag != "" {
		return config.ExpandPath(flag)
	}
	path, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("default config path: %w", err)
	}
	return path, nil
}

func refuseExisting(path string, force bool) error {
	if force {
		return nil
	}
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return fmt.Errorf("%s already exists; pass --overwrite to replace it", path)
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("stat %s: %w", path, err)
	}
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the config and report what holocap will use",
		Annotations: skipConfig,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, found, err := config.Load(ctx.explicitConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("prepare directories: %w", err)
			}
			printConfigSummary(cmd.OutOrStdout(), cfg, path, found)
			return nil
		},
	}
}

func printConfigSummary(out io.Writer, cfg *config.Config, path string, found bool) {
	source := path
	if !found {
		source += " (not found, built-in defaults)"
	}
	rows := [][]string{
		{"Config", source},
		{"Device", fmt.Sprintf("%s %s", cfg.Device.Mode, cfg.Device.Host)},
		{"Streams", strings.Join(cfg.Capture.Streams, ", ")},
		{"Base stream", cfg.Sync.BaseStream},
		{"Data dir", cfg.Paths.DataDir},
		{"Catalogue", cfg.CatalogPath()},
	}
	fmt.Fprint(out, renderTable([]string{"Setting", "Value"}, rows, nil))
	fmt.Fprintln(out, "Configuration valid")
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective config as TOML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			enc := toml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndentTables(true)
			return enc.Encode(cfg)
		},
	}
}
