// Package cli wires the magpies commands.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	mcfg "github.com/sile/magpies/internal/config"
	"github.com/sile/magpies/internal/logging"
	"github.com/sile/magpies/internal/version"
)

type app struct {
	configPath string
	logLevel   string
	cfg        *mcfg.Config
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(os.Stdin, os.Stdout, os.Stderr)
}

func NewRootCommandWithIO(in io.Reader, out, errOut io.Writer) *cobra.Command {
	return newRootCommand(in, out, errOut)
}

func newRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{stdin: in, stdout: out, stderr: errOut}

	cmd := &cobra.Command{
		Use:   "magpies",
		Short: "Collect and browse JSON metric snapshots over time",
		Long: "magpies polls commands that print JSON metrics, records one snapshot per line, " +
			"and browses the recorded time series interval by interval in the terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Version,
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.magpies/config.yaml)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logs.level (debug, info, warn, error)")

	cmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Core:"},
		&cobra.Group{ID: "tools", Title: "Tools:"},
	)
	cmd.AddCommand(
		newViewCmd(a),
		newPollCmd(a),
		newTargetCmd(),
		newFlattenCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	cmd.SetHelpCommandGroupID("tools")
	cmd.SetCompletionCommandGroupID("tools")
	cmd.SetVersionTemplate(fmt.Sprintf("magpies {{.Version}} (commit %s, built %s)\n", version.Commit, version.BuildDate))

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "version" || (cmd.Parent() != nil && cmd.Parent().Name() == "config") {
			return nil
		}
		cfg, err := a.loadConfig()
		if err != nil {
			return fmt.Errorf("invalid %s: %w", a.configFileSafe(), err)
		}
		a.cfg = cfg
		return nil
	}

	cmd.SetErrPrefix("magpies: ")
	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	return cmd
}

func (a *app) configFile() (string, error) {
	if p := strings.TrimSpace(a.configPath); p != "" {
		return p, nil
	}
	return mcfg.FilePath()
}

func (a *app) configFileSafe() string {
	p, err := a.configFile()
	if err != nil {
		return "config"
	}
	return p
}

func (a *app) loadConfig() (*mcfg.Config, error) {
	path, err := a.configFile()
	if err != nil {
		return nil, err
	}
	return mcfg.LoadFile(path)
}

func (a *app) config() *mcfg.Config {
	if a.cfg == nil {
		a.cfg = mcfg.Default()
	}
	return a.cfg
}

// newLogger logs to the configured file. When toStderr is set and no file
// is configured, it logs to stderr instead of the default file.
func (a *app) newLogger(toStderr bool) (*zap.Logger, error) {
	cfg := a.config()
	lc := logging.Config{
		Path:       cfg.LogPath(),
		Level:      cfg.Logs.Level,
		MaxSizeMB:  cfg.Logs.MaxSizeMB,
		MaxBackups: cfg.Logs.MaxBackups,
		MaxAgeDays: cfg.Logs.MaxAgeDays,
		Compress:   cfg.Logs.Compress,
	}
	if strings.TrimSpace(a.logLevel) != "" {
		lc.Level = strings.TrimSpace(a.logLevel)
	}
	var fallback io.Writer
	if toStderr && strings.TrimSpace(cfg.Logs.Path) == "" {
		lc.Path = ""
		fallback = a.stderr
	}
	return logging.New(lc, fallback)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show magpies build information",
		GroupID: "tools",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "magpies %s\n", version.String())
			return nil
		},
	}
}
