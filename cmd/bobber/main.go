// Command bobber checks out source repositories, inspects
// their history and drives the pull request and commit
// status APIs of GitHub, GitLab and Bitbucket Server.
//
// Every command prints its result as JSON or YAML on
// stdout; logs go to stderr.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/byte4ever/bobber/config"
	"github.com/byte4ever/bobber/scm/git"
	"github.com/byte4ever/bobber/scm/report"
)

func main() {
	if err := newRootCmd().ExecuteContext(
		context.Background(),
	); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// app carries the state shared by every command once
// the root pre-run has loaded the configuration.
type app struct {
	configPath string
	output     string
	logLevel   string

	cfg    config.Config
	format report.Format
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "bobber",
		Short: "Source checkout and code hosting helper",
		Long: `bobber clones and updates source repositories, optionally
merging a pull request into a local test branch, reads commit
history, and talks to the hosting API of the repository.

Configuration is read from --config, or bobber.yaml in the
working directory, and BOBBER_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(
		&a.configPath, "config", "",
		"configuration file (default ./bobber.yaml)",
	)
	pf.StringVarP(
		&a.output, "output", "o", string(report.FormatJSON),
		"output format: json or yaml",
	)
	pf.StringVar(
		&a.logLevel, "log-level", "",
		"log level: debug, info, warn or error",
	)

	cmd.AddCommand(
		newCheckoutCmd(a),
		newLogCmd(a),
		newHeadCmd(a),
		newRemoteHeadCmd(a),
		newBranchesCmd(a),
		newValidateCmd(a),
		newElementsCmd(a),
		newPRsCmd(a),
		newPRCmd(a),
		newMergeCmd(a),
		newStatusCmd(a),
		newRateLimitCmd(a),
	)

	return cmd
}

// setup loads and validates the configuration, picks the
// output format and installs the logger.
func (a *app) setup(cmd *cobra.Command) error {
	const errCtx = "initializing"

	cfg, used, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	format, err := report.ParseFormat(a.output)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	lvl, err := cfg.Level()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(
		cmd.ErrOrStderr(),
		&slog.HandlerOptions{Level: lvl},
	)))

	slog.Debug(
		"configuration loaded",
		"file", used,
		"provider", cfg.Provider,
	)

	a.cfg = cfg
	a.format = format

	return nil
}

func (a *app) write(cmd *cobra.Command, v any) error {
	return report.Write(cmd.OutOrStdout(), a.format, v)
}

// host builds the hosting client for the configured
// provider.
func (a *app) host() (git.Host, error) {
	return newHost(a.cfg)
}
