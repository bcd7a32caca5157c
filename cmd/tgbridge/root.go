package main

import (
	"os"
	"runtime/debug"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tgbridge/internal/config"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func errorText(msg string) string {
	return red("error: " + msg)
}

// isTTY checks if the current environment has a TTY available
func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

type rootOptions struct {
	configPath string
	env        config.EnvLookup
}

// load resolves the configuration, tagging config errors with exitConfig.
func (o *rootOptions) load(overrides config.Overrides) (config.Config, config.Metadata, error) {
	cfg, meta, err := config.Load(
		config.WithEnv(o.env),
		config.WithConfigPath(o.configPath),
		config.WithOverrides(overrides),
	)
	if err != nil {
		if config.IsConfigError(err) {
			return cfg, meta, &ExitCodeError{Code: exitConfig, Err: err}
		}
		return cfg, meta, &ExitCodeError{Code: exitFailure, Err: err}
	}
	return cfg, meta, nil
}

func newRootCommand(env config.EnvLookup) *cobra.Command {
	opts := &rootOptions{env: env}

	root := &cobra.Command{
		Use:   "tgbridge",
		Short: "HTTP bridge that sends messages through a Telegram user session",
		Long: bold("tgbridge") + ` exposes a small HTTP API (/health, /health/telegram, /send)
backed by one long-lived Telegram user session.

Create the session once with "tgbridge bootstrap", then run "tgbridge serve".`,
		Version:       appVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "optional YAML/JSON/TOML config file")

	root.AddCommand(
		newServeCommand(opts),
		newBootstrapCommand(opts),
		newConfigCommand(opts),
	)
	return root
}

func appVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
