package main

import (
	"github.com/spf13/cobra"

	"tgbridge/internal/bridge/bootstrap"
	"tgbridge/internal/config"
)

type serveFlags struct {
	host        string
	port        int
	sessionPath string
	logLevel    string
}

// overrides returns only the flags the operator actually set.
func (f *serveFlags) overrides(cmd *cobra.Command) config.Overrides {
	var o config.Overrides
	if cmd.Flags().Changed("host") {
		o.HTTPHost = &f.host
	}
	if cmd.Flags().Changed("port") {
		o.HTTPPort = &f.port
	}
	if cmd.Flags().Changed("session-path") {
		o.SessionPath = &f.sessionPath
	}
	if cmd.Flags().Changed("log-level") {
		o.LogLevel = &f.logLevel
	}
	return o
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, meta, err := opts.load(flags.overrides(cmd))
			if err != nil {
				return err
			}
			bootstrap.ServiceVersion = appVersion()
			if err := bootstrap.RunServer(cmd.Context(), cfg, meta); err != nil {
				return &ExitCodeError{Code: exitFailure, Err: err}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.host, "host", config.DefaultHTTPHost, "interface to bind ("+config.KeyHTTPHost+")")
	cmd.Flags().IntVarP(&flags.port, "port", "p", config.DefaultHTTPPort, "port to bind ("+config.KeyHTTPPort+")")
	cmd.Flags().StringVar(&flags.sessionPath, "session-path", config.DefaultSessionPath, "session file ("+config.KeySessionPath+")")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", config.DefaultLogLevel, "debug, info, warn or error ("+config.KeyLogLevel+")")
	return cmd
}
