package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"tgbridge/internal/config"
	"tgbridge/internal/shared/logging"
	"tgbridge/internal/telegram/client"
	"tgbridge/internal/telegram/login"
	"tgbridge/internal/telegram/sessionstore"
)

var errNoTerminal = errors.New("bootstrap needs an interactive terminal; run it with a TTY attached (docker run -it ...)")

func newBootstrapCommand(opts *rootOptions) *cobra.Command {
	var phone, sessionPath string
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Log in interactively and save the Telegram session",
		Long: `Log in with a phone number, login code and optional 2FA password, then write
the session credential to the session file used by "tgbridge serve".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var overrides config.Overrides
			if cmd.Flags().Changed("session-path") {
				overrides.SessionPath = &sessionPath
			}
			cfg, _, err := opts.load(overrides)
			if err != nil {
				return err
			}
			if !isTTY() {
				return &ExitCodeError{Code: exitFailure, Err: errNoTerminal}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			logger := logging.New(cmd.ErrOrStderr(), logging.ParseLevel(cfg.LogLevel)).WithComponent("Bootstrap")
			result, err := login.Run(ctx, login.Options{
				Client:   client.Config{AppID: cfg.APIID, AppHash: cfg.APIHash, Logger: logger},
				Store:    sessionstore.NewFileStore(cfg.SessionPath, logger),
				Prompter: login.TerminalPrompter{Stdin: os.Stdin, Stdout: os.Stdout},
				Phone:    phone,
				Logger:   logger,
			})
			if err != nil {
				return &ExitCodeError{Code: exitFailure, Err: err}
			}

			fmt.Fprintln(cmd.OutOrStdout(), green("Session saved to "+result.Path))
			fmt.Fprintln(cmd.OutOrStdout(), yellow("Logged in as "+result.Account+". Keep this file secret."))
			return nil
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "phone number in international format; prompted when empty")
	cmd.Flags().StringVar(&sessionPath, "session-path", config.DefaultSessionPath, "session file ("+config.KeySessionPath+")")
	return cmd
}
