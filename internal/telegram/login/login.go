// Package login performs the interactive one-time login that produces the
// session credential used by the server.
package login

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"

	"tgbridge/internal/shared/logging"
	"tgbridge/internal/telegram/client"
	"tgbridge/internal/telegram/sessionstore"
)

const (
	phoneLabel    = "Phone number (international format)"
	codeLabel     = "Code (from Telegram)"
	passwordLabel = "2FA password (if enabled, else press Enter)"
)

// ErrSignUpUnsupported is returned when the phone number has no account.
var ErrSignUpUnsupported = errors.New("no Telegram account for this phone number; sign up with an official app first")

// Authenticator answers the login flow's questions through a Prompter.
type Authenticator struct {
	prompter Prompter
	phone    string
}

var _ auth.UserAuthenticator = (*Authenticator)(nil)

// NewAuthenticator returns an authenticator. A non-empty phone skips the phone prompt.
func NewAuthenticator(prompter Prompter, phone string) *Authenticator {
	return &Authenticator{prompter: prompter, phone: strings.TrimSpace(phone)}
}

// Phone implements auth.UserAuthenticator.
func (a *Authenticator) Phone(context.Context) (string, error) {
	if a.phone != "" {
		return a.phone, nil
	}
	return a.prompter.Ask(phoneLabel, false, validatePhone)
}

// Code implements auth.CodeAuthenticator.
func (a *Authenticator) Code(context.Context, *tg.AuthSentCode) (string, error) {
	return a.prompter.Ask(codeLabel, false, validateCode)
}

// Password implements auth.UserAuthenticator.
func (a *Authenticator) Password(context.Context) (string, error) {
	password, err := a.prompter.Ask(passwordLabel, true, nil)
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", auth.ErrPasswordNotProvided
	}
	return password, nil
}

// AcceptTermsOfService implements auth.UserAuthenticator.
func (a *Authenticator) AcceptTermsOfService(context.Context, tg.HelpTermsOfService) error {
	return ErrSignUpUnsupported
}

// SignUp implements auth.UserAuthenticator.
func (a *Authenticator) SignUp(context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, ErrSignUpUnsupported
}

// Options configures a login run.
type Options struct {
	Client   client.Config
	Store    *sessionstore.FileStore
	Prompter Prompter
	Phone    string
	Logger   logging.Logger
}

// Result describes a completed login.
type Result struct {
	Account string
	Path    string
}

// Run logs in interactively and saves the resulting credential to the store.
func Run(ctx context.Context, opts Options) (Result, error) {
	if err := opts.Client.Validate(); err != nil {
		return Result{}, err
	}
	if opts.Store == nil {
		return Result{}, errors.New("login requires a session store")
	}
	if opts.Prompter == nil {
		return Result{}, errors.New("login requires a prompter")
	}
	logger := logging.OrNop(opts.Logger)

	storage := sessionstore.NewStorage("")
	tdClient := telegram.NewClient(opts.Client.AppID, opts.Client.AppHash, telegram.Options{
		SessionStorage: storage,
		NoUpdates:      true,
	})
	flow := auth.NewFlow(NewAuthenticator(opts.Prompter, opts.Phone), auth.SendCodeOptions{})

	var account string
	err := tdClient.Run(ctx, func(ctx context.Context) error {
		if err := tdClient.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		self, err := tdClient.Self(ctx)
		if err != nil {
			return fmt.Errorf("fetch account: %w", err)
		}
		account = client.DisplayName(self)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	credential := storage.Credential()
	if strings.TrimSpace(credential) == "" {
		return Result{}, errors.New("Failed to serialize the Telegram session.")
	}
	if err := opts.Store.Save(credential); err != nil {
		return Result{}, err
	}
	logger.Info("Logged in as %s; session saved to %s", account, opts.Store.Path())
	return Result{Account: account, Path: opts.Store.Path()}, nil
}
