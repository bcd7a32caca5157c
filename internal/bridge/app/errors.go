package app

import (
	"errors"
	"fmt"
	"time"
)

// SessionMissingError reports that no session credential was available when
// the session was first needed.
type SessionMissingError struct {
	Path string
	Err  error
}

func (e *SessionMissingError) Error() string {
	return fmt.Sprintf("Telegram session not found at %s. Run bootstrap to create it.", e.Path)
}

func (e *SessionMissingError) Unwrap() error {
	return e.Err
}

// AuthError reports that the connect attempt failed or the credential is not
// authorized. Once recorded it is returned to every caller.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Telegram authorization failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// HealthProbeTimeoutError reports that a fresh health probe exceeded its bound.
type HealthProbeTimeoutError struct {
	Timeout time.Duration
}

func (e *HealthProbeTimeoutError) Error() string {
	return "Telegram health check timed out."
}

// SendError reports that the underlying send failed. The cause is kept for
// operators and never rendered in the message.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return "Failed to send message"
}

func (e *SendError) Unwrap() error {
	return e.Err
}

const notAuthorizedMessage = "Telegram session is not authorized. Run bootstrap to create a valid session."

var errClientNotInitialized = errors.New("Telegram client not initialized.")

func newNotAuthorizedError(cause error) *AuthError {
	return &AuthError{Message: notAuthorizedMessage, Err: cause}
}

func newConnectError(cause error) *AuthError {
	return &AuthError{Message: fmt.Sprintf("Telegram connect failed: %v", cause), Err: cause}
}

// IsSessionMissing reports whether err is (or wraps) a SessionMissingError.
func IsSessionMissing(err error) bool {
	var target *SessionMissingError
	return errors.As(err, &target)
}

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsSendError reports whether err is (or wraps) a SendError.
func IsSendError(err error) bool {
	var target *SendError
	return errors.As(err, &target)
}
