// Package ports defines the boundaries between the bridge core and the
// messaging-platform client, the credential store, and the HTTP gateway.
package ports

import (
	"context"
	"strconv"
)

// Messenger is the single authenticated session handle owned by the
// connection manager. Implementations wrap a messaging-platform client.
type Messenger interface {
	// Connect opens the transport. It does not prove the credential is
	// still authorized.
	Connect(ctx context.Context) error

	// Connected reports whether the transport is currently open.
	Connected() bool

	// Self performs an identity round trip and returns a display name for
	// the account.
	Self(ctx context.Context) (string, error)

	// Send delivers text to the given chat.
	Send(ctx context.Context, chat ChatRef, text string) error

	// Close releases the transport. Idempotent.
	Close(ctx context.Context) error
}

// MessengerFactory constructs a session handle from a credential blob.
type MessengerFactory func(credential string) (Messenger, error)

// CredentialSource provides the persisted session credential.
type CredentialSource interface {
	// Load returns the trimmed credential, or "" when none is available.
	Load() (string, error)

	// Path is the location operators must populate via bootstrap.
	Path() string
}

// ChatRef identifies a message recipient: either a numeric chat id or a
// textual reference such as a public handle ("@channel").
type ChatRef struct {
	numeric bool
	id      int64
	text    string
}

// NumericChat builds a numeric chat reference.
func NumericChat(id int64) ChatRef {
	return ChatRef{numeric: true, id: id}
}

// TextChat builds a textual chat reference.
func TextChat(text string) ChatRef {
	return ChatRef{text: text}
}

// IsNumeric reports whether the reference carries a numeric id.
func (r ChatRef) IsNumeric() bool { return r.numeric }

// ID returns the numeric id; zero for textual references.
func (r ChatRef) ID() int64 { return r.id }

// Text returns the textual reference; empty for numeric references.
func (r ChatRef) Text() string { return r.text }

func (r ChatRef) String() string {
	if r.numeric {
		return strconv.FormatInt(r.id, 10)
	}
	return r.text
}
