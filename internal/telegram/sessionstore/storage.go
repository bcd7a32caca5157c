package sessionstore

import (
	"context"
	"sync"

	tdsession "github.com/gotd/td/session"
)

// Storage holds a credential blob in memory and satisfies the client
// library's session storage. The server seeds it from FileStore and never
// writes back; bootstrap reads the blob out after login and saves it.
type Storage struct {
	mu   sync.Mutex
	data []byte
}

var _ tdsession.Storage = (*Storage)(nil)

// NewStorage seeds storage with credential. An empty credential behaves as
// "no session".
func NewStorage(credential string) *Storage {
	s := &Storage{}
	if credential != "" {
		s.data = []byte(credential)
	}
	return s
}

// LoadSession implements session.Storage.
func (s *Storage) LoadSession(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == 0 {
		return nil, tdsession.ErrNotFound
	}
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out, nil
}

// StoreSession implements session.Storage.
func (s *Storage) StoreSession(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data[:0:0], data...)
	return nil
}

// Credential returns the current blob as text.
func (s *Storage) Credential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.data)
}
