package app

import (
	"context"
	"sync"
	"time"

	"tgbridge/internal/bridge/ports"
)

type sentMessage struct {
	chat ports.ChatRef
	text string
}

// fakeMessenger counts calls and can hold Connect or Self open until a gate
// channel is closed.
type fakeMessenger struct {
	mu           sync.Mutex
	connectGate  chan struct{}
	selfGate     chan struct{}
	ignoreCtx    bool
	connectErr   error
	selfErr      error
	sendErr      error
	connected    bool
	connectCalls int
	selfCalls    int
	closeCalls   int
	sent         []sentMessage
}

func (f *fakeMessenger) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connectCalls++
	gate := f.connectGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeMessenger) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeMessenger) Self(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.selfCalls++
	gate := f.selfGate
	ignore := f.ignoreCtx
	f.mu.Unlock()

	if gate != nil {
		if ignore {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selfErr != nil {
		return "", f.selfErr
	}
	return "Bridge Bot", nil
}

func (f *fakeMessenger) Send(_ context.Context, chat ports.ChatRef, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{chat: chat, text: text})
	return nil
}

func (f *fakeMessenger) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	f.connected = false
	return nil
}

func (f *fakeMessenger) counts() (connect, self int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls, f.selfCalls
}

func (f *fakeMessenger) setSelfGate(gate chan struct{}, ignoreCtx bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selfGate = gate
	f.ignoreCtx = ignoreCtx
}

type fakeCredentials struct {
	mu    sync.Mutex
	value string
	err   error
	path  string
	loads int
}

func (c *fakeCredentials) Load() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	return c.value, c.err
}

func (c *fakeCredentials) Path() string { return c.path }

func (c *fakeCredentials) set(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
}

// countingFactory hands out the same fake messenger and counts constructions.
type countingFactory struct {
	mu        sync.Mutex
	messenger *fakeMessenger
	err       error
	builds    int
}

func (f *countingFactory) build(string) (ports.Messenger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds++
	if f.err != nil {
		return nil, f.err
	}
	return f.messenger, nil
}

func (f *countingFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.builds
}

// stubSession is a SessionProvider with a fixed outcome.
type stubSession struct {
	mu        sync.Mutex
	err       error
	messenger ports.Messenger
	calls     int
}

func (s *stubSession) EnsureAuthorized(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *stubSession) Messenger() ports.Messenger {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil
	}
	return s.messenger
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
