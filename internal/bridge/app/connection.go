package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"tgbridge/internal/bridge/ports"
	"tgbridge/internal/shared/logging"
)

const (
	connectFlightKey      = "connect"
	defaultConnectTimeout = 30 * time.Second
	closeOnFailureTimeout = 5 * time.Second
)

// ConnectionOption customizes a ConnectionManager.
type ConnectionOption func(*ConnectionManager)

// WithConnectTimeout bounds the single connect+verify attempt. Zero disables the bound.
func WithConnectTimeout(timeout time.Duration) ConnectionOption {
	return func(m *ConnectionManager) {
		if timeout >= 0 {
			m.connectTimeout = timeout
		}
	}
}

// WithConnectionLogger sets the operator logger.
func WithConnectionLogger(logger logging.Logger) ConnectionOption {
	return func(m *ConnectionManager) {
		m.logger = logging.OrNop(logger)
	}
}

// WithConnectionRecorder sets the metrics recorder.
func WithConnectionRecorder(recorder Recorder) ConnectionOption {
	return func(m *ConnectionManager) {
		m.recorder = orNopRecorder(recorder)
	}
}

// ConnectionManager owns the single messaging session shared by every caller.
//
// The first caller to observe StateUninitialized builds the session handle and
// moves to StateConnecting before releasing the lock; every later caller
// attaches to the same in-flight attempt. Success is terminal (StateAuthorized).
// Failure is sticky (StateFailed): the recorded error is returned to every
// caller until the process restarts.
type ConnectionManager struct {
	credentials    ports.CredentialSource
	factory        ports.MessengerFactory
	logger         logging.Logger
	recorder       Recorder
	tracer         trace.Tracer
	connectTimeout time.Duration

	// lifecycle scopes the connect attempt; callers waiting on it never
	// cancel it.
	lifecycle context.Context
	stop      context.CancelFunc
	flight    singleflight.Group

	mu        sync.Mutex
	state     ports.ConnectionState
	messenger ports.Messenger
	err       error
	attempts  int
}

// NewConnectionManager constructs a manager in StateUninitialized. No network
// activity happens until EnsureAuthorized is first called.
func NewConnectionManager(credentials ports.CredentialSource, factory ports.MessengerFactory, opts ...ConnectionOption) (*ConnectionManager, error) {
	if credentials == nil {
		return nil, fmt.Errorf("connection manager requires a credential source")
	}
	if factory == nil {
		return nil, fmt.Errorf("connection manager requires a messenger factory")
	}
	lifecycle, stop := context.WithCancel(context.Background())
	m := &ConnectionManager{
		credentials:    credentials,
		factory:        factory,
		logger:         logging.Nop(),
		recorder:       nopRecorder{},
		tracer:         otel.Tracer(tracerName),
		connectTimeout: defaultConnectTimeout,
		lifecycle:      lifecycle,
		stop:           stop,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.recorder.SetConnectionState(ports.StateUninitialized)
	return m, nil
}

// EnsureAuthorized drives the shared session to StateAuthorized.
//
// ctx bounds only how long this caller waits. Abandoning the wait does not
// cancel the shared attempt.
func (m *ConnectionManager) EnsureAuthorized(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := m.tracer.Start(ctx, SpanEnsureAuthorized)
	defer span.End()

	resolved, err := m.begin()
	span.SetAttributes(attribute.String(AttrState, m.State().String()))
	if resolved {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}

	ch := m.flight.DoChan(connectFlightKey, func() (any, error) {
		return nil, m.connect()
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			span.SetStatus(codes.Error, res.Err.Error())
		}
		return res.Err
	case <-ctx.Done():
		span.SetStatus(codes.Error, ctx.Err().Error())
		return ctx.Err()
	}
}

// begin handles every state that can be answered without waiting. It returns
// resolved=false only when the caller must attach to the connect attempt.
func (m *ConnectionManager) begin() (resolved bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case ports.StateAuthorized:
		return true, nil
	case ports.StateFailed:
		return true, m.err
	case ports.StateConnecting:
		return false, nil
	}

	credential, loadErr := m.credentials.Load()
	if loadErr != nil || credential == "" {
		missing := &SessionMissingError{Path: m.credentials.Path(), Err: loadErr}
		m.failLocked(missing)
		m.logger.Error("%v", missing)
		return true, missing
	}

	messenger, buildErr := m.factory(credential)
	if buildErr != nil {
		authErr := &AuthError{Message: fmt.Sprintf("Telegram client init failed: %v", buildErr), Err: buildErr}
		m.failLocked(authErr)
		m.logger.Error("%v", authErr)
		return true, authErr
	}

	m.messenger = messenger
	m.setStateLocked(ports.StateConnecting)
	return false, nil
}

// connect runs at most once per manager: a call that arrives after the
// attempt resolved returns the recorded outcome without network activity.
func (m *ConnectionManager) connect() error {
	m.mu.Lock()
	if m.state != ports.StateConnecting {
		err := m.err
		m.mu.Unlock()
		return err
	}
	messenger := m.messenger
	m.attempts++
	m.mu.Unlock()

	ctx, span := m.tracer.Start(m.lifecycle, SpanConnect)
	defer span.End()
	if m.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.connectTimeout)
		defer cancel()
	}

	m.logger.Info("Connecting Telegram session...")
	started := time.Now()
	err := m.connectAndVerify(ctx, messenger)
	m.recorder.ObserveConnectAttempt(err, time.Since(started))

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.logger.Error("Telegram session unavailable until restart: %v", err)
		closeCtx, cancel := context.WithTimeout(context.Background(), closeOnFailureTimeout)
		if closeErr := messenger.Close(closeCtx); closeErr != nil {
			m.logger.Warn("Failed to close Telegram session after connect failure: %v", closeErr)
		}
		cancel()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.failLocked(err)
		return err
	}
	m.setStateLocked(ports.StateAuthorized)
	return nil
}

func (m *ConnectionManager) connectAndVerify(ctx context.Context, messenger ports.Messenger) error {
	if err := messenger.Connect(ctx); err != nil {
		return newConnectError(err)
	}
	// A stored credential does not guarantee a still-valid remote session.
	name, err := messenger.Self(ctx)
	if err != nil {
		return newNotAuthorizedError(err)
	}
	m.logger.Info("Telegram session authorized as %s", name)
	return nil
}

func (m *ConnectionManager) failLocked(err error) {
	m.err = err
	m.setStateLocked(ports.StateFailed)
}

func (m *ConnectionManager) setStateLocked(state ports.ConnectionState) {
	m.state = state
	m.recorder.SetConnectionState(state)
}

// State returns the current lifecycle state.
func (m *ConnectionManager) State() ports.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the sticky failure, if any.
func (m *ConnectionManager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Attempts returns how many connect attempts reached the network.
func (m *ConnectionManager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Messenger returns the session handle once authorized, otherwise nil.
func (m *ConnectionManager) Messenger() ports.Messenger {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != ports.StateAuthorized {
		return nil
	}
	return m.messenger
}

// Close cancels any in-flight attempt and releases the session handle.
func (m *ConnectionManager) Close(ctx context.Context) error {
	m.stop()
	m.mu.Lock()
	messenger := m.messenger
	m.mu.Unlock()
	if messenger == nil {
		return nil
	}
	return messenger.Close(ctx)
}
