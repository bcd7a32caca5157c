package app

import (
	"context"
	"errors"
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
	healthFlightKey      = "probe"
	DefaultHealthTTL     = 15 * time.Second
	DefaultHealthTimeout = 5 * time.Second
)

// SessionProvider is the slice of ConnectionManager the health coordinator
// and the dispatcher depend on.
type SessionProvider interface {
	EnsureAuthorized(ctx context.Context) error
	Messenger() ports.Messenger
}

// HealthOption customizes a HealthCoordinator.
type HealthOption func(*HealthCoordinator)

// WithHealthTTL sets the freshness window for the cached record.
func WithHealthTTL(ttl time.Duration) HealthOption {
	return func(h *HealthCoordinator) {
		if ttl > 0 {
			h.ttl = ttl
		}
	}
}

// WithHealthTimeout bounds each fresh probe.
func WithHealthTimeout(timeout time.Duration) HealthOption {
	return func(h *HealthCoordinator) {
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

// WithHealthClock injects the wall clock used for freshness and latency.
func WithHealthClock(now func() time.Time) HealthOption {
	return func(h *HealthCoordinator) {
		if now != nil {
			h.now = now
		}
	}
}

// WithHealthLogger sets the operator logger.
func WithHealthLogger(logger logging.Logger) HealthOption {
	return func(h *HealthCoordinator) {
		h.logger = logging.OrNop(logger)
	}
}

// WithHealthRecorder sets the metrics recorder.
func WithHealthRecorder(recorder Recorder) HealthOption {
	return func(h *HealthCoordinator) {
		h.recorder = orNopRecorder(recorder)
	}
}

// HealthCoordinator answers liveness checks from a single cached record and
// refreshes it with a bounded probe once the record is older than the TTL.
// Concurrent refreshes share one probe.
type HealthCoordinator struct {
	session  SessionProvider
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time
	logger   logging.Logger
	recorder Recorder
	tracer   trace.Tracer
	flight   singleflight.Group

	mu     sync.Mutex
	record *ports.HealthRecord
}

// NewHealthCoordinator constructs a coordinator with no cached record.
func NewHealthCoordinator(session SessionProvider, opts ...HealthOption) (*HealthCoordinator, error) {
	if session == nil {
		return nil, fmt.Errorf("health coordinator requires a session provider")
	}
	h := &HealthCoordinator{
		session:  session,
		ttl:      DefaultHealthTTL,
		timeout:  DefaultHealthTimeout,
		now:      time.Now,
		logger:   logging.Nop(),
		recorder: nopRecorder{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// CheckHealth returns the cached record while it is fresh, otherwise performs
// one bounded probe. Probe failures are reported in the result, never returned.
func (h *HealthCoordinator) CheckHealth(ctx context.Context) ports.HealthResult {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := h.tracer.Start(ctx, SpanHealthCheck)
	defer span.End()

	result, ok := h.cached()
	if !ok {
		ch := h.flight.DoChan(healthFlightKey, func() (any, error) {
			if cached, fresh := h.cached(); fresh {
				return cached, nil
			}
			return h.probe(), nil
		})
		select {
		case res := <-ch:
			result = res.Val.(ports.HealthResult)
		case <-ctx.Done():
			return ports.HealthResult{OK: false, Error: ctx.Err().Error()}
		}
	}

	span.SetAttributes(attribute.Bool(AttrCached, result.Cached))
	if !result.OK {
		span.SetStatus(codes.Error, result.Error)
	}
	h.recorder.ObserveHealthCheck(result)
	return result
}

// Record returns a copy of the cached record, if any.
func (h *HealthCoordinator) Record() (ports.HealthRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.record == nil {
		return ports.HealthRecord{}, false
	}
	return *h.record, true
}

func (h *HealthCoordinator) cached() (ports.HealthResult, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.record == nil || h.now().Sub(h.record.ObservedAt) >= h.ttl {
		return ports.HealthResult{}, false
	}
	return ports.HealthResult{
		OK:        h.record.OK,
		Error:     h.record.Error,
		LatencyMs: h.record.Latency.Milliseconds(),
		Cached:    true,
	}, true
}

func (h *HealthCoordinator) probe() ports.HealthResult {
	started := h.now()
	err := h.boundedProbe()
	finished := h.now()

	record := ports.HealthRecord{
		ObservedAt: finished,
		OK:         err == nil,
		Latency:    finished.Sub(started),
	}
	if err != nil {
		record.Error = err.Error()
		h.logger.Warn("Telegram health probe failed after %s: %v", record.Latency, err)
	}

	h.mu.Lock()
	h.record = &record
	h.mu.Unlock()

	return ports.HealthResult{
		OK:        record.OK,
		Error:     record.Error,
		LatencyMs: record.Latency.Milliseconds(),
		Cached:    false,
	}
}

// boundedProbe gives up after the timeout even if the probe ignores its
// context; the abandoned probe's context is cancelled on return.
func (h *HealthCoordinator) boundedProbe() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- h.runProbe(ctx)
	}()

	timeoutErr := &HealthProbeTimeoutError{Timeout: h.timeout}
	select {
	case err := <-done:
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return timeoutErr
		}
		return err
	case <-ctx.Done():
		return timeoutErr
	}
}

func (h *HealthCoordinator) runProbe(ctx context.Context) error {
	if err := h.session.EnsureAuthorized(ctx); err != nil {
		return err
	}
	messenger := h.session.Messenger()
	if messenger == nil {
		return errClientNotInitialized
	}
	if !messenger.Connected() {
		if err := messenger.Connect(ctx); err != nil {
			return err
		}
	}
	_, err := messenger.Self(ctx)
	return err
}
