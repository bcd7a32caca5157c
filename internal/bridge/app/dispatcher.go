package app

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tgbridge/internal/bridge/ports"
	"tgbridge/internal/shared/logging"
)

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the operator logger.
func WithDispatcherLogger(logger logging.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logging.OrNop(logger)
	}
}

// WithDispatcherRecorder sets the metrics recorder.
func WithDispatcherRecorder(recorder Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.recorder = orNopRecorder(recorder)
	}
}

// Dispatcher forwards validated send requests through the authorized session.
type Dispatcher struct {
	session  SessionProvider
	logger   logging.Logger
	recorder Recorder
	tracer   trace.Tracer
}

// NewDispatcher constructs a dispatcher bound to the shared session.
func NewDispatcher(session SessionProvider, opts ...DispatcherOption) (*Dispatcher, error) {
	if session == nil {
		return nil, fmt.Errorf("dispatcher requires a session provider")
	}
	d := &Dispatcher{
		session:  session,
		logger:   logging.Nop(),
		recorder: nopRecorder{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Send normalizes chat and delivers text. Authorization failures are returned
// unchanged; delivery failures are logged and returned as *SendError.
func (d *Dispatcher) Send(ctx context.Context, chat ports.ChatRef, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := d.tracer.Start(ctx, SpanSend)
	defer span.End()

	target := NormalizeChatRef(chat)
	kind := "text"
	if target.IsNumeric() {
		kind = "numeric"
	}
	span.SetAttributes(attribute.String(AttrChat, kind))

	if err := d.session.EnsureAuthorized(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	started := time.Now()
	err := d.deliver(ctx, target, text)
	d.recorder.ObserveSend(err, time.Since(started))
	if err != nil {
		d.logger.Error("Failed to send message to %s: %v", target, err)
		span.SetStatus(codes.Error, err.Error())
		return &SendError{Err: err}
	}
	d.logger.Debug("Message sent to %s (%d chars)", target, len([]rune(text)))
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, target ports.ChatRef, text string) error {
	messenger := d.session.Messenger()
	if messenger == nil {
		return errClientNotInitialized
	}
	return messenger.Send(ctx, target, text)
}
