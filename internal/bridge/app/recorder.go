package app

import (
	"time"

	"tgbridge/internal/bridge/ports"
)

// Recorder receives lifecycle observations from the bridge services.
type Recorder interface {
	SetConnectionState(state ports.ConnectionState)
	ObserveConnectAttempt(err error, elapsed time.Duration)
	ObserveHealthCheck(result ports.HealthResult)
	ObserveSend(err error, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) SetConnectionState(ports.ConnectionState)   {}
func (nopRecorder) ObserveConnectAttempt(error, time.Duration) {}
func (nopRecorder) ObserveHealthCheck(ports.HealthResult)      {}
func (nopRecorder) ObserveSend(error, time.Duration)           {}

func orNopRecorder(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}

// Span names and attribute keys used by the bridge services.
const (
	SpanEnsureAuthorized = "tgbridge.connection.ensure_authorized"
	SpanConnect          = "tgbridge.connection.connect"
	SpanHealthCheck      = "tgbridge.health.check"
	SpanSend             = "tgbridge.dispatch.send"

	AttrState  = "tgbridge.connection.state"
	AttrCached = "tgbridge.health.cached"
	AttrChat   = "tgbridge.chat.kind"

	tracerName = "tgbridge/bridge"
)
