package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgbridge/internal/bridge/app"
	"tgbridge/internal/bridge/ports"
	"tgbridge/internal/observability"
)

type stubHealth struct {
	result ports.HealthResult
	calls  int
}

func (s *stubHealth) CheckHealth(context.Context) ports.HealthResult {
	s.calls++
	return s.result
}

type sendCall struct {
	chat ports.ChatRef
	text string
}

type stubSender struct {
	mu    sync.Mutex
	err   error
	calls []sendCall
}

func (s *stubSender) Send(_ context.Context, chat ports.ChatRef, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sendCall{chat: chat, text: text})
	return s.err
}

func newTestRouter(t *testing.T, health HealthChecker, sender MessageSender, cfg RouterConfig) *gin.Engine {
	t.Helper()
	cfg.GinMode = gin.TestMode
	return NewRouter(RouterDeps{
		Health:  health,
		Sender:  sender,
		Metrics: observability.NewMetricsWithRegistry(prometheus.NewRegistry()),
		Config:  cfg,
	})
}

func doRequest(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthIsAlwaysOK(t *testing.T) {
	router := newTestRouter(t, &stubHealth{}, &stubSender{}, RouterConfig{})

	rec := doRequest(router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestTelegramHealthOK(t *testing.T) {
	health := &stubHealth{result: ports.HealthResult{OK: true, Cached: true, LatencyMs: 42}}
	router := newTestRouter(t, health, &stubSender{}, RouterConfig{})

	rec := doRequest(router, http.MethodGet, "/health/telegram", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"cached":true,"latency_ms":42}`, rec.Body.String())
}

func TestTelegramHealthFailure(t *testing.T) {
	health := &stubHealth{result: ports.HealthResult{OK: false, Error: "Telegram health check timed out.", LatencyMs: 5001}}
	router := newTestRouter(t, health, &stubSender{}, RouterConfig{})

	rec := doRequest(router, http.MethodGet, "/health/telegram", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"ok":false,"error":"Telegram health check timed out.","cached":false,"latency_ms":5001}`, rec.Body.String())
}

func TestTelegramHealthFailureFallbackMessage(t *testing.T) {
	router := newTestRouter(t, &stubHealth{result: ports.HealthResult{OK: false}}, &stubSender{}, RouterConfig{})

	rec := doRequest(router, http.MethodGet, "/health/telegram", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, healthFailedFallback, decode(t, rec)["error"])
}

func TestSendValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{name: "empty body", body: "", status: 400, message: msgFieldsRequired},
		{name: "empty object", body: `{}`, status: 400, message: msgFieldsRequired},
		{name: "missing message", body: `{"chat_id":"@team"}`, status: 400, message: msgFieldsRequired},
		{name: "missing chat", body: `{"message":"hi"}`, status: 400, message: msgFieldsRequired},
		{name: "array body", body: `[1,2]`, status: 400, message: msgFieldsRequired},
		{name: "malformed", body: `{"chat_id":`, status: 400, message: msgInvalidJSON},
		{name: "null chat", body: `{"chat_id":null,"message":"hi"}`, status: 400, message: msgChatIDType},
		{name: "bool chat", body: `{"chat_id":true,"message":"hi"}`, status: 400, message: msgChatIDType},
		{name: "object chat", body: `{"chat_id":{},"message":"hi"}`, status: 400, message: msgChatIDType},
		{name: "fractional chat", body: `{"chat_id":1.5,"message":"hi"}`, status: 400, message: msgChatIDInteger},
		{name: "blank chat", body: `{"chat_id":"  ","message":"hi"}`, status: 400, message: msgChatIDEmpty},
		{name: "empty message", body: `{"chat_id":"@team","message":""}`, status: 400, message: msgMessageNonEmpty},
		{name: "blank message", body: `{"chat_id":"@team","message":" \n\t"}`, status: 400, message: msgMessageNonEmpty},
		{name: "numeric message", body: `{"chat_id":"@team","message":5}`, status: 400, message: msgMessageNonEmpty},
		{name: "null message", body: `{"chat_id":"@team","message":null}`, status: 400, message: msgMessageNonEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &stubSender{}
			router := newTestRouter(t, &stubHealth{}, sender, RouterConfig{})

			rec := doRequest(router, http.MethodPost, "/send", tt.body, nil)
			require.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, tt.message, body["error"])
			assert.Empty(t, sender.calls, "invalid input must not reach the session")
		})
	}
}

func TestSendForwardsValidRequest(t *testing.T) {
	sender := &stubSender{}
	router := newTestRouter(t, &stubHealth{}, sender, RouterConfig{})

	rec := doRequest(router, http.MethodPost, "/send", `{"chat_id":"@team","message":"  hi  "}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = doRequest(router, http.MethodPost, "/send", `{"chat_id":-100123456789,"message":"hi"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, sender.calls, 2)
	assert.Equal(t, sendCall{chat: ports.TextChat("@team"), text: "  hi  "}, sender.calls[0])
	assert.Equal(t, sendCall{chat: ports.NumericChat(-100123456789), text: "hi"}, sender.calls[1])
}

func TestSendReportsErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{
			name:    "session missing",
			err:     &app.SessionMissingError{Path: "/data/tg_user.session"},
			message: "Telegram session not found at /data/tg_user.session. Run bootstrap to create it.",
		},
		{
			name:    "auth",
			err:     &app.AuthError{Message: "Telegram session is not authorized. Run bootstrap to create a valid session."},
			message: "Telegram session is not authorized. Run bootstrap to create a valid session.",
		},
		{
			name:    "send",
			err:     &app.SendError{Err: errors.New("PEER_ID_INVALID")},
			message: "Failed to send message",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, &stubHealth{}, &stubSender{err: tt.err}, RouterConfig{})

			rec := doRequest(router, http.MethodPost, "/send", `{"chat_id":"@team","message":"hi"}`, nil)
			require.Equal(t, http.StatusInternalServerError, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, tt.message, body["error"])
			assert.NotContains(t, rec.Body.String(), "PEER_ID_INVALID")
		})
	}
}

func TestSendBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic secret", status: http.StatusUnauthorized},
		{name: "lowercase scheme", header: "bearer secret", status: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "prefix of token", header: "Bearer secre", status: http.StatusUnauthorized},
		{name: "valid", header: "Bearer secret", status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &stubSender{}
			router := newTestRouter(t, &stubHealth{}, sender, RouterConfig{Token: "secret"})

			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			rec := doRequest(router, http.MethodPost, "/send", `{"chat_id":"@team","message":"hi"}`, headers)
			require.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.JSONEq(t, `{"ok":false,"error":"Unauthorized"}`, rec.Body.String())
				assert.Empty(t, sender.calls)
			}
		})
	}
}

func TestSendWithoutTokenSkipsAuth(t *testing.T) {
	router := newTestRouter(t, &stubHealth{}, &stubSender{}, RouterConfig{})
	rec := doRequest(router, http.MethodPost, "/send", `{"chat_id":1,"message":"hi"}`, map[string]string{"Authorization": "Bearer anything"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthRoutesIgnoreToken(t *testing.T) {
	router := newTestRouter(t, &stubHealth{result: ports.HealthResult{OK: true}}, &stubSender{}, RouterConfig{Token: "secret"})
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/health/telegram", "", nil).Code)
}

func TestSendBodyLimit(t *testing.T) {
	sender := &stubSender{}
	router := newTestRouter(t, &stubHealth{}, sender, RouterConfig{MaxBodyBytes: 64})

	big := `{"chat_id":"@team","message":"` + strings.Repeat("x", 200) + `"}`
	rec := doRequest(router, http.MethodPost, "/send", big, nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, sender.calls)
}

func TestSendRateLimit(t *testing.T) {
	sender := &stubSender{}
	router := newTestRouter(t, &stubHealth{}, sender, RouterConfig{
		RateLimit: RateLimitConfig{RequestsPerMinute: 1, Burst: 2},
	})

	body := `{"chat_id":"@team","message":"hi"}`
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/send", body, nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/send", body, nil).Code)
	rec := doRequest(router, http.MethodPost, "/send", body, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Len(t, sender.calls, 2)

	other := doRequest(router, http.MethodPost, "/send", body, map[string]string{"X-Forwarded-For": "203.0.113.9"})
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestRequestIDPropagation(t *testing.T) {
	router := newTestRouter(t, &stubHealth{}, &stubSender{}, RouterConfig{})

	rec := doRequest(router, http.MethodGet, "/health", "", map[string]string{RequestIDHeader: "trace-123"})
	assert.Equal(t, "trace-123", rec.Header().Get(RequestIDHeader))

	first := doRequest(router, http.MethodGet, "/health", "", nil).Header().Get(RequestIDHeader)
	second := doRequest(router, http.MethodGet, "/health", "", nil).Header().Get(RequestIDHeader)
	assert.Len(t, first, 26)
	assert.NotEqual(t, first, second)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	router := newTestRouter(t, &stubHealth{}, &stubSender{}, RouterConfig{})

	rec := doRequest(router, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(router, http.MethodGet, "/send", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubHealth{}, &stubSender{}, RouterConfig{MetricsEnabled: true})
	doRequest(router, http.MethodGet, "/health", "", nil)

	rec := doRequest(router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tgbridge_http_requests_total{method="GET",route="/health",status="200"} 1`)

	disabled := newTestRouter(t, &stubHealth{}, &stubSender{}, RouterConfig{})
	assert.Equal(t, http.StatusNotFound, doRequest(disabled, http.MethodGet, "/metrics", "", nil).Code)
}

func TestCORSAllowedOrigin(t *testing.T) {
	router := newTestRouter(t, &stubHealth{}, &stubSender{}, RouterConfig{CORSOrigins: []string{"https://app.example"}})

	rec := doRequest(router, http.MethodGet, "/health", "", map[string]string{"Origin": "https://app.example"})
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPanicRecovery(t *testing.T) {
	router := newTestRouter(t, panicHealth{}, &stubSender{}, RouterConfig{})

	rec := doRequest(router, http.MethodGet, "/health/telegram", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"ok":false,"error":"Internal server error"}`, rec.Body.String())
}

type panicHealth struct{}

func (panicHealth) CheckHealth(context.Context) ports.HealthResult {
	panic("boom")
}
