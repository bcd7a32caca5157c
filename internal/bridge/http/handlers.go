package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const healthFailedFallback = "Telegram health check failed."

type handlers struct {
	health       HealthChecker
	sender       MessageSender
	maxBodyBytes int64
}

type okResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type telegramHealthResponse struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Cached    bool   `json:"cached"`
	LatencyMs int64  `json:"latency_ms"`
}

func (h *handlers) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, okResponse{OK: true})
}

func (h *handlers) handleTelegramHealth(c *gin.Context) {
	result := h.health.CheckHealth(c.Request.Context())
	if result.OK {
		c.JSON(http.StatusOK, telegramHealthResponse{
			OK:        true,
			Cached:    result.Cached,
			LatencyMs: result.LatencyMs,
		})
		return
	}

	message := result.Error
	if message == "" {
		message = healthFailedFallback
	}
	c.JSON(http.StatusServiceUnavailable, telegramHealthResponse{
		OK:        false,
		Error:     message,
		Cached:    result.Cached,
		LatencyMs: result.LatencyMs,
	})
}

func (h *handlers) handleSend(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse{OK: false, Error: "Request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse{OK: false, Error: "Failed to read request body"})
		return
	}

	req, verr := parseSendRequest(body)
	if verr != nil {
		c.JSON(http.StatusBadRequest, errorResponse{OK: false, Error: verr.Message})
		return
	}

	// Authorization and session failures carry operator remediation text;
	// delivery failures are already reduced to a generic message.
	if err := h.sender.Send(c.Request.Context(), req.Chat, req.Message); err != nil {
		requestLogger(c).Warn("send to %s failed: %v", req.Chat, err)
		c.JSON(http.StatusInternalServerError, errorResponse{OK: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, okResponse{OK: true})
}
