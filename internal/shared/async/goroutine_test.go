package async

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *recordingLogger) Error(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

func TestGoRecoversPanic(t *testing.T) {
	logger := &recordingLogger{}
	done := make(chan struct{})

	Go(logger, "probe", func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for goroutine")
	}
	require.Eventually(t, func() bool {
		for _, msg := range logger.snapshot() {
			if strings.Contains(msg, "goroutine panic [probe]: boom") {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestRunDeliversResult(t *testing.T) {
	sentinel := errors.New("listener closed")
	assert.ErrorIs(t, <-Run(nil, "listen", func() error { return sentinel }), sentinel)
	assert.NoError(t, <-Run(nil, "listen", func() error { return nil }))
}

func TestRunConvertsPanic(t *testing.T) {
	logger := &recordingLogger{}
	err := <-Run(logger, "listen", func() error { panic("bad state") })

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "listen", panicErr.Name)
	assert.Equal(t, "goroutine listen panicked: bad state", err.Error())
	assert.Len(t, logger.snapshot(), 1)
}

func TestRecoverHandlesNilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		defer Recover(nil, "nil-logger")
		panic("boom")
	})
}
