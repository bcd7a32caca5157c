package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tgbridge/internal/bridge/ports"
)

type recordingRecorder struct {
	states   []ports.ConnectionState
	connects []error
	health   []ports.HealthResult
	sends    []error
}

func (r *recordingRecorder) SetConnectionState(state ports.ConnectionState) {
	r.states = append(r.states, state)
}

func (r *recordingRecorder) ObserveConnectAttempt(err error, _ time.Duration) {
	r.connects = append(r.connects, err)
}

func (r *recordingRecorder) ObserveHealthCheck(result ports.HealthResult) {
	r.health = append(r.health, result)
}

func (r *recordingRecorder) ObserveSend(err error, _ time.Duration) {
	r.sends = append(r.sends, err)
}

func TestNewDispatcherRequiresSession(t *testing.T) {
	_, err := NewDispatcher(nil)
	require.Error(t, err)
}

func TestDispatcherSendNormalizesChat(t *testing.T) {
	messenger := &fakeMessenger{connected: true}
	recorder := &recordingRecorder{}
	dispatcher, err := NewDispatcher(&stubSession{messenger: messenger}, WithDispatcherRecorder(recorder))
	require.NoError(t, err)

	require.NoError(t, dispatcher.Send(context.Background(), ports.TextChat(" 123456 "), "hello"))
	require.NoError(t, dispatcher.Send(context.Background(), ports.TextChat("@mychannel"), "hi there"))

	require.Equal(t, []sentMessage{
		{chat: ports.NumericChat(123456), text: "hello"},
		{chat: ports.TextChat("@mychannel"), text: "hi there"},
	}, messenger.sent)
	require.Equal(t, []error{nil, nil}, recorder.sends)
}

func TestDispatcherSendReturnsAuthErrorUnchanged(t *testing.T) {
	authErr := newNotAuthorizedError(errors.New("AUTH_KEY_UNREGISTERED"))
	messenger := &fakeMessenger{}
	recorder := &recordingRecorder{}
	dispatcher, err := NewDispatcher(&stubSession{err: authErr, messenger: messenger}, WithDispatcherRecorder(recorder))
	require.NoError(t, err)

	sendErr := dispatcher.Send(context.Background(), ports.NumericChat(1), "hello")
	require.True(t, sendErr == error(authErr))
	require.False(t, IsSendError(sendErr))
	require.Empty(t, messenger.sent)
	require.Empty(t, recorder.sends)
}

func TestDispatcherSendReturnsSessionMissingUnchanged(t *testing.T) {
	missing := &SessionMissingError{Path: "/data/tg_user.session"}
	dispatcher, err := NewDispatcher(&stubSession{err: missing})
	require.NoError(t, err)

	sendErr := dispatcher.Send(context.Background(), ports.TextChat("@x"), "hello")
	require.True(t, IsSessionMissing(sendErr))
	require.Equal(t, missing.Error(), sendErr.Error())
}

func TestDispatcherSendWrapsDeliveryFailure(t *testing.T) {
	cause := errors.New("CHAT_WRITE_FORBIDDEN")
	messenger := &fakeMessenger{connected: true, sendErr: cause}
	recorder := &recordingRecorder{}
	dispatcher, err := NewDispatcher(&stubSession{messenger: messenger}, WithDispatcherRecorder(recorder))
	require.NoError(t, err)

	sendErr := dispatcher.Send(context.Background(), ports.TextChat("@mychannel"), "hello")
	require.True(t, IsSendError(sendErr))
	require.ErrorIs(t, sendErr, cause)
	require.Equal(t, "Failed to send message", sendErr.Error())
	require.Equal(t, []error{cause}, recorder.sends)
}

func TestDispatcherSendWithoutMessengerIsSendError(t *testing.T) {
	dispatcher, err := NewDispatcher(&stubSession{})
	require.NoError(t, err)

	sendErr := dispatcher.Send(context.Background(), ports.NumericChat(5), "hello")
	require.True(t, IsSendError(sendErr))
	require.ErrorIs(t, sendErr, errClientNotInitialized)
}

func TestRecorderObservesConnectionLifecycle(t *testing.T) {
	recorder := &recordingRecorder{}
	messenger := &fakeMessenger{}
	manager, err := NewConnectionManager(&fakeCredentials{value: "blob"}, (&countingFactory{messenger: messenger}).build,
		WithConnectionRecorder(recorder))
	require.NoError(t, err)

	require.NoError(t, manager.EnsureAuthorized(context.Background()))
	require.Equal(t, []ports.ConnectionState{
		ports.StateUninitialized,
		ports.StateConnecting,
		ports.StateAuthorized,
	}, recorder.states)
	require.Equal(t, []error{nil}, recorder.connects)
}
