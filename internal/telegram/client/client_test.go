package client

import (
	"context"
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgbridge/internal/bridge/ports"
)

func testConfig() Config {
	return Config{AppID: 12345, AppHash: "0123456789abcdef"}
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{AppHash: "hash"}, "blob")
	require.Error(t, err)

	_, err = New(Config{AppID: 1}, "blob")
	require.Error(t, err)

	_, err = New(testConfig(), "  ")
	require.Error(t, err)

	c, err := New(testConfig(), "blob")
	require.NoError(t, err)
	assert.Equal(t, defaultPeerCacheSize, c.cfg.PeerCacheSize)
	assert.Equal(t, defaultPeerCacheTTL, c.cfg.PeerCacheTTL)
	assert.Equal(t, "blob", c.storage.Credential())
}

func TestFactoryBuildsMessenger(t *testing.T) {
	factory := NewFactory(testConfig())

	messenger, err := factory("blob")
	require.NoError(t, err)
	require.IsType(t, &Client{}, messenger)

	_, err = factory("")
	require.Error(t, err)
}

func TestDisconnectedClientRejectsCalls(t *testing.T) {
	c, err := New(testConfig(), "blob")
	require.NoError(t, err)

	assert.False(t, c.Connected())

	_, err = c.Self(context.Background())
	require.ErrorIs(t, err, errNotConnected)

	err = c.Send(context.Background(), ports.NumericChat(1), "hello")
	require.ErrorIs(t, err, errNotConnected)

	require.NoError(t, c.Close(context.Background()))
}

func TestPeerCacheKey(t *testing.T) {
	assert.Equal(t, "id:-1001", PeerCacheKey(ports.NumericChat(-1001)))
	assert.Equal(t, "text:mychannel", PeerCacheKey(ports.TextChat("@MyChannel")))
	assert.Equal(t, "text:mychannel", PeerCacheKey(ports.TextChat("mychannel")))
	assert.NotEqual(t, PeerCacheKey(ports.NumericChat(42)), PeerCacheKey(ports.TextChat("@42")))
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		user *tg.User
		want string
	}{
		{name: "nil", user: nil, want: "unknown"},
		{name: "full", user: &tg.User{FirstName: "Ada", LastName: "Lovelace", Username: "ada"}, want: "Ada Lovelace (@ada)"},
		{name: "first only", user: &tg.User{FirstName: "Ada"}, want: "Ada"},
		{name: "username only", user: &tg.User{Username: "ada"}, want: "@ada"},
		{name: "id fallback", user: &tg.User{ID: 77}, want: "id 77"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.user))
		})
	}
}

func TestResolveUsesCache(t *testing.T) {
	c, err := New(testConfig(), "blob")
	require.NoError(t, err)

	peer := &tg.InputPeerChannel{ChannelID: 10, AccessHash: 20}
	c.peers.Add(PeerCacheKey(ports.TextChat("@news")), peer)

	resolved, err := c.resolve(context.Background(), ports.TextChat("@News"))
	require.NoError(t, err)
	assert.Same(t, peer, resolved.(*tg.InputPeerChannel))

	_, err = c.resolve(context.Background(), ports.TextChat("@other"))
	require.ErrorIs(t, err, errNotConnected)
}
