// Package client adapts the gotd MTProto client to the bridge Messenger port.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gotd/td/constant"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/tg"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"tgbridge/internal/bridge/ports"
	"tgbridge/internal/shared/async"
	"tgbridge/internal/shared/logging"
	"tgbridge/internal/telegram/sessionstore"
)

const (
	defaultPeerCacheSize = 256
	defaultPeerCacheTTL  = 10 * time.Minute
)

var (
	errNotConnected = errors.New("telegram client is not connected")
	errStopped      = errors.New("telegram client stopped before becoming ready")
)

// Config carries the application credentials and tuning shared by every
// client built from the same factory.
type Config struct {
	AppID         int
	AppHash       string
	PeerCacheSize int
	PeerCacheTTL  time.Duration
	Logger        logging.Logger
}

// Validate checks the application credentials.
func (c Config) Validate() error {
	if c.AppID <= 0 {
		return errors.New("telegram app id must be positive")
	}
	if strings.TrimSpace(c.AppHash) == "" {
		return errors.New("telegram app hash is required")
	}
	return nil
}

// NewFactory returns a MessengerFactory that builds a Client per credential.
func NewFactory(cfg Config) ports.MessengerFactory {
	return func(credential string) (ports.Messenger, error) {
		return New(cfg, credential)
	}
}

// Client is a single MTProto session. The transport runs in a background
// goroutine between Connect and Close.
type Client struct {
	cfg     Config
	logger  logging.Logger
	storage *sessionstore.Storage
	peers   *expirable.LRU[string, tg.InputPeerClass]

	connected atomic.Bool

	mu      sync.Mutex
	td      *telegram.Client
	manager *peers.Manager
	sender  *message.Sender
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
}

var _ ports.Messenger = (*Client)(nil)

// New builds a disconnected client seeded with credential.
func New(cfg Config, credential string) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(credential) == "" {
		return nil, errors.New("telegram session credential is empty")
	}
	if cfg.PeerCacheSize <= 0 {
		cfg.PeerCacheSize = defaultPeerCacheSize
	}
	if cfg.PeerCacheTTL <= 0 {
		cfg.PeerCacheTTL = defaultPeerCacheTTL
	}
	return &Client{
		cfg:     cfg,
		logger:  logging.OrNop(cfg.Logger),
		storage: sessionstore.NewStorage(credential),
		peers:   expirable.NewLRU[string, tg.InputPeerClass](cfg.PeerCacheSize, nil, cfg.PeerCacheTTL),
	}, nil
}

// Connect starts the transport and returns once the client is ready. A fresh
// gotd client is built on every call so a dropped transport can be restarted.
func (c *Client) Connect(ctx context.Context) error {
	if c.connected.Load() {
		return nil
	}
	c.stopPrevious()

	c.mu.Lock()
	runCtx, cancel := context.WithCancel(context.Background())
	client := telegram.NewClient(c.cfg.AppID, c.cfg.AppHash, telegram.Options{
		SessionStorage: c.storage,
		NoUpdates:      true,
	})
	ready := make(chan struct{})
	done := make(chan struct{})
	c.td = client
	c.cancel = cancel
	c.done = done
	c.runErr = nil
	c.mu.Unlock()

	async.Go(c.logger, "telegram.run", func() { c.run(runCtx, client, ready, done) })

	select {
	case <-ready:
		return nil
	case <-done:
		if err := c.lastRunErr(); err != nil {
			return err
		}
		return errStopped
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

func (c *Client) run(ctx context.Context, client *telegram.Client, ready, done chan struct{}) {
	defer close(done)
	err := client.Run(ctx, func(ctx context.Context) error {
		api := client.API()
		c.mu.Lock()
		c.manager = peers.Options{}.Build(api)
		c.sender = message.NewSender(api)
		c.mu.Unlock()

		c.connected.Store(true)
		close(ready)
		<-ctx.Done()
		return ctx.Err()
	})
	c.connected.Store(false)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("Telegram transport stopped: %v", err)
	}

	c.mu.Lock()
	c.runErr = err
	c.mu.Unlock()
}

func (c *Client) lastRunErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runErr
}

// Connected reports whether the transport is running.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Self fetches the authorized account and returns its display name.
func (c *Client) Self(ctx context.Context) (string, error) {
	c.mu.Lock()
	client := c.td
	c.mu.Unlock()
	if client == nil || !c.connected.Load() {
		return "", errNotConnected
	}
	user, err := client.Self(ctx)
	if err != nil {
		return "", err
	}
	return DisplayName(user), nil
}

// Send resolves chat to an input peer and sends text to it.
func (c *Client) Send(ctx context.Context, chat ports.ChatRef, text string) error {
	c.mu.Lock()
	sender := c.sender
	c.mu.Unlock()
	if sender == nil || !c.connected.Load() {
		return errNotConnected
	}

	peer, err := c.resolve(ctx, chat)
	if err != nil {
		return err
	}
	if _, err := sender.To(peer).Text(ctx, text); err != nil {
		// The cached access hash may be stale.
		c.peers.Remove(PeerCacheKey(chat))
		return fmt.Errorf("send to %s: %w", chat, err)
	}
	return nil
}

func (c *Client) resolve(ctx context.Context, chat ports.ChatRef) (tg.InputPeerClass, error) {
	key := PeerCacheKey(chat)
	if peer, ok := c.peers.Get(key); ok {
		return peer, nil
	}

	c.mu.Lock()
	manager := c.manager
	c.mu.Unlock()
	if manager == nil {
		return nil, errNotConnected
	}

	var (
		resolved peers.Peer
		err      error
	)
	if chat.IsNumeric() {
		resolved, err = manager.ResolveTDLibID(ctx, constant.TDLibPeerID(chat.ID()))
	} else {
		domain := strings.TrimPrefix(chat.Text(), "@")
		if domain == "" {
			return nil, fmt.Errorf("resolve chat: empty reference")
		}
		resolved, err = manager.ResolveDomain(ctx, domain)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve chat %s: %w", chat, err)
	}

	peer := resolved.InputPeer()
	c.peers.Add(key, peer)
	return peer, nil
}

// Close stops the transport and waits for it to exit or for ctx to expire.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-done:
		c.peers.Purge()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stopPrevious tears down a previous run that has already dropped.
func (c *Client) stopPrevious() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.manager = nil
	c.sender = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// PeerCacheKey separates numeric ids from handles that look numeric.
func PeerCacheKey(chat ports.ChatRef) string {
	if chat.IsNumeric() {
		return fmt.Sprintf("id:%d", chat.ID())
	}
	return "text:" + strings.ToLower(strings.TrimPrefix(chat.Text(), "@"))
}

// DisplayName renders a user the way operators recognize it in logs.
func DisplayName(user *tg.User) string {
	if user == nil {
		return "unknown"
	}
	name := strings.TrimSpace(strings.TrimSpace(user.FirstName) + " " + strings.TrimSpace(user.LastName))
	switch {
	case name != "" && user.Username != "":
		return fmt.Sprintf("%s (@%s)", name, user.Username)
	case name != "":
		return name
	case user.Username != "":
		return "@" + user.Username
	default:
		return fmt.Sprintf("id %d", user.ID)
	}
}
