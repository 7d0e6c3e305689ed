package twitch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chatsounds/soundboard-server/internal/model"
	"github.com/chatsounds/soundboard-server/internal/repository"
	"github.com/chatsounds/soundboard-server/internal/util"
)

const messageTimeout = 10 * time.Second

// Dispatcher receives command-shaped chat lines.
type Dispatcher interface {
	TriggerFromChat(ctx context.Context, username, text string, grants ...model.AccessTier) (model.TriggerOutcome, error)
}

// Connection owns the single chat session of the process.
//
// State moves Disconnected -> Connecting -> Connected, and back to
// Disconnected on a failed attempt, an explicit Disconnect, or when the
// chat client exits. Lifecycle operations are serialized; state reads are not.
type Connection struct {
	configs        repository.ConnectionConfigRepository
	dispatcher     Dispatcher
	newClient      ClientFactory
	connectTimeout time.Duration

	opMu sync.Mutex

	stateMu   sync.RWMutex
	client    ChatClient
	state     model.ConnectionState
	observers []func(model.ConnectionState)

	ctx    context.Context
	cancel context.CancelFunc
}

func NewConnection(
	configs repository.ConnectionConfigRepository,
	dispatcher Dispatcher,
	newClient ClientFactory,
	connectTimeout time.Duration,
) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		configs:        configs,
		dispatcher:     dispatcher,
		newClient:      newClient,
		connectTimeout: connectTimeout,
		state:          model.StateDisconnected,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// OnStateChange registers an observer called after every transition.
// Observers run synchronously and must not block.
func (c *Connection) OnStateChange(fn func(model.ConnectionState)) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.observers = append(c.observers, fn)
}

func (c *Connection) State() model.ConnectionState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsAuth reflects the persisted connected flag.
func (c *Connection) IsAuth(ctx context.Context) bool {
	cfg, err := c.configs.Get(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read connection config")
		return false
	}
	return cfg.Connected
}

// Config returns the stored connection config, credential included.
func (c *Connection) Config(ctx context.Context) (*model.ConnectionConfig, error) {
	return c.configs.Get(ctx)
}

// OnStartConnect connects with the stored credentials. Without credentials
// it leaves the connection Disconnected and returns nil. The attempt is
// bounded by the connect timeout.
func (c *Connection) OnStartConnect(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.connectLocked(ctx)
}

// Reconnect drops any live session and connects again with fresh config.
func (c *Connection) Reconnect(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.teardownLocked()
	return c.connectLocked(ctx)
}

// UpdateConfig stores new credentials and marks the config disconnected.
// The live session, if any, is left alone until Reconnect.
func (c *Connection) UpdateConfig(ctx context.Context, params model.UpdateConnectionParams) (*model.ConnectionConfig, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	params.Channels = util.NormalizeChannels(params.Channels)
	cfg, err := c.configs.Replace(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("update connection config: %w", err)
	}
	log.Info().Str("username", cfg.Username).Strs("channels", cfg.Channels).Msg("chat connection config updated")
	return cfg, nil
}

// Disconnect ends the session, clears stored credentials, and is safe to repeat.
func (c *Connection) Disconnect(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.teardownLocked()
	if err := c.configs.Clear(ctx); err != nil {
		return fmt.Errorf("clear connection config: %w", err)
	}
	return nil
}

// Close ends the session without touching stored credentials, so the next
// process start reconnects.
func (c *Connection) Close() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.teardownLocked()
	c.cancel()
}

func (c *Connection) connectLocked(ctx context.Context) error {
	if c.live() != nil {
		return nil
	}

	cfg, err := c.configs.Get(ctx)
	if err != nil {
		return fmt.Errorf("load connection config: %w", err)
	}
	if !cfg.HasCredentials() {
		log.Info().Msg("no chat credentials stored, staying disconnected")
		return nil
	}

	c.setState(model.StateConnecting)

	client := c.newClient(cfg.Username, cfg.OAuth)
	connected := make(chan struct{})
	var (
		once      sync.Once
		attemptMu sync.Mutex
		abandoned bool
	)
	client.OnConnect(func() {
		attemptMu.Lock()
		stale := abandoned
		attemptMu.Unlock()
		if stale {
			log.Warn().Msg("chat connected after the attempt timed out, closing it")
			if err := client.Disconnect(); err != nil {
				log.Warn().Err(err).Msg("chat disconnect failed")
			}
			return
		}
		once.Do(func() { close(connected) })
	})
	client.OnMessage(func(msg ChatMessage) {
		if c.live() != client {
			return
		}
		c.handleMessage(msg)
	})
	client.Join(cfg.Channels...)

	exited := make(chan error, 1)
	go func() { exited <- client.Connect() }()

	attemptCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	select {
	case <-connected:
		c.setClient(client)
		c.setState(model.StateConnected)
		if err := c.configs.SetConnected(ctx, true); err != nil {
			log.Warn().Err(err).Msg("failed to persist connected flag")
		}
		go c.watch(client, exited)
		log.Info().Str("username", cfg.Username).Strs("channels", cfg.Channels).Msg("chat connected")
		return nil

	case err := <-exited:
		c.failLocked(ctx)
		if err == nil {
			err = ErrClientClosed
		}
		log.Warn().Err(err).Msg("chat connection failed")
		return fmt.Errorf("connect to chat: %w", err)

	case <-attemptCtx.Done():
		// A dial still in flight ignores Disconnect; OnConnect closes it if it lands.
		attemptMu.Lock()
		abandoned = true
		attemptMu.Unlock()
		_ = client.Disconnect()
		go func() { <-exited }()
		c.failLocked(ctx)
		log.Warn().Dur("timeout", c.connectTimeout).Msg("chat connection attempt timed out")
		return fmt.Errorf("connect to chat: %w", attemptCtx.Err())
	}
}

func (c *Connection) failLocked(ctx context.Context) {
	c.setState(model.StateDisconnected)
	if err := c.configs.SetConnected(ctx, false); err != nil {
		log.Warn().Err(err).Msg("failed to persist connected flag")
	}
}

func (c *Connection) teardownLocked() {
	client := c.live()
	c.setClient(nil)
	if client != nil {
		if err := client.Disconnect(); err != nil {
			log.Warn().Err(err).Msg("chat disconnect failed")
		}
	}
	if c.State() != model.StateDisconnected {
		c.setState(model.StateDisconnected)
	}
	if err := c.configs.SetConnected(c.ctx, false); err != nil {
		log.Warn().Err(err).Msg("failed to persist connected flag")
	}
}

// watch handles the client exiting on its own, e.g. a protocol error.
func (c *Connection) watch(client ChatClient, exited <-chan error) {
	err := <-exited

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.live() != client {
		return
	}
	c.setClient(nil)
	if err != nil && !errors.Is(err, ErrClientClosed) {
		log.Error().Err(err).Msg("chat connection lost")
	}
	c.failLocked(c.ctx)
}

func (c *Connection) handleMessage(msg ChatMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("username", msg.Username).Msg("chat message handler panicked")
		}
	}()

	if c.State() != model.StateConnected {
		return
	}
	if _, ok := ParseCommand(msg.Text); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, messageTimeout)
	defer cancel()

	outcome, err := c.dispatcher.TriggerFromChat(ctx, msg.Username, msg.Text, msg.Grants...)
	if err != nil {
		log.Warn().Err(err).Str("username", msg.Username).Str("channel", msg.Channel).Msg("chat trigger failed")
		return
	}
	log.Debug().
		Str("username", msg.Username).
		Str("channel", msg.Channel).
		Str("outcome", string(outcome)).
		Msg("chat command handled")
}

// live is the client whose messages are dispatched, nil between sessions.
func (c *Connection) live() ChatClient {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.client
}

func (c *Connection) setClient(client ChatClient) {
	c.stateMu.Lock()
	c.client = client
	c.stateMu.Unlock()
}

func (c *Connection) setState(state model.ConnectionState) {
	c.stateMu.Lock()
	c.state = state
	observers := append([]func(model.ConnectionState){}, c.observers...)
	c.stateMu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
}
