package feed

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"btc-trend-watch/internal/series"
)

// State describes the connection lifecycle. Transitions:
// disconnected -> connecting -> connected -> backoff -> connecting -> ...
// and any state -> disconnected on explicit shutdown.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateBackoff      State = "backoff"
)

const (
	defaultReconnectDelay    = 5 * time.Second
	defaultMaxReconnectDelay = 60 * time.Second
	defaultHandshakeTimeout  = 15 * time.Second
)

// Options parameterise the feed manager.
type Options struct {
	URL               string
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	HandshakeTimeout  time.Duration
}

// TickFunc receives each decoded price sample.
type TickFunc func(sample series.PriceSample)

// StateFunc receives connection state transitions.
type StateFunc func(state State)

// Manager owns the streaming connection lifecycle: connect, decode
// ticks, detect failure, reconnect with bounded backoff. Its core
// invariant is that at most one connection attempt and one pending
// backoff timer exist at any instant; Start is idempotent against
// both. Transport failures degrade the feed, they never stop it.
type Manager struct {
	opts    Options
	logger  zerolog.Logger
	onTick  TickFunc
	onState StateFunc

	mu           sync.Mutex
	state        State
	conn         *websocket.Conn
	backoffTimer *time.Timer
	nextDelay    time.Duration
	closed       bool
}

// NewManager constructs a feed manager. Both callbacks may be nil.
func NewManager(opts Options, onTick TickFunc, onState StateFunc, logger zerolog.Logger) *Manager {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.MaxReconnectDelay < opts.ReconnectDelay {
		opts.MaxReconnectDelay = defaultMaxReconnectDelay
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &Manager{
		opts:      opts,
		logger:    logger.With().Str("component", "feed").Logger(),
		onTick:    onTick,
		onState:   onState,
		state:     StateDisconnected,
		nextDelay: opts.ReconnectDelay,
	}
}

// State reports the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start begins connecting. It is a no-op while a connection, a dial
// attempt, or a pending backoff timer exists, and after Shutdown.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.closed || m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.transitionLocked(StateConnecting)
	m.mu.Unlock()

	go m.dial()
}

// Shutdown cancels any pending backoff timer and closes any live
// connection. After it returns no timer fires and no tick or state
// callback is invoked, even for messages in flight.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true

	if m.backoffTimer != nil {
		m.backoffTimer.Stop()
		m.backoffTimer = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.state = StateDisconnected
	m.logger.Info().Msg("feed shut down")
}

func (m *Manager) dial() {
	dialer := websocket.Dialer{HandshakeTimeout: m.opts.HandshakeTimeout}
	conn, resp, err := dialer.Dial(m.opts.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if err == nil {
			_ = conn.Close()
		}
		return
	}

	if err != nil {
		m.logger.Warn().Err(err).Str("url", m.opts.URL).Msg("feed connect failed")
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		return
	}

	m.conn = conn
	m.nextDelay = m.opts.ReconnectDelay
	m.transitionLocked(StateConnected)
	m.mu.Unlock()

	m.logger.Info().Str("url", m.opts.URL).Msg("feed connected")
	go m.readLoop(conn)
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleDisconnect(conn, err)
			return
		}

		price, ok := parsePrice(data)
		if !ok {
			// Malformed frames are dropped; they must never crash
			// or stall the pipeline.
			continue
		}
		sample := series.PriceSample{Time: time.Now(), Price: price}

		m.mu.Lock()
		alive := !m.closed && m.conn == conn
		m.mu.Unlock()
		if !alive {
			return
		}
		if m.onTick != nil {
			m.onTick(sample)
		}
	}
}

func (m *Manager) handleDisconnect(conn *websocket.Conn, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != conn {
		// A stale read loop racing shutdown or a newer connection.
		return
	}
	m.conn = nil
	_ = conn.Close()

	if m.closed {
		return
	}

	m.logger.Warn().Err(err).Msg("feed interrupted")
	m.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the single backoff timer. Delay grows
// exponentially up to the configured cap and resets on a successful
// connect, so a flapping upstream never produces a reconnect storm.
func (m *Manager) scheduleReconnectLocked() {
	delay := m.nextDelay
	m.nextDelay *= 2
	if m.nextDelay > m.opts.MaxReconnectDelay {
		m.nextDelay = m.opts.MaxReconnectDelay
	}

	m.transitionLocked(StateBackoff)
	m.logger.Info().Dur("delay", delay).Msg("scheduling feed reconnect")

	m.backoffTimer = time.AfterFunc(delay, m.backoffElapsed)
}

func (m *Manager) backoffElapsed() {
	m.mu.Lock()
	m.backoffTimer = nil
	if m.closed || m.conn != nil {
		m.mu.Unlock()
		return
	}
	m.transitionLocked(StateConnecting)
	m.mu.Unlock()

	go m.dial()
}

func (m *Manager) transitionLocked(next State) {
	if m.state == next {
		return
	}
	m.state = next
	if m.onState != nil {
		// Runs with the lock held; onState must not call back into
		// the manager.
		m.onState(next)
	}
}
