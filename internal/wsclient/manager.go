package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MarceloDuretti/Financeiro-sub001/internal/protocol"

	"go.uber.org/zap"
)

// Status is the connection state exposed to the UI layer.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

const (
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultMaxAttempts = 10
	DefaultDialTimeout = 10 * time.Second
)

// ErrUnavailable is reported once the reconnect budget is spent.
var ErrUnavailable = errors.New("real-time updates unavailable")

// Transport is one open socket.
type Transport interface {
	// Read blocks for the next text frame. A peer close is reported as an error wrapping ErrClosed.
	Read() ([]byte, error)
	Write(payload []byte) error
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d. Tests substitute a manual implementation.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Options configures a Manager. Zero values fall back to the defaults above.
type Options struct {
	URL         string
	Dialer      Dialer
	Scheduler   Scheduler
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	DialTimeout time.Duration
	Logger      *zap.Logger
	// OnStatus observes every transition in order. It must not call back
	// into the Manager synchronously.
	OnStatus func(status Status, errMsg string)
}

type transition struct {
	status Status
	err    string
}

// Manager owns the single socket of a client session and reconnects it
// with exponential backoff until told to stop.
type Manager struct {
	url         string
	dialer      Dialer
	scheduler   Scheduler
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	dialTimeout time.Duration
	logger      *zap.Logger
	onStatus    func(Status, string)
	dispatcher  *Dispatcher

	mu                  sync.Mutex
	status              Status
	lastErr             string
	attempts            int
	intentionallyClosed bool
	transport           Transport
	timer               Timer
	// gen invalidates callbacks from superseded attempts.
	gen     uint64
	pending []transition

	hookMu sync.Mutex
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		url:         opts.URL,
		dialer:      opts.Dialer,
		scheduler:   opts.Scheduler,
		baseDelay:   opts.BaseDelay,
		maxDelay:    opts.MaxDelay,
		maxAttempts: opts.MaxAttempts,
		dialTimeout: opts.DialTimeout,
		logger:      opts.Logger,
		onStatus:    opts.OnStatus,
		status:      StatusDisconnected,
	}
	if m.dialer == nil {
		m.dialer = GorillaDialer{}
	}
	if m.scheduler == nil {
		m.scheduler = clockScheduler{}
	}
	if m.baseDelay <= 0 {
		m.baseDelay = DefaultBaseDelay
	}
	if m.maxDelay <= 0 {
		m.maxDelay = DefaultMaxDelay
	}
	if m.maxAttempts <= 0 {
		m.maxAttempts = DefaultMaxAttempts
	}
	if m.dialTimeout <= 0 {
		m.dialTimeout = DefaultDialTimeout
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.dispatcher = NewDispatcher(m.logger)
	return m
}

// Status returns the current connection state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Err returns the human readable reason for the last error state, if any.
func (m *Manager) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Attempts returns how many reconnects were scheduled since the last successful open.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Subscribe registers a listener for inbound frames.
func (m *Manager) Subscribe(l Listener) func() { return m.dispatcher.Subscribe(l) }

// Dispatcher exposes the hub shared by every feature of this session.
func (m *Manager) Dispatcher() *Dispatcher { return m.dispatcher }

// Delay is the backoff before the reconnect numbered attempt (zero based).
func (m *Manager) Delay(attempt int) time.Duration {
	d := m.baseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= m.maxDelay {
			return m.maxDelay
		}
	}
	if d > m.maxDelay {
		return m.maxDelay
	}
	return d
}

// Connect opens the socket unless it is already open or opening, or the
// session was intentionally closed. It blocks for the dial only.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.intentionallyClosed || m.status == StatusConnecting || m.status == StatusConnected {
		m.mu.Unlock()
		return
	}
	m.stopTimerLocked()
	m.gen++
	gen := m.gen
	m.setStatusLocked(StatusConnecting, "")
	m.unlockAndNotify()

	m.dial(gen)
}

// Disconnect closes the socket and suppresses automatic reconnects.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.intentionallyClosed = true
	m.stopTimerLocked()
	m.gen++
	t := m.transport
	m.transport = nil
	if m.status != StatusDisconnected {
		m.setStatusLocked(StatusDisconnected, "")
	}
	m.unlockAndNotify()

	if t != nil {
		_ = t.Close()
	}
}

// Reconnect restarts the cycle with a fresh attempt budget, e.g. after
// the budget was exhausted or the user signed in again.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	m.intentionallyClosed = false
	m.attempts = 0
	m.mu.Unlock()
	m.Connect()
}

// SetAuthenticated binds the socket lifetime to the session lifetime.
func (m *Manager) SetAuthenticated(ok bool) {
	if ok {
		m.Reconnect()
		return
	}
	m.Disconnect()
}

// Send transmits v as JSON when connected. false means not delivered.
func (m *Manager) Send(v any) bool {
	m.mu.Lock()
	t := m.transport
	connected := m.status == StatusConnected
	m.mu.Unlock()

	if !connected || t == nil {
		m.logger.Warn("send skipped: not connected")
		return false
	}
	payload, err := json.Marshal(v)
	if err != nil {
		m.logger.Warn("send skipped: encode", zap.Error(err))
		return false
	}
	if err := t.Write(payload); err != nil {
		m.logger.Warn("send failed", zap.Error(err))
		return false
	}
	return true
}

func (m *Manager) dial(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), m.dialTimeout)
	t, err := m.dialer.Dial(ctx, m.url)
	cancel()

	m.mu.Lock()
	if gen != m.gen || m.intentionallyClosed {
		m.mu.Unlock()
		if t != nil {
			_ = t.Close()
		}
		return
	}
	if err != nil {
		m.logger.Warn("real-time connect failed", zap.String("url", m.url), zap.Error(err))
		m.setStatusLocked(StatusError, err.Error())
		m.scheduleReconnectLocked()
		m.unlockAndNotify()
		return
	}
	m.transport = t
	m.attempts = 0
	m.setStatusLocked(StatusConnected, "")
	m.unlockAndNotify()

	m.logger.Info("real-time connected", zap.String("url", m.url))
	go m.readLoop(t, gen)
}

func (m *Manager) readLoop(t Transport, gen uint64) {
	for {
		raw, err := t.Read()
		if err != nil {
			m.handleClose(t, gen, err)
			return
		}
		f, err := protocol.Decode(raw)
		if err != nil {
			m.logger.Warn("dropping malformed frame", zap.Error(err))
			continue
		}
		m.dispatcher.Dispatch(f)
	}
}

func (m *Manager) handleClose(t Transport, gen uint64, cause error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.transport = nil
	if errors.Is(cause, ErrClosed) || errors.Is(cause, io.EOF) {
		m.setStatusLocked(StatusDisconnected, "")
	} else {
		m.setStatusLocked(StatusError, cause.Error())
	}
	m.scheduleReconnectLocked()
	m.unlockAndNotify()

	_ = t.Close()
	m.logger.Info("real-time connection lost", zap.Error(cause))
}

func (m *Manager) scheduleReconnectLocked() {
	if m.intentionallyClosed {
		return
	}
	if m.attempts >= m.maxAttempts {
		msg := fmt.Sprintf("%v: gave up after %d reconnect attempts", ErrUnavailable, m.attempts)
		m.setStatusLocked(StatusError, msg)
		m.logger.Error("real-time reconnect budget exhausted", zap.Int("attempts", m.attempts))
		return
	}
	delay := m.Delay(m.attempts)
	m.attempts++
	gen := m.gen
	m.timer = m.scheduler.AfterFunc(delay, func() { m.retry(gen) })
	m.logger.Info("real-time reconnect scheduled",
		zap.Duration("delay", delay),
		zap.Int("attempt", m.attempts),
		zap.Int("max_attempts", m.maxAttempts),
	)
}

func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.intentionallyClosed {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.mu.Unlock()
	m.Connect()
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) setStatusLocked(s Status, errMsg string) {
	m.status = s
	if s == StatusError {
		m.lastErr = errMsg
	} else if s == StatusConnected {
		m.lastErr = ""
	}
	m.pending = append(m.pending, transition{status: s, err: errMsg})
}

// unlockAndNotify releases mu and then reports queued transitions in order.
func (m *Manager) unlockAndNotify() {
	pending := m.pending
	m.pending = nil
	if m.onStatus == nil || len(pending) == 0 {
		m.mu.Unlock()
		return
	}
	m.hookMu.Lock()
	m.mu.Unlock()
	defer m.hookMu.Unlock()
	for _, p := range pending {
		m.onStatus(p.status, p.err)
	}
}

// EndpointURL derives the socket URL from the page origin: http maps to ws
// and https to wss.
func EndpointURL(pageURL, path string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("page url %q has no host", pageURL)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = path
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
