package realtime

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Transport is the network side of a connection.
// The actual websocket is managed in socket.go; tests use fakes.
type Transport interface {
	// Send queues or writes a text frame. It reports false when the frame was not accepted.
	Send(payload []byte) bool
	// Ping sends a liveness probe.
	Ping() error
	// Terminate closes the transport without a close handshake.
	Terminate()
	// Open reports whether the transport can still carry frames.
	Open() bool
}

// Conn is a live, authenticated socket and its metadata.
type Conn struct {
	ID          string
	UserID      string
	TenantID    string
	ConnectedAt time.Time

	transport Transport
	alive     atomic.Bool
}

// NewConn wraps a transport. The connection starts alive.
func NewConn(userID, tenantID string, t Transport) *Conn {
	c := &Conn{
		ID:          uuid.NewString(),
		UserID:      userID,
		TenantID:    tenantID,
		ConnectedAt: time.Now(),
		transport:   t,
	}
	c.alive.Store(true)
	return c
}

// MarkAlive records a probe acknowledgement.
func (c *Conn) MarkAlive() { c.alive.Store(true) }

// Alive reports whether the connection answered since the last probe.
func (c *Conn) Alive() bool { return c.alive.Load() }

// Send forwards to the transport.
func (c *Conn) Send(payload []byte) bool { return c.transport.Send(payload) }

// Open reports whether the transport is still usable.
func (c *Conn) Open() bool { return c.transport.Open() }

// Terminate closes the underlying transport.
func (c *Conn) Terminate() { c.transport.Terminate() }

// probe clears the alive flag and pings. It returns false when the
// connection had not acknowledged the previous probe.
func (c *Conn) probe() (bool, error) {
	if !c.alive.CompareAndSwap(true, false) {
		return false, nil
	}
	return true, c.transport.Ping()
}
