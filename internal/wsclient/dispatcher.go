package wsclient

import (
	"sync"
	"sync/atomic"

	"github.com/MarceloDuretti/Financeiro-sub001/internal/protocol"

	"go.uber.org/zap"
)

// Listener receives every inbound frame.
type Listener func(protocol.Frame)

// Subscriber is the part of the dispatcher features depend on.
type Subscriber interface {
	Subscribe(Listener) (unsubscribe func())
}

type subscription struct {
	listener Listener
	active   atomic.Bool
}

// Dispatcher fans one connection's frames out to many independent listeners.
type Dispatcher struct {
	mu sync.Mutex
	// subs is replaced, never mutated, so Dispatch can iterate it without the lock.
	subs   []*subscription
	logger *zap.Logger
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{logger: logger}
}

// Subscribe registers l and returns a function removing exactly that registration.
func (d *Dispatcher) Subscribe(l Listener) func() {
	s := &subscription{listener: l}
	s.active.Store(true)

	d.mu.Lock()
	next := make([]*subscription, len(d.subs), len(d.subs)+1)
	copy(next, d.subs)
	d.subs = append(next, s)
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { d.remove(s) })
	}
}

func (d *Dispatcher) remove(s *subscription) {
	s.active.Store(false)

	d.mu.Lock()
	defer d.mu.Unlock()
	next := make([]*subscription, 0, len(d.subs))
	for _, cur := range d.subs {
		if cur != s {
			next = append(next, cur)
		}
	}
	d.subs = next
}

// Len returns the number of active listeners.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// Dispatch delivers f to every listener subscribed when dispatch started.
// Listeners removed during dispatch are skipped; a panicking listener is logged.
func (d *Dispatcher) Dispatch(f protocol.Frame) {
	d.mu.Lock()
	snapshot := d.subs
	d.mu.Unlock()

	for _, s := range snapshot {
		if !s.active.Load() {
			continue
		}
		d.deliver(s, f)
	}
}

func (d *Dispatcher) deliver(s *subscription, f protocol.Frame) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("listener panicked",
				zap.String("frame", string(f.FrameType())),
				zap.Any("panic", r),
			)
		}
	}()
	s.listener(f)
}
