package realtime

import (
	"time"

	"github.com/MarceloDuretti/Financeiro-sub001/internal/protocol"

	"go.uber.org/zap"
)

// Notifier turns committed writes into change frames for a tenant.
// Delivery is best effort: Notify never fails the caller.
type Notifier struct {
	fanout Fanout
	logger *zap.Logger
	now    func() time.Time
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) NotifierOption {
	return func(n *Notifier) { n.now = now }
}

func NewNotifier(fanout Fanout, logger *zap.Logger, opts ...NotifierOption) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Notifier{fanout: fanout, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify must be called after the write is committed. It returns the
// number of connections that accepted the frame.
func (n *Notifier) Notify(tenantID, resource string, action protocol.Action, data any) (sent int) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("notify panicked",
				zap.String("tenant", tenantID),
				zap.String("resource", resource),
				zap.Any("panic", r),
			)
			sent = 0
		}
	}()

	if tenantID == "" || resource == "" {
		n.logger.Warn("notify skipped: missing tenant or resource",
			zap.String("tenant", tenantID),
			zap.String("resource", resource),
		)
		return 0
	}

	change, err := protocol.NewChange(tenantID, resource, action, data, n.now())
	if err != nil {
		n.logger.Error("notify skipped", zap.String("resource", resource), zap.Error(err))
		return 0
	}
	payload, err := protocol.Encode(change)
	if err != nil {
		n.logger.Error("encode change", zap.String("resource", resource), zap.Error(err))
		return 0
	}

	sent = n.fanout.Broadcast(tenantID, payload)
	n.logger.Debug("change broadcast",
		zap.String("tenant", tenantID),
		zap.String("resource", resource),
		zap.String("action", string(action)),
		zap.Int("sent", sent),
	)
	return sent
}
