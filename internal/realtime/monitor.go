package realtime

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultPingInterval is how often every connection is probed.
const DefaultPingInterval = 30 * time.Second

// Monitor probes registered connections and terminates the ones that
// miss a full probe cycle.
type Monitor struct {
	registry *Registry
	interval time.Duration
	logger   *zap.Logger
}

func NewMonitor(registry *Registry, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{registry: registry, interval: interval, logger: logger}
}

// Run sweeps on every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep runs one probe cycle and returns the number of terminated connections.
func (m *Monitor) Sweep() int {
	terminated := 0
	for _, c := range m.registry.Snapshot() {
		probed, err := c.probe()
		if !probed {
			c.Terminate()
			m.registry.Remove(c)
			terminated++
			m.logger.Info("terminated unresponsive connection",
				zap.String("conn", c.ID),
				zap.String("tenant", c.TenantID),
				zap.String("user", c.UserID),
			)
			continue
		}
		if err != nil {
			// Left for the next cycle to reap.
			m.logger.Debug("ping failed", zap.String("conn", c.ID), zap.Error(err))
		}
	}
	return terminated
}
