package lsm

import (
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/Leadrive/eventql/internal/logger"
)

// Dispatcher runs background compaction and split attempts for a node's
// partitions on a bounded goroutine pool, the same ants.Pool-backed worker
// shape a per-database request scheduler would use for its workers —
// adapted here to a periodic maintenance sweep instead of per-request
// dispatch, since maintenance is the background workload this engine
// actually has.
type Dispatcher struct {
	pool   *ants.Pool
	logger *logger.Logger
}

// NewDispatcher creates a dispatcher with workers goroutines, expiring idle
// ones after expiry (the ants.WithExpiryDuration default applies when
// expiry <= 0).
func NewDispatcher(workers int, expiry time.Duration, log *logger.Logger) (*Dispatcher, error) {
	if expiry <= 0 {
		expiry = time.Second
	}
	pool, err := ants.NewPool(workers,
		ants.WithExpiryDuration(expiry),
		ants.WithPanicHandler(func(v any) {
			log.Error("dispatcher worker panic: %v", v)
		}),
	)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{pool: pool, logger: log}, nil
}

// MaintainOnce submits one compaction attempt per writer to the pool, not
// waiting for completion; writers that are already mid-compaction simply
// no-op via their try-lock.
func (d *Dispatcher) MaintainOnce(writers []*Writer) {
	for _, w := range writers {
		w := w
		if err := d.pool.Submit(func() {
			if _, err := w.Compact(false); err != nil {
				d.logger.Warn("background compaction failed: %v", err)
			}
		}); err != nil {
			d.logger.Warn("dispatcher submit failed: %v", err)
		}
	}
}

// Stats exposes the ants pool's running/waiting/free/capacity counters for
// an operator dashboard.
func (d *Dispatcher) Stats() map[string]int {
	return map[string]int{
		"running": d.pool.Running(),
		"waiting": d.pool.Waiting(),
		"free":    d.pool.Free(),
		"cap":     d.pool.Cap(),
	}
}

// Release shuts the pool down, waiting up to 3s for in-flight work.
func (d *Dispatcher) Release() {
	_ = d.pool.ReleaseTimeout(3 * time.Second)
}
