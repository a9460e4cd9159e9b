package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/madeline/internal/logger"
)

// DefaultSweepInterval is used when no interval is configured.
const DefaultSweepInterval = time.Minute

// Sweepable is in-memory state that expires over time, such as
// paginator sessions and cooldown buckets.
type Sweepable interface {
	Sweep(now time.Time) int
}

// Target names a Sweepable for the logs.
type Target struct {
	Name string
	Sweepable
}

// Sweeper periodically drops expired in-memory state
type Sweeper struct {
	targets  []Target
	logger   logger.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	once     sync.Once
}

// NewSweeper creates a sweeper over targets
func NewSweeper(log logger.Logger, interval time.Duration, targets ...Target) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		targets:  targets,
		logger:   log,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start runs Sweep every interval until Stop is called or ctx ends.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the sweeper. It is safe to call more than once.
func (s *Sweeper) Stop() {
	s.once.Do(func() { close(s.stopCh) })
}

// Sweep runs one pass over every target and returns the total dropped.
func (s *Sweeper) Sweep() int {
	now := s.now()
	total := 0
	for _, t := range s.targets {
		n := t.Sweep(now)
		if n > 0 {
			s.logger.Debug("swept expired entries",
				logger.String("target", t.Name),
				logger.Int("dropped", n))
		}
		total += n
	}
	return total
}
