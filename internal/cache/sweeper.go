package cache

import (
	"context"
	"time"

	"expensebot/internal/log"
)

// Cleaner is implemented by stores that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Sweeper periodically cleans registered stores.
type Sweeper struct {
	caches []Cleaner
	logger *log.Logger
	// OnSweep, when set, receives the number of entries removed by each pass.
	OnSweep func(removed int)
}

func NewSweeper(logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentCache})
	}
	return &Sweeper{logger: logger}
}

// Register adds a store to the sweep
func (s *Sweeper) Register(c Cleaner) {
	s.caches = append(s.caches, c)
}

// Sweep runs one cleanup pass and returns the number of removed entries.
func (s *Sweeper) Sweep() int {
	total := 0
	for _, c := range s.caches {
		total += c.CleanExpired()
	}
	if s.OnSweep != nil {
		s.OnSweep(total)
	}
	return total
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.DebugContext(ctx, "Expired entries removed", "count", n)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
