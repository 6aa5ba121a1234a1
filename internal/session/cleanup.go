package session

import (
	"context"
	"sync"
	"time"

	"github.com/comigor/leanchems-go/internal/logger"
)

// CleanupService runs Store.CleanupExpired on a fixed interval.
type CleanupService struct {
	store    *Store
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewCleanupService creates a stopped service.
func NewCleanupService(store *Store, interval time.Duration) *CleanupService {
	return &CleanupService{store: store, interval: interval}
}

// Start launches the cleanup loop. It is a no-op when already running or when the
// interval is not positive.
func (c *CleanupService) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running || c.interval <= 0 {
		return
	}

	cleanupCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go c.run(cleanupCtx, c.done)
}

// Stop cancels the loop and waits for it to exit.
func (c *CleanupService) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
}

// IsRunning reports whether the loop is active.
func (c *CleanupService) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *CleanupService) run(ctx context.Context, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		close(done)
	}()

	log := logger.With("session.cleanup")
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("cleanup service stopping")
			return
		case <-ticker.C:
			start := time.Now()
			removed, err := c.store.CleanupExpired(ctx)
			if err != nil {
				log.Warn("periodic cleanup incomplete", "error", err)
			}
			log.Debug("periodic cleanup finished",
				"removed", removed,
				"remaining", c.store.Len(),
				"duration", time.Since(start),
			)
		}
	}
}
