package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/cesarhb/kb-engine-playground/pkg/logger"
)

// DefaultHeartbeatInterval paces progress logging during long phases.
const DefaultHeartbeatInterval = 15 * time.Second

// startHeartbeat logs a progress line every interval until the returned
// stop function is called. Stop joins the goroutine before returning, so
// no heartbeat line can appear after a phase has been reported done.
func startHeartbeat(ctx context.Context, interval time.Duration, phase string) (stop func()) {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	log := logger.FromContext(ctx)
	done := make(chan struct{})
	finished := make(chan struct{})
	started := time.Now()
	go func() {
		defer close(finished)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.Info("still working", "phase", phase, "elapsed", time.Since(started).Round(time.Second))
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-finished
		})
	}
}
