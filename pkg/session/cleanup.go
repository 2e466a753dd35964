package session

import (
	"time"

	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/logger"
)

// StartCleanupLoop runs EvictExpired every interval until Stop is
// called, invoking onEvicted for every record the sweep removes so
// callers can close the associated transport. The returned Stop func
// is idempotent.
func (s *Store) StartCleanupLoop(interval time.Duration, onEvicted func(*Record)) (stop func()) {
	stopCh := make(chan struct{})
	var stopped bool
	var stopOnce func()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				for _, rec := range s.EvictExpired() {
					logger.Debugw("session expired", "sessionId", rec.ID)
					if onEvicted != nil {
						onEvicted(rec)
					}
				}
			}
		}
	}()

	stopOnce = func() {
		if !stopped {
			stopped = true
			close(stopCh)
		}
	}
	return stopOnce
}
