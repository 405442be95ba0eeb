package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/glebk/status-board/internal/feed"
)

const DefaultPollInterval = 5 * time.Second

// Poller is a ChangeSource that fires on a fixed interval, for networks where
// the websocket cannot be held open.
type Poller struct {
	Interval time.Duration
}

// Subscribe calls handler every Interval. A poller never drops, so onDrop is unused.
func (p Poller) Subscribe(ctx context.Context, table string, handler feed.Handler, _ func(error)) (func(), error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				handler(feed.NewEvent(table, feed.KindUpdate))
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}, nil
}
