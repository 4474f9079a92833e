// workers/update_poller.go
package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"promo-task-bot/telegram"

	"go.uber.org/zap"
)

// UpdateSource is the long-poll side of the Bot API.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
}

// UpdateHandler processes one update. It must be safe for concurrent use.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u telegram.Update)
}

// UpdatePoller pulls updates with getUpdates and hands each one to its own
// goroutine, so a slow membership check never blocks other users.
type UpdatePoller struct {
	source  UpdateSource
	handler UpdateHandler
	timeout time.Duration
	backoff time.Duration
	log     *zap.Logger

	wg sync.WaitGroup
}

func NewUpdatePoller(source UpdateSource, handler UpdateHandler, pollTimeout time.Duration, log *zap.Logger) *UpdatePoller {
	return &UpdatePoller{
		source:  source,
		handler: handler,
		timeout: pollTimeout,
		backoff: 3 * time.Second,
		log:     log,
	}
}

// Run blocks until ctx is cancelled and every in-flight update is handled.
func (p *UpdatePoller) Run(ctx context.Context) {
	p.log.Info("🔁 Starting update poller (getUpdates)", zap.Duration("poll_timeout", p.timeout))
	defer p.wg.Wait()

	var offset int64
	for {
		if ctx.Err() != nil {
			p.log.Info("⏹️ Update poller stopped")
			return
		}

		updates, err := p.source.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				p.log.Info("⏹️ Update poller stopped")
				return
			}
			p.log.Warn("[POLL] getUpdates failed", zap.Error(err), zap.Duration("retry_in", p.backoff))
			select {
			case <-time.After(p.backoff):
				continue
			case <-ctx.Done():
				p.log.Info("⏹️ Update poller stopped")
				return
			}
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			p.wg.Add(1)
			go func(u telegram.Update) {
				defer p.wg.Done()
				p.handler.HandleUpdate(ctx, u)
			}(u)
		}
	}
}
