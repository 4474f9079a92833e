// workers/broadcaster.go
package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"promo-task-bot/telegram"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBroadcastConcurrency = 8
	defaultSendAttempts         = 3
)

// Broadcaster fans a message out to many chats with bounded concurrency.
// Each recipient is retried on its own; one failure never stops the rest.
type Broadcaster struct {
	Concurrency int
	MaxAttempts int
	RetryDelay  time.Duration
	Log         *zap.Logger
}

func NewBroadcaster(concurrency int, log *zap.Logger) *Broadcaster {
	if concurrency <= 0 {
		concurrency = defaultBroadcastConcurrency
	}
	return &Broadcaster{
		Concurrency: concurrency,
		MaxAttempts: defaultSendAttempts,
		RetryDelay:  time.Second,
		Log:         log,
	}
}

// Deliver returns once every recipient has been attempted.
func (b *Broadcaster) Deliver(ctx context.Context, recipients []int64, send func(ctx context.Context, chatID int64) error) (int, int) {
	var sent, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(b.Concurrency)
	for _, chatID := range recipients {
		chatID := chatID
		g.Go(func() error {
			if err := b.deliverOne(ctx, chatID, send); err != nil {
				failed.Add(1)
				b.Log.Debug("[BROADCAST] recipient failed", zap.Int64("chat_id", chatID), zap.Error(err))
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(sent.Load()), int(failed.Load())
}

func (b *Broadcaster) deliverOne(ctx context.Context, chatID int64, send func(context.Context, int64) error) error {
	attempts := b.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = send(ctx, chatID); err == nil {
			return nil
		}
		if !telegram.IsRetryable(err) || attempt == attempts {
			return err
		}

		wait := b.RetryDelay * time.Duration(attempt)
		var apiErr *telegram.APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			wait = apiErr.RetryAfter
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
