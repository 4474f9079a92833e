package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"promo-task-bot/telegram"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBroadcaster_CountsAndRetries(t *testing.T) {
	b := NewBroadcaster(4, zap.NewNop())
	b.RetryDelay = time.Millisecond

	var mu sync.Mutex
	attempts := map[int64]int{}
	send := func(_ context.Context, chatID int64) error {
		mu.Lock()
		attempts[chatID]++
		n := attempts[chatID]
		mu.Unlock()
		switch chatID {
		case 2:
			// blocked users are not retried
			return &telegram.APIError{Method: "sendMessage", Code: 403, Description: "Forbidden"}
		case 3:
			if n < 3 {
				return &telegram.APIError{Method: "sendMessage", Code: 502, Description: "Bad Gateway"}
			}
		case 4:
			return &telegram.APIError{Method: "sendMessage", Code: 500, Description: "Internal"}
		}
		return nil
	}

	sent, failed := b.Deliver(context.Background(), []int64{1, 2, 3, 4, 5}, send)
	assert.Equal(t, 3, sent)
	assert.Equal(t, 2, failed)
	assert.Equal(t, 1, attempts[2])
	assert.Equal(t, 3, attempts[3])
	assert.Equal(t, 3, attempts[4])
}

func TestBroadcaster_RespectsConcurrencyLimit(t *testing.T) {
	b := NewBroadcaster(2, zap.NewNop())
	var inFlight, peak atomic.Int32
	send := func(context.Context, int64) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}

	recipients := make([]int64, 12)
	for i := range recipients {
		recipients[i] = int64(i + 1)
	}
	sent, failed := b.Deliver(context.Background(), recipients, send)
	assert.Equal(t, 12, sent)
	assert.Zero(t, failed)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestBroadcaster_CancelledContext(t *testing.T) {
	b := NewBroadcaster(2, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sent, failed := b.Deliver(ctx, []int64{1, 2, 3}, func(context.Context, int64) error { return nil })
	assert.Zero(t, sent)
	assert.Equal(t, 3, failed)
}

type scriptedSource struct {
	mu      sync.Mutex
	batches [][]telegram.Update
	offsets []int64
	failed  bool
}

func (s *scriptedSource) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]telegram.Update, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	if !s.failed {
		s.failed = true
		s.mu.Unlock()
		return nil, errors.New("temporary network error")
	}
	if len(s.batches) > 0 {
		next := s.batches[0]
		s.batches = s.batches[1:]
		s.mu.Unlock()
		return next, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

type recordingHandler struct {
	mu   sync.Mutex
	seen []int64
	done chan struct{}
	want int
}

func (h *recordingHandler) HandleUpdate(_ context.Context, u telegram.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, u.UpdateID)
	if len(h.seen) == h.want {
		close(h.done)
	}
}

func TestUpdatePoller_AdvancesOffsetAndRecovers(t *testing.T) {
	source := &scriptedSource{batches: [][]telegram.Update{
		{{UpdateID: 5}, {UpdateID: 6}},
		{{UpdateID: 7}},
	}}
	handler := &recordingHandler{done: make(chan struct{}), want: 3}
	p := NewUpdatePoller(source, handler, time.Second, zap.NewNop())
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(stopped)
	}()

	select {
	case <-handler.done:
	case <-time.After(5 * time.Second):
		t.Fatal("updates were not handled")
	}
	cancel()
	<-stopped

	handler.mu.Lock()
	assert.ElementsMatch(t, []int64{5, 6, 7}, handler.seen)
	handler.mu.Unlock()

	source.mu.Lock()
	defer source.mu.Unlock()
	require.GreaterOrEqual(t, len(source.offsets), 3)
	assert.Equal(t, []int64{0, 0, 7}, source.offsets[:3])
	if len(source.offsets) > 3 {
		assert.Equal(t, int64(8), source.offsets[3])
	}
}
