// services/broadcast_service.go
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"promo-task-bot/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrEmptyBroadcast    = errors.New("broadcast text is empty")
	ErrBroadcastNotFound = errors.New("broadcast not found")
)

// FanOut delivers one message to many recipients, tolerating per-recipient
// failures.
type FanOut interface {
	Deliver(ctx context.Context, recipients []int64, send func(ctx context.Context, chatID int64) error) (sent, failed int)
}

// SendFunc sends text to a single chat.
type SendFunc func(ctx context.Context, chatID int64, text string) error

// BroadcastService sends operator announcements and keeps an audit row.
type BroadcastService struct {
	DB     *gorm.DB
	Admin  *AdminService
	FanOut FanOut
	Send   SendFunc
	Log    *zap.Logger
	// BaseCtx outlives the request that started the broadcast.
	BaseCtx context.Context
}

// Start records the broadcast and delivers it in the background. onDone,
// when set, receives the final row.
func (s *BroadcastService) Start(ctx context.Context, text, requestedBy string, onDone func(models.Broadcast)) (*models.Broadcast, error) {
	b, recipients, err := s.prepare(ctx, text, requestedBy)
	if err != nil {
		return nil, err
	}
	base := s.BaseCtx
	if base == nil {
		base = context.Background()
	}
	go func() {
		final := s.deliver(base, b, recipients)
		if onDone != nil {
			onDone(final)
		}
	}()
	return b, nil
}

// Run records and delivers the broadcast synchronously.
func (s *BroadcastService) Run(ctx context.Context, text, requestedBy string) (*models.Broadcast, error) {
	b, recipients, err := s.prepare(ctx, text, requestedBy)
	if err != nil {
		return nil, err
	}
	final := s.deliver(ctx, b, recipients)
	return &final, nil
}

func (s *BroadcastService) Get(ctx context.Context, id string) (*models.Broadcast, error) {
	var b models.Broadcast
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBroadcastNotFound
	}
	if err != nil {
		return nil, persistence("load broadcast", err)
	}
	return &b, nil
}

func (s *BroadcastService) prepare(ctx context.Context, text, requestedBy string) (*models.Broadcast, []int64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, ErrEmptyBroadcast
	}
	recipients, err := s.Admin.Recipients(ctx)
	if err != nil {
		return nil, nil, err
	}
	b := &models.Broadcast{
		ID:          uuid.NewString(),
		Text:        text,
		RequestedBy: requestedBy,
		Status:      models.BroadcastStatusRunning,
		Recipients:  len(recipients),
	}
	if err := s.DB.WithContext(ctx).Create(b).Error; err != nil {
		return nil, nil, persistence("record broadcast", err)
	}
	s.Log.Info("[BROADCAST] started", zap.String("broadcast_id", b.ID), zap.Int("recipients", len(recipients)))
	return b, recipients, nil
}

func (s *BroadcastService) deliver(ctx context.Context, b *models.Broadcast, recipients []int64) models.Broadcast {
	sent, failed := s.FanOut.Deliver(ctx, recipients, func(ctx context.Context, chatID int64) error {
		return s.Send(ctx, chatID, b.Text)
	})

	final := *b
	final.Sent = sent
	final.Failed = failed
	final.Status = models.BroadcastStatusFinished
	if ctx.Err() != nil {
		final.Status = models.BroadcastStatusFailed
	}
	finished := time.Now().UTC()
	final.FinishedAt = &finished

	err := s.DB.WithContext(context.WithoutCancel(ctx)).Model(&models.Broadcast{}).
		Where("id = ?", b.ID).
		Updates(map[string]interface{}{
			"sent":        final.Sent,
			"failed":      final.Failed,
			"status":      final.Status,
			"finished_at": finished,
		}).Error
	if err != nil {
		s.Log.Error("[BROADCAST] failed to record totals", zap.String("broadcast_id", b.ID), zap.Error(err))
	}
	s.Log.Info("[BROADCAST] finished",
		zap.String("broadcast_id", b.ID),
		zap.Int("sent", sent),
		zap.Int("failed", failed))
	return final
}
