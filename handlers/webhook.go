// handlers/webhook.go
package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"sync"

	"promo-task-bot/telegram"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u telegram.Update)
}

// WebhookReceiver acknowledges Telegram webhook calls immediately and
// handles each update on its own goroutine.
type WebhookReceiver struct {
	Secret  string
	Handler UpdateHandler
	// Ctx bounds the background handling; it outlives the HTTP request.
	Ctx context.Context
	Log *zap.Logger

	wg sync.WaitGroup
}

func (w *WebhookReceiver) Handle(c *fiber.Ctx) error {
	if w.Secret == "" ||
		subtle.ConstantTimeCompare([]byte(c.Params("secret")), []byte(w.Secret)) != 1 ||
		subtle.ConstantTimeCompare([]byte(c.Get(telegramSecretHeader)), []byte(w.Secret)) != 1 {
		w.Log.Warn("🚫 [WEBHOOK] rejected call with bad secret", zap.String("ip", c.IP()))
		return c.SendStatus(fiber.StatusForbidden)
	}

	var u telegram.Update
	if err := json.Unmarshal(c.Body(), &u); err != nil {
		w.Log.Warn("[WEBHOOK] malformed update", zap.Error(err))
		return c.SendStatus(fiber.StatusBadRequest)
	}

	ctx := w.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.Handler.HandleUpdate(ctx, u)
	}()
	return c.SendStatus(fiber.StatusOK)
}

// Wait blocks until every accepted update has been handled.
func (w *WebhookReceiver) Wait() { w.wg.Wait() }

func SetupWebhookRoutes(app *fiber.App, recv *WebhookReceiver) {
	app.Post("/telegram/webhook/:secret", recv.Handle)
}
