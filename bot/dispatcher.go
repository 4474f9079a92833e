// bot/dispatcher.go
package bot

import (
	"context"
	"strings"
	"unicode"

	"promo-task-bot/services"
	"promo-task-bot/telegram"

	"go.uber.org/zap"
	"golang.org/x/text/message"
)

// Messenger is the part of the Bot API the dispatcher replies through.
type Messenger interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
	EditMessageText(ctx context.Context, params telegram.EditMessageTextParams) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
}

// Dispatcher routes Telegram updates to the task engine and operator commands.
// Replies are fire-and-forget: send failures are logged and dropped.
type Dispatcher struct {
	Engine     *services.TaskEngine
	Admin      *services.AdminService
	Broadcasts *services.BroadcastService
	Messenger  Messenger
	IsAdmin    func(userID int64) bool
	Log        *zap.Logger
}

// HandleUpdate processes a single update. Safe to call concurrently.
func (d *Dispatcher) HandleUpdate(ctx context.Context, u telegram.Update) {
	defer func() {
		if r := recover(); r != nil {
			d.Log.Error("[BOT] panic while handling update", zap.Int64("update_id", u.UpdateID), zap.Any("panic", r))
		}
	}()

	switch {
	case u.CallbackQuery != nil:
		d.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.From != nil:
		d.handleMessage(ctx, u.Message)
	}
}

func userRef(u *telegram.User) services.UserRef {
	return services.UserRef{ID: u.ID, Name: u.FullName(), LanguageCode: u.LanguageCode}
}

// parseCommand splits "/cmd@bot args" into "cmd" and "args".
func parseCommand(text string) (string, string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	cmd, args := text[1:], ""
	if i := strings.IndexFunc(cmd, unicode.IsSpace); i >= 0 {
		cmd, args = cmd[:i], cmd[i:]
	}
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), strings.TrimSpace(args), true
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *telegram.Message) {
	cmd, args, ok := parseCommand(msg.Text)
	if !ok {
		return
	}
	if cmd == "start" {
		d.start(ctx, msg)
		return
	}
	if handler, found := adminCommands[cmd]; found {
		d.runAdmin(ctx, msg, cmd, args, handler)
		return
	}
	p := printerFor(msg.From.LanguageCode)
	d.send(ctx, telegram.SendMessageParams{ChatID: msg.Chat.ID, Text: p.Sprintf(msgUnknownCommand)})
}

func (d *Dispatcher) start(ctx context.Context, msg *telegram.Message) {
	user := userRef(msg.From)
	p := printerFor(user.LanguageCode)

	res, err := d.Engine.Start(ctx, user)
	if err != nil {
		d.Log.Error("[BOT] start failed", zap.String("telegram_uid", user.UID()), zap.Error(err))
		d.send(ctx, telegram.SendMessageParams{ChatID: msg.Chat.ID, Text: p.Sprintf(msgErrorRetry)})
		return
	}

	switch res.Outcome {
	case services.CheckAlreadyCompleted:
		d.send(ctx, codeMessage(p, msg.Chat.ID, res))
	case services.CheckNoTasks:
		d.send(ctx, telegram.SendMessageParams{ChatID: msg.Chat.ID, Text: p.Sprintf(msgStartEmpty)})
	default:
		d.send(ctx, telegram.SendMessageParams{
			ChatID:      msg.Chat.ID,
			Text:        p.Sprintf(msgStartIntro, msg.From.FirstName),
			ReplyMarkup: taskKeyboard(p, res.Config.Requirements, res.PendingAcknowledgments),
		})
	}
}

func (d *Dispatcher) handleCallback(ctx context.Context, q *telegram.CallbackQuery) {
	user := userRef(&q.From)
	p := printerFor(user.LanguageCode)
	chatID, messageID := q.From.ID, int64(0)
	if q.Message != nil {
		chatID, messageID = q.Message.Chat.ID, q.Message.MessageID
	}

	switch q.Data {
	case callbackCheck:
		d.answer(ctx, q.ID, p.Sprintf(msgCheckingToast))
		d.check(ctx, user, chatID, messageID, p)
	case callbackClaim:
		d.answer(ctx, q.ID, d.claim(ctx, user, p))
	default:
		d.answer(ctx, q.ID, "")
	}
}

// check verifies the user's tasks. An unmet result replaces the task message
// the button was pressed on; codes always arrive as a new message.
func (d *Dispatcher) check(ctx context.Context, user services.UserRef, chatID, messageID int64, p *message.Printer) {
	res, err := d.Engine.Check(ctx, user)
	if err != nil {
		d.Log.Error("[BOT] check failed", zap.String("telegram_uid", user.UID()), zap.Error(err))
		d.send(ctx, telegram.SendMessageParams{ChatID: chatID, Text: p.Sprintf(msgErrorRetry)})
		return
	}

	switch res.Outcome {
	case services.CheckIssued, services.CheckAlreadyCompleted:
		d.send(ctx, codeMessage(p, chatID, res))
	case services.CheckNoTasks:
		d.send(ctx, telegram.SendMessageParams{ChatID: chatID, Text: p.Sprintf(msgStartEmpty)})
	default:
		d.replace(ctx, messageID, telegram.SendMessageParams{
			ChatID:      chatID,
			Text:        p.Sprintf(msgCheckUnmet, unmetList(res.Unmet)),
			ReplyMarkup: taskKeyboard(p, res.Unmet, res.PendingAcknowledgments),
		})
	}
}

// claim returns the toast text for the callback answer.
func (d *Dispatcher) claim(ctx context.Context, user services.UserRef, p *message.Printer) string {
	res, _, err := d.Engine.ClaimNext(ctx, user)
	if err != nil {
		d.Log.Error("[BOT] claim failed", zap.String("telegram_uid", user.UID()), zap.Error(err))
		return p.Sprintf(msgErrorRetry)
	}
	switch res.Status {
	case services.ClaimRecorded:
		return p.Sprintf(msgClaimRecorded, res.Requirement.DisplayName, res.Remaining)
	case services.ClaimAlreadyRecorded:
		return p.Sprintf(msgClaimAlready, res.Requirement.DisplayName)
	default:
		return p.Sprintf(msgClaimNone)
	}
}

func codeMessage(p *message.Printer, chatID int64, res services.CheckResult) telegram.SendMessageParams {
	text := p.Sprintf(msgCodeAlready, res.Code.Code)
	if res.Outcome == services.CheckIssued {
		text = p.Sprintf(msgCodeIssued, res.Code.Code, res.Code.Coins)
	}
	return telegram.SendMessageParams{ChatID: chatID, Text: text, ParseMode: parseModeMarkdown}
}

func (d *Dispatcher) send(ctx context.Context, params telegram.SendMessageParams) {
	if _, err := d.Messenger.SendMessage(ctx, params); err != nil {
		d.Log.Warn("[BOT] send failed", zap.Int64("chat_id", params.ChatID), zap.Error(err))
	}
}

// replace edits messageID in place, sending a new message when there is
// nothing to edit or the edit is rejected.
func (d *Dispatcher) replace(ctx context.Context, messageID int64, params telegram.SendMessageParams) {
	if messageID != 0 {
		err := d.Messenger.EditMessageText(ctx, telegram.EditMessageTextParams{
			ChatID:      params.ChatID,
			MessageID:   messageID,
			Text:        params.Text,
			ParseMode:   params.ParseMode,
			ReplyMarkup: params.ReplyMarkup,
		})
		if err == nil || telegram.IsNotModified(err) {
			return
		}
		d.Log.Debug("[BOT] edit failed, sending a new message", zap.Int64("chat_id", params.ChatID), zap.Error(err))
	}
	d.send(ctx, params)
}

func (d *Dispatcher) answer(ctx context.Context, callbackID, text string) {
	if err := d.Messenger.AnswerCallbackQuery(ctx, callbackID, text); err != nil {
		d.Log.Warn("[BOT] answer callback failed", zap.String("callback_id", callbackID), zap.Error(err))
	}
}
