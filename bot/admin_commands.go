// bot/admin_commands.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"promo-task-bot/models"
	"promo-task-bot/services"
	"promo-task-bot/telegram"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type adminHandler func(d *Dispatcher, ctx context.Context, msg *telegram.Message, args string) string

var adminCommands = map[string]adminHandler{
	"admin":          (*Dispatcher).cmdHelp,
	"add_channel":    (*Dispatcher).cmdAddRequirement,
	"remove_channel": (*Dispatcher).cmdRemoveRequirement,
	"channels":       (*Dispatcher).cmdRequirements,
	"stats":          (*Dispatcher).cmdStats,
	"users":          (*Dispatcher).cmdUsers,
	"codes":          (*Dispatcher).cmdCodes,
	"user_info":      (*Dispatcher).cmdUserInfo,
	"broadcast":      (*Dispatcher).cmdBroadcast,
	"set_coins":      (*Dispatcher).cmdSetCoins,
	"new_version":    (*Dispatcher).cmdNewVersion,
}

// operator replies use English number formatting
var operatorPrinter = message.NewPrinter(language.English)

const adminHelp = `🛠 Admin commands

/add_channel <type> <id> <name> <url>
   type: channel | request | link
   use _ for spaces in the name, - as id for links
/remove_channel <id>
/channels
/stats
/users
/codes [all|used|unused]
/user_info <telegram_id>
/broadcast <text>
/set_coins <amount>
/new_version`

func (d *Dispatcher) runAdmin(ctx context.Context, msg *telegram.Message, cmd, args string, handler adminHandler) {
	if d.IsAdmin == nil || !d.IsAdmin(msg.From.ID) {
		d.Log.Warn("[ADMIN] rejected command from non-admin", zap.String("command", cmd), zap.Int64("user_id", msg.From.ID))
		d.send(ctx, telegram.SendMessageParams{ChatID: msg.Chat.ID, Text: "⛔ " + services.ErrUnauthorized.Error()})
		return
	}
	reply := handler(d, ctx, msg, args)
	if reply != "" {
		d.send(ctx, telegram.SendMessageParams{ChatID: msg.Chat.ID, Text: truncate(reply)})
	}
}

func (d *Dispatcher) cmdHelp(context.Context, *telegram.Message, string) string {
	return adminHelp
}

func (d *Dispatcher) cmdAddRequirement(ctx context.Context, _ *telegram.Message, args string) string {
	fields := strings.Fields(args)
	if len(fields) != 4 {
		return "Usage: /add_channel <type> <id> <name> <url>\nExample: /add_channel channel @mychannel My_Channel https://t.me/mychannel"
	}
	in := services.RequirementInput{
		Kind: models.RequirementKind(fields[0]),
		ID:   fields[1],
		Name: strings.ReplaceAll(fields[2], "_", " "),
		URL:  fields[3],
	}
	req, version, err := d.Admin.AddRequirement(ctx, in)
	if err != nil {
		return d.operatorError("add requirement", err, fields[1])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Requirement added!\n\nName: %s\nType: %s\nID: %s\nURL: %s\n\n🔄 Task version is now %d.", req.DisplayName, req.Kind, req.ID, req.DestinationURL, version)
	if req.Kind != models.RequirementKindLink {
		b.WriteString("\n\n⚠️ Add the bot to this chat as an administrator so membership can be checked.")
	}
	return b.String()
}

func (d *Dispatcher) cmdRemoveRequirement(ctx context.Context, _ *telegram.Message, args string) string {
	id := strings.TrimSpace(args)
	if id == "" {
		return "Usage: /remove_channel <id>"
	}
	version, err := d.Admin.RemoveRequirement(ctx, id)
	if err != nil {
		return d.operatorError("remove requirement", err, id)
	}
	return fmt.Sprintf("🗑 Requirement %s removed.\n🔄 Task version is now %d.", id, version)
}

func (d *Dispatcher) cmdRequirements(ctx context.Context, _ *telegram.Message, _ string) string {
	reqs, err := d.Admin.ListRequirements(ctx)
	if err != nil {
		return d.operatorError("list requirements", err, "")
	}
	if len(reqs) == 0 {
		return "No requirements configured."
	}
	var b strings.Builder
	b.WriteString("📋 Requirements\n\n")
	for i, r := range reqs {
		fmt.Fprintf(&b, "%d. %s %s (%s)\n   ID: %s\n   URL: %s\n", i+1, kindIcon(r.Kind), r.DisplayName, r.Kind, r.ID, r.DestinationURL)
	}
	return b.String()
}

func (d *Dispatcher) cmdStats(ctx context.Context, _ *telegram.Message, _ string) string {
	st, err := d.Admin.Stats(ctx)
	if err != nil {
		return d.operatorError("stats", err, "")
	}
	return operatorPrinter.Sprintf(
		"📊 Statistics\n\n👥 Users: %d\n✅ Completed current version: %d\n🎟 Codes issued: %d\n   used: %d\n   unused: %d\n📋 Requirements: %d\n📨 Join requests (current version): %d\n🔄 Task version: %d\n💰 Coins per code: %d",
		st.Users, st.CompletedCurrent, st.Codes, st.UsedCodes, st.UnusedCodes, st.Requirements, st.PendingRequests, st.TaskVersion, st.PromoCoins)
}

func (d *Dispatcher) cmdUsers(ctx context.Context, _ *telegram.Message, args string) string {
	users, err := d.Admin.RecentUsers(ctx, args, services.DefaultUsersLimit)
	if err != nil {
		return d.operatorError("list users", err, "")
	}
	if len(users) == 0 {
		return "No users yet."
	}
	var b strings.Builder
	b.WriteString("👥 Recent users\n\n")
	for _, u := range users {
		fmt.Fprintf(&b, "• %s (%s)", displayName(u.TelegramName), u.TelegramUID)
		if u.CompletedVersion != nil {
			fmt.Fprintf(&b, " v%d %s", *u.CompletedVersion, u.LastCode)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (d *Dispatcher) cmdCodes(ctx context.Context, _ *telegram.Message, args string) string {
	filter := services.ParseCodeFilter(args)
	codes, err := d.Admin.ListCodes(ctx, filter, services.DefaultCodesLimit)
	if err != nil {
		return d.operatorError("list codes", err, "")
	}
	if len(codes) == 0 {
		return "No codes found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🎟 Codes (%s)\n\n", filter)
	for _, c := range codes {
		status := "⬜"
		if c.Used {
			status = "✅"
		}
		fmt.Fprintf(&b, "%s %s · %s (%s) · v%d · %d coins\n", status, c.Code, displayName(c.TelegramName), c.TelegramUID, c.TaskVersion, c.Coins)
	}
	return b.String()
}

func (d *Dispatcher) cmdUserInfo(ctx context.Context, _ *telegram.Message, args string) string {
	uid := strings.TrimSpace(args)
	if uid == "" {
		return "Usage: /user_info <telegram_id>"
	}
	info, err := d.Admin.UserInfo(ctx, uid)
	if err != nil {
		return d.operatorError("user info", err, uid)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "👤 %s\nID: %s\nLanguage: %s\nJoined: %s\n", displayName(info.User.TelegramName), info.User.TelegramUID, info.User.LanguageCode, info.User.CreatedAt.Format("2006-01-02 15:04"))
	if info.User.CompletedVersion != nil {
		fmt.Fprintf(&b, "Completed version: %d\n", *info.User.CompletedVersion)
	}
	if len(info.Codes) == 0 {
		b.WriteString("\nNo codes issued.")
		return b.String()
	}
	b.WriteString("\nCodes:\n")
	for _, c := range info.Codes {
		used := "unused"
		if c.Used {
			used = "used"
		}
		fmt.Fprintf(&b, "• %s · v%d · %d coins · %s\n", c.Code, c.TaskVersion, c.Coins, used)
	}
	return b.String()
}

func (d *Dispatcher) cmdBroadcast(ctx context.Context, msg *telegram.Message, args string) string {
	if strings.TrimSpace(args) == "" {
		return "Usage: /broadcast <text>"
	}
	chatID := msg.Chat.ID
	b, err := d.Broadcasts.Start(ctx, args, strconv.FormatInt(msg.From.ID, 10), func(final models.Broadcast) {
		d.send(context.Background(), telegram.SendMessageParams{
			ChatID: chatID,
			Text:   fmt.Sprintf("📣 Broadcast finished.\n✅ Sent: %d\n❌ Failed: %d", final.Sent, final.Failed),
		})
	})
	if err != nil {
		return d.operatorError("broadcast", err, "")
	}
	return fmt.Sprintf("📣 Broadcasting to %d users...", b.Recipients)
}

func (d *Dispatcher) cmdSetCoins(ctx context.Context, _ *telegram.Message, args string) string {
	amount, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		return "Usage: /set_coins <amount>"
	}
	if err := d.Admin.SetRewardAmount(ctx, amount); err != nil {
		return d.operatorError("set coins", err, "")
	}
	return fmt.Sprintf("💰 Each new code now grants %d coins.", amount)
}

func (d *Dispatcher) cmdNewVersion(ctx context.Context, _ *telegram.Message, _ string) string {
	version, err := d.Admin.BumpVersion(ctx)
	if err != nil {
		return d.operatorError("bump version", err, "")
	}
	return fmt.Sprintf("🔄 Task version is now %d. Every user can earn a new code.", version)
}

// operatorError turns a service error into a reply naming only the offending id.
func (d *Dispatcher) operatorError(op string, err error, id string) string {
	switch {
	case errors.Is(err, services.ErrRequirementNotFound):
		return "❌ Requirement not found: " + id
	case errors.Is(err, services.ErrDuplicateRequirement):
		return "❌ Requirement already exists: " + id
	case errors.Is(err, services.ErrInvalidRequirement):
		return "❌ Invalid requirement. Type must be channel, request or link; id, name and url are required."
	case errors.Is(err, services.ErrInvalidRewardAmount):
		return "❌ The amount must be a non-negative integer."
	case errors.Is(err, services.ErrUserNotFound):
		return "❌ User not found: " + id
	case errors.Is(err, services.ErrEmptyBroadcast):
		return "Usage: /broadcast <text>"
	}
	d.Log.Error("[ADMIN] command failed", zap.String("op", op), zap.Error(err))
	return "⚠️ Something went wrong. Please try again."
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "(no name)"
	}
	return name
}
