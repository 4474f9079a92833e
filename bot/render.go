// bot/render.go
package bot

import (
	"strings"
	"unicode/utf8"

	"promo-task-bot/models"
	"promo-task-bot/telegram"

	"golang.org/x/text/message"
)

const (
	callbackCheck = "check_subs"
	callbackClaim = "claim_next"

	parseModeMarkdown = "Markdown"
	maxMessageRunes   = 4000
)

func kindIcon(kind models.RequirementKind) string {
	switch kind {
	case models.RequirementKindRequest:
		return "📨"
	case models.RequirementKindLink:
		return "🌐"
	default:
		return "📢"
	}
}

// taskKeyboard renders one URL button per requirement plus the check button
// and, when join requests are pending, the claim button.
func taskKeyboard(p *message.Printer, reqs []models.Requirement, pendingAcks int) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(reqs)+2)
	requestN := 0
	for _, req := range reqs {
		label := kindIcon(req.Kind) + " " + req.DisplayName
		if req.Kind == models.RequirementKindRequest {
			requestN++
			label = p.Sprintf(msgButtonRequest, requestN)
		}
		rows = append(rows, []telegram.InlineKeyboardButton{{Text: label, URL: req.DestinationURL}})
	}
	rows = append(rows, []telegram.InlineKeyboardButton{{Text: p.Sprintf(msgButtonCheck), CallbackData: callbackCheck}})
	if pendingAcks > 0 {
		rows = append(rows, []telegram.InlineKeyboardButton{{Text: p.Sprintf(msgButtonClaim), CallbackData: callbackClaim}})
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func unmetList(reqs []models.Requirement) string {
	var b strings.Builder
	for _, req := range reqs {
		b.WriteString("• ")
		b.WriteString(kindIcon(req.Kind))
		b.WriteString(" ")
		b.WriteString(req.DisplayName)
		b.WriteString("\n")
	}
	return b.String()
}

// truncate keeps operator listings under the Bot API message limit.
func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxMessageRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxMessageRunes]) + "\n…"
}
