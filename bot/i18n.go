// bot/i18n.go
package bot

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	msgStartIntro     = "start.intro"
	msgStartEmpty     = "start.empty"
	msgCodeAlready    = "code.already"
	msgCodeIssued     = "code.issued"
	msgCheckUnmet     = "check.unmet"
	msgButtonCheck    = "button.check"
	msgButtonClaim    = "button.claim"
	msgButtonRequest  = "button.request"
	msgClaimRecorded  = "claim.recorded"
	msgClaimAlready   = "claim.already"
	msgClaimNone      = "claim.none"
	msgErrorRetry     = "error.retry"
	msgCheckingToast  = "callback.checking"
	msgUnknownCommand = "command.unknown"
)

// supportedLanguages is in matcher priority order; the first entry is the
// fallback for unknown or missing language codes.
var supportedLanguages = []language.Tag{language.Uzbek, language.Russian, language.English}

var texts = map[language.Tag]map[string]string{
	language.English: {
		msgStartIntro:     "👋 Hello, %s!\n\nComplete the tasks below to get your promo code. Subscribe to the channels or send a join request, then press ✅ Check.",
		msgStartEmpty:     "There are no tasks right now. Come back later!",
		msgCodeAlready:    "✅ You have already completed all tasks!\n\nYour promo code: `%s`\n\nEnter it in the app.",
		msgCodeIssued:     "🎉 Congratulations! All tasks are done!\n\nYour promo code: `%s`\n\nEnter it in the app and get %d coins!",
		msgCheckUnmet:     "❌ These tasks are not done yet:\n\n%s\nComplete them and press ✅ Check again.",
		msgButtonCheck:    "✅ Check",
		msgButtonClaim:    "📨 I sent the request",
		msgButtonRequest:  "📨 Join request %d",
		msgClaimRecorded:  "📨 Request to %s noted. Left to confirm: %d",
		msgClaimAlready:   "Request to %s is already noted.",
		msgClaimNone:      "There are no join requests left to confirm.",
		msgErrorRetry:     "⚠️ Something went wrong. Please try again in a moment.",
		msgCheckingToast:  "⏳ Checking...",
		msgUnknownCommand: "Send /start to see your tasks.",
	},
	language.Russian: {
		msgStartIntro:     "👋 Привет, %s!\n\nВыполните задания ниже, чтобы получить промокод. Подпишитесь на каналы или отправьте заявку, затем нажмите ✅ Проверить.",
		msgStartEmpty:     "Сейчас заданий нет. Загляните позже!",
		msgCodeAlready:    "✅ Вы уже выполнили все задания!\n\nВаш промокод: `%s`\n\nВведите его в приложении.",
		msgCodeIssued:     "🎉 Поздравляем! Все задания выполнены!\n\nВаш промокод: `%s`\n\nВведите его в приложении и получите %d монет!",
		msgCheckUnmet:     "❌ Эти задания ещё не выполнены:\n\n%s\nВыполните их и снова нажмите ✅ Проверить.",
		msgButtonCheck:    "✅ Проверить",
		msgButtonClaim:    "📨 Я отправил заявку",
		msgButtonRequest:  "📨 Заявка %d",
		msgClaimRecorded:  "📨 Заявка в %s отмечена. Осталось подтвердить: %d",
		msgClaimAlready:   "Заявка в %s уже отмечена.",
		msgClaimNone:      "Больше нет заявок для подтверждения.",
		msgErrorRetry:     "⚠️ Что-то пошло не так. Попробуйте ещё раз чуть позже.",
		msgCheckingToast:  "⏳ Проверяем...",
		msgUnknownCommand: "Отправьте /start, чтобы увидеть задания.",
	},
	language.Uzbek: {
		msgStartIntro:     "👋 Salom, %s!\n\nPromokod olish uchun quyidagi vazifalarni bajaring. Kanallarga obuna bo'ling yoki so'rov yuboring, so'ng ✅ Tekshirish tugmasini bosing.",
		msgStartEmpty:     "Hozircha vazifalar yo'q. Keyinroq qaytib keling!",
		msgCodeAlready:    "✅ Siz barcha vazifalarni bajargansiz!\n\nSizning promokodingiz: `%s`\n\nUni ilovaga kiriting.",
		msgCodeIssued:     "🎉 Tabriklaymiz! Barcha vazifalar bajarildi!\n\nSizning promokodingiz: `%s`\n\nUni ilovaga kiriting va %d tanga oling!",
		msgCheckUnmet:     "❌ Quyidagi vazifalar hali bajarilmagan:\n\n%s\nUlarni bajarib, yana ✅ Tekshirish tugmasini bosing.",
		msgButtonCheck:    "✅ Tekshirish",
		msgButtonClaim:    "📨 So'rov yubordim",
		msgButtonRequest:  "📨 So'rov %d",
		msgClaimRecorded:  "📨 %s ga so'rov qayd etildi. Tasdiqlash uchun qoldi: %d",
		msgClaimAlready:   "%s ga so'rov allaqachon qayd etilgan.",
		msgClaimNone:      "Tasdiqlanadigan so'rovlar qolmadi.",
		msgErrorRetry:     "⚠️ Xatolik yuz berdi. Birozdan so'ng qayta urinib ko'ring.",
		msgCheckingToast:  "⏳ Tekshirilmoqda...",
		msgUnknownCommand: "Vazifalarni ko'rish uchun /start yuboring.",
	},
}

var (
	textCatalog = buildCatalog()
	matcher     = language.NewMatcher(supportedLanguages)
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(supportedLanguages[0]))
	for tag, entries := range texts {
		for key, msg := range entries {
			if err := b.SetString(tag, key, msg); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// printerFor picks the closest supported language for a Telegram language code.
func printerFor(languageCode string) *message.Printer {
	tag := supportedLanguages[0]
	if languageCode != "" {
		if parsed, err := language.Parse(languageCode); err == nil {
			_, idx, conf := matcher.Match(parsed)
			if conf != language.No {
				tag = supportedLanguages[idx]
			}
		}
	}
	return message.NewPrinter(tag, message.Catalog(textCatalog))
}
