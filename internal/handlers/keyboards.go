package handlers

import (
	"fmt"

	"github.com/bszymanski/aichat_bot/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func BuyCreditsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💳 Kup kredyty", "credits_buy"),
		),
	)
}

func CreditsMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💳 Kup kredyty", "credits_buy"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Analiza zużycia", "credits_stats"),
			tgbotapi.NewInlineKeyboardButtonData("📜 Historia", "credits_history"),
		),
	)
}

func PackagesKeyboard(packages []models.CreditPackage) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(packages))
	for _, pkg := range packages {
		label := fmt.Sprintf("%s — %d kredytów (%.2f PLN)", pkg.Name, pkg.Credits, pkg.Price)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("buy_package_%d", pkg.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func ModelsKeyboard(models []string, selected string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(models))
	for _, m := range models {
		label := m
		if m == selected {
			label = "✅ " + m
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "model_"+m),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func ConfirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Kontynuuj", "confirm_op"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Anuluj", "cancel_op"),
		),
	)
}
