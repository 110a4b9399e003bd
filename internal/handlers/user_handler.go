package handlers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bszymanski/aichat_bot/internal/models"
	"github.com/bszymanski/aichat_bot/internal/security"
	"github.com/bszymanski/aichat_bot/pkg/logger"
)

// HandleStart registers or refreshes the user and opens their credit
// account. New users get the configured welcome credits.
func (h *HandlerManager) HandleStart(userID int64, firstName, username, languageCode string, bot BotInterface) {
	_, err := h.UserRepo.GetUserByTelegramID(userID)
	isNew := err != nil

	user := &models.User{
		TelegramID:   userID,
		FirstName:    security.SanitizeString(firstName),
		Username:     security.SanitizeString(username),
		LanguageCode: languageCode,
	}
	if err := h.UserRepo.UpsertUser(user); err != nil {
		logger.Error("Failed to upsert user", "user_id", userID, "error", err)
		bot.SendMessage(userID, "❌ Wystąpił błąd. Spróbuj ponownie później.", nil)
		return
	}

	if err := h.CreditRepo.InitAccount(userID); err != nil {
		logger.Error("Failed to init credit account", "user_id", userID, "error", err)
	}

	if isNew && h.Config.WelcomeCredits > 0 {
		if _, err := h.CreditRepo.AddCredits(userID, h.Config.WelcomeCredits,
			models.TxTypeAdd, models.CategoryOther, "Kredyty powitalne"); err != nil {
			logger.Error("Failed to grant welcome credits", "user_id", userID, "error", err)
		}
	}

	balance, _ := h.CreditRepo.GetCredits(userID)
	text := fmt.Sprintf(
		"👋 Cześć, %s!\n\n"+
			"Jestem asystentem AI. Napisz wiadomość, a odpowiem.\n\n"+
			"💰 Twoje saldo: %d kredytów\n\n"+
			"Komendy:\n"+
			"/credits - Saldo i cennik\n"+
			"/buy - Kup kredyty\n"+
			"/image [opis] - Generuj obraz\n"+
			"/model - Wybierz model AI\n"+
			"/newchat - Nowa rozmowa\n"+
			"/help - Pomoc",
		user.FirstName, balance)
	bot.SendMessage(userID, text, nil)
}

// HandleHelp sends the command reference.
func (h *HandlerManager) HandleHelp(userID int64, bot BotInterface) {
	var b strings.Builder
	b.WriteString("📖 *Dostępne komendy:*\n\n")
	b.WriteString("/credits - Saldo, statystyki i cennik\n")
	b.WriteString("/buy - Kup pakiet kredytów\n")
	b.WriteString("/creditstats - Analiza zużycia i prognoza\n")
	b.WriteString("/transactions - Historia transakcji\n")
	b.WriteString("/export - Eksport historii do XLSX\n")
	b.WriteString("/image [opis] - Generuj obraz (dodaj \"hd\" na końcu dla jakości HD)\n")
	b.WriteString("/model - Wybierz model AI\n")
	b.WriteString("/newchat - Rozpocznij nową rozmowę (czyści kontekst)\n")
	b.WriteString("/cancel - Anuluj oczekującą operację\n\n")
	b.WriteString("Możesz też wysłać dokument (PDF, TXT, MD, CSV, DOCX) lub zdjęcie do analizy.")

	if h.Config.IsAdmin(userID) {
		b.WriteString("\n\n*Komendy administratora:*\n")
		b.WriteString("/addpackage [id] [nazwa] [kredyty] [cena]\n")
		b.WriteString("/listpackages\n")
		b.WriteString("/togglepackage [id]\n")
		b.WriteString("/addcredits [telegram_id] [kwota] [opis]")
	}

	bot.SendMessage(userID, b.String(), nil)
}

// HandleModelCommand shows the chat model picker with per-message costs.
func (h *HandlerManager) HandleModelCommand(userID int64, bot BotInterface) {
	names := make([]string, 0, len(h.Config.Costs.Message))
	for name := range h.Config.Costs.Message {
		names = append(names, name)
	}
	sort.Strings(names)

	selected := h.selectedModel(userID)

	var b strings.Builder
	b.WriteString("🤖 *Wybierz model AI:*\n")
	for _, name := range names {
		fmt.Fprintf(&b, "\n• %s — %d kredyt(ów)/wiadomość", name, h.Config.Costs.Message[name])
	}
	bot.SendMessage(userID, b.String(), ModelsKeyboard(names, selected))
}

// HandleModelSelection persists the model picked from the inline keyboard.
func (h *HandlerManager) HandleModelSelection(userID int64, model, queryID string, bot BotInterface) {
	if _, ok := h.Config.Costs.Message[model]; !ok {
		bot.AnswerCallbackQuery(queryID, "Nieznany model", true)
		return
	}
	if err := h.UserRepo.UpdateSelectedModel(userID, model); err != nil {
		logger.Error("Failed to update model", "user_id", userID, "model", model, "error", err)
		bot.AnswerCallbackQuery(queryID, "Błąd zapisu", true)
		return
	}
	bot.AnswerCallbackQuery(queryID, "", false)
	bot.SendMessage(userID, fmt.Sprintf(
		"✅ Wybrano model *%s* (%d kredyt(ów)/wiadomość).",
		model, h.Config.Costs.MessageCost(model)), nil)
}
