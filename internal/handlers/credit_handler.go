package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bszymanski/aichat_bot/internal/models"
	"github.com/bszymanski/aichat_bot/internal/services"
	"github.com/bszymanski/aichat_bot/pkg/logger"
)

// HandleCreditsCommand shows the /credits status view: balance, statistics
// and the operation cost table.
func (h *HandlerManager) HandleCreditsCommand(userID int64, bot BotInterface) {
	credits, err := h.CreditRepo.GetCredits(userID)
	if err != nil {
		logger.Error("Failed to get credits", "user_id", userID, "error", err)
		bot.SendMessage(userID, "⚠️ Nie udało się pobrać stanu kredytów. Spróbuj ponownie.", nil)
		return
	}

	var b strings.Builder
	b.WriteString("*Stan kredytów*\n\n")
	fmt.Fprintf(&b, "Dostępne kredyty: *%d*\n\n", credits)

	if stats, err := h.CreditRepo.GetUserStats(userID); err == nil {
		b.WriteString("*Statystyki:*\n")
		fmt.Fprintf(&b, "▪️ Łącznie zakupione: %d kredytów\n", stats.TotalPurchased)
		fmt.Fprintf(&b, "▪️ Średnie dzienne zużycie: %d kredytów\n", int64(stats.AvgDailyUsage))
		if stats.MostExpensiveOp != "" {
			fmt.Fprintf(&b, "▪️ Najdroższa operacja: %s\n", stats.MostExpensiveOp)
		}
		b.WriteString("\n")
	}

	b.WriteString("*Koszty operacji:*\n")
	fmt.Fprintf(&b, "▪️ Wiadomość standardowa: %d kredyt\n", h.Config.Costs.MessageCost("gpt-3.5-turbo"))
	fmt.Fprintf(&b, "▪️ Wiadomość premium (GPT-4o): %d kredyty\n", h.Config.Costs.MessageCost("gpt-4o"))
	fmt.Fprintf(&b, "▪️ Wiadomość ekspercka (GPT-4): %d kredytów\n", h.Config.Costs.MessageCost("gpt-4"))
	fmt.Fprintf(&b, "▪️ Generowanie obrazu: %d-%d kredytów\n", h.Config.Costs.ImageStandard, h.Config.Costs.ImageHD)
	fmt.Fprintf(&b, "▪️ Analiza dokumentu: %d kredytów\n", h.Config.Costs.Document)
	fmt.Fprintf(&b, "▪️ Analiza zdjęcia: %d kredytów\n", h.Config.Costs.Photo)

	bot.SendMessage(userID, b.String(), CreditsMenuKeyboard())
}

// HandleBuyCommand lists purchasable packages.
func (h *HandlerManager) HandleBuyCommand(userID int64, bot BotInterface) {
	packages, err := h.CreditRepo.GetPackages()
	if err != nil {
		logger.Error("Failed to get packages", "error", err)
		bot.SendMessage(userID, "⚠️ Nie udało się pobrać pakietów. Spróbuj ponownie.", nil)
		return
	}
	if len(packages) == 0 {
		bot.SendMessage(userID, "Brak dostępnych pakietów kredytów.", nil)
		return
	}

	message := "*Zakup kredytów*\n\nWybierz pakiet. Kredyty są używane do wszystkich operacji w bocie:\n\n" +
		"▪️ Rozmowy z modelami AI\n" +
		"▪️ Generowanie obrazów\n" +
		"▪️ Analizowanie dokumentów i zdjęć\n"

	bot.SendMessage(userID, message, PackagesKeyboard(packages))
}

// HandlePurchase resolves a package callback and credits the account.
func (h *HandlerManager) HandlePurchase(userID int64, packageID uint, bot BotInterface) {
	pkg, err := h.CreditRepo.PurchaseCredits(userID, packageID)
	if err != nil {
		logger.Error("Purchase failed", "user_id", userID, "package_id", packageID, "error", err)
		bot.SendMessage(userID, "❌ Zakup nie powiódł się. Spróbuj ponownie.", nil)
		return
	}

	balance, _ := h.CreditRepo.GetCredits(userID)
	bot.SendMessage(userID, fmt.Sprintf(
		"✅ Zakupiono pakiet *%s*: +%d kredytów (%.2f PLN).\nAktualne saldo: *%d* kredytów.",
		pkg.Name, pkg.Credits, pkg.Price, balance), nil)
}

// HandleCreditAnalytics renders the depletion forecast and usage breakdown
// for the /creditstats command and the credits_stats callback.
func (h *HandlerManager) HandleCreditAnalytics(userID int64, days int, bot BotInterface) {
	forecast, err := h.Analytics.PredictDepletion(userID, days)
	if err != nil {
		logger.Error("Failed to predict depletion", "user_id", userID, "error", err)
		bot.SendMessage(userID, "⚠️ Analiza nie powiodła się. Spróbuj ponownie.", nil)
		return
	}
	if forecast == nil {
		bot.SendMessage(userID, "Za mało historii użycia, aby przygotować analizę.", nil)
		return
	}

	var b strings.Builder
	b.WriteString("📊 *Analiza kredytów*\n\n")
	fmt.Fprintf(&b, "Aktualne saldo: *%d* kredytów\n", forecast.CurrentBalance)
	fmt.Fprintf(&b, "Średnie dzienne zużycie: *%.1f* kredytów\n", forecast.AverageDailyUsage)
	if forecast.DepletionDate != nil {
		fmt.Fprintf(&b, "Przewidywane wyczerpanie: za *%d* dni (%s)\n\n",
			forecast.DaysLeft, forecast.DepletionDate.Format("2006-01-02"))
	} else {
		b.WriteString("Za mało danych do prognozy wyczerpania.\n\n")
	}

	breakdown, err := h.Analytics.UsageBreakdown(userID, days)
	if err == nil && len(breakdown) > 0 {
		b.WriteString("*Rozkład zużycia:*\n")
		b.WriteString(h.Analytics.RenderBreakdown(breakdown))
	}

	bot.SendMessage(userID, b.String(), BuyCreditsKeyboard())
}

// HandleTransactionHistory shows the recent ledger entries.
func (h *HandlerManager) HandleTransactionHistory(userID int64, bot BotInterface) {
	stats, err := h.CreditRepo.GetUserStats(userID)
	if err != nil {
		bot.SendMessage(userID, "Brak historii transakcji.", BuyCreditsKeyboard())
		return
	}

	var b strings.Builder
	b.WriteString("*Historia transakcji* (ostatnie 10):\n")
	if len(stats.History) == 0 {
		b.WriteString("\nBrak transakcji.")
	}
	for i, t := range stats.History {
		sign := "➖ -"
		if models.IsCredit(t.TransactionType) {
			sign = "➕ +"
		}
		fmt.Fprintf(&b, "\n%d. %s%d kredytów (%s)", i+1, sign, t.Amount, t.CreatedAt.Format("2006-01-02"))
		if t.Description != "" {
			fmt.Fprintf(&b, " - %s", t.Description)
		}
	}

	bot.SendMessage(userID, b.String(), BuyCreditsKeyboard())
}

// HandleExportCommand sends the transaction history as an XLSX attachment.
func (h *HandlerManager) HandleExportCommand(userID int64, bot BotInterface) {
	data, err := h.Export.TransactionsXLSX(userID, h.Config.ExportWindowDays)
	if err != nil {
		logger.Error("Export failed", "user_id", userID, "error", err)
		bot.SendMessage(userID, "⚠️ Eksport nie powiódł się. Spróbuj ponownie.", nil)
		return
	}

	caption := fmt.Sprintf("Historia transakcji z ostatnich %d dni", h.Config.ExportWindowDays)
	bot.SendDocument(userID, services.ExportFilename(userID), data, caption)
}

// HandleCreditCallback routes credit-related callback queries. Returns true
// when the callback was handled.
func (h *HandlerManager) HandleCreditCallback(userID int64, data, queryID string, bot BotInterface) bool {
	switch {
	case data == "credits_check":
		bot.AnswerCallbackQuery(queryID, "", false)
		h.HandleCreditsCommand(userID, bot)
		return true
	case data == "credits_buy":
		bot.AnswerCallbackQuery(queryID, "", false)
		h.HandleBuyCommand(userID, bot)
		return true
	case data == "credits_stats":
		bot.AnswerCallbackQuery(queryID, "Analizuję zużycie kredytów...", false)
		h.HandleCreditAnalytics(userID, 30, bot)
		return true
	case data == "credits_history":
		bot.AnswerCallbackQuery(queryID, "", false)
		h.HandleTransactionHistory(userID, bot)
		return true
	case strings.HasPrefix(data, "buy_package_"):
		bot.AnswerCallbackQuery(queryID, "", false)
		id, err := strconv.ParseUint(strings.TrimPrefix(data, "buy_package_"), 10, 32)
		if err != nil {
			bot.SendMessage(userID, "❌ Nieznany pakiet.", nil)
			return true
		}
		h.HandlePurchase(userID, uint(id), bot)
		return true
	}
	return false
}
