package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bszymanski/aichat_bot/internal/models"
	"github.com/bszymanski/aichat_bot/internal/security"
	"github.com/bszymanski/aichat_bot/pkg/logger"
)

// Admin commands manage the credit-package catalog and grant credits by
// hand. They are gated on the configured admin Telegram ID.

// HandleAddPackage handles /addpackage [id] [nazwa] [kredyty] [cena].
// id 0 creates a new package, a non-zero id updates an existing one.
func (h *HandlerManager) HandleAddPackage(userID int64, args []string, bot BotInterface) {
	if !h.Config.IsAdmin(userID) {
		bot.SendMessage(userID, "Nie masz uprawnień do tej komendy.", nil)
		return
	}
	if len(args) < 4 {
		bot.SendMessage(userID, "Użycie: /addpackage [id] [nazwa] [kredyty] [cena]", nil)
		return
	}

	id, err1 := strconv.ParseUint(args[0], 10, 32)
	name := security.SanitizeHTML(security.SanitizeString(args[1]))
	credits, err2 := strconv.ParseInt(args[2], 10, 64)
	price, err3 := strconv.ParseFloat(args[3], 64)
	if err1 != nil || err2 != nil || err3 != nil || name == "" || credits <= 0 || price <= 0 {
		bot.SendMessage(userID, "❌ Nieprawidłowe parametry pakietu.", nil)
		return
	}

	pkg := models.CreditPackage{
		Name:     name,
		Credits:  credits,
		Price:    price,
		IsActive: true,
	}

	if id > 0 {
		pkg.ID = uint(id)
		result := h.DB.Model(&models.CreditPackage{}).Where("id = ?", uint(id)).
			Updates(map[string]interface{}{
				"name":      name,
				"credits":   credits,
				"price":     price,
				"is_active": true,
			})
		if result.Error != nil || result.RowsAffected == 0 {
			bot.SendMessage(userID, fmt.Sprintf("❌ Pakiet o ID %d nie istnieje.", id), nil)
			return
		}
		bot.SendMessage(userID, fmt.Sprintf("✅ Zaktualizowano pakiet: *%s*", name), nil)
		return
	}

	if err := h.DB.Create(&pkg).Error; err != nil {
		logger.Error("Failed to create package", "error", err)
		bot.SendMessage(userID, "❌ Nie udało się dodać pakietu.", nil)
		return
	}
	bot.SendMessage(userID, fmt.Sprintf("✅ Dodano pakiet: *%s* (%d kredytów, %.2f PLN)", name, credits, price), nil)
}

// HandleListPackages handles /listpackages, including inactive ones.
func (h *HandlerManager) HandleListPackages(userID int64, bot BotInterface) {
	if !h.Config.IsAdmin(userID) {
		bot.SendMessage(userID, "Nie masz uprawnień do tej komendy.", nil)
		return
	}

	var packages []models.CreditPackage
	if err := h.DB.Order("credits ASC").Find(&packages).Error; err != nil {
		logger.Error("Failed to list packages", "error", err)
		bot.SendMessage(userID, "❌ Nie udało się pobrać pakietów.", nil)
		return
	}

	var b strings.Builder
	b.WriteString("*Pakiety kredytów:*\n")
	for _, pkg := range packages {
		status := "✅"
		if !pkg.IsActive {
			status = "🚫"
		}
		fmt.Fprintf(&b, "\n%s [%d] %s — %d kredytów, %.2f PLN", status, pkg.ID, pkg.Name, pkg.Credits, pkg.Price)
	}
	b.WriteString("\n\n/addpackage [id] [nazwa] [kredyty] [cena] - Dodaje/aktualizuje pakiet")
	b.WriteString("\n/togglepackage [id] - Włącza/wyłącza pakiet")

	bot.SendMessage(userID, b.String(), nil)
}

// HandleTogglePackage handles /togglepackage [id].
func (h *HandlerManager) HandleTogglePackage(userID int64, args []string, bot BotInterface) {
	if !h.Config.IsAdmin(userID) {
		bot.SendMessage(userID, "Nie masz uprawnień do tej komendy.", nil)
		return
	}
	if len(args) < 1 {
		bot.SendMessage(userID, "Użycie: /togglepackage [id]", nil)
		return
	}

	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		bot.SendMessage(userID, "❌ Nieprawidłowe ID pakietu.", nil)
		return
	}

	var pkg models.CreditPackage
	if err := h.DB.First(&pkg, uint(id)).Error; err != nil {
		bot.SendMessage(userID, fmt.Sprintf("❌ Pakiet o ID %d nie istnieje.", id), nil)
		return
	}

	if err := h.DB.Model(&pkg).Update("is_active", !pkg.IsActive).Error; err != nil {
		logger.Error("Failed to toggle package", "package_id", id, "error", err)
		bot.SendMessage(userID, "❌ Nie udało się zmienić stanu pakietu.", nil)
		return
	}

	state := "aktywny"
	if pkg.IsActive {
		state = "nieaktywny"
	}
	bot.SendMessage(userID, fmt.Sprintf("✅ Pakiet *%s* jest teraz %s.", pkg.Name, state), nil)
}

// HandleGrantCredits handles /addcredits [telegram_id] [kwota] [opis...],
// recording an admin grant as a normal add transaction.
func (h *HandlerManager) HandleGrantCredits(userID int64, args []string, bot BotInterface) {
	if !h.Config.IsAdmin(userID) {
		bot.SendMessage(userID, "Nie masz uprawnień do tej komendy.", nil)
		return
	}
	if len(args) < 2 {
		bot.SendMessage(userID, "Użycie: /addcredits [telegram_id] [kwota] [opis]", nil)
		return
	}

	targetID, err1 := strconv.ParseInt(args[0], 10, 64)
	amount, err2 := strconv.ParseInt(args[1], 10, 64)
	if err1 != nil || err2 != nil || amount <= 0 {
		bot.SendMessage(userID, "❌ Nieprawidłowe parametry.", nil)
		return
	}

	description := "Kredyty przyznane przez administratora"
	if len(args) > 2 {
		description = security.SanitizeString(strings.Join(args[2:], " "))
	}

	record, err := h.CreditRepo.AddCredits(targetID, amount, models.TxTypeAdd, models.CategoryOther, description)
	if err != nil {
		logger.Error("Admin grant failed", "target_id", targetID, "amount", amount, "error", err)
		bot.SendMessage(userID, "❌ Nie udało się przyznać kredytów.", nil)
		return
	}

	bot.SendMessage(userID, fmt.Sprintf(
		"✅ Przyznano %d kredytów użytkownikowi %d (saldo: %d).",
		amount, targetID, record.CreditsAfter), nil)
	bot.SendMessage(targetID, fmt.Sprintf("🎁 Otrzymałeś %d kredytów!", amount), nil)
}
