package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/bszymanski/aichat_bot/internal/security"
	"github.com/bszymanski/aichat_bot/internal/services"
	"github.com/bszymanski/aichat_bot/pkg/logger"
)

const llmCallTimeout = 120 * time.Second

// HandleImageGeneration runs /image through the credit gate. HD quality
// costs more and is requested by ending the prompt with "hd".
func (h *HandlerManager) HandleImageGeneration(userID int64, prompt, quality string, session *UserSession, bot BotInterface) {
	prompt = security.SanitizeString(prompt)
	if prompt == "" {
		bot.SendMessage(userID, "Podaj opis obrazu: /image <opis>", nil)
		return
	}

	action := services.ActionImage
	if quality == "hd" {
		action = services.ActionImageHD
	}

	auth, err := h.Gate.Authorize(userID, action, "")
	if err != nil {
		logger.Error("Gate authorization failed", "user_id", userID, "error", err)
		bot.SendMessage(userID, "⚠️ Wystąpił błąd. Spróbuj ponownie.", nil)
		return
	}

	switch auth.Decision {
	case services.DecisionBlocked:
		h.sendBlockedNotice(userID, auth, "Generowanie obrazu", bot)
	case services.DecisionNeedsConfirmation:
		session.State = StateAwaitingConfirm
		session.Data[SessionPendingToken] = auth.ConfirmToken
		session.Data[SessionPendingPrompt] = prompt
		h.sendCostConfirmation(userID, auth, "Generowanie obrazu", bot)
	case services.DecisionProceed:
		h.executeImageGeneration(userID, prompt, quality, auth.Cost, auth.OperationID, bot)
	}
}

func (h *HandlerManager) executeImageGeneration(userID int64, prompt, quality string, cost int64, operationID string, bot BotInterface) {
	bot.SendMessage(userID, "🖌 Generuję obraz...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), llmCallTimeout)
	defer cancel()

	url, err := h.Images.Generate(ctx, prompt, quality)
	if err != nil {
		logger.Error("Image generation failed", "user_id", userID, "error", err)
		bot.SendMessage(userID, "⚠️ Generowanie obrazu nie powiodło się. Nie pobrano kredytów.", nil)
		return
	}

	bot.SendPhotoURL(userID, url, fmt.Sprintf("🖼 %s", prompt))

	action := services.ActionImage
	if quality == "hd" {
		action = services.ActionImageHD
	}
	h.settle(userID, action, cost, operationID, fmt.Sprintf("Obraz DALL-E (%s)", quality), bot)
}
