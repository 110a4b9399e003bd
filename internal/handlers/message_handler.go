package handlers

import (
	"context"
	"fmt"

	"github.com/bszymanski/aichat_bot/internal/llm"
	"github.com/bszymanski/aichat_bot/internal/models"
	"github.com/bszymanski/aichat_bot/internal/security"
	"github.com/bszymanski/aichat_bot/internal/services"
	"github.com/bszymanski/aichat_bot/pkg/logger"
)

// HandleChatMessage runs one chat message through the credit gate and, when
// allowed, through the selected model. The charge happens only after the
// provider call succeeds; a failed call costs nothing.
func (h *HandlerManager) HandleChatMessage(userID int64, text string, session *UserSession, bot BotInterface) {
	model := h.selectedModel(userID)
	prompt := security.SanitizeString(text)
	if prompt == "" {
		return
	}

	auth, err := h.Gate.Authorize(userID, services.ActionMessage, model)
	if err != nil {
		logger.Error("Gate authorization failed", "user_id", userID, "error", err)
		bot.SendMessage(userID, "⚠️ Wystąpił błąd. Spróbuj ponownie.", nil)
		return
	}

	switch auth.Decision {
	case services.DecisionBlocked:
		h.sendBlockedNotice(userID, auth, "Wiadomość AI", bot)
	case services.DecisionNeedsConfirmation:
		session.State = StateAwaitingConfirm
		session.Data[SessionPendingToken] = auth.ConfirmToken
		session.Data[SessionPendingPrompt] = prompt
		h.sendCostConfirmation(userID, auth, "Wiadomość AI", bot)
	case services.DecisionProceed:
		h.executeChat(userID, prompt, model, auth.Cost, auth.OperationID, bot)
	}
}

// HandlePendingConfirm resumes the action stored in the session after the
// user pressed the confirm button. The signed token pins user, action, cost
// and idempotency key.
func (h *HandlerManager) HandlePendingConfirm(userID int64, session *UserSession, queryID string, bot BotInterface) {
	tokenStr, _ := session.Data[SessionPendingToken].(string)
	if tokenStr == "" {
		bot.AnswerCallbackQuery(queryID, "Brak oczekującej operacji.", true)
		return
	}

	claims, err := h.Gate.Confirm(tokenStr, userID)
	if err != nil {
		logger.Warn("Pending action confirmation rejected", "user_id", userID, "error", err)
		session.ClearPending()
		bot.AnswerCallbackQuery(queryID, "Potwierdzenie wygasło. Spróbuj ponownie.", true)
		return
	}

	bot.AnswerCallbackQuery(queryID, "", false)

	prompt, _ := session.Data[SessionPendingPrompt].(string)
	data, _ := session.Data[SessionPendingData].([]byte)
	fileName, _ := session.Data[SessionPendingName].(string)
	mimeType, _ := session.Data[SessionPendingMime].(string)
	session.ClearPending()

	switch services.ActionType(claims.Action) {
	case services.ActionMessage:
		h.executeChat(userID, prompt, claims.Model, claims.Cost, claims.OperationID, bot)
	case services.ActionImage, services.ActionImageHD:
		quality := "standard"
		if services.ActionType(claims.Action) == services.ActionImageHD {
			quality = "hd"
		}
		h.executeImageGeneration(userID, prompt, quality, claims.Cost, claims.OperationID, bot)
	case services.ActionDocument:
		h.executeDocumentAnalysis(userID, fileName, data, claims.Cost, claims.OperationID, bot)
	case services.ActionPhoto:
		h.executePhotoAnalysis(userID, data, mimeType, claims.Cost, claims.OperationID, bot)
	default:
		bot.SendMessage(userID, "❌ Nieznana operacja.", nil)
	}
}

// HandlePendingCancel discards the pending action. Nothing was charged.
func (h *HandlerManager) HandlePendingCancel(userID int64, session *UserSession, queryID string, bot BotInterface) {
	session.ClearPending()
	bot.AnswerCallbackQuery(queryID, "", false)
	bot.SendMessage(userID, "Operacja anulowana. Nie pobrano kredytów.", nil)
}

// HandleNewChat starts a fresh conversation thread; later messages no longer
// carry the previous thread's context.
func (h *HandlerManager) HandleNewChat(userID int64, bot BotInterface) {
	if _, err := h.ConvRepo.StartConversation(userID); err != nil {
		logger.Error("Failed to start conversation", "user_id", userID, "error", err)
		bot.SendMessage(userID, "⚠️ Nie udało się rozpocząć nowej rozmowy. Spróbuj ponownie.", nil)
		return
	}
	bot.SendMessage(userID, "🆕 Rozpoczęto nową rozmowę. Poprzedni kontekst został wyczyszczony.", nil)
}

func (h *HandlerManager) executeChat(userID int64, prompt, model string, cost int64, operationID string, bot BotInterface) {
	messages, conv := h.chatContext(userID, prompt)

	ctx, cancel := context.WithTimeout(context.Background(), llmCallTimeout)
	defer cancel()

	reply, err := h.chatClientFor(model).Complete(ctx, model, messages)
	if err != nil {
		logger.Error("Chat completion failed", "user_id", userID, "model", model, "error", err)
		bot.SendMessage(userID, "⚠️ Operacja nie powiodła się. Nie pobrano kredytów. Spróbuj ponownie.", nil)
		return
	}

	bot.SendMessage(userID, reply, nil)

	if conv != nil {
		if _, err := h.ConvRepo.SaveMessage(conv.ID, userID, reply, false, model); err != nil {
			logger.Warn("Failed to save assistant reply", "user_id", userID, "error", err)
		}
	}

	h.settle(userID, services.ActionMessage, cost, operationID,
		fmt.Sprintf("Wiadomość (%s)", model), bot)
}

// chatContext persists the user's turn and returns the capped history window
// for the completion call. A storage failure degrades to single-message
// context rather than blocking the reply.
func (h *HandlerManager) chatContext(userID int64, prompt string) ([]llm.Message, *models.Conversation) {
	conv, err := h.ConvRepo.ActiveConversation(userID)
	if err != nil {
		logger.Warn("Failed to resolve conversation", "user_id", userID, "error", err)
		return []llm.Message{{Role: "user", Content: prompt}}, nil
	}

	if _, err := h.ConvRepo.SaveMessage(conv.ID, userID, prompt, true, ""); err != nil {
		logger.Warn("Failed to save user message", "user_id", userID, "error", err)
		return []llm.Message{{Role: "user", Content: prompt}}, conv
	}

	history, err := h.ConvRepo.History(conv.ID, h.Config.MaxContextMessages)
	if err != nil {
		logger.Warn("Failed to load conversation history", "user_id", userID, "error", err)
		return []llm.Message{{Role: "user", Content: prompt}}, conv
	}

	return buildChatContext(history, prompt), conv
}

// buildChatContext maps stored turns onto completion roles. The just-saved
// prompt is normally the last history entry; when the window dropped it, the
// prompt is appended so the model always sees the current question.
func buildChatContext(history []models.ChatMessage, prompt string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		role := "assistant"
		if m.IsFromUser {
			role = "user"
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}

	if len(messages) == 0 || messages[len(messages)-1].Content != prompt {
		messages = append(messages, llm.Message{Role: "user", Content: prompt})
	}

	return messages
}

// settle charges a completed operation and attaches the low-balance notice
// when the remaining balance drops below the threshold.
func (h *HandlerManager) settle(userID int64, action services.ActionType, cost int64, operationID, description string, bot BotInterface) {
	settlement, err := h.Gate.Settle(userID, action, cost, operationID, description)
	if err != nil {
		// The operation already ran; log loudly, never charge blind.
		logger.Error("Settlement failed after completed operation",
			"user_id", userID, "operation_id", operationID, "cost", cost, "error", err)
		return
	}

	if settlement.LowBalance {
		bot.SendMessage(userID, fmt.Sprintf(
			"*Uwaga: Niski stan kredytów!* Pozostało tylko *%d* kredytów.", settlement.Balance),
			BuyCreditsKeyboard())
	}
}

func (h *HandlerManager) sendBlockedNotice(userID int64, auth *services.Authorization, operation string, bot BotInterface) {
	message := fmt.Sprintf(
		"*Niewystarczające kredyty*\n\n"+
			"▪️ Operacja: %s\n"+
			"▪️ Koszt operacji: *%d* kredytów\n"+
			"▪️ Twój stan kredytów: *%d* kredytów\n\n"+
			"Potrzebujesz jeszcze *%d* kredytów.",
		operation, auth.Cost, auth.Balance, auth.Shortfall)
	bot.SendMessage(userID, message, BuyCreditsKeyboard())
}

func (h *HandlerManager) sendCostConfirmation(userID int64, auth *services.Authorization, operation string, bot BotInterface) {
	header := "⚠️ *Potwierdzenie kosztu*"
	if auth.Level == services.LevelCritical {
		header = "🔴 *Potwierdzenie kosztu*"
	}
	message := fmt.Sprintf(
		"%s\n\n"+
			"Operacja *%s* kosztuje *%d* kredytów przy saldzie *%d*.\n\n"+
			"Czy chcesz kontynuować?",
		header, operation, auth.Cost, auth.Balance)
	bot.SendMessage(userID, message, ConfirmKeyboard())
}
