package handlers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bszymanski/aichat_bot/internal/security"
	"github.com/bszymanski/aichat_bot/internal/services"
	"github.com/bszymanski/aichat_bot/pkg/logger"
)

var allowedDocumentTypes = []string{".pdf", ".txt", ".md", ".csv", ".docx"}

var documentMimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

func documentMimeType(fileName string) string {
	if mime, ok := documentMimeTypes[strings.ToLower(filepath.Ext(fileName))]; ok {
		return mime
	}
	return "application/octet-stream"
}

// HandleDocument runs an uploaded document through the credit gate and the
// vision analysis client.
func (h *HandlerManager) HandleDocument(userID int64, fileName string, fileSize int64, data []byte, session *UserSession, bot BotInterface) {
	if !security.ValidateFileType(fileName, allowedDocumentTypes) {
		bot.SendMessage(userID, "❌ Nieobsługiwany typ pliku. Obsługiwane: PDF, TXT, MD, CSV, DOCX.", nil)
		return
	}
	if !security.ValidateFileSize(fileSize, h.Config.UploadMaxSize) {
		bot.SendMessage(userID, "❌ Plik jest za duży.", nil)
		return
	}

	auth, err := h.Gate.Authorize(userID, services.ActionDocument, "")
	if err != nil {
		logger.Error("Gate authorization failed", "user_id", userID, "error", err)
		bot.SendMessage(userID, "⚠️ Wystąpił błąd. Spróbuj ponownie.", nil)
		return
	}

	switch auth.Decision {
	case services.DecisionBlocked:
		h.sendBlockedNotice(userID, auth, "Analiza dokumentu", bot)
	case services.DecisionNeedsConfirmation:
		session.State = StateAwaitingConfirm
		session.Data[SessionPendingToken] = auth.ConfirmToken
		session.Data[SessionPendingData] = data
		session.Data[SessionPendingName] = fileName
		h.sendCostConfirmation(userID, auth, "Analiza dokumentu", bot)
	case services.DecisionProceed:
		h.executeDocumentAnalysis(userID, fileName, data, auth.Cost, auth.OperationID, bot)
	}
}

// HandlePhoto runs an uploaded photo through the credit gate and the vision
// analysis client.
func (h *HandlerManager) HandlePhoto(userID int64, fileSize int64, data []byte, mimeType string, session *UserSession, bot BotInterface) {
	if !security.ValidateFileSize(fileSize, h.Config.UploadMaxSize) {
		bot.SendMessage(userID, "❌ Zdjęcie jest za duże.", nil)
		return
	}

	auth, err := h.Gate.Authorize(userID, services.ActionPhoto, "")
	if err != nil {
		logger.Error("Gate authorization failed", "user_id", userID, "error", err)
		bot.SendMessage(userID, "⚠️ Wystąpił błąd. Spróbuj ponownie.", nil)
		return
	}

	switch auth.Decision {
	case services.DecisionBlocked:
		h.sendBlockedNotice(userID, auth, "Analiza zdjęcia", bot)
	case services.DecisionNeedsConfirmation:
		session.State = StateAwaitingConfirm
		session.Data[SessionPendingToken] = auth.ConfirmToken
		session.Data[SessionPendingData] = data
		session.Data[SessionPendingMime] = mimeType
		h.sendCostConfirmation(userID, auth, "Analiza zdjęcia", bot)
	case services.DecisionProceed:
		h.executePhotoAnalysis(userID, data, mimeType, auth.Cost, auth.OperationID, bot)
	}
}

func (h *HandlerManager) executeDocumentAnalysis(userID int64, fileName string, data []byte, cost int64, operationID string, bot BotInterface) {
	bot.SendMessage(userID, "🔍 Analizuję dokument...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), llmCallTimeout)
	defer cancel()

	result, err := h.Vision.Analyze(ctx, data, documentMimeType(fileName),
		"Przeanalizuj ten dokument i streść jego zawartość.")
	if err != nil {
		logger.Error("Document analysis failed", "user_id", userID, "error", err)
		bot.SendMessage(userID, "⚠️ Analiza nie powiodła się. Nie pobrano kredytów.", nil)
		return
	}

	bot.SendMessage(userID, result, nil)

	h.settle(userID, services.ActionDocument, cost, operationID,
		fmt.Sprintf("Analiza dokumentu: %s", fileName), bot)
}

func (h *HandlerManager) executePhotoAnalysis(userID int64, data []byte, mimeType string, cost int64, operationID string, bot BotInterface) {
	bot.SendMessage(userID, "🔍 Analizuję zdjęcie...", nil)

	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	ctx, cancel := context.WithTimeout(context.Background(), llmCallTimeout)
	defer cancel()

	result, err := h.Vision.Analyze(ctx, data, mimeType,
		"Opisz co znajduje się na tym zdjęciu.")
	if err != nil {
		logger.Error("Photo analysis failed", "user_id", userID, "error", err)
		bot.SendMessage(userID, "⚠️ Analiza nie powiodła się. Nie pobrano kredytów.", nil)
		return
	}

	bot.SendMessage(userID, result, nil)

	h.settle(userID, services.ActionPhoto, cost, operationID, "Analiza zdjęcia", bot)
}
