package telegram

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bszymanski/aichat_bot/internal/config"
	"github.com/bszymanski/aichat_bot/internal/handlers"
	"github.com/bszymanski/aichat_bot/internal/llm"
	"github.com/bszymanski/aichat_bot/internal/repositories"
	"github.com/bszymanski/aichat_bot/internal/services"
	"github.com/bszymanski/aichat_bot/pkg/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"
)

const numWorkers = 10

type Bot struct {
	api      *tgbotapi.BotAPI
	config   *config.Config
	db       *gorm.DB
	handlers *handlers.HandlerManager

	// User sessions for conversation state
	sessions map[int64]*handlers.UserSession
	mu       sync.RWMutex

	// Worker pool; updates are hashed by user ID so each user's
	// updates are processed in order
	workerChans []chan tgbotapi.Update
}

func InitBot(cfg *config.Config, db *gorm.DB) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	if cfg.AppEnv == "development" {
		api.Debug = true
	}

	logger.Info("Authorized on account", "username", api.Self.UserName)

	userRepo := repositories.NewUserRepository(db)
	creditRepo := repositories.NewCreditRepository(db)
	convRepo := repositories.NewConversationRepository(db)
	analytics := services.NewAnalyticsService(creditRepo)
	gate := services.NewCreditGate(cfg, creditRepo)
	export := services.NewExportService(creditRepo)

	var openAI *llm.OpenAIClient
	var anthropic *llm.AnthropicClient
	var openAIChat, anthropicChat llm.ChatClient
	var vision llm.VisionClient
	var images llm.ImageClient

	if cfg.OpenAIAPIKey != "" {
		openAI = llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.ImageModel)
		openAIChat = openAI
		vision = openAI
		images = openAI
	}
	if cfg.AnthropicAPIKey != "" {
		anthropic = llm.NewAnthropicClient(cfg.AnthropicAPIKey)
		anthropicChat = anthropic
		if vision == nil {
			vision = anthropic
		}
	}

	handlerMgr := handlers.NewHandlerManager(cfg, db, userRepo, creditRepo, convRepo,
		analytics, gate, export, openAIChat, anthropicChat, vision, images)

	bot := &Bot{
		api:         api,
		config:      cfg,
		db:          db,
		handlers:    handlerMgr,
		sessions:    make(map[int64]*handlers.UserSession),
		workerChans: make([]chan tgbotapi.Update, numWorkers),
	}

	for i := 0; i < numWorkers; i++ {
		bot.workerChans[i] = make(chan tgbotapi.Update, 100)
		go bot.startWorker(bot.workerChans[i])
	}

	go bot.startUpdateListener()

	return bot, nil
}

func (b *Bot) startUpdateListener() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	for {
		logger.Info("Starting update listener...")
		updates := b.api.GetUpdatesChan(u)

		for update := range updates {
			var userID int64
			if update.Message != nil {
				userID = update.Message.From.ID
			} else if update.CallbackQuery != nil {
				userID = update.CallbackQuery.From.ID
			}

			if userID != 0 {
				// Hashed dispatch keeps per-user ordering
				workerIdx := userID % int64(len(b.workerChans))
				if workerIdx < 0 {
					workerIdx = -workerIdx
				}
				b.workerChans[workerIdx] <- update
			} else {
				go b.handleUpdate(update)
			}
		}

		logger.Warn("Update channel closed. Restarting in 5 seconds...")
		time.Sleep(5 * time.Second)
	}
}

func (b *Bot) startWorker(ch chan tgbotapi.Update) {
	for update := range ch {
		b.handleUpdate(update)
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in handleUpdate", "error", r)
		}
	}()

	if update.Message != nil {
		b.handleMessage(update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallbackQuery(update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	userID := message.From.ID

	logger.Debug("Received message",
		"user_id", userID,
		"text", message.Text,
		"has_photo", message.Photo != nil,
		"has_document", message.Document != nil,
	)

	session := b.getSession(userID)
	b.handlers.UserRepo.UpdateLastActivity(userID)

	if message.IsCommand() {
		b.handleCommand(message, session)
		return
	}

	if message.Document != nil {
		data, err := b.downloadFile(message.Document.FileID)
		if err != nil {
			logger.Error("Failed to download document", "user_id", userID, "error", err)
			b.sendMessage(userID, "❌ Nie udało się pobrać dokumentu.", nil)
			return
		}
		b.handlers.HandleDocument(userID, message.Document.FileName,
			int64(message.Document.FileSize), data, session, b)
		return
	}

	if len(message.Photo) > 0 {
		// Last entry is the largest size
		photo := message.Photo[len(message.Photo)-1]
		data, err := b.downloadFile(photo.FileID)
		if err != nil {
			logger.Error("Failed to download photo", "user_id", userID, "error", err)
			b.sendMessage(userID, "❌ Nie udało się pobrać zdjęcia.", nil)
			return
		}
		b.handlers.HandlePhoto(userID, int64(photo.FileSize), data, "image/jpeg", session, b)
		return
	}

	if message.Text != "" {
		// A fresh message while a confirmation is pending supersedes it;
		// drop the token too so the stale confirm button is inert
		if session.State == handlers.StateAwaitingConfirm {
			session.ClearPending()
		}
		b.handlers.HandleChatMessage(userID, message.Text, session, b)
		return
	}

	b.sendMessage(userID, "🤔 Nie rozumiem. Wyślij wiadomość tekstową, dokument lub zdjęcie. /help", nil)
}

func (b *Bot) handleCommand(message *tgbotapi.Message, session *handlers.UserSession) {
	userID := message.From.ID
	args := strings.Fields(message.CommandArguments())

	switch message.Command() {
	case "start":
		b.clearSession(userID)
		username := ""
		if message.From.UserName != "" {
			username = message.From.UserName
		}
		b.handlers.HandleStart(userID, message.From.FirstName, username, message.From.LanguageCode, b)

	case "help":
		b.handlers.HandleHelp(userID, b)

	case "cancel":
		b.clearSession(userID)
		b.sendMessage(userID, "✅ Anulowano.", nil)

	case "newchat":
		b.handlers.HandleNewChat(userID, b)

	case "credits", "balance":
		b.handlers.HandleCreditsCommand(userID, b)

	case "buy":
		b.handlers.HandleBuyCommand(userID, b)

	case "creditstats", "stats":
		b.handlers.HandleCreditAnalytics(userID, 30, b)

	case "transactions", "history":
		b.handlers.HandleTransactionHistory(userID, b)

	case "export":
		b.handlers.HandleExportCommand(userID, b)

	case "model":
		b.handlers.HandleModelCommand(userID, b)

	case "image":
		prompt := strings.TrimSpace(message.CommandArguments())
		if prompt == "" {
			b.sendMessage(userID, "🎨 Użycie: /image [opis obrazu]\nDodaj \"hd\" na końcu dla jakości HD.", nil)
			return
		}
		quality := "standard"
		if lower := strings.ToLower(prompt); strings.HasSuffix(lower, " hd") {
			quality = "hd"
			prompt = strings.TrimSpace(prompt[:len(prompt)-3])
		}
		b.handlers.HandleImageGeneration(userID, prompt, quality, session, b)

	case "addpackage":
		b.handlers.HandleAddPackage(userID, args, b)

	case "listpackages":
		b.handlers.HandleListPackages(userID, b)

	case "togglepackage":
		b.handlers.HandleTogglePackage(userID, args, b)

	case "addcredits":
		b.handlers.HandleGrantCredits(userID, args, b)

	default:
		b.sendMessage(userID, "🤔 Nieznana komenda. /help", nil)
	}
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	data := query.Data
	userID := query.From.ID

	logger.Debug("Callback query", "data", data, "user_id", userID)

	// Keep the chat clean once a choice is made
	if query.Message != nil {
		edit := tgbotapi.NewEditMessageReplyMarkup(query.Message.Chat.ID, query.Message.MessageID,
			tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
		b.api.Request(edit)
	}

	session := b.getSession(userID)

	switch {
	case data == "confirm_op":
		b.handlers.HandlePendingConfirm(userID, session, query.ID, b)

	case data == "cancel_op":
		b.handlers.HandlePendingCancel(userID, session, query.ID, b)

	case strings.HasPrefix(data, "model_"):
		b.handlers.HandleModelSelection(userID, strings.TrimPrefix(data, "model_"), query.ID, b)

	default:
		if !b.handlers.HandleCreditCallback(userID, data, query.ID, b) {
			b.AnswerCallbackQuery(query.ID, "", false)
		}
	}
}

// downloadFile fetches a Telegram file by ID, capped at the configured
// upload limit.
func (b *Bot) downloadFile(fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file URL: %w", err)
	}

	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, b.config.UploadMaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > b.config.UploadMaxSize {
		return nil, fmt.Errorf("file exceeds upload limit of %d bytes", b.config.UploadMaxSize)
	}
	return data, nil
}

func (b *Bot) getSession(userID int64) *handlers.UserSession {
	b.mu.Lock()
	defer b.mu.Unlock()

	if session, exists := b.sessions[userID]; exists {
		return session
	}

	session := &handlers.UserSession{
		State: handlers.StateNone,
		Data:  make(map[string]interface{}),
	}
	b.sessions[userID] = session
	return session
}

func (b *Bot) clearSession(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sessions[userID] = &handlers.UserSession{
		State: handlers.StateNone,
		Data:  make(map[string]interface{}),
	}
}

func (b *Bot) sendMessage(chatID int64, text string, keyboard interface{}) int {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	switch kb := keyboard.(type) {
	case tgbotapi.ReplyKeyboardMarkup:
		msg.ReplyMarkup = kb
	case tgbotapi.InlineKeyboardMarkup:
		msg.ReplyMarkup = kb
	case tgbotapi.ReplyKeyboardRemove:
		msg.ReplyMarkup = kb
	}

	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		sentMsg, err := b.api.Send(msg)
		if err != nil {
			logger.Error("Failed to send message", "error", err, "chat_id", chatID, "attempt", i+1)

			if strings.Contains(err.Error(), "connection reset") ||
				strings.Contains(err.Error(), "timeout") ||
				strings.Contains(err.Error(), "network is unreachable") {
				time.Sleep(time.Duration(i+1) * time.Second)
				continue
			}
			return 0
		}
		return sentMsg.MessageID
	}
	return 0
}

func (b *Bot) SendMessage(chatID int64, text string, keyboard interface{}) int {
	return b.sendMessage(chatID, text, keyboard)
}

func (b *Bot) EditMessage(chatID int64, messageID int, text string, keyboard interface{}) {
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if keyboard != nil {
		if kb, ok := keyboard.(tgbotapi.InlineKeyboardMarkup); ok {
			msg.ReplyMarkup = &kb
		}
	}

	if _, err := b.api.Send(msg); err != nil {
		logger.Error("Failed to edit message", "error", err, "chat_id", chatID, "message_id", messageID)
	}
}

func (b *Bot) SendPhotoURL(chatID int64, url string, caption string) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(url))
	photo.Caption = caption

	if _, err := b.api.Send(photo); err != nil {
		logger.Error("Failed to send photo", "error", err, "chat_id", chatID)
	}
}

func (b *Bot) SendDocument(chatID int64, filename string, data []byte, caption string) {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	doc.Caption = caption

	if _, err := b.api.Send(doc); err != nil {
		logger.Error("Failed to send document", "error", err, "chat_id", chatID)
	}
}

func (b *Bot) AnswerCallbackQuery(queryID string, text string, showAlert bool) {
	callback := tgbotapi.NewCallback(queryID, text)
	callback.ShowAlert = showAlert
	if _, err := b.api.Request(callback); err != nil {
		logger.Error("Failed to answer callback query", "error", err, "query_id", queryID)
	}
}

func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
	logger.Info("Bot stopped receiving updates")
}
