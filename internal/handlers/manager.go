package handlers

import (
	"strings"

	"github.com/bszymanski/aichat_bot/internal/config"
	"github.com/bszymanski/aichat_bot/internal/llm"
	"github.com/bszymanski/aichat_bot/internal/repositories"
	"github.com/bszymanski/aichat_bot/internal/services"
	"gorm.io/gorm"
)

// Bot interface to avoid circular dependency with the telegram package
type BotInterface interface {
	SendMessage(chatID int64, text string, keyboard interface{}) int
	EditMessage(chatID int64, messageID int, text string, keyboard interface{})
	SendPhotoURL(chatID int64, url string, caption string)
	SendDocument(chatID int64, filename string, data []byte, caption string)
	AnswerCallbackQuery(queryID string, text string, showAlert bool)
}

// UserSession holds per-user conversation state, including the pending
// cost-confirmation round trip.
type UserSession struct {
	State string
	Data  map[string]interface{}
}

const (
	StateNone            = ""
	StateAwaitingConfirm = "awaiting_confirm"
)

// Session data keys for a pending billable action
const (
	SessionPendingToken  = "pending_token"
	SessionPendingPrompt = "pending_prompt"
	SessionPendingData   = "pending_data"
	SessionPendingName   = "pending_name"
	SessionPendingMime   = "pending_mime"
)

type HandlerManager struct {
	Config     *config.Config
	DB         *gorm.DB
	UserRepo   *repositories.UserRepository
	CreditRepo *repositories.CreditRepository
	ConvRepo   *repositories.ConversationRepository
	Analytics  *services.AnalyticsService
	Gate       *services.CreditGate
	Export     *services.ExportService

	OpenAIChat    llm.ChatClient
	AnthropicChat llm.ChatClient
	Vision        llm.VisionClient
	Images        llm.ImageClient
}

func NewHandlerManager(
	cfg *config.Config,
	db *gorm.DB,
	userRepo *repositories.UserRepository,
	creditRepo *repositories.CreditRepository,
	convRepo *repositories.ConversationRepository,
	analytics *services.AnalyticsService,
	gate *services.CreditGate,
	export *services.ExportService,
	openAIChat llm.ChatClient,
	anthropicChat llm.ChatClient,
	vision llm.VisionClient,
	images llm.ImageClient,
) *HandlerManager {
	return &HandlerManager{
		Config:        cfg,
		DB:            db,
		UserRepo:      userRepo,
		CreditRepo:    creditRepo,
		ConvRepo:      convRepo,
		Analytics:     analytics,
		Gate:          gate,
		Export:        export,
		OpenAIChat:    openAIChat,
		AnthropicChat: anthropicChat,
		Vision:        vision,
		Images:        images,
	}
}

// chatClientFor routes a model name to its provider client.
func (h *HandlerManager) chatClientFor(model string) llm.ChatClient {
	if strings.HasPrefix(model, "claude") && h.AnthropicChat != nil {
		return h.AnthropicChat
	}
	return h.OpenAIChat
}

// selectedModel resolves the user's chat model, falling back to the default.
func (h *HandlerManager) selectedModel(userID int64) string {
	user, err := h.UserRepo.GetUserByTelegramID(userID)
	if err == nil && user.SelectedModel != "" {
		return user.SelectedModel
	}
	return h.Config.DefaultModel
}

// ClearPending discards a pending cost confirmation. A stale confirm button
// pressed afterwards finds no token and does nothing.
func (s *UserSession) ClearPending() {
	s.State = StateNone
	delete(s.Data, SessionPendingToken)
	delete(s.Data, SessionPendingPrompt)
	delete(s.Data, SessionPendingData)
	delete(s.Data, SessionPendingName)
	delete(s.Data, SessionPendingMime)
}
