package services

import (
	"github.com/bszymanski/aichat_bot/internal/config"
	"github.com/bszymanski/aichat_bot/internal/models"
	"github.com/bszymanski/aichat_bot/internal/repositories"
	"github.com/bszymanski/aichat_bot/internal/security"
	"github.com/bszymanski/aichat_bot/pkg/errors"
	"github.com/google/uuid"
)

// ActionType identifies a billable operation in the cost table.
type ActionType string

const (
	ActionMessage  ActionType = "message"
	ActionImage    ActionType = "image"
	ActionImageHD  ActionType = "image_hd"
	ActionDocument ActionType = "document"
	ActionPhoto    ActionType = "photo"
)

// Category maps an action to the ledger category stamped on its transaction.
func (a ActionType) Category() models.Category {
	switch a {
	case ActionMessage:
		return models.CategoryMessage
	case ActionImage, ActionImageHD:
		return models.CategoryImage
	case ActionDocument:
		return models.CategoryDocument
	case ActionPhoto:
		return models.CategoryPhoto
	}
	return models.CategoryOther
}

type Decision int

const (
	DecisionProceed Decision = iota
	DecisionNeedsConfirmation
	DecisionBlocked
)

// Warning levels for the confirmation prompt.
const (
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

// Authorization is the outcome of the pre-charge check for one billable
// action. OperationID is the idempotency key the eventual settlement must
// carry; for NeedsConfirmation it travels inside the signed token as well.
type Authorization struct {
	Decision     Decision
	Cost         int64
	Balance      int64
	Shortfall    int64
	Level        string
	OperationID  string
	ConfirmToken string
}

// Settlement is the outcome of charging a completed action.
type Settlement struct {
	Transaction *models.CreditTransaction
	Balance     int64
	LowBalance  bool
}

// CreditGate is the precondition-check-and-charge sequence wrapping every
// billable action: cost lookup, balance check, cost-confirmation round trip
// for expensive operations, and charge-on-success settlement. Blocked
// attempts never produce a ledger entry.
type CreditGate struct {
	cfg     *config.Config
	credits *repositories.CreditRepository
}

func NewCreditGate(cfg *config.Config, credits *repositories.CreditRepository) *CreditGate {
	return &CreditGate{cfg: cfg, credits: credits}
}

// Cost resolves the credit cost of an action; message costs depend on model.
func (g *CreditGate) Cost(action ActionType, model string) int64 {
	switch action {
	case ActionMessage:
		return g.cfg.Costs.MessageCost(model)
	case ActionImage:
		return g.cfg.Costs.ImageStandard
	case ActionImageHD:
		return g.cfg.Costs.ImageHD
	case ActionDocument:
		return g.cfg.Costs.Document
	case ActionPhoto:
		return g.cfg.Costs.Photo
	}
	return g.cfg.Costs.MessageDefault
}

// Authorize checks the balance against the action cost. Insufficient balance
// blocks the action; a cost at or above the warning thresholds (absolute, or
// relative to the remaining balance) requires explicit confirmation via a
// signed pending-action token.
func (g *CreditGate) Authorize(userID int64, action ActionType, model string) (*Authorization, error) {
	cost := g.Cost(action, model)

	balance, err := g.credits.GetCredits(userID)
	if err != nil {
		return nil, err
	}

	auth := &Authorization{
		Cost:    cost,
		Balance: balance,
	}

	if balance < cost {
		auth.Decision = DecisionBlocked
		auth.Shortfall = cost - balance
		return auth, nil
	}

	auth.OperationID = uuid.NewString()
	auth.Level = g.warningLevel(cost, balance)
	if auth.Level != "" {
		token, err := security.GeneratePendingActionToken(
			userID, string(action), model, cost, auth.OperationID,
			g.cfg.TokenSecret, g.cfg.PendingActionTTL,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to sign pending action")
		}
		auth.Decision = DecisionNeedsConfirmation
		auth.ConfirmToken = token
		return auth, nil
	}

	auth.Decision = DecisionProceed
	return auth, nil
}

// Confirm validates a pending-action token from the confirmation round trip.
func (g *CreditGate) Confirm(token string, userID int64) (*security.PendingActionClaims, error) {
	claims, err := security.ValidatePendingActionToken(token, g.cfg.TokenSecret)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnauthorized, "invalid or expired confirmation")
	}
	if claims.TelegramID != userID {
		return nil, errors.New(errors.ErrCodeUnauthorized, "confirmation does not belong to this user")
	}
	return claims, nil
}

// Settle charges the user for a completed action. The operationID makes
// retried settlements idempotent: a repeated key reports the original
// transaction instead of charging again.
func (g *CreditGate) Settle(userID int64, action ActionType, cost int64, operationID, description string) (*Settlement, error) {
	record, err := g.credits.DeductCredits(userID, cost, action.Category(), description, operationID)
	if err != nil && !errors.HasCode(err, errors.ErrCodeAlreadyExists) {
		return nil, err
	}

	return &Settlement{
		Transaction: record,
		Balance:     record.CreditsAfter,
		LowBalance:  record.CreditsAfter < g.cfg.LowBalanceThreshold,
	}, nil
}

func (g *CreditGate) warningLevel(cost, balance int64) string {
	switch {
	case cost >= g.cfg.CostCriticalCredits || cost*2 >= balance:
		return LevelCritical
	case cost >= g.cfg.CostWarningCredits || cost*5 >= balance:
		return LevelWarning
	}
	return ""
}
