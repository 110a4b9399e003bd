package repositories

import (
	"time"

	"github.com/bszymanski/aichat_bot/internal/models"
	"github.com/bszymanski/aichat_bot/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertUser creates the user on first contact and refreshes profile fields
// on subsequent ones.
func (r *UserRepository) UpsertUser(user *models.User) error {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"first_name", "username", "last_activity"}),
	}).Create(user)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to upsert user")
	}
	return nil
}

func (r *UserRepository) GetUserByTelegramID(telegramID int64) (*models.User, error) {
	var user models.User
	result := r.db.Where("telegram_id = ?", telegramID).First(&user)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "user not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get user")
	}

	return &user, nil
}

func (r *UserRepository) UpdateSelectedModel(telegramID int64, model string) error {
	result := r.db.Model(&models.User{}).
		Where("telegram_id = ?", telegramID).
		Update("selected_model", model)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update model")
	}
	return nil
}

func (r *UserRepository) UpdateLastActivity(telegramID int64) error {
	result := r.db.Model(&models.User{}).
		Where("telegram_id = ?", telegramID).
		Update("last_activity", time.Now().UTC())
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update activity")
	}
	return nil
}
