package repositories

import (
	"testing"
	"time"

	"github.com/bszymanski/aichat_bot/internal/models"
	"github.com/bszymanski/aichat_bot/pkg/errors"
)

func TestUpsertUser(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))

	user := &models.User{
		TelegramID:   100,
		FirstName:    "Jan",
		Username:     "jan_k",
		LanguageCode: "pl",
		LastActivity: time.Now().UTC(),
	}
	if err := repo.UpsertUser(user); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}

	// Second contact refreshes profile fields in place
	updated := &models.User{
		TelegramID:   100,
		FirstName:    "Janek",
		Username:     "jan_k2",
		LastActivity: time.Now().UTC(),
	}
	if err := repo.UpsertUser(updated); err != nil {
		t.Fatalf("UpsertUser() second call error = %v", err)
	}

	got, err := repo.GetUserByTelegramID(100)
	if err != nil {
		t.Fatalf("GetUserByTelegramID() error = %v", err)
	}
	if got.FirstName != "Janek" {
		t.Errorf("FirstName = %q, want %q", got.FirstName, "Janek")
	}
	if got.Username != "jan_k2" {
		t.Errorf("Username = %q, want %q", got.Username, "jan_k2")
	}

	var count int64
	repo.db.Model(&models.User{}).Where("telegram_id = ?", 100).Count(&count)
	if count != 1 {
		t.Errorf("user rows = %d, want 1", count)
	}
}

func TestGetUserByTelegramID_NotFound(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))

	_, err := repo.GetUserByTelegramID(404)
	if err == nil {
		t.Fatal("GetUserByTelegramID() expected error, got nil")
	}
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("error code = %v, want NOT_FOUND", err)
	}
}

func TestUpdateSelectedModel(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))

	user := &models.User{TelegramID: 100, FirstName: "Jan", LastActivity: time.Now().UTC()}
	if err := repo.UpsertUser(user); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}

	if err := repo.UpdateSelectedModel(100, "claude-3-5-sonnet"); err != nil {
		t.Fatalf("UpdateSelectedModel() error = %v", err)
	}

	got, err := repo.GetUserByTelegramID(100)
	if err != nil {
		t.Fatalf("GetUserByTelegramID() error = %v", err)
	}
	if got.SelectedModel != "claude-3-5-sonnet" {
		t.Errorf("SelectedModel = %q, want %q", got.SelectedModel, "claude-3-5-sonnet")
	}
}
