package repositories

import (
	"sync"
	"testing"
	"time"

	"github.com/bszymanski/aichat_bot/internal/models"
	"github.com/bszymanski/aichat_bot/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// A single connection keeps the in-memory database alive and
	// serializes concurrent transactions the way sqlite requires
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.CreditAccount{},
		&models.CreditTransaction{},
		&models.CreditPackage{},
		&models.Conversation{},
		&models.ChatMessage{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func TestInitAccount_Idempotent(t *testing.T) {
	repo := NewCreditRepository(setupTestDB(t))

	if err := repo.InitAccount(1); err != nil {
		t.Fatalf("InitAccount() error = %v", err)
	}
	if err := repo.InitAccount(1); err != nil {
		t.Fatalf("InitAccount() second call error = %v", err)
	}

	balance, err := repo.GetCredits(1)
	if err != nil {
		t.Fatalf("GetCredits() error = %v", err)
	}
	if balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}

	var count int64
	repo.db.Model(&models.CreditAccount{}).Where("user_id = ?", 1).Count(&count)
	if count != 1 {
		t.Errorf("account rows = %d, want 1", count)
	}
}

func TestGetCredits_LazyInit(t *testing.T) {
	repo := NewCreditRepository(setupTestDB(t))

	balance, err := repo.GetCredits(7)
	if err != nil {
		t.Fatalf("GetCredits() error = %v", err)
	}
	if balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}

	var count int64
	repo.db.Model(&models.CreditAccount{}).Where("user_id = ?", 7).Count(&count)
	if count != 1 {
		t.Errorf("account rows = %d, want 1", count)
	}
}

func TestAddCredits(t *testing.T) {
	repo := NewCreditRepository(setupTestDB(t))

	record, err := repo.AddCredits(1, 50, models.TxTypeAdd, models.CategoryOther, "Kredyty powitalne")
	if err != nil {
		t.Fatalf("AddCredits() error = %v", err)
	}

	if record.CreditsBefore != 0 || record.CreditsAfter != 50 {
		t.Errorf("snapshots = %d/%d, want 0/50", record.CreditsBefore, record.CreditsAfter)
	}
	if record.TransactionType != models.TxTypeAdd {
		t.Errorf("TransactionType = %q, want %q", record.TransactionType, models.TxTypeAdd)
	}

	balance, _ := repo.GetCredits(1)
	if balance != 50 {
		t.Errorf("balance = %d, want 50", balance)
	}
}

func TestAddCredits_Validation(t *testing.T) {
	repo := NewCreditRepository(setupTestDB(t))

	if _, err := repo.AddCredits(1, -5, models.TxTypeAdd, models.CategoryOther, ""); err == nil {
		t.Error("AddCredits() with negative amount expected error, got nil")
	}

	if _, err := repo.AddCredits(1, 5, models.TxTypeDeduct, models.CategoryOther, ""); err == nil {
		t.Error("AddCredits() with deduct type expected error, got nil")
	}

	// Zero amount is a no-op and logs no transaction
	record, err := repo.AddCredits(1, 0, models.TxTypeAdd, models.CategoryOther, "")
	if err != nil {
		t.Fatalf("AddCredits(0) error = %v", err)
	}
	if record != nil {
		t.Error("AddCredits(0) expected nil record")
	}

	var count int64
	repo.db.Model(&models.CreditTransaction{}).Count(&count)
	if count != 0 {
		t.Errorf("transaction rows = %d, want 0", count)
	}
}

func TestDeductCredits(t *testing.T) {
	repo := NewCreditRepository(setupTestDB(t))

	if _, err := repo.AddCredits(1, 10, models.TxTypeAdd, models.CategoryOther, "seed"); err != nil {
		t.Fatalf("AddCredits() error = %v", err)
	}

	record, err := repo.DeductCredits(1, 4, models.CategoryMessage, "Wiadomość (gpt-4o)", "")
	if err != nil {
		t.Fatalf("DeductCredits() error = %v", err)
	}

	if record.CreditsBefore != 10 || record.CreditsAfter != 6 {
		t.Errorf("snapshots = %d/%d, want 10/6", record.CreditsBefore, record.CreditsAfter)
	}
	if record.TransactionType != models.TxTypeDeduct {
		t.Errorf("TransactionType = %q, want %q", record.TransactionType, models.TxTypeDeduct)
	}
	if record.Category != models.CategoryMessage {
		t.Errorf("Category = %q, want %q", record.Category, models.CategoryMessage)
	}

	balance, _ := repo.GetCredits(1)
	if balance != 6 {
		t.Errorf("balance = %d, want 6", balance)
	}
}

func TestDeductCredits_Insufficient(t *testing.T) {
	repo := NewCreditRepository(setupTestDB(t))

	if _, err := repo.AddCredits(1, 3, models.TxTypeAdd, models.CategoryOther, "seed"); err != nil {
		t.Fatalf("AddCredits() error = %v", err)
	}

	_, err := repo.DeductCredits(1, 5, models.CategoryMessage, "Wiadomość", "")
	if err == nil {
		t.Fatal("DeductCredits() expected error, got nil")
	}
	if !errors.HasCode(err, errors.ErrCodeInsufficientFunds) {
		t.Errorf("error code = %v, want INSUFFICIENT_FUNDS", err)
	}

	// Rejected debit mutates nothing and logs nothing
	balance, _ := repo.GetCredits(1)
	if balance != 3 {
		t.Errorf("balance = %d, want 3", balance)
	}

	var count int64
	repo.db.Model(&models.CreditTransaction{}).
		Where("transaction_type = ?", models.TxTypeDeduct).Count(&count)
	if count != 0 {
		t.Errorf("deduct rows = %d, want 0", count)
	}
}

func TestDeductCredits_NoAccount(t *testing.T) {
	repo := NewCreditRepository(setupTestDB(t))

	_, err := repo.DeductCredits(99, 1, models.CategoryMessage, "Wiadomość", "")
	if err == nil {
		t.Fatal("DeductCredits() expected error, got nil")
	}
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("error code = %v, want NOT_FOUND", err)
	}
}

func TestDeductCredits_Idempotent(t *testing.T) {
	repo := NewCreditRepository(setupTestDB(t))

	if _, err := repo.AddCredits(1, 10, models.TxTypeAdd, models.CategoryOther, "seed"); err != nil {
		t.Fatalf("AddCredits() error = %v", err)
	}

	first, err := repo.DeductCredits(1, 4, models.CategoryImage, "Obraz DALL-E", "op-123")
	if err != nil {
		t.Fatalf("DeductCredits() error = %v", err)
	}

	second, err := repo.DeductCredits(1, 4, models.CategoryImage, "Obraz DALL-E", "op-123")
	if err == nil {
		t.Fatal("repeated DeductCredits() expected error, got nil")
	}
	if !errors.HasCode(err, errors.ErrCodeAlreadyExists) {
		t.Errorf("error code = %v, want ALREADY_EXISTS", err)
	}
	if second == nil || second.ID != first.ID {
		t.Error("repeated DeductCredits() should return the original transaction")
	}

	// Charged exactly once
	balance, _ := repo.GetCredits(1)
	if balance != 6 {
		t.Errorf("balance = %d, want 6", balance)
	}
}

// Concurrent retries with the same idempotency key: exactly one charge, and
// every loser reports ALREADY_EXISTS with the winner's transaction, never an
// internal error from the unique index.
func TestDeductCredits_ConcurrentSameOperation(t *testing.T) {
	repo := NewCreditRepository(setupTestDB(t))

	if _, err := repo.AddCredits(1, 100, models.TxTypeAdd, models.CategoryOther, "seed"); err != nil {
		t.Fatalf("AddCredits() error = %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	type outcome struct {
		record *models.CreditTransaction
		err    error
	}
	results := make(chan outcome, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record, err := repo.DeductCredits(1, 7, models.CategoryImage, "Obraz DALL-E", "op-race")
			results <- outcome{record, err}
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, repeated int
	var chargedID uint
	var seenIDs []uint
	for res := range results {
		switch {
		case res.err == nil:
			succeeded++
			chargedID = res.record.ID
		case errors.HasCode(res.err, errors.ErrCodeAlreadyExists):
			repeated++
			if res.record == nil {
				t.Fatal("repeated attempt should carry the original transaction")
			}
			seenIDs = append(seenIDs, res.record.ID)
		default:
			t.Errorf("unexpected error: %v", res.err)
		}
	}

	if succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", succeeded)
	}
	if repeated != attempts-1 {
		t.Errorf("repeated = %d, want %d", repeated, attempts-1)
	}
	for _, id := range seenIDs {
		if id != chargedID {
			t.Errorf("attempt returned transaction %d, want %d", id, chargedID)
		}
	}

	balance, _ := repo.GetCredits(1)
	if balance != 93 {
		t.Errorf("balance = %d, want 93", balance)
	}

	var count int64
	repo.db.Model(&models.CreditTransaction{}).
		Where("operation_id = ?", "op-race").Count(&count)
	if count != 1 {
		t.Errorf("ledger rows for op-race = %d, want 1", count)
	}
}

func TestHasSufficientBalance(t *testing.T) {
	repo := NewCreditRepository(setupTestDB(t))

	if _, err := repo.AddCredits(1, 10, models.TxTypeAdd, models.CategoryOther, "seed"); err != nil {
		t.Fatalf("AddCredits() error = %v", err)
	}

	tests := []struct {
		name   string
		userID int64
		amount int64
		want   bool
	}{
		{"enough", 1, 10, true},
		{"more than enough", 1, 3, true},
		{"short", 1, 11, false},
		{"unknown user lazily starts at zero", 2, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.HasSufficientBalance(tt.userID, tt.amount)
			if err != nil {
				t.Fatalf("HasSufficientBalance() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("HasSufficientBalance(%d, %d) = %v, want %v", tt.userID, tt.amount, got, tt.want)
			}
		})
	}
}

func TestDeductCredits_Concurrent(t *testing.T) {
	repo := NewCreditRepository(setupTestDB(t))

	if _, err := repo.AddCredits(1, 10, models.TxTypeAdd, models.CategoryOther, "seed"); err != nil {
		t.Fatalf("AddCredits() error = %v", err)
	}

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.DeductCredits(1, 1, models.CategoryMessage, "Wiadomość", "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.HasCode(err, errors.ErrCodeInsufficientFunds):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if succeeded != 10 {
		t.Errorf("succeeded = %d, want 10", succeeded)
	}
	if rejected != 10 {
		t.Errorf("rejected = %d, want 10", rejected)
	}

	balance, _ := repo.GetCredits(1)
	if balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}

	var count int64
	repo.db.Model(&models.CreditTransaction{}).
		Where("transaction_type = ?", models.TxTypeDeduct).Count(&count)
	if count != 10 {
		t.Errorf("deduct rows = %d, want 10", count)
	}
}

func TestPurchaseCredits(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCreditRepository(db)

	pkg := models.CreditPackage{Name: "Starter", Credits: 100, Price: 4.99, IsActive: true}
	if err := db.Create(&pkg).Error; err != nil {
		t.Fatalf("failed to seed package: %v", err)
	}

	bought, err := repo.PurchaseCredits(1, pkg.ID)
	if err != nil {
		t.Fatalf("PurchaseCredits() error = %v", err)
	}
	if bought.Name != "Starter" {
		t.Errorf("package = %q, want Starter", bought.Name)
	}

	balance, _ := repo.GetCredits(1)
	if balance != 100 {
		t.Errorf("balance = %d, want 100", balance)
	}

	var account models.CreditAccount
	db.Where("user_id = ?", 1).First(&account)
	if account.TotalCreditsPurchased != 100 {
		t.Errorf("TotalCreditsPurchased = %d, want 100", account.TotalCreditsPurchased)
	}
	if account.TotalSpent != 4.99 {
		t.Errorf("TotalSpent = %v, want 4.99", account.TotalSpent)
	}
	if account.LastPurchaseDate == nil {
		t.Error("LastPurchaseDate not stamped")
	}

	var record models.CreditTransaction
	db.Where("user_id = ? AND transaction_type = ?", 1, models.TxTypePurchase).First(&record)
	if record.Description != "Zakup pakietu Starter" {
		t.Errorf("Description = %q, want %q", record.Description, "Zakup pakietu Starter")
	}
}

func TestGetPackageByID_InactiveHidden(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCreditRepository(db)

	pkg := models.CreditPackage{Name: "Old", Credits: 10, Price: 1, IsActive: false}
	if err := db.Create(&pkg).Error; err != nil {
		t.Fatalf("failed to seed package: %v", err)
	}

	_, err := repo.GetPackageByID(pkg.ID)
	if err == nil {
		t.Fatal("GetPackageByID() expected error for inactive package, got nil")
	}
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("error code = %v, want NOT_FOUND", err)
	}

	packages, err := repo.GetPackages()
	if err != nil {
		t.Fatalf("GetPackages() error = %v", err)
	}
	if len(packages) != 0 {
		t.Errorf("active packages = %d, want 0", len(packages))
	}
}

func TestGetTransactions_Window(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCreditRepository(db)

	if _, err := repo.AddCredits(1, 20, models.TxTypeAdd, models.CategoryOther, "seed"); err != nil {
		t.Fatalf("AddCredits() error = %v", err)
	}
	recent, err := repo.DeductCredits(1, 2, models.CategoryMessage, "Wiadomość", "")
	if err != nil {
		t.Fatalf("DeductCredits() error = %v", err)
	}
	old, err := repo.DeductCredits(1, 3, models.CategoryImage, "Obraz", "")
	if err != nil {
		t.Fatalf("DeductCredits() error = %v", err)
	}

	// Age one row out of the window
	stale := time.Now().UTC().AddDate(0, 0, -10)
	if err := db.Model(&models.CreditTransaction{}).Where("id = ?", old.ID).
		UpdateColumn("created_at", stale).Error; err != nil {
		t.Fatalf("failed to age transaction: %v", err)
	}

	transactions, err := repo.GetTransactions(1, 7)
	if err != nil {
		t.Fatalf("GetTransactions() error = %v", err)
	}

	for _, tx := range transactions {
		if tx.ID == old.ID {
			t.Error("GetTransactions() returned a transaction outside the window")
		}
	}

	found := false
	for _, tx := range transactions {
		if tx.ID == recent.ID {
			found = true
		}
	}
	if !found {
		t.Error("GetTransactions() missing a transaction inside the window")
	}
}

func TestGetUsageByCategory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCreditRepository(db)

	if _, err := repo.AddCredits(1, 100, models.TxTypeAdd, models.CategoryOther, "seed"); err != nil {
		t.Fatalf("AddCredits() error = %v", err)
	}
	if _, err := repo.DeductCredits(1, 3, models.CategoryMessage, "Wiadomość (gpt-4o)", ""); err != nil {
		t.Fatalf("DeductCredits() error = %v", err)
	}
	if _, err := repo.DeductCredits(1, 1, models.CategoryMessage, "Wiadomość (gpt-3.5-turbo)", ""); err != nil {
		t.Fatalf("DeductCredits() error = %v", err)
	}
	if _, err := repo.DeductCredits(1, 10, models.CategoryImage, "Obraz DALL-E (standard)", ""); err != nil {
		t.Fatalf("DeductCredits() error = %v", err)
	}

	// Legacy row without a stamped category falls back to keyword matching
	legacy := models.CreditTransaction{
		UserID:          1,
		TransactionType: models.TxTypeDeduct,
		Amount:          5,
		CreditsBefore:   86,
		CreditsAfter:    81,
		Description:     "Analiza dokumentu: raport.pdf",
	}
	if err := db.Create(&legacy).Error; err != nil {
		t.Fatalf("failed to seed legacy transaction: %v", err)
	}

	usage, err := repo.GetUsageByCategory(1, 30)
	if err != nil {
		t.Fatalf("GetUsageByCategory() error = %v", err)
	}

	if usage[models.CategoryMessage] != 4 {
		t.Errorf("message usage = %d, want 4", usage[models.CategoryMessage])
	}
	if usage[models.CategoryImage] != 10 {
		t.Errorf("image usage = %d, want 10", usage[models.CategoryImage])
	}
	if usage[models.CategoryDocument] != 5 {
		t.Errorf("document usage = %d, want 5", usage[models.CategoryDocument])
	}

	// Credits never count as usage
	if usage[models.CategoryOther] != 0 {
		t.Errorf("other usage = %d, want 0", usage[models.CategoryOther])
	}
}

func TestGetUserStats(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCreditRepository(db)

	pkg := models.CreditPackage{Name: "Standard", Credits: 300, Price: 13.99, IsActive: true}
	if err := db.Create(&pkg).Error; err != nil {
		t.Fatalf("failed to seed package: %v", err)
	}
	if _, err := repo.PurchaseCredits(1, pkg.ID); err != nil {
		t.Fatalf("PurchaseCredits() error = %v", err)
	}
	if _, err := repo.DeductCredits(1, 3, models.CategoryMessage, "Wiadomość (gpt-4o)", ""); err != nil {
		t.Fatalf("DeductCredits() error = %v", err)
	}
	if _, err := repo.DeductCredits(1, 15, models.CategoryImage, "Obraz DALL-E (hd)", ""); err != nil {
		t.Fatalf("DeductCredits() error = %v", err)
	}

	stats, err := repo.GetUserStats(1)
	if err != nil {
		t.Fatalf("GetUserStats() error = %v", err)
	}

	if stats.CurrentBalance != 282 {
		t.Errorf("CurrentBalance = %d, want 282", stats.CurrentBalance)
	}
	if stats.TotalPurchased != 300 {
		t.Errorf("TotalPurchased = %d, want 300", stats.TotalPurchased)
	}
	if stats.TotalSpent != 13.99 {
		t.Errorf("TotalSpent = %v, want 13.99", stats.TotalSpent)
	}
	if stats.MostExpensiveAmount != 15 {
		t.Errorf("MostExpensiveAmount = %d, want 15", stats.MostExpensiveAmount)
	}
	if stats.MostExpensiveOp != "Obraz DALL-E (hd)" {
		t.Errorf("MostExpensiveOp = %q, want %q", stats.MostExpensiveOp, "Obraz DALL-E (hd)")
	}
	if stats.AvgDailyUsage != 18 {
		t.Errorf("AvgDailyUsage = %v, want 18 (all usage today)", stats.AvgDailyUsage)
	}

	// History is newest first
	if len(stats.History) != 3 {
		t.Fatalf("history length = %d, want 3", len(stats.History))
	}
	if stats.History[0].Description != "Obraz DALL-E (hd)" {
		t.Errorf("newest history entry = %q, want the last deduct", stats.History[0].Description)
	}
}

func TestGetUserStats_NoAccount(t *testing.T) {
	repo := NewCreditRepository(setupTestDB(t))

	_, err := repo.GetUserStats(404)
	if err == nil {
		t.Fatal("GetUserStats() expected error, got nil")
	}
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("error code = %v, want NOT_FOUND", err)
	}
}
