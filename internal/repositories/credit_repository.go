package repositories

import (
	"fmt"
	"time"

	"github.com/bszymanski/aichat_bot/internal/models"
	"github.com/bszymanski/aichat_bot/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreditRepository owns the user_credits balance rows and the append-only
// credit_transactions ledger. Every balance mutation runs inside a single
// database transaction together with its ledger append; debits use a
// conditional update so check-and-deduct is one atomic statement and two
// concurrent debits can never jointly overdraw an account.
type CreditRepository struct {
	db *gorm.DB
}

func NewCreditRepository(db *gorm.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

// InitAccount creates a zero-balance account row. Idempotent: a second call
// (or a concurrent one) for the same user is a no-op.
func (r *CreditRepository) InitAccount(userID int64) error {
	account := models.CreditAccount{UserID: userID}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&account)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to init credit account")
	}
	return nil
}

// GetCredits returns the current balance, lazily creating the account with
// balance 0 on first lookup.
func (r *CreditRepository) GetCredits(userID int64) (int64, error) {
	var account models.CreditAccount
	result := r.db.Where("user_id = ?", userID).First(&account)

	if result.Error == gorm.ErrRecordNotFound {
		if err := r.InitAccount(userID); err != nil {
			return 0, err
		}
		return 0, nil
	}
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get credits")
	}

	return account.CreditsAmount, nil
}

// HasSufficientBalance is an advisory sufficiency read. It is not atomic
// with a later deduct; only DeductCredits' conditional update is
// authoritative, so a passing check here can still lose to a concurrent
// debit.
func (r *CreditRepository) HasSufficientBalance(userID int64, amount int64) (bool, error) {
	balance, err := r.GetCredits(userID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// AddCredits increases the balance and appends a ledger entry with a
// before/after snapshot. txType must be a credit-direction type (add,
// purchase, subscription, subscription_renewal); credit types also bump
// total_credits_purchased and stamp last_purchase_date. amount == 0 is a
// no-op that logs no transaction.
func (r *CreditRepository) AddCredits(userID int64, amount int64, txType string, category models.Category, description string) (*models.CreditTransaction, error) {
	if amount < 0 {
		return nil, errors.New(errors.ErrCodeValidation, "amount must not be negative")
	}
	if !models.IsCredit(txType) {
		return nil, errors.New(errors.ErrCodeValidation, fmt.Sprintf("not a credit transaction type: %s", txType))
	}
	if amount == 0 {
		return nil, nil
	}

	var record *models.CreditTransaction
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := ensureAccount(tx, userID); err != nil {
			return err
		}

		now := time.Now().UTC()
		result := tx.Model(&models.CreditAccount{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"credits_amount":          gorm.Expr("credits_amount + ?", amount),
				"total_credits_purchased": gorm.Expr("total_credits_purchased + ?", amount),
				"last_purchase_date":      now,
			})
		if result.Error != nil {
			return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update balance")
		}

		after, err := balanceInTx(tx, userID)
		if err != nil {
			return err
		}

		record = &models.CreditTransaction{
			UserID:          userID,
			TransactionType: txType,
			Amount:          amount,
			CreditsBefore:   after - amount,
			CreditsAfter:    after,
			Category:        category,
			Description:     description,
		}
		if err := tx.Create(record).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create transaction")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// DeductCredits atomically debits the balance and appends a deduct ledger
// entry. The conditional update rejects the debit when the balance is too
// low at the moment of the write, which is also how a lost race between
// concurrent debits surfaces: INSUFFICIENT_FUNDS, no mutation, no ledger row.
//
// operationID is an optional idempotency key for the logical user action;
// a repeated key returns the already-recorded transaction with
// ALREADY_EXISTS instead of charging twice.
func (r *CreditRepository) DeductCredits(userID int64, amount int64, category models.Category, description string, operationID string) (*models.CreditTransaction, error) {
	if amount <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "amount must be positive")
	}

	var record *models.CreditTransaction
	err := r.db.Transaction(func(tx *gorm.DB) error {
		// Idempotency check runs inside the transaction; a concurrent
		// retry that slips past it is caught by the unique index below.
		if operationID != "" {
			var existing models.CreditTransaction
			err := tx.Where("operation_id = ?", operationID).First(&existing).Error
			if err == nil {
				return errors.New(errors.ErrCodeAlreadyExists, "operation already charged")
			}
			if err != gorm.ErrRecordNotFound {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to check operation id")
			}
		}

		result := tx.Model(&models.CreditAccount{}).
			Where("user_id = ? AND credits_amount >= ?", userID, amount).
			UpdateColumn("credits_amount", gorm.Expr("credits_amount - ?", amount))
		if result.Error != nil {
			return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update balance")
		}

		if result.RowsAffected == 0 {
			var account models.CreditAccount
			if err := tx.Where("user_id = ?", userID).First(&account).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return errors.New(errors.ErrCodeNotFound, "credit account not found")
				}
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to get account")
			}
			return errors.New(errors.ErrCodeInsufficientFunds,
				fmt.Sprintf("insufficient credits: have %d, need %d", account.CreditsAmount, amount))
		}

		after, err := balanceInTx(tx, userID)
		if err != nil {
			return err
		}

		record = &models.CreditTransaction{
			UserID:          userID,
			TransactionType: models.TxTypeDeduct,
			Amount:          amount,
			CreditsBefore:   after + amount,
			CreditsAfter:    after,
			Category:        category,
			Description:     description,
		}
		if operationID != "" {
			record.OperationID = &operationID
		}
		if err := tx.Create(record).Error; err != nil {
			if err == gorm.ErrDuplicatedKey {
				return errors.New(errors.ErrCodeAlreadyExists, "operation already charged")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create transaction")
		}

		return nil
	})
	if err != nil {
		// The loser of a same-key race rolls back its debit; hand back
		// the winner's ledger row like any other repeat.
		if operationID != "" && errors.HasCode(err, errors.ErrCodeAlreadyExists) {
			var existing models.CreditTransaction
			if ferr := r.db.Where("operation_id = ?", operationID).First(&existing).Error; ferr == nil {
				return &existing, err
			}
		}
		return nil, err
	}

	return record, nil
}

// GetPackages returns active packages ordered by credits ascending.
func (r *CreditRepository) GetPackages() ([]models.CreditPackage, error) {
	var packages []models.CreditPackage
	result := r.db.Where("is_active = ?", true).Order("credits ASC").Find(&packages)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get credit packages")
	}
	return packages, nil
}

// GetPackageByID resolves an active package.
func (r *CreditRepository) GetPackageByID(packageID uint) (*models.CreditPackage, error) {
	var pkg models.CreditPackage
	result := r.db.Where("id = ? AND is_active = ?", packageID, true).First(&pkg)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "credit package not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get credit package")
	}

	return &pkg, nil
}

// PurchaseCredits credits the account with the package amount, adds the
// package price to total_spent and appends a purchase transaction naming
// the package. Everything happens in one database transaction.
func (r *CreditRepository) PurchaseCredits(userID int64, packageID uint) (*models.CreditPackage, error) {
	pkg, err := r.GetPackageByID(packageID)
	if err != nil {
		return nil, err
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := ensureAccount(tx, userID); err != nil {
			return err
		}

		now := time.Now().UTC()
		result := tx.Model(&models.CreditAccount{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"credits_amount":          gorm.Expr("credits_amount + ?", pkg.Credits),
				"total_credits_purchased": gorm.Expr("total_credits_purchased + ?", pkg.Credits),
				"total_spent":             gorm.Expr("total_spent + ?", pkg.Price),
				"last_purchase_date":      now,
			})
		if result.Error != nil {
			return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update balance")
		}

		after, err := balanceInTx(tx, userID)
		if err != nil {
			return err
		}

		record := &models.CreditTransaction{
			UserID:          userID,
			TransactionType: models.TxTypePurchase,
			Amount:          pkg.Credits,
			CreditsBefore:   after - pkg.Credits,
			CreditsAfter:    after,
			Category:        models.CategoryOther,
			Description:     fmt.Sprintf("Zakup pakietu %s", pkg.Name),
		}
		if err := tx.Create(record).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create transaction")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return pkg, nil
}

// GetTransactions returns the user's transactions within a trailing window
// of days, oldest first.
func (r *CreditRepository) GetTransactions(userID int64, days int) ([]models.CreditTransaction, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)

	var transactions []models.CreditTransaction
	result := r.db.Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at ASC").
		Find(&transactions)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get transactions")
	}

	return transactions, nil
}

// GetUsageByCategory sums deduct transactions per category over a trailing
// window. Rows written before the category column existed are classified by
// description keywords.
func (r *CreditRepository) GetUsageByCategory(userID int64, days int) (map[models.Category]int64, error) {
	transactions, err := r.GetTransactions(userID, days)
	if err != nil {
		return nil, err
	}

	usage := make(map[models.Category]int64)
	for _, t := range transactions {
		if t.TransactionType != models.TxTypeDeduct {
			continue
		}
		category := t.Category
		if category == "" {
			category = models.ClassifyDescription(t.Description)
		}
		usage[category] += t.Amount
	}

	return usage, nil
}

const statsWindowDays = 90

// GetUserStats aggregates balance, purchase totals, average daily usage over
// the trailing 90 days and the most expensive single operation. The daily
// average divides by elapsed days covered by the window, not the number of
// transactions.
func (r *CreditRepository) GetUserStats(userID int64) (*models.UserStats, error) {
	var account models.CreditAccount
	result := r.db.Where("user_id = ?", userID).First(&account)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "credit account not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get account")
	}

	transactions, err := r.GetTransactions(userID, statsWindowDays)
	if err != nil {
		return nil, err
	}

	stats := &models.UserStats{
		CurrentBalance: account.CreditsAmount,
		TotalPurchased: account.TotalCreditsPurchased,
		TotalSpent:     account.TotalSpent,
		LastPurchase:   account.LastPurchaseDate,
	}

	var totalUsage int64
	var firstDeduct *time.Time
	for i, t := range transactions {
		if t.TransactionType != models.TxTypeDeduct {
			continue
		}
		totalUsage += t.Amount
		if firstDeduct == nil {
			firstDeduct = &transactions[i].CreatedAt
		}
		if t.Amount > stats.MostExpensiveAmount {
			stats.MostExpensiveAmount = t.Amount
			stats.MostExpensiveOp = t.Description
		}
	}

	if firstDeduct != nil {
		elapsed := int64(time.Since(*firstDeduct).Hours()/24) + 1
		if elapsed > statsWindowDays {
			elapsed = statsWindowDays
		}
		stats.AvgDailyUsage = float64(totalUsage) / float64(elapsed)
	}

	// Newest first, capped for display
	history := make([]models.CreditTransaction, 0, len(transactions))
	for i := len(transactions) - 1; i >= 0 && len(history) < 10; i-- {
		history = append(history, transactions[i])
	}
	stats.History = history

	return stats, nil
}

func ensureAccount(tx *gorm.DB, userID int64) error {
	account := models.CreditAccount{UserID: userID}
	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&account)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to init credit account")
	}
	return nil
}

func balanceInTx(tx *gorm.DB, userID int64) (int64, error) {
	var account models.CreditAccount
	if err := tx.Where("user_id = ?", userID).First(&account).Error; err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to read balance")
	}
	return account.CreditsAmount, nil
}
