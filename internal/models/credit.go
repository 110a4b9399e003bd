package models

import (
	"strings"
	"time"
)

// CreditAccount is the per-user balance row. UserID is the Telegram ID,
// the stable external key the whole ledger is keyed by.
type CreditAccount struct {
	ID                    uint       `gorm:"primaryKey"`
	UserID                int64      `gorm:"uniqueIndex;not null"`
	CreditsAmount         int64      `gorm:"not null;default:0"`
	TotalCreditsPurchased int64      `gorm:"not null;default:0"`
	TotalSpent            float64    `gorm:"not null;default:0"` // PLN
	LastPurchaseDate      *time.Time `gorm:"default:NULL"`
	CreatedAt             time.Time  `gorm:"autoCreateTime"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime"`
}

func (CreditAccount) TableName() string {
	return "user_credits"
}

// CreditTransaction is an append-only ledger entry. CreditsBefore/CreditsAfter
// snapshot the balance around the mutation for audit and display.
type CreditTransaction struct {
	ID              uint      `gorm:"primaryKey"`
	UserID          int64     `gorm:"not null;index"`
	TransactionType string    `gorm:"type:varchar(32);not null;index"`
	Amount          int64     `gorm:"not null"`
	CreditsBefore   int64     `gorm:"not null"`
	CreditsAfter    int64     `gorm:"not null"`
	Category        Category  `gorm:"type:varchar(16);index"`
	Description     string    `gorm:"type:text"`
	OperationID     *string   `gorm:"type:varchar(64);uniqueIndex"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}

// Transaction type constants
const (
	TxTypeAdd                 = "add"
	TxTypeDeduct              = "deduct"
	TxTypePurchase            = "purchase"
	TxTypeSubscription        = "subscription"
	TxTypeSubscriptionRenewal = "subscription_renewal"
)

// IsCredit reports whether the transaction type increases the balance.
func IsCredit(txType string) bool {
	switch txType {
	case TxTypeAdd, TxTypePurchase, TxTypeSubscription, TxTypeSubscriptionRenewal:
		return true
	}
	return false
}

// Category classifies a billable operation. It is stamped on the transaction
// at write time so analytics never has to guess from free text.
type Category string

const (
	CategoryMessage  Category = "message"
	CategoryImage    Category = "image"
	CategoryDocument Category = "document"
	CategoryPhoto    Category = "photo"
	CategoryOther    Category = "other"
)

// DisplayName returns the Polish label used in reports.
func (c Category) DisplayName() string {
	switch c {
	case CategoryMessage:
		return "Wiadomości"
	case CategoryImage:
		return "Obrazy"
	case CategoryDocument:
		return "Dokumenty"
	case CategoryPhoto:
		return "Zdjęcia"
	}
	return "Inne"
}

var categoryKeywords = []struct {
	category Category
	terms    []string
}{
	{CategoryMessage, []string{"wiadomość", "wiadomosc", "message", "chat", "gpt", "claude"}},
	{CategoryImage, []string{"obraz", "dall-e", "dall", "image"}},
	{CategoryDocument, []string{"dokument", "document", "pdf", "plik"}},
	{CategoryPhoto, []string{"zdjęci", "zdjęc", "photo", "foto"}},
}

// ClassifyDescription maps a free-text description to a category by keyword
// matching. Only used for ledger rows written before the category column
// existed.
func ClassifyDescription(description string) Category {
	description = strings.ToLower(description)
	for _, entry := range categoryKeywords {
		for _, term := range entry.terms {
			if strings.Contains(description, term) {
				return entry.category
			}
		}
	}
	return CategoryOther
}

// CreditPackage is a purchasable credit bundle from the admin-managed catalog.
type CreditPackage struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"type:varchar(100);not null"`
	Credits   int64     `gorm:"not null"`
	Price     float64   `gorm:"not null"` // PLN
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (CreditPackage) TableName() string {
	return "credit_packages"
}

// UserStats aggregates ledger data for the /creditstats view.
type UserStats struct {
	CurrentBalance      int64
	TotalPurchased      int64
	TotalSpent          float64
	LastPurchase        *time.Time
	AvgDailyUsage       float64
	MostExpensiveOp     string
	MostExpensiveAmount int64
	History             []CreditTransaction
}
