package database

import (
	"fmt"
	"time"

	"github.com/bszymanski/aichat_bot/internal/config"
	"github.com/bszymanski/aichat_bot/internal/models"
	"github.com/bszymanski/aichat_bot/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.GetDSN()

	var logLevel gormlogger.LogLevel
	if cfg.AppEnv == "development" {
		logLevel = gormlogger.Info
	} else {
		logLevel = gormlogger.Error
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		SkipDefaultTransaction: true, // ledger writes open their own transactions
		PrepareStmt:            true,
		TranslateError:         true, // unique violations surface as gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	logger.Info("Database connected successfully")
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	logger.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.CreditAccount{},
		&models.CreditTransaction{},
		&models.CreditPackage{},
		&models.Conversation{},
		&models.ChatMessage{},
	)

	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// SeedCreditPackages inserts the default catalog when the table is empty.
// The catalog is admin-managed afterwards (/addpackage, /togglepackage).
func SeedCreditPackages(db *gorm.DB) error {
	var count int64
	db.Model(&models.CreditPackage{}).Count(&count)
	if count > 0 {
		return nil
	}

	logger.Info("Seeding default credit packages...")
	packages := []models.CreditPackage{
		{Name: "Starter", Credits: 100, Price: 4.99, IsActive: true},
		{Name: "Standard", Credits: 300, Price: 13.99, IsActive: true},
		{Name: "Premium", Credits: 700, Price: 29.99, IsActive: true},
		{Name: "Pro", Credits: 1500, Price: 59.99, IsActive: true},
	}

	return db.Create(&packages).Error
}
