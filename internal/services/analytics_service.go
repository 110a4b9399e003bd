package services

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bszymanski/aichat_bot/internal/models"
	"github.com/bszymanski/aichat_bot/internal/repositories"
	"github.com/bszymanski/aichat_bot/pkg/utils"
)

// AnalyticsService derives usage breakdowns and depletion forecasts from the
// transaction ledger.
type AnalyticsService struct {
	credits *repositories.CreditRepository
}

func NewAnalyticsService(credits *repositories.CreditRepository) *AnalyticsService {
	return &AnalyticsService{credits: credits}
}

// DepletionForecast predicts when the balance reaches zero at the current
// spending rate. DaysLeft is zero when the rate is zero (indeterminate).
type DepletionForecast struct {
	CurrentBalance    int64
	AverageDailyUsage float64
	DaysLeft          int
	DepletionDate     *time.Time
}

// PredictDepletion computes the average daily spend over the trailing window
// and extrapolates the days until the balance is exhausted. Returns nil when
// the window contains no deduct transactions (not enough history).
func (s *AnalyticsService) PredictDepletion(userID int64, days int) (*DepletionForecast, error) {
	days = clampDays(days)

	transactions, err := s.credits.GetTransactions(userID, days)
	if err != nil {
		return nil, err
	}

	var totalDeducted int64
	var deductCount int
	for _, t := range transactions {
		if t.TransactionType == models.TxTypeDeduct {
			totalDeducted += t.Amount
			deductCount++
		}
	}
	if deductCount == 0 {
		return nil, nil
	}

	balance, err := s.credits.GetCredits(userID)
	if err != nil {
		return nil, err
	}

	forecast := &DepletionForecast{
		CurrentBalance:    balance,
		AverageDailyUsage: float64(totalDeducted) / float64(days),
	}

	if forecast.AverageDailyUsage > 0 {
		forecast.DaysLeft = int(math.Floor(float64(balance) / forecast.AverageDailyUsage))
		date := time.Now().UTC().AddDate(0, 0, forecast.DaysLeft)
		forecast.DepletionDate = &date
	}

	return forecast, nil
}

// UsageBreakdown returns per-category deduction totals over the trailing
// window. Percentages are the caller's concern.
func (s *AnalyticsService) UsageBreakdown(userID int64, days int) (map[models.Category]int64, error) {
	return s.credits.GetUsageByCategory(userID, clampDays(days))
}

// RenderBreakdown formats a breakdown as sorted text lines with bars, largest
// category first.
func (s *AnalyticsService) RenderBreakdown(breakdown map[models.Category]int64) string {
	var total int64
	for _, amount := range breakdown {
		total += amount
	}
	if total == 0 {
		return ""
	}

	categories := make([]models.Category, 0, len(breakdown))
	for category := range breakdown {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool {
		if breakdown[categories[i]] != breakdown[categories[j]] {
			return breakdown[categories[i]] > breakdown[categories[j]]
		}
		return categories[i] < categories[j]
	})

	var b strings.Builder
	for _, category := range categories {
		amount := breakdown[category]
		percentage := float64(amount) / float64(total) * 100
		fmt.Fprintf(&b, "%s %s: %d kredytów (%.1f%%)\n",
			utils.TextBar(amount, total), category.DisplayName(), amount, percentage)
	}

	return b.String()
}

func clampDays(days int) int {
	if days < 1 {
		return 1
	}
	if days > 365 {
		return 365
	}
	return days
}
