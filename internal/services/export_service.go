package services

import (
	"bytes"
	"fmt"

	"github.com/bszymanski/aichat_bot/internal/models"
	"github.com/bszymanski/aichat_bot/internal/repositories"
	"github.com/bszymanski/aichat_bot/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// ExportService renders a user's transaction history as an XLSX workbook.
type ExportService struct {
	credits *repositories.CreditRepository
}

func NewExportService(credits *repositories.CreditRepository) *ExportService {
	return &ExportService{credits: credits}
}

const exportSheet = "Transakcje"

var exportHeaders = []string{"Data", "Typ", "Kategoria", "Kwota", "Saldo przed", "Saldo po", "Opis"}

// TransactionsXLSX builds the workbook for the trailing window of days.
func (s *ExportService) TransactionsXLSX(userID int64, days int) ([]byte, error) {
	transactions, err := s.credits.GetTransactions(userID, days)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", exportSheet)

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, header)
	}

	for i, t := range transactions {
		row := i + 2
		amount := t.Amount
		if t.TransactionType == models.TxTypeDeduct {
			amount = -amount
		}
		category := t.Category
		if category == "" {
			category = models.ClassifyDescription(t.Description)
		}

		values := []interface{}{
			t.CreatedAt.Format("2006-01-02 15:04"),
			t.TransactionType,
			category.DisplayName(),
			amount,
			t.CreditsBefore,
			t.CreditsAfter,
			t.Description,
		}
		for j, value := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			f.SetCellValue(exportSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to write workbook")
	}

	return buf.Bytes(), nil
}

// ExportFilename returns the suggested attachment name.
func ExportFilename(userID int64) string {
	return fmt.Sprintf("transakcje_%d.xlsx", userID)
}
