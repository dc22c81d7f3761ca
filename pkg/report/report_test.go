package report

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/ledger"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/models"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/summary"
	"github.com/shopspring/decimal"
)

func TestMoney(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"1059.835", "$1,059.84"},
		{"0", "$0.00"},
		{"12.5", "$12.50"},
	}
	for _, tt := range tests {
		if got := Money(decimal.RequireFromString(tt.amount), "USD"); got != tt.want {
			t.Errorf("Money(%s) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func scenarioDebt() *models.Debt {
	due := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	d := &models.Debt{
		ID:           uuid.New(),
		BorrowerName: "Bob",
		Amount:       decimal.NewFromInt(1000),
		InterestRate: decimal.NewFromInt(12),
		LentDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DueDate:      &due,
		Status:       models.StatusPartiallyPaid,
	}
	d.Repayments = []models.Repayment{{ID: uuid.New(), DebtID: d.ID, Amount: decimal.NewFromInt(500), RepaymentDate: d.LentDate}}
	return d
}

func TestSummaryAndSections(t *testing.T) {
	asOf := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	debts := []*models.Debt{scenarioDebt()}

	out := Summary(summary.Summarize(debts, asOf), asOf, "USD")
	for _, want := range []string{"2024-05-01", "$1,000.00", "$59.84", "$559.84"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected summary to contain %q:\n%s", want, out)
		}
	}

	out = Sections(summary.Sections(debts, asOf), asOf, "USD")
	if !strings.Contains(out, "PARTIALLY_PAID (1)") || !strings.Contains(out, "2024-07-01") {
		t.Errorf("Unexpected sections:\n%s", out)
	}
	if out := Sections(nil, asOf, "USD"); !strings.Contains(out, "No debts.") {
		t.Errorf("Expected empty notice, got:\n%s", out)
	}

	out = Debts(ledger.Views(debts, asOf), "USD")
	if !strings.Contains(out, "Bob") || !strings.Contains(out, "47%") {
		t.Errorf("Unexpected debts table:\n%s", out)
	}
}

func TestImport(t *testing.T) {
	debts := &models.ImportBatchResult{ImportedCount: 2}
	for i := 1; i <= 12; i++ {
		debts.AddError(i, models.ErrUnparsableAmount)
	}
	debts.AddWarning(14, models.KindUnrecognizedStatus, `status "paid" defaulted to ACTIVE`)

	out := Import(&ledger.ImportResult{Debts: debts})
	for _, want := range []string{"2 imported, 12 skipped.", "UnparsableAmount", "+2 more errors", "UnrecognizedStatus"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected import report to contain %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Repayments") {
		t.Error("Expected absent batch to be omitted")
	}
}
