package ledger

import (
	"time"

	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/interest"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Balance is the reconciled state of one debt's ledger at a given date.
type Balance struct {
	InterestAmount    decimal.Decimal `json:"interest_amount"`
	TotalWithInterest decimal.Decimal `json:"total_with_interest"`
	TotalRepaid       decimal.Decimal `json:"total_repaid"`
	RemainingAmount   decimal.Decimal `json:"remaining_amount"`
	// RepaidPercentage is repaid/total*100 without clamping, kept for audit.
	RepaidPercentage decimal.Decimal `json:"repaid_percentage"`
	DaysElapsed      int             `json:"days_elapsed"`
	DaysTotal        int             `json:"days_total"`
}

// DisplayPercentage is RepaidPercentage clamped to [0, 100].
func (b Balance) DisplayPercentage() decimal.Decimal {
	switch {
	case b.RepaidPercentage.IsNegative():
		return decimal.Zero
	case b.RepaidPercentage.GreaterThan(hundred):
		return hundred
	}
	return b.RepaidPercentage
}

// ComputeRemaining reconciles principal plus interest against the pooled repayment total.
//
// The interest term ends at dueDate when set, otherwise at asOf. An inverted range is clamped to
// zero interest instead of failing. A FULLY_PAID explicit status forces the remaining amount to 0.
// The result depends only on the arguments.
func ComputeRemaining(principal, rate decimal.Decimal, lentDate time.Time, dueDate *time.Time, repayments []models.Repayment, asOf time.Time, explicitStatus models.DebtStatus) Balance {
	calc, err := interest.Calculate(principal, rate, lentDate, dueDate, asOf)
	if err != nil {
		calc = interest.Principal(principal)
	}

	repaid := decimal.Zero
	for _, r := range repayments {
		repaid = repaid.Add(r.Amount)
	}

	b := Balance{
		InterestAmount:    calc.InterestAmount,
		TotalWithInterest: calc.TotalAmountWithInterest,
		TotalRepaid:       repaid,
		RemainingAmount:   decimal.Max(decimal.Zero, calc.TotalAmountWithInterest.Sub(repaid)),
		RepaidPercentage:  decimal.Zero,
		DaysElapsed:       calc.DaysElapsed,
		DaysTotal:         calc.DaysTotal,
	}
	if explicitStatus == models.StatusFullyPaid {
		b.RemainingAmount = decimal.Zero
	}
	if b.TotalWithInterest.IsPositive() {
		b.RepaidPercentage = repaid.Div(b.TotalWithInterest).Mul(hundred)
	}
	return b
}

// ComputeDebt is ComputeRemaining over a stored debt as presented at asOf.
//
// A debt that is FULLY_PAID, by manual override or by its persisted status, owes nothing. Without
// a due date its interest stops at the last repayment.
func ComputeDebt(d *models.Debt, asOf time.Time) Balance {
	if d.ManualStatus != models.StatusFullyPaid && d.Status != models.StatusFullyPaid {
		return computeRaw(d, asOf)
	}
	if d.DueDate == nil {
		if last, ok := lastRepaymentDate(d.Repayments); ok && last.Before(asOf) {
			asOf = last
		}
	}
	return ComputeRemaining(d.Amount, d.InterestRate, d.LentDate, d.DueDate, d.Repayments, asOf, models.StatusFullyPaid)
}

// computeRaw ignores the persisted status so status transitions see the real figures.
func computeRaw(d *models.Debt, asOf time.Time) Balance {
	return ComputeRemaining(d.Amount, d.InterestRate, d.LentDate, d.DueDate, d.Repayments, asOf, d.ManualStatus)
}

func lastRepaymentDate(repayments []models.Repayment) (time.Time, bool) {
	var last time.Time
	for _, r := range repayments {
		if r.RepaymentDate.After(last) {
			last = r.RepaymentDate
		}
	}
	return last, !last.IsZero()
}
