// Package summary projects portfolio totals over a collection of debts.
package summary

import (
	"time"

	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/ledger"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/models"
	"github.com/shopspring/decimal"
)

// Summary holds the portfolio-wide totals shown on dashboards.
type Summary struct {
	TotalDebts           int             `json:"total_debts"`
	TotalPrincipal       decimal.Decimal `json:"total_principal"`
	TotalInterestAccrued decimal.Decimal `json:"total_interest_accrued"`
	TotalRepaid          decimal.Decimal `json:"total_repaid"`
	TotalOutstanding     decimal.Decimal `json:"total_outstanding"`
}

// Section is the group of debts sharing a presented status, with its subtotal.
type Section struct {
	Status         models.DebtStatus `json:"status"`
	Debts          []*models.Debt    `json:"debts"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	TotalRemaining decimal.Decimal   `json:"total_remaining"`
}

// Summarize totals debts as of asOf. It does not modify its input.
func Summarize(debts []*models.Debt, asOf time.Time) Summary {
	s := Summary{
		TotalDebts:           len(debts),
		TotalPrincipal:       decimal.Zero,
		TotalInterestAccrued: decimal.Zero,
		TotalRepaid:          decimal.Zero,
		TotalOutstanding:     decimal.Zero,
	}
	for _, d := range debts {
		b := ledger.ComputeDebt(d, asOf)
		s.TotalPrincipal = s.TotalPrincipal.Add(d.Amount)
		s.TotalInterestAccrued = s.TotalInterestAccrued.Add(b.InterestAmount)
		s.TotalRepaid = s.TotalRepaid.Add(b.TotalRepaid)
		s.TotalOutstanding = s.TotalOutstanding.Add(b.RemainingAmount)
	}
	return s
}

// Sections partitions debts by the status presented at asOf, in models.Statuses order.
// Empty sections are omitted; debts keep their input order within a section.
func Sections(debts []*models.Debt, asOf time.Time) []Section {
	byStatus := make(map[models.DebtStatus]*Section)
	for _, d := range debts {
		b := ledger.ComputeDebt(d, asOf)
		st := ledger.ResolveStatus(d, b, asOf)
		sec, ok := byStatus[st]
		if !ok {
			sec = &Section{Status: st, TotalAmount: decimal.Zero, TotalRemaining: decimal.Zero}
			byStatus[st] = sec
		}
		sec.Debts = append(sec.Debts, d)
		sec.TotalAmount = sec.TotalAmount.Add(d.Amount)
		sec.TotalRemaining = sec.TotalRemaining.Add(b.RemainingAmount)
	}

	var out []Section
	for _, st := range models.Statuses {
		if sec, ok := byStatus[st]; ok {
			out = append(out, *sec)
		}
	}
	return out
}
