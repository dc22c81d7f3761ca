package ledger

import (
	"time"

	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/models"
	"github.com/shopspring/decimal"
)

// DebtView is a debt with the figures derived at read time.
type DebtView struct {
	*models.Debt
	Balance         Balance           `json:"balance"`
	EffectiveStatus models.DebtStatus `json:"effective_status"`
	IsOverdue       bool              `json:"is_overdue"`
	ProgressPercent decimal.Decimal   `json:"progress_percent"`
}

// View derives the presentation figures of d at asOf.
func View(d *models.Debt, asOf time.Time) DebtView {
	b := ComputeDebt(d, asOf)
	return DebtView{
		Debt:            d,
		Balance:         b,
		EffectiveStatus: ResolveStatus(d, b, asOf),
		IsOverdue:       IsOverdue(d, b, asOf),
		ProgressPercent: b.DisplayPercentage().Round(2),
	}
}

// Views maps View over debts.
func Views(debts []*models.Debt, asOf time.Time) []DebtView {
	out := make([]DebtView, 0, len(debts))
	for _, d := range debts {
		out = append(out, View(d, asOf))
	}
	return out
}
