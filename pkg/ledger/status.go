package ledger

import (
	"time"

	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/models"
)

// RecomputeStatus is the persisted transition applied after a repayment is added or deleted.
// It never produces OVERDUE or DEFAULTED, and never overwrites DEFAULTED.
func RecomputeStatus(d *models.Debt, b Balance) models.DebtStatus {
	if d.ManualStatus == models.StatusDefaulted || d.Status == models.StatusDefaulted {
		return models.StatusDefaulted
	}
	switch {
	case b.RemainingAmount.IsZero():
		return models.StatusFullyPaid
	case len(d.Repayments) > 0:
		return models.StatusPartiallyPaid
	}
	return models.StatusActive
}

// IsOverdue reports whether a debt is past its due date with money still owed.
func IsOverdue(d *models.Debt, b Balance, asOf time.Time) bool {
	return d.DueDate != nil && models.Day(*d.DueDate).Before(models.Day(asOf)) && b.RemainingAmount.IsPositive()
}

// ResolveStatus is the status to present at asOf: a manual override wins, then OVERDUE when
// the debt is overdue, then the persisted status.
func ResolveStatus(d *models.Debt, b Balance, asOf time.Time) models.DebtStatus {
	if d.ManualStatus.IsManual() {
		return d.ManualStatus
	}
	if d.Status == models.StatusFullyPaid && b.RemainingAmount.IsZero() {
		return models.StatusFullyPaid
	}
	if IsOverdue(d, b, asOf) {
		return models.StatusOverdue
	}
	if d.Status == "" {
		return models.StatusActive
	}
	return d.Status
}

// ApplyExplicitStatus records a status written by the user. DEFAULTED and FULLY_PAID become the
// manual override; any other status clears the override and is stored as is.
func ApplyExplicitStatus(d *models.Debt, s models.DebtStatus) error {
	if !s.Valid() {
		return models.Invalid(models.KindMissingRequiredField, "unknown status %q", s)
	}
	d.Status = s
	if s.IsManual() {
		d.ManualStatus = s
	} else {
		d.ManualStatus = ""
	}
	return nil
}
