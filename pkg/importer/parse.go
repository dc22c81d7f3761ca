package importer

import (
	"strings"
	"time"

	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/models"
	"github.com/shopspring/decimal"
)

// DateLayouts are tried in order; the first that yields a valid calendar date wins.
var DateLayouts = []string{
	"2006-01-02", // YYYY-MM-DD
	"01/02/2006", // MM/DD/YYYY
	"02-01-2006", // DD-MM-YYYY
}

// ParseDate parses s with the first matching layout of DateLayouts.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.Day(t), nil
		}
	}
	return time.Time{}, models.Invalid(models.KindUnparsableDate, "%q matches none of YYYY-MM-DD, MM/DD/YYYY, DD-MM-YYYY", s)
}

// ParseAmount parses a non-negative finite decimal.
func ParseAmount(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, models.Invalid(models.KindUnparsableAmount, "%s %q is not a number", field, s)
	}
	if d.IsNegative() {
		return decimal.Zero, models.Invalid(models.KindUnparsableAmount, "%s %q is negative", field, s)
	}
	return d, nil
}

// parsePositive is ParseAmount that also rejects zero.
func parsePositive(field, s string) (decimal.Decimal, error) {
	d, err := ParseAmount(field, s)
	if err != nil {
		return d, err
	}
	if d.IsZero() {
		return decimal.Zero, models.Invalid(models.KindUnparsableAmount, "%s must be positive", field)
	}
	return d, nil
}

// DebtRow is a validated line of a debts CSV.
type DebtRow struct {
	LocalID         string
	BorrowerName    string
	BorrowerContact string
	BorrowerEmail   string
	Amount          decimal.Decimal
	InterestRate    decimal.Decimal
	LentDate        time.Time
	DueDate         *time.Time
	Status          models.DebtStatus
	// RawStatus is set when a non-blank status was not recognized and defaulted to ACTIVE.
	RawStatus string
	Purpose   string
	Notes     string
	Account   string
	BankName  string
}

// RepaymentRow is a validated line of a repayments CSV.
type RepaymentRow struct {
	DebtRef       string
	Amount        decimal.Decimal
	RepaymentDate time.Time
	Notes         string
	AccountRef    string
}

func parseDebtRow(rec record) (DebtRow, error) {
	if err := rec.require(debtRequired...); err != nil {
		return DebtRow{}, err
	}
	row := DebtRow{
		LocalID:         rec.get("id"),
		BorrowerName:    rec.get("borrowerName"),
		BorrowerContact: rec.get("borrowerContact"),
		BorrowerEmail:   rec.get("borrowerEmail"),
		Purpose:         rec.get("purpose"),
		Notes:           rec.get("notes"),
		Account:         rec.get("account"),
		BankName:        rec.get("bankName"),
	}
	if row.LocalID == "" {
		row.LocalID = rec.localID()
	}

	var err error
	if row.LentDate, err = ParseDate(rec.get("lentDate")); err != nil {
		return DebtRow{}, err
	}
	if due := rec.get("dueDate"); due != "" {
		d, err := ParseDate(due)
		if err != nil {
			return DebtRow{}, err
		}
		if d.Before(row.LentDate) {
			return DebtRow{}, models.Invalid(models.KindInvalidDateRange, "dueDate %s is before lentDate %s",
				d.Format(models.DateFormat), row.LentDate.Format(models.DateFormat))
		}
		row.DueDate = &d
	}
	if row.Amount, err = parsePositive("amount", rec.get("amount")); err != nil {
		return DebtRow{}, err
	}
	if row.InterestRate, err = ParseAmount("interestRate", rec.get("interestRate")); err != nil {
		return DebtRow{}, err
	}

	row.Status = models.StatusActive
	if raw := rec.get("status"); raw != "" {
		if st, ok := models.ParseStatus(raw); ok {
			row.Status = st
		} else {
			row.RawStatus = raw
		}
	}
	return row, nil
}

func parseRepaymentRow(rec record) (RepaymentRow, error) {
	if err := rec.require(repaymentRequired...); err != nil {
		return RepaymentRow{}, err
	}
	row := RepaymentRow{
		DebtRef:    rec.get("debtId"),
		Notes:      rec.get("notes"),
		AccountRef: rec.get("accountId"),
	}
	var err error
	if row.RepaymentDate, err = ParseDate(rec.get("repaymentDate")); err != nil {
		return RepaymentRow{}, err
	}
	if row.Amount, err = parsePositive("amount", rec.get("amount")); err != nil {
		return RepaymentRow{}, err
	}
	return row, nil
}
