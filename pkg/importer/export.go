package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/models"
)

// DebtColumns is the header written by ExportDebts. The leading id column lets a later
// repayments import resolve debtId through the debt import's mapping.
var DebtColumns = []string{"id", "borrowerName", "amount", "interestRate", "lentDate", "dueDate", "status",
	"borrowerContact", "borrowerEmail", "purpose", "notes", "account", "bankName"}

// RepaymentColumns is the header written by ExportRepayments.
var RepaymentColumns = []string{"debtId", "amount", "repaymentDate", "notes", "accountId"}

// ExportDebts writes debts in the debts import format.
func ExportDebts(w io.Writer, debts []*models.Debt) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DebtColumns); err != nil {
		return fmt.Errorf("cannot write debts header: %w", err)
	}
	for _, d := range debts {
		status := d.Status
		if d.ManualStatus != "" {
			status = d.ManualStatus
		}
		record := []string{
			d.ID.String(),
			d.BorrowerName,
			d.Amount.String(),
			d.InterestRate.String(),
			d.LentDate.Format(models.DateFormat),
			formatDate(d.DueDate),
			string(status),
			d.BorrowerContact,
			d.BorrowerEmail,
			d.Purpose,
			d.Notes,
			"",
			d.BankName,
		}
		if d.AccountID != nil {
			record[11] = d.AccountID.String()
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("cannot write debt %s: %w", d.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportRepayments writes every repayment of debts in the repayments import format.
func ExportRepayments(w io.Writer, debts []*models.Debt) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RepaymentColumns); err != nil {
		return fmt.Errorf("cannot write repayments header: %w", err)
	}
	for _, d := range debts {
		for _, r := range d.Repayments {
			account := ""
			if r.AccountID != nil {
				account = r.AccountID.String()
			}
			record := []string{d.ID.String(), r.Amount.String(), r.RepaymentDate.Format(models.DateFormat), r.Notes, account}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("cannot write repayment %s: %w", r.ID, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(models.DateFormat)
}
