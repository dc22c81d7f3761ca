// Package importer validates debt and repayment CSV files and persists the rows that pass.
//
// Rows are handled in file order. A bad row is recorded against its 1-based row number and skipped;
// only an unreadable file fails the whole batch.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/models"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/store"
)

// Recorder persists accepted rows together with their side effects (account movements, status).
type Recorder interface {
	RecordDebt(ctx context.Context, debt *models.Debt) error
	RecordRepayment(ctx context.Context, repayment *models.Repayment) error
	GetDebt(ctx context.Context, id uuid.UUID) (*models.Debt, error)
}

// Importer runs import batches for one backend.
type Importer struct {
	recorder Recorder
	accounts store.AccountLedger
	now      func() time.Time
}

// New returns an Importer. accounts may be nil, in which case any account reference is unknown.
func New(recorder Recorder, accounts store.AccountLedger) *Importer {
	return &Importer{recorder: recorder, accounts: accounts, now: time.Now}
}

// ImportDebts validates and persists a debts CSV. The returned DebtIDMapping maps each accepted
// row's local identifier to the id it was persisted under.
func (im *Importer) ImportDebts(ctx context.Context, userID string, r io.Reader) (*models.ImportBatchResult, error) {
	t, err := readTable(r, debtRequired)
	if err != nil {
		return nil, err
	}

	res := &models.ImportBatchResult{DebtIDMapping: make(map[string]uuid.UUID)}
	seen := make(map[string]int)
	for n := 1; n <= len(t.rows); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := t.record(n)
		row, err := parseDebtRow(rec)
		if err != nil {
			res.AddError(n, err)
			continue
		}
		if first, dup := seen[row.LocalID]; dup {
			res.AddError(n, models.Invalid(models.KindDuplicateDebtReference, "id %q already used on row %d", row.LocalID, first))
			continue
		}
		seen[row.LocalID] = n
		if row.RawStatus != "" {
			slog.Warn("unrecognized status defaulted to ACTIVE", "row", n, "status", row.RawStatus)
			res.AddWarning(n, models.KindUnrecognizedStatus, fmt.Sprintf("status %q defaulted to %s", row.RawStatus, models.StatusActive))
		}

		debt, err := im.buildDebt(ctx, userID, row)
		if err != nil {
			res.AddError(n, err)
			continue
		}
		if err := im.recorder.RecordDebt(ctx, debt); err != nil {
			res.AddError(n, err)
			continue
		}
		res.ImportedCount++
		res.DebtIDMapping[row.LocalID] = debt.ID
	}
	res.Success = res.ImportedCount > 0 || len(t.rows) == 0
	slog.Info("debt import finished", "user", userID, "imported", res.ImportedCount, "skipped", res.SkippedCount)
	return res, nil
}

// ImportRepayments validates and persists a repayments CSV. A debtId found in mapping resolves to the
// mapped id; any other value must be the id of an existing debt of the user.
func (im *Importer) ImportRepayments(ctx context.Context, userID string, r io.Reader, mapping map[string]uuid.UUID) (*models.ImportBatchResult, error) {
	t, err := readTable(r, repaymentRequired)
	if err != nil {
		return nil, err
	}

	res := &models.ImportBatchResult{}
	for n := 1; n <= len(t.rows); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := parseRepaymentRow(t.record(n))
		if err != nil {
			res.AddError(n, err)
			continue
		}
		repayment, err := im.buildRepayment(ctx, userID, row, mapping)
		if err != nil {
			res.AddError(n, err)
			continue
		}
		if err := im.recorder.RecordRepayment(ctx, repayment); err != nil {
			res.AddError(n, err)
			continue
		}
		res.ImportedCount++
	}
	res.Success = res.ImportedCount > 0 || len(t.rows) == 0
	slog.Info("repayment import finished", "user", userID, "imported", res.ImportedCount, "skipped", res.SkippedCount)
	return res, nil
}

func (im *Importer) buildDebt(ctx context.Context, userID string, row DebtRow) (*models.Debt, error) {
	now := im.now()
	debt := &models.Debt{
		ID:              uuid.New(),
		UserID:          userID,
		BorrowerName:    row.BorrowerName,
		BorrowerContact: row.BorrowerContact,
		BorrowerEmail:   row.BorrowerEmail,
		Amount:          row.Amount,
		InterestRate:    row.InterestRate,
		LentDate:        row.LentDate,
		DueDate:         row.DueDate,
		Status:          row.Status,
		Purpose:         row.Purpose,
		Notes:           row.Notes,
		BankName:        row.BankName,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if row.Status.IsManual() {
		debt.ManualStatus = row.Status
	}

	if row.Account != "" {
		account, err := im.resolveAccount(ctx, userID, row.Account)
		if err != nil {
			return nil, err
		}
		balance, err := im.accounts.GetAccountBalance(ctx, account.ID)
		if err != nil {
			return nil, err
		}
		if balance.LessThan(row.Amount) {
			return nil, models.Invalid(models.KindInsufficientAccountBalance, "account %q has %s, needs %s",
				account.Name, balance.StringFixed(2), row.Amount.StringFixed(2))
		}
		debt.AccountID = &account.ID
		if debt.BankName == "" {
			debt.BankName = account.BankName
		}
	}
	return debt, nil
}

func (im *Importer) buildRepayment(ctx context.Context, userID string, row RepaymentRow, mapping map[string]uuid.UUID) (*models.Repayment, error) {
	debtID, err := im.resolveDebt(ctx, userID, row.DebtRef, mapping)
	if err != nil {
		return nil, err
	}
	repayment := &models.Repayment{
		ID:            uuid.New(),
		DebtID:        debtID,
		Amount:        row.Amount,
		RepaymentDate: row.RepaymentDate,
		Notes:         row.Notes,
		CreatedAt:     im.now(),
	}
	if row.AccountRef != "" {
		account, err := im.resolveAccount(ctx, userID, row.AccountRef)
		if err != nil {
			return nil, err
		}
		repayment.AccountID = &account.ID
	}
	return repayment, nil
}

func (im *Importer) resolveDebt(ctx context.Context, userID, ref string, mapping map[string]uuid.UUID) (uuid.UUID, error) {
	if id, ok := mapping[ref]; ok {
		return id, nil
	}
	id, err := uuid.Parse(ref)
	if err != nil {
		return uuid.Nil, models.Invalid(models.KindUnknownDebtReference, "debtId %q is not a known debt", ref)
	}
	debt, err := im.recorder.GetDebt(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && debt.UserID != userID) {
		return uuid.Nil, models.Invalid(models.KindUnknownDebtReference, "debtId %q is not a known debt", ref)
	}
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (im *Importer) resolveAccount(ctx context.Context, userID, ref string) (*models.Account, error) {
	if im.accounts == nil {
		return nil, models.Invalid(models.KindUnknownAccountReference, "account %q not found", ref)
	}
	account, err := im.accounts.ResolveAccount(ctx, userID, ref)
	if errors.Is(err, store.ErrNotFound) {
		return nil, models.Invalid(models.KindUnknownAccountReference, "account %q not found", ref)
	}
	return account, err
}
