package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/importer"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/models"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/store"
	"github.com/shopspring/decimal"
)

// ErrImportInProgress is returned when a user starts an import while another one is running.
var ErrImportInProgress = errors.New("an import is already running for this user")

// Ledger handles the business logic for debts and repayments.
type Ledger struct {
	storage  store.Storage
	accounts store.AccountLedger
	now      func() time.Time

	mu        sync.Mutex
	importing map[string]bool
}

// NewLedger creates a Ledger. accounts may be nil when debts are never linked to accounts.
func NewLedger(s store.Storage, accounts store.AccountLedger) *Ledger {
	return &Ledger{
		storage:   s,
		accounts:  accounts,
		now:       time.Now,
		importing: make(map[string]bool),
	}
}

// DebtInput carries the fields of a new debt.
type DebtInput struct {
	BorrowerName    string            `json:"borrower_name"`
	BorrowerContact string            `json:"borrower_contact"`
	BorrowerEmail   string            `json:"borrower_email"`
	Amount          decimal.Decimal   `json:"amount"`
	InterestRate    decimal.Decimal   `json:"interest_rate"`
	LentDate        time.Time         `json:"lent_date"`
	DueDate         *time.Time        `json:"due_date"`
	Status          models.DebtStatus `json:"status"`
	Purpose         string            `json:"purpose"`
	Notes           string            `json:"notes"`
	AccountID       *uuid.UUID        `json:"account_id"`
	BankName        string            `json:"bank_name"`
}

// DebtPatch carries the fields to change on an existing debt; nil fields are left alone.
type DebtPatch struct {
	BorrowerName    *string            `json:"borrower_name"`
	BorrowerContact *string            `json:"borrower_contact"`
	BorrowerEmail   *string            `json:"borrower_email"`
	Amount          *decimal.Decimal   `json:"amount"`
	InterestRate    *decimal.Decimal   `json:"interest_rate"`
	LentDate        *time.Time         `json:"lent_date"`
	DueDate         *time.Time         `json:"due_date"`
	ClearDueDate    bool               `json:"clear_due_date"`
	Status          *models.DebtStatus `json:"status"`
	Purpose         *string            `json:"purpose"`
	Notes           *string            `json:"notes"`
	BankName        *string            `json:"bank_name"`
}

// RepaymentInput carries the fields of a new repayment.
type RepaymentInput struct {
	Amount        decimal.Decimal `json:"amount"`
	RepaymentDate time.Time       `json:"repayment_date"`
	Notes         string          `json:"notes"`
	AccountID     *uuid.UUID      `json:"account_id"`
}

// ImportResult holds both batches of an import session.
type ImportResult struct {
	Debts      *models.ImportBatchResult `json:"debts,omitempty"`
	Repayments *models.ImportBatchResult `json:"repayments,omitempty"`
}

// validateDebt checks the debt invariants.
func validateDebt(d *models.Debt) error {
	switch {
	case strings.TrimSpace(d.BorrowerName) == "":
		return models.Invalid(models.KindMissingRequiredField, "borrower name is required")
	case d.LentDate.IsZero():
		return models.Invalid(models.KindMissingRequiredField, "lent date is required")
	case !d.Amount.IsPositive():
		return models.Invalid(models.KindUnparsableAmount, "amount must be positive")
	case d.InterestRate.IsNegative():
		return models.Invalid(models.KindUnparsableAmount, "interest rate must not be negative")
	case d.DueDate != nil && models.Day(*d.DueDate).Before(models.Day(d.LentDate)):
		return models.Invalid(models.KindInvalidDateRange, "due date is before lent date")
	}
	return nil
}

// CreateDebt validates and stores a new debt, debiting its linked account.
func (l *Ledger) CreateDebt(ctx context.Context, userID string, in DebtInput) (*models.Debt, error) {
	now := l.now()
	debt := &models.Debt{
		ID:              uuid.New(),
		UserID:          userID,
		BorrowerName:    strings.TrimSpace(in.BorrowerName),
		BorrowerContact: in.BorrowerContact,
		BorrowerEmail:   in.BorrowerEmail,
		Amount:          in.Amount,
		InterestRate:    in.InterestRate,
		LentDate:        models.Day(in.LentDate),
		Status:          models.StatusActive,
		Purpose:         in.Purpose,
		Notes:           in.Notes,
		AccountID:       in.AccountID,
		BankName:        in.BankName,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.DueDate != nil {
		due := models.Day(*in.DueDate)
		debt.DueDate = &due
	}
	if in.Status != "" {
		if err := ApplyExplicitStatus(debt, in.Status); err != nil {
			return nil, err
		}
	}
	if err := validateDebt(debt); err != nil {
		return nil, err
	}
	if debt.AccountID != nil {
		if err := l.checkBalance(ctx, *debt.AccountID, debt.Amount); err != nil {
			return nil, err
		}
	}
	if err := l.RecordDebt(ctx, debt); err != nil {
		return nil, err
	}
	return debt, nil
}

// RecordDebt persists a validated debt and debits its linked account.
func (l *Ledger) RecordDebt(ctx context.Context, debt *models.Debt) error {
	if debt.AccountID != nil {
		if err := l.debit(ctx, *debt.AccountID, debt.Amount); err != nil {
			return err
		}
	}
	if err := l.storage.CreateDebt(ctx, debt); err != nil {
		if debt.AccountID != nil {
			l.reverse(ctx, *debt.AccountID, debt.Amount, true)
		}
		return fmt.Errorf("failed to store debt: %w", err)
	}
	slog.Debug("debt recorded", "debt", debt.ID, "amount", debt.Amount.StringFixed(2))
	return nil
}

// GetDebt retrieves a debt with its repayments.
func (l *Ledger) GetDebt(ctx context.Context, id uuid.UUID) (*models.Debt, error) {
	return l.storage.GetDebt(ctx, id)
}

// ListDebts retrieves all debts of a user.
func (l *Ledger) ListDebts(ctx context.Context, userID string) ([]*models.Debt, error) {
	return l.storage.ListDebts(ctx, userID)
}

// EditDebt applies patch. An explicit status always wins over the derived one; otherwise the
// status is recomputed from the new ledger figures.
func (l *Ledger) EditDebt(ctx context.Context, id uuid.UUID, patch DebtPatch) (*models.Debt, error) {
	debt, err := l.storage.GetDebt(ctx, id)
	if err != nil {
		return nil, err
	}
	oldAmount := debt.Amount

	if patch.BorrowerName != nil {
		debt.BorrowerName = strings.TrimSpace(*patch.BorrowerName)
	}
	if patch.BorrowerContact != nil {
		debt.BorrowerContact = *patch.BorrowerContact
	}
	if patch.BorrowerEmail != nil {
		debt.BorrowerEmail = *patch.BorrowerEmail
	}
	if patch.Amount != nil {
		debt.Amount = *patch.Amount
	}
	if patch.InterestRate != nil {
		debt.InterestRate = *patch.InterestRate
	}
	if patch.LentDate != nil {
		debt.LentDate = models.Day(*patch.LentDate)
	}
	if patch.ClearDueDate {
		debt.DueDate = nil
	} else if patch.DueDate != nil {
		due := models.Day(*patch.DueDate)
		debt.DueDate = &due
	}
	if patch.Purpose != nil {
		debt.Purpose = *patch.Purpose
	}
	if patch.Notes != nil {
		debt.Notes = *patch.Notes
	}
	if patch.BankName != nil {
		debt.BankName = *patch.BankName
	}
	if err := validateDebt(debt); err != nil {
		return nil, err
	}

	if patch.Status != nil {
		if err := ApplyExplicitStatus(debt, *patch.Status); err != nil {
			return nil, err
		}
	} else {
		debt.Status = RecomputeStatus(debt, computeRaw(debt, l.now()))
	}

	delta := debt.Amount.Sub(oldAmount)
	if debt.AccountID != nil && !delta.IsZero() {
		if delta.IsPositive() {
			if err := l.checkBalance(ctx, *debt.AccountID, delta); err != nil {
				return nil, err
			}
			if err := l.debit(ctx, *debt.AccountID, delta); err != nil {
				return nil, err
			}
		} else if err := l.credit(ctx, *debt.AccountID, delta.Neg()); err != nil {
			return nil, err
		}
	}

	debt.UpdatedAt = l.now()
	if err := l.storage.UpdateDebt(ctx, debt); err != nil {
		if debt.AccountID != nil && !delta.IsZero() {
			l.reverse(ctx, *debt.AccountID, delta.Abs(), delta.IsPositive())
		}
		return nil, fmt.Errorf("failed to update debt: %w", err)
	}
	return debt, nil
}

// DeleteDebt removes a debt with its repayments and credits the principal back to its account.
func (l *Ledger) DeleteDebt(ctx context.Context, id uuid.UUID) error {
	debt, err := l.storage.GetDebt(ctx, id)
	if err != nil {
		return err
	}
	if err := l.storage.DeleteDebt(ctx, id); err != nil {
		return err
	}
	if debt.AccountID != nil {
		if err := l.credit(ctx, *debt.AccountID, debt.Amount); err != nil {
			return fmt.Errorf("debt %s deleted but balance reversal failed: %w", id, err)
		}
	}
	slog.Info("debt deleted", "debt", id, "repayments", len(debt.Repayments))
	return nil
}

// BulkDelete deletes each debt independently and returns how many were deleted.
// Failures are joined into the returned error.
func (l *Ledger) BulkDelete(ctx context.Context, ids []uuid.UUID) (int, error) {
	var errs []error
	deleted := 0
	for _, id := range ids {
		if err := l.DeleteDebt(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("debt %s: %w", id, err))
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

// DeletionPreview loads the debts a bulk delete would remove, skipping unknown ids.
func (l *Ledger) DeletionPreview(ctx context.Context, ids []uuid.UUID) ([]*models.Debt, error) {
	var debts []*models.Debt
	for _, id := range ids {
		debt, err := l.storage.GetDebt(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		debts = append(debts, debt)
	}
	return debts, nil
}

// AddRepayment records a repayment against a debt and returns the updated debt.
func (l *Ledger) AddRepayment(ctx context.Context, debtID uuid.UUID, in RepaymentInput) (*models.Debt, error) {
	if !in.Amount.IsPositive() {
		return nil, models.Invalid(models.KindUnparsableAmount, "amount must be positive")
	}
	if in.RepaymentDate.IsZero() {
		return nil, models.Invalid(models.KindMissingRequiredField, "repayment date is required")
	}
	r := &models.Repayment{
		ID:            uuid.New(),
		DebtID:        debtID,
		Amount:        in.Amount,
		RepaymentDate: models.Day(in.RepaymentDate),
		Notes:         in.Notes,
		AccountID:     in.AccountID,
		CreatedAt:     l.now(),
	}
	if err := l.RecordRepayment(ctx, r); err != nil {
		return nil, err
	}
	return l.storage.GetDebt(ctx, debtID)
}

// RecordRepayment persists a repayment, credits its account and recomputes the debt status.
func (l *Ledger) RecordRepayment(ctx context.Context, r *models.Repayment) error {
	debt, err := l.storage.GetDebt(ctx, r.DebtID)
	if err != nil {
		return err
	}
	if err := l.storage.CreateRepayment(ctx, r); err != nil {
		return fmt.Errorf("failed to store repayment: %w", err)
	}
	if r.AccountID != nil {
		if err := l.credit(ctx, *r.AccountID, r.Amount); err != nil {
			return fmt.Errorf("repayment %s stored but account credit failed: %w", r.ID, err)
		}
	}
	debt.Repayments = append(debt.Repayments, *r)
	return l.refreshStatus(ctx, debt)
}

// DeleteRepayment removes one repayment, reverses its account credit and recomputes the debt status.
func (l *Ledger) DeleteRepayment(ctx context.Context, id uuid.UUID) (*models.Debt, error) {
	r, err := l.storage.GetRepayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.AccountID != nil {
		if err := l.debit(ctx, *r.AccountID, r.Amount); err != nil {
			return nil, err
		}
	}
	if err := l.storage.DeleteRepayment(ctx, id); err != nil {
		if r.AccountID != nil {
			l.reverse(ctx, *r.AccountID, r.Amount, true)
		}
		return nil, err
	}
	debt, err := l.storage.GetDebt(ctx, r.DebtID)
	if err != nil {
		return nil, err
	}
	if err := l.refreshStatus(ctx, debt); err != nil {
		return nil, err
	}
	return debt, nil
}

// Import runs a two-phase import: debts first, then repayments resolved through the debt mapping.
// Either reader may be nil. Only one import per user runs at a time.
func (l *Ledger) Import(ctx context.Context, userID string, debtsCSV, repaymentsCSV io.Reader) (*ImportResult, error) {
	if !l.beginImport(userID) {
		return nil, ErrImportInProgress
	}
	defer l.endImport(userID)

	im := importer.New(l, l.accounts)
	res := &ImportResult{}
	var mapping map[string]uuid.UUID
	if debtsCSV != nil {
		batch, err := im.ImportDebts(ctx, userID, debtsCSV)
		if err != nil {
			return nil, fmt.Errorf("debts file: %w", err)
		}
		res.Debts = batch
		mapping = batch.DebtIDMapping
	}
	if repaymentsCSV != nil {
		batch, err := im.ImportRepayments(ctx, userID, repaymentsCSV, mapping)
		if err != nil {
			return res, fmt.Errorf("repayments file: %w", err)
		}
		res.Repayments = batch
	}
	return res, nil
}

func (l *Ledger) beginImport(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.importing[userID] {
		return false
	}
	l.importing[userID] = true
	return true
}

func (l *Ledger) endImport(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.importing, userID)
}

func (l *Ledger) refreshStatus(ctx context.Context, debt *models.Debt) error {
	next := RecomputeStatus(debt, computeRaw(debt, l.now()))
	if next == debt.Status {
		return nil
	}
	slog.Info("debt status changed", "debt", debt.ID, "from", debt.Status, "to", next)
	debt.Status = next
	debt.UpdatedAt = l.now()
	if err := l.storage.UpdateDebt(ctx, debt); err != nil {
		return fmt.Errorf("failed to update debt status: %w", err)
	}
	return nil
}

func (l *Ledger) checkBalance(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error {
	if l.accounts == nil {
		return models.Invalid(models.KindUnknownAccountReference, "account %s not found", accountID)
	}
	balance, err := l.accounts.GetAccountBalance(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Invalid(models.KindUnknownAccountReference, "account %s not found", accountID)
	}
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return models.Invalid(models.KindInsufficientAccountBalance, "account %s has %s, needs %s",
			accountID, balance.StringFixed(2), amount.StringFixed(2))
	}
	return nil
}

func (l *Ledger) debit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error {
	if l.accounts == nil {
		return models.Invalid(models.KindUnknownAccountReference, "account %s not found", accountID)
	}
	return l.accounts.Debit(ctx, accountID, amount)
}

func (l *Ledger) credit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error {
	if l.accounts == nil {
		return models.Invalid(models.KindUnknownAccountReference, "account %s not found", accountID)
	}
	return l.accounts.Credit(ctx, accountID, amount)
}

// reverse undoes an account movement after a failed write. debited tells which way it went.
func (l *Ledger) reverse(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, debited bool) {
	var err error
	if debited {
		err = l.credit(ctx, accountID, amount)
	} else {
		err = l.debit(ctx, accountID, amount)
	}
	if err != nil {
		slog.Error("failed to reverse account movement", "account", accountID, "amount", amount.StringFixed(2), "error", err)
	}
}
