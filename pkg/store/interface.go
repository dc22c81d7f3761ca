package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/models"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a debt, repayment or account does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines the persistence operations for debts and their repayments.
type Storage interface {
	CreateDebt(ctx context.Context, debt *models.Debt) error
	// GetDebt returns the debt with its repayments in insertion order.
	GetDebt(ctx context.Context, id uuid.UUID) (*models.Debt, error)
	UpdateDebt(ctx context.Context, debt *models.Debt) error
	// DeleteDebt removes the debt and every repayment it owns.
	DeleteDebt(ctx context.Context, id uuid.UUID) error
	ListDebts(ctx context.Context, userID string) ([]*models.Debt, error)

	CreateRepayment(ctx context.Context, repayment *models.Repayment) error
	GetRepayment(ctx context.Context, id uuid.UUID) (*models.Repayment, error)
	DeleteRepayment(ctx context.Context, id uuid.UUID) error
	GetRepaymentsForDebt(ctx context.Context, debtID uuid.UUID) ([]models.Repayment, error)

	Close() error
}

// AccountLedger is the account-balance collaborator. Lending debits an account,
// repayments credit it.
type AccountLedger interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	ListAccounts(ctx context.Context, userID string) ([]*models.Account, error)
	// ResolveAccount finds one of the user's accounts by id or, failing that, by name.
	ResolveAccount(ctx context.Context, userID, ref string) (*models.Account, error)
	GetAccountBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	Debit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error
	Credit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error
}

// Store is a backend implementing both collaborators.
type Store interface {
	Storage
	AccountLedger
}
