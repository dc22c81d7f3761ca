package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/models"
	"github.com/shopspring/decimal"
)

func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := NewPostgresStore(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresStore_DebtLifecycle(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()
	userID := "pg-" + uuid.NewString()

	debt := testDebt(userID)
	if err := s.CreateDebt(ctx, debt); err != nil {
		t.Fatalf("Failed to create debt: %v", err)
	}
	t.Cleanup(func() { s.DeleteDebt(context.Background(), debt.ID) })

	first := testRepayment(debt.ID, "300.10", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	second := testRepayment(debt.ID, "0.90", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	for _, r := range []*models.Repayment{first, second} {
		if err := s.CreateRepayment(ctx, r); err != nil {
			t.Fatalf("Failed to create repayment: %v", err)
		}
	}

	debts, err := s.ListDebts(ctx, userID)
	if err != nil {
		t.Fatalf("Failed to list debts: %v", err)
	}
	if len(debts) != 1 {
		t.Fatalf("Expected 1 debt, got %d", len(debts))
	}
	got := debts[0]
	if !got.Amount.Equal(debt.Amount) || !got.InterestRate.Equal(debt.InterestRate) {
		t.Errorf("Expected amount %s at %s, got %s at %s", debt.Amount, debt.InterestRate, got.Amount, got.InterestRate)
	}
	if got.DueDate == nil || got.DueDate.Format(models.DateFormat) != "2024-07-01" {
		t.Errorf("Expected due date 2024-07-01, got %v", got.DueDate)
	}
	if len(got.Repayments) != 2 || got.Repayments[0].ID != first.ID {
		t.Errorf("Expected repayments in insertion order, got %+v", got.Repayments)
	}

	if err := s.DeleteRepayment(ctx, first.ID); err != nil {
		t.Fatalf("Failed to delete repayment: %v", err)
	}
	if err := s.DeleteDebt(ctx, debt.ID); err != nil {
		t.Fatalf("Failed to delete debt: %v", err)
	}
	if _, err := s.GetRepayment(ctx, second.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected repayment removed with its debt, got %v", err)
	}
}

func TestPostgresStore_AccountBalance(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	acct := &models.Account{ID: uuid.New(), UserID: "pg-" + uuid.NewString(), Name: "Wallet", Balance: decimal.NewFromInt(10), CreatedAt: now, UpdatedAt: now}
	if err := s.CreateAccount(ctx, acct); err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}

	if err := s.Debit(ctx, acct.ID, decimal.NewFromInt(11)); !errors.Is(err, models.ErrInsufficientAccountBalance) {
		t.Errorf("Expected InsufficientAccountBalance, got %v", err)
	}
	if err := s.Debit(ctx, acct.ID, decimal.RequireFromString("9.99")); err != nil {
		t.Fatalf("Failed to debit: %v", err)
	}
	balance, err := s.GetAccountBalance(ctx, acct.ID)
	if err != nil {
		t.Fatalf("Failed to get balance: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("Expected balance 0.01, got %s", balance)
	}
}
