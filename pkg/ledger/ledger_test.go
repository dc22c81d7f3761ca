package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/models"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/store"
	"github.com/shopspring/decimal"
)

// MockStore is a simple in-memory implementation of store.Store for testing.
type MockStore struct {
	mu         sync.Mutex
	debts      map[uuid.UUID]models.Debt
	order      []uuid.UUID
	repayments []models.Repayment
	accounts   map[uuid.UUID]*models.Account
}

func NewMockStore() *MockStore {
	return &MockStore{
		debts:    make(map[uuid.UUID]models.Debt),
		accounts: make(map[uuid.UUID]*models.Account),
	}
}

func (m *MockStore) CreateDebt(_ context.Context, d *models.Debt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *d
	c.Repayments = nil
	m.debts[d.ID] = c
	m.order = append(m.order, d.ID)
	return nil
}

func (m *MockStore) GetDebt(_ context.Context, id uuid.UUID) (*models.Debt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(id)
}

func (m *MockStore) getLocked(id uuid.UUID) (*models.Debt, error) {
	d, ok := m.debts[id]
	if !ok {
		return nil, fmt.Errorf("debt %s: %w", id, store.ErrNotFound)
	}
	for _, r := range m.repayments {
		if r.DebtID == id {
			d.Repayments = append(d.Repayments, r)
		}
	}
	return &d, nil
}

func (m *MockStore) UpdateDebt(_ context.Context, d *models.Debt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.debts[d.ID]; !ok {
		return fmt.Errorf("debt %s: %w", d.ID, store.ErrNotFound)
	}
	c := *d
	c.Repayments = nil
	m.debts[d.ID] = c
	return nil
}

func (m *MockStore) DeleteDebt(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.debts[id]; !ok {
		return fmt.Errorf("debt %s: %w", id, store.ErrNotFound)
	}
	delete(m.debts, id)
	kept := m.repayments[:0]
	for _, r := range m.repayments {
		if r.DebtID != id {
			kept = append(kept, r)
		}
	}
	m.repayments = kept
	return nil
}

func (m *MockStore) ListDebts(_ context.Context, userID string) ([]*models.Debt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Debt
	for _, id := range m.order {
		if d, ok := m.debts[id]; ok && d.UserID == userID {
			full, _ := m.getLocked(id)
			out = append(out, full)
		}
	}
	return out, nil
}

func (m *MockStore) CreateRepayment(_ context.Context, r *models.Repayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repayments = append(m.repayments, *r)
	return nil
}

func (m *MockStore) GetRepayment(_ context.Context, id uuid.UUID) (*models.Repayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.repayments {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, fmt.Errorf("repayment %s: %w", id, store.ErrNotFound)
}

func (m *MockStore) DeleteRepayment(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.repayments {
		if r.ID == id {
			m.repayments = append(m.repayments[:i], m.repayments[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("repayment %s: %w", id, store.ErrNotFound)
}

func (m *MockStore) GetRepaymentsForDebt(_ context.Context, debtID uuid.UUID) ([]models.Repayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Repayment
	for _, r := range m.repayments {
		if r.DebtID == debtID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockStore) CreateAccount(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *a
	m.accounts[a.ID] = &c
	return nil
}

func (m *MockStore) ListAccounts(_ context.Context, userID string) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Account
	for _, a := range m.accounts {
		if a.UserID == userID {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *MockStore) ResolveAccount(ctx context.Context, userID, ref string) (*models.Account, error) {
	accounts, _ := m.ListAccounts(ctx, userID)
	for _, a := range accounts {
		if a.ID.String() == ref || strings.EqualFold(a.Name, ref) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("account %q: %w", ref, store.ErrNotFound)
}

func (m *MockStore) GetAccountBalance(_ context.Context, id uuid.UUID) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return decimal.Zero, store.ErrNotFound
	}
	return a.Balance, nil
}

func (m *MockStore) Debit(_ context.Context, id uuid.UUID, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	if a.Balance.LessThan(amount) {
		return models.ErrInsufficientAccountBalance
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

func (m *MockStore) Credit(_ context.Context, id uuid.UUID, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Balance = a.Balance.Add(amount)
	return nil
}

func (m *MockStore) Close() error {
	return nil
}

func day(s string) time.Time {
	t, err := time.Parse(models.DateFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestLedger(s *MockStore) *Ledger {
	l := NewLedger(s, s)
	l.now = func() time.Time { return day("2024-05-01") }
	return l
}

func scenarioInput() DebtInput {
	return DebtInput{
		BorrowerName: "Alice",
		Amount:       dec("1000"),
		InterestRate: dec("12"),
		LentDate:     day("2024-01-01"),
		DueDate:      ptr(day("2024-07-01")),
	}
}

func addAccount(t *testing.T, s *MockStore, name, balance string) *models.Account {
	t.Helper()
	a := &models.Account{ID: uuid.New(), UserID: "u1", Name: name, Balance: dec(balance)}
	if err := s.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	return a
}

func TestCreateDebt(t *testing.T) {
	s := NewMockStore()
	l := newTestLedger(s)

	debt, err := l.CreateDebt(context.Background(), "u1", scenarioInput())
	if err != nil {
		t.Fatalf("Failed to create debt: %v", err)
	}
	if debt.Status != models.StatusActive {
		t.Errorf("Expected status ACTIVE, got %s", debt.Status)
	}

	fetched, err := l.GetDebt(context.Background(), debt.ID)
	if err != nil {
		t.Fatalf("Failed to get debt: %v", err)
	}
	if !fetched.Amount.Equal(dec("1000")) {
		t.Errorf("Expected amount 1000, got %s", fetched.Amount)
	}
}

func TestCreateDebt_Validation(t *testing.T) {
	l := newTestLedger(NewMockStore())
	ctx := context.Background()

	cases := []struct {
		name string
		edit func(*DebtInput)
		want error
	}{
		{"zero amount", func(in *DebtInput) { in.Amount = decimal.Zero }, models.ErrUnparsableAmount},
		{"negative rate", func(in *DebtInput) { in.InterestRate = dec("-1") }, models.ErrUnparsableAmount},
		{"missing borrower", func(in *DebtInput) { in.BorrowerName = " " }, models.ErrMissingRequiredField},
		{"due before lent", func(in *DebtInput) { in.DueDate = ptr(day("2023-12-31")) }, models.ErrInvalidDateRange},
	}
	for _, tc := range cases {
		in := scenarioInput()
		tc.edit(&in)
		if _, err := l.CreateDebt(ctx, "u1", in); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestCreateDebt_DebitsLinkedAccount(t *testing.T) {
	s := NewMockStore()
	l := newTestLedger(s)
	acct := addAccount(t, s, "Checking", "1500")

	in := scenarioInput()
	in.AccountID = &acct.ID
	if _, err := l.CreateDebt(context.Background(), "u1", in); err != nil {
		t.Fatalf("Failed to create debt: %v", err)
	}
	balance, _ := s.GetAccountBalance(context.Background(), acct.ID)
	if !balance.Equal(dec("500")) {
		t.Errorf("Expected account balance 500, got %s", balance)
	}

	in.Amount = dec("600")
	if _, err := l.CreateDebt(context.Background(), "u1", in); !errors.Is(err, models.ErrInsufficientAccountBalance) {
		t.Errorf("Expected InsufficientAccountBalance, got %v", err)
	}
	debts, _ := l.ListDebts(context.Background(), "u1")
	if len(debts) != 1 {
		t.Errorf("Expected the rejected debt not to be stored, got %d debts", len(debts))
	}
}

func TestAddRepayment_Scenarios(t *testing.T) {
	s := NewMockStore()
	l := newTestLedger(s)
	ctx := context.Background()

	debt, _ := l.CreateDebt(ctx, "u1", scenarioInput())

	// Scenario B
	debt, err := l.AddRepayment(ctx, debt.ID, RepaymentInput{Amount: dec("500"), RepaymentDate: day("2024-04-01")})
	if err != nil {
		t.Fatalf("Failed to add repayment: %v", err)
	}
	if debt.Status != models.StatusPartiallyPaid {
		t.Errorf("Expected status PARTIALLY_PAID, got %s", debt.Status)
	}
	b := ComputeDebt(debt, day("2024-05-01"))
	if !b.RemainingAmount.Equal(dec("559.84")) {
		t.Errorf("Expected remaining 559.84, got %s", b.RemainingAmount)
	}

	// Scenario C
	debt, _ = l.AddRepayment(ctx, debt.ID, RepaymentInput{Amount: dec("559.84"), RepaymentDate: day("2024-06-01")})
	if debt.Status != models.StatusFullyPaid {
		t.Errorf("Expected status FULLY_PAID, got %s", debt.Status)
	}
	debt, _ = l.AddRepayment(ctx, debt.ID, RepaymentInput{Amount: dec("100"), RepaymentDate: day("2024-06-15")})
	b = ComputeDebt(debt, day("2024-07-01"))
	if !b.RemainingAmount.IsZero() {
		t.Errorf("Expected remaining clamped at 0, got %s", b.RemainingAmount)
	}
	if debt.Status != models.StatusFullyPaid {
		t.Errorf("Expected status to stay FULLY_PAID, got %s", debt.Status)
	}
}

func TestPaidOffOpenEndedDebt_StopsAccruing(t *testing.T) {
	s := NewMockStore()
	l := newTestLedger(s)
	l.now = func() time.Time { return day("2024-07-01") }
	ctx := context.Background()

	in := scenarioInput()
	in.DueDate = nil
	debt, err := l.CreateDebt(ctx, "u1", in)
	if err != nil {
		t.Fatalf("Failed to create debt: %v", err)
	}
	debt, _ = l.AddRepayment(ctx, debt.ID, RepaymentInput{Amount: dec("1000"), RepaymentDate: day("2024-07-01")})
	debt, _ = l.AddRepayment(ctx, debt.ID, RepaymentInput{Amount: dec("59.84"), RepaymentDate: day("2024-07-01")})
	if debt.Status != models.StatusFullyPaid {
		t.Fatalf("Expected status FULLY_PAID, got %s", debt.Status)
	}

	v := View(debt, day("2025-07-01"))
	if !v.Balance.RemainingAmount.IsZero() {
		t.Errorf("Expected nothing remaining a year later, got %s", v.Balance.RemainingAmount)
	}
	if !v.Balance.InterestAmount.Equal(dec("59.84")) {
		t.Errorf("Expected interest frozen at 59.84, got %s", v.Balance.InterestAmount)
	}
	if v.EffectiveStatus != models.StatusFullyPaid {
		t.Errorf("Expected effective status FULLY_PAID, got %s", v.EffectiveStatus)
	}

	var last uuid.UUID
	for _, r := range debt.Repayments {
		if r.Amount.Equal(dec("59.84")) {
			last = r.ID
		}
	}
	debt, err = l.DeleteRepayment(ctx, last)
	if err != nil {
		t.Fatalf("Failed to delete repayment: %v", err)
	}
	if debt.Status != models.StatusPartiallyPaid {
		t.Errorf("Expected status back to PARTIALLY_PAID, got %s", debt.Status)
	}
	if b := ComputeDebt(debt, day("2024-07-01")); !b.RemainingAmount.Equal(dec("59.84")) {
		t.Errorf("Expected remaining 59.84 after delete, got %s", b.RemainingAmount)
	}
}

func TestAddRepayment_KeepsDefaulted(t *testing.T) {
	s := NewMockStore()
	l := newTestLedger(s)
	ctx := context.Background()

	debt, _ := l.CreateDebt(ctx, "u1", scenarioInput())
	defaulted := models.StatusDefaulted
	if _, err := l.EditDebt(ctx, debt.ID, DebtPatch{Status: &defaulted}); err != nil {
		t.Fatalf("Failed to edit debt: %v", err)
	}

	debt, _ = l.AddRepayment(ctx, debt.ID, RepaymentInput{Amount: dec("2000"), RepaymentDate: day("2024-04-01")})
	if debt.Status != models.StatusDefaulted {
		t.Errorf("Expected DEFAULTED to survive a repayment, got %s", debt.Status)
	}
}

func TestDeleteRepayment_RecomputesStatus(t *testing.T) {
	s := NewMockStore()
	l := newTestLedger(s)
	ctx := context.Background()
	acct := addAccount(t, s, "Savings", "0")

	debt, _ := l.CreateDebt(ctx, "u1", scenarioInput())
	debt, _ = l.AddRepayment(ctx, debt.ID, RepaymentInput{Amount: dec("300"), RepaymentDate: day("2024-02-01"), AccountID: &acct.ID})
	if balance, _ := s.GetAccountBalance(ctx, acct.ID); !balance.Equal(dec("300")) {
		t.Errorf("Expected repayment credited to account, got balance %s", balance)
	}

	debt, err := l.DeleteRepayment(ctx, debt.Repayments[0].ID)
	if err != nil {
		t.Fatalf("Failed to delete repayment: %v", err)
	}
	if debt.Status != models.StatusActive {
		t.Errorf("Expected status back to ACTIVE, got %s", debt.Status)
	}
	if balance, _ := s.GetAccountBalance(ctx, acct.ID); !balance.IsZero() {
		t.Errorf("Expected repayment credit reversed, got balance %s", balance)
	}
}

func TestEditDebt_AmountChangeMovesAccount(t *testing.T) {
	s := NewMockStore()
	l := newTestLedger(s)
	ctx := context.Background()
	acct := addAccount(t, s, "Checking", "2000")

	in := scenarioInput()
	in.AccountID = &acct.ID
	debt, _ := l.CreateDebt(ctx, "u1", in)

	amount := dec("1500")
	if _, err := l.EditDebt(ctx, debt.ID, DebtPatch{Amount: &amount}); err != nil {
		t.Fatalf("Failed to edit debt: %v", err)
	}
	if balance, _ := s.GetAccountBalance(ctx, acct.ID); !balance.Equal(dec("500")) {
		t.Errorf("Expected balance 500 after increase, got %s", balance)
	}

	amount = dec("2500")
	if _, err := l.EditDebt(ctx, debt.ID, DebtPatch{Amount: &amount}); !errors.Is(err, models.ErrInsufficientAccountBalance) {
		t.Errorf("Expected InsufficientAccountBalance, got %v", err)
	}

	amount = dec("200")
	if _, err := l.EditDebt(ctx, debt.ID, DebtPatch{Amount: &amount}); err != nil {
		t.Fatalf("Failed to edit debt: %v", err)
	}
	if balance, _ := s.GetAccountBalance(ctx, acct.ID); !balance.Equal(dec("1800")) {
		t.Errorf("Expected balance 1800 after decrease, got %s", balance)
	}
}

func TestEditDebt_ExplicitStatusWins(t *testing.T) {
	s := NewMockStore()
	l := newTestLedger(s)
	ctx := context.Background()

	debt, _ := l.CreateDebt(ctx, "u1", scenarioInput())
	paid := models.StatusFullyPaid
	debt, err := l.EditDebt(ctx, debt.ID, DebtPatch{Status: &paid})
	if err != nil {
		t.Fatalf("Failed to edit debt: %v", err)
	}
	if debt.ManualStatus != models.StatusFullyPaid {
		t.Errorf("Expected manual FULLY_PAID override, got %q", debt.ManualStatus)
	}
	if b := ComputeDebt(debt, day("2025-01-01")); !b.RemainingAmount.IsZero() {
		t.Errorf("Expected settled debt to have nothing remaining, got %s", b.RemainingAmount)
	}

	active := models.StatusActive
	debt, _ = l.EditDebt(ctx, debt.ID, DebtPatch{Status: &active})
	if debt.ManualStatus != "" || debt.Status != models.StatusActive {
		t.Errorf("Expected override cleared, got status=%s manual=%q", debt.Status, debt.ManualStatus)
	}
}

func TestDeleteDebt_ReversesBalance(t *testing.T) {
	s := NewMockStore()
	l := newTestLedger(s)
	ctx := context.Background()
	acct := addAccount(t, s, "Checking", "1000")

	in := scenarioInput()
	in.AccountID = &acct.ID
	debt, _ := l.CreateDebt(ctx, "u1", in)
	l.AddRepayment(ctx, debt.ID, RepaymentInput{Amount: dec("100"), RepaymentDate: day("2024-02-01")})

	if err := l.DeleteDebt(ctx, debt.ID); err != nil {
		t.Fatalf("Failed to delete debt: %v", err)
	}
	if balance, _ := s.GetAccountBalance(ctx, acct.ID); !balance.Equal(dec("1000")) {
		t.Errorf("Expected principal credited back, got %s", balance)
	}
	if reps, _ := s.GetRepaymentsForDebt(ctx, debt.ID); len(reps) != 0 {
		t.Errorf("Expected repayments deleted with the debt, got %d", len(reps))
	}
	if _, err := l.GetDebt(ctx, debt.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestBulkDelete(t *testing.T) {
	s := NewMockStore()
	l := newTestLedger(s)
	ctx := context.Background()

	a, _ := l.CreateDebt(ctx, "u1", scenarioInput())
	b, _ := l.CreateDebt(ctx, "u1", scenarioInput())

	preview, err := l.DeletionPreview(ctx, []uuid.UUID{a.ID, uuid.New()})
	if err != nil || len(preview) != 1 {
		t.Errorf("Expected preview of 1 debt, got %d (%v)", len(preview), err)
	}

	deleted, err := l.BulkDelete(ctx, []uuid.UUID{a.ID, b.ID, uuid.New()})
	if deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d", deleted)
	}
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected joined not found error, got %v", err)
	}
}

func TestImport_TwoPhase(t *testing.T) {
	s := NewMockStore()
	l := newTestLedger(s)
	ctx := context.Background()

	debtsCSV := "id,borrowerName,amount,interestRate,lentDate,dueDate\n" +
		"d1,Alice,1000,12,2024-01-01,2024-07-01\n" +
		"d2,Bob,abc,5,2024-01-01,\n"
	repaymentsCSV := "debtId,amount,repaymentDate\n" +
		"d1,500,2024-04-01\n" +
		"d2,10,2024-04-01\n"

	res, err := l.Import(ctx, "u1", strings.NewReader(debtsCSV), strings.NewReader(repaymentsCSV))
	if err != nil {
		t.Fatalf("Failed to import: %v", err)
	}
	if res.Debts.ImportedCount != 1 || res.Debts.SkippedCount != 1 {
		t.Errorf("Expected 1 imported and 1 skipped debt, got %d/%d", res.Debts.ImportedCount, res.Debts.SkippedCount)
	}
	if res.Repayments.ImportedCount != 1 || res.Repayments.SkippedCount != 1 {
		t.Errorf("Expected 1 imported and 1 skipped repayment, got %d/%d", res.Repayments.ImportedCount, res.Repayments.SkippedCount)
	}
	if len(res.Repayments.Errors) != 1 || res.Repayments.Errors[0].Error != models.KindUnknownDebtReference {
		t.Errorf("Expected UnknownDebtReference on row 2, got %+v", res.Repayments.Errors)
	}

	debt, _ := l.GetDebt(ctx, res.Debts.DebtIDMapping["d1"])
	if debt.Status != models.StatusPartiallyPaid {
		t.Errorf("Expected imported repayment to move status to PARTIALLY_PAID, got %s", debt.Status)
	}
}

func TestImport_RejectsConcurrentSession(t *testing.T) {
	l := newTestLedger(NewMockStore())
	if !l.beginImport("u1") {
		t.Fatal("Expected first session to start")
	}
	if _, err := l.Import(context.Background(), "u1", strings.NewReader("x"), nil); !errors.Is(err, ErrImportInProgress) {
		t.Errorf("Expected ErrImportInProgress, got %v", err)
	}
	if _, err := l.Import(context.Background(), "u2", nil, nil); err != nil {
		t.Errorf("Expected another user's import to run, got %v", err)
	}
	l.endImport("u1")
}
