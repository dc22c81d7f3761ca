package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/models"
	"github.com/shopspring/decimal"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn and applies migrations.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	if err := migrate(db, "postgres", "migrations/postgres"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}

	slog.Info("database connection established", "driver", "postgres")
	return &PostgresStore{pool: pool}, nil
}

const pgDebtColumns = `id, user_id, borrower_name, borrower_contact, borrower_email, amount::text, interest_rate::text, lent_date, due_date, status, manual_status, purpose, notes, account_id, bank_name, created_at, updated_at`

const pgRepaymentColumns = `id, debt_id, amount::text, repayment_date, notes, account_id, created_at`

func (s *PostgresStore) CreateDebt(ctx context.Context, d *models.Debt) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO debts (id, user_id, borrower_name, borrower_contact, borrower_email, amount, interest_rate, lent_date, due_date, status, manual_status, purpose, notes, account_id, bank_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, d.ID.String(), d.UserID, d.BorrowerName, d.BorrowerContact, d.BorrowerEmail,
		d.Amount.String(), d.InterestRate.String(), d.LentDate, d.DueDate, string(d.Status), string(d.ManualStatus),
		d.Purpose, d.Notes, uuidPtr(d.AccountID), d.BankName, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create debt: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDebt(ctx context.Context, id uuid.UUID) (*models.Debt, error) {
	d, err := pgScanDebt(s.pool.QueryRow(ctx, `SELECT `+pgDebtColumns+` FROM debts WHERE id = $1`, id.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("debt %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get debt: %w", err)
	}
	if d.Repayments, err = s.GetRepaymentsForDebt(ctx, d.ID); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *PostgresStore) UpdateDebt(ctx context.Context, d *models.Debt) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE debts SET borrower_name = $2, borrower_contact = $3, borrower_email = $4, amount = $5::numeric,
			interest_rate = $6::numeric, lent_date = $7, due_date = $8, status = $9, manual_status = $10,
			purpose = $11, notes = $12, account_id = $13, bank_name = $14, updated_at = $15
		WHERE id = $1
	`, d.ID.String(), d.BorrowerName, d.BorrowerContact, d.BorrowerEmail, d.Amount.String(), d.InterestRate.String(),
		d.LentDate, d.DueDate, string(d.Status), string(d.ManualStatus), d.Purpose, d.Notes, uuidPtr(d.AccountID),
		d.BankName, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update debt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("debt %s: %w", d.ID, ErrNotFound)
	}
	return nil
}

// DeleteDebt relies on ON DELETE CASCADE for repayments.
func (s *PostgresStore) DeleteDebt(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM debts WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete debt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("debt %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListDebts(ctx context.Context, userID string) ([]*models.Debt, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgDebtColumns+` FROM debts WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list debts: %w", err)
	}
	var debts []*models.Debt
	byID := make(map[uuid.UUID]*models.Debt)
	for rows.Next() {
		d, err := pgScanDebt(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan debt row: %w", err)
		}
		debts = append(debts, d)
		byID[d.ID] = d
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}

	rrows, err := s.pool.Query(ctx, `
		SELECT r.id, r.debt_id, r.amount::text, r.repayment_date, r.notes, r.account_id, r.created_at
		FROM repayments r JOIN debts d ON d.id = r.debt_id
		WHERE d.user_id = $1 ORDER BY r.debt_id, r.seq
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list repayments: %w", err)
	}
	defer rrows.Close()
	for rrows.Next() {
		r, err := pgScanRepayment(rrows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan repayment row: %w", err)
		}
		if d, ok := byID[r.DebtID]; ok {
			d.Repayments = append(d.Repayments, *r)
		}
	}
	return debts, rrows.Err()
}

func (s *PostgresStore) CreateRepayment(ctx context.Context, r *models.Repayment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO repayments (id, debt_id, amount, repayment_date, notes, account_id, created_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)
	`, r.ID.String(), r.DebtID.String(), r.Amount.String(), r.RepaymentDate, r.Notes, uuidPtr(r.AccountID), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create repayment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRepayment(ctx context.Context, id uuid.UUID) (*models.Repayment, error) {
	r, err := pgScanRepayment(s.pool.QueryRow(ctx, `SELECT `+pgRepaymentColumns+` FROM repayments WHERE id = $1`, id.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("repayment %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get repayment: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) DeleteRepayment(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM repayments WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete repayment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repayment %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) GetRepaymentsForDebt(ctx context.Context, debtID uuid.UUID) ([]models.Repayment, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgRepaymentColumns+` FROM repayments WHERE debt_id = $1 ORDER BY seq`, debtID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get repayments for debt %s: %w", debtID, err)
	}
	defer rows.Close()

	var out []models.Repayment
	for rows.Next() {
		r, err := pgScanRepayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan repayment row: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateAccount(ctx context.Context, a *models.Account) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, user_id, name, bank_name, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
	`, a.ID.String(), a.UserID, a.Name, a.BankName, a.Balance.String(), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAccounts(ctx context.Context, userID string) ([]*models.Account, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, name, bank_name, balance::text, created_at, updated_at
		FROM accounts WHERE user_id = $1 ORDER BY name, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var out []*models.Account
	for rows.Next() {
		var a models.Account
		var id, balance string
		err := rows.Scan(&id, &a.UserID, &a.Name, &a.BankName, &balance, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid account id %q: %w", id, err)
		}
		if a.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("invalid balance %q: %w", balance, err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ResolveAccount(ctx context.Context, userID, ref string) (*models.Account, error) {
	accounts, err := s.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	return matchAccount(accounts, ref)
}

func (s *PostgresStore) GetAccountBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	var balance string
	err := s.pool.QueryRow(ctx, `SELECT balance::text FROM accounts WHERE id = $1`, accountID.String()).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
		}
		return decimal.Zero, fmt.Errorf("failed to get account balance: %w", err)
	}
	return decimal.NewFromString(balance)
}

func (s *PostgresStore) Debit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error {
	return s.adjust(ctx, accountID, amount.Neg())
}

func (s *PostgresStore) Credit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error {
	return s.adjust(ctx, accountID, amount)
}

// adjust applies delta atomically; the WHERE clause keeps the balance non-negative.
func (s *PostgresStore) adjust(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts SET balance = balance + $2::numeric, updated_at = $3
		WHERE id = $1 AND balance + $2::numeric >= 0
	`, accountID.String(), delta.String(), time.Now())
	if err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	balance, err := s.GetAccountBalance(ctx, accountID)
	if err != nil {
		return err
	}
	return models.Invalid(models.KindInsufficientAccountBalance,
		"account %s has %s, needs %s", accountID, balance.StringFixed(2), delta.Neg().StringFixed(2))
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func pgScanDebt(row pgx.Row) (*models.Debt, error) {
	var d models.Debt
	var id, amount, rate, status, manual string
	var accountID *string
	err := row.Scan(&id, &d.UserID, &d.BorrowerName, &d.BorrowerContact, &d.BorrowerEmail, &amount, &rate,
		&d.LentDate, &d.DueDate, &status, &manual, &d.Purpose, &d.Notes, &accountID, &d.BankName,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if d.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid debt id %q: %w", id, err)
	}
	if d.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.InterestRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("invalid interest rate %q: %w", rate, err)
	}
	if d.AccountID, err = parseUUIDPtr(accountID); err != nil {
		return nil, err
	}
	d.LentDate = models.Day(d.LentDate)
	if d.DueDate != nil {
		due := models.Day(*d.DueDate)
		d.DueDate = &due
	}
	d.Status = models.DebtStatus(status)
	d.ManualStatus = models.DebtStatus(manual)
	return &d, nil
}

func pgScanRepayment(row pgx.Row) (*models.Repayment, error) {
	var r models.Repayment
	var id, debtID, amount string
	var accountID *string
	if err := row.Scan(&id, &debtID, &amount, &r.RepaymentDate, &r.Notes, &accountID, &r.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid repayment id %q: %w", id, err)
	}
	if r.DebtID, err = uuid.Parse(debtID); err != nil {
		return nil, fmt.Errorf("invalid debt id %q: %w", debtID, err)
	}
	if r.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if r.AccountID, err = parseUUIDPtr(accountID); err != nil {
		return nil, err
	}
	r.RepaymentDate = models.Day(r.RepaymentDate)
	return &r, nil
}

func uuidPtr(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func parseUUIDPtr(s *string) (*uuid.UUID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", *s, err)
	}
	return &id, nil
}
