package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/models"
	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database file and applies migrations.
// Foreign keys, WAL and a busy timeout are set through the DSN so every pooled connection gets them.
// Transactions begin IMMEDIATE so read-then-write balance adjustments serialize on the write lock.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	dsn := dataSourceName + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	if err := migrate(db, "sqlite3", "migrations/sqlite"); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	slog.Info("database connection established", "driver", "sqlite3", "path", dataSourceName)
	return &SQLiteStore{db: db}, nil
}

const debtColumns = `id, user_id, borrower_name, borrower_contact, borrower_email, amount, interest_rate, lent_date, due_date, status, manual_status, purpose, notes, account_id, bank_name, created_at, updated_at`

// CreateDebt inserts a new debt. Repayments carried on the struct are not inserted.
func (s *SQLiteStore) CreateDebt(ctx context.Context, debt *models.Debt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO debts (`+debtColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		debt.ID.String(), debt.UserID, debt.BorrowerName, debt.BorrowerContact, debt.BorrowerEmail,
		debt.Amount, debt.InterestRate, debt.LentDate.Format(models.DateFormat), nullDate(debt.DueDate),
		string(debt.Status), string(debt.ManualStatus), debt.Purpose, debt.Notes, nullUUID(debt.AccountID), debt.BankName,
		debt.CreatedAt, debt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create debt: %w", err)
	}
	return nil
}

// GetDebt retrieves a debt by its ID together with its repayments.
func (s *SQLiteStore) GetDebt(ctx context.Context, id uuid.UUID) (*models.Debt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+debtColumns+` FROM debts WHERE id = ?`, id.String())
	debt, err := scanDebt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("debt %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get debt: %w", err)
	}
	if debt.Repayments, err = s.GetRepaymentsForDebt(ctx, debt.ID); err != nil {
		return nil, err
	}
	return debt, nil
}

// UpdateDebt updates the debt row. Repayments are managed separately.
func (s *SQLiteStore) UpdateDebt(ctx context.Context, debt *models.Debt) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE debts SET borrower_name = ?, borrower_contact = ?, borrower_email = ?, amount = ?, interest_rate = ?, lent_date = ?, due_date = ?, status = ?, manual_status = ?, purpose = ?, notes = ?, account_id = ?, bank_name = ?, updated_at = ? WHERE id = ?`,
		debt.BorrowerName, debt.BorrowerContact, debt.BorrowerEmail, debt.Amount, debt.InterestRate,
		debt.LentDate.Format(models.DateFormat), nullDate(debt.DueDate), string(debt.Status), string(debt.ManualStatus),
		debt.Purpose, debt.Notes, nullUUID(debt.AccountID), debt.BankName, debt.UpdatedAt, debt.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update debt: %w", err)
	}
	return checkAffected(result, "debt", debt.ID)
}

// DeleteDebt removes a debt and its repayments within a transaction.
func (s *SQLiteStore) DeleteDebt(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM repayments WHERE debt_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete associated repayments: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM debts WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete debt: %w", err)
	}
	if err := checkAffected(result, "debt", id); err != nil {
		return err
	}
	return tx.Commit()
}

// ListDebts retrieves every debt of a user, oldest first, with repayments attached.
func (s *SQLiteStore) ListDebts(ctx context.Context, userID string) ([]*models.Debt, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+debtColumns+` FROM debts WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list debts: %w", err)
	}
	var debts []*models.Debt
	byID := make(map[uuid.UUID]*models.Debt)
	for rows.Next() {
		debt, err := scanDebt(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan debt row: %w", err)
		}
		debts = append(debts, debt)
		byID[debt.ID] = debt
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	rows.Close()

	rrows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.debt_id, r.amount, r.repayment_date, r.notes, r.account_id, r.created_at
		FROM repayments r JOIN debts d ON d.id = r.debt_id
		WHERE d.user_id = ? ORDER BY r.debt_id, r.seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list repayments: %w", err)
	}
	defer rrows.Close()
	for rrows.Next() {
		r, err := scanRepayment(rrows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan repayment row: %w", err)
		}
		if d, ok := byID[r.DebtID]; ok {
			d.Repayments = append(d.Repayments, *r)
		}
	}
	if err := rrows.Err(); err != nil {
		return nil, fmt.Errorf("error during repayment rows iteration: %w", err)
	}
	return debts, nil
}

// CreateRepayment appends a repayment to its debt's history.
func (s *SQLiteStore) CreateRepayment(ctx context.Context, r *models.Repayment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO repayments (id, seq, debt_id, amount, repayment_date, notes, account_id, created_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM repayments WHERE debt_id = ?), ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.DebtID.String(), r.DebtID.String(), r.Amount, r.RepaymentDate.Format(models.DateFormat),
		r.Notes, nullUUID(r.AccountID), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create repayment: %w", err)
	}
	return nil
}

// GetRepayment retrieves a single repayment.
func (s *SQLiteStore) GetRepayment(ctx context.Context, id uuid.UUID) (*models.Repayment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, debt_id, amount, repayment_date, notes, account_id, created_at FROM repayments WHERE id = ?`, id.String())
	r, err := scanRepayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("repayment %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get repayment: %w", err)
	}
	return r, nil
}

// DeleteRepayment removes one repayment.
func (s *SQLiteStore) DeleteRepayment(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM repayments WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete repayment: %w", err)
	}
	return checkAffected(result, "repayment", id)
}

// GetRepaymentsForDebt retrieves all repayments for a debt in insertion order.
func (s *SQLiteStore) GetRepaymentsForDebt(ctx context.Context, debtID uuid.UUID) ([]models.Repayment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, debt_id, amount, repayment_date, notes, account_id, created_at FROM repayments WHERE debt_id = ? ORDER BY seq ASC`,
		debtID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get repayments for debt %s: %w", debtID, err)
	}
	defer rows.Close()

	var repayments []models.Repayment
	for rows.Next() {
		r, err := scanRepayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan repayment row: %w", err)
		}
		repayments = append(repayments, *r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for debt repayments: %w", err)
	}
	return repayments, nil
}

// CreateAccount inserts an account.
func (s *SQLiteStore) CreateAccount(ctx context.Context, a *models.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, user_id, name, bank_name, balance, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.UserID, a.Name, a.BankName, a.Balance, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// ListAccounts returns the user's accounts ordered by name.
func (s *SQLiteStore) ListAccounts(ctx context.Context, userID string) ([]*models.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, bank_name, balance, created_at, updated_at FROM accounts WHERE user_id = ? ORDER BY name, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return accounts, nil
}

// ResolveAccount looks the reference up as an id first, then as a case-insensitive name.
func (s *SQLiteStore) ResolveAccount(ctx context.Context, userID, ref string) (*models.Account, error) {
	accounts, err := s.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	return matchAccount(accounts, ref)
}

// GetAccountBalance returns the current balance of an account.
func (s *SQLiteStore) GetAccountBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = ?`, accountID.String()).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
		}
		return decimal.Zero, fmt.Errorf("failed to get account balance: %w", err)
	}
	return balance, nil
}

// Debit withdraws amount, refusing to take the balance below zero.
func (s *SQLiteStore) Debit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error {
	return s.adjust(ctx, accountID, amount.Neg())
}

// Credit deposits amount.
func (s *SQLiteStore) Credit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error {
	return s.adjust(ctx, accountID, amount)
}

// adjust applies delta inside a transaction since balances are stored as TEXT.
func (s *SQLiteStore) adjust(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var balance decimal.Decimal
	if err := tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = ?`, accountID.String()).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
		}
		return fmt.Errorf("failed to read account balance: %w", err)
	}
	next := balance.Add(delta)
	if next.IsNegative() {
		return models.Invalid(models.KindInsufficientAccountBalance,
			"account %s has %s, needs %s", accountID, balance.StringFixed(2), delta.Neg().StringFixed(2))
	}
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		next, time.Now(), accountID.String()); err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDebt(row scanner) (*models.Debt, error) {
	var d models.Debt
	var idStr, lent, status, manual string
	var due, accountID sql.NullString
	err := row.Scan(&idStr, &d.UserID, &d.BorrowerName, &d.BorrowerContact, &d.BorrowerEmail,
		&d.Amount, &d.InterestRate, &lent, &due, &status, &manual, &d.Purpose, &d.Notes,
		&accountID, &d.BankName, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if d.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("invalid debt id %q: %w", idStr, err)
	}
	if d.LentDate, err = time.Parse(models.DateFormat, lent); err != nil {
		return nil, fmt.Errorf("invalid lent date %q: %w", lent, err)
	}
	if d.DueDate, err = parseNullDate(due); err != nil {
		return nil, err
	}
	if d.AccountID, err = parseNullUUID(accountID); err != nil {
		return nil, err
	}
	d.Status = models.DebtStatus(status)
	d.ManualStatus = models.DebtStatus(manual)
	return &d, nil
}

func scanRepayment(row scanner) (*models.Repayment, error) {
	var r models.Repayment
	var idStr, debtIDStr, date string
	var accountID sql.NullString
	if err := row.Scan(&idStr, &debtIDStr, &r.Amount, &date, &r.Notes, &accountID, &r.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if r.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("invalid repayment id %q: %w", idStr, err)
	}
	if r.DebtID, err = uuid.Parse(debtIDStr); err != nil {
		return nil, fmt.Errorf("invalid debt id %q: %w", debtIDStr, err)
	}
	if r.RepaymentDate, err = time.Parse(models.DateFormat, date); err != nil {
		return nil, fmt.Errorf("invalid repayment date %q: %w", date, err)
	}
	if r.AccountID, err = parseNullUUID(accountID); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanAccount(row scanner) (*models.Account, error) {
	var a models.Account
	var idStr string
	if err := row.Scan(&idStr, &a.UserID, &a.Name, &a.BankName, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if a.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("invalid account id %q: %w", idStr, err)
	}
	return &a, nil
}

// matchAccount picks the account whose id equals ref, else the first whose name matches.
func matchAccount(accounts []*models.Account, ref string) (*models.Account, error) {
	ref = strings.TrimSpace(ref)
	if id, err := uuid.Parse(ref); err == nil {
		for _, a := range accounts {
			if a.ID == id {
				return a, nil
			}
		}
	}
	for _, a := range accounts {
		if strings.EqualFold(a.Name, ref) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("account %q: %w", ref, ErrNotFound)
}

func checkAffected(result sql.Result, what string, id uuid.UUID) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(models.DateFormat), Valid: true}
}

func parseNullDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(models.DateFormat, s.String)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", s.String, err)
	}
	return &t, nil
}

func nullUUID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func parseNullUUID(s sql.NullString) (*uuid.UUID, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", s.String, err)
	}
	return &id, nil
}
