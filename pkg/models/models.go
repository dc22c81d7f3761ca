package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DebtStatus is the lifecycle state of a debt.
type DebtStatus string

const (
	StatusActive        DebtStatus = "ACTIVE"
	StatusPartiallyPaid DebtStatus = "PARTIALLY_PAID"
	StatusFullyPaid     DebtStatus = "FULLY_PAID"
	StatusOverdue       DebtStatus = "OVERDUE"
	StatusDefaulted     DebtStatus = "DEFAULTED"
)

// Statuses lists every status in display order.
var Statuses = []DebtStatus{
	StatusActive,
	StatusPartiallyPaid,
	StatusOverdue,
	StatusFullyPaid,
	StatusDefaulted,
}

// ParseStatus matches s case-insensitively against the known statuses.
func ParseStatus(s string) (DebtStatus, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Valid reports whether s is one of the known statuses.
func (s DebtStatus) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// IsManual reports whether s may be held as a manual override.
func (s DebtStatus) IsManual() bool {
	return s == StatusDefaulted || s == StatusFullyPaid
}

type Debt struct {
	ID              uuid.UUID       `json:"id"`
	UserID          string          `json:"user_id"`
	BorrowerName    string          `json:"borrower_name"`
	BorrowerContact string          `json:"borrower_contact,omitempty"`
	BorrowerEmail   string          `json:"borrower_email,omitempty"`
	Amount          decimal.Decimal `json:"amount"`        // principal
	InterestRate    decimal.Decimal `json:"interest_rate"` // annual percent
	LentDate        time.Time       `json:"lent_date"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
	Status          DebtStatus      `json:"status"`                  // last auto-transitioned state
	ManualStatus    DebtStatus      `json:"manual_status,omitempty"` // DEFAULTED or FULLY_PAID settlement
	Purpose         string          `json:"purpose,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	AccountID       *uuid.UUID      `json:"account_id,omitempty"`
	BankName        string          `json:"bank_name,omitempty"`
	Repayments      []Repayment     `json:"repayments"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TotalRepaid sums every repayment amount.
func (d *Debt) TotalRepaid() decimal.Decimal {
	total := decimal.Zero
	for _, r := range d.Repayments {
		total = total.Add(r.Amount)
	}
	return total
}

type Repayment struct {
	ID            uuid.UUID       `json:"id"`
	DebtID        uuid.UUID       `json:"debt_id"`
	Amount        decimal.Decimal `json:"amount"`
	RepaymentDate time.Time       `json:"repayment_date"`
	Notes         string          `json:"notes,omitempty"`
	AccountID     *uuid.UUID      `json:"account_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Account is a user's money account that lending draws from and repayments flow into.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	BankName  string          `json:"bank_name,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
