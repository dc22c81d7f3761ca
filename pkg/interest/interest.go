// Package interest computes pro-rated simple interest over a span of days.
package interest

import (
	"time"

	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/models"
	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the number of decimal places presented values are rounded to.
const CurrencyPlaces = 2

var (
	daysInYear = decimal.NewFromInt(365)
	hundred    = decimal.NewFromInt(100)
)

// Result is the outcome of an interest calculation. Amounts are rounded to currency precision.
type Result struct {
	InterestAmount          decimal.Decimal `json:"interest_amount"`
	TotalAmountWithInterest decimal.Decimal `json:"total_amount_with_interest"`
	DaysElapsed             int             `json:"days_elapsed"`
	DaysTotal               int             `json:"days_total"`
}

// Calculate returns simple interest on principal at annualRatePercent.
//
// When end is set the term is fixed: interest covers start..end whatever asOf is, and
// DaysElapsed reports asOf-start clamped into the term. When end is nil the term is open and
// interest accrues from start up to asOf.
//
// An end (or asOf, for open terms) before start yields models.ErrInvalidDateRange.
func Calculate(principal, annualRatePercent decimal.Decimal, start time.Time, end *time.Time, asOf time.Time) (Result, error) {
	var res Result
	if end != nil {
		res.DaysTotal = models.DaysBetween(start, *end)
		if res.DaysTotal < 0 {
			return Result{}, models.Invalid(models.KindInvalidDateRange,
				"end %s is before start %s", end.Format(models.DateFormat), start.Format(models.DateFormat))
		}
		res.DaysElapsed = min(max(models.DaysBetween(start, asOf), 0), res.DaysTotal)
	} else {
		res.DaysElapsed = models.DaysBetween(start, asOf)
		if res.DaysElapsed < 0 {
			return Result{}, models.Invalid(models.KindInvalidDateRange,
				"as-of %s is before start %s", asOf.Format(models.DateFormat), start.Format(models.DateFormat))
		}
		res.DaysTotal = res.DaysElapsed
	}

	exact := Accrued(principal, annualRatePercent, res.DaysTotal)
	res.InterestAmount = exact.Round(CurrencyPlaces)
	res.TotalAmountWithInterest = principal.Add(exact).Round(CurrencyPlaces)
	return res, nil
}

// Accrued is the unrounded interest for the given number of days.
func Accrued(principal, annualRatePercent decimal.Decimal, days int) decimal.Decimal {
	if annualRatePercent.IsZero() || days <= 0 {
		return decimal.Zero
	}
	return principal.Mul(annualRatePercent.Div(hundred)).Mul(decimal.NewFromInt(int64(days))).Div(daysInYear)
}

// Principal returns a zero-interest result, used by callers that clamp inverted ranges.
func Principal(principal decimal.Decimal) Result {
	return Result{
		InterestAmount:          decimal.Zero,
		TotalAmountWithInterest: principal.Round(CurrencyPlaces),
	}
}
