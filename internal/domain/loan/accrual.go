package loan

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"pawn-ledger/internal/pkg/apperrors"
)

// DayCountBasis is the fixed day-count convention for accrual.
const DayCountBasis = 365

// DefaultAnnualRate applies to loans written without their own monthly rate.
const DefaultAnnualRate = 0.24

type Regime string

const (
	RegimeSimple   Regime = "simple"
	RegimeCompound Regime = "compound"
)

type InterestResult struct {
	Principal   Money
	Interest    Money
	Total       Money
	ElapsedDays int
	Regime      Regime
}

// Accrue computes interest owed on principal between startDate and asOf.
// The first loan year accrues simple interest; past 365 elapsed days the
// balance compounds annually on the elapsed-year fraction. Exactly 365 days
// is still the simple regime.
func Accrue(principal Money, annualRate float64, startDate, asOf time.Time) (InterestResult, error) {
	if asOf.Before(startDate) {
		return InterestResult{}, apperrors.NewValidationError("as_of",
			fmt.Sprintf("must not be before %s", startDate.Format("2006-01-02")))
	}
	if principal < 0 {
		return InterestResult{}, apperrors.NewValidationError("principal", "must not be negative")
	}
	if annualRate < 0 {
		return InterestResult{}, apperrors.NewValidationError("annual_rate", "must not be negative")
	}

	days := int(asOf.Sub(startDate).Hours() / 24)

	var interest float64
	regime := RegimeSimple
	if days <= DayCountBasis {
		interest = principal * annualRate * float64(days) / DayCountBasis
	} else {
		regime = RegimeCompound
		total := principal * math.Pow(1+annualRate, float64(days)/DayCountBasis)
		interest = total - principal
	}

	interest = Round2(interest)
	return InterestResult{
		Principal:   Round2(principal),
		Interest:    interest,
		Total:       Round2(principal + interest),
		ElapsedDays: days,
		Regime:      regime,
	}, nil
}

// Round2 rounds a monetary value to two decimal places, half up. Going
// through decimal avoids the float drift that makes .005 boundaries round
// the wrong way under plain math.Round.
func Round2(v Money) Money {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
