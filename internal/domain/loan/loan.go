package loan

import (
	"fmt"
	"math"
	"strings"
	"time"

	"pawn-ledger/internal/pkg/apperrors"
)

type LoanStatus string

const (
	StatusActive  LoanStatus = "active"
	StatusClosed  LoanStatus = "closed"
	StatusOverdue LoanStatus = "overdue"
)

// fineWeightTolerance bounds the drift allowed between a caller-supplied
// fine weight and the recomputed weight * percentage / 100.
const fineWeightTolerance = 0.01

// Item is a pledged article held against the loan. The slice is stored as a
// single JSON document on the loan row; items are never updated individually.
type Item struct {
	Quantity   int     `json:"quantity"`
	Name       string  `json:"name"`
	Metal      string  `json:"metal,omitempty"`
	Weight     float64 `json:"weight"`
	Percentage float64 `json:"percentage"`
	FineWeight float64 `json:"fineWeight"`
	Value      Money   `json:"value,omitempty"`
}

type Loan struct {
	ID                      int64
	SerialNo                string
	CustomerID              int64
	CustomerName            string
	PrincipalAmount         Money
	MonthlyInterest         float64
	LoanDate                time.Time
	Status                  LoanStatus
	Items                   []Item
	LastInterestPaymentDate *time.Time
	Notes                   string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

func NewLoan(customerID int64, customerName string, principal Money, monthlyInterest float64, loanDate time.Time, items []Item, notes string) (*Loan, error) {
	if customerID <= 0 {
		return nil, apperrors.NewValidationError("customer_id", "must reference an existing customer")
	}
	if principal <= 0 {
		return nil, apperrors.NewValidationError("principal_amount", "must be greater than zero")
	}
	if monthlyInterest < 0 {
		return nil, apperrors.NewValidationError("monthly_interest", "must not be negative")
	}
	if len(items) == 0 {
		return nil, apperrors.NewValidationError("items", "at least one pledged item is required")
	}
	if loanDate.IsZero() {
		loanDate = time.Now().Truncate(24 * time.Hour)
	}

	normalized := make([]Item, len(items))
	for i := range items {
		item := items[i]
		if err := item.normalize(); err != nil {
			return nil, err
		}
		normalized[i] = item
	}

	return &Loan{
		CustomerID:      customerID,
		CustomerName:    customerName,
		PrincipalAmount: principal,
		MonthlyInterest: monthlyInterest,
		LoanDate:        loanDate,
		Status:          StatusActive,
		Items:           normalized,
		Notes:           notes,
	}, nil
}

// normalize validates a pledged item and fills the fine weight when the
// caller left it at zero. Items are immutable once the loan is persisted, so
// this is the only place the computed value is written.
func (i *Item) normalize() error {
	if i.Quantity <= 0 {
		i.Quantity = 1
	}
	if strings.TrimSpace(i.Name) == "" {
		return apperrors.NewValidationError("items.name", "must not be empty")
	}
	if i.Weight <= 0 {
		return apperrors.NewValidationError("items.weight", "must be greater than zero")
	}
	if i.Percentage <= 0 || i.Percentage > 100 {
		return apperrors.NewValidationError("items.percentage", "must be greater than zero and at most 100")
	}
	if i.Value < 0 {
		return apperrors.NewValidationError("items.value", "must not be negative")
	}

	computed := Round2(i.Weight * i.Percentage / 100)
	if i.FineWeight == 0 {
		i.FineWeight = computed
	} else if math.Abs(i.FineWeight-computed) > fineWeightTolerance {
		return apperrors.NewValidationError("items.fine_weight",
			fmt.Sprintf("does not match weight and purity (expected %.2f)", computed))
	}
	return nil
}

// AnnualRate converts the loan's monthly percentage rate to an annual
// fraction. Loans written without an explicit rate use the fallback.
func (l *Loan) AnnualRate(fallback float64) float64 {
	if l.MonthlyInterest > 0 {
		return l.MonthlyInterest * 12 / 100
	}
	return fallback
}

// AnchorDate is the date interest accrues from: the last interest settlement
// when one exists, otherwise the loan origination date.
func (l *Loan) AnchorDate() time.Time {
	if l.LastInterestPaymentDate != nil {
		return *l.LastInterestPaymentDate
	}
	return l.LoanDate
}

func (l *Loan) Closed() bool {
	return l.Status == StatusClosed
}

func (l *Loan) SettleInterest(date time.Time) {
	d := date
	l.LastInterestPaymentDate = &d
	l.UpdatedAt = time.Now()
}

func (l *Loan) Close() {
	l.Status = StatusClosed
	l.UpdatedAt = time.Now()
}
