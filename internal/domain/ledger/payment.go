package ledger

import (
	"time"

	"pawn-ledger/internal/domain/loan"
)

type Purpose string

const (
	PurposeInterest    Purpose = "interest"
	PurposePrincipal   Purpose = "principal"
	PurposeBoth        Purpose = "both"
	PurposeFullRelease Purpose = "full_release"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeInterest, PurposePrincipal, PurposeBoth, PurposeFullRelease:
		return true
	}
	return false
}

// NormalizePurpose maps the legacy single-amount payment shape onto the
// tagged model: a payment recorded without a purpose is an interest payment.
func NormalizePurpose(raw string) Purpose {
	if raw == "" {
		return PurposeInterest
	}
	return Purpose(raw)
}

// Payment is an append-only ledger fact. Corrections are made with a new
// compensating entry, never by editing an existing row. The serial number
// and customer name are denormalized so payment listings do not join loans.
type Payment struct {
	ID            string
	LoanID        int64
	LoanSerialNo  string
	CustomerName  string
	Amount        loan.Money
	PrincipalPaid loan.Money
	InterestPaid  loan.Money
	Purpose       Purpose
	PaymentDate   time.Time
	Notes         string
	CreatedAt     time.Time
}
