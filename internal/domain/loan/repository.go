package loan

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// LoanFilter narrows ListLoans. Zero values mean "no constraint"; a Limit
// of zero leaves the result set unbounded.
type LoanFilter struct {
	Status     LoanStatus
	CustomerID int64
	Limit      int
}

type Repository interface {
	NextSerial(ctx context.Context) (int64, error)

	CreateLoan(ctx context.Context, loan *Loan) (createdLoan *Loan, err error)

	GetLoanBySerial(ctx context.Context, serialNo string) (*Loan, error)

	GetLoanBySerialForUpdate(ctx context.Context, tx pgx.Tx, serialNo string) (*Loan, error)

	ListLoans(ctx context.Context, filter LoanFilter) ([]Loan, error)

	CountLoansByCustomer(ctx context.Context, customerID int64) (int64, error)

	UpdateLoanInTx(ctx context.Context, tx pgx.Tx, loan *Loan) error

	UpdateLoanStatus(ctx context.Context, loanID int64, from, to LoanStatus) (bool, error)

	DeleteLoanInTx(ctx context.Context, tx pgx.Tx, loanID int64) error

	BeginTx(ctx context.Context) (pgx.Tx, error)

	CommitTx(ctx context.Context, tx pgx.Tx) error

	RollbackTx(ctx context.Context, tx pgx.Tx) error
}
