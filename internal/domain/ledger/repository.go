package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"

	"pawn-ledger/internal/domain/loan"
)

type PaymentRepository interface {
	AppendPaymentInTx(ctx context.Context, tx pgx.Tx, payment *Payment) error

	SumPrincipalPaid(ctx context.Context, loanID int64) (loan.Money, error)

	SumPrincipalPaidInTx(ctx context.Context, tx pgx.Tx, loanID int64) (loan.Money, error)

	ListPaymentsByLoan(ctx context.Context, loanID int64) ([]Payment, error)

	ListPayments(ctx context.Context, limit int) ([]Payment, error)

	DeletePaymentsByLoanInTx(ctx context.Context, tx pgx.Tx, loanID int64) error
}
