package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pawn-ledger/internal/domain/ledger"
	"pawn-ledger/internal/domain/loan"
	"pawn-ledger/internal/infrastructure/monitoring"
	"pawn-ledger/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, loan_id, loan_serial_no, customer_name, amount, principal_paid, interest_paid, purpose, payment_date, notes, created_at`

// PaymentRepository persists the append-only payment ledger. There is no
// update method on purpose: corrections are new compensating rows.
type PaymentRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ ledger.PaymentRepository = (*PaymentRepository)(nil)

func NewPaymentRepository(db DBPool, logger *slog.Logger) *PaymentRepository {
	return &PaymentRepository{db: db, logger: logger.With("component", "PaymentRepository")}
}

func (r *PaymentRepository) AppendPaymentInTx(ctx context.Context, tx pgx.Tx, p *ledger.Payment) error {
	sql := `
        INSERT INTO payments (id, loan_id, loan_serial_no, customer_name, amount, principal_paid, interest_paid, purpose, payment_date, notes, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
        RETURNING created_at`

	err := tx.QueryRow(ctx, sql,
		p.ID, p.LoanID, p.LoanSerialNo, p.CustomerName,
		p.Amount, p.PrincipalPaid, p.InterestPaid,
		p.Purpose, p.PaymentDate, p.Notes,
	).Scan(&p.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert payment", "loan_id", p.LoanID, "error", err)
		return translateDBError(err, r.logger)
	}

	r.logger.InfoContext(ctx, "Payment appended to ledger", "payment_id", p.ID, "loan_id", p.LoanID, "purpose", p.Purpose)
	return nil
}

func (r *PaymentRepository) SumPrincipalPaid(ctx context.Context, loanID int64) (loan.Money, error) {
	return r.sumPrincipalPaid(ctx, r.db, loanID)
}

func (r *PaymentRepository) SumPrincipalPaidInTx(ctx context.Context, tx pgx.Tx, loanID int64) (loan.Money, error) {
	return r.sumPrincipalPaid(ctx, tx, loanID)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PaymentRepository) sumPrincipalPaid(ctx context.Context, q queryRower, loanID int64) (loan.Money, error) {
	var total float64

	query := `
        SELECT COALESCE(SUM(principal_paid), 0.00)
        FROM payments
        WHERE loan_id = $1`

	err := q.QueryRow(ctx, query, loanID).Scan(&total)
	if err != nil {

		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.ErrorContext(ctx, "Failed to sum principal repayments", "loan_id", loanID, "error", err)
			return 0, translateDBError(err, r.logger)
		}
	}

	return loan.Money(total), nil
}

func (r *PaymentRepository) ListPaymentsByLoan(ctx context.Context, loanID int64) ([]ledger.Payment, error) {
	query := `
        SELECT ` + paymentColumns + `
        FROM payments
        WHERE loan_id = $1
        ORDER BY payment_date ASC, created_at ASC`

	rows, err := r.db.Query(ctx, query, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query payments for loan", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	return r.collectPayments(ctx, rows)
}

func (r *PaymentRepository) ListPayments(ctx context.Context, limit int) ([]ledger.Payment, error) {
	query := `
        SELECT ` + paymentColumns + `
        FROM payments
        ORDER BY created_at DESC
        LIMIT $1`
	status := "success"
	startTime := time.Now()

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		monitoring.RecordDBQuery("ListPayments", "error", time.Since(startTime))
		r.logger.ErrorContext(ctx, "Failed to query payments", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	payments, err := r.collectPayments(ctx, rows)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("ListPayments", status, time.Since(startTime))
	return payments, err
}

func (r *PaymentRepository) DeletePaymentsByLoanInTx(ctx context.Context, tx pgx.Tx, loanID int64) error {
	sql := `DELETE FROM payments WHERE loan_id = $1`

	cmdTag, err := tx.Exec(ctx, sql, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete payments for loan", "loan_id", loanID, "error", err)
		return translateDBError(err, r.logger)
	}

	r.logger.InfoContext(ctx, "Payments deleted for loan", "loan_id", loanID, "count", cmdTag.RowsAffected())
	return nil
}

func (r *PaymentRepository) collectPayments(ctx context.Context, rows pgx.Rows) ([]ledger.Payment, error) {
	payments := make([]ledger.Payment, 0)
	for rows.Next() {
		var p ledger.Payment
		err := rows.Scan(
			&p.ID, &p.LoanID, &p.LoanSerialNo, &p.CustomerName,
			&p.Amount, &p.PrincipalPaid, &p.InterestPaid,
			&p.Purpose, &p.PaymentDate, &p.Notes, &p.CreatedAt,
		)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan payment row", "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating payment rows", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return payments, nil
}
