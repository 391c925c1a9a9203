package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pawn-ledger/internal/domain/loan"
	"pawn-ledger/internal/infrastructure/monitoring"
	"pawn-ledger/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v3"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var errMsgFormat = "%w: %w"

const loanColumns = `id, serial_no, customer_id, customer_name, principal_amount, monthly_interest, loan_date, status, items, last_interest_payment_date, notes, created_at, updated_at`

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ loan.Repository = (*LoanRepository)(nil)

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

func (r *LoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *LoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Commit(ctx)
	if err != nil {

		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Rollback(ctx)

	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", err)

		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

// NextSerial draws the next value from the dedicated sequence. The sequence
// is the sole issuer of serial numbers, so concurrent callers always receive
// distinct values even across process restarts.
func (r *LoanRepository) NextSerial(ctx context.Context) (int64, error) {
	var next int64
	err := r.db.QueryRow(ctx, `SELECT nextval('loan_serial_seq')`).Scan(&next)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to fetch next loan serial", "error", err)
		return 0, translateDBError(err, r.logger)
	}
	return next, nil
}

// SeedSerialCounter raises the serial sequence so the next issued value is at
// least floor. It never lowers the counter, which makes replaying it on every
// boot safe.
func (r *LoanRepository) SeedSerialCounter(ctx context.Context, floor int64) error {
	if floor <= 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `SELECT setval('loan_serial_seq', GREATEST(last_value, $1), is_called) FROM loan_serial_seq`, floor)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to seed loan serial counter", "error", err, "floor", floor)
		return translateDBError(err, r.logger)
	}
	return nil
}

func (r *LoanRepository) CreateLoan(ctx context.Context, newLoan *loan.Loan) (*loan.Loan, error) {
	itemsJSON, err := json.Marshal(newLoan.Items)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to marshal loan items", "error", err)
		return nil, fmt.Errorf("%w: failed to encode loan items: %w", apperrors.ErrInternalServer, err)
	}

	loanSQL := `
        INSERT INTO loans (serial_no, customer_id, customer_name, principal_amount, monthly_interest, loan_date, status, items, last_interest_payment_date, notes, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
        RETURNING ` + loanColumns

	status := "success"
	startTime := time.Now()

	created, err := scanLoan(r.db.QueryRow(ctx, loanSQL,
		newLoan.SerialNo, newLoan.CustomerID, newLoan.CustomerName,
		newLoan.PrincipalAmount, newLoan.MonthlyInterest, newLoan.LoanDate,
		newLoan.Status, itemsJSON, newLoan.LastInterestPaymentDate, newLoan.Notes,
	))

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("CreateLoan", status, time.Since(startTime))

	if err != nil {
		translatedErr := translateDBError(err, r.logger)
		if errors.Is(translatedErr, apperrors.ErrAlreadyExists) {
			r.logger.WarnContext(ctx, "Loan insert hit a unique constraint", "serial_no", newLoan.SerialNo)
			return nil, translatedErr
		}
		r.logger.ErrorContext(ctx, "Failed to insert loan", "serial_no", newLoan.SerialNo, "error", err)
		return nil, translatedErr
	}

	r.logger.InfoContext(ctx, "Loan created in DB", "loan_id", created.ID, "serial_no", created.SerialNo)
	return created, nil
}

func (r *LoanRepository) GetLoanBySerial(ctx context.Context, serialNo string) (*loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE serial_no = $1`
	status := "success"
	startTime := time.Now()

	l, err := scanLoan(r.db.QueryRow(ctx, query, serialNo))

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetLoanBySerial", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "serial_no", serialNo)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by serial", "serial_no", serialNo, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	return l, nil
}

// GetLoanBySerialForUpdate locks the loan row for the lifetime of the
// transaction. Payment application serializes per loan through this lock.
func (r *LoanRepository) GetLoanBySerialForUpdate(ctx context.Context, tx pgx.Tx, serialNo string) (*loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE serial_no = $1
        FOR UPDATE`

	l, err := scanLoan(tx.QueryRow(ctx, query, serialNo))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found for update", "serial_no", serialNo)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to lock loan row", "serial_no", serialNo, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	return l, nil
}

func (r *LoanRepository) ListLoans(ctx context.Context, filter loan.LoanFilter) ([]loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans`
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}
	if filter.CustomerID > 0 {
		clause := " WHERE"
		if len(args) > 0 {
			clause = " AND"
		}
		args = append(args, filter.CustomerID)
		query += fmt.Sprintf("%s customer_id = $%d", clause, len(args))
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loans", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	loans := make([]loan.Loan, 0)
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan loan row", "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		loans = append(loans, *l)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating loan rows", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return loans, nil
}

func (r *LoanRepository) CountLoansByCustomer(ctx context.Context, customerID int64) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM loans WHERE customer_id = $1`
	err := r.db.QueryRow(ctx, query, customerID).Scan(&count)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to count loans for customer", "customer_id", customerID, "error", err)
		return 0, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return count, nil
}

func (r *LoanRepository) UpdateLoanInTx(ctx context.Context, tx pgx.Tx, l *loan.Loan) error {
	sql := `
        UPDATE loans
        SET status = $1, last_interest_payment_date = $2, notes = $3, updated_at = NOW()
        WHERE id = $4`

	cmdTag, err := tx.Exec(ctx, sql, l.Status, l.LastInterestPaymentDate, l.Notes, l.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update loan", "loan_id", l.ID, "error", err)
		return translateDBError(err, r.logger)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.ErrorContext(ctx, "Loan update affected zero rows", "loan_id", l.ID)

		return fmt.Errorf("%w: loan update affected zero rows", apperrors.ErrDatabase)
	}
	return nil
}

// UpdateLoanStatus moves a loan between statuses. The from guard makes the
// transition idempotent under concurrent batch runs: only one caller sees
// true per transition.
func (r *LoanRepository) UpdateLoanStatus(ctx context.Context, loanID int64, from, to loan.LoanStatus) (bool, error) {
	sql := `UPDATE loans SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	cmdTag, err := r.db.Exec(ctx, sql, to, loanID, from)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update loan status", "loan_id", loanID, "to", to, "error", err)
		return false, translateDBError(err, r.logger)
	}
	if cmdTag.RowsAffected() == 0 {
		return false, nil
	}
	r.logger.InfoContext(ctx, "Loan status updated in DB", "loan_id", loanID, "from", from, "to", to)
	return true, nil
}

func (r *LoanRepository) DeleteLoanInTx(ctx context.Context, tx pgx.Tx, loanID int64) error {
	sql := `DELETE FROM loans WHERE id = $1`
	cmdTag, err := tx.Exec(ctx, sql, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete loan", "loan_id", loanID, "error", err)
		return translateDBError(err, r.logger)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Delete affected zero rows, loan likely not found", "loan_id", loanID)
		return apperrors.ErrNotFound
	}
	r.logger.InfoContext(ctx, "Loan deleted from DB", "loan_id", loanID)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*loan.Loan, error) {
	var l loan.Loan
	var itemsJSON []byte
	err := row.Scan(
		&l.ID, &l.SerialNo, &l.CustomerID, &l.CustomerName,
		&l.PrincipalAmount, &l.MonthlyInterest, &l.LoanDate,
		&l.Status, &itemsJSON, &l.LastInterestPaymentDate,
		&l.Notes, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &l.Items); err != nil {
			return nil, fmt.Errorf("decoding loan items: %w", err)
		}
	}
	return &l, nil
}

func translateDBError(err error, contextLogger *slog.Logger) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		contextLogger.Warn("Database call abandoned by context", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrTransient, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {

		if pgErr.Code == "23505" {
			contextLogger.Warn("Database unique constraint violation", "detail", pgErr.Detail, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: %s", apperrors.ErrAlreadyExists, pgErr.ConstraintName)
		}

		// 57014 is statement_timeout cancelling a query, 40001 and 40P01 are
		// retryable serialization and deadlock failures.
		if pgErr.Code == "57014" || pgErr.Code == "40001" || pgErr.Code == "40P01" {
			contextLogger.Warn("Transient database error", "code", pgErr.Code, "message", pgErr.Message)
			return fmt.Errorf("%w: db error code %s", apperrors.ErrTransient, pgErr.Code)
		}

		contextLogger.Error("PostgreSQL specific error", "code", pgErr.Code, "message", pgErr.Message, "detail", pgErr.Detail)
		return fmt.Errorf("%w: db error code %s", apperrors.ErrDatabase, pgErr.Code)
	}

	contextLogger.Error("Generic database error", "error", err)
	return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
}
