package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"pawn-ledger/internal/domain/customer"
	"pawn-ledger/internal/domain/loan"
	"pawn-ledger/internal/event"
	"pawn-ledger/internal/infrastructure/monitoring"
	"pawn-ledger/internal/pkg/apperrors"
)

// amountTolerance absorbs float representation noise when comparing money
// values that are semantically equal.
const amountTolerance = 0.001

type PaymentRequest struct {
	SerialNo      string
	Amount        loan.Money
	PrincipalPaid loan.Money
	InterestPaid  loan.Money
	Purpose       Purpose
	PaymentDate   time.Time
	Notes         string
}

type LedgerService interface {
	RecordPayment(ctx context.Context, req PaymentRequest) (*Payment, error)

	GetInterest(ctx context.Context, serialNo string, asOf time.Time) (*loan.InterestResult, error)

	OutstandingPrincipal(ctx context.Context, serialNo string) (loan.Money, error)

	ListPayments(ctx context.Context, serialNo string, limit int) ([]Payment, error)

	PurgeLoan(ctx context.Context, serialNo string) error

	Dashboard(ctx context.Context) (*DashboardStats, error)
}

// StatsCache is an optional read-through cache for dashboard aggregates.
// Writes that change the numbers invalidate it so the next dashboard read
// reflects them before TTL expiry.
type StatsCache interface {
	GetDashboard(ctx context.Context) (*DashboardStats, bool)
	SetDashboard(ctx context.Context, stats *DashboardStats)
	Invalidate(ctx context.Context)
}

type ledgerServiceImpl struct {
	loans       loan.Repository
	payments    PaymentRepository
	customers   customer.CustomerService
	pub         event.EventPublisher
	cache       StatsCache
	defaultRate float64
	fetchCap    int
	logger      *slog.Logger
}

func NewLedgerService(loans loan.Repository, payments PaymentRepository, customers customer.CustomerService,
	pub event.EventPublisher, cache StatsCache, defaultRate float64, fetchCap int, logger *slog.Logger) LedgerService {
	if pub == nil {
		pub = event.NewNoopEventPublisher(logger)
	}
	if defaultRate <= 0 {
		defaultRate = loan.DefaultAnnualRate
	}
	if fetchCap <= 0 {
		fetchCap = 1000
	}
	return &ledgerServiceImpl{
		loans:       loans,
		payments:    payments,
		customers:   customers,
		pub:         pub,
		cache:       cache,
		defaultRate: defaultRate,
		fetchCap:    fetchCap,
		logger:      logger.With(slog.String("component", "ledgerService")),
	}
}

// RecordPayment applies a payment to its loan as one atomic unit: the
// payment row and the loan update commit together or not at all. The loan
// row is locked for the duration, so concurrent payments against the same
// loan serialize while other loans proceed in parallel.
func (s *ledgerServiceImpl) RecordPayment(ctx context.Context, req PaymentRequest) (payment *Payment, err error) {
	s.logger.InfoContext(ctx, "Recording payment", "serialNo", req.SerialNo, "purpose", string(req.Purpose), "amount", req.Amount)

	if err = validateRequest(&req); err != nil {
		s.logger.WarnContext(ctx, "Payment request validation failed", slog.Any("error", err))
		return nil, err
	}

	tx, err := s.loans.BeginTx(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin payment transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}

	defer func() {
		if p := recover(); p != nil {
			s.logger.ErrorContext(ctx, "Panic during payment processing", "serialNo", req.SerialNo, "panic", p)
			_ = s.loans.RollbackTx(ctx, tx)
			panic(p)
		} else if err != nil {
			monitoring.RecordPayment("failure")
			_ = s.loans.RollbackTx(ctx, tx)
		}
	}()

	target, err := s.loans.GetLoanBySerialForUpdate(ctx, tx, req.SerialNo)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Loan not found for payment", "serialNo", req.SerialNo)
			return nil, fmt.Errorf("%w: loan with serial %s not found", apperrors.ErrNotFound, req.SerialNo)
		}
		s.logger.ErrorContext(ctx, "Failed to lock loan row for payment", "serialNo", req.SerialNo, slog.Any("error", err))
		return nil, fmt.Errorf("could not load loan %s for payment: %w", req.SerialNo, err)
	}

	if target.Closed() {
		s.logger.WarnContext(ctx, "Rejecting payment against closed loan", "serialNo", req.SerialNo)
		return nil, fmt.Errorf("%w: loan %s", apperrors.ErrLoanClosed, req.SerialNo)
	}

	if req.PaymentDate.IsZero() {
		req.PaymentDate = time.Now()
	}
	if req.PaymentDate.Before(target.LoanDate) {
		return nil, apperrors.NewValidationError("payment_date",
			fmt.Sprintf("must not be before the loan date %s", target.LoanDate.Format("2006-01-02")))
	}
	if anchor := target.AnchorDate(); req.PaymentDate.Before(anchor) {
		return nil, apperrors.NewValidationError("payment_date",
			fmt.Sprintf("must not be before the last interest settlement %s", anchor.Format("2006-01-02")))
	}

	paidSoFar, err := s.payments.SumPrincipalPaidInTx(ctx, tx, target.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to sum principal payments", "serialNo", req.SerialNo, slog.Any("error", err))
		return nil, fmt.Errorf("could not compute outstanding principal for loan %s: %w", req.SerialNo, err)
	}

	outstanding := loan.Round2(target.PrincipalAmount - paidSoFar)
	if outstanding < 0 {
		s.logger.ErrorContext(ctx, "Ledger inconsistency: outstanding principal is negative",
			"serialNo", target.SerialNo, "principal", target.PrincipalAmount, "principalPaid", paidSoFar)
		return nil, apperrors.NewIntegrityError(
			fmt.Sprintf("outstanding principal for loan %s is negative (%.2f)", target.SerialNo, outstanding))
	}

	principalPaid, interestPaid := req.PrincipalPaid, req.InterestPaid
	amount := req.Amount
	released := false

	switch req.Purpose {
	case PurposeInterest:
		interestPaid = amount
		principalPaid = 0
		target.SettleInterest(req.PaymentDate)

	case PurposePrincipal:
		principalPaid = amount
		interestPaid = 0
		if principalPaid > outstanding+amountTolerance {
			return nil, apperrors.NewValidationError("amount",
				fmt.Sprintf("principal payment %.2f exceeds outstanding principal %.2f", principalPaid, outstanding))
		}

	case PurposeBoth:
		if principalPaid > outstanding+amountTolerance {
			return nil, apperrors.NewValidationError("principal_paid",
				fmt.Sprintf("principal portion %.2f exceeds outstanding principal %.2f", principalPaid, outstanding))
		}
		target.SettleInterest(req.PaymentDate)

	case PurposeFullRelease:
		// The caller-supplied amount is advisory here; the settlement
		// figures come from the ledger as of the payment date.
		res, accrueErr := loan.Accrue(outstanding, target.AnnualRate(s.defaultRate), target.AnchorDate(), req.PaymentDate)
		if accrueErr != nil {
			err = accrueErr
			return nil, err
		}
		principalPaid = outstanding
		interestPaid = res.Interest
		amount = loan.Round2(principalPaid + interestPaid)
		target.SettleInterest(req.PaymentDate)
		target.Close()
		released = true
	}

	payment = &Payment{
		ID:            uuid.NewString(),
		LoanID:        target.ID,
		LoanSerialNo:  target.SerialNo,
		CustomerName:  target.CustomerName,
		Amount:        loan.Round2(amount),
		PrincipalPaid: loan.Round2(principalPaid),
		InterestPaid:  loan.Round2(interestPaid),
		Purpose:       req.Purpose,
		PaymentDate:   req.PaymentDate,
		Notes:         req.Notes,
		CreatedAt:     time.Now(),
	}

	if err = s.payments.AppendPaymentInTx(ctx, tx, payment); err != nil {
		s.logger.ErrorContext(ctx, "Failed to append payment", "serialNo", target.SerialNo, slog.Any("error", err))
		return nil, fmt.Errorf("could not append payment for loan %s: %w", target.SerialNo, err)
	}

	if err = s.loans.UpdateLoanInTx(ctx, tx, target); err != nil {
		s.logger.ErrorContext(ctx, "Failed to update loan during payment", "serialNo", target.SerialNo, slog.Any("error", err))
		return nil, fmt.Errorf("could not update loan %s: %w", target.SerialNo, err)
	}

	if err = s.loans.CommitTx(ctx, tx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit payment transaction", "serialNo", target.SerialNo, slog.Any("error", err))
		return nil, fmt.Errorf("could not commit payment for loan %s: %w", target.SerialNo, err)
	}

	monitoring.RecordPayment(string(req.Purpose))
	if released {
		monitoring.RecordLoanReleased()
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	s.publishPaymentEvents(ctx, payment, target, released)

	s.logger.InfoContext(ctx, "Payment recorded", "serialNo", target.SerialNo, "paymentID", payment.ID,
		"purpose", string(req.Purpose), "amount", payment.Amount)
	return payment, nil
}

// validateRequest covers everything checkable without reading ledger state,
// so malformed input never opens a transaction.
func validateRequest(req *PaymentRequest) error {
	if strings.TrimSpace(req.SerialNo) == "" {
		return apperrors.NewValidationError("serial_no", "must not be empty")
	}

	req.Purpose = NormalizePurpose(string(req.Purpose))
	if !req.Purpose.Valid() {
		return apperrors.NewValidationError("purpose", fmt.Sprintf("unknown payment purpose %q", string(req.Purpose)))
	}

	if req.Purpose == PurposeFullRelease {
		return nil
	}

	if req.Amount <= 0 {
		return apperrors.NewValidationError("amount", "must be greater than zero")
	}
	if req.PrincipalPaid < 0 || req.InterestPaid < 0 {
		return apperrors.NewValidationError("principal_paid", "split amounts must not be negative")
	}

	if req.Purpose == PurposeBoth {
		split := loan.Round2(req.PrincipalPaid + req.InterestPaid)
		if math.Abs(split-loan.Round2(req.Amount)) > amountTolerance {
			return apperrors.NewValidationError("principal_paid",
				fmt.Sprintf("principal %.2f plus interest %.2f must equal amount %.2f", req.PrincipalPaid, req.InterestPaid, req.Amount))
		}
	}
	return nil
}

func (s *ledgerServiceImpl) GetInterest(ctx context.Context, serialNo string, asOf time.Time) (*loan.InterestResult, error) {
	target, err := s.loans.GetLoanBySerial(ctx, serialNo)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Loan not found for interest query", "serialNo", serialNo)
			return nil, fmt.Errorf("%w: loan with serial %s not found", apperrors.ErrNotFound, serialNo)
		}
		s.logger.ErrorContext(ctx, "Failed to load loan for interest query", "serialNo", serialNo, slog.Any("error", err))
		return nil, fmt.Errorf("failed to load loan %s: %w", serialNo, err)
	}

	if asOf.IsZero() {
		asOf = time.Now()
	}

	outstanding, err := s.outstandingFor(ctx, target)
	if err != nil {
		return nil, err
	}

	res, err := loan.Accrue(outstanding, target.AnnualRate(s.defaultRate), target.AnchorDate(), asOf)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *ledgerServiceImpl) OutstandingPrincipal(ctx context.Context, serialNo string) (loan.Money, error) {
	target, err := s.loans.GetLoanBySerial(ctx, serialNo)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return 0, fmt.Errorf("%w: loan with serial %s not found", apperrors.ErrNotFound, serialNo)
		}
		return 0, fmt.Errorf("failed to load loan %s: %w", serialNo, err)
	}
	return s.outstandingFor(ctx, target)
}

// outstandingFor derives the remaining principal from the payment history.
// A negative result is a corruption signal and is surfaced, never clamped
// away silently.
func (s *ledgerServiceImpl) outstandingFor(ctx context.Context, target *loan.Loan) (loan.Money, error) {
	paid, err := s.payments.SumPrincipalPaid(ctx, target.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to sum principal payments", "serialNo", target.SerialNo, slog.Any("error", err))
		return 0, fmt.Errorf("failed to sum principal payments for loan %s: %w", target.SerialNo, err)
	}

	outstanding := loan.Round2(target.PrincipalAmount - paid)
	if outstanding < 0 {
		s.logger.ErrorContext(ctx, "Ledger inconsistency: outstanding principal is negative",
			"serialNo", target.SerialNo, "principal", target.PrincipalAmount, "principalPaid", paid)
		return 0, apperrors.NewIntegrityError(
			fmt.Sprintf("outstanding principal for loan %s is negative (%.2f)", target.SerialNo, outstanding))
	}
	return outstanding, nil
}

func (s *ledgerServiceImpl) ListPayments(ctx context.Context, serialNo string, limit int) ([]Payment, error) {
	if limit <= 0 || limit > s.fetchCap {
		limit = s.fetchCap
	}

	if serialNo != "" {
		target, err := s.loans.GetLoanBySerial(ctx, serialNo)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("%w: loan with serial %s not found", apperrors.ErrNotFound, serialNo)
			}
			return nil, fmt.Errorf("failed to load loan %s: %w", serialNo, err)
		}
		payments, err := s.payments.ListPaymentsByLoan(ctx, target.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to list payments for loan", "serialNo", serialNo, slog.Any("error", err))
			return nil, fmt.Errorf("failed to list payments for loan %s: %w", serialNo, err)
		}
		return payments, nil
	}

	payments, err := s.payments.ListPayments(ctx, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list payments", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// PurgeLoan is the administrative deletion path: the loan, its items and its
// payments disappear in one transaction. Nothing in the payment flow calls
// this.
func (s *ledgerServiceImpl) PurgeLoan(ctx context.Context, serialNo string) (err error) {
	s.logger.InfoContext(ctx, "Purging loan", "serialNo", serialNo)

	tx, err := s.loans.BeginTx(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin purge transaction", slog.Any("error", err))
		return fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = s.loans.RollbackTx(ctx, tx)
			panic(p)
		} else if err != nil {
			_ = s.loans.RollbackTx(ctx, tx)
		}
	}()

	target, err := s.loans.GetLoanBySerialForUpdate(ctx, tx, serialNo)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: loan with serial %s not found", apperrors.ErrNotFound, serialNo)
		}
		return fmt.Errorf("could not load loan %s for purge: %w", serialNo, err)
	}

	if err = s.payments.DeletePaymentsByLoanInTx(ctx, tx, target.ID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete payments during purge", "serialNo", serialNo, slog.Any("error", err))
		return fmt.Errorf("could not delete payments for loan %s: %w", serialNo, err)
	}

	if err = s.loans.DeleteLoanInTx(ctx, tx, target.ID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete loan during purge", "serialNo", serialNo, slog.Any("error", err))
		return fmt.Errorf("could not delete loan %s: %w", serialNo, err)
	}

	if err = s.loans.CommitTx(ctx, tx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit purge transaction", "serialNo", serialNo, slog.Any("error", err))
		return fmt.Errorf("could not commit purge of loan %s: %w", serialNo, err)
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	s.logger.InfoContext(ctx, "Loan purged", "serialNo", serialNo)
	return nil
}

func (s *ledgerServiceImpl) publishPaymentEvents(ctx context.Context, p *Payment, target *loan.Loan, released bool) {
	evt := event.PaymentRecordedEvent{
		PaymentID:     p.ID,
		SerialNo:      p.LoanSerialNo,
		Purpose:       string(p.Purpose),
		Amount:        p.Amount,
		PrincipalPaid: p.PrincipalPaid,
		InterestPaid:  p.InterestPaid,
		PaymentDate:   p.PaymentDate,
		Timestamp:     time.Now(),
	}
	if err := s.pub.PublishPaymentRecorded(ctx, evt); err != nil {
		s.logger.WarnContext(ctx, "Payment recorded, but failed to publish event", "paymentID", p.ID, slog.Any("error", err))
	}

	if released {
		releaseEvt := event.LoanReleasedEvent{
			SerialNo:      p.LoanSerialNo,
			CustomerID:    target.CustomerID,
			PrincipalPaid: p.PrincipalPaid,
			InterestPaid:  p.InterestPaid,
			PaymentDate:   p.PaymentDate,
			Timestamp:     time.Now(),
		}
		if err := s.pub.PublishLoanReleased(ctx, releaseEvt); err != nil {
			s.logger.WarnContext(ctx, "Loan released, but failed to publish event", "serialNo", p.LoanSerialNo, slog.Any("error", err))
		}
	}
}
