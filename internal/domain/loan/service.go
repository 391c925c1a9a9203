package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pawn-ledger/internal/domain/customer"
	"pawn-ledger/internal/event"
	"pawn-ledger/internal/infrastructure/monitoring"
	"pawn-ledger/internal/pkg/apperrors"
)

type Money = float64

type CreateLoanInput struct {
	CustomerID      int64
	PrincipalAmount Money
	MonthlyInterest float64
	LoanDate        time.Time
	Items           []Item
	Notes           string
}

type LoanService interface {
	CreateLoan(ctx context.Context, input CreateLoanInput) (*Loan, error)

	GetLoanBySerial(ctx context.Context, serialNo string) (*Loan, error)

	ListLoans(ctx context.Context, filter LoanFilter) ([]Loan, error)
}

type loanServiceImpl struct {
	repo            Repository
	allocator       *SerialAllocator
	customerService customer.CustomerService
	pub             event.EventPublisher
	logger          *slog.Logger
}

func NewLoanService(r Repository, allocator *SerialAllocator, cs customer.CustomerService, pub event.EventPublisher, logger *slog.Logger) LoanService {
	if pub == nil {
		pub = event.NewNoopEventPublisher(logger)
	}
	return &loanServiceImpl{
		repo:            r,
		allocator:       allocator,
		customerService: cs,
		pub:             pub,
		logger:          logger.With(slog.String("component", "loanService")),
	}
}

func (s *loanServiceImpl) CreateLoan(ctx context.Context, input CreateLoanInput) (*Loan, error) {
	s.logger.InfoContext(ctx, "Creating new loan", "customerID", input.CustomerID)

	cust, err := s.customerService.GetCustomer(ctx, input.CustomerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Customer not found for loan creation", "customerID", input.CustomerID)
			return nil, fmt.Errorf("%w: customer %d not found", apperrors.ErrValidation, input.CustomerID)
		}
		s.logger.ErrorContext(ctx, "Failed to verify customer for loan creation", slog.Any("error", err))
		return nil, fmt.Errorf("failed to verify customer: %w", err)
	}

	newLoan, err := NewLoan(input.CustomerID, cust.Name, input.PrincipalAmount, input.MonthlyInterest, input.LoanDate, input.Items, input.Notes)
	if err != nil {
		s.logger.WarnContext(ctx, "Loan validation failed", slog.Any("error", err))
		return nil, err
	}

	serial, err := s.allocator.Allocate(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to allocate serial number", slog.Any("error", err))
		return nil, err
	}
	newLoan.SerialNo = serial.String()

	created, err := s.repo.CreateLoan(ctx, newLoan)
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			// The counter is the sole issuer of serials; a unique violation
			// here means something wrote a loan behind the allocator's back.
			s.logger.ErrorContext(ctx, "Serial number collision on insert", "serialNo", newLoan.SerialNo)
			return nil, fmt.Errorf("%w: serial number %s already in use", apperrors.ErrConflict, newLoan.SerialNo)
		}
		s.logger.ErrorContext(ctx, "Failed to save loan", slog.Any("error", err))
		return nil, err
	}

	monitoring.RecordLoanCreated()
	s.publishLoanCreated(ctx, created)

	s.logger.InfoContext(ctx, "Loan created", "serialNo", created.SerialNo, "customerID", created.CustomerID)
	return created, nil
}

func (s *loanServiceImpl) GetLoanBySerial(ctx context.Context, serialNo string) (*Loan, error) {
	found, err := s.repo.GetLoanBySerial(ctx, serialNo)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Loan not found", "serialNo", serialNo)
			return nil, fmt.Errorf("%w: loan with serial %s not found", apperrors.ErrNotFound, serialNo)
		}
		s.logger.ErrorContext(ctx, "Failed to get loan", "serialNo", serialNo, slog.Any("error", err))
		return nil, fmt.Errorf("failed to get loan %s: %w", serialNo, err)
	}
	return found, nil
}

func (s *loanServiceImpl) ListLoans(ctx context.Context, filter LoanFilter) ([]Loan, error) {
	if filter.Status != "" {
		switch filter.Status {
		case StatusActive, StatusClosed, StatusOverdue:
		default:
			return nil, apperrors.NewValidationError("status", fmt.Sprintf("unknown loan status %q", filter.Status))
		}
	}

	loans, err := s.repo.ListLoans(ctx, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list loans", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loans, nil
}

func (s *loanServiceImpl) publishLoanCreated(ctx context.Context, l *Loan) {
	evt := event.LoanCreatedEvent{
		SerialNo:        l.SerialNo,
		CustomerID:      l.CustomerID,
		CustomerName:    l.CustomerName,
		PrincipalAmount: l.PrincipalAmount,
		LoanDate:        l.LoanDate,
		Timestamp:       time.Now(),
	}
	if err := s.pub.PublishLoanCreated(ctx, evt); err != nil {
		s.logger.WarnContext(ctx, "Loan created, but failed to publish creation event", "serialNo", l.SerialNo, slog.Any("error", err))
	}
}
