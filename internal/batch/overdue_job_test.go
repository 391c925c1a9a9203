package batch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"pawn-ledger/internal/batch"
	"pawn-ledger/internal/domain/loan"
	"pawn-ledger/internal/event"
)

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) NextSerial(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLoanRepository) CreateLoan(ctx context.Context, l *loan.Loan) (*loan.Loan, error) {
	args := m.Called(ctx, l)
	if created, ok := args.Get(0).(*loan.Loan); ok {
		return created, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) GetLoanBySerial(ctx context.Context, serialNo string) (*loan.Loan, error) {
	args := m.Called(ctx, serialNo)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) GetLoanBySerialForUpdate(ctx context.Context, tx pgx.Tx, serialNo string) (*loan.Loan, error) {
	args := m.Called(ctx, tx, serialNo)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) ListLoans(ctx context.Context, filter loan.LoanFilter) ([]loan.Loan, error) {
	args := m.Called(ctx, filter)
	if loans, ok := args.Get(0).([]loan.Loan); ok {
		return loans, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) CountLoansByCustomer(ctx context.Context, customerID int64) (int64, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLoanRepository) UpdateLoanInTx(ctx context.Context, tx pgx.Tx, l *loan.Loan) error {
	args := m.Called(ctx, tx, l)
	return args.Error(0)
}

func (m *MockLoanRepository) UpdateLoanStatus(ctx context.Context, loanID int64, from, to loan.LoanStatus) (bool, error) {
	args := m.Called(ctx, loanID, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockLoanRepository) DeleteLoanInTx(ctx context.Context, tx pgx.Tx, loanID int64) error {
	args := m.Called(ctx, tx, loanID)
	return args.Error(0)
}

func (m *MockLoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockLoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishCustomerCreated(ctx context.Context, evt event.CustomerCreatedEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishCustomerUpdated(ctx context.Context, evt event.CustomerUpdatedEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishLoanCreated(ctx context.Context, evt event.LoanCreatedEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishLoanReleased(ctx context.Context, evt event.LoanReleasedEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishLoanOverdue(ctx context.Context, evt event.LoanOverdueEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishPaymentRecorded(ctx context.Context, evt event.PaymentRecordedEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

func activeLoan(id int64, serialNo string, loanDate time.Time) loan.Loan {
	return loan.Loan{
		ID:              id,
		SerialNo:        serialNo,
		CustomerID:      1,
		CustomerName:    "John Doe",
		PrincipalAmount: 2500,
		MonthlyInterest: 2,
		LoanDate:        loanDate,
		Status:          loan.StatusActive,
	}
}

func newOverdueJob(logger *slog.Logger) (*MockLoanRepository, *MockEventPublisher, *batch.UpdateOverdueJob) {
	mockLoanRepo := new(MockLoanRepository)
	mockPublisher := new(MockEventPublisher)
	job := batch.NewUpdateOverdueJob(mockLoanRepo, mockPublisher, 365, logger)
	return mockLoanRepo, mockPublisher, job
}

func TestUpdateOverdueJobRun(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	activeFilter := loan.LoanFilter{Status: loan.StatusActive}

	t.Run("marks stale loans and leaves recent ones alone", func(t *testing.T) {
		stale := activeLoan(1, "A150", time.Now().AddDate(0, 0, -400))
		recent := activeLoan(2, "A151", time.Now().AddDate(0, 0, -10))

		mockLoanRepo, mockPublisher, job := newOverdueJob(logger)
		mockLoanRepo.On("ListLoans", ctx, activeFilter).Return([]loan.Loan{stale, recent}, nil)
		mockLoanRepo.On("UpdateLoanStatus", ctx, int64(1), loan.StatusActive, loan.StatusOverdue).Return(true, nil)
		mockPublisher.On("PublishLoanOverdue", ctx, mock.MatchedBy(func(evt event.LoanOverdueEvent) bool {
			return evt.SerialNo == "A150" && evt.ElapsedDays > 365
		})).Return(nil)

		err := job.Run(ctx)
		assert.NoError(t, err)

		mockLoanRepo.AssertExpectations(t)
		mockLoanRepo.AssertNotCalled(t, "UpdateLoanStatus", ctx, int64(2), loan.StatusActive, loan.StatusOverdue)
		mockPublisher.AssertExpectations(t)
	})

	t.Run("anchors on the last interest settlement when one exists", func(t *testing.T) {
		settled := activeLoan(1, "A150", time.Now().AddDate(-2, 0, 0))
		lastPaid := time.Now().AddDate(0, 0, -30)
		settled.LastInterestPaymentDate = &lastPaid

		mockLoanRepo, mockPublisher, job := newOverdueJob(logger)
		mockLoanRepo.On("ListLoans", ctx, activeFilter).Return([]loan.Loan{settled}, nil)

		err := job.Run(ctx)
		assert.NoError(t, err)

		mockLoanRepo.AssertExpectations(t)
		mockLoanRepo.AssertNotCalled(t, "UpdateLoanStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		mockPublisher.AssertNotCalled(t, "PublishLoanOverdue", mock.Anything, mock.Anything)
	})

	t.Run("skips loans that stopped being active mid run", func(t *testing.T) {
		stale := activeLoan(1, "A150", time.Now().AddDate(0, 0, -400))

		mockLoanRepo, mockPublisher, job := newOverdueJob(logger)
		mockLoanRepo.On("ListLoans", ctx, activeFilter).Return([]loan.Loan{stale}, nil)
		mockLoanRepo.On("UpdateLoanStatus", ctx, int64(1), loan.StatusActive, loan.StatusOverdue).Return(false, nil)

		err := job.Run(ctx)
		assert.NoError(t, err)

		mockLoanRepo.AssertExpectations(t)
		mockPublisher.AssertNotCalled(t, "PublishLoanOverdue", mock.Anything, mock.Anything)
	})

	t.Run("continues past update failures and reports them", func(t *testing.T) {
		first := activeLoan(1, "A150", time.Now().AddDate(0, 0, -400))
		second := activeLoan(2, "A151", time.Now().AddDate(0, 0, -500))

		mockLoanRepo, mockPublisher, job := newOverdueJob(logger)
		mockLoanRepo.On("ListLoans", ctx, activeFilter).Return([]loan.Loan{first, second}, nil)
		mockLoanRepo.On("UpdateLoanStatus", ctx, int64(1), loan.StatusActive, loan.StatusOverdue).Return(false, errors.New("connection reset"))
		mockLoanRepo.On("UpdateLoanStatus", ctx, int64(2), loan.StatusActive, loan.StatusOverdue).Return(true, nil)
		mockPublisher.On("PublishLoanOverdue", ctx, mock.Anything).Return(nil)

		err := job.Run(ctx)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "1 errors")

		mockLoanRepo.AssertExpectations(t)
		mockPublisher.AssertExpectations(t)
	})

	t.Run("publish failure does not fail the job", func(t *testing.T) {
		stale := activeLoan(1, "A150", time.Now().AddDate(0, 0, -400))

		mockLoanRepo, mockPublisher, job := newOverdueJob(logger)
		mockLoanRepo.On("ListLoans", ctx, activeFilter).Return([]loan.Loan{stale}, nil)
		mockLoanRepo.On("UpdateLoanStatus", ctx, int64(1), loan.StatusActive, loan.StatusOverdue).Return(true, nil)
		mockPublisher.On("PublishLoanOverdue", ctx, mock.Anything).Return(errors.New("broker unavailable"))

		err := job.Run(ctx)
		assert.NoError(t, err)

		mockLoanRepo.AssertExpectations(t)
		mockPublisher.AssertExpectations(t)
	})

	t.Run("handles repository error", func(t *testing.T) {
		mockLoanRepo, _, job := newOverdueJob(logger)
		mockLoanRepo.On("ListLoans", ctx, activeFilter).Return(nil, errors.New("database error"))

		err := job.Run(ctx)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to list active loans")

		mockLoanRepo.AssertExpectations(t)
	})

	t.Run("handles no active loans", func(t *testing.T) {
		mockLoanRepo, mockPublisher, job := newOverdueJob(logger)
		mockLoanRepo.On("ListLoans", ctx, activeFilter).Return([]loan.Loan{}, nil)

		err := job.Run(ctx)
		assert.NoError(t, err)

		mockLoanRepo.AssertExpectations(t)
		mockPublisher.AssertNotCalled(t, "PublishLoanOverdue", mock.Anything, mock.Anything)
	})
}
