package customer_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"pawn-ledger/internal/domain/customer"
	"pawn-ledger/internal/pkg/apperrors"
)

func setupTest() (*customer.MockCustomerRepository, *customer.MockLoanCounter, customer.CustomerService) {
	mockRepo := new(customer.MockCustomerRepository)
	mockLoans := new(customer.MockLoanCounter)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := customer.NewCustomerService(mockRepo, mockLoans, nil, logger)
	return mockRepo, mockLoans, service
}

func TestCustomerService_CreateCustomer(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		name := "   Test User  "
		phone := " 5550111 "
		address := " 123 Test St "
		expectedCustomerID := int64(1)

		mockRepo.On("Save", ctx, mock.MatchedBy(func(c *customer.Customer) bool {
			match := c.Name == "Test User" && c.Phone == "5550111" && c.Address == "123 Test St"
			if match {
				c.CustomerID = expectedCustomerID
			}
			return match
		})).Return(nil).Once()

		createdCustomer, err := service.CreateCustomer(ctx, name, phone, address, "")

		assert.NoError(t, err)
		assert.NotNil(t, createdCustomer)
		if createdCustomer != nil {
			assert.Equal(t, expectedCustomerID, createdCustomer.CustomerID)
			assert.Equal(t, "Test User", createdCustomer.Name)
			assert.Equal(t, "5550111", createdCustomer.Phone)
			assert.False(t, createdCustomer.CreatedAt.IsZero())
		}
		mockRepo.AssertExpectations(t)
	})

	t.Run("Error - Empty Name", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		_, err := service.CreateCustomer(ctx, "   ", "5550111", "Some Address", "")
		assert.ErrorIs(t, err, apperrors.ErrValidation)
		assert.Contains(t, err.Error(), "customer name cannot be empty")
		mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("Error - Empty Phone", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		_, err := service.CreateCustomer(ctx, "Some Name", "  ", "Some Address", "")
		assert.ErrorIs(t, err, apperrors.ErrValidation)
		assert.Contains(t, err.Error(), "customer phone cannot be empty")
		mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("Error - Repository Save Failure", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		dbError := errors.New("database connection failed")

		mockRepo.On("Save", ctx, mock.AnythingOfType("*customer.Customer")).Return(dbError).Once()

		createdCustomer, err := service.CreateCustomer(ctx, "Valid Name", "5550111", "Valid Address", "")

		assert.Error(t, err)
		assert.Nil(t, createdCustomer)
		assert.ErrorIs(t, err, dbError)
		assert.Contains(t, err.Error(), "failed to save new customer")
		mockRepo.AssertExpectations(t)
	})
}

func TestCustomerService_GetCustomer(t *testing.T) {
	ctx := context.Background()
	customerID := int64(42)

	t.Run("Success", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		expectedCustomer := &customer.Customer{CustomerID: customerID, Name: "Test"}

		mockRepo.On("FindByID", ctx, customerID).Return(expectedCustomer, nil).Once()

		cust, err := service.GetCustomer(ctx, customerID)

		assert.NoError(t, err)
		assert.Equal(t, expectedCustomer, cust)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Error - Not Found", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		mockRepo.On("FindByID", ctx, customerID).Return(nil, apperrors.ErrNotFound).Once()

		cust, err := service.GetCustomer(ctx, customerID)

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.Nil(t, cust)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Error - Repository Failure", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		dbError := errors.New("query timeout")
		mockRepo.On("FindByID", ctx, customerID).Return(nil, dbError).Once()

		_, err := service.GetCustomer(ctx, customerID)

		assert.ErrorIs(t, err, dbError)
		assert.Contains(t, err.Error(), "failed to get customer")
	})
}

func TestCustomerService_ListCustomers(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		expected := []*customer.Customer{
			{CustomerID: 1, Name: "Alice"},
			{CustomerID: 2, Name: "Bob"},
		}
		mockRepo.On("FindAll", ctx).Return(expected, nil).Once()

		customers, err := service.ListCustomers(ctx)

		assert.NoError(t, err)
		assert.Equal(t, expected, customers)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Error - Repository Failure", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		mockRepo.On("FindAll", ctx).Return(nil, errors.New("connection refused")).Once()

		_, err := service.ListCustomers(ctx)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to list customers")
	})
}

func TestCustomerService_UpdateCustomer(t *testing.T) {
	ctx := context.Background()
	customerID := int64(42)

	t.Run("Success", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		existing := &customer.Customer{CustomerID: customerID, Name: "Old Name", Phone: "5550111", Address: "Old Address"}
		mockRepo.On("FindByID", ctx, customerID).Return(existing, nil).Once()
		mockRepo.On("Save", ctx, existing).Return(nil).Once()

		updated, err := service.UpdateCustomer(ctx, customerID, "New Name", "", "", "")

		assert.NoError(t, err)
		assert.Equal(t, "New Name", updated.Name)
		assert.Equal(t, "5550111", updated.Phone, "blank phone should keep the stored value")
		mockRepo.AssertExpectations(t)
	})

	t.Run("Error - Not Found", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		mockRepo.On("FindByID", ctx, customerID).Return(nil, apperrors.ErrNotFound).Once()

		_, err := service.UpdateCustomer(ctx, customerID, "New Name", "", "", "")

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestCustomerService_DeleteCustomer(t *testing.T) {
	ctx := context.Background()
	customerID := int64(42)

	t.Run("Success", func(t *testing.T) {
		mockRepo, mockLoans, service := setupTest()
		mockRepo.On("FindByID", ctx, customerID).Return(&customer.Customer{CustomerID: customerID}, nil).Once()
		mockLoans.On("CountLoansByCustomer", ctx, customerID).Return(int64(0), nil).Once()
		mockRepo.On("Delete", ctx, customerID).Return(nil).Once()

		err := service.DeleteCustomer(ctx, customerID)

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
		mockLoans.AssertExpectations(t)
	})

	t.Run("Error - Customer Has Loans", func(t *testing.T) {
		mockRepo, mockLoans, service := setupTest()
		mockRepo.On("FindByID", ctx, customerID).Return(&customer.Customer{CustomerID: customerID}, nil).Once()
		mockLoans.On("CountLoansByCustomer", ctx, customerID).Return(int64(2), nil).Once()

		err := service.DeleteCustomer(ctx, customerID)

		assert.ErrorIs(t, err, apperrors.ErrConflict)
		assert.Contains(t, err.Error(), "2 loan(s)")
		mockRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("Error - Not Found", func(t *testing.T) {
		mockRepo, mockLoans, service := setupTest()
		mockRepo.On("FindByID", ctx, customerID).Return(nil, apperrors.ErrNotFound).Once()

		err := service.DeleteCustomer(ctx, customerID)

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		mockLoans.AssertNotCalled(t, "CountLoansByCustomer", mock.Anything, mock.Anything)
		mockRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("Error - Loan Count Failure", func(t *testing.T) {
		mockRepo, mockLoans, service := setupTest()
		mockRepo.On("FindByID", ctx, customerID).Return(&customer.Customer{CustomerID: customerID}, nil).Once()
		mockLoans.On("CountLoansByCustomer", ctx, customerID).Return(int64(0), errors.New("count query failed")).Once()

		err := service.DeleteCustomer(ctx, customerID)

		assert.Error(t, err)
		mockRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestCustomerService_CountCustomers(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		mockRepo.On("Count", ctx).Return(int64(7), nil).Once()

		count, err := service.CountCustomers(ctx)

		assert.NoError(t, err)
		assert.Equal(t, int64(7), count)
	})

	t.Run("Error - Repository Failure", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		mockRepo.On("Count", ctx).Return(int64(0), errors.New("count failed")).Once()

		_, err := service.CountCustomers(ctx)

		assert.Error(t, err)
	})
}
