package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"pawn-ledger/internal/api/handler"
	"pawn-ledger/internal/api/handler/dto"
	"pawn-ledger/internal/domain/customer"
	"pawn-ledger/internal/pkg/apperrors"
)

type MockCustomerService struct {
	mock.Mock
}

func (_m *MockCustomerService) CreateCustomer(ctx context.Context, name string, phone string, address string, idProof string) (*customer.Customer, error) {
	ret := _m.Called(ctx, name, phone, address, idProof)

	var r0 *customer.Customer
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string, string) *customer.Customer); ok {
		r0 = rf(ctx, name, phone, address, idProof)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*customer.Customer)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string, string, string, string) error); ok {
		r1 = rf(ctx, name, phone, address, idProof)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

func (_m *MockCustomerService) GetCustomer(ctx context.Context, customerID int64) (*customer.Customer, error) {
	ret := _m.Called(ctx, customerID)

	var r0 *customer.Customer
	if rf, ok := ret.Get(0).(func(context.Context, int64) *customer.Customer); ok {
		r0 = rf(ctx, customerID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*customer.Customer)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, int64) error); ok {
		r1 = rf(ctx, customerID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

func (_m *MockCustomerService) ListCustomers(ctx context.Context) ([]*customer.Customer, error) {
	ret := _m.Called(ctx)

	var r0 []*customer.Customer
	if rf, ok := ret.Get(0).(func(context.Context) []*customer.Customer); ok {
		r0 = rf(ctx)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]*customer.Customer)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

func (_m *MockCustomerService) UpdateCustomer(ctx context.Context, customerID int64, name string, phone string, address string, idProof string) (*customer.Customer, error) {
	ret := _m.Called(ctx, customerID, name, phone, address, idProof)

	var r0 *customer.Customer
	if rf, ok := ret.Get(0).(func(context.Context, int64, string, string, string, string) *customer.Customer); ok {
		r0 = rf(ctx, customerID, name, phone, address, idProof)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*customer.Customer)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, int64, string, string, string, string) error); ok {
		r1 = rf(ctx, customerID, name, phone, address, idProof)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

func (_m *MockCustomerService) DeleteCustomer(ctx context.Context, customerID int64) error {
	ret := _m.Called(ctx, customerID)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, int64) error); ok {
		r0 = rf(ctx, customerID)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

func (_m *MockCustomerService) CountCustomers(ctx context.Context) (int64, error) {
	ret := _m.Called(ctx)

	var r0 int64
	if rf, ok := ret.Get(0).(func(context.Context) int64); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Get(0).(int64)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

func TestCreateCustomer(t *testing.T) {
	mockService := new(MockCustomerService)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	handler := handler.NewCustomerHandler(mockService, logger)

	t.Run("success", func(t *testing.T) {
		reqBody := dto.CreateCustomerRequest{Name: "John Doe", Phone: "9876543210", Address: "123 Main St"}
		reqBodyBytes, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/customers", bytes.NewReader(reqBodyBytes))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		mockCustomer := &customer.Customer{CustomerID: 1, Name: "John Doe", Phone: "9876543210", Address: "123 Main St"}
		mockService.On("CreateCustomer", mock.Anything, reqBody.Name, reqBody.Phone, reqBody.Address, "").Return(mockCustomer, nil)

		handler.CreateCustomer(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp dto.CustomerResponse
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		assert.NoError(t, err)
		assert.Equal(t, strconv.FormatInt(mockCustomer.CustomerID, 10), resp.CustomerID)
		mockService.AssertExpectations(t)
	})

	t.Run("invalid payload", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/customers", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		handler.CreateCustomer(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockService.AssertNotCalled(t, "CreateCustomer")
	})

	t.Run("missing phone", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/customers", bytes.NewReader([]byte(`{"name": "John Doe"}`)))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		handler.CreateCustomer(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockService.AssertNotCalled(t, "CreateCustomer")
	})
}

func TestGetCustomer(t *testing.T) {
	mockService := new(MockCustomerService)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	handler := handler.NewCustomerHandler(mockService, logger)

	t.Run("success", func(t *testing.T) {
		mockCustomer := &customer.Customer{CustomerID: 1, Name: "John Doe", Phone: "9876543210", Address: "123 Main St"}
		mockService.On("GetCustomer", mock.Anything, int64(1)).Return(mockCustomer, nil)

		req := httptest.NewRequest(http.MethodGet, "/customers/1", nil)
		rec := httptest.NewRecorder()

		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("customerID", "1")
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		handler.GetCustomer(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.CustomerResponse
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		assert.NoError(t, err)
		assert.Equal(t, strconv.FormatInt(mockCustomer.CustomerID, 10), resp.CustomerID)
		mockService.AssertExpectations(t)
	})

	t.Run("invalid customer ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/customers/abc", nil)
		rec := httptest.NewRecorder()

		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("customerID", "abc")
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		handler.GetCustomer(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockService.AssertNotCalled(t, "GetCustomer")
	})

	t.Run("customer not found", func(t *testing.T) {
		mockService.On("GetCustomer", mock.Anything, int64(2)).Return(nil, apperrors.ErrNotFound)

		req := httptest.NewRequest(http.MethodGet, "/customers/2", nil)
		rec := httptest.NewRecorder()

		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("customerID", "2")
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		handler.GetCustomer(rec, req)
		assert.NotNil(t, rec)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		mockService.AssertExpectations(t)
	})
}

func TestListCustomers(t *testing.T) {
	mockService := new(MockCustomerService)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	handler := handler.NewCustomerHandler(mockService, logger)

	t.Run("success", func(t *testing.T) {
		customers := []*customer.Customer{
			{CustomerID: 1, Name: "John Doe", Phone: "9876543210"},
			{CustomerID: 2, Name: "Jane Smith", Phone: "9876500000"},
		}
		mockService.On("ListCustomers", mock.Anything).Return(customers, nil)

		req := httptest.NewRequest(http.MethodGet, "/customers", nil)
		rec := httptest.NewRecorder()

		handler.ListCustomers(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp []dto.CustomerResponse
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		assert.NoError(t, err)
		assert.Len(t, resp, 2)
		assert.Equal(t, "Jane Smith", resp[1].Name)
		mockService.AssertExpectations(t)
	})
}

func TestUpdateCustomer(t *testing.T) {
	mockService := new(MockCustomerService)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	handler := handler.NewCustomerHandler(mockService, logger)

	t.Run("success", func(t *testing.T) {
		updated := &customer.Customer{CustomerID: 1, Name: "John Doe", Phone: "9999999999"}
		mockService.On("UpdateCustomer", mock.Anything, int64(1), "", "9999999999", "", "").Return(updated, nil)

		req := httptest.NewRequest(http.MethodPut, "/customers/1", bytes.NewReader([]byte(`{"phone": "9999999999"}`)))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("customerID", "1")
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		handler.UpdateCustomer(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.CustomerResponse
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		assert.NoError(t, err)
		assert.Equal(t, "9999999999", resp.Phone)
		mockService.AssertExpectations(t)
	})

	t.Run("empty update", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/customers/1", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("customerID", "1")
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		handler.UpdateCustomer(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockService.AssertNotCalled(t, "UpdateCustomer")
	})
}

func TestDeleteCustomer(t *testing.T) {
	mockService := new(MockCustomerService)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	handler := handler.NewCustomerHandler(mockService, logger)

	t.Run("success", func(t *testing.T) {
		mockService.On("DeleteCustomer", mock.Anything, int64(1)).Return(nil)

		req := httptest.NewRequest(http.MethodDelete, "/customers/1", nil)
		rec := httptest.NewRecorder()

		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("customerID", "1")
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		handler.DeleteCustomer(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("refuses while loans remain", func(t *testing.T) {
		mockService.On("DeleteCustomer", mock.Anything, int64(2)).
			Return(fmt.Errorf("%w: customer 2 has 1 loan(s) on the ledger", apperrors.ErrConflict))

		req := httptest.NewRequest(http.MethodDelete, "/customers/2", nil)
		rec := httptest.NewRecorder()

		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("customerID", "2")
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		handler.DeleteCustomer(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
		var resp dto.ErrorResponse
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		assert.NoError(t, err)
		assert.Contains(t, resp.Error.Message, "loan(s) on the ledger")
		mockService.AssertExpectations(t)
	})

	t.Run("customer not found", func(t *testing.T) {
		mockService.On("DeleteCustomer", mock.Anything, int64(3)).Return(apperrors.ErrNotFound)

		req := httptest.NewRequest(http.MethodDelete, "/customers/3", nil)
		rec := httptest.NewRecorder()

		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("customerID", "3")
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		handler.DeleteCustomer(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		mockService.AssertExpectations(t)
	})
}
