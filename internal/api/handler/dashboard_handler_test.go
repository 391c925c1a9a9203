package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"pawn-ledger/internal/api/handler/dto"
	"pawn-ledger/internal/domain/ledger"
	"pawn-ledger/internal/domain/loan"
)

func TestDashboardHandlerGetDashboard(t *testing.T) {
	mockLedger := new(MockLedgerService)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	handler := NewDashboardHandler(mockLedger, logger)

	t.Run("returns the ledger summary", func(t *testing.T) {
		stats := &ledger.DashboardStats{
			ActiveLoanCount:      2,
			TotalActivePrincipal: 3500,
			CustomerCount:        2,
			CashInHand:           2100.50,
			RecentLoans:          []loan.Loan{*testLoanFixture()},
			RecentPayments:       []ledger.Payment{*testPaymentFixture()},
			GeneratedAt:          time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC),
		}
		mockLedger.On("Dashboard", mock.Anything).Return(stats, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		rec := httptest.NewRecorder()

		handler.GetDashboard(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.DashboardResponse
		err := json.NewDecoder(rec.Body).Decode(&resp)
		assert.NoError(t, err)
		assert.Equal(t, 2, resp.ActiveLoanCount)
		assert.Equal(t, "3500.00", resp.TotalActivePrincipal)
		assert.Equal(t, int64(2), resp.CustomerCount)
		assert.Equal(t, "2100.50", resp.CashInHand)
		assert.Len(t, resp.RecentLoans, 1)
		assert.Len(t, resp.RecentPayments, 1)
		mockLedger.AssertExpectations(t)
	})

	t.Run("returns internal server error when aggregation fails", func(t *testing.T) {
		mockLedger.On("Dashboard", mock.Anything).
			Return((*ledger.DashboardStats)(nil), errors.New("storage down")).Once()

		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		rec := httptest.NewRecorder()

		handler.GetDashboard(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var resp dto.ErrorResponse
		err := json.NewDecoder(rec.Body).Decode(&resp)
		assert.NoError(t, err)
		assert.Equal(t, "An unexpected error occurred.", resp.Error.Message)
		mockLedger.AssertExpectations(t)
	})
}
