package handler

import (
	"log/slog"
	"net/http"

	"pawn-ledger/internal/api/handler/dto"
	"pawn-ledger/internal/domain/ledger"
)

type DashboardHandler struct {
	ledger ledger.LedgerService
	logger *slog.Logger
}

func NewDashboardHandler(ledgerService ledger.LedgerService, l *slog.Logger) *DashboardHandler {
	if ledgerService == nil {
		panic("ledger service cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &DashboardHandler{
		ledger: ledgerService,
		logger: l.With("component", "DashboardHandler"),
	}
}

// GetDashboard handles GET /dashboard.
//
// @Summary Ledger summary
// @Description Aggregate view of the ledger: active loan count and principal, customer count, cash taken in across all payments, and recent activity.
// @Tags Dashboard
// @Produce json
// @Success 200 {object} dto.DashboardResponse "Dashboard statistics"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /dashboard [get]
// @Security BearerAuth
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ledger.Dashboard(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to build dashboard", slog.Any("error", err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewDashboardResponse(stats))
}
