package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"pawn-ledger/internal/api/handler/dto"
	"pawn-ledger/internal/domain/ledger"
	"pawn-ledger/internal/domain/loan"
	"pawn-ledger/internal/pkg/apperrors"
)

type PaymentHandler struct {
	ledger ledger.LedgerService
	logger *slog.Logger
}

func NewPaymentHandler(ledgerService ledger.LedgerService, l *slog.Logger) *PaymentHandler {
	if ledgerService == nil {
		panic("ledger service cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &PaymentHandler{
		ledger: ledgerService,
		logger: l.With("component", "PaymentHandler"),
	}
}

// RecordPayment handles POST /payments.
//
// @Summary Record a payment
// @Description Applies a payment to a loan. Purpose selects the allocation: interest (default), principal, both (explicit split), or full_release, which settles everything owed and closes the loan. For full_release the amount is computed by the server.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body dto.RecordPaymentRequest true "Payment request payload"
// @Success 201 {object} dto.PaymentResponse "Payment recorded"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload or validation error"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 409 {object} dto.ErrorResponse "Loan already closed"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /payments [post]
// @Security BearerAuth
func (h *PaymentHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req dto.RecordPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(r.Context(), "Payment request validation failed", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	payment, err := h.ledger.RecordPayment(r.Context(), req.ToRequest())
	if err != nil {
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Payment recorded",
		slog.String("serialNo", payment.LoanSerialNo), slog.String("paymentID", payment.ID))
	respondJSON(w, http.StatusCreated, dto.NewPaymentResponse(payment))
}

// ListPayments handles GET /payments.
//
// @Summary List payments
// @Description Lists payments, newest first. With serial_no, returns the full history of that loan; without it, a capped global listing.
// @Tags Payments
// @Produce json
// @Param serial_no query string false "Restrict to one loan's payments" example(A150)
// @Param limit query int false "Maximum number of payments to return"
// @Success 200 {array} dto.PaymentResponse "List of payments"
// @Failure 400 {object} dto.ErrorResponse "Invalid filter parameters"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /payments [get]
// @Security BearerAuth
func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	serialNo := r.URL.Query().Get("serial_no")
	if serialNo != "" {
		sn, err := loan.ParseSerialNumber(serialNo)
		if err != nil {
			respondError(w, err)
			return
		}
		serialNo = sn.String()
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, fmt.Errorf("%w: invalid limit: %s", apperrors.ErrInvalidArgument, raw))
			return
		}
		limit = parsed
	}

	payments, err := h.ledger.ListPayments(r.Context(), serialNo, limit)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]dto.PaymentResponse, len(payments))
	for i := range payments {
		resp[i] = dto.NewPaymentResponse(&payments[i])
	}
	respondJSON(w, http.StatusOK, resp)
}
