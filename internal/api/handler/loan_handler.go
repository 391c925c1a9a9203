package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"pawn-ledger/internal/api/handler/dto"
	"pawn-ledger/internal/domain/ledger"
	"pawn-ledger/internal/domain/loan"
	"pawn-ledger/internal/pkg/apperrors"
)

type LoanHandler struct {
	loans  loan.LoanService
	ledger ledger.LedgerService
	logger *slog.Logger
}

func NewLoanHandler(loans loan.LoanService, ledgerService ledger.LedgerService, l *slog.Logger) *LoanHandler {
	if loans == nil {
		panic("loan service cannot be nil")
	}
	if ledgerService == nil {
		panic("ledger service cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &LoanHandler{
		loans:  loans,
		ledger: ledgerService,
		logger: l.With("component", "LoanHandler"),
	}
}

// CreateLoan handles POST /loans.
//
// @Summary Create a new loan
// @Description Creates a loan against a registered customer with its pledged items. The serial number is assigned by the server.
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body dto.CreateLoanRequest true "Loan creation request payload"
// @Success 201 {object} dto.LoanResponse "Loan successfully created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload or validation error"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans [post]
// @Security BearerAuth
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(r.Context(), "Loan request validation failed", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	created, err := h.loans.CreateLoan(r.Context(), req.ToInput())
	if err != nil {
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Loan created", slog.String("serialNo", created.SerialNo))
	respondJSON(w, http.StatusCreated, dto.NewLoanResponse(created))
}

// GetLoan handles GET /loans/{serialNo}.
//
// @Summary Retrieve loan details
// @Description Retrieves a loan by its serial number, including pledged items.
// @Tags Loans
// @Produce json
// @Param serialNo path string true "Loan serial number" example(A150)
// @Success 200 {object} dto.LoanResponse "Loan details retrieved"
// @Failure 400 {object} dto.ErrorResponse "Malformed serial number"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{serialNo} [get]
// @Security BearerAuth
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	serialNo, err := getSerialFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	found, err := h.loans.GetLoanBySerial(r.Context(), serialNo)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanResponse(found))
}

// ListLoans handles GET /loans.
//
// @Summary List loans
// @Description Lists loans, optionally filtered by status and customer.
// @Tags Loans
// @Produce json
// @Param status query string false "Filter by status (active, closed, overdue)"
// @Param customer_id query int false "Filter by customer ID"
// @Param limit query int false "Maximum number of loans to return"
// @Success 200 {array} dto.LoanResponse "List of loans"
// @Failure 400 {object} dto.ErrorResponse "Invalid filter parameters"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans [get]
// @Security BearerAuth
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	filter := loan.LoanFilter{
		Status: loan.LoanStatus(r.URL.Query().Get("status")),
	}

	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		customerID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || customerID <= 0 {
			respondError(w, fmt.Errorf("%w: invalid customer_id: %s", apperrors.ErrInvalidArgument, raw))
			return
		}
		filter.CustomerID = customerID
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(w, fmt.Errorf("%w: invalid limit: %s", apperrors.ErrInvalidArgument, raw))
			return
		}
		filter.Limit = limit
	}

	loans, err := h.loans.ListLoans(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]dto.LoanResponse, len(loans))
	for i := range loans {
		resp[i] = dto.NewLoanResponse(&loans[i])
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetInterest handles GET /loans/{serialNo}/interest.
//
// @Summary Quote accrued interest
// @Description Computes the interest owed on the outstanding principal as of a given date (default today). Simple interest within the first loan year, compounded annually past it.
// @Tags Loans
// @Produce json
// @Param serialNo path string true "Loan serial number" example(A150)
// @Param as_of query string false "Valuation date (YYYY-MM-DD, defaults to today)"
// @Success 200 {object} dto.InterestResponse "Interest quote"
// @Failure 400 {object} dto.ErrorResponse "Malformed serial number or as_of date"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{serialNo}/interest [get]
// @Security BearerAuth
func (h *LoanHandler) GetInterest(w http.ResponseWriter, r *http.Request) {
	serialNo, err := getSerialFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var asOf time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		asOf, err = time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, fmt.Errorf("%w: invalid as_of date (use YYYY-MM-DD): %s", apperrors.ErrInvalidArgument, raw))
			return
		}
	}

	res, err := h.ledger.GetInterest(r.Context(), serialNo, asOf)
	if err != nil {
		respondError(w, err)
		return
	}

	if asOf.IsZero() {
		asOf = time.Now()
	}
	respondJSON(w, http.StatusOK, dto.NewInterestResponse(serialNo, asOf, res))
}

// GetOutstanding handles GET /loans/{serialNo}/outstanding.
//
// @Summary Retrieve outstanding principal
// @Description Returns the principal still owed on a loan, derived from its payment history.
// @Tags Loans
// @Produce json
// @Param serialNo path string true "Loan serial number" example(A150)
// @Success 200 {object} dto.OutstandingResponse "Outstanding principal retrieved"
// @Failure 400 {object} dto.ErrorResponse "Malformed serial number"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{serialNo}/outstanding [get]
// @Security BearerAuth
func (h *LoanHandler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	serialNo, err := getSerialFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	outstanding, err := h.ledger.OutstandingPrincipal(r.Context(), serialNo)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewOutstandingResponse(serialNo, outstanding))
}

// PurgeLoan handles DELETE /loans/{serialNo}.
//
// @Summary Purge a loan
// @Description Administrative removal of a loan together with its payment history. This is not part of normal ledger operation; payments are otherwise append-only.
// @Tags Loans
// @Produce json
// @Param serialNo path string true "Loan serial number" example(A150)
// @Success 204 "Loan and its payments removed"
// @Failure 400 {object} dto.ErrorResponse "Malformed serial number"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{serialNo} [delete]
// @Security BearerAuth
func (h *LoanHandler) PurgeLoan(w http.ResponseWriter, r *http.Request) {
	serialNo, err := getSerialFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.ledger.PurgeLoan(r.Context(), serialNo); err != nil {
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Loan purged", slog.String("serialNo", serialNo))
	respondJSON(w, http.StatusNoContent, nil)
}
