package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pawn-ledger/internal/api/handler/dto"
	"pawn-ledger/internal/domain/loan"
	"pawn-ledger/internal/pkg/apperrors"
)

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("no request body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":{"message":"Internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

// respondError maps domain error kinds onto HTTP statuses and stable error
// codes. Unknown errors are logged and reported as a generic 500 so internal
// detail does not leak.
func respondError(w http.ResponseWriter, err error) {
	status, code, message, field := http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred.", ""
	var validationError *apperrors.ValidationError
	var appErr *apperrors.AppError

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status, code, message = http.StatusNotFound, "NOT_FOUND", "Resource not found."
	case errors.As(err, &validationError):
		status, code, message, field = http.StatusBadRequest, "VALIDATION_ERROR", validationError.Message, validationError.Field
	case errors.Is(err, apperrors.ErrInvalidArgument), errors.Is(err, apperrors.ErrValidation):
		status, code, message = http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, apperrors.ErrLoanClosed):
		status, code, message = http.StatusConflict, "CONFLICT", err.Error()
	case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrAlreadyExists):
		status, code, message = http.StatusConflict, "CONFLICT", err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		status, code, message = http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials."
	case errors.Is(err, apperrors.ErrForbidden):
		status, code, message = http.StatusForbidden, "FORBIDDEN", "Access denied."
	case errors.Is(err, apperrors.ErrIntegrity):
		code, message = "INTEGRITY_ERROR", err.Error()
		slog.Default().Error("Ledger integrity violation surfaced to API", "error", err)
	case errors.Is(err, apperrors.ErrTransient):
		status, code, message = http.StatusServiceUnavailable, "TRANSIENT_ERROR", "Temporary storage failure, please retry."
	case errors.As(err, &appErr):
		code, message = appErr.Code, appErr.Message
		slog.Default().Error("Unhandled application error", "error", err)
	default:
		slog.Default().Error("Unhandled internal error", "error", err)
	}

	resp := dto.ErrorResponse{
		Error: dto.ErrorDetail{
			Code:    code,
			Message: message,
			Field:   field,
		},
	}
	respondJSON(w, status, resp)
}

// getSerialFromURL reads the serialNo path parameter and rejects anything
// that is not a well-formed serial before it reaches storage.
func getSerialFromURL(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "serialNo")
	if raw == "" {
		return "", fmt.Errorf("%w: serialNo not found in URL path", apperrors.ErrInvalidArgument)
	}
	sn, err := loan.ParseSerialNumber(raw)
	if err != nil {
		return "", err
	}
	return sn.String(), nil
}
