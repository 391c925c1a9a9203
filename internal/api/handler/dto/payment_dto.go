package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pawn-ledger/internal/domain/ledger"
	"pawn-ledger/internal/domain/loan"
)

// Payment amounts travel as strings so callers can state exact decimal
// values; they are parsed through decimal, never float-scanned.
type RecordPaymentRequest struct {
	SerialNo      string `json:"serialNo"`
	Amount        string `json:"amount,omitempty"`
	PrincipalPaid string `json:"principalPaid,omitempty"`
	InterestPaid  string `json:"interestPaid,omitempty"`
	Purpose       string `json:"purpose,omitempty"`
	PaymentDate   string `json:"paymentDate,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

func parseMoney(s string) (loan.Money, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

func (r *RecordPaymentRequest) Validate() error {
	if strings.TrimSpace(r.SerialNo) == "" {
		return fmt.Errorf("serialNo cannot be empty")
	}
	if r.Purpose != string(ledger.PurposeFullRelease) && r.Amount == "" {
		return fmt.Errorf("amount is required for purpose %q", r.Purpose)
	}
	if r.Amount != "" {
		if _, err := decimal.NewFromString(r.Amount); err != nil {
			return fmt.Errorf("invalid numeric format for amount: %w", err)
		}
	}
	if r.PrincipalPaid != "" {
		if _, err := decimal.NewFromString(r.PrincipalPaid); err != nil {
			return fmt.Errorf("invalid numeric format for principalPaid: %w", err)
		}
	}
	if r.InterestPaid != "" {
		if _, err := decimal.NewFromString(r.InterestPaid); err != nil {
			return fmt.Errorf("invalid numeric format for interestPaid: %w", err)
		}
	}
	if r.PaymentDate != "" {
		if _, err := time.Parse(dateLayout, r.PaymentDate); err != nil {
			return fmt.Errorf("invalid paymentDate format (use YYYY-MM-DD): %w", err)
		}
	}
	return nil
}

// ToRequest assumes Validate has passed.
func (r *RecordPaymentRequest) ToRequest() ledger.PaymentRequest {
	amount, _ := parseMoney(r.Amount)
	principalPaid, _ := parseMoney(r.PrincipalPaid)
	interestPaid, _ := parseMoney(r.InterestPaid)

	var paymentDate time.Time
	if r.PaymentDate != "" {
		paymentDate, _ = time.Parse(dateLayout, r.PaymentDate)
	}

	return ledger.PaymentRequest{
		SerialNo:      strings.TrimSpace(r.SerialNo),
		Amount:        amount,
		PrincipalPaid: principalPaid,
		InterestPaid:  interestPaid,
		Purpose:       ledger.Purpose(r.Purpose),
		PaymentDate:   paymentDate,
		Notes:         r.Notes,
	}
}

type PaymentResponse struct {
	ID            string    `json:"id"`
	SerialNo      string    `json:"serialNo"`
	CustomerName  string    `json:"customerName,omitempty"`
	Amount        string    `json:"amount"`
	PrincipalPaid string    `json:"principalPaid"`
	InterestPaid  string    `json:"interestPaid"`
	Purpose       string    `json:"purpose"`
	PaymentDate   string    `json:"paymentDate"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func NewPaymentResponse(p *ledger.Payment) PaymentResponse {
	if p == nil {
		return PaymentResponse{}
	}

	return PaymentResponse{
		ID:            p.ID,
		SerialNo:      p.LoanSerialNo,
		CustomerName:  p.CustomerName,
		Amount:        formatMoney(p.Amount),
		PrincipalPaid: formatMoney(p.PrincipalPaid),
		InterestPaid:  formatMoney(p.InterestPaid),
		Purpose:       string(p.Purpose),
		PaymentDate:   p.PaymentDate.Format(dateLayout),
		Notes:         p.Notes,
		CreatedAt:     p.CreatedAt,
	}
}
