package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pawn-ledger/internal/domain/ledger"
)

func TestRecordPaymentRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		request RecordPaymentRequest
		wantErr bool
	}{
		{validRequest, RecordPaymentRequest{SerialNo: "A150", Amount: "60"}, false},
		{"Decimal amount", RecordPaymentRequest{SerialNo: "A150", Amount: "60.50"}, false},
		{"Full release needs no amount", RecordPaymentRequest{SerialNo: "A150", Purpose: "full_release"}, false},
		{"Split payment", RecordPaymentRequest{SerialNo: "A150", Amount: "560", PrincipalPaid: "500", InterestPaid: "60", Purpose: "both"}, false},
		{"With payment date", RecordPaymentRequest{SerialNo: "A150", Amount: "60", PaymentDate: "2025-03-02"}, false},
		{"Empty serial", RecordPaymentRequest{SerialNo: "", Amount: "60"}, true},
		{"Missing amount", RecordPaymentRequest{SerialNo: "A150", Purpose: "interest"}, true},
		{"Non-numeric amount", RecordPaymentRequest{SerialNo: "A150", Amount: "sixty"}, true},
		{"Non-numeric principalPaid", RecordPaymentRequest{SerialNo: "A150", Amount: "560", PrincipalPaid: "five hundred"}, true},
		{"Non-numeric interestPaid", RecordPaymentRequest{SerialNo: "A150", Amount: "560", InterestPaid: "sixty"}, true},
		{"Bad payment date", RecordPaymentRequest{SerialNo: "A150", Amount: "60", PaymentDate: "02/03/2025"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecordPaymentRequestToRequest(t *testing.T) {
	req := RecordPaymentRequest{
		SerialNo:      " A150 ",
		Amount:        "560.50",
		PrincipalPaid: "500",
		InterestPaid:  "60.50",
		Purpose:       "both",
		PaymentDate:   "2025-03-02",
		Notes:         "partial redemption",
	}

	out := req.ToRequest()
	assert.Equal(t, "A150", out.SerialNo)
	assert.Equal(t, 560.50, out.Amount)
	assert.Equal(t, 500.0, out.PrincipalPaid)
	assert.Equal(t, 60.50, out.InterestPaid)
	assert.Equal(t, ledger.PurposeBoth, out.Purpose)
	assert.Equal(t, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), out.PaymentDate)
	assert.Equal(t, "partial redemption", out.Notes)

	// Optional fields default to their zero values.
	bare := RecordPaymentRequest{SerialNo: "A150", Amount: "60"}
	out = bare.ToRequest()
	assert.Equal(t, 0.0, out.PrincipalPaid)
	assert.Equal(t, 0.0, out.InterestPaid)
	assert.Equal(t, ledger.Purpose(""), out.Purpose)
	assert.True(t, out.PaymentDate.IsZero())
}

func TestNewPaymentResponse(t *testing.T) {
	paymentDate := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	payment := &ledger.Payment{
		ID:            "0f8fad5b-d9cb-469f-a165-70867728950e",
		LoanID:        7,
		LoanSerialNo:  "A150",
		CustomerName:  "John Doe",
		Amount:        60,
		PrincipalPaid: 0,
		InterestPaid:  60,
		Purpose:       ledger.PurposeInterest,
		PaymentDate:   paymentDate,
		Notes:         "monthly interest",
		CreatedAt:     paymentDate,
	}

	resp := NewPaymentResponse(payment)
	assert.Equal(t, payment.ID, resp.ID)
	assert.Equal(t, "A150", resp.SerialNo)
	assert.Equal(t, "John Doe", resp.CustomerName)
	assert.Equal(t, "60.00", resp.Amount)
	assert.Equal(t, "0.00", resp.PrincipalPaid)
	assert.Equal(t, "60.00", resp.InterestPaid)
	assert.Equal(t, "interest", resp.Purpose)
	assert.Equal(t, "2025-03-02", resp.PaymentDate)
	assert.Equal(t, "monthly interest", resp.Notes)

	resp = NewPaymentResponse(nil)
	assert.Equal(t, PaymentResponse{}, resp)
}
