package dto

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pawn-ledger/internal/domain/customer"
)

const (
	validRequest = "Valid request"
)

func TestCreateCustomerRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		request CreateCustomerRequest
		wantErr bool
	}{
		{validRequest, CreateCustomerRequest{Name: "John Doe", Phone: "9876543210"}, false},
		{"Empty name", CreateCustomerRequest{Name: "", Phone: "9876543210"}, true},
		{"Empty phone", CreateCustomerRequest{Name: "John Doe", Phone: ""}, true},
		{"Whitespace name", CreateCustomerRequest{Name: "   ", Phone: "9876543210"}, true},
		{"Empty name and phone", CreateCustomerRequest{Name: "", Phone: ""}, true},
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

func TestUpdateCustomerRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		request UpdateCustomerRequest
		wantErr bool
	}{
		{validRequest, UpdateCustomerRequest{Phone: "9876543210"}, false},
		{"Only address", UpdateCustomerRequest{Address: "456 New Street"}, false},
		{"All fields empty", UpdateCustomerRequest{}, true},
		{"Whitespace only", UpdateCustomerRequest{Name: "  ", Phone: " "}, true},
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

func TestNewCustomerResponse(t *testing.T) {
	cust := &customer.Customer{
		CustomerID: 1,
		Name:       "John Doe",
		Phone:      "9876543210",
		Address:    "123 Street",
		IDProof:    "aadhaar-1234",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	resp := NewCustomerResponse(cust)
	assert.Equal(t, strconv.FormatInt(cust.CustomerID, 10), resp.CustomerID)
	assert.Equal(t, cust.Name, resp.Name)
	assert.Equal(t, cust.Phone, resp.Phone)
	assert.Equal(t, cust.Address, resp.Address)
	assert.Equal(t, cust.IDProof, resp.IDProof)
	assert.Equal(t, cust.CreatedAt, resp.CreatedAt)
	assert.Equal(t, cust.UpdatedAt, resp.UpdatedAt)

	resp = NewCustomerResponse(nil)
	assert.Equal(t, CustomerResponse{}, resp)
}
