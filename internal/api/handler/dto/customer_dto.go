package dto

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"pawn-ledger/internal/domain/customer"
)

type CreateCustomerRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address,omitempty"`
	IDProof string `json:"idProof,omitempty"`
}

func (r *CreateCustomerRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if strings.TrimSpace(r.Phone) == "" {
		return fmt.Errorf("phone cannot be empty")
	}
	return nil
}

// UpdateCustomerRequest carries a partial update; blank fields keep their
// stored values.
type UpdateCustomerRequest struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	IDProof string `json:"idProof,omitempty"`
}

func (r *UpdateCustomerRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" &&
		strings.TrimSpace(r.Phone) == "" &&
		strings.TrimSpace(r.Address) == "" &&
		strings.TrimSpace(r.IDProof) == "" {
		return fmt.Errorf("at least one field must be provided")
	}
	return nil
}

type CustomerResponse struct {
	CustomerID string    `json:"customerId"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Address    string    `json:"address,omitempty"`
	IDProof    string    `json:"idProof,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func NewCustomerResponse(cust *customer.Customer) CustomerResponse {
	if cust == nil {
		return CustomerResponse{}
	}

	return CustomerResponse{
		CustomerID: strconv.FormatInt(cust.CustomerID, 10),
		Name:       cust.Name,
		Phone:      cust.Phone,
		Address:    cust.Address,
		IDProof:    cust.IDProof,
		CreatedAt:  cust.CreatedAt,
		UpdatedAt:  cust.UpdatedAt,
	}
}
