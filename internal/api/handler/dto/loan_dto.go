package dto

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"pawn-ledger/internal/domain/loan"
)

const dateLayout = "2006-01-02"

// formatMoney renders an amount with exactly two decimals, "2500.00" style.
func formatMoney(v loan.Money) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

type LoanItem struct {
	Quantity   int     `json:"quantity,omitempty"`
	Name       string  `json:"name"`
	Metal      string  `json:"metal,omitempty"`
	Weight     float64 `json:"weight"`
	Percentage float64 `json:"percentage"`
	FineWeight float64 `json:"fineWeight,omitempty"`
	Value      float64 `json:"value,omitempty"`
}

func (i LoanItem) toDomain() loan.Item {
	return loan.Item{
		Quantity:   i.Quantity,
		Name:       i.Name,
		Metal:      i.Metal,
		Weight:     i.Weight,
		Percentage: i.Percentage,
		FineWeight: i.FineWeight,
		Value:      i.Value,
	}
}

func newLoanItem(item loan.Item) LoanItem {
	return LoanItem{
		Quantity:   item.Quantity,
		Name:       item.Name,
		Metal:      item.Metal,
		Weight:     item.Weight,
		Percentage: item.Percentage,
		FineWeight: item.FineWeight,
		Value:      item.Value,
	}
}

type CreateLoanRequest struct {
	CustomerID      int64      `json:"customerId"`
	PrincipalAmount float64    `json:"principalAmount"`
	MonthlyInterest float64    `json:"monthlyInterest"`
	LoanDate        string     `json:"loanDate,omitempty"`
	Items           []LoanItem `json:"items"`
	Notes           string     `json:"notes,omitempty"`
}

func (r *CreateLoanRequest) Validate() error {
	if r.CustomerID <= 0 {
		return fmt.Errorf("customerId must be positive")
	}
	if r.PrincipalAmount <= 0 {
		return fmt.Errorf("principalAmount must be greater than zero")
	}
	if r.MonthlyInterest < 0 {
		return fmt.Errorf("monthlyInterest must not be negative")
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("at least one pledged item is required")
	}
	if r.LoanDate != "" {
		if _, err := time.Parse(dateLayout, r.LoanDate); err != nil {
			return fmt.Errorf("invalid loanDate format (use YYYY-MM-DD): %w", err)
		}
	}
	return nil
}

// ToInput maps the validated request onto the service input. An absent
// loanDate maps to the zero time; the domain defaults that to today.
func (r *CreateLoanRequest) ToInput() loan.CreateLoanInput {
	items := make([]loan.Item, len(r.Items))
	for i, item := range r.Items {
		items[i] = item.toDomain()
	}

	var loanDate time.Time
	if r.LoanDate != "" {
		loanDate, _ = time.Parse(dateLayout, r.LoanDate)
	}

	return loan.CreateLoanInput{
		CustomerID:      r.CustomerID,
		PrincipalAmount: r.PrincipalAmount,
		MonthlyInterest: r.MonthlyInterest,
		LoanDate:        loanDate,
		Items:           items,
		Notes:           r.Notes,
	}
}

// LoanResponse exposes the serial number as the loan's public identity. The
// numeric row ID stays internal.
type LoanResponse struct {
	SerialNo                string     `json:"serialNo"`
	CustomerID              string     `json:"customerId"`
	CustomerName            string     `json:"customerName"`
	PrincipalAmount         string     `json:"principalAmount"`
	MonthlyInterest         string     `json:"monthlyInterest"`
	LoanDate                string     `json:"loanDate"`
	Status                  string     `json:"status"`
	Items                   []LoanItem `json:"items"`
	LastInterestPaymentDate *string    `json:"lastInterestPaymentDate,omitempty"`
	Notes                   string     `json:"notes,omitempty"`
	CreatedAt               time.Time  `json:"createdAt"`
	UpdatedAt               time.Time  `json:"updatedAt"`
}

func NewLoanResponse(domainLoan *loan.Loan) LoanResponse {
	if domainLoan == nil {
		return LoanResponse{}
	}

	items := make([]LoanItem, len(domainLoan.Items))
	for i, item := range domainLoan.Items {
		items[i] = newLoanItem(item)
	}

	var lastSettled *string
	if domainLoan.LastInterestPaymentDate != nil {
		s := domainLoan.LastInterestPaymentDate.Format(dateLayout)
		lastSettled = &s
	}

	return LoanResponse{
		SerialNo:                domainLoan.SerialNo,
		CustomerID:              strconv.FormatInt(domainLoan.CustomerID, 10),
		CustomerName:            domainLoan.CustomerName,
		PrincipalAmount:         formatMoney(domainLoan.PrincipalAmount),
		MonthlyInterest:         decimal.NewFromFloat(domainLoan.MonthlyInterest).String(),
		LoanDate:                domainLoan.LoanDate.Format(dateLayout),
		Status:                  string(domainLoan.Status),
		Items:                   items,
		LastInterestPaymentDate: lastSettled,
		Notes:                   domainLoan.Notes,
		CreatedAt:               domainLoan.CreatedAt,
		UpdatedAt:               domainLoan.UpdatedAt,
	}
}

type InterestResponse struct {
	SerialNo    string `json:"serialNo"`
	AsOf        string `json:"asOf"`
	Principal   string `json:"principal"`
	Interest    string `json:"interest"`
	Total       string `json:"total"`
	ElapsedDays int    `json:"elapsedDays"`
	Regime      string `json:"regime"`
}

func NewInterestResponse(serialNo string, asOf time.Time, res *loan.InterestResult) InterestResponse {
	return InterestResponse{
		SerialNo:    serialNo,
		AsOf:        asOf.Format(dateLayout),
		Principal:   formatMoney(res.Principal),
		Interest:    formatMoney(res.Interest),
		Total:       formatMoney(res.Total),
		ElapsedDays: res.ElapsedDays,
		Regime:      string(res.Regime),
	}
}

type OutstandingResponse struct {
	SerialNo             string `json:"serialNo"`
	OutstandingPrincipal string `json:"outstandingPrincipal"`
}

func NewOutstandingResponse(serialNo string, outstanding loan.Money) OutstandingResponse {
	return OutstandingResponse{
		SerialNo:             serialNo,
		OutstandingPrincipal: formatMoney(outstanding),
	}
}

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
