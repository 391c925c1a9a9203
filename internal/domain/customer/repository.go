package customer

import (
	"context"
)

type CustomerRepository interface {
	Save(ctx context.Context, customer *Customer) error

	FindByID(ctx context.Context, customerID int64) (*Customer, error)

	FindAll(ctx context.Context) ([]*Customer, error)

	Count(ctx context.Context) (int64, error)

	Delete(ctx context.Context, customerID int64) error
}

// LoanCounter reports how many loans reference a customer. Satisfied by the
// loan repository; declared here so the deletion check does not couple this
// package to the loan domain.
type LoanCounter interface {
	CountLoansByCustomer(ctx context.Context, customerID int64) (int64, error)
}
