package event

import (
	"context"
	"time"
)

type LoanCreatedEvent struct {
	SerialNo        string    `json:"serialNo"`
	CustomerID      int64     `json:"customerId"`
	CustomerName    string    `json:"customerName"`
	PrincipalAmount float64   `json:"principalAmount"`
	LoanDate        time.Time `json:"loanDate"`
	Timestamp       time.Time `json:"timestamp"`
}

// LoanReleasedEvent is emitted when a full-release payment closes a loan.
type LoanReleasedEvent struct {
	SerialNo      string    `json:"serialNo"`
	CustomerID    int64     `json:"customerId"`
	PrincipalPaid float64   `json:"principalPaid"`
	InterestPaid  float64   `json:"interestPaid"`
	PaymentDate   time.Time `json:"paymentDate"`
	Timestamp     time.Time `json:"timestamp"`
}

type LoanOverdueEvent struct {
	SerialNo    string    `json:"serialNo"`
	CustomerID  int64     `json:"customerId"`
	AnchorDate  time.Time `json:"anchorDate"`
	ElapsedDays int       `json:"elapsedDays"`
	Timestamp   time.Time `json:"timestamp"`
}

func (p *RabbitMQEventPublisher) PublishLoanCreated(ctx context.Context, event LoanCreatedEvent) error {
	return p.publish(ctx, routingKeyLoanCreated, event)
}

func (p *RabbitMQEventPublisher) PublishLoanReleased(ctx context.Context, event LoanReleasedEvent) error {
	return p.publish(ctx, routingKeyLoanReleased, event)
}

func (p *RabbitMQEventPublisher) PublishLoanOverdue(ctx context.Context, event LoanOverdueEvent) error {
	return p.publish(ctx, routingKeyLoanOverdue, event)
}
