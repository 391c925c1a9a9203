package event

import (
	"context"
	"time"
)

type PaymentRecordedEvent struct {
	PaymentID     string    `json:"paymentId"`
	SerialNo      string    `json:"serialNo"`
	Purpose       string    `json:"purpose"`
	Amount        float64   `json:"amount"`
	PrincipalPaid float64   `json:"principalPaid"`
	InterestPaid  float64   `json:"interestPaid"`
	PaymentDate   time.Time `json:"paymentDate"`
	Timestamp     time.Time `json:"timestamp"`
}

func (p *RabbitMQEventPublisher) PublishPaymentRecorded(ctx context.Context, event PaymentRecordedEvent) error {
	return p.publish(ctx, routingKeyPaymentRecorded, event)
}
