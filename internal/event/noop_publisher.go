package event

import (
	"context"
	"log/slog"
)

// NoopEventPublisher satisfies EventPublisher without a broker. Used when
// RabbitMQ is not configured and in tests.
type NoopEventPublisher struct {
	logger *slog.Logger
}

func NewNoopEventPublisher(logger *slog.Logger) EventPublisher {
	return &NoopEventPublisher{logger: logger.With("component", "NoopEventPublisher")}
}

func (p *NoopEventPublisher) PublishCustomerCreated(ctx context.Context, event CustomerCreatedEvent) error {
	p.logger.DebugContext(ctx, "Dropping event, no broker configured", "routingKey", routingKeyCustomerCreated)
	return nil
}

func (p *NoopEventPublisher) PublishCustomerUpdated(ctx context.Context, event CustomerUpdatedEvent) error {
	p.logger.DebugContext(ctx, "Dropping event, no broker configured", "routingKey", routingKeyCustomerUpdated)
	return nil
}

func (p *NoopEventPublisher) PublishLoanCreated(ctx context.Context, event LoanCreatedEvent) error {
	p.logger.DebugContext(ctx, "Dropping event, no broker configured", "routingKey", routingKeyLoanCreated)
	return nil
}

func (p *NoopEventPublisher) PublishLoanReleased(ctx context.Context, event LoanReleasedEvent) error {
	p.logger.DebugContext(ctx, "Dropping event, no broker configured", "routingKey", routingKeyLoanReleased)
	return nil
}

func (p *NoopEventPublisher) PublishLoanOverdue(ctx context.Context, event LoanOverdueEvent) error {
	p.logger.DebugContext(ctx, "Dropping event, no broker configured", "routingKey", routingKeyLoanOverdue)
	return nil
}

func (p *NoopEventPublisher) PublishPaymentRecorded(ctx context.Context, event PaymentRecordedEvent) error {
	p.logger.DebugContext(ctx, "Dropping event, no broker configured", "routingKey", routingKeyPaymentRecorded)
	return nil
}

var _ EventPublisher = (*NoopEventPublisher)(nil)
