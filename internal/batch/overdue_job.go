package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pawn-ledger/internal/domain/loan"
	"pawn-ledger/internal/event"
	"pawn-ledger/internal/infrastructure/monitoring"
)

// defaultOverdueAfterDays is the classification threshold when config gives
// none: a loan whose interest has not been settled for over a year.
const defaultOverdueAfterDays = 365

// UpdateOverdueJob scans active loans and marks as overdue those whose last
// interest settlement (or loan date, if never settled) is older than the
// threshold. Classification only: an overdue loan still accepts payments,
// and a later settlement does not move it back on its own.
type UpdateOverdueJob struct {
	loanRepo  loan.Repository
	pub       event.EventPublisher
	afterDays int
	logger    *slog.Logger
}

func NewUpdateOverdueJob(loanRepo loan.Repository, pub event.EventPublisher, afterDays int, logger *slog.Logger) *UpdateOverdueJob {
	if loanRepo == nil || logger == nil {
		panic("UpdateOverdueJob dependencies cannot be nil")
	}
	if pub == nil {
		pub = event.NewNoopEventPublisher(logger)
	}
	if afterDays <= 0 {
		afterDays = defaultOverdueAfterDays
	}
	return &UpdateOverdueJob{
		loanRepo:  loanRepo,
		pub:       pub,
		afterDays: afterDays,
		logger:    logger.With("job", "UpdateOverdue"),
	}
}

func (j *UpdateOverdueJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting overdue loan classification job.", slog.Int("threshold_days", j.afterDays))

	activeLoans, err := j.loanRepo.ListLoans(ctx, loan.LoanFilter{Status: loan.StatusActive})
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to list active loans, aborting job.", slog.Any("error", err))
		return fmt.Errorf("cannot run job, failed to list active loans: %w", err)
	}
	j.logger.InfoContext(ctx, "Fetched active loans.", slog.Int("count", len(activeLoans)))

	if len(activeLoans) == 0 {
		j.logger.InfoContext(ctx, "No active loans found to classify.")
		j.logger.InfoContext(ctx, "Overdue loan classification job finished.", slog.Duration("duration", time.Since(startTime)))
		return nil
	}

	now := time.Now()
	var markedCount, skippedCount, errorCount int

	for i := range activeLoans {
		l := &activeLoans[i]
		logCtx := j.logger.With(slog.String("serialNo", l.SerialNo))

		anchor := l.AnchorDate()
		elapsed := int(now.Sub(anchor).Hours() / 24)
		if elapsed <= j.afterDays {
			continue
		}

		applied, updateErr := j.loanRepo.UpdateLoanStatus(ctx, l.ID, loan.StatusActive, loan.StatusOverdue)
		if updateErr != nil {
			logCtx.ErrorContext(ctx, "Failed to mark loan overdue", slog.Any("error", updateErr))
			errorCount++
			continue
		}
		if !applied {
			// The loan stopped being active between the scan and the update,
			// either a payment closed it or a parallel run got here first.
			logCtx.DebugContext(ctx, "Loan no longer active, skipping.", slog.Int("elapsed_days", elapsed))
			skippedCount++
			continue
		}

		markedCount++
		logCtx.InfoContext(ctx, "Loan marked overdue.", slog.Int("elapsed_days", elapsed))

		evt := event.LoanOverdueEvent{
			SerialNo:    l.SerialNo,
			CustomerID:  l.CustomerID,
			AnchorDate:  anchor,
			ElapsedDays: elapsed,
			Timestamp:   time.Now(),
		}
		if pubErr := j.pub.PublishLoanOverdue(ctx, evt); pubErr != nil {
			logCtx.WarnContext(ctx, "Loan marked overdue, but failed to publish event", slog.Any("error", pubErr))
		}
	}

	monitoring.RecordLoansOverdue(markedCount)

	summaryLog := j.logger.With(
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("active_loans_scanned", len(activeLoans)),
		slog.Int("loans_marked_overdue", markedCount),
		slog.Int("loans_skipped", skippedCount),
		slog.Int("errors_encountered", errorCount),
	)
	if errorCount > 0 {
		summaryLog.WarnContext(ctx, "Overdue loan classification job finished with errors.")
		return fmt.Errorf("job completed with %d errors", errorCount)
	}
	summaryLog.InfoContext(ctx, "Overdue loan classification job finished successfully.")
	return nil
}
