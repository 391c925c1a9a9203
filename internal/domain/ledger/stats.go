package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pawn-ledger/internal/domain/loan"
)

// recentLimit caps the "recent activity" slices on the dashboard.
const recentLimit = 5

type DashboardStats struct {
	ActiveLoanCount      int         `json:"activeLoanCount"`
	TotalActivePrincipal loan.Money  `json:"totalActivePrincipal"`
	CustomerCount        int64       `json:"customerCount"`
	CashInHand           loan.Money  `json:"cashInHand"`
	RecentLoans          []loan.Loan `json:"recentLoans"`
	RecentPayments       []Payment   `json:"recentPayments"`
	GeneratedAt          time.Time   `json:"generatedAt"`
}

// Dashboard aggregates ledger state into the reporting summary. The scan is
// bounded by the fetch cap. Cash in hand sums every payment taken, including
// those on closed loans.
func (s *ledgerServiceImpl) Dashboard(ctx context.Context) (*DashboardStats, error) {
	if s.cache != nil {
		if cached, ok := s.cache.GetDashboard(ctx); ok {
			s.logger.DebugContext(ctx, "Dashboard served from cache")
			return cached, nil
		}
	}

	loans, err := s.loans.ListLoans(ctx, loan.LoanFilter{Limit: s.fetchCap})
	if err != nil {
		return nil, fmt.Errorf("failed to list loans for dashboard: %w", err)
	}
	payments, err := s.payments.ListPayments(ctx, s.fetchCap)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for dashboard: %w", err)
	}
	customerCount, err := s.customers.CountCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count customers for dashboard: %w", err)
	}

	stats := &DashboardStats{
		CustomerCount: customerCount,
		GeneratedAt:   time.Now(),
	}

	var totalActive, cash float64
	for i := range loans {
		if loans[i].Status == loan.StatusActive {
			stats.ActiveLoanCount++
			totalActive += loans[i].PrincipalAmount
		}
	}
	for i := range payments {
		cash += payments[i].Amount
	}
	stats.TotalActivePrincipal = loan.Round2(totalActive)
	stats.CashInHand = loan.Round2(cash)

	stats.RecentLoans = recentLoans(loans)
	stats.RecentPayments = recentPayments(payments)

	if s.cache != nil {
		s.cache.SetDashboard(ctx, stats)
	}
	return stats, nil
}

func recentLoans(loans []loan.Loan) []loan.Loan {
	sorted := make([]loan.Loan, len(loans))
	copy(sorted, loans)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > recentLimit {
		sorted = sorted[:recentLimit]
	}
	return sorted
}

func recentPayments(payments []Payment) []Payment {
	sorted := make([]Payment, len(payments))
	copy(sorted, payments)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > recentLimit {
		sorted = sorted[:recentLimit]
	}
	return sorted
}
