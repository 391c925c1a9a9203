package dto

import (
	"time"

	"pawn-ledger/internal/domain/ledger"
)

type DashboardResponse struct {
	ActiveLoanCount      int               `json:"activeLoanCount"`
	TotalActivePrincipal string            `json:"totalActivePrincipal"`
	CustomerCount        int64             `json:"customerCount"`
	CashInHand           string            `json:"cashInHand"`
	RecentLoans          []LoanResponse    `json:"recentLoans"`
	RecentPayments       []PaymentResponse `json:"recentPayments"`
	GeneratedAt          time.Time         `json:"generatedAt"`
}

func NewDashboardResponse(stats *ledger.DashboardStats) DashboardResponse {
	if stats == nil {
		return DashboardResponse{}
	}

	recentLoans := make([]LoanResponse, len(stats.RecentLoans))
	for i := range stats.RecentLoans {
		recentLoans[i] = NewLoanResponse(&stats.RecentLoans[i])
	}
	recentPayments := make([]PaymentResponse, len(stats.RecentPayments))
	for i := range stats.RecentPayments {
		recentPayments[i] = NewPaymentResponse(&stats.RecentPayments[i])
	}

	return DashboardResponse{
		ActiveLoanCount:      stats.ActiveLoanCount,
		TotalActivePrincipal: formatMoney(stats.TotalActivePrincipal),
		CustomerCount:        stats.CustomerCount,
		CashInHand:           formatMoney(stats.CashInHand),
		RecentLoans:          recentLoans,
		RecentPayments:       recentPayments,
		GeneratedAt:          stats.GeneratedAt,
	}
}
