package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	LoansCreatedTotal     prometheus.Counter
	LoansReleasedTotal    prometheus.Counter
	LoansOverdueTotal     prometheus.Counter
	SerialsAllocatedTotal prometheus.Counter
	PaymentsRecordedTotal *prometheus.CounterVec
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pawn_ledger_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		LoansCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pawn_ledger_loans_created_total",
				Help: "Total number of loans originated.",
			},
		),
		LoansReleasedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pawn_ledger_loans_released_total",
				Help: "Total number of loans closed by full release.",
			},
		),
		LoansOverdueTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pawn_ledger_loans_overdue_total",
				Help: "Total number of loans marked overdue by the batch classifier.",
			},
		),
		SerialsAllocatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pawn_ledger_serials_allocated_total",
				Help: "Total number of loan serial numbers issued.",
			},
		),
		PaymentsRecordedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pawn_ledger_payments_recorded_total",
				Help: "Total number of payments recorded, by purpose.",
			},
			[]string{"purpose"},
		),
	}
)

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordLoanCreated() {
	Business.LoansCreatedTotal.Inc()
}

func RecordLoanReleased() {
	Business.LoansReleasedTotal.Inc()
}

func RecordLoansOverdue(count int) {
	Business.LoansOverdueTotal.Add(float64(count))
}

func RecordSerialAllocated() {
	Business.SerialsAllocatedTotal.Inc()
}

func RecordPayment(purpose string) {
	Business.PaymentsRecordedTotal.WithLabelValues(purpose).Inc()
}
