package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ledger's Prometheus collectors. Methods on a nil *Metrics
// are no-ops so services can run without metrics wired.
type Metrics struct {
	UsersRegistered  prometheus.Counter
	Verifications    *prometheus.CounterVec
	ActionsReported  *prometheus.CounterVec
	TokensMinted     prometheus.Counter
	TokensBurned     prometheus.Counter
	Redemptions      prometheus.Counter
	RejectedOps      *prometheus.CounterVec
	TxDuration       *prometheus.HistogramVec
	StorageConflicts prometheus.Counter
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UsersRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "ecoprado_users_registered_total",
			Help: "Total number of user registrations, including overwrites",
		}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoprado_verifications_total",
			Help: "Identity document submissions by outcome",
		}, []string{"outcome"}),
		ActionsReported: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoprado_actions_reported_total",
			Help: "Reported ecological actions by action type",
		}, []string{"action_type"}),
		TokensMinted: factory.NewCounter(prometheus.CounterOpts{
			Name: "ecoprado_tokens_minted_total",
			Help: "Total base units of tokens minted",
		}),
		TokensBurned: factory.NewCounter(prometheus.CounterOpts{
			Name: "ecoprado_tokens_burned_total",
			Help: "Total base units of tokens burned, including redemptions",
		}),
		Redemptions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ecoprado_redemptions_total",
			Help: "Total number of successful token redemptions",
		}),
		RejectedOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoprado_rejected_operations_total",
			Help: "Operations that returned false or failed, by operation and reason",
		}, []string{"operation", "reason"}),
		TxDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ecoprado_transaction_duration_seconds",
			Help:    "Duration of ledger transactions by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		StorageConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "ecoprado_storage_conflicts_total",
			Help: "Optimistic transaction conflicts reported by the storage backend",
		}),
	}
}

func (m *Metrics) IncrementUsersRegistered() {
	if m == nil {
		return
	}
	m.UsersRegistered.Inc()
}

func (m *Metrics) IncrementVerification(outcome string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementActionReported(actionType string) {
	if m == nil {
		return
	}
	m.ActionsReported.WithLabelValues(actionType).Inc()
}

// AddTokensMinted accepts the minted amount as a float; very large mints lose
// precision in the counter but not in the ledger.
func (m *Metrics) AddTokensMinted(amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.TokensMinted.Add(amount)
}

func (m *Metrics) AddTokensBurned(amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.TokensBurned.Add(amount)
}

func (m *Metrics) IncrementRedemptions() {
	if m == nil {
		return
	}
	m.Redemptions.Inc()
}

func (m *Metrics) IncrementRejected(operation, reason string) {
	if m == nil {
		return
	}
	m.RejectedOps.WithLabelValues(operation, reason).Inc()
}

func (m *Metrics) ObserveTxDuration(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.TxDuration.WithLabelValues(operation).Observe(seconds)
}
