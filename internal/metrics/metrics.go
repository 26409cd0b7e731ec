package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Upload results.
const (
	ResultSuccess   = "success"
	ResultRejected  = "rejected"
	ResultFailed    = "failed"
	RollbackOK      = "ok"
	RollbackFailed  = "failed"
	OutcomeApproved = "approved"
	OutcomeRejected = "rejected"
	OutcomeDirect   = "direct"
)

// Metrics holds the domain collectors of the storage subsystem.
type Metrics struct {
	Uploads              *prometheus.CounterVec
	UploadedBytes        prometheus.Counter
	RateLimitDenials     *prometheus.CounterVec
	Rollbacks            *prometheus.CounterVec
	QuotaCommitFailures  prometheus.Counter
	OrphanedBlobs        prometheus.Counter
	GovernanceDecisions  *prometheus.CounterVec
	ReconcileCorrections prometheus.Counter
	SelfHeals            prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fileshare_uploads_total",
			Help: "Upload attempts by result and error kind.",
		}, []string{"result", "kind"}),
		UploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fileshare_uploaded_bytes_total",
			Help: "Bytes of successfully committed uploads.",
		}),
		RateLimitDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fileshare_rate_limit_denials_total",
			Help: "Uploads denied by the rate limiter.",
		}, []string{"reason"}),
		Rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fileshare_blob_rollbacks_total",
			Help: "Compensating blob deletions after a failed metadata write.",
		}, []string{"outcome"}),
		QuotaCommitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fileshare_quota_commit_failures_total",
			Help: "Usage updates that failed after the file was persisted.",
		}),
		OrphanedBlobs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fileshare_orphaned_blobs_total",
			Help: "Blobs left behind by a failed delete or rollback.",
		}),
		GovernanceDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fileshare_quota_decisions_total",
			Help: "Applied or rejected quota changes.",
		}, []string{"outcome"}),
		ReconcileCorrections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fileshare_quota_reconcile_corrections_total",
			Help: "Accounts whose storage_used was rewritten by reconciliation.",
		}),
		SelfHeals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fileshare_protected_self_heals_total",
			Help: "Times the protected account's roles had to be restored.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.Uploads,
		m.UploadedBytes,
		m.RateLimitDenials,
		m.Rollbacks,
		m.QuotaCommitFailures,
		m.OrphanedBlobs,
		m.GovernanceDecisions,
		m.ReconcileCorrections,
		m.SelfHeals,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewNop returns metrics bound to a private registry, for tests and tools.
func NewNop() *Metrics {
	m, _ := New(prometheus.NewRegistry())
	return m
}
