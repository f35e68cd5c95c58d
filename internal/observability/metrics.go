// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Mining metrics
	MetadataAccountsScanned prometheus.Counter
	MetadataRecordsStored   prometheus.Counter
	MetadataRecordsSkipped  prometheus.Counter
	CreatorLinksStored      prometheus.Counter
	HolderMintsProcessed    prometheus.Counter
	HoldersResolved         prometheus.Counter
	HolderMintErrors        *prometheus.CounterVec

	// Remediation metrics
	RemediationOutcomes *prometheus.CounterVec
	RemediationRetries  prometheus.Counter

	// RPC metrics
	RPCCallLatency          *prometheus.HistogramVec
	RPCCallErrors           *prometheus.CounterVec
	SignatureConfirmLatency prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Run metrics
	RunsTotal         *prometheus.CounterVec
	RunDuration       *prometheus.HistogramVec
	LastSuccessfulRun *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "collier"
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Mining metrics
		MetadataAccountsScanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mining",
			Name:      "metadata_accounts_scanned_total",
			Help:      "Total number of metadata accounts returned by filtered scans",
		}),
		MetadataRecordsStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mining",
			Name:      "metadata_records_stored_total",
			Help:      "Total number of metadata records upserted",
		}),
		MetadataRecordsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mining",
			Name:      "metadata_records_skipped_total",
			Help:      "Total number of metadata records skipped by incremental scans",
		}),
		CreatorLinksStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mining",
			Name:      "creator_links_stored_total",
			Help:      "Total number of creator links upserted",
		}),
		HolderMintsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "holders",
			Name:      "mints_processed_total",
			Help:      "Total number of mints examined by the holder resolver",
		}),
		HoldersResolved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "holders",
			Name:      "holders_resolved_total",
			Help:      "Total number of holder records replaced",
		}),
		HolderMintErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "holders",
			Name:      "mint_errors_total",
			Help:      "Total number of mints skipped because of an error, by error kind",
		}, []string{"kind"}),

		// Remediation metrics
		RemediationOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remediation",
			Name:      "outcomes_total",
			Help:      "Total number of remediation outcomes by status",
		}, []string{"status"}),
		RemediationRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remediation",
			Name:      "fetch_retries_total",
			Help:      "Total number of failed fetch attempts during remediation",
		}),

		// RPC metrics
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed Solana RPC attempts",
		}, []string{"method"}),
		SignatureConfirmLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "signature_confirm_latency_seconds",
			Help:      "Time from send to signature notification in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Run metrics
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "runs_total",
			Help:      "Total number of command runs by status",
		}, []string{"command", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Command run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"command"}),
		LastSuccessfulRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful run by command",
		}, []string{"command"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// RecordMetadataScanned adds n accounts returned by a filtered scan.
func RecordMetadataScanned(n int) {
	DefaultMetrics.MetadataAccountsScanned.Add(float64(n))
}

// RecordMetadataStored increments the stored metadata counter.
func RecordMetadataStored() {
	DefaultMetrics.MetadataRecordsStored.Inc()
}

// RecordMetadataSkipped increments the skipped metadata counter.
func RecordMetadataSkipped() {
	DefaultMetrics.MetadataRecordsSkipped.Inc()
}

// RecordCreatorLinkStored increments the creator link counter.
func RecordCreatorLinkStored() {
	DefaultMetrics.CreatorLinksStored.Inc()
}

// RecordHolderMint records one processed mint and whether a holder was replaced.
func RecordHolderMint(resolved bool) {
	DefaultMetrics.HolderMintsProcessed.Inc()
	if resolved {
		DefaultMetrics.HoldersResolved.Inc()
	}
}

// RecordHolderMintError records a skipped mint by error kind.
func RecordHolderMintError(kind string) {
	DefaultMetrics.HolderMintErrors.WithLabelValues(kind).Inc()
}

// RecordRemediationOutcome increments the outcome counter for status.
func RecordRemediationOutcome(status string) {
	DefaultMetrics.RemediationOutcomes.WithLabelValues(status).Inc()
}

// RecordRemediationRetry increments the remediation fetch retry counter.
func RecordRemediationRetry() {
	DefaultMetrics.RemediationRetries.Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordRPCError records a failed RPC attempt.
func RecordRPCError(method string) {
	DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
}

// RecordSignatureConfirmed records the time a sent transaction took to confirm.
func RecordSignatureConfirmed(d time.Duration) {
	DefaultMetrics.SignatureConfirmLatency.Observe(d.Seconds())
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordRun records a finished command run.
func RecordRun(command string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.RunsTotal.WithLabelValues(command, status).Inc()
	DefaultMetrics.RunDuration.WithLabelValues(command).Observe(d.Seconds())
	if err == nil {
		DefaultMetrics.LastSuccessfulRun.WithLabelValues(command).SetToCurrentTime()
	}
}
