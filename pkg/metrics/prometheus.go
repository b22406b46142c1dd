package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"PowerLedger/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
// Collectors are registered on the default registry, so create one per process.
type Recorder struct {
	recalculations   *prometheus.CounterVec
	admissions       *prometheus.CounterVec
	schedulerRuns    *prometheus.CounterVec
	notifications    prometheus.Counter
	schedulerLatency prometheus.Histogram
	restores         *prometheus.CounterVec
	restoreLatency   prometheus.Histogram
	backupSize       prometheus.Histogram
	errorsTotal      *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		recalculations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "powerledger_recalculations_total",
				Help: "Station recalculations by resulting status",
			},
			[]string{"status"},
		),
		admissions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "powerledger_admission_checks_total",
				Help: "Admission decisions on load-increasing mutations",
			},
			[]string{"can_add", "forced"},
		),
		schedulerRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "powerledger_expiry_scans_total",
				Help: "Reservation expiry scans by outcome",
			},
			[]string{"outcome"},
		),
		notifications: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "powerledger_expiry_notifications_total",
				Help: "Notifications created by reservation expiry scans",
			},
		),
		schedulerLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "powerledger_expiry_scan_duration_seconds",
				Help:    "Duration of reservation expiry scans in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		restores: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "powerledger_restores_total",
				Help: "Backup restores by outcome",
			},
			[]string{"outcome"},
		),
		restoreLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "powerledger_restore_duration_seconds",
				Help:    "Duration of backup restores in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		backupSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "powerledger_backup_size_bytes",
				Help:    "Size of created backup documents",
				Buckets: prometheus.ExponentialBuckets(1_000, 4, 10),
			},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "powerledger_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordRecalculation(status models.StationStatus) {
	r.recalculations.WithLabelValues(string(status)).Inc()
}

func (r *Recorder) RecordAdmission(canAdd, forced bool) {
	r.admissions.WithLabelValues(strconv.FormatBool(canAdd), strconv.FormatBool(forced)).Inc()
}

// RecordSchedulerRun records one expiry scan and the notifications it created.
func (r *Recorder) RecordSchedulerRun(outcome string, created int, seconds float64) {
	r.schedulerRuns.WithLabelValues(outcome).Inc()
	r.notifications.Add(float64(created))
	r.schedulerLatency.Observe(seconds)
}

func (r *Recorder) RecordRestore(outcome string, seconds float64) {
	r.restores.WithLabelValues(outcome).Inc()
	r.restoreLatency.Observe(seconds)
}

func (r *Recorder) RecordBackup(sizeBytes int64) {
	r.backupSize.Observe(float64(sizeBytes))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
