package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var durationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Metrics holds the pipeline collectors. A nil *Metrics records nothing.
type Metrics struct {
	uploadAttempts    *prometheus.CounterVec
	uploadDuration    prometheus.Histogram
	uploadBytes       prometheus.Counter
	ledgerSubmissions *prometheus.CounterVec
	confirmDuration   prometheus.Histogram
	ledgerReads       *prometheus.CounterVec
	eventsObserved    *prometheus.CounterVec
	launches          *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. Collectors that
// are already registered are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		uploadAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webhost",
			Subsystem: "content",
			Name:      "upload_attempts_total",
			Help:      "Upload attempts against the content store",
		}, []string{"result"}),
		uploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "webhost",
			Subsystem: "content",
			Name:      "publish_duration_seconds",
			Help:      "Duration of publish calls including retries",
			Buckets:   durationBuckets,
		}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webhost",
			Subsystem: "content",
			Name:      "published_bytes_total",
			Help:      "Bytes of successfully published file sets",
		}),
		ledgerSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webhost",
			Subsystem: "ledger",
			Name:      "submissions_total",
			Help:      "Ledger writes by outcome",
		}, []string{"result"}),
		confirmDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "webhost",
			Subsystem: "ledger",
			Name:      "confirmation_duration_seconds",
			Help:      "Time from sending a transaction to observing its receipt",
			Buckets:   durationBuckets,
		}),
		ledgerReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webhost",
			Subsystem: "ledger",
			Name:      "reads_total",
			Help:      "Ledger queries by method and outcome",
		}, []string{"method", "result"}),
		eventsObserved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webhost",
			Subsystem: "events",
			Name:      "observed_total",
			Help:      "Contract logs seen by the event listener",
		}, []string{"kind"}),
		launches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webhost",
			Subsystem: "pipeline",
			Name:      "launches_total",
			Help:      "Pipeline runs by final stage",
		}, []string{"stage"}),
	}

	if reg == nil {
		return m
	}

	m.uploadAttempts = register(reg, m.uploadAttempts)
	m.ledgerSubmissions = register(reg, m.ledgerSubmissions)
	m.ledgerReads = register(reg, m.ledgerReads)
	m.eventsObserved = register(reg, m.eventsObserved)
	m.launches = register(reg, m.launches)
	m.uploadDuration = register(reg, m.uploadDuration)
	m.confirmDuration = register(reg, m.confirmDuration)
	m.uploadBytes = register(reg, m.uploadBytes)
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) observeUploadAttempt(err error) {
	if m == nil {
		return
	}
	m.uploadAttempts.WithLabelValues(resultLabel(err)).Inc()
}

func (m *Metrics) observePublish(start time.Time, bytes int64, err error) {
	if m == nil {
		return
	}
	m.uploadDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		m.uploadBytes.Add(float64(bytes))
	}
}

func (m *Metrics) observeSubmission(result string) {
	if m == nil {
		return
	}
	m.ledgerSubmissions.WithLabelValues(result).Inc()
}

func (m *Metrics) observeConfirmation(sent time.Time) {
	if m == nil {
		return
	}
	m.confirmDuration.Observe(time.Since(sent).Seconds())
}

func (m *Metrics) observeRead(method string, err error) {
	if m == nil {
		return
	}
	m.ledgerReads.WithLabelValues(method, resultLabel(err)).Inc()
}

func (m *Metrics) observeEvent(kind string) {
	if m == nil {
		return
	}
	m.eventsObserved.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeLaunch(stage string) {
	if m == nil {
		return
	}
	m.launches.WithLabelValues(stage).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
