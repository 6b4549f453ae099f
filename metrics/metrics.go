package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ClientMetrics struct {
	RetryCount      *prometheus.GaugeVec
	FailureCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

type StorageMetrics struct {
	UploadAttempts    *prometheus.CounterVec
	UploadFailures    *prometheus.CounterVec
	UploadDurationSec *prometheus.HistogramVec
	ExistenceChecks   *prometheus.CounterVec
	CostUnits         prometheus.Counter
}

type IngestMetrics struct {
	IngestRequestCount       prometheus.Counter
	IngestRequestDurationSec *prometheus.SummaryVec
	JobsInFlight             prometheus.Gauge
	JobResults               *prometheus.CounterVec
	StageDurationSec         *prometheus.HistogramVec
	SegmentsPerJob           prometheus.Histogram
	CatalogWrites            *prometheus.CounterVec

	Storage        StorageMetrics
	LedgerClient   ClientMetrics
	MetadataClient ClientMetrics
}

var stageBuckets = []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800}

func newClientMetrics(factory promauto.Factory, name string) ClientMetrics {
	return ClientMetrics{
		RetryCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: name + "_retry_count",
			Help: "The number of retries of the last successful request",
		}, []string{"host"}),
		FailureCount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: name + "_failure_count",
			Help: "The total number of failed requests",
		}, []string{"host", "status_code"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name + "_request_duration",
			Help:    "Time taken by successful requests",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"host"}),
	}
}

func NewMetrics(reg prometheus.Registerer) *IngestMetrics {
	factory := promauto.With(reg)
	m := &IngestMetrics{
		IngestRequestCount: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingest_request_count",
			Help: "The total number of requests to /api/ingest",
		}),
		IngestRequestDurationSec: factory.NewSummaryVec(prometheus.SummaryOpts{
			Name: "ingest_request_duration_seconds",
			Help: "The latency of the requests made to /api/ingest in seconds broken up by success and status code",
		}, []string{"success", "status_code"}),
		JobsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ingest_jobs_in_flight",
			Help: "Number of ingest jobs currently running",
		}),
		JobResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_job_results",
			Help: "Finished ingest jobs by final status and the stage they ended in",
		}, []string{"status", "stage"}),
		StageDurationSec: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingest_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: stageBuckets,
		}, []string{"stage", "success"}),
		SegmentsPerJob: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_segments_per_job",
			Help:    "Number of segments produced per job",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		CatalogWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_catalog_writes",
			Help: "Catalog writes by result",
		}, []string{"success"}),

		Storage: StorageMetrics{
			UploadAttempts: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "dstorage_upload_attempts",
				Help: "Individual store attempts against the storage network",
			}, []string{"transport"}),
			UploadFailures: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "dstorage_upload_failures",
				Help: "Uploads that failed after every retry",
			}, []string{"transport"}),
			UploadDurationSec: factory.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "dstorage_upload_duration_seconds",
				Help:    "Time taken to store a file, retries included",
				Buckets: stageBuckets,
			}, []string{"transport", "success"}),
			ExistenceChecks: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "dstorage_existence_checks",
				Help: "Read path checks made for blobs reported as already stored",
			}, []string{"found"}),
			CostUnits: factory.NewCounter(prometheus.CounterOpts{
				Name: "dstorage_cost_units",
				Help: "Total storage cost reported by the storage network",
			}),
		},

		LedgerClient:   newClientMetrics(factory, "ledger_client"),
		MetadataClient: newClientMetrics(factory, "metadata_client"),
	}

	return m
}

var Metrics = NewMetrics(prometheus.DefaultRegisterer)
