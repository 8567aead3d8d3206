package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the ingestion metrics on a private registry.
type Collector struct {
	reg *prometheus.Registry

	FeedFetches  *prometheus.CounterVec // kind, result labels
	FetchedBytes prometheus.Counter

	CyclesTotal   prometheus.Counter
	CycleDuration prometheus.Histogram
	CycleFeedsOK  prometheus.Gauge
	FeedsTotal    prometheus.Gauge

	UploadErrs  prometheus.Counter
	PublishErrs prometheus.Counter
}

func NewCollector(configuredFeeds int) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_feed_fetches_total",
			Help: "Total feed fetches by kind and result.",
		}, []string{"kind", "result"}),
		FetchedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_fetched_bytes_total",
			Help: "Total payload bytes fetched from upstream feeds.",
		}),
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_cycles_total",
			Help: "Total ingestion cycles started.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_cycle_duration_seconds",
			Help:    "Duration of one full ingestion cycle.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		CycleFeedsOK: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ingest_cycle_feeds_successful",
			Help: "Feeds ingested successfully in the last cycle.",
		}),
		FeedsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ingest_feeds_configured",
			Help: "Number of configured feed sources.",
		}),
		UploadErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_upload_errors_total",
			Help: "Total artifact upload errors.",
		}),
		PublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_publish_errors_total",
			Help: "Total batch publish errors.",
		}),
	}

	reg.MustRegister(
		c.FeedFetches, c.FetchedBytes,
		c.CyclesTotal, c.CycleDuration, c.CycleFeedsOK, c.FeedsTotal,
		c.UploadErrs, c.PublishErrs,
	)

	c.FeedsTotal.Set(float64(configuredFeeds))
	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
