package ingest

import (
	"context"
	"log"
	"time"

	"transit/gtfs-ingest/config"
	"transit/gtfs-ingest/gtfsrt"
	"transit/gtfs-ingest/gtfsstatic"
	"transit/gtfs-ingest/metrics"
	"transit/gtfs-ingest/store"
	"transit/gtfs-ingest/transport"
	"transit/gtfs-ingest/upload"
)

// Result maps feed source URL to the outcome of one cycle.
type Result map[string]bool

// Successes counts the true entries.
func (r Result) Successes() int {
	n := 0
	for _, ok := range r {
		if ok {
			n++
		}
	}
	return n
}

// BatchPublisher announces decoded real-time batches to live consumers.
type BatchPublisher interface {
	PublishBatch(slug string, batch *gtfsrt.FeedBatch) error
}

// Ingestor drives fetch→decode→persist cycles over the configured sources.
// It owns the shared transport client for the run's lifetime; callers must
// Close it on every exit path.
type Ingestor struct {
	cfg       *config.AppConfig
	client    *transport.Client
	store     *store.Store
	collector *metrics.Collector

	// Optional post-persist collaborators. Neither influences results.
	Publisher BatchPublisher
	Uploader  upload.Uploader
}

// New creates an ingestor and acquires the shared HTTP client. collector may
// be nil when metrics are disabled.
func New(cfg *config.AppConfig, st *store.Store, collector *metrics.Collector) *Ingestor {
	return &Ingestor{
		cfg:       cfg,
		client:    transport.NewClient(cfg.Ingest.Timeout(), cfg.Ingest.MaxRetries, cfg.Ingest.RetryDelay()),
		store:     st,
		collector: collector,
	}
}

// Close releases the shared HTTP client.
func (ing *Ingestor) Close() {
	ing.client.Close()
}

// IngestOne runs a single fetch→decode→persist pass for one source. All
// failures are captured here and reported as false; nothing is persisted for
// a source whose fetch or decode failed.
func (ing *Ingestor) IngestOne(ctx context.Context, src config.FeedSource) bool {
	log.Printf("fetching %s data from %s", src.Kind, src.URL)
	data, err := ing.client.Fetch(ctx, src.URL)
	if err != nil {
		log.Printf("error fetching %s: %v", src.URL, err)
		ing.countFetch(src.Kind, "error")
		return false
	}
	ing.countFetch(src.Kind, "ok")
	if ing.collector != nil {
		ing.collector.FetchedBytes.Add(float64(len(data)))
	}

	// one timestamp shared by the raw and decoded artifacts of this pass
	ts := store.Timestamp(time.Now())

	if src.Kind == config.KindStaticBundle {
		return ing.ingestStatic(src, data, ts)
	}
	return ing.ingestRealtime(src, data, ts)
}

func (ing *Ingestor) ingestRealtime(src config.FeedSource, data []byte, ts string) bool {
	batch, err := gtfsrt.Decode(data, gtfsrt.FeedKind(src.Kind))
	if err != nil {
		log.Printf("error parsing %s data from %s: %v", src.Kind, src.URL, err)
		return false
	}

	ing.store.PersistRealtimeRaw(data, batch.Kind, src, ts)
	ok := ing.store.PersistRealtime(batch, src, ts)
	if !ok {
		log.Printf("failed to store %s data from %s", src.Kind, src.URL)
		return false
	}

	if ing.Publisher != nil {
		if err := ing.Publisher.PublishBatch(store.Slug(src.Name, src.URL), batch); err != nil {
			log.Printf("error publishing %s batch from %s: %v", src.Kind, src.URL, err)
			if ing.collector != nil {
				ing.collector.PublishErrs.Inc()
			}
		}
	}
	ing.uploadArtifact(ing.store.RealtimeParsedPath(batch.Kind, src, ts))

	log.Printf("successfully ingested %s from %s", src.Kind, src.URL)
	return true
}

func (ing *Ingestor) ingestStatic(src config.FeedSource, data []byte, ts string) bool {
	tables, err := gtfsstatic.DecodeBundle(data)
	if err != nil {
		log.Printf("error parsing static bundle from %s: %v", src.URL, err)
		return false
	}

	ing.store.PersistStaticRaw(data, src, ts)
	ok := ing.store.PersistStatic(tables, src, ts)
	if !ok {
		log.Printf("failed to store static data from %s", src.URL)
		return false
	}

	ing.uploadArtifact(ing.store.StaticParsedPath(src, ts))

	log.Printf("successfully ingested static bundle from %s", src.URL)
	return true
}

func (ing *Ingestor) uploadArtifact(path string) {
	if ing.Uploader == nil {
		return
	}
	if err := ing.Uploader.Upload(path, ""); err != nil {
		log.Printf("error uploading %s: %v", path, err)
		if ing.collector != nil {
			ing.collector.UploadErrs.Inc()
		}
	}
}

// IngestAll runs one full cycle: static bundles first (downstream consumers
// want fresh schedules before fresh real-time data), then each real-time
// source in configured order with the request delay between consecutive
// fetches. Every source gets an entry in the result; a failed source never
// aborts the cycle.
func (ing *Ingestor) IngestAll(ctx context.Context) Result {
	results := Result{}

	for _, src := range ing.cfg.FeedsOfKind(config.KindStaticBundle) {
		results[src.URL] = ing.IngestOne(ctx, src)
	}

	for i, src := range ing.cfg.RealtimeFeeds() {
		if i > 0 {
			ing.pause(ctx, ing.cfg.Ingest.RequestDelay())
		}
		results[src.URL] = ing.IngestOne(ctx, src)
	}

	return results
}

// IngestKind runs one pass over the sources of a single kind, with the same
// pacing rules as a full cycle.
func (ing *Ingestor) IngestKind(ctx context.Context, kind string) Result {
	results := Result{}
	for i, src := range ing.cfg.FeedsOfKind(kind) {
		if i > 0 && src.IsRealtime() {
			ing.pause(ctx, ing.cfg.Ingest.RequestDelay())
		}
		results[src.URL] = ing.IngestOne(ctx, src)
	}
	return results
}

func (ing *Ingestor) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// RunForever repeats full cycles until ctx is cancelled. An unexpected error
// inside a cycle is logged and the loop waits out the interval and retries;
// cancellation is only observed at the waiting state between cycles.
func (ing *Ingestor) RunForever(ctx context.Context, interval time.Duration) {
	log.Printf("starting continuous ingestion with %s intervals", interval)
	for {
		ing.runCycle(ctx)
		log.Printf("waiting %s until next cycle", interval)
		select {
		case <-ctx.Done():
			log.Printf("continuous ingestion stopped")
			return
		case <-time.After(interval):
		}
	}
}

func (ing *Ingestor) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("error in ingestion cycle: %v", r)
		}
	}()

	if ing.collector != nil {
		ing.collector.CyclesTotal.Inc()
	}
	start := time.Now()
	results := ing.IngestAll(ctx)
	log.Printf("ingestion cycle completed: %d/%d feeds successful", results.Successes(), len(results))
	if ing.collector != nil {
		ing.collector.CycleDuration.Observe(time.Since(start).Seconds())
		ing.collector.CycleFeedsOK.Set(float64(results.Successes()))
	}
}

func (ing *Ingestor) countFetch(kind, result string) {
	if ing.collector != nil {
		ing.collector.FeedFetches.WithLabelValues(kind, result).Inc()
	}
}
