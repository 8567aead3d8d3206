package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"transit/gtfs-ingest/config"
	"transit/gtfs-ingest/gtfsrt"
	"transit/gtfs-ingest/store"
)

func tripUpdatePayload(t *testing.T, tripID string) []byte {
	t.Helper()
	fm := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(1000),
		},
		Entity: []*gtfsrtpb.FeedEntity{
			{
				Id: proto.String("1"),
				TripUpdate: &gtfsrtpb.TripUpdate{
					Trip: &gtfsrtpb.TripDescriptor{TripId: proto.String(tripID)},
				},
			},
		},
	}
	data, err := proto.Marshal(fm)
	if err != nil {
		t.Fatalf("failed to marshal fixture: %v", err)
	}
	return data
}

func staticPayload(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("stops.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("stop_id,stop_name\nS1,Central\n")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testConfig(dataDir string, feeds ...config.FeedSource) *config.AppConfig {
	return &config.AppConfig{
		Ingest: config.IngestConfig{
			DataDir:    dataDir,
			TimeoutSec: 2,
		},
		Feeds: feeds,
	}
}

func newIngestor(cfg *config.AppConfig) *Ingestor {
	st := store.New(cfg.Ingest.DataDir, cfg.Ingest.SaveRealtimeRaw, cfg.Ingest.SaveStaticRaw)
	return New(cfg, st, nil)
}

func artifactCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestIngestOne_FetchFailurePersistsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := testConfig(dir, config.FeedSource{Kind: config.KindTripUpdates, URL: srv.URL})
	ing := newIngestor(cfg)
	defer ing.Close()

	if ing.IngestOne(context.Background(), cfg.Feeds[0]) {
		t.Error("IngestOne should fail on HTTP 500")
	}
	if n := artifactCount(t, dir); n != 0 {
		t.Errorf("%d artifacts written after failed fetch, want 0", n)
	}
}

func TestIngestOne_DecodeFailurePersistsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not a protobuf"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := testConfig(dir, config.FeedSource{Kind: config.KindTripUpdates, URL: srv.URL})
	ing := newIngestor(cfg)
	defer ing.Close()

	if ing.IngestOne(context.Background(), cfg.Feeds[0]) {
		t.Error("IngestOne should fail on malformed payload")
	}
	if n := artifactCount(t, dir); n != 0 {
		t.Errorf("%d artifacts written after failed decode, want 0", n)
	}
}

func TestIngestOne_RealtimeSuccess(t *testing.T) {
	payload := tripUpdatePayload(t, "T1")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := testConfig(dir, config.FeedSource{Name: "tu", Kind: config.KindTripUpdates, URL: srv.URL})
	cfg.Ingest.SaveRealtimeRaw = true
	ing := newIngestor(cfg)
	defer ing.Close()

	if !ing.IngestOne(context.Background(), cfg.Feeds[0]) {
		t.Fatal("IngestOne failed")
	}
	// decoded JSON plus raw .pb, correlated by one shared timestamp
	if n := artifactCount(t, dir); n != 2 {
		t.Errorf("%d artifacts written, want 2", n)
	}
}

func TestIngestOne_StaticBundle(t *testing.T) {
	payload := staticPayload(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := testConfig(dir, config.FeedSource{Name: "sched", Kind: config.KindStaticBundle, URL: srv.URL})
	ing := newIngestor(cfg)
	defer ing.Close()

	if !ing.IngestOne(context.Background(), cfg.Feeds[0]) {
		t.Fatal("IngestOne failed")
	}
	// raw flag off: only the decoded JSON
	if n := artifactCount(t, dir); n != 1 {
		t.Errorf("%d artifacts written, want 1", n)
	}
}

func TestIngestAll_PartialFailureIsolation(t *testing.T) {
	payload := tripUpdatePayload(t, "T1")
	mux := http.NewServeMux()
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(t.TempDir(),
		config.FeedSource{Name: "a", Kind: config.KindTripUpdates, URL: srv.URL + "/broken"},
		config.FeedSource{Name: "b", Kind: config.KindTripUpdates, URL: srv.URL + "/ok?f=b"},
		config.FeedSource{Name: "c", Kind: config.KindTripUpdates, URL: srv.URL + "/ok?f=c"},
	)
	ing := newIngestor(cfg)
	defer ing.Close()

	results := ing.IngestAll(context.Background())

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3: %v", len(results), results)
	}
	if results[srv.URL+"/broken"] {
		t.Error("broken source should report false")
	}
	if !results[srv.URL+"/ok?f=b"] || !results[srv.URL+"/ok?f=c"] {
		t.Error("sources after a failure should still be processed and succeed")
	}
	if results.Successes() != 2 {
		t.Errorf("Successes() = %d, want 2", results.Successes())
	}
}

func TestIngestAll_StaticBundlesRunFirst(t *testing.T) {
	var mu sync.Mutex
	var order []string
	mux := http.NewServeMux()
	mux.HandleFunc("/rt", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		order = append(order, "rt")
		mu.Unlock()
		_, _ = w.Write(tripUpdatePayload(t, "T1"))
	})
	mux.HandleFunc("/static", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		order = append(order, "static")
		mu.Unlock()
		_, _ = w.Write(staticPayload(t))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// realtime listed first in config; the cycle must still fetch static first
	cfg := testConfig(t.TempDir(),
		config.FeedSource{Name: "rt", Kind: config.KindTripUpdates, URL: srv.URL + "/rt"},
		config.FeedSource{Name: "sched", Kind: config.KindStaticBundle, URL: srv.URL + "/static"},
	)
	ing := newIngestor(cfg)
	defer ing.Close()

	results := ing.IngestAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "static" || order[1] != "rt" {
		t.Errorf("fetch order = %v, want [static rt]", order)
	}
}

type recordingPublisher struct {
	mu    sync.Mutex
	slugs []string
	err   error
}

func (p *recordingPublisher) PublishBatch(slug string, batch *gtfsrt.FeedBatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slugs = append(p.slugs, slug)
	return p.err
}

type recordingUploader struct {
	mu    sync.Mutex
	paths []string
}

func (u *recordingUploader) Upload(localPath, name string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.paths = append(u.paths, localPath)
	return nil
}

func TestIngestOne_CollaboratorsDoNotAffectOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(tripUpdatePayload(t, "T1"))
	}))
	defer srv.Close()

	cfg := testConfig(t.TempDir(), config.FeedSource{Name: "tu feed", Kind: config.KindTripUpdates, URL: srv.URL})
	ing := newIngestor(cfg)
	defer ing.Close()

	pub := &recordingPublisher{err: context.DeadlineExceeded}
	up := &recordingUploader{}
	ing.Publisher = pub
	ing.Uploader = up

	if !ing.IngestOne(context.Background(), cfg.Feeds[0]) {
		t.Error("publish/upload failures must not fail ingestion")
	}

	pub.mu.Lock()
	if len(pub.slugs) != 1 || pub.slugs[0] != "tu_feed" {
		t.Errorf("published slugs = %v, want [tu_feed]", pub.slugs)
	}
	pub.mu.Unlock()

	up.mu.Lock()
	if len(up.paths) != 1 {
		t.Errorf("uploaded paths = %v, want one parsed artifact", up.paths)
	}
	up.mu.Unlock()
}

func TestRunForever_StopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(tripUpdatePayload(t, "T1"))
	}))
	defer srv.Close()

	cfg := testConfig(t.TempDir(), config.FeedSource{Kind: config.KindTripUpdates, URL: srv.URL})
	ing := newIngestor(cfg)
	defer ing.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ing.RunForever(ctx, time.Hour)
		close(done)
	}()

	// let the first cycle finish, then cancel during the waiting state
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunForever did not stop after cancellation")
	}
}

func TestIngestKind_FiltersSources(t *testing.T) {
	payload := tripUpdatePayload(t, "T1")
	var mu sync.Mutex
	var hits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, r.URL.Path)
		mu.Unlock()
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	cfg := testConfig(t.TempDir(),
		config.FeedSource{Name: "tu", Kind: config.KindTripUpdates, URL: srv.URL + "/tu"},
		config.FeedSource{Name: "vp", Kind: config.KindVehiclePositions, URL: srv.URL + "/vp"},
	)
	ing := newIngestor(cfg)
	defer ing.Close()

	results := ing.IngestKind(context.Background(), config.KindTripUpdates)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if !results[srv.URL+"/tu"] {
		t.Error("trip_updates source should succeed")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(hits) != 1 || hits[0] != "/tu" {
		t.Errorf("fetched paths = %v, want [/tu]", hits)
	}
}
