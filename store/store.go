package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"transit/gtfs-ingest/config"
	"transit/gtfs-ingest/gtfsrt"
	"transit/gtfs-ingest/gtfsstatic"
)

// Store writes decoded artifacts, and optionally the original raw payloads,
// under one directory. Filenames are deterministic for a given
// (kind, source, timestamp) so re-running a cycle overwrites instead of
// duplicating.
type Store struct {
	dir             string
	saveRealtimeRaw bool
	saveStaticRaw   bool
}

// New creates a store rooted at dir. The two flags independently control
// raw-payload retention for real-time and static sources.
func New(dir string, saveRealtimeRaw, saveStaticRaw bool) *Store {
	return &Store{dir: dir, saveRealtimeRaw: saveRealtimeRaw, saveStaticRaw: saveStaticRaw}
}

// Dir returns the artifact directory.
func (s *Store) Dir() string { return s.dir }

// Timestamp formats t the way artifact filenames expect. One timestamp is
// captured per source per cycle and shared between the raw and decoded
// artifact so the two can be correlated.
func Timestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// RealtimeParsedPath returns the decoded artifact path for a real-time source.
func (s *Store) RealtimeParsedPath(kind gtfsrt.FeedKind, src config.FeedSource, ts string) string {
	return filepath.Join(s.dir, fmt.Sprintf("gtfs_rt_%s_%s_%s.json", kind, Slug(src.Name, src.URL), ts))
}

// RealtimeRawPath returns the raw protobuf artifact path for a real-time source.
func (s *Store) RealtimeRawPath(kind gtfsrt.FeedKind, src config.FeedSource, ts string) string {
	return filepath.Join(s.dir, fmt.Sprintf("gtfs_rt_%s_%s_%s.pb", kind, Slug(src.Name, src.URL), ts))
}

// StaticParsedPath returns the decoded artifact path for a static bundle source.
func (s *Store) StaticParsedPath(src config.FeedSource, ts string) string {
	return filepath.Join(s.dir, staticName(Slug(src.Name, src.URL), ts, "json"))
}

// StaticRawPath returns the raw zip artifact path for a static bundle source.
func (s *Store) StaticRawPath(src config.FeedSource, ts string) string {
	return filepath.Join(s.dir, staticName(Slug(src.Name, src.URL), ts, "zip"))
}

func staticName(slug, ts, ext string) string {
	if slug == "" {
		return fmt.Sprintf("gtfs_static_%s.%s", ts, ext)
	}
	return fmt.Sprintf("gtfs_static_%s_%s.%s", slug, ts, ext)
}

// PersistRealtime writes the decoded batch as JSON. It reports failure via
// its return value; filesystem errors are logged, never raised.
func (s *Store) PersistRealtime(batch *gtfsrt.FeedBatch, src config.FeedSource, ts string) bool {
	path := s.RealtimeParsedPath(batch.Kind, src, ts)
	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		log.Printf("error encoding %s batch from %s: %v", batch.Kind, src.URL, err)
		return false
	}
	return s.write(path, data)
}

// PersistRealtimeRaw retains the original protobuf payload when the
// real-time raw flag is enabled. Best-effort: failures are logged only.
func (s *Store) PersistRealtimeRaw(data []byte, kind gtfsrt.FeedKind, src config.FeedSource, ts string) {
	if !s.saveRealtimeRaw {
		return
	}
	s.write(s.RealtimeRawPath(kind, src, ts), data)
}

// StaticDocument is the decoded static artifact layout.
type StaticDocument struct {
	FeedURL   string              `json:"feed_url"`
	FeedName  string              `json:"feed_name"`
	Timestamp string              `json:"timestamp"`
	Tables    gtfsstatic.TableSet `json:"tables"`
}

// PersistStatic writes the parsed schedule tables as JSON.
func (s *Store) PersistStatic(tables gtfsstatic.TableSet, src config.FeedSource, ts string) bool {
	doc := StaticDocument{
		FeedURL:   src.URL,
		FeedName:  src.Name,
		Timestamp: ts,
		Tables:    tables,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		log.Printf("error encoding static tables from %s: %v", src.URL, err)
		return false
	}
	return s.write(s.StaticParsedPath(src, ts), data)
}

// PersistStaticRaw retains the original zip payload when the static raw flag
// is enabled. Best-effort: failures are logged only.
func (s *Store) PersistStaticRaw(data []byte, src config.FeedSource, ts string) {
	if !s.saveStaticRaw {
		return
	}
	s.write(s.StaticRawPath(src, ts), data)
}

func (s *Store) write(path string, data []byte) bool {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		log.Printf("error creating artifact dir %s: %v", s.dir, err)
		return false
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Printf("error writing %s: %v", path, err)
		return false
	}
	log.Printf("wrote %s (%d bytes)", path, len(data))
	return true
}
