package config

import "time"

// Feed kinds accepted in configuration.
const (
	KindTripUpdates      = "trip_updates"
	KindVehiclePositions = "vehicle_positions"
	KindStaticBundle     = "static_bundle"
)

// FeedSource identifies one upstream feed endpoint. The URL doubles as the
// source's identity when reporting per-cycle results, so two configured
// sources must not share a URL.
type FeedSource struct {
	Name string `yaml:"name" validate:"omitempty"`
	Kind string `yaml:"kind" validate:"required,oneof=trip_updates vehicle_positions static_bundle"`
	URL  string `yaml:"url" validate:"required,url"`
}

// IsRealtime reports whether the source carries a GTFS-RT protobuf feed.
func (s FeedSource) IsRealtime() bool {
	return s.Kind == KindTripUpdates || s.Kind == KindVehiclePositions
}

// IngestConfig contains fetch pacing and artifact storage settings.
type IngestConfig struct {
	DataDir         string  `yaml:"dataDir"`
	RequestDelaySec float64 `yaml:"requestDelaySec" validate:"gte=0"`
	TimeoutSec      int     `yaml:"timeoutSec" validate:"gte=0"`
	MaxRetries      int     `yaml:"maxRetries" validate:"gte=0"`
	RetryDelaySec   float64 `yaml:"retryDelaySec" validate:"gte=0"`
	IntervalSec     int     `yaml:"intervalSec" validate:"gte=0"`
	SaveRealtimeRaw bool    `yaml:"saveRealtimeRaw"`
	SaveStaticRaw   bool    `yaml:"saveStaticRaw"`
}

func (c IngestConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelaySec * float64(time.Second))
}

func (c IngestConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c IngestConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySec * float64(time.Second))
}

func (c IngestConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

// UploadConfig points at an optional remote destination (e.g. s3://bucket/prefix)
// for finished artifacts. Empty disables uploading.
type UploadConfig struct {
	Destination string `yaml:"destination" validate:"omitempty"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	Ingest      IngestConfig `yaml:"ingest"`
	Feeds       []FeedSource `yaml:"feeds" validate:"dive"`
	MetricsAddr string       `yaml:"metricsAddr"`
	NATSURL     string       `yaml:"natsURL"`
	Upload      UploadConfig `yaml:"upload"`
}

// FeedsOfKind returns the configured sources of one kind, in configured order.
func (c *AppConfig) FeedsOfKind(kind string) []FeedSource {
	var out []FeedSource
	for _, f := range c.Feeds {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// RealtimeFeeds returns the trip-update and vehicle-position sources, in
// configured order.
func (c *AppConfig) RealtimeFeeds() []FeedSource {
	var out []FeedSource
	for _, f := range c.Feeds {
		if f.IsRealtime() {
			out = append(out, f)
		}
	}
	return out
}
