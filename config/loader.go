package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads and validates the application configuration. When path is empty
// a short list of default locations is tried. A .env file, if present, is
// folded into the environment before overrides are applied.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	paths := []string{"config.yml", "./config/config.yml"}
	if path != "" {
		paths = []string{path}
	}
	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	v := validator.New()
	for _, f := range cfg.Feeds {
		if err := v.Struct(f); err != nil {
			return nil, err
		}
	}
	if err := v.Struct(cfg.Ingest); err != nil {
		return nil, err
	}

	seen := map[string]string{}
	for _, f := range cfg.Feeds {
		if prev, ok := seen[f.URL]; ok {
			return nil, fmt.Errorf("feed URL %s configured twice (%q and %q)", f.URL, prev, f.Name)
		}
		seen[f.URL] = f.Name
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Ingest.DataDir == "" {
		cfg.Ingest.DataDir = "./data"
	}
	if cfg.Ingest.RequestDelaySec == 0 {
		cfg.Ingest.RequestDelaySec = 20
	}
	if cfg.Ingest.TimeoutSec == 0 {
		cfg.Ingest.TimeoutSec = 30
	}
	if cfg.Ingest.RetryDelaySec == 0 {
		cfg.Ingest.RetryDelaySec = 5
	}
	if cfg.Ingest.IntervalSec == 0 {
		cfg.Ingest.IntervalSec = 60
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Ingest.DataDir = v
	}
	if v := os.Getenv("SAVE_REALTIME_RAW"); v != "" {
		cfg.Ingest.SaveRealtimeRaw = boolValue(v)
	}
	if v := os.Getenv("SAVE_STATIC_RAW"); v != "" {
		cfg.Ingest.SaveStaticRaw = boolValue(v)
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATSURL = v
	}
	if v := os.Getenv("UPLOAD_DESTINATION"); v != "" {
		cfg.Upload.Destination = v
	}
}

func boolValue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}
