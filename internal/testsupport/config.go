package testsupport

import (
	"path/filepath"
	"testing"

	"clipforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.OutputDir = filepath.Join(base, "clips")

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithDownloadURLs overrides the tool download sources on the test config.
func WithDownloadURLs(fetcher, processor string) ConfigOption {
	return func(cfg *config.Config) {
		if fetcher != "" {
			cfg.Tools.FetcherDownloadURL = fetcher
		}
		if processor != "" {
			cfg.Tools.ProcessorDownloadURL = processor
		}
	}
}

// WithSearchDir adds a discovery directory to the test config.
func WithSearchDir(dir string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Tools.SearchDirs = append(cfg.Tools.SearchDirs, dir)
	}
}
