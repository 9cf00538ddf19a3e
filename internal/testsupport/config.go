package testsupport

import (
	"path/filepath"
	"testing"

	"narthex/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t   testing.TB
	cfg *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.IncomingDir = filepath.Join(base, "incoming")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Org.DefaultOrgID = "test-org"
	cfgVal.Org.DefaultLocationID = "test-location"
	cfgVal.Storage.PresignEndpoint = "http://127.0.0.1:0/presign"
	cfgVal.Storage.APIKey = "test-storage-key"
	cfgVal.Vision.APIKey = "test-vision-key"

	builder := &configBuilder{t: t, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithOrg overrides the default tenant on the test config.
func WithOrg(orgID, locationID string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Org.DefaultOrgID = orgID
		b.cfg.Org.DefaultLocationID = locationID
	}
}

// WithWorkers overrides the worker pool size on the test config.
func WithWorkers(count int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.Workers = count
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
