// Package toolbox is the public entry point of the toolkit. It wires the
// source registry, the cache manager and the processing adapter together
// behind one handle so callers configure everything in a single place.
package toolbox

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ocha-dap/aadatakit/internal/cache"
	"github.com/ocha-dap/aadatakit/internal/config"
	"github.com/ocha-dap/aadatakit/internal/fetch"
	"github.com/ocha-dap/aadatakit/internal/processing"
	"github.com/ocha-dap/aadatakit/internal/provenance"
	"github.com/ocha-dap/aadatakit/internal/sources"
	"github.com/ocha-dap/aadatakit/internal/versions"
)

// LedgerFileName is the provenance database file under the cache root
const LedgerFileName = "provenance.db"

// Toolbox bundles the source registry, the fetch and cache manager, and the
// processing adapter behind a single handle
type Toolbox struct {
	cfg      *config.Config
	registry *sources.Registry
	manager  *cache.Manager
	adapter  *processing.Adapter
	ledger   *provenance.Ledger
}

type options struct {
	client     fetch.Client
	registerer prometheus.Registerer
	ledger     bool
}

// Option configures a Toolbox
type Option func(*options)

// WithClient replaces the HTTP client used for artifact fetches
func WithClient(c fetch.Client) Option {
	return func(o *options) { o.client = c }
}

// WithPrometheusRegisterer registers fetch and cache metrics with the given
// registerer
func WithPrometheusRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithProvenanceLedger enables the on-disk provenance ledger, stored as an
// SQLite database under the cache root
func WithProvenanceLedger() Option {
	return func(o *options) { o.ledger = true }
}

// New creates a toolbox from a validated configuration
func New(cfg *config.Config, opts ...Option) (*Toolbox, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	registry, err := sources.NewRegistryFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	client := o.client
	if client == nil {
		// Per-attempt deadlines come from the retry policy, so the
		// client itself carries no timeout.
		client = fetch.NewDefaultClient(0, cfg.Fetch.MaxArtifactSizeOrDefault())
	}

	managerOpts := []cache.Option{
		cache.WithClient(client),
		cache.WithRetryPolicy(fetch.RetryPolicy{
			MaxAttempts:     cfg.Fetch.MaxAttemptsOrDefault(),
			AttemptTimeout:  cfg.Fetch.AttemptTimeoutOrDefault(),
			InitialInterval: cfg.Fetch.InitialBackoffOrDefault(),
			MaxInterval:     cfg.Fetch.MaxBackoffOrDefault(),
		}),
	}
	if o.registerer != nil {
		managerOpts = append(managerOpts, cache.WithMetrics(cache.NewMetrics(o.registerer)))
	}

	var ledger *provenance.Ledger
	if o.ledger {
		ledger, err = provenance.Open(filepath.Join(cfg.CacheDir, LedgerFileName))
		if err != nil {
			return nil, fmt.Errorf("failed to open provenance ledger: %w", err)
		}
		managerOpts = append(managerOpts, cache.WithLedger(ledger))
	}

	manager, err := cache.NewManager(registry, cfg.CacheDir, managerOpts...)
	if err != nil {
		if ledger != nil {
			_ = ledger.Close()
		}
		return nil, err
	}

	return &Toolbox{
		cfg:      cfg,
		registry: registry,
		manager:  manager,
		adapter:  processing.NewAdapter(),
		ledger:   ledger,
	}, nil
}

// Close releases resources held by the toolbox
func (t *Toolbox) Close() error {
	if t.ledger != nil {
		return t.ledger.Close()
	}
	return nil
}

// RegisterSource adds a source descriptor at runtime, in addition to the
// sources declared in the configuration
func (t *Toolbox) RegisterSource(desc sources.SourceDescriptor) error {
	return t.registry.Register(desc)
}

// ResolveSource returns the descriptor registered under the given id
func (t *Toolbox) ResolveSource(sourceID string) (sources.SourceDescriptor, error) {
	return t.registry.Resolve(sourceID)
}

// SourceIDs returns the registered source identifiers
func (t *Toolbox) SourceIDs() []string {
	return t.registry.IDs()
}

// GetArtifact resolves a fetch request to a local artifact path, fetching
// and verifying the artifact if it is not already cached
func (t *Toolbox) GetArtifact(ctx context.Context, req cache.FetchRequest) (string, error) {
	return t.manager.GetArtifact(ctx, req)
}

// Invalidate removes cached entries for a source. With no versions given,
// all versions are removed.
func (t *Toolbox) Invalidate(sourceID string, versions ...string) error {
	return t.manager.Invalidate(sourceID, versions...)
}

// ListEntries returns the installed cache entries for a source
func (t *Toolbox) ListEntries(sourceID string) ([]cache.Entry, error) {
	return t.manager.List(sourceID)
}

// LatestCachedVersion returns the greatest version installed for a source,
// or an empty string when nothing is cached
func (t *Toolbox) LatestCachedVersion(sourceID string) (string, error) {
	entries, err := t.manager.List(sourceID)
	if err != nil {
		return "", err
	}
	seen := make([]string, 0, len(entries))
	for i := range entries {
		seen = append(seen, entries[i].Version)
	}
	return versions.Latest(seen), nil
}

// Provenance returns the recorded fetch history for a source, most recent
// first. Requires the ledger to be enabled.
func (t *Toolbox) Provenance(ctx context.Context, sourceID string) ([]provenance.Record, error) {
	if t.ledger == nil {
		return nil, fmt.Errorf("provenance ledger is not enabled")
	}
	return t.ledger.BySource(ctx, sourceID)
}

// Process applies a named transformation to an already-fetched artifact.
// The artifact's format is taken from its source descriptor.
func (t *Toolbox) Process(
	ctx context.Context, sourceID, version, artifactPath, transform string,
) (*processing.ProcessedArtifact, error) {
	desc, err := t.registry.Resolve(sourceID)
	if err != nil {
		return nil, err
	}
	spec, err := processing.ParseTransformSpec(transform)
	if err != nil {
		return nil, err
	}
	return t.adapter.Process(ctx, processing.ProcessRequest{
		ArtifactPath: artifactPath,
		Format:       desc.Format,
		SourceID:     sourceID,
		Version:      version,
		Spec:         spec,
	})
}

// GetAndProcess fetches an artifact and applies a transformation in one
// call. The cache is never mutated by the processing step.
func (t *Toolbox) GetAndProcess(
	ctx context.Context, req cache.FetchRequest, transform string,
) (*processing.ProcessedArtifact, error) {
	path, err := t.manager.GetArtifact(ctx, req)
	if err != nil {
		return nil, err
	}
	return t.Process(ctx, req.SourceID, req.Version, path, transform)
}
