package cache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/singleflight"

	"github.com/ocha-dap/aadatakit/internal/fetch"
	"github.com/ocha-dap/aadatakit/internal/provenance"
	"github.com/ocha-dap/aadatakit/internal/sources"
)

// lockRetryDelay is the poll interval while waiting on another process's flock
const lockRetryDelay = 50 * time.Millisecond

// Manager resolves fetch requests to local artifacts, fetching at most once
// per distinct key and rejecting corrupted downloads
type Manager struct {
	registry *sources.Registry
	client   fetch.Client
	root     string
	retry    fetch.RetryPolicy
	metrics  *Metrics
	ledger   *provenance.Ledger
	group    singleflight.Group
}

// Option configures a Manager
type Option func(*Manager)

// WithClient replaces the HTTP client used for fetches
func WithClient(c fetch.Client) Option {
	return func(m *Manager) { m.client = c }
}

// WithRetryPolicy replaces the transport retry policy
func WithRetryPolicy(p fetch.RetryPolicy) Option {
	return func(m *Manager) { m.retry = p }
}

// WithMetrics replaces the manager metrics
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithLedger enables provenance recording for installed artifacts
func WithLedger(l *provenance.Ledger) Option {
	return func(m *Manager) { m.ledger = l }
}

// NewManager creates a cache manager rooted at the given directory
func NewManager(registry *sources.Registry, root string, opts ...Option) (*Manager, error) {
	if root == "" {
		return nil, fmt.Errorf("cache root is required")
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache root: %w", err)
	}

	m := &Manager{
		registry: registry,
		client:   fetch.NewDefaultClient(0, 0),
		root:     root,
		retry:    fetch.DefaultRetryPolicy(),
		metrics:  NewMetrics(nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// GetArtifact resolves a fetch request to a local artifact path. Concurrent
// requests for the same key share a single in-flight fetch; an abandoned
// caller returns immediately while the fetch completes independently so
// cache state stays consistent for other waiters.
func (m *Manager) GetArtifact(ctx context.Context, req FetchRequest) (string, error) {
	desc, err := m.registry.Resolve(req.SourceID)
	if err != nil {
		return "", err
	}
	if req.Version == "" {
		return "", fmt.Errorf("version is required for source %s", req.SourceID)
	}
	region, err := NormalizeRegion(req.Region)
	if err != nil {
		return "", err
	}

	key := Key{Source: desc.ID, Version: req.Version, Region: region}
	policy := req.Policy
	if policy == "" {
		policy = PolicyUseCache
	}

	flightKey := key.String() + "|" + string(policy)
	ch := m.group.DoChan(flightKey, func() (any, error) {
		// Detach from the initiating caller's cancellation; the fetch
		// must terminate in a consistent cache state even when the
		// caller goes away. Attempt timeouts still bound it.
		return m.acquireAndGet(context.WithoutCancel(ctx), desc, key, policy)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate removes matching cache entries. With no versions given, all
// versions for the source are removed.
func (m *Manager) Invalidate(sourceID string, versions ...string) error {
	if err := validatePathSegment(sourceID); err != nil {
		return err
	}

	if len(versions) == 0 {
		return os.RemoveAll(filepath.Join(m.root, sourceID))
	}

	for _, version := range versions {
		if err := validatePathSegment(version); err != nil {
			return err
		}
		if err := os.RemoveAll(filepath.Join(m.root, sourceID, version)); err != nil {
			return err
		}
	}
	return nil
}

// List returns the installed entries for a source, across all versions and
// regions. A source with no entries yields an empty slice.
func (m *Manager) List(sourceID string) ([]Entry, error) {
	if err := validatePathSegment(sourceID); err != nil {
		return nil, err
	}

	var entries []Entry
	sourceDir := filepath.Join(m.root, sourceID)
	err := filepath.WalkDir(sourceDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || d.Name() != SidecarFileName {
			return nil
		}
		entry, readErr := readSidecar(filepath.Dir(path))
		if readErr != nil {
			return readErr
		}
		entries = append(entries, *entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (m *Manager) keyDir(key Key) string {
	return filepath.Join(m.root, key.Source, key.Version, key.Region)
}

// acquireAndGet holds the per-key flock from before the existence check
// until the entry is installed or the attempt fails
func (m *Manager) acquireAndGet(
	ctx context.Context, desc sources.SourceDescriptor, key Key, policy Policy,
) (string, error) {
	logger := logr.FromContextOrDiscard(ctx).WithValues(
		"source", key.Source, "version", key.Version, "region", key.Region)

	if err := validatePathSegment(key.Version); err != nil {
		return "", err
	}

	dir := m.keyDir(key)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create cache key directory: %w", err)
	}

	fl := flock.New(filepath.Join(dir, LockFileName))
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return "", fmt.Errorf("failed to acquire cache lock for %s: %w", key, err)
	}
	if !locked {
		return "", fmt.Errorf("failed to acquire cache lock for %s", key)
	}
	defer func() {
		_ = fl.Unlock()
	}()

	artifact := filepath.Join(dir, ArtifactFileName(desc.Format))

	if policy != PolicyForceRefresh {
		if entry, readErr := readSidecar(dir); readErr == nil {
			if info, statErr := os.Stat(artifact); statErr == nil && info.Size() == entry.SizeBytes {
				m.metrics.CacheHits.WithLabelValues(key.Source).Inc()
				logger.V(1).Info("cache hit", "path", artifact)
				return artifact, nil
			}
		}
		m.metrics.CacheMisses.WithLabelValues(key.Source).Inc()
	}

	return m.fetchAndInstall(ctx, desc, key, dir, artifact)
}

// fetchAndInstall downloads the artifact into a temporary file, verifies it,
// and renames it into place so a partially written file is never visible
// under the final cache key
func (m *Manager) fetchAndInstall(
	ctx context.Context, desc sources.SourceDescriptor, key Key, dir, artifact string,
) (string, error) {
	logger := logr.FromContextOrDiscard(ctx).WithValues(
		"source", key.Source, "version", key.Version, "region", key.Region)

	url, err := desc.URL(key.Version, key.Region)
	if err != nil {
		return "", err
	}
	checksumURL, err := desc.ChecksumURL(key.Version, key.Region)
	if err != nil {
		return "", err
	}

	alg := desc.ChecksumAlgorithm
	if alg == "" {
		// No declared checksum: accept on full transfer, but still
		// record a digest in the sidecar for later comparison.
		alg = digest.Canonical
	}

	attemptID := uuid.NewString()
	start := time.Now()

	var (
		tempPath string
		computed digest.Digest
		expected digest.Digest
		size     int64
		attempts int
	)

	op := func(ctx context.Context) error {
		attempts++
		m.metrics.FetchAttempts.WithLabelValues(key.Source).Inc()

		if checksumURL != "" && expected == "" {
			body, getErr := m.client.Get(ctx, checksumURL)
			if getErr != nil {
				return fmt.Errorf("failed to fetch checksum from %s: %w", checksumURL, getErr)
			}
			d, parseErr := parseExpectedDigest(alg, body)
			if parseErr != nil {
				return parseErr
			}
			expected = d
		}

		f, createErr := os.CreateTemp(dir, ".artifact-*.tmp")
		if createErr != nil {
			return fmt.Errorf("failed to create temporary artifact file: %w", createErr)
		}
		tempPath = f.Name()
		discard := func() {
			_ = f.Close()
			_ = os.Remove(tempPath)
			tempPath = ""
		}

		digester := alg.Digester()
		n, dlErr := m.client.Download(ctx, url, io.MultiWriter(f, digester.Hash()))
		if dlErr != nil {
			discard()
			return dlErr
		}
		if syncErr := f.Sync(); syncErr != nil {
			discard()
			return fmt.Errorf("failed to sync temporary artifact file: %w", syncErr)
		}
		if closeErr := f.Close(); closeErr != nil {
			discard()
			return fmt.Errorf("failed to close temporary artifact file: %w", closeErr)
		}

		computed = digester.Digest()
		size = n
		return nil
	}

	if err := fetch.Retry(ctx, m.retry, op); err != nil {
		logger.Error(err, "fetch failed", "url", url, "attempts", attempts)
		return "", err
	}

	if expected != "" && computed != expected {
		_ = os.Remove(tempPath)
		m.metrics.IntegrityFailures.WithLabelValues(key.Source).Inc()
		logger.Error(nil, "checksum mismatch, discarding download",
			"url", url, "expected", expected.String(), "actual", computed.String())
		return "", &IntegrityError{Key: key, Expected: expected, Actual: computed}
	}

	if err := os.Rename(tempPath, artifact); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("failed to install artifact: %w", err)
	}

	entry := &Entry{
		SourceID:  key.Source,
		Version:   key.Version,
		Region:    key.Region,
		Digest:    computed,
		SizeBytes: size,
		FetchedAt: time.Now().UTC(),
		URL:       url,
		AttemptID: attemptID,
	}
	if err := writeSidecar(dir, entry); err != nil {
		return "", err
	}

	if m.ledger != nil {
		rec := &provenance.Record{
			AttemptID: attemptID,
			SourceID:  key.Source,
			Version:   key.Version,
			Region:    key.Region,
			Digest:    computed.String(),
			URL:       url,
			SizeBytes: size,
			Attempts:  attempts,
			FetchedAt: entry.FetchedAt,
			Duration:  time.Since(start),
		}
		if err := m.ledger.Append(ctx, rec); err != nil {
			// Provenance is best-effort; a ledger failure must not
			// invalidate a correctly installed artifact.
			logger.Error(err, "failed to record provenance", "attemptId", attemptID)
		}
	}

	logger.Info("artifact installed",
		"path", artifact, "digest", computed.String(), "sizeBytes", size, "attempts", attempts)
	return artifact, nil
}

// parseExpectedDigest parses the body of a checksum endpoint. Accepted forms
// are "<alg>:<encoded>", a bare encoded digest, and the coreutils style
// "<encoded>  <filename>".
func parseExpectedDigest(alg digest.Algorithm, body []byte) (digest.Digest, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "", fmt.Errorf("checksum endpoint returned an empty body")
	}
	field := strings.Fields(text)[0]

	var d digest.Digest
	if strings.ContainsRune(field, ':') {
		d = digest.Digest(field)
	} else {
		d = digest.NewDigestFromEncoded(alg, field)
	}

	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("invalid checksum %q: %w", field, err)
	}
	if d.Algorithm() != alg {
		return "", fmt.Errorf("checksum algorithm %s does not match declared %s", d.Algorithm(), alg)
	}
	return d, nil
}

func validatePathSegment(segment string) error {
	if segment == "" {
		return fmt.Errorf("empty path segment")
	}
	if segment == "." || segment == ".." ||
		strings.ContainsAny(segment, `/\`) {
		return fmt.Errorf("invalid path segment %q", segment)
	}
	return nil
}
