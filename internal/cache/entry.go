package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/ocha-dap/aadatakit/internal/config"
)

const (
	// SidecarFileName is the per-key metadata file name
	SidecarFileName = "artifact.meta.json"

	// LockFileName is the per-key flock file name
	LockFileName = ".lock"
)

// Policy selects the caching behavior of a fetch request
type Policy string

const (
	// PolicyUseCache returns an existing valid entry without network access
	PolicyUseCache Policy = "use-cache"

	// PolicyForceRefresh always fetches, replacing the entry only after
	// the new artifact passes validation
	PolicyForceRefresh Policy = "force-refresh"
)

// FetchRequest identifies one artifact request. It is owned by the caller
// for the duration of a single GetArtifact call and never persisted.
type FetchRequest struct {
	SourceID string
	Version  string
	Region   string
	Policy   Policy
}

// Key identifies a cache entry
type Key struct {
	Source  string
	Version string
	Region  string
}

func (k Key) String() string {
	return k.Source + "/" + k.Version + "/" + k.Region
}

// Entry is the recorded metadata for an installed artifact. Entries are
// replaced wholesale, never mutated in place.
type Entry struct {
	SourceID string `json:"sourceId"`
	Version  string `json:"version"`
	Region   string `json:"region"`

	// Digest is the canonical digest of the artifact as installed
	Digest digest.Digest `json:"digest"`

	SizeBytes int64     `json:"sizeBytes"`
	FetchedAt time.Time `json:"fetchedAt"`

	// URL is the concrete endpoint the artifact was fetched from
	URL string `json:"url"`

	// AttemptID is the unique id of the fetch that installed the artifact
	AttemptID string `json:"attemptId"`
}

// NormalizeRegion converts a requested region into its normalized key form:
// lower case, spaces collapsed to hyphens. An empty region maps to "global".
func NormalizeRegion(region string) (string, error) {
	region = strings.ToLower(strings.TrimSpace(region))
	if region == "" {
		return "global", nil
	}
	region = strings.Join(strings.Fields(region), "-")

	for _, r := range region {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return "", fmt.Errorf("invalid character %q in region %q", r, region)
		}
	}
	if strings.HasPrefix(region, ".") {
		return "", fmt.Errorf("region %q cannot start with a dot", region)
	}
	return region, nil
}

// ArtifactFileName returns the artifact file name for a source format
func ArtifactFileName(format string) string {
	switch format {
	case config.FormatGrid:
		return "artifact.asc"
	case config.FormatTable:
		return "artifact.csv"
	default:
		return "artifact.dat"
	}
}

// readSidecar loads the entry metadata from a key directory
func readSidecar(dir string) (*Entry, error) {
	//nolint:gosec // Path is internally managed by the cache manager
	data, err := os.ReadFile(filepath.Join(dir, SidecarFileName))
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("corrupt sidecar in %s: %w", dir, err)
	}
	return &entry, nil
}

// writeSidecar atomically installs the entry metadata in a key directory
func writeSidecar(dir string, entry *Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry metadata: %w", err)
	}

	finalPath := filepath.Join(dir, SidecarFileName)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary sidecar: %w", err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to install sidecar: %w", err)
	}

	return nil
}
