package sources

import (
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/ocha-dap/aadatakit/internal/config"
)

// Template placeholders recognized in descriptor URL templates.
const (
	PlaceholderID      = "{id}"
	PlaceholderVersion = "{version}"
	PlaceholderRegion  = "{region}"
)

// SourceDescriptor describes a single external data source. Descriptors are
// immutable once registered.
type SourceDescriptor struct {
	// ID is the unique source identifier
	ID string

	// URLTemplate is the artifact endpoint template with {version},
	// {region} and optional {id} placeholders
	URLTemplate string

	// Format is the artifact data format (config.FormatGrid or config.FormatTable)
	Format string

	// ChecksumAlgorithm is the digest algorithm declared by the source.
	// Empty when the source publishes no verification metadata.
	ChecksumAlgorithm digest.Algorithm

	// ChecksumURLTemplate is the endpoint template serving the expected
	// digest for an artifact. Empty when ChecksumAlgorithm is empty.
	ChecksumURLTemplate string
}

// NewDescriptorFromConfig converts a declarative source entry into a descriptor
func NewDescriptorFromConfig(src *config.SourceConfig) (SourceDescriptor, error) {
	desc := SourceDescriptor{
		ID:          src.ID,
		URLTemplate: src.URLTemplate,
		Format:      src.Format,
	}
	if src.Checksum != nil {
		desc.ChecksumAlgorithm = digest.Algorithm(src.Checksum.Algorithm)
		desc.ChecksumURLTemplate = src.Checksum.URLTemplate
	}
	if err := desc.Validate(); err != nil {
		return SourceDescriptor{}, err
	}
	return desc, nil
}

// Validate checks that the descriptor is internally consistent
func (d *SourceDescriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("source id cannot be empty")
	}
	if d.URLTemplate == "" {
		return fmt.Errorf("source %q: url template cannot be empty", d.ID)
	}
	if !strings.HasPrefix(d.URLTemplate, "http://") && !strings.HasPrefix(d.URLTemplate, "https://") {
		return fmt.Errorf("source %q: url template must be http(s): %s", d.ID, d.URLTemplate)
	}
	if d.Format != config.FormatGrid && d.Format != config.FormatTable {
		return fmt.Errorf("source %q: unsupported format %q", d.ID, d.Format)
	}
	if d.ChecksumAlgorithm != "" {
		if !d.ChecksumAlgorithm.Available() {
			return fmt.Errorf("source %q: unavailable digest algorithm %q", d.ID, d.ChecksumAlgorithm)
		}
		if d.ChecksumURLTemplate == "" {
			return fmt.Errorf("source %q: checksum algorithm declared without checksum url template", d.ID)
		}
	}
	return nil
}

// URL expands the artifact endpoint template for the given version and region
func (d *SourceDescriptor) URL(version, region string) (string, error) {
	return expandTemplate(d.URLTemplate, d.ID, version, region)
}

// ChecksumURL expands the checksum endpoint template for the given version
// and region. Returns an empty string when the source declares no checksum.
func (d *SourceDescriptor) ChecksumURL(version, region string) (string, error) {
	if d.ChecksumURLTemplate == "" {
		return "", nil
	}
	return expandTemplate(d.ChecksumURLTemplate, d.ID, version, region)
}

func expandTemplate(template, id, version, region string) (string, error) {
	expanded := strings.NewReplacer(
		PlaceholderID, id,
		PlaceholderVersion, version,
		PlaceholderRegion, region,
	).Replace(template)

	// Reject templates with placeholders we do not understand so a typo
	// never reaches the network as a literal URL.
	if i := strings.IndexByte(expanded, '{'); i >= 0 {
		return "", fmt.Errorf("unresolved placeholder in url template %q", template)
	}

	return expanded, nil
}
