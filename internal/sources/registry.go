package sources

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ocha-dap/aadatakit/internal/config"
)

var (
	// ErrDuplicateSource is returned when registering a source id twice
	ErrDuplicateSource = errors.New("source already registered")

	// ErrUnknownSource is returned when resolving an unregistered source id
	ErrUnknownSource = errors.New("unknown source")
)

// Registry maintains the mapping from source identifier to SourceDescriptor
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]SourceDescriptor
}

// NewRegistry creates an empty source registry
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[string]SourceDescriptor),
	}
}

// NewRegistryFromConfig creates a registry pre-populated with the sources
// declared in the configuration
func NewRegistryFromConfig(cfg *config.Config) (*Registry, error) {
	reg := NewRegistry()
	for i := range cfg.Sources {
		desc, err := NewDescriptorFromConfig(&cfg.Sources[i])
		if err != nil {
			return nil, err
		}
		if err := reg.Register(desc); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Register adds a descriptor to the registry. The descriptor is validated
// first; registering an id twice fails with ErrDuplicateSource.
func (r *Registry) Register(desc SourceDescriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descriptors[desc.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, desc.ID)
	}

	r.descriptors[desc.ID] = desc
	return nil
}

// Resolve returns the descriptor registered under the given id, or
// ErrUnknownSource when no such source exists
func (r *Registry) Resolve(sourceID string) (SourceDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, exists := r.descriptors[sourceID]
	if !exists {
		return SourceDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
	}

	return desc, nil
}

// IDs returns the registered source identifiers. The order is unspecified.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.descriptors))
	for id := range r.descriptors {
		ids = append(ids, id)
	}
	return ids
}
