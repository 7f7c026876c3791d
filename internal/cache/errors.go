package cache

import (
	"errors"
	"fmt"

	"github.com/opencontainers/go-digest"
)

// ErrIntegrity is the sentinel for checksum verification failures. It is
// never retried and always surfaced to the caller.
var ErrIntegrity = errors.New("artifact integrity verification failed")

// IntegrityError reports a checksum mismatch for a downloaded artifact
type IntegrityError struct {
	Key      Key
	Expected digest.Digest
	Actual   digest.Digest
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%v for %s: expected %s, got %s",
		ErrIntegrity, e.Key, e.Expected, e.Actual)
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}
