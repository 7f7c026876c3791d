package processing

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned when an artifact's declared format is not
// recognized by the adapter
var ErrUnsupportedFormat = errors.New("unsupported artifact format")

// TransformError reports a transformation that is malformed or not
// applicable to the artifact it was requested on. It is never retried.
type TransformError struct {
	Transform string
	Format    string
	Reason    string
}

func (e *TransformError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("transformation %q not applicable to format %q: %s",
			e.Transform, e.Format, e.Reason)
	}
	return fmt.Sprintf("invalid transformation %q: %s", e.Transform, e.Reason)
}
