package dispatcher

import (
	"errors"
	"fmt"

	"github.com/mediafetch/mediafetch/server/internal"
)

// Kind is the stable, front-end-matchable failure category.
type Kind string

const (
	KindNoMediaFound      Kind = "no_media_found"
	KindAuthRequired      Kind = "authentication_required"
	KindUnreachable       Kind = "source_unreachable"
	KindUnsupportedSource Kind = "unsupported_source"
	KindPostProcessing    Kind = "post_processing_degraded"
	KindInternal          Kind = "internal"
)

// AcquisitionError is the tagged failure an Acquire call returns. Err keeps
// the underlying cause so errors.Is still matches the shared sentinels.
type AcquisitionError struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquisition failed (%s): %s", e.Kind, e.Detail)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

func wrapError(err error) *AcquisitionError {
	return &AcquisitionError{
		Kind:   kindOf(err),
		Detail: err.Error(),
		Err:    err,
	}
}

func kindOf(err error) Kind {
	switch {
	case errors.Is(err, internal.ErrNoMedia):
		return KindNoMediaFound
	case errors.Is(err, internal.ErrAuthRequired):
		return KindAuthRequired
	case errors.Is(err, internal.ErrUnsupportedSource):
		return KindUnsupportedSource
	case errors.Is(err, internal.ErrUnreachable):
		return KindUnreachable
	case errors.Is(err, internal.ErrPostProcessing):
		return KindPostProcessing
	default:
		return KindInternal
	}
}
