package internal

import "errors"

// Stable error conditions shared by the adapters and the dispatcher. The
// dispatcher wraps these into its typed result; front ends match with
// errors.Is and map them to user guidance.
var (
	// The source resolved but yielded no downloadable media.
	ErrNoMedia = errors.New("no media found")

	// A required credential or authenticated session is missing.
	ErrAuthRequired = errors.New("authentication required")

	// Network or HTTP failure talking to the source.
	ErrUnreachable = errors.New("source unreachable")

	// No adapter recognized the URL and the generic engine gave up too.
	ErrUnsupportedSource = errors.New("unsupported source")

	// Artwork/tag enhancement failed; the artifacts are still valid.
	ErrPostProcessing = errors.New("post-processing degraded")

	// The platform returned fewer items than the post contains.
	ErrPartialResult = errors.New("partial result")
)
