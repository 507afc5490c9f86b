package indexing

import "errors"

var (
	// Provider failures. Implementations wrap their transport errors with one of these.
	ErrProviderTransient = errors.New("embedding provider transient failure")
	ErrProviderAuth      = errors.New("embedding provider rejected credentials")
	ErrProviderInvalid   = errors.New("embedding provider rejected request")
	ErrTextTooLong       = errors.New("text exceeds embedding input limit")

	ErrEmbeddingsNotConfigured = errors.New("embeddings not configured")
	ErrDimensionMismatch       = errors.New("embedding dimension mismatch")

	ErrNoExtractor           = errors.New("no extractor registered for entity type")
	ErrExtractorTypeMismatch = errors.New("extractor received wrong entity model")

	ErrRetriesExhausted = errors.New("embedding retries exhausted")

	// ErrPermanent marks failures that redelivery cannot fix.
	ErrPermanent = errors.New("permanent indexing failure")
)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() []error { return []error{ErrPermanent, e.err} }

// Permanent wraps err so IsPermanent reports true.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
