package apperrors

import "errors"

var (
	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientInput indicates a signal has no usable description or
	// citation text. Not retryable; the signal is skipped.
	ErrInsufficientInput = errors.New("signal has no usable text")

	// ErrEmbeddingUnavailable indicates the embedding provider call failed.
	// Retryable on a later pass; the signal is left unmatched.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrStoreUnavailable indicates a vector store search or upsert failed.
	ErrStoreUnavailable = errors.New("entity store unavailable")

	// ErrAssociationWriteFailed indicates a CRM association write failed for
	// one candidate. Isolated per candidate; never aborts the batch.
	ErrAssociationWriteFailed = errors.New("association write failed")

	// ErrMissingCredentials indicates required service credentials are not
	// configured. Aborts the invocation before any writes.
	ErrMissingCredentials = errors.New("missing credentials")
)
