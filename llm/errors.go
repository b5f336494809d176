package llm

import "errors"

// Error taxonomy for the query pipeline. Components wrap these sentinels with
// fmt.Errorf("...: %w", ...) so callers can discriminate with errors.Is while
// logs keep the full detail.
var (
	// ErrConfiguration marks invalid configuration (bad chunk sizes, unknown
	// provider). Fatal at startup, detected before any I/O.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrMalformedReformulation means the reformulation model's output did
	// not parse even after repair. Not retried: the defect is reproducible.
	ErrMalformedReformulation = errors.New("malformed reformulation output")

	// ErrMalformedAnswer means the answer model's output did not parse even
	// after repair. Recovered locally by degrading to a raw-text answer.
	ErrMalformedAnswer = errors.New("malformed answer output")

	// ErrEmbeddingProvider marks an embedding provider failure after the
	// gateway's single retry.
	ErrEmbeddingProvider = errors.New("embedding provider failure")

	// ErrRerankProvider marks a reranker failure.
	ErrRerankProvider = errors.New("rerank provider failure")

	// ErrIndexUnavailable marks a vector index connection or protocol
	// failure.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrRetrievalTimeout marks a bounded wait exceeded during retrieval. It
	// is never silently treated as an empty result.
	ErrRetrievalTimeout = errors.New("retrieval timed out")
)
