package fastembed

import "errors"

var (
	// ErrUnsupportedModel is returned for model names without a known mapping.
	ErrUnsupportedModel = errors.New("fastembed: unsupported model")
	// ErrNotAvailable is returned when the binary was built without cgo.
	ErrNotAvailable = errors.New("fastembed: not available (binary built without cgo, use the tfidf or openai embedder)")
)
