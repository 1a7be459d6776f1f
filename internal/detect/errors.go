package detect

import "errors"

var (
	// ErrModel marks a model that raised during fit or predict. The
	// pipeline disables that model for the current tick only and
	// continues, per spec.md §4.4's failure semantics.
	ErrModel = errors.New("detect: model error")
)
