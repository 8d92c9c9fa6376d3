package model

import "errors"

// ErrorKind classifies a pipeline failure.
type ErrorKind string

const (
	KindResolution   ErrorKind = "resolution_error"
	KindNoDomain     ErrorKind = "no_domain_found"
	KindFetch        ErrorKind = "fetch_error"
	KindExtraction   ErrorKind = "extraction_error"
	KindPersistence  ErrorKind = "persistence_error"
	KindInvalidInput ErrorKind = "invalid_input"
)

// StageError tags an underlying error with its taxonomy kind.
type StageError struct {
	Kind ErrorKind
	Err  error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err as a StageError of the given kind.
func NewStageError(kind ErrorKind, err error) *StageError {
	return &StageError{Kind: kind, Err: err}
}

// KindOf returns the kind of the first StageError in err's chain, or "" if
// there is none.
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsKind reports whether err carries a StageError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
