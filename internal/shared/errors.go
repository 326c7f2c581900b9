package shared

import "errors"

// Kind classifies workflow failures so callers can branch without string
// matching. Every domain sentinel error carries one.
type Kind int

const (
	// KindUnknown is the zero value for unclassified errors.
	KindUnknown Kind = iota
	// KindNotFound indicates a referenced entity does not exist.
	KindNotFound
	// KindValidation indicates a malformed or incomplete request.
	KindValidation
	// KindStateConflict indicates the entity state forbids the operation.
	KindStateConflict
	// KindExternalService indicates an upstream dependency failed.
	KindExternalService
	// KindIntegrity indicates an unexpected data-store failure.
	KindIntegrity
)

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }

func (e *kindError) Unwrap() error { return e.err }

// NewError builds a classified sentinel error.
func NewError(kind Kind, msg string) error {
	return &kindError{kind: kind, err: errors.New(msg)}
}

// WithKind attaches a kind to an existing error.
func WithKind(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// KindOf walks the wrap chain and returns the first kind found.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}
