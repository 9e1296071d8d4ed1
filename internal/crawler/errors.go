package crawler

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an item could not be processed.
type ErrorKind string

// Item error kinds.
const (
	KindMissingField ErrorKind = "missing_field"
	KindNetwork      ErrorKind = "network"
	KindParse        ErrorKind = "parse"
)

var (
	// ErrMissingField marks a required element that is absent from a detail page.
	ErrMissingField = errors.New("required element missing")
	// ErrObjectExists is returned by create-only blob stores when the path is taken.
	ErrObjectExists = errors.New("object already exists")
)

// ItemError is the tagged failure returned while fetching or extracting one item.
type ItemError struct {
	Kind  ErrorKind
	URL   string
	Field string
	Err   error
}

// NewItemError builds an ItemError.
func NewItemError(kind ErrorKind, url, field string, err error) *ItemError {
	return &ItemError{Kind: kind, URL: url, Field: field, Err: err}
}

func (e *ItemError) Error() string {
	msg := string(e.Kind)
	if e.Field != "" {
		msg += fmt.Sprintf(" (%s)", e.Field)
	}
	if e.URL != "" {
		msg += fmt.Sprintf(" for %s", e.URL)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from err, if it carries one.
func KindOf(err error) (ErrorKind, bool) {
	var itemErr *ItemError
	if errors.As(err, &itemErr) {
		return itemErr.Kind, true
	}
	return "", false
}
