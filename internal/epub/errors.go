package epub

import "errors"

// Sentinel error kinds. Every error returned by this package matches exactly
// one of them with errors.Is.
var (
	ErrInvalidZIPFile       = errors.New("invalid zip file")
	ErrCorruptEntry         = errors.New("corrupt zip entry")
	ErrDecompressionFailed  = errors.New("decompression failed")
	ErrInvalidEPUBStructure = errors.New("invalid EPUB structure")
	ErrMissingContent       = errors.New("missing content")
	ErrExtractionFailed     = errors.New("extraction failed")
	ErrXMLParsingFailed     = errors.New("XML parsing failed")
)

// Error carries the context of a failure. Kind is one of the Err* sentinels.
type Error struct {
	Kind   error
	Path   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := "epub: " + e.Kind.Error()
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind error, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func pathError(kind error, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}
