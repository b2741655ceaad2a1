// Package rawerr holds the failure kinds shared by every stage of the
// RAW decode pipeline, so callers can branch on what went wrong instead
// of parsing messages.
package rawerr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Unknown Kind = iota
	UnreadableFile
	UnsupportedFormat
	CorruptData
	MalformedCFA
	InvalidParameter
	DecodeFailure
)

var kindNames = map[Kind]string{
	Unknown:           "unknown",
	UnreadableFile:    "unreadable file",
	UnsupportedFormat: "unsupported format",
	CorruptData:       "corrupt data",
	MalformedCFA:      "malformed CFA",
	InvalidParameter:  "invalid parameter",
	DecodeFailure:     "decode failure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// An Error is a classified failure. Op names the operation that failed
// (e.g. "rawfile.ReadFile"), Err is the underlying cause, if any.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Sentinels, for use with errors.Is. They match any *Error of the same Kind.
var (
	ErrUnreadableFile    = &Error{Kind: UnreadableFile}
	ErrUnsupportedFormat = &Error{Kind: UnsupportedFormat}
	ErrCorruptData       = &Error{Kind: CorruptData}
	ErrMalformedCFA      = &Error{Kind: MalformedCFA}
	ErrInvalidParameter  = &Error{Kind: InvalidParameter}
	ErrDecodeFailure     = &Error{Kind: DecodeFailure}
)

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind, so errors.Is(err, ErrCorruptData) works however
// deeply the classified error has been wrapped.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error with a formatted cause. %w in the
// format is honoured.
func Errorf(kind Kind, op string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the outermost classified error in err's
// chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Wrap classifies err as kind, unless it already carries a Kind, in which
// case the existing classification is kept and only the op is added.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	if k := KindOf(err); k != Unknown {
		return &Error{Kind: k, Op: op, Err: err}
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
