package parser

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrInvalidNumeric   = errors.New("invalid numeric field")
	ErrUnknownSource    = errors.New("unknown source")
)

// Error reports which token or key of a payload could not be parsed.
// Kind is one of the sentinel errors above.
type Error struct {
	Kind   error
	Token  string
	Reason string
}

func (e *Error) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%v: token %s: %s", e.Kind, e.Token, e.Reason)
}

func (e *Error) Unwrap() error { return e.Kind }

func malformed(token, format string, args ...interface{}) *Error {
	return &Error{Kind: ErrMalformedPayload, Token: token, Reason: fmt.Sprintf(format, args...)}
}

func invalidNumeric(key, format string, args ...interface{}) *Error {
	return &Error{Kind: ErrInvalidNumeric, Token: key, Reason: fmt.Sprintf(format, args...)}
}
