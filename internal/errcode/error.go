package errcode

import (
	"errors"
	"fmt"
	"maps"
	"time"
)

// Error is a classified failure. Values are treated as immutable once built;
// With returns a copy.
type Error struct {
	Code    Code
	Detail  string
	Context map[string]string
	Time    time.Time
	Err     error
}

func New(code Code, detail string) *Error {
	return &Error{Code: code, Detail: detail, Time: time.Now().UTC()}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap classifies err under code, keeping it reachable through errors.Unwrap.
func Wrap(code Code, err error) *Error {
	e := New(code, "")
	if err != nil {
		e.Detail = err.Error()
		e.Err = err
	}
	return e
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Code.Message())
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Code.Message(), e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Retryable() bool {
	return e.Code.Retryable()
}

// Message is the canonical text for the code followed by the detail, if any.
func (e *Error) Message() string {
	if e.Detail == "" {
		return e.Code.Message()
	}
	return e.Code.Message() + ": " + e.Detail
}

func (e *Error) Hint() string {
	return e.Code.Hint()
}

func (e *Error) With(key, value string) *Error {
	cp := *e
	cp.Context = maps.Clone(e.Context)
	if cp.Context == nil {
		cp.Context = make(map[string]string, 1)
	}
	cp.Context[key] = value
	return &cp
}

func (e *Error) WithFields(fields map[string]string) *Error {
	cp := *e
	cp.Context = maps.Clone(e.Context)
	if cp.Context == nil {
		cp.Context = make(map[string]string, len(fields))
	}
	maps.Copy(cp.Context, fields)
	return &cp
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code carried by err, or E500 for unclassified errors.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return E500
}
