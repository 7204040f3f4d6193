package errcode

import "fmt"

// Code is a numeric error identifier rendered as E###.
type Code int

const (
	E100 Code = 100 // general I/O
	E101 Code = 101
	E102 Code = 102
	E103 Code = 103
	E104 Code = 104
	E105 Code = 105

	E200 Code = 200 // HTTP
	E201 Code = 201
	E202 Code = 202
	E203 Code = 203
	E204 Code = 204
	E205 Code = 205

	E300 Code = 300 // configuration
	E301 Code = 301
	E302 Code = 302
	E303 Code = 303
	E304 Code = 304

	E400 Code = 400 // network
	E401 Code = 401
	E402 Code = 402
	E403 Code = 403
	E404 Code = 404

	E500 Code = 500 // internal
	E501 Code = 501
	E502 Code = 502
	E503 Code = 503
	E504 Code = 504
	E505 Code = 505
)

type Class int

const (
	ClassUnknown Class = iota
	ClassIO
	ClassHTTP
	ClassConfig
	ClassNetwork
	ClassInternal
)

func (c Class) String() string {
	switch c {
	case ClassIO:
		return "io"
	case ClassHTTP:
		return "http"
	case ClassConfig:
		return "config"
	case ClassNetwork:
		return "network"
	case ClassInternal:
		return "internal"
	default:
		return "unknown"
	}
}

func (c Code) String() string {
	return fmt.Sprintf("E%03d", int(c))
}

func (c Code) Class() Class {
	if !c.Valid() {
		return ClassUnknown
	}
	return Class(int(c) / 100)
}

// Valid reports whether c is one of the defined codes.
func (c Code) Valid() bool {
	_, ok := defaultCatalog[c]
	return ok
}

// Retryable reports whether a failure with this code is worth another attempt.
// Timeouts, 5xx responses, network faults and body corruption are transient;
// everything else is terminal on first occurrence.
func (c Code) Retryable() bool {
	switch c {
	case E201, E203, E400, E401, E402, E403, E404, E504:
		return true
	}
	return false
}

func (c Code) Message() string {
	return lookup(c).Message
}

func (c Code) Hint() string {
	return lookup(c).Hint
}

// ParseCode accepts "E203" or "203".
func ParseCode(s string) (Code, error) {
	var n int
	if _, err := fmt.Sscanf(s, "E%d", &n); err != nil {
		if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
			return 0, fmt.Errorf("invalid error code %q", s)
		}
	}
	c := Code(n)
	if !c.Valid() {
		return 0, fmt.Errorf("unknown error code %q", s)
	}
	return c, nil
}

// All returns every defined code in ascending order.
func All() []Code {
	return []Code{
		E100, E101, E102, E103, E104, E105,
		E200, E201, E202, E203, E204, E205,
		E300, E301, E302, E303, E304,
		E400, E401, E402, E403, E404,
		E500, E501, E502, E503, E504, E505,
	}
}
