package resume

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

type Kind int

const (
	NoExistingFile Kind = iota
	ResumeFrom
	RestartRequired
	AlreadyComplete
)

func (k Kind) String() string {
	switch k {
	case NoExistingFile:
		return "no-existing-file"
	case ResumeFrom:
		return "resume"
	case RestartRequired:
		return "restart"
	case AlreadyComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// State describes what is on disk for a destination before a request is made.
// Expected is -1 when the remote size is not known yet.
type State struct {
	Kind     Kind
	Existing int64
	Expected int64
	Reason   string
}

// Offset is the byte position the next request should start at.
func (s State) Offset() int64 {
	if s.Kind == ResumeFrom {
		return s.Existing
	}
	return 0
}

var ErrInvalidContentRange = errors.New("invalid Content-Range header")

// Check inspects path against the expected total size. expected <= 0 means
// unknown. force discards any partial content.
func Check(path string, expected int64, force bool) (State, error) {
	if expected <= 0 {
		expected = -1
	}
	st := State{Expected: expected}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			st.Kind = NoExistingFile
			return st, nil
		}
		return st, fmt.Errorf("error checking destination: %w", err)
	}
	if info.IsDir() {
		return st, fmt.Errorf("destination %s is a directory", path)
	}
	st.Existing = info.Size()
	switch {
	case st.Existing == 0:
		st.Kind = NoExistingFile
	case force:
		st.Kind = RestartRequired
		st.Reason = "forced restart"
	case expected > 0 && st.Existing == expected:
		st.Kind = AlreadyComplete
	case expected > 0 && st.Existing > expected:
		st.Kind = RestartRequired
		st.Reason = fmt.Sprintf("local size %d exceeds expected %d", st.Existing, expected)
	default:
		st.Kind = ResumeFrom
	}
	return st, nil
}

// RangeHeader returns the Range value for an open-ended request from offset.
func RangeHeader(offset int64) string {
	return fmt.Sprintf("bytes=%d-", offset)
}

// ParseContentRange parses "bytes start-end/total", "bytes start-end/*" and
// the unsatisfied form "bytes */total". Unknown positions are returned as -1.
func ParseContentRange(header string) (start, end, total int64, err error) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "bytes ") {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidContentRange, header)
	}
	rangePart, totalPart, ok := strings.Cut(strings.TrimPrefix(header, "bytes "), "/")
	if !ok {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidContentRange, header)
	}

	total = -1
	if totalPart != "*" {
		total, err = strconv.ParseInt(totalPart, 10, 64)
		if err != nil || total < 0 {
			return 0, 0, 0, fmt.Errorf("%w: invalid total in %q", ErrInvalidContentRange, header)
		}
	}

	if rangePart == "*" {
		if total < 0 {
			return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidContentRange, header)
		}
		return -1, -1, total, nil
	}
	s, e, ok := strings.Cut(rangePart, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidContentRange, header)
	}
	start, err = strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: invalid start byte in %q", ErrInvalidContentRange, header)
	}
	end, err = strconv.ParseInt(e, 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: invalid end byte in %q", ErrInvalidContentRange, header)
	}
	if start < 0 || end < start || (total >= 0 && end >= total) {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidContentRange, header)
	}
	return start, end, total, nil
}

type Verdict int

const (
	Complete Verdict = iota
	Short
	Overlong
	Unverified
)

// Reconcile compares the final on-disk size with the expected total once a
// response body has been fully consumed.
func Reconcile(size, expected int64) Verdict {
	switch {
	case expected <= 0:
		return Unverified
	case size == expected:
		return Complete
	case size < expected:
		return Short
	default:
		return Overlong
	}
}
