package output

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tanq16/ruget/internal/errcode"
)

type Level string

const (
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

const timeLayout = "2006-01-02T15:04:05Z"

// Record is a single structured log entry. Human and JSON output carry the
// same fields.
type Record struct {
	TS      time.Time
	Level   Level
	Code    string
	Message string
	Context map[string]string
}

// RecordFromError builds an ERROR record; the hint travels in the context.
func RecordFromError(e *errcode.Error) Record {
	ctx := maps.Clone(e.Context)
	if ctx == nil {
		ctx = make(map[string]string)
	}
	ctx["hint"] = e.Hint()
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return Record{
		TS:      ts,
		Level:   LevelError,
		Code:    e.Code.String(),
		Message: e.Message(),
		Context: ctx,
	}
}

func (r Record) sortedKeys() []string {
	return slices.Sorted(maps.Keys(r.Context))
}

// Human renders "[CODE][LEVEL][timestamp] message | k=v, k=v".
func (r Record) Human() string {
	var b strings.Builder
	if r.Code != "" {
		fmt.Fprintf(&b, "[%s]", r.Code)
	}
	fmt.Fprintf(&b, "[%s][%s] %s", r.Level, r.TS.UTC().Format(timeLayout), r.Message)
	if len(r.Context) > 0 {
		b.WriteString(" | ")
		for i, k := range r.sortedKeys() {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%s", k, r.Context[k])
		}
	}
	return b.String()
}

// JSON renders the record as a single JSON object without a trailing newline.
func (r Record) JSON() []byte {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ev := logger.Log().
		Str("ts", r.TS.UTC().Format(time.RFC3339)).
		Str("level", string(r.Level))
	if r.Code != "" {
		ev = ev.Str("code", r.Code)
	}
	ev = ev.Str("message", r.Message)
	ctx := zerolog.Dict()
	for _, k := range r.sortedKeys() {
		ctx = ctx.Str(k, r.Context[k])
	}
	ev.Dict("context", ctx).Send()
	return bytes.TrimRight(buf.Bytes(), "\n")
}

func (r Record) Format(json bool) string {
	if json {
		return string(r.JSON())
	}
	return r.Human()
}
