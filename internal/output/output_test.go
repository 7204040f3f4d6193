package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/ruget/internal/errcode"
	"github.com/tanq16/ruget/internal/utils"
)

var fixedTime = time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)

func fixedNow() time.Time { return fixedTime }

func testJob(url string) utils.Job {
	return utils.Job{ID: "job-1", URL: url, OutputPath: "out.bin"}
}

func TestRecordHuman(t *testing.T) {
	rec := Record{
		TS:      fixedTime,
		Level:   LevelError,
		Code:    "E203",
		Message: "HTTP server error: status 503",
		Context: map[string]string{"url": "http://a", "attempts": "4"},
	}
	assert.Equal(t, "[E203][ERROR][2024-03-01T12:30:45Z] HTTP server error: status 503 | attempts=4, url=http://a", rec.Human())

	info := Record{TS: fixedTime, Level: LevelInfo, Message: "done"}
	assert.Equal(t, "[INFO][2024-03-01T12:30:45Z] done", info.Human())
}

func TestRecordJSON(t *testing.T) {
	rec := Record{
		TS:      fixedTime,
		Level:   LevelError,
		Code:    "E404",
		Message: "Request timeout",
		Context: map[string]string{"url": "http://a"},
	}
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.JSON(), &decoded))
	assert.Equal(t, "2024-03-01T12:30:45Z", decoded["ts"])
	assert.Equal(t, "ERROR", decoded["level"])
	assert.Equal(t, "E404", decoded["code"])
	assert.Equal(t, "Request timeout", decoded["message"])
	assert.Equal(t, map[string]any{"url": "http://a"}, decoded["context"])
	assert.NotContains(t, string(rec.JSON()), "\n")

	info := Record{TS: fixedTime, Level: LevelInfo, Message: "ok"}
	decoded = nil
	require.NoError(t, json.Unmarshal(info.JSON(), &decoded))
	_, hasCode := decoded["code"]
	assert.False(t, hasCode)
	assert.Equal(t, map[string]any{}, decoded["context"])
}

func TestRecordFromError(t *testing.T) {
	e := errcode.New(errcode.E202, "status 404 Not Found").With("status", "404")
	rec := RecordFromError(e)
	assert.Equal(t, LevelError, rec.Level)
	assert.Equal(t, "E202", rec.Code)
	assert.Equal(t, "HTTP client error: status 404 Not Found", rec.Message)
	assert.Equal(t, "404", rec.Context["status"])
	assert.Equal(t, errcode.E202.Hint(), rec.Context["hint"])
	_, mutated := e.Context["hint"]
	assert.False(t, mutated)
}

func TestHumanAndJSONCarrySameContent(t *testing.T) {
	rec := RecordFromError(errcode.New(errcode.E401, "no such host").With("url", "http://x"))
	rec.TS = fixedTime
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.JSON(), &decoded))
	human := rec.Human()
	assert.Contains(t, human, decoded["code"].(string))
	assert.Contains(t, human, decoded["message"].(string))
	for k, v := range decoded["context"].(map[string]any) {
		assert.Contains(t, human, k+"="+v.(string))
	}
}

func TestReporterNormalMode(t *testing.T) {
	var console, failLog bytes.Buffer
	r := NewReporter(Options{Console: &console, FailureLog: &failLog, Now: fixedNow})

	r.Attempt(testJob("http://a"), 0, errcode.New(errcode.E203, "status 500"), time.Second)
	assert.Empty(t, console.String())

	r.Success(testJob("http://b"), 100, 100, 1)
	r.Failure(testJob("http://c"), errcode.New(errcode.E202, "status 404"), 1)

	out := console.String()
	assert.Contains(t, out, "[INFO][2024-03-01T12:30:45Z] download complete")
	assert.Contains(t, out, "[E202][ERROR]")
	assert.Contains(t, out, "url=http://c")
	assert.Equal(t, 1, strings.Count(failLog.String(), "\n"))
	assert.Contains(t, failLog.String(), "[E202][ERROR]")
	assert.Equal(t, 1, r.Failures())

	console.Reset()
	r.Summary()
	summary := console.String()
	assert.Contains(t, summary, "Completed 1 of 2")
	assert.Contains(t, summary, "Failed 1 of 2")
	assert.Contains(t, summary, "http://c")
}

func TestReporterQuietMode(t *testing.T) {
	var console bytes.Buffer
	r := NewReporter(Options{Mode: Quiet, Console: &console, Now: fixedNow})
	r.Info(testJob("http://a"), "starting", nil)
	r.Success(testJob("http://a"), 10, 10, 1)
	r.Failure(testJob("http://b"), errcode.New(errcode.E203, "status 500"), 4)
	assert.Empty(t, console.String())

	r.Summary()
	out := console.String()
	assert.NotContains(t, out, "Completed")
	assert.Contains(t, out, "Failed 1 of 2")
	assert.Contains(t, out, "http://b")
}

func TestReporterQuietModeAllSuccess(t *testing.T) {
	var console bytes.Buffer
	r := NewReporter(Options{Mode: Quiet, Console: &console, Now: fixedNow})
	r.Success(testJob("http://a"), 10, 10, 1)
	r.Summary()
	assert.Empty(t, console.String())
}

func TestReporterVerboseMode(t *testing.T) {
	var console bytes.Buffer
	r := NewReporter(Options{Mode: Verbose, Console: &console, Now: fixedNow})
	r.Info(testJob("http://a"), "starting", map[string]string{"offset": "0"})
	r.Attempt(testJob("http://a"), 1, errcode.New(errcode.E203, "status 502"), 250*time.Millisecond)
	out := console.String()
	assert.Contains(t, out, "[INFO][2024-03-01T12:30:45Z] starting")
	assert.Contains(t, out, "offset=0")
	assert.Contains(t, out, "[E203][INFO]")
	assert.Contains(t, out, "attempt=2")
	assert.Contains(t, out, "retry_in=250ms")
}

func TestReporterJSONMode(t *testing.T) {
	var console, failLog bytes.Buffer
	r := NewReporter(Options{JSON: true, Console: &console, FailureLog: &failLog, FailureLogJSON: true, Now: fixedNow})
	r.Success(testJob("http://a"), 5, 5, 1)
	r.Failure(testJob("http://b"), errcode.New(errcode.E204, "bad scheme"), 1)
	r.Summary()

	lines := strings.Split(strings.TrimSpace(console.String()), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		assert.Contains(t, rec, "ts")
		assert.Contains(t, rec, "level")
		assert.Contains(t, rec, "message")
		assert.Contains(t, rec, "context")
	}
	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &summary))
	assert.Equal(t, "summary", summary["message"])
	assert.Equal(t, "1", summary["context"].(map[string]any)["failed"])

	var logged map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(failLog.Bytes()), &logged))
	assert.Equal(t, "E204", logged["code"])
}

func TestReporterConcurrentWritesStayWhole(t *testing.T) {
	var console bytes.Buffer
	r := NewReporter(Options{Console: &console, Now: fixedNow})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 25; k++ {
				r.Success(testJob("http://a"), 1, 1, 1)
			}
		}()
	}
	wg.Wait()
	lines := strings.Split(strings.TrimSpace(console.String()), "\n")
	assert.Len(t, lines, 500)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "[INFO]"), line)
	}
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, []string{"short"}, wrapText("short", 4))
	long := strings.Repeat("a", 500)
	lines := wrapText(long, 4)
	assert.Greater(t, len(lines), 1)
	assert.Equal(t, long, strings.Join(lines, ""))
}
