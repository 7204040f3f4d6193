package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tanq16/ruget/internal/errcode"
	"github.com/tanq16/ruget/internal/utils"
)

type Mode int

const (
	Normal Mode = iota
	Quiet
	Verbose
)

type Options struct {
	Mode           Mode
	JSON           bool
	Console        io.Writer // defaults to os.Stderr
	FailureLog     io.Writer // terminal failures are appended here when set
	FailureLogJSON bool
	Now            func() time.Time
}

type failure struct {
	job    utils.Job
	record Record
}

// Reporter is the only writer to the console and failure log. All methods
// are safe for concurrent use; each record is written whole.
type Reporter struct {
	mu        sync.Mutex
	opts      Options
	start     time.Time
	succeeded int
	skipped   int
	bytes     int64
	failures  []failure
}

func NewReporter(opts Options) *Reporter {
	if opts.Console == nil {
		opts.Console = os.Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Reporter{opts: opts, start: opts.Now()}
}

func (r *Reporter) emit(rec Record) {
	fmt.Fprintln(r.opts.Console, rec.Format(r.opts.JSON))
}

func jobContext(job utils.Job) map[string]string {
	return map[string]string{
		"job":  job.ID,
		"url":  job.URL,
		"path": job.OutputPath,
	}
}

// Info writes a verbose-only informational record.
func (r *Reporter) Info(job utils.Job, message string, fields map[string]string) {
	if r.opts.Mode != Verbose {
		return
	}
	ctx := jobContext(job)
	for k, v := range fields {
		ctx[k] = v
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emit(Record{TS: r.opts.Now(), Level: LevelInfo, Message: message, Context: ctx})
}

// Attempt records a failed attempt that will be retried after delay.
// Only visible in verbose mode.
func (r *Reporter) Attempt(job utils.Job, attempt int, err *errcode.Error, delay time.Duration) {
	if r.opts.Mode != Verbose {
		return
	}
	rec := RecordFromError(err.WithFields(jobContext(job)))
	rec.Level = LevelInfo
	rec.Context["attempt"] = strconv.Itoa(attempt + 1)
	rec.Context["retry_in"] = delay.Round(time.Millisecond).String()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emit(rec)
}

// Success is the terminal record for a completed job.
func (r *Reporter) Success(job utils.Job, written, size int64, attempts int) {
	ctx := jobContext(job)
	ctx["bytes"] = strconv.FormatInt(written, 10)
	ctx["size"] = strconv.FormatInt(size, 10)
	ctx["attempts"] = strconv.Itoa(attempts)
	message := "download complete"
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succeeded++
	r.bytes += written
	if attempts == 0 {
		r.skipped++
		message = "already complete"
	}
	if r.opts.Mode == Quiet {
		return
	}
	r.emit(Record{TS: r.opts.Now(), Level: LevelInfo, Message: message, Context: ctx})
}

// Failure is the terminal record for a failed job. It is always appended to
// the failure log and shown on the console unless quiet.
func (r *Reporter) Failure(job utils.Job, err *errcode.Error, attempts int) {
	e := err.WithFields(jobContext(job)).With("attempts", strconv.Itoa(attempts))
	rec := RecordFromError(e)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, failure{job: job, record: rec})
	if r.opts.FailureLog != nil {
		fmt.Fprintln(r.opts.FailureLog, rec.Format(r.opts.FailureLogJSON))
	}
	if r.opts.Mode == Quiet {
		return
	}
	r.emit(rec)
}

// Config reports a configuration problem detected before any job runs.
func (r *Reporter) Config(err *errcode.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emit(RecordFromError(err))
}

func (r *Reporter) Failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures)
}

// Summary prints the end-of-run totals. In quiet mode only failures are listed.
func (r *Reporter) Summary() {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := r.succeeded + len(r.failures)
	elapsed := r.opts.Now().Sub(r.start)

	if r.opts.JSON {
		if r.opts.Mode == Quiet {
			for _, f := range r.failures {
				r.emit(f.record)
			}
			return
		}
		r.emit(Record{
			TS:      r.opts.Now(),
			Level:   LevelInfo,
			Message: "summary",
			Context: map[string]string{
				"total":     strconv.Itoa(total),
				"succeeded": strconv.Itoa(r.succeeded),
				"failed":    strconv.Itoa(len(r.failures)),
				"bytes":     strconv.FormatInt(r.bytes, 10),
				"elapsed":   elapsed.Round(time.Millisecond).String(),
			},
		})
		return
	}

	w := r.opts.Console
	if r.opts.Mode != Quiet {
		fmt.Fprintln(w)
		line := fmt.Sprintf("Completed %d of %d", r.succeeded, total)
		if r.skipped > 0 {
			line += fmt.Sprintf(" (%d already complete)", r.skipped)
		}
		fmt.Fprintln(w, strings.Repeat(" ", 2)+success2Style.Render(line))
		fmt.Fprintln(w, strings.Repeat(" ", 2)+debugStyle.Render(fmt.Sprintf("%s %s %s %s %s",
			utils.FormatBytes(uint64(max(r.bytes, 0))), StyleSymbols["bullet"],
			utils.FormatSpeed(r.bytes, elapsed.Seconds()), StyleSymbols["bullet"],
			elapsed.Round(time.Second))))
	}
	if len(r.failures) > 0 {
		fmt.Fprintln(w, strings.Repeat(" ", 2)+errorStyle.Render(fmt.Sprintf("Failed %d of %d", len(r.failures), total)))
		r.displayErrors(w)
	}
	if r.opts.Mode != Quiet || len(r.failures) > 0 {
		fmt.Fprintln(w)
	}
}

func (r *Reporter) displayErrors(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat(" ", 2)+errorStyle.Bold(true).Render("Errors:"))
	for i, f := range r.failures {
		fmt.Fprintf(w, "%s%s %s %s\n",
			strings.Repeat(" ", 2+2),
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			debugStyle.Render(fmt.Sprintf("[%s]", f.record.Code)),
			errorStyle.Render(f.job.URL))
		for _, line := range wrapText(f.record.Message, 2+4) {
			fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", 2+4), errorStyle.Render(line))
		}
		if hint := f.record.Context["hint"]; hint != "" {
			fmt.Fprintf(w, "%s%s %s\n", strings.Repeat(" ", 2+4), warningStyle.Render(StyleSymbols["arrow"]), debugStyle.Render(hint))
		}
	}
}
