package pipeline

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/ruget/internal/errcode"
	"github.com/tanq16/ruget/internal/metrics"
	"github.com/tanq16/ruget/internal/retry"
	"github.com/tanq16/ruget/internal/utils"
)

type State int

const (
	StateInit State = iota
	StateResumeCheck
	StateRequesting
	StateStreaming
	StateDone
	StateRetrying
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateResumeCheck:
		return "resume-check"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateRetrying:
		return "retrying"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Kind int

const (
	Success Kind = iota
	RetryableFailure
	FatalFailure
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case RetryableFailure:
		return "retryable"
	case FatalFailure:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of one job. Attempts counts requests
// actually sent, so a destination found complete on disk reports zero.
// A RetryableFailure outcome means the retry budget ran out.
type Outcome struct {
	Kind         Kind
	BytesWritten int64
	FinalSize    int64
	Attempts     int
	Err          *errcode.Error
}

func (o Outcome) Failed() bool {
	return o.Kind != Success
}

// Reporter receives per-attempt and terminal records for a job.
// *output.Reporter satisfies it.
type Reporter interface {
	Info(job utils.Job, message string, fields map[string]string)
	Attempt(job utils.Job, attempt int, err *errcode.Error, delay time.Duration)
	Success(job utils.Job, written, size int64, attempts int)
	Failure(job utils.Job, err *errcode.Error, attempts int)
}

type nopReporter struct{}

func (nopReporter) Info(utils.Job, string, map[string]string) {}
func (nopReporter) Attempt(utils.Job, int, *errcode.Error, time.Duration) {}
func (nopReporter) Success(utils.Job, int64, int64, int) {}
func (nopReporter) Failure(utils.Job, *errcode.Error, int) {}

type Config struct {
	Policy     retry.Policy
	Reporter   Reporter
	Metrics    *metrics.Collector
	BufferSize int

	// Sleep waits between attempts. Defaults to retry.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnTransition, when set, observes every state change. It is called
	// from worker goroutines and must be safe for concurrent use.
	OnTransition func(job utils.Job, s State)
}

// Pipeline drives a single job through request, streaming and retry.
// It holds no per-job state and is shared by all workers.
type Pipeline struct {
	cfg      Config
	fetchers map[string]utils.Fetcher
}

// New builds a pipeline dispatching on URL scheme to fetchers.
func New(cfg Config, fetchers map[string]utils.Fetcher) *Pipeline {
	if cfg.Reporter == nil {
		cfg.Reporter = nopReporter{}
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = utils.DefaultBufferSize
	}
	if cfg.Sleep == nil {
		cfg.Sleep = retry.Sleep
	}
	normalized := make(map[string]utils.Fetcher, len(fetchers))
	for scheme, f := range fetchers {
		normalized[strings.ToLower(scheme)] = f
	}
	return &Pipeline{cfg: cfg, fetchers: normalized}
}

func (p *Pipeline) transition(job utils.Job, s State) {
	log.Debug().Str("op", "pipeline/run").Str("job", job.ID).Msgf("state %s", s)
	if p.cfg.OnTransition != nil {
		p.cfg.OnTransition(job, s)
	}
}

// Run executes job to completion and emits exactly one terminal record.
func (p *Pipeline) Run(ctx context.Context, job utils.Job) Outcome {
	done := p.cfg.Metrics.JobStarted()
	out := p.run(ctx, job)
	if out.Kind == Success {
		p.transition(job, StateDone)
		if out.Attempts == 0 {
			done(metrics.StatusSkipped)
		} else {
			done(metrics.StatusSuccess)
		}
		p.cfg.Reporter.Success(job, out.BytesWritten, out.FinalSize, out.Attempts)
		return out
	}
	p.transition(job, StateFailed)
	done(metrics.StatusFailed)
	p.cfg.Reporter.Failure(job, out.Err, out.Attempts)
	return out
}

func (p *Pipeline) run(ctx context.Context, job utils.Job) Outcome {
	p.transition(job, StateInit)
	fetcher, initErr := p.prepare(job)
	if initErr != nil {
		p.cfg.Metrics.Error(initErr.Code)
		return Outcome{Kind: FatalFailure, Err: initErr}
	}

	t := &transfer{job: job, fetcher: fetcher, expected: -1}
	if job.ExpectedSize > 0 {
		t.expected = job.ExpectedSize
	}
	var written int64
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return interrupted(written, t.requests)
		}
		res := p.attempt(ctx, t, attempt)
		written += res.written
		if res.err == nil {
			if res.requested {
				p.cfg.Metrics.Attempt(metrics.ResultSuccess)
			}
			return Outcome{Kind: Success, BytesWritten: written, FinalSize: res.size, Attempts: t.requests}
		}
		if ctx.Err() != nil {
			return interrupted(written, t.requests)
		}
		p.cfg.Metrics.Error(res.err.Code)
		if !res.err.Retryable() {
			p.cfg.Metrics.Attempt(metrics.ResultFatal)
			return Outcome{Kind: FatalFailure, BytesWritten: written, Attempts: t.requests, Err: res.err}
		}
		p.cfg.Metrics.Attempt(metrics.ResultRetryable)

		decision := p.cfg.Policy.Decide(attempt)
		if decision.GiveUp {
			return Outcome{Kind: RetryableFailure, BytesWritten: written, Attempts: t.requests, Err: res.err}
		}
		p.transition(job, StateRetrying)
		p.cfg.Reporter.Attempt(job, attempt, res.err, decision.Delay)
		if err := p.cfg.Sleep(ctx, decision.Delay); err != nil {
			return interrupted(written, t.requests)
		}
	}
}

func interrupted(written int64, attempts int) Outcome {
	err := errcode.New(errcode.E500, "download interrupted").With("reason", "interrupted")
	return Outcome{Kind: FatalFailure, BytesWritten: written, Attempts: attempts, Err: err}
}

// prepare runs the checks that need no network: a known scheme, a valid
// link, and a writable destination.
func (p *Pipeline) prepare(job utils.Job) (utils.Fetcher, *errcode.Error) {
	u, err := url.Parse(job.URL)
	if err != nil {
		return nil, errcode.Wrap(errcode.E204, err)
	}
	if u.Scheme == "" {
		return nil, errcode.Newf(errcode.E204, "missing scheme in %q", job.URL)
	}
	fetcher, ok := p.fetchers[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, errcode.Newf(errcode.E204, "unsupported scheme %q", u.Scheme)
	}
	if err := fetcher.Validate(job.URL); err != nil {
		return nil, errcode.Wrap(errcode.E204, err)
	}
	if job.OutputPath == "" {
		return nil, errcode.New(errcode.E303, "no destination path for job")
	}
	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0755); err != nil {
		return nil, errcode.FromFS(err, errcode.E103)
	}
	if err := checkWritable(job.OutputPath); err != nil {
		return nil, errcode.FromFS(err, errcode.E100).With("path", job.OutputPath)
	}
	return fetcher, nil
}

// checkWritable opens path for writing without changing its content and
// removes it again if it did not exist before.
func checkWritable(path string) error {
	_, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	f.Close()
	if statErr != nil {
		return os.Remove(path)
	}
	return nil
}
