package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/ruget/internal/errcode"
	"github.com/tanq16/ruget/internal/resume"
	"github.com/tanq16/ruget/internal/utils"
)

// transfer is the per-job state carried across attempts.
type transfer struct {
	job      utils.Job
	fetcher  utils.Fetcher
	expected int64 // total remote size, -1 until known
	requests int
	// restart makes the next attempt ignore the local file. The file is
	// only truncated once a replacement body starts arriving.
	restart bool
}

type attemptResult struct {
	written   int64
	size      int64
	requested bool
	err       *errcode.Error
}

// attempt runs one pass of ResumeCheck, Requesting and Streaming.
func (p *Pipeline) attempt(ctx context.Context, t *transfer, n int) attemptResult {
	path := t.job.OutputPath
	p.transition(t.job, StateResumeCheck)
	var offset int64
	if t.restart {
		t.restart = false
	} else if t.job.Resume || n > 0 {
		if t.job.Resume && n == 0 && !t.job.Force && t.expected < 0 {
			p.lookupSize(ctx, t)
		}
		st, err := resume.Check(path, t.expected, t.job.Force && n == 0)
		if err != nil {
			return attemptResult{err: errcode.FromFS(err, errcode.E100)}
		}
		switch st.Kind {
		case resume.AlreadyComplete:
			log.Debug().Str("op", "pipeline/transfer").Msgf("%s already complete at %d bytes", path, st.Existing)
			return attemptResult{size: st.Existing}
		case resume.ResumeFrom:
			offset = st.Offset()
		case resume.RestartRequired:
			log.Debug().Str("op", "pipeline/transfer").Msgf("restarting %s: %s", path, st.Reason)
		}
	}

	resp, offset, res := p.request(ctx, t, offset)
	if resp == nil {
		return res
	}
	defer resp.Body.Close()

	p.transition(t.job, StateStreaming)
	written, serr := p.stream(ctx, path, offset, resp.Body)
	res = attemptResult{requested: true, written: written, size: offset + written, err: serr}
	if serr != nil {
		return res
	}

	switch resume.Reconcile(res.size, t.expected) {
	case resume.Short:
		res.err = errcode.Newf(errcode.E400, "body ended at %d of %d bytes", res.size, t.expected)
	case resume.Overlong:
		t.restart = true
		res.err = errcode.Newf(errcode.E504, "received %d bytes, expected %d", res.size, t.expected)
	}
	return res
}

// lookupSize asks the fetcher for the remote size before a resume so a
// complete or oversized local file is settled without a range request.
// Failures leave t.expected unknown and the response headers decide.
func (p *Pipeline) lookupSize(ctx context.Context, t *transfer) {
	sizer, ok := t.fetcher.(utils.Sizer)
	if !ok {
		return
	}
	info, err := os.Stat(t.job.OutputPath)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return
	}
	size, err := sizer.Size(ctx, utils.FetchRequest{URL: t.job.URL, Headers: t.job.Headers})
	if err != nil {
		log.Debug().Str("op", "pipeline/transfer").Err(err).Msgf("size lookup failed for %s", t.job.URL)
		return
	}
	if size >= 0 {
		log.Debug().Str("op", "pipeline/transfer").Msgf("remote size of %s is %d, local is %d", t.job.URL, size, info.Size())
		t.expected = size
	}
}

// request sends the GET for offset and checks the status. It returns the
// response ready for streaming together with the offset the body starts at,
// or a nil response and the attempt's result. A range the server cannot
// satisfy because the remote is a different size is restarted from zero
// within the same attempt.
func (p *Pipeline) request(ctx context.Context, t *transfer, offset int64) (*utils.FetchResponse, int64, attemptResult) {
	for {
		p.transition(t.job, StateRequesting)
		if offset > 0 {
			p.cfg.Reporter.Info(t.job, "resuming download", map[string]string{"offset": strconv.FormatInt(offset, 10)})
		}
		resp, err := t.fetcher.Fetch(ctx, utils.FetchRequest{URL: t.job.URL, Headers: t.job.Headers, Offset: offset})
		t.requests++
		if err != nil {
			return nil, offset, attemptResult{requested: true, err: errcode.FromTransport(err)}
		}

		switch {
		case resp.Status == http.StatusPartialContent:
			start, _, total, perr := resume.ParseContentRange(resp.ContentRange)
			if perr != nil || start != offset {
				resp.Body.Close()
				t.restart = true
				e := errcode.Newf(errcode.E504, "range response does not start at offset %d", offset).
					With("content_range", resp.ContentRange)
				return nil, offset, attemptResult{requested: true, err: e}
			}
			switch {
			case total >= 0:
				t.expected = total
			case resp.ContentLength >= 0:
				t.expected = offset + resp.ContentLength
			}
			return resp, offset, attemptResult{}
		case resp.Status == http.StatusRequestedRangeNotSatisfiable && offset > 0:
			resp.Body.Close()
			_, _, total, perr := resume.ParseContentRange(resp.ContentRange)
			if perr == nil && total >= 0 {
				t.expected = total
			}
			if t.expected == offset {
				return nil, offset, attemptResult{requested: true, size: offset}
			}
			log.Debug().Str("op", "pipeline/transfer").Msgf("server rejected offset %d for %s (remote size %d), restarting", offset, t.job.URL, t.expected)
			p.cfg.Reporter.Info(t.job, "restarting download", map[string]string{"offset": strconv.FormatInt(offset, 10), "content_range": resp.ContentRange})
			offset = 0
		case resp.Status >= 200 && resp.Status < 300:
			if offset > 0 {
				log.Debug().Str("op", "pipeline/transfer").Msgf("server ignored range for %s, restarting", t.job.URL)
				offset = 0
			}
			if resp.ContentLength >= 0 {
				t.expected = resp.ContentLength
			}
			return resp, offset, attemptResult{}
		default:
			resp.Body.Close()
			return nil, offset, attemptResult{requested: true, err: errcode.FromStatus(resp.Status)}
		}
	}
}

// stream copies body into path starting at offset. The file is synced and
// closed on every exit so a partial is always a valid prefix.
func (p *Pipeline) stream(ctx context.Context, path string, offset int64, body io.Reader) (int64, *errcode.Error) {
	f, err := openAt(path, offset)
	if err != nil {
		return 0, errcode.FromFS(err, errcode.E100)
	}

	buf := make([]byte, p.cfg.BufferSize)
	var written int64
	var streamErr *errcode.Error
	for {
		if ctx.Err() != nil {
			streamErr = errcode.Wrap(errcode.E400, ctx.Err())
			break
		}
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				streamErr = errcode.FromFS(werr, errcode.E104)
				break
			}
			written += int64(n)
			p.cfg.Metrics.AddBytes(int64(n))
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			streamErr = errcode.FromTransport(rerr)
			break
		}
	}

	if err := f.Sync(); err != nil && streamErr == nil {
		streamErr = errcode.FromFS(err, errcode.E104)
	}
	if err := f.Close(); err != nil && streamErr == nil {
		streamErr = errcode.FromFS(err, errcode.E104)
	}
	log.Debug().Str("op", "pipeline/transfer").Msgf("wrote %d bytes to %s from offset %d", written, path, offset)
	return written, streamErr
}

// openAt opens path for writing with everything past offset removed.
func openAt(path string, offset int64) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(offset); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
