package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rugethttp "github.com/tanq16/ruget/internal/downloaders/http"
	"github.com/tanq16/ruget/internal/errcode"
	"github.com/tanq16/ruget/internal/pipeline"
	"github.com/tanq16/ruget/internal/retry"
	"github.com/tanq16/ruget/internal/utils"
)

func newPipeline() *pipeline.Pipeline {
	policy := retry.DefaultPolicy()
	policy.Rand = func() float64 { return 0 }
	client := utils.NewRugetHTTPClient(utils.HTTPClientConfig{Timeout: 5 * time.Second})
	return pipeline.New(pipeline.Config{
		Policy: policy,
		Sleep:  func(context.Context, time.Duration) error { return nil },
	}, map[string]utils.Fetcher{"http": rugethttp.NewFetcher(client)})
}

func TestMixedOutcomes(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		switch r.URL.Path {
		case "/a":
			http.Error(w, "down", http.StatusInternalServerError)
		case "/b":
			http.ServeContent(w, r, "b", time.Time{}, strings.NewReader(strings.Repeat("b", 2048)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	jobs := []utils.Job{
		{ID: "a", URL: srv.URL + "/a", OutputPath: filepath.Join(dir, "a")},
		{ID: "b", URL: srv.URL + "/b", OutputPath: filepath.Join(dir, "b")},
		{ID: "c", URL: srv.URL + "/c", OutputPath: filepath.Join(dir, "c")},
	}
	results, err := Run(context.Background(), jobs, 2, newPipeline())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a", results[0].Job.ID)
	assert.Equal(t, pipeline.RetryableFailure, results[0].Outcome.Kind)
	assert.Equal(t, errcode.E203, results[0].Outcome.Err.Code)
	assert.Equal(t, "b", results[1].Job.ID)
	assert.Equal(t, pipeline.Success, results[1].Outcome.Kind)
	assert.Equal(t, "c", results[2].Job.ID)
	assert.Equal(t, pipeline.FatalFailure, results[2].Outcome.Kind)
	assert.Equal(t, errcode.E202, results[2].Outcome.Err.Code)
	assert.Equal(t, 2, Failed(results))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"/a": 4, "/b": 1, "/c": 1}, hits)
}

type gatedRunner struct {
	active  atomic.Int32
	peak    atomic.Int32
	started atomic.Int32
}

func (g *gatedRunner) Run(ctx context.Context, job utils.Job) pipeline.Outcome {
	g.started.Add(1)
	n := g.active.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	g.active.Add(-1)
	if strings.HasSuffix(job.URL, "bad") {
		return pipeline.Outcome{Kind: pipeline.FatalFailure, Err: errcode.New(errcode.E202, "bad")}
	}
	return pipeline.Outcome{Kind: pipeline.Success, Attempts: 1}
}

func TestConcurrencyLimit(t *testing.T) {
	var jobs []utils.Job
	for i := range 20 {
		link := "http://example.com/ok"
		if i%5 == 0 {
			link = "http://example.com/bad"
		}
		jobs = append(jobs, utils.Job{URL: link, OutputPath: filepath.Join("out", string(rune('a'+i)))})
	}
	runner := &gatedRunner{}
	results, err := Run(context.Background(), jobs, 3, runner)
	require.NoError(t, err)

	assert.Equal(t, int32(20), runner.started.Load())
	assert.LessOrEqual(t, runner.peak.Load(), int32(3))
	assert.Equal(t, 4, Failed(results))
	for i, r := range results {
		assert.Equal(t, jobs[i].URL, r.Job.URL)
	}
}

func TestDuplicateDestinationRejected(t *testing.T) {
	jobs := []utils.Job{
		{URL: "http://example.com/1", OutputPath: "dl/file.bin"},
		{URL: "http://example.com/2", OutputPath: "dl/../dl/file.bin"},
	}
	runner := &gatedRunner{}
	_, err := Run(context.Background(), jobs, 2, runner)
	require.Error(t, err)
	assert.Equal(t, errcode.E304, errcode.CodeOf(err))
	assert.Equal(t, int32(0), runner.started.Load())
}

func TestNoJobs(t *testing.T) {
	results, err := Run(context.Background(), nil, 0, &gatedRunner{})
	require.NoError(t, err)
	assert.Empty(t, results)
}
