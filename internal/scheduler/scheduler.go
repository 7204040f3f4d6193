package scheduler

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/ruget/internal/errcode"
	"github.com/tanq16/ruget/internal/pipeline"
	"github.com/tanq16/ruget/internal/utils"
)

// Runner executes one job to a terminal outcome. *pipeline.Pipeline
// satisfies it.
type Runner interface {
	Run(ctx context.Context, job utils.Job) pipeline.Outcome
}

type Result struct {
	Job     utils.Job
	Outcome pipeline.Outcome
}

type indexedJob struct {
	index int
	job   utils.Job
}

// Run executes jobs on at most numWorkers goroutines and blocks until every
// job is terminal. Results are returned in input order. numWorkers <= 0
// uses one worker per CPU. Two jobs writing the same destination are
// rejected before anything starts.
func Run(ctx context.Context, jobs []utils.Job, numWorkers int, runner Runner) ([]Result, error) {
	if err := checkDestinations(jobs); err != nil {
		return nil, err
	}
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	numWorkers = min(numWorkers, max(len(jobs), 1))

	jobCh := make(chan indexedJob, len(jobs))
	for i, job := range jobs {
		jobCh <- indexedJob{index: i, job: job}
	}
	close(jobCh)

	results := make([]Result, len(jobs))
	var wg sync.WaitGroup
	for i := range numWorkers {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			processJobs(ctx, workerID, jobCh, runner, results)
		}(i)
	}
	wg.Wait()
	return results, nil
}

// processJobs handles job processing for a worker. Each worker writes only
// the result slots of the jobs it dequeued.
func processJobs(ctx context.Context, workerID int, jobCh <-chan indexedJob, runner Runner, results []Result) {
	for item := range jobCh {
		log.Debug().Str("op", "scheduler/run").Int("worker", workerID).Msgf("starting %s", item.job.URL)
		out := runner.Run(ctx, item.job)
		results[item.index] = Result{Job: item.job, Outcome: out}
		log.Debug().Str("op", "scheduler/run").Int("worker", workerID).Msgf("finished %s: %s", item.job.URL, out.Kind)
	}
}

func checkDestinations(jobs []utils.Job) error {
	seen := make(map[string]string, len(jobs))
	for _, job := range jobs {
		if job.OutputPath == "" {
			continue
		}
		key := filepath.Clean(job.OutputPath)
		if abs, err := filepath.Abs(key); err == nil {
			key = abs
		}
		if prev, ok := seen[key]; ok {
			return errcode.Newf(errcode.E304, "%s and %s both write to %s", prev, job.URL, job.OutputPath).
				With("path", job.OutputPath)
		}
		seen[key] = job.URL
	}
	return nil
}

// Failed counts results whose outcome is not a success.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Outcome.Failed() {
			n++
		}
	}
	return n
}
