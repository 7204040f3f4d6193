package utils

import (
	"context"
	"io"
	"maps"

	"github.com/google/uuid"
)

// Job is one download: a source URL and the file it is written to.
// A Job is not modified after it is handed to the scheduler.
type Job struct {
	ID           string
	URL          string
	OutputPath   string
	Filename     string // name requested by the user, empty when derived from the URL
	Headers      map[string]string
	ExpectedSize int64 // 0 when unknown
	Resume       bool
	Force        bool
}

type JobOptions struct {
	Output    string
	OutputDir string
	Headers   map[string]string
	Size      int64
	Resume    bool
	Force     bool
}

func NewJob(link string, opts JobOptions) Job {
	return Job{
		ID:           uuid.NewString(),
		URL:          link,
		OutputPath:   ResolveOutputPath(link, opts.Output, opts.OutputDir),
		Filename:     opts.Output,
		Headers:      maps.Clone(opts.Headers),
		ExpectedSize: opts.Size,
		Resume:       opts.Resume,
		Force:        opts.Force,
	}
}

// BatchEntry is one item of a batch YAML file.
type BatchEntry struct {
	Link    string            `yaml:"link"`
	Output  string            `yaml:"op,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Size    int64             `yaml:"size,omitempty"`
}

type BatchFile struct {
	Jobs []BatchEntry `yaml:"jobs"`
}

// FetchRequest asks a source for the bytes of URL starting at Offset.
type FetchRequest struct {
	URL     string
	Headers map[string]string
	Offset  int64
}

// FetchResponse is the status and body of one request. ContentLength is -1
// when unknown. Non-2xx statuses are returned as responses, not errors.
type FetchResponse struct {
	Status        int
	ContentLength int64
	ContentRange  string
	Body          io.ReadCloser
}

// Fetcher retrieves one URL scheme. Validate checks a link before any
// request is made; Fetch returns transport failures as errors.
type Fetcher interface {
	Validate(link string) error
	Fetch(ctx context.Context, req FetchRequest) (*FetchResponse, error)
}

// Sizer is implemented by fetchers that can report the remote size without
// transferring the body. A size of -1 means the source did not say.
type Sizer interface {
	Size(ctx context.Context, req FetchRequest) (int64, error)
}
