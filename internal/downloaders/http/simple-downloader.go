package rugethttp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/ruget/internal/errcode"
	"github.com/tanq16/ruget/internal/resume"
	"github.com/tanq16/ruget/internal/utils"
)

// Fetch issues a single GET. When req.Offset is positive an open-ended Range
// header asks the server to continue from that byte.
func (f *HTTPFetcher) Fetch(ctx context.Context, req utils.FetchRequest) (*utils.FetchResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, errcode.Wrap(errcode.E204, fmt.Errorf("error creating GET request: %w", err))
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Offset > 0 {
		httpReq.Header.Set("Range", resume.RangeHeader(req.Offset))
		log.Debug().Str("op", "http/fetch").Msgf("resuming %s from offset %d", req.URL, req.Offset)
	}
	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error executing GET request: %w", err)
	}
	log.Debug().Str("op", "http/fetch").Int("status", resp.StatusCode).Int64("length", resp.ContentLength).Msg(req.URL)
	return &utils.FetchResponse{
		Status:        resp.StatusCode,
		ContentLength: resp.ContentLength,
		ContentRange:  resp.Header.Get("Content-Range"),
		Body:          resp.Body,
	}, nil
}

// Size sends a HEAD request and returns the advertised Content-Length, or -1
// when the server does not give one.
func (f *HTTPFetcher) Size(ctx context.Context, req utils.FetchRequest) (int64, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodHead, req.URL, nil)
	if err != nil {
		return -1, fmt.Errorf("error creating HEAD request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	resp, err := f.client.Do(httpReq)
	if err != nil {
		return -1, fmt.Errorf("error executing HEAD request: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return -1, fmt.Errorf("HEAD returned status %d", resp.StatusCode)
	}
	log.Debug().Str("op", "http/size").Int64("length", resp.ContentLength).Msg(req.URL)
	return resp.ContentLength, nil
}
