package rugethttp

import (
	"fmt"
	"net/url"

	"github.com/tanq16/ruget/internal/utils"
)

type HTTPFetcher struct {
	client utils.HTTPDoer
}

func NewFetcher(client utils.HTTPDoer) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Validate(link string) error {
	parsedURL, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("missing host in %q", link)
	}
	return nil
}
