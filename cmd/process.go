package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	u "net/url"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/ruget/internal/config"
	"github.com/tanq16/ruget/internal/cookies"
	rugethttp "github.com/tanq16/ruget/internal/downloaders/http"
	"github.com/tanq16/ruget/internal/downloaders/s3"
	"github.com/tanq16/ruget/internal/errcode"
	"github.com/tanq16/ruget/internal/metrics"
	"github.com/tanq16/ruget/internal/output"
	"github.com/tanq16/ruget/internal/pipeline"
	"github.com/tanq16/ruget/internal/scheduler"
	"github.com/tanq16/ruget/internal/utils"
)

// session is everything built from the configuration for one run.
type session struct {
	cfg        *config.Config
	reporter   *output.Reporter
	jar        *cookies.Jar
	metrics    *metrics.Collector
	pipeline   *pipeline.Pipeline
	failureLog io.Closer
}

// runJobs builds the session, runs every job on the worker pool and
// persists cookies and metrics once the pool has drained.
func runJobs(ctx context.Context, cfg *config.Config, jobs []utils.Job) error {
	s, err := newSession(cfg, os.Stderr)
	if err != nil {
		return configFailure(cfg, err)
	}
	defer s.close()

	results, err := scheduler.Run(ctx, jobs, cfg.Jobs, s.pipeline)
	if err != nil {
		return configFailure(cfg, err)
	}
	s.reporter.Summary()
	s.persist()

	if failed := scheduler.Failed(results); failed > 0 {
		return &exitError{code: exitJobsFailed, err: fmt.Errorf("%d of %d downloads failed", failed, len(results)), reported: true}
	}
	return nil
}

func newSession(cfg *config.Config, console io.Writer) (*session, error) {
	s := &session{cfg: cfg}

	if cfg.Messages != "" {
		if err := loadMessages(cfg.Messages); err != nil {
			return nil, err
		}
	}

	var failureLog io.Writer
	if cfg.Log != "" {
		f, err := os.OpenFile(cfg.Log, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, errcode.FromFS(err, errcode.E100).With("path", cfg.Log)
		}
		failureLog, s.failureLog = f, f
	}

	mode := output.Normal
	switch {
	case cfg.Quiet:
		mode = output.Quiet
	case cfg.Verbose:
		mode = output.Verbose
	}
	s.reporter = output.NewReporter(output.Options{
		Mode:           mode,
		JSON:           cfg.LogJSON,
		Console:        console,
		FailureLog:     failureLog,
		FailureLogJSON: cfg.LogJSON,
	})

	s.jar = cookies.New()
	if cfg.LoadCookies != "" {
		jar, err := cookies.Load(cfg.LoadCookies)
		if err != nil {
			log.Warn().Str("op", "cmd/process").Err(err).Msgf("continuing without cookies from %s", cfg.LoadCookies)
		}
		s.jar = jar
	}

	var netrc *utils.Netrc
	if !cfg.NoNetrc {
		netrc = loadNetrc()
	}

	if cfg.MetricsFile != "" {
		s.metrics = metrics.New("ruget")
	}

	client := utils.NewRugetHTTPClient(httpClientConfig(cfg, s.jar, netrc))
	httpFetcher := rugethttp.NewFetcher(client)
	fetchers := map[string]utils.Fetcher{
		"http":  httpFetcher,
		"https": httpFetcher,
		"s3": s3.NewFetcher(s3.Options{
			Profile:      cfg.AWSProfile,
			Region:       cfg.AWSRegion,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3Endpoint != "",
		}),
	}
	s.pipeline = pipeline.New(pipeline.Config{
		Policy:   cfg.Policy(),
		Reporter: s.reporter,
		Metrics:  s.metrics,
	}, fetchers)
	return s, nil
}

func httpClientConfig(cfg *config.Config, jar *cookies.Jar, netrc *utils.Netrc) utils.HTTPClientConfig {
	userAgent := cfg.UserAgent
	if userAgent == "randomize" {
		userAgent = utils.GetRandomUserAgent()
	}
	proxyURL, proxyUsername, proxyPassword := cfg.Proxy, "", ""
	// Check if proxy URL contains auth
	if parsedProxy, err := u.Parse(proxyURL); err == nil && parsedProxy.User != nil {
		proxyUsername = parsedProxy.User.Username()
		if password, set := parsedProxy.User.Password(); set {
			proxyPassword = password
		}
		parsedProxy.User = nil
		proxyURL = parsedProxy.String()
	}
	hc := utils.HTTPClientConfig{
		Timeout:       cfg.RequestTimeout(),
		ProxyURL:      proxyURL,
		ProxyUsername: proxyUsername,
		ProxyPassword: proxyPassword,
		UserAgent:     userAgent,
		Headers:       utils.ParseHeaderArgs(cfg.Headers),
		Netrc:         netrc,
		Insecure:      cfg.Insecure,
	}
	if jar != nil {
		hc.Jar = jar
	}
	return hc
}

func loadMessages(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errcode.FromFS(err, errcode.E105).With("path", path)
	}
	defer f.Close()
	if err := errcode.Localize(f); err != nil {
		return errcode.Wrap(errcode.E302, err).With("path", path)
	}
	return nil
}

func loadNetrc() *utils.Netrc {
	path := utils.DefaultNetrcPath()
	if path == "" {
		return nil
	}
	n, err := utils.LoadNetrc(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("op", "cmd/process").Err(err).Msgf("ignoring netrc file %s", path)
		}
		return nil
	}
	return n
}

// persist saves cookies and metrics after every job is terminal. Failures
// here do not change the run's exit status.
func (s *session) persist() {
	if s.cfg.SaveCookies != "" {
		if err := s.jar.Save(s.cfg.SaveCookies, s.cfg.KeepSessionCookies); err != nil {
			output.PrintWarning(fmt.Sprintf("could not save cookies: %v", err))
		}
	}
	if err := s.metrics.WriteFile(s.cfg.MetricsFile); err != nil {
		output.PrintWarning(fmt.Sprintf("could not write metrics: %v", err))
	}
}

func (s *session) close() {
	if s.failureLog != nil {
		s.failureLog.Close()
	}
}
