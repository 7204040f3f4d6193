package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tanq16/ruget/internal/config"
	"github.com/tanq16/ruget/internal/errcode"
	"github.com/tanq16/ruget/internal/output"
	"github.com/tanq16/ruget/internal/utils"
)

var RugetVersion = "dev"

const (
	exitOK          = 0
	exitJobsFailed  = 1
	exitConfigError = 2
)

// exitError carries the process exit status out of a command. Errors that
// were already shown to the user are marked reported.
type exitError struct {
	code     int
	err      error
	reported bool
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ruget [URL...]",
		Short:         "ruget is a concurrent, resumable downloader with retries",
		Version:       RugetVersion,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			links := append([]string(nil), args...)
			if cfg.Input != "" {
				list, err := utils.ReadURLList(cfg.Input)
				if err != nil {
					return configFailure(cfg, errcode.FromFS(err, errcode.E105).With("path", cfg.Input))
				}
				links = append(links, list...)
			}
			if len(links) == 0 {
				return configFailure(cfg, errcode.New(errcode.E303, "no URL given, pass URLs or --input"))
			}
			if err := cfg.Validate(len(links)); err != nil {
				return configFailure(cfg, err)
			}

			opts := utils.JobOptions{
				Output:    cfg.Output,
				OutputDir: cfg.OutputDir,
				Resume:    cfg.Resume,
				Force:     cfg.Force,
			}
			jobs := make([]utils.Job, 0, len(links))
			for _, link := range links {
				jobs = append(jobs, utils.NewJob(link, opts))
			}
			return runJobs(cmd.Context(), cfg, jobs)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringP("input", "i", "", "File with one URL per line (blank lines and # comments skipped)")
	flags.StringP("output", "o", "", "Output file path (only with a single URL)")
	flags.StringP("output-dir", "P", "", "Directory for downloaded files")
	flags.StringArrayP("header", "H", []string{}, "Custom header (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	flags.BoolP("resume", "c", false, "Continue partially downloaded files")
	flags.Bool("force", false, "Discard partial or complete files and download again")
	flags.Int("retries", 3, "Retries after the first attempt for retryable failures")
	flags.IntP("jobs", "j", 0, "Concurrent downloads (0 uses one per CPU)")
	flags.Int64("backoff-base", 100, "Initial backoff in milliseconds")
	flags.Float64("backoff-factor", 2, "Backoff multiplier per attempt")
	flags.Int64("max-backoff", 60000, "Backoff cap in milliseconds")
	flags.Int64("timeout", 30000, "Connect and response-header timeout in milliseconds")
	flags.StringP("user-agent", "a", utils.ToolUserAgent, "User agent ('randomize' picks a browser agent)")
	flags.StringP("proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	flags.Bool("insecure", false, "Skip TLS certificate verification")
	flags.BoolP("verbose", "v", false, "Show every attempt and retry")
	flags.BoolP("quiet", "q", false, "Only show failures")
	flags.String("log", utils.DefaultFailureLog, "Append terminal failures to this file (empty disables)")
	flags.Bool("log-json", false, "Write records as JSON lines")
	flags.String("load-cookies", "", "Load cookies from a Netscape cookie file")
	flags.String("save-cookies", "", "Save cookies to a Netscape cookie file after the run")
	flags.Bool("keep-session-cookies", false, "Also save session cookies")
	flags.Bool("no-netrc", false, "Do not read credentials from ~/.netrc")
	flags.String("metrics-file", "", "Write Prometheus metrics to this file after the run")
	flags.String("messages", "", "YAML file overriding error messages and hints")
	flags.String("config", "", "Config file (default ~/.rugetrc)")
	flags.String("aws-profile", "", "AWS profile for s3:// URLs")
	flags.String("aws-region", "", "AWS region for s3:// URLs")
	flags.String("s3-endpoint", "", "Endpoint for S3-compatible stores (path-style addressing)")
	flags.Bool("debug", false, "Enable debug logging")

	cmd.AddCommand(newBatchCmd())
	cmd.AddCommand(newInitCmd())
	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, configFailure(nil, err)
	}
	utils.InitLogger(cfg.Debug, cfg.Quiet)
	return cfg, nil
}

// configFailure reports err through a reporter shaped by cfg, which may be
// nil when the configuration itself could not be loaded.
func configFailure(cfg *config.Config, err error) error {
	e, ok := errcode.As(err)
	if !ok {
		e = errcode.Wrap(errcode.E300, err)
	}
	opts := output.Options{}
	if cfg != nil {
		opts.JSON = cfg.LogJSON
	}
	output.NewReporter(opts).Config(e)
	return &exitError{code: exitConfigError, err: e, reported: true}
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if !ee.reported && ee.err != nil {
			output.PrintError(ee.err.Error())
		}
		return ee.code
	}
	// flag and argument errors from cobra
	output.PrintError(err.Error())
	return exitConfigError
}
