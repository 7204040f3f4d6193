package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/ruget/internal/errcode"
)

const Template = `# ruget configuration (TOML)
# Every key matches a long command-line flag. Flags and RUGET_* environment
# variables take precedence over this file.

# Retries after the first attempt for retryable failures
retries = 3

# Concurrent downloads, 0 uses one per CPU
jobs = 0

# Backoff between attempts, in milliseconds
backoff-base = 100
backoff-factor = 2.0
max-backoff = 60000

# Connect and response-header timeout, in milliseconds
timeout = 30000

# user-agent = "ruget/1.0"
# proxy = "http://proxy.example.com:8080"
# output-dir = "downloads"
# resume = true

# Terminal failures are appended here
log = "rustget_failures.log"
# log-json = false

# load-cookies = "cookies.txt"
# save-cookies = "cookies.txt"
# keep-session-cookies = false
# no-netrc = false

# metrics-file = "ruget.prom"
# messages = "messages.yaml"

# aws-profile = "default"
# aws-region = "us-east-1"
# s3-endpoint = "http://localhost:9000"
`

// WriteTemplate writes the commented default config to path. An existing
// file is never overwritten.
func WriteTemplate(path string) error {
	if path == "" {
		return errcode.New(errcode.E303, "no config path and no home directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errcode.FromFS(err, errcode.E103)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return errcode.Newf(errcode.E304, "config file already exists: %s", path).With("path", path)
		}
		return errcode.FromFS(err, errcode.E104)
	}
	if _, err := f.WriteString(Template); err != nil {
		f.Close()
		return errcode.FromFS(err, errcode.E104)
	}
	if err := f.Close(); err != nil {
		return errcode.FromFS(err, errcode.E104)
	}
	log.Debug().Str("op", "config/template").Msgf("wrote config template to %s", path)
	return nil
}
