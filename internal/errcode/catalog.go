package errcode

import (
	"fmt"
	"io"
	"maps"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

type Entry struct {
	Message string `yaml:"message"`
	Hint    string `yaml:"hint"`
}

var defaultCatalog = map[Code]Entry{
	E100: {"General I/O error", "Check file permissions and disk space"},
	E101: {"File not found", "Verify the file path exists"},
	E102: {"Permission denied", "Run with appropriate permissions or check file ownership"},
	E103: {"Directory creation failed", "Check parent directory permissions and disk space"},
	E104: {"File write error", "Ensure sufficient disk space and write permissions"},
	E105: {"File read error", "Check file exists and has read permissions"},

	E200: {"HTTP request failed", "Check URL validity and server status"},
	E201: {"Connection timeout", "Check internet connection or use --timeout option"},
	E202: {"HTTP client error", "Verify URL and request parameters"},
	E203: {"HTTP server error", "Server is experiencing issues, try again later"},
	E204: {"Invalid URL", "Check URL format and protocol"},
	E205: {"SSL/TLS error", "Check SSL certificate or use --insecure flag"},

	E300: {"Configuration error", "Check configuration file syntax"},
	E301: {"Config file not found", "Create config file or specify path with --config"},
	E302: {"Invalid config format", "Validate TOML syntax in config file"},
	E303: {"Missing required config", "Add required configuration values"},
	E304: {"Invalid config value", "Check config value format and constraints"},

	E400: {"Network error", "Check internet connection and network settings"},
	E401: {"DNS resolution failed", "Check DNS settings or use IP address"},
	E402: {"Network unreachable", "Check network connectivity and routing"},
	E403: {"Connection refused", "Check if service is running and accessible"},
	E404: {"Request timeout", "Check internet connection or use --retries option"},

	E500: {"Internal error", "Report this issue with debug information"},
	E501: {"Parse error", "Check input format and syntax"},
	E502: {"Authentication error", "Check credentials and authentication method"},
	E503: {"File system error", "Check file system permissions and disk space"},
	E504: {"Data corruption", "Verify file integrity and re-download if needed"},
	E505: {"Resource exhausted", "Free up system resources or increase limits"},
}

var catalog atomic.Pointer[map[Code]Entry]

func init() {
	c := maps.Clone(defaultCatalog)
	catalog.Store(&c)
}

func lookup(c Code) Entry {
	if e, ok := (*catalog.Load())[c]; ok {
		return e
	}
	return Entry{Message: "Unknown error", Hint: "Report this issue with debug information"}
}

// Localize overlays messages and hints read from a YAML document keyed by code:
//
//	E203:
//	  message: Erreur serveur HTTP
//	  hint: Réessayez plus tard
//
// Missing fields keep their default text. Call it once, before any worker starts.
func Localize(r io.Reader) error {
	raw := map[string]Entry{}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
		return fmt.Errorf("error decoding message catalog: %w", err)
	}
	next := maps.Clone(defaultCatalog)
	for key, e := range raw {
		code, err := ParseCode(key)
		if err != nil {
			return err
		}
		cur := next[code]
		if e.Message != "" {
			cur.Message = e.Message
		}
		if e.Hint != "" {
			cur.Hint = e.Hint
		}
		next[code] = cur
	}
	catalog.Store(&next)
	return nil
}

// ResetCatalog restores the built-in English text.
func ResetCatalog() {
	c := maps.Clone(defaultCatalog)
	catalog.Store(&c)
}
