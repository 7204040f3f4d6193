package cookies

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	NetscapeHeader = "# Netscape HTTP Cookie File"
	legacyHeader   = "# HTTP Cookie File"
	httpOnlyPrefix = "#HttpOnly_"
)

var errMalformed = errors.New("malformed cookie line")

// Load reads a Netscape cookie file into a new jar. Malformed lines are
// skipped and logged.
func Load(path string) (*Jar, error) {
	j := New()
	f, err := os.Open(path)
	if err != nil {
		return j, fmt.Errorf("error opening cookie file: %w", err)
	}
	defer f.Close()
	if _, err := j.Parse(f); err != nil {
		return j, fmt.Errorf("error reading cookie file: %w", err)
	}
	return j, nil
}

// Parse merges cookie lines from r and reports how many were accepted.
func (j *Jar) Parse(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	loaded, lineNo := 0, 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if line == NetscapeHeader || line == legacyHeader {
			j.mu.Lock()
			j.header = line
			j.mu.Unlock()
			continue
		}
		rec, err := parseLine(line)
		if err != nil {
			if !errors.Is(err, errSkip) {
				log.Warn().Str("op", "cookies/netscape").Int("line", lineNo).Err(err).Msg("skipping cookie line")
			}
			continue
		}
		j.Set(rec)
		loaded++
	}
	return loaded, scanner.Err()
}

var errSkip = errors.New("comment")

func parseLine(line string) (Record, error) {
	var rec Record
	if strings.HasPrefix(line, httpOnlyPrefix) {
		rec.HTTPOnly = true
		line = strings.TrimPrefix(line, httpOnlyPrefix)
	} else if strings.HasPrefix(line, "#") {
		return rec, errSkip
	}
	fields := strings.Split(line, "\t")
	if len(fields) != 7 {
		return rec, fmt.Errorf("%w: expected 7 fields, got %d", errMalformed, len(fields))
	}
	var err error
	rec.Domain = fields[0]
	if rec.Domain == "" {
		return rec, fmt.Errorf("%w: empty domain", errMalformed)
	}
	if rec.IncludeSubdomains, err = parseFlag(fields[1]); err != nil {
		return rec, err
	}
	rec.Path = fields[2]
	if rec.Path == "" {
		rec.Path = "/"
	}
	if rec.Secure, err = parseFlag(fields[3]); err != nil {
		return rec, err
	}
	if rec.Expires, err = strconv.ParseInt(fields[4], 10, 64); err != nil {
		return rec, fmt.Errorf("%w: invalid expiry %q", errMalformed, fields[4])
	}
	rec.Name = fields[5]
	if rec.Name == "" {
		return rec, fmt.Errorf("%w: empty name", errMalformed)
	}
	rec.Value = fields[6]
	return rec, nil
}

func parseFlag(s string) (bool, error) {
	switch strings.ToUpper(s) {
	case "TRUE":
		return true, nil
	case "FALSE":
		return false, nil
	}
	return false, fmt.Errorf("%w: invalid flag %q", errMalformed, s)
}

func formatFlag(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// Encode serializes the jar. Session cookies are written only when keepSession is set.
func (j *Jar) Encode(w io.Writer, keepSession bool) error {
	j.mu.RLock()
	header := j.header
	j.mu.RUnlock()
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, header)
	fmt.Fprintln(bw, "# This file was generated by ruget. Edit at your own risk.")
	fmt.Fprintln(bw)
	for _, r := range j.Records() {
		if r.Session() && !keepSession {
			continue
		}
		domain := r.Domain
		if r.HTTPOnly {
			domain = httpOnlyPrefix + domain
		}
		fmt.Fprintf(bw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			domain, formatFlag(r.IncludeSubdomains), r.Path, formatFlag(r.Secure), r.Expires, r.Name, r.Value)
	}
	return bw.Flush()
}

// Save writes the jar to path atomically through a temp file in the same directory.
func (j *Jar) Save(path string, keepSession bool) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating cookie directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cookies-*")
	if err != nil {
		return fmt.Errorf("error creating temp cookie file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := j.Encode(tmp, keepSession); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing cookie file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("error syncing cookie file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing cookie file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("error renaming cookie file: %w", err)
	}
	log.Debug().Str("op", "cookies/netscape").Msgf("saved %d cookies to %s", j.Len(), path)
	return nil
}
