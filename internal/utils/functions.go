package utils

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9_\-\. ]+`)

func GetRandomUserAgent() string {
	return userAgents[rand.IntN(len(userAgents))]
}

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			if key != "" {
				result[key] = value
			}
		}
	}
	return result
}

// FilenameFromURL returns the last path segment of link, or DefaultFilename.
func FilenameFromURL(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return DefaultFilename
	}
	base := path.Base(parsed.Path)
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	base = unsafeFilename.ReplaceAllString(base, "_")
	if base == "" || base == "." || base == "/" || base == ".." {
		return DefaultFilename
	}
	return base
}

// ResolveOutputPath picks the destination for link. An explicit output wins;
// relative outputs and derived names are placed under outputDir.
func ResolveOutputPath(link, output, outputDir string) string {
	name := output
	if name == "" {
		name = FilenameFromURL(link)
	}
	if outputDir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(outputDir, name)
}

// ReadURLList reads one URL per line. Blank lines and lines starting with # are ignored.
func ReadURLList(file string) ([]string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("error opening input file: %w", err)
	}
	defer f.Close()
	var links []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		links = append(links, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input file: %w", err)
	}
	return links, nil
}

func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func FormatSpeed(bytes int64, elapsed float64) string {
	if elapsed <= 0 || bytes <= 0 {
		return "0 B/s"
	}
	return FormatBytes(uint64(float64(bytes)/elapsed)) + "/s"
}
