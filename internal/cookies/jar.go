package cookies

import (
	"net"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// Record is one line of a Netscape cookie file. Expires is a Unix epoch;
// zero marks a session cookie.
type Record struct {
	Domain            string
	IncludeSubdomains bool
	Path              string
	Secure            bool
	Expires           int64
	Name              string
	Value             string
	HTTPOnly          bool
}

func (r Record) Session() bool {
	return r.Expires == 0
}

func (r Record) expired(now time.Time) bool {
	return r.Expires > 0 && r.Expires <= now.Unix()
}

type recordKey struct {
	domain string
	path   string
	name   string
}

func (r Record) key() recordKey {
	return recordKey{domain: strings.ToLower(r.Domain), path: r.Path, name: r.Name}
}

// Jar is an in-memory cookie store that implements http.CookieJar.
// It is safe for concurrent use by multiple workers.
type Jar struct {
	mu      sync.RWMutex
	records map[recordKey]Record
	header  string
	now     func() time.Time
}

func New() *Jar {
	return &Jar{
		records: make(map[recordKey]Record),
		header:  NetscapeHeader,
		now:     time.Now,
	}
}

// Set stores r, replacing any record with the same domain, path and name.
func (j *Jar) Set(r Record) {
	if r.Path == "" {
		r.Path = "/"
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records[r.key()] = r
}

func (j *Jar) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.records)
}

// Records returns a snapshot sorted by domain, then name, then path.
func (j *Jar) Records() []Record {
	j.mu.RLock()
	out := make([]Record, 0, len(j.records))
	for _, r := range j.records {
		out = append(out, r)
	}
	j.mu.RUnlock()
	sort.Slice(out, func(a, b int) bool {
		if out[a].Domain != out[b].Domain {
			return out[a].Domain < out[b].Domain
		}
		if out[a].Name != out[b].Name {
			return out[a].Name < out[b].Name
		}
		return out[a].Path < out[b].Path
	})
	return out
}

// SetCookies records Set-Cookie headers observed on a response from u.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	host := canonicalHost(u)
	if host == "" {
		return
	}
	now := j.now()
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		r := Record{
			Domain:   host,
			Path:     c.Path,
			Secure:   c.Secure,
			Name:     c.Name,
			Value:    c.Value,
			HTTPOnly: c.HttpOnly,
		}
		if c.Domain != "" {
			d := strings.ToLower(strings.TrimPrefix(c.Domain, "."))
			if !domainMatch(host, d) {
				continue
			}
			r.Domain = "." + d
			r.IncludeSubdomains = true
		}
		if r.Path == "" || !strings.HasPrefix(r.Path, "/") {
			r.Path = defaultPath(u.Path)
		}
		switch {
		case c.MaxAge < 0:
			delete(j.records, r.key())
			continue
		case c.MaxAge > 0:
			r.Expires = now.Add(time.Duration(c.MaxAge) * time.Second).Unix()
		case !c.Expires.IsZero():
			if !c.Expires.After(now) {
				delete(j.records, r.key())
				continue
			}
			r.Expires = c.Expires.Unix()
		}
		j.records[r.key()] = r
	}
}

// Cookies returns the cookies to send in a request to u.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	host := canonicalHost(u)
	if host == "" {
		return nil
	}
	reqPath := u.Path
	if reqPath == "" {
		reqPath = "/"
	}
	https := u.Scheme == "https"
	now := j.now()

	j.mu.RLock()
	var matched []Record
	for _, r := range j.records {
		if r.expired(now) || (r.Secure && !https) {
			continue
		}
		d := strings.ToLower(strings.TrimPrefix(r.Domain, "."))
		if r.IncludeSubdomains {
			if !domainMatch(host, d) {
				continue
			}
		} else if host != d {
			continue
		}
		if !pathMatch(reqPath, r.Path) {
			continue
		}
		matched = append(matched, r)
	}
	j.mu.RUnlock()

	sort.Slice(matched, func(a, b int) bool {
		if len(matched[a].Path) != len(matched[b].Path) {
			return len(matched[a].Path) > len(matched[b].Path)
		}
		return matched[a].Name < matched[b].Name
	})
	out := make([]*http.Cookie, 0, len(matched))
	for _, r := range matched {
		out = append(out, &http.Cookie{Name: r.Name, Value: r.Value})
	}
	return out
}

func canonicalHost(u *url.URL) string {
	if u == nil {
		return ""
	}
	host := u.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.TrimSuffix(host, "."))
}

func domainMatch(host, domain string) bool {
	if domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func pathMatch(reqPath, cookiePath string) bool {
	if reqPath == cookiePath {
		return true
	}
	if !strings.HasPrefix(reqPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || reqPath[len(cookiePath)] == '/'
}

func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	dir := path.Dir(p)
	if dir == "." {
		return "/"
	}
	return dir
}
