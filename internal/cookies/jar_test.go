package cookies

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `# Netscape HTTP Cookie File
# comment line

.example.com	TRUE	/	FALSE	2000000000	persistent	p1
example.com	FALSE	/app	TRUE	0	session	s1
#HttpOnly_.example.org	TRUE	/	FALSE	2000000000	token	abc
broken line without tabs
.example.com	MAYBE	/	FALSE	0	bad	flag
.example.com	TRUE	/	FALSE	notanumber	bad	expiry
`

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestParseSkipsMalformedLines(t *testing.T) {
	j := New()
	n, err := j.Parse(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, j.Len())

	recs := j.Records()
	assert.Equal(t, ".example.com", recs[0].Domain)
	assert.Equal(t, "persistent", recs[0].Name)
	assert.True(t, recs[0].IncludeSubdomains)
	assert.Equal(t, int64(2000000000), recs[0].Expires)

	assert.Equal(t, ".example.org", recs[1].Domain)
	assert.True(t, recs[1].HTTPOnly)

	assert.Equal(t, "example.com", recs[2].Domain)
	assert.True(t, recs[2].Session())
	assert.True(t, recs[2].Secure)
	assert.Equal(t, "/app", recs[2].Path)
}

func TestRoundTripKeepsSessionCookies(t *testing.T) {
	j := New()
	_, err := j.Parse(strings.NewReader(sample))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, j.Save(path, true))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, j.Records(), loaded.Records())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), NetscapeHeader+"\n"))
	assert.Contains(t, string(data), "#HttpOnly_.example.org\tTRUE\t/\tFALSE\t2000000000\ttoken\tabc\n")
}

func TestSaveDropsSessionCookiesByDefault(t *testing.T) {
	j := New()
	_, err := j.Parse(strings.NewReader(sample))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, j.Save(path, false))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	for _, r := range loaded.Records() {
		assert.False(t, r.Session())
	}
}

func TestEncodeSortedByDomainThenName(t *testing.T) {
	j := New()
	j.Set(Record{Domain: "b.com", Path: "/", Name: "z", Value: "1", Expires: 1})
	j.Set(Record{Domain: "a.com", Path: "/", Name: "y", Value: "2", Expires: 1})
	j.Set(Record{Domain: "a.com", Path: "/", Name: "x", Value: "3", Expires: 1})

	var buf bytes.Buffer
	require.NoError(t, j.Encode(&buf, true))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	body := lines[3:]
	require.Len(t, body, 3)
	assert.True(t, strings.HasPrefix(body[0], "a.com\tFALSE\t/\tFALSE\t1\tx\t3"))
	assert.True(t, strings.HasPrefix(body[1], "a.com\tFALSE\t/\tFALSE\t1\ty\t2"))
	assert.True(t, strings.HasPrefix(body[2], "b.com"))
}

func TestLegacyHeaderPreserved(t *testing.T) {
	j := New()
	_, err := j.Parse(strings.NewReader("# HTTP Cookie File\n.a.com\tTRUE\t/\tFALSE\t0\tn\tv\n"))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, j.Encode(&buf, true))
	assert.True(t, strings.HasPrefix(buf.String(), "# HTTP Cookie File\n"))
}

func TestLastWriteWins(t *testing.T) {
	j := New()
	j.Set(Record{Domain: ".a.com", Path: "/", Name: "n", Value: "old"})
	j.Set(Record{Domain: ".a.com", Path: "/", Name: "n", Value: "new"})
	j.Set(Record{Domain: ".a.com", Path: "/other", Name: "n", Value: "separate"})
	assert.Equal(t, 2, j.Len())
	recs := j.Records()
	assert.Equal(t, "new", recs[0].Value)
}

func TestLoadMissingFile(t *testing.T) {
	j, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
	require.NotNil(t, j)
	assert.Equal(t, 0, j.Len())
}

func TestCookiesMatching(t *testing.T) {
	j := New()
	j.Set(Record{Domain: ".example.com", IncludeSubdomains: true, Path: "/", Name: "all", Value: "1"})
	j.Set(Record{Domain: "example.com", Path: "/", Name: "hostonly", Value: "2"})
	j.Set(Record{Domain: "example.com", Path: "/docs", Name: "docs", Value: "3"})
	j.Set(Record{Domain: "example.com", Path: "/", Secure: true, Name: "sec", Value: "4"})
	j.Set(Record{Domain: "example.com", Path: "/", Expires: 1, Name: "old", Value: "5"})

	names := func(cs []*http.Cookie) []string {
		var out []string
		for _, c := range cs {
			out = append(out, c.Name)
		}
		return out
	}

	assert.Equal(t, []string{"docs", "all", "hostonly"}, names(j.Cookies(mustURL(t, "http://example.com/docs/page"))))
	assert.Equal(t, []string{"all", "hostonly", "sec"}, names(j.Cookies(mustURL(t, "https://example.com/"))))
	assert.Equal(t, []string{"all"}, names(j.Cookies(mustURL(t, "http://cdn.example.com:8080/x"))))
	assert.Empty(t, j.Cookies(mustURL(t, "http://notexample.com/")))
	assert.Equal(t, []string{"all", "hostonly"}, names(j.Cookies(mustURL(t, "http://example.com/docsextra"))))
}

func TestSetCookiesFromResponse(t *testing.T) {
	j := New()
	now := time.Unix(1_700_000_000, 0)
	j.now = func() time.Time { return now }
	u := mustURL(t, "http://www.example.com/a/b")

	j.SetCookies(u, []*http.Cookie{
		{Name: "sid", Value: "abc"},
		{Name: "pref", Value: "dark", Domain: "example.com", Path: "/", MaxAge: 60},
		{Name: "evil", Value: "x", Domain: "other.com"},
		{Name: "exp", Value: "e", Expires: now.Add(time.Hour)},
	})
	recs := j.Records()
	require.Len(t, recs, 3)

	byName := map[string]Record{}
	for _, r := range recs {
		byName[r.Name] = r
	}
	assert.Equal(t, "www.example.com", byName["sid"].Domain)
	assert.Equal(t, "/a", byName["sid"].Path)
	assert.True(t, byName["sid"].Session())
	assert.Equal(t, ".example.com", byName["pref"].Domain)
	assert.Equal(t, now.Unix()+60, byName["pref"].Expires)
	assert.Equal(t, now.Add(time.Hour).Unix(), byName["exp"].Expires)

	j.SetCookies(u, []*http.Cookie{{Name: "pref", Value: "", Domain: "example.com", Path: "/", MaxAge: -1}})
	assert.Equal(t, 2, j.Len())
}

func TestJarWithHTTPClient(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("visit"); err == nil {
			seen = c.Value
		}
		http.SetCookie(w, &http.Cookie{Name: "visit", Value: "1", Path: "/"})
	}))
	defer srv.Close()

	j := New()
	client := &http.Client{Jar: j}
	resp, err := client.Get(srv.URL + "/first")
	require.NoError(t, err)
	resp.Body.Close()
	resp, err = client.Get(srv.URL + "/second")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "1", seen)
	assert.Equal(t, 1, j.Len())
}

func TestConcurrentAccess(t *testing.T) {
	j := New()
	u := mustURL(t, "http://example.com/")
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for k := 0; k < 100; k++ {
				j.SetCookies(u, []*http.Cookie{{Name: "n", Value: "v"}})
				_ = j.Cookies(u)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, j.Len())
}
