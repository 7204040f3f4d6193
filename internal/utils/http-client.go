package utils

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

type HTTPClientConfig struct {
	Timeout       time.Duration // applies to connecting and to waiting for response headers
	KATimeout     time.Duration
	ProxyURL      string
	ProxyUsername string
	ProxyPassword string
	UserAgent     string
	Headers       map[string]string
	Jar           http.CookieJar
	Netrc         *Netrc
	Insecure      bool
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type RugetHTTPClient struct {
	client *http.Client
	config HTTPClientConfig
}

func NewRugetHTTPClient(cfg HTTPClientConfig) *RugetHTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.KATimeout == 0 {
		cfg.KATimeout = 90 * time.Second
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.Timeout,
		ResponseHeaderTimeout: cfg.Timeout,
		IdleConnTimeout:       cfg.KATimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		DisableCompression:    true,
	}
	if cfg.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err == nil {
			if cfg.ProxyUsername != "" {
				if cfg.ProxyPassword != "" {
					proxyURL.User = url.UserPassword(cfg.ProxyUsername, cfg.ProxyPassword)
				} else {
					proxyURL.User = url.User(cfg.ProxyUsername)
				}
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			log.Warn().Str("op", "utils/http-client").Err(err).Msg("ignoring invalid proxy URL")
		}
	}
	return &RugetHTTPClient{
		client: &http.Client{
			Transport: transport,
			Jar:       cfg.Jar,
		},
		config: cfg,
	}
}

// Do applies the configured User-Agent, default headers and netrc credentials.
// Headers already present on req take precedence.
func (c *RugetHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		if c.config.UserAgent != "" {
			req.Header.Set("User-Agent", c.config.UserAgent)
		} else {
			req.Header.Set("User-Agent", ToolUserAgent)
		}
	}
	for k, v := range c.config.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	if req.Header.Get("Authorization") == "" && req.URL.User == nil {
		if m, ok := c.config.Netrc.Lookup(req.URL.Hostname()); ok {
			req.SetBasicAuth(m.Login, m.Password)
		}
	}
	return c.client.Do(req)
}
