package httpclient

import (
	"net"
	"net/http"
	"time"
)

const (
	defaultTimeout      = 15 * time.Second
	dialTimeout         = 5 * time.Second
	tlsHandshakeTimeout = 5 * time.Second
	idleConnTimeout     = 90 * time.Second
	maxIdleConnsPerHost = 4
)

// New returns a client for outbound delivery calls. A non-positive timeout
// falls back to the default. Connections are pooled per provider host.
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
		IdleConnTimeout:     idleConnTimeout,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		ForceAttemptHTTP2:   true,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
