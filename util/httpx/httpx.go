package httpx

import (
	"net"
	"net/http"
	"time"
)

func transport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxConnsPerHost:     100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
}

var defaultClient = &http.Client{
	Timeout:   10 * time.Second,
	Transport: transport(),
}

func Client() *http.Client { return defaultClient }

// New returns a pooled client with an overall per-request timeout. A remote
// owner call that hits the timeout is treated like any other owner error.
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		return defaultClient
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport(),
	}
}
