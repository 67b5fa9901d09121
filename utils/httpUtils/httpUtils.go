package httpUtils

import (
	"net"
	"net/http"
	"time"
)

// DefaultHttpClient is shared by the platform clients.
var DefaultHttpClient = createHTTPClient()

func createHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = 7 * time.Second
	transport.ResponseHeaderTimeout = 15 * time.Second
	transport.MaxIdleConnsPerHost = 20
	transport.IdleConnTimeout = 5 * time.Minute

	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}
