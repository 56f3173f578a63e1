package access

import (
	"net"
	"net/http"
	"time"
)

const (
	defaultConnectTimeoutConstant = 5 * time.Second
	defaultRequestTimeoutConstant = 15 * time.Second
	idleConnectionTimeoutConstant = 30 * time.Second
)

// HTTPClientConfiguration bounds how long one API call may take.
type HTTPClientConfiguration struct {
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

func (configuration HTTPClientConfiguration) sanitize() HTTPClientConfiguration {
	sanitized := configuration
	if sanitized.ConnectTimeout <= 0 {
		sanitized.ConnectTimeout = defaultConnectTimeoutConstant
	}
	if sanitized.RequestTimeout <= 0 {
		sanitized.RequestTimeout = defaultRequestTimeoutConstant
	}
	return sanitized
}

// NewTransport builds a transport whose dial and TLS handshake honor the connect timeout.
func NewTransport(configuration HTTPClientConfiguration) *http.Transport {
	sanitized := configuration.sanitize()
	dialer := &net.Dialer{Timeout: sanitized.ConnectTimeout}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   sanitized.ConnectTimeout,
		ResponseHeaderTimeout: sanitized.RequestTimeout,
		IdleConnTimeout:       idleConnectionTimeoutConstant,
	}
}

// NewHTTPClient builds a client with a connect timeout and a total request timeout.
func NewHTTPClient(configuration HTTPClientConfiguration, wrapTransport func(http.RoundTripper) http.RoundTripper) *http.Client {
	sanitized := configuration.sanitize()
	var transport http.RoundTripper = NewTransport(sanitized)
	if wrapTransport != nil {
		transport = wrapTransport(transport)
	}
	return &http.Client{Timeout: sanitized.RequestTimeout, Transport: transport}
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (transport headerTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	clonedRequest := request.Clone(request.Context())
	for headerName, headerValue := range transport.headers {
		clonedRequest.Header.Set(headerName, headerValue)
	}
	return transport.base.RoundTrip(clonedRequest)
}
