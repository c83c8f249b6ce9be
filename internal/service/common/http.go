//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient returns a client that bounds dialing by connectTimeout and
// waiting for response headers by readTimeout. The overall request deadline
// is their sum when both are set.
func NewHTTPClient(connectTimeout, readTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: connectTimeout}

	//nolint:forcetypeassert // The standard library guarantees the type.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.ResponseHeaderTimeout = readTimeout

	client := &http.Client{Transport: transport}
	if connectTimeout > 0 && readTimeout > 0 {
		client.Timeout = connectTimeout + readTimeout
	}

	return client
}
