// Package httpx builds the HTTP clients used to talk to the registry and
// to download tarballs: HTTPS-enforced, size-bounded responses, and
// optional bearer/basic authentication layered on as transports.
package httpx

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"
)

// Timeout is the overall deadline for a single outgoing request.
const Timeout = 30 * time.Second

// DefaultMaxResponseSize bounds how much of a response body Fetch will
// read before giving up, protecting against a malicious or broken
// registry trying to exhaust memory.
const DefaultMaxResponseSize = 1 << 20 // 1 MiB; registry documents override this explicitly, and tarball downloads do not go through Fetch.

func protectedDialerControl(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		// Let the dial itself fail naturally; don't block on a lookup
		// failure here.
		return nil
	}
	for _, ip := range ips {
		if isPrivateOrLoopback(ip) {
			return fmt.Errorf("refusing to connect to private address %s", ip)
		}
	}
	return nil
}

func isPrivateOrLoopback(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

// validatingTransport rejects any request whose URL isn't HTTPS before
// forwarding it.
type validatingTransport struct {
	transport http.RoundTripper
}

func (t *validatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	parsed, err := url.Parse(req.URL.String())
	if err != nil {
		return nil, fmt.Errorf("malformed URL %s: %w", req.URL.String(), err)
	}
	if parsed.Scheme != "https" {
		return nil, fmt.Errorf("refusing non-HTTPS URL %s", req.URL.String())
	}
	return t.transport.RoundTrip(req)
}

type bearerTransport struct {
	transport http.RoundTripper
	token     string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	cloned.Header.Set("Authorization", "Bearer "+t.token)
	return t.transport.RoundTrip(cloned)
}

type basicAuthTransport struct {
	transport      http.RoundTripper
	user, password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	cloned.SetBasicAuth(t.user, t.password)
	return t.transport.RoundTrip(cloned)
}

// Builder is a fluent HTTP client builder.
type Builder struct {
	allowPrivate bool
	token        string
	user         string
	password     string
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) WithPrivateIPs(allow bool) *Builder {
	b.allowPrivate = allow
	return b
}

func (b *Builder) WithBearerToken(token string) *Builder {
	b.token = token
	return b
}

func (b *Builder) WithBasicAuth(user, password string) *Builder {
	b.user, b.password = user, password
	return b
}

// Build assembles the configured *http.Client.
func (b *Builder) Build() *http.Client {
	transport := &http.Transport{
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}
	if !b.allowPrivate {
		transport.DialContext = (&net.Dialer{Control: protectedDialerControl}).DialContext
	}

	var rt http.RoundTripper = &validatingTransport{transport: transport}
	if b.token != "" {
		rt = &bearerTransport{transport: rt, token: b.token}
	} else if b.user != "" {
		rt = &basicAuthTransport{transport: rt, user: b.user, password: b.password}
	}

	return &http.Client{Transport: rt, Timeout: Timeout}
}
