// Package client fetches challenge pages and interpreter scripts while
// presenting a browser-consistent network fingerprint: uTLS ClientHello,
// Chrome HTTP/2 SETTINGS, ordered lowercase headers, and browser-matching
// content decoding.
package client

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	utls "github.com/refraction-networking/utls"
)

// transportDefaults groups transport-layer knobs that are set once at
// construction time. Exposing them as a struct makes unit-testing easier and
// keeps NewHTTPClient's signature small.
type transportDefaults struct {
	maxIdleConns        int
	maxIdleConnsPerHost int
	maxConnsPerHost     int
}

// defaultTransport holds the tuning values used when callers do not supply
// an explicit Config. A solve round is three requests to one origin (page,
// interpreter, submission), so the pool is sized for a few dozen concurrent
// solve jobs rather than a large fleet.
var defaultTransport = transportDefaults{
	maxIdleConns:        64,
	maxIdleConnsPerHost: 16,
	maxConnsPerHost:     32,
}

// NewHTTPClient constructs a *http.Client that is safe for concurrent use.
//
// Design decisions:
//
//  1. Custom http.Transport – each solve job gets its own transport so its
//     cookies and connections never mix with another job's, which matters
//     when jobs run through different proxies against the same origin.
//
//  2. Keep-alives are enabled (DisableKeepAlives: false) so the page,
//     interpreter and submission requests of one solve reuse a single TCP
//     connection, which is also what a real browser does.
//
//  3. Connection-pool limits (MaxIdleConns / MaxIdleConnsPerHost /
//     MaxConnsPerHost) prevent a single client from exhausting OS
//     file-descriptor limits while still allowing burst parallelism.
//
//  4. IdleConnTimeout evicts stale connections from the pool so the OS can
//     reclaim sockets that were silently closed by the remote server or
//     intermediate proxies.
//
//  5. TLSHandshakeTimeout bounds the time spent on TLS negotiation, which
//     protects against servers that accept the TCP connection but never
//     complete the TLS exchange.
//
//  6. A per-client http.CookieJar carries the clearance cookies the
//     challenge flow sets between the page fetch and the submission.
//
//  7. Proxy support is optional: pass an empty string to run direct.
//
// Parameters:
//   - proxy:   optional proxy URL string, e.g. "http://host:port". Empty means direct.
//   - timeout: end-to-end request timeout passed to http.Client.Timeout.
func NewHTTPClient(proxy string, timeout time.Duration) (*http.Client, error) {
	// Build the transport first; any error here (invalid proxy URL) prevents
	// constructing an unusable client.
	transport, err := buildTransport(proxy)
	if err != nil {
		return nil, err
	}

	// The challenge flow depends on cookies surviving between requests, so
	// the jar is not optional.
	jar, err := newCookieJar()
	if err != nil {
		return nil, fmt.Errorf("client: create cookie jar: %w", err)
	}

	return &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   timeout,
		// CheckRedirect is intentionally left nil so the client follows
		// redirects automatically (up to the default limit of 10).
	}, nil
}

// NewHTTPClientWithTLS is NewHTTPClient with the TLS handshake performed by
// the uTLS dialer for helloID, so the connection presents a real browser's
// ClientHello instead of Go's.
//
// The dialer owns the handshake, which means the transport's own
// TLSClientConfig and TLSHandshakeTimeout are not consulted.  When a proxy is
// configured, HTTPS requests tunnel through CONNECT and the transport falls
// back to its standard TLS path; the browser fingerprint applies to direct
// connections.
func NewHTTPClientWithTLS(proxy string, timeout time.Duration, helloID utls.ClientHelloID) (*http.Client, error) {
	transport, err := buildTransport(proxy)
	if err != nil {
		return nil, err
	}
	transport.DialTLSContext = UTLSDialerHTTP1(helloID)
	// The uTLS dialer negotiates http/1.1 via ALPN, so do not advertise h2
	// on this transport.
	transport.ForceAttemptHTTP2 = false

	jar, err := newCookieJar()
	if err != nil {
		return nil, fmt.Errorf("client: create cookie jar: %w", err)
	}

	return &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   timeout,
	}, nil
}

// buildTransport creates an *http.Transport with carefully tuned defaults.
// If proxy is non-empty it is parsed and attached to the transport.
func buildTransport(proxy string) (*http.Transport, error) {
	t := &http.Transport{
		// Keep-alives are on by default; making this explicit documents intent.
		DisableKeepAlives: false,

		// Pool sizing – see module-level comment for rationale.
		MaxIdleConns:        defaultTransport.maxIdleConns,
		MaxIdleConnsPerHost: defaultTransport.maxIdleConnsPerHost,
		MaxConnsPerHost:     defaultTransport.maxConnsPerHost,

		// Evict idle connections after 90 s so we do not hold dead sockets.
		IdleConnTimeout: 90 * time.Second,

		// TLS handshakes that stall for more than 10 s are aborted.
		TLSHandshakeTimeout: 10 * time.Second,

		// ExpectContinueTimeout limits the time to wait for a server's
		// first response headers after sending the request headers when
		// the request body uses "Expect: 100-continue".
		ExpectContinueTimeout: 1 * time.Second,

		// DisableCompression: false (default) lets the transport request
		// gzip from the server and decompress transparently, saving bandwidth.
	}

	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("client: parse proxy URL %q: %w", proxy, err)
		}
		t.Proxy = http.ProxyURL(proxyURL)
	}

	return t, nil
}

// newCookieJar creates a cookie jar that honours the public-suffix list.
// Using cookiejar.Options with PublicSuffixList nil falls back to a basic
// implementation that is still correct for most use-cases and requires no
// external dependency.
func newCookieJar() (http.CookieJar, error) {
	// Pass nil options to use the default cookie jar behaviour.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return jar, nil
}
