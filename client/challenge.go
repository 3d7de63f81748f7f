package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// interpreterPathFmt is the orchestrate endpoint that serves the obfuscated
// VM interpreter script.  The %s segments are the challenge zone's host and
// the cH value from the page options.
const interpreterPathFmt = "/cdn-cgi/challenge-platform/h/b/orchestrate/chl_page/v1?ray=%s"

// ChallengeClient performs the three HTTP exchanges of a challenge solve:
// fetching the challenge page, fetching the interpreter script named by the
// page's options, and posting the computed answer back.  All request shaping
// (TLS hello, header order, accepted encodings) comes from the shared
// transport layer in this package.
type ChallengeClient struct {
	httpClient *http.Client
	headers    *OrderedHeader
}

// NewChallengeClient builds a client routed through proxy (empty for a
// direct connection) with Chrome request headers.
func NewChallengeClient(proxy string, timeout time.Duration) (*ChallengeClient, error) {
	httpClient, err := NewHTTPClient(proxy, timeout)
	if err != nil {
		return nil, err
	}
	return &ChallengeClient{
		httpClient: httpClient,
		headers:    ChromeOrderedHeaders(),
	}, nil
}

// FetchPage GETs rawURL and returns the decoded body.  Challenge pages are
// served with a 403 status, so the status code is reported to the caller
// rather than treated as an error.
func (c *ChallengeClient) FetchPage(ctx context.Context, rawURL string) (body string, status int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("client: build page request: %w", err)
	}
	c.headers.ApplyToRequest(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("client: fetch %q: %w", rawURL, err)
	}
	raw, err := DecodeBody(resp)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(raw), resp.StatusCode, nil
}

// FetchInterpreter GETs the VM interpreter script for the challenge
// identified by cRay from the zone at base (scheme://host).
func (c *ChallengeClient) FetchInterpreter(ctx context.Context, base, cRay string) (string, error) {
	rawURL := strings.TrimRight(base, "/") + fmt.Sprintf(interpreterPathFmt, url.QueryEscape(cRay))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("client: build interpreter request: %w", err)
	}
	c.headers.ApplyToRequest(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("client: fetch interpreter for ray %s: %w", cRay, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close() //nolint:errcheck
		return "", fmt.Errorf("client: interpreter fetch for ray %s returned %d", cRay, resp.StatusCode)
	}
	raw, err := DecodeBody(resp)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// SubmitSolution POSTs the answer form to submitPath on base and returns the
// decoded response body and status.  The caller assembles the form from the
// executed bytecode's output and the page options.
func (c *ChallengeClient) SubmitSolution(ctx context.Context, base, submitPath string, form url.Values) (string, int, error) {
	rawURL := strings.TrimRight(base, "/") + submitPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("client: build submit request: %w", err)
	}
	c.headers.ApplyToRequest(req)
	req.Header["content-type"] = []string{"application/x-www-form-urlencoded"}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("client: submit solution to %q: %w", rawURL, err)
	}
	raw, err := DecodeBody(resp)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(raw), resp.StatusCode, nil
}
