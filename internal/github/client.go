// Package github provides a GitHub-aware HTTP client with token authentication
// and the few GitHub release endpoints krux-installer reads.
//
// Requests to GitHub hosts carry the token from GITHUB_TOKEN or GH_TOKEN when
// one is configured, which raises the API rate limit from 60 to 5,000
// requests per hour.
package github

import (
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds API calls. Archive downloads use a client without
	// a timeout and rely on context cancellation instead.
	DefaultTimeout = 30 * time.Second

	userAgent = "krux-installer"

	// hostGitHub is the main GitHub domain.
	hostGitHub = "github.com"
	// hostGitHubAPI is the GitHub API domain.
	hostGitHubAPI = "api.github.com"
	// suffixGitHub is the suffix for GitHub subdomains (e.g., uploads.github.com).
	suffixGitHub = ".github.com"
	// suffixGitHubusercontent is the suffix for GitHub content delivery domains
	// (e.g., raw.githubusercontent.com, objects.githubusercontent.com).
	suffixGitHubusercontent = ".githubusercontent.com"
)

// ClientOption configures the client built by NewHTTPClient.
type ClientOption func(*http.Client, *tokenTransport)

// WithTimeout sets the overall request timeout. Zero disables it.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *http.Client, _ *tokenTransport) {
		c.Timeout = d
	}
}

// WithTransport replaces http.DefaultTransport as the underlying transport.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(_ *http.Client, t *tokenTransport) {
		t.base = rt
	}
}

// NewHTTPClient creates an http.Client that adds an Authorization header
// to requests for GitHub hosts (api.github.com, github.com,
// *.githubusercontent.com) and a User-Agent to every request.
func NewHTTPClient(token string, opts ...ClientOption) *http.Client {
	transport := &tokenTransport{
		token: token,
		base:  http.DefaultTransport,
	}
	client := &http.Client{
		Timeout:   DefaultTimeout,
		Transport: transport,
	}
	for _, opt := range opts {
		opt(client, transport)
	}
	return client
}

// tokenTransport adds Bearer token to GitHub requests.
type tokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	addAuth := t.token != "" && isGitHubHost(req.URL.Host)
	if addAuth || req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", userAgent)
		}
		if addAuth {
			req.Header.Set("Authorization", "Bearer "+t.token)
		}
	}
	return t.base.RoundTrip(req)
}

// isGitHubHost checks if the host is a GitHub domain.
// Matches: api.github.com, github.com, raw.githubusercontent.com,
// objects.githubusercontent.com, etc.
func isGitHubHost(host string) bool {
	host = strings.ToLower(host)
	if host == hostGitHub || host == hostGitHubAPI {
		return true
	}
	if strings.HasSuffix(host, suffixGitHub) {
		return true
	}
	if strings.HasSuffix(host, suffixGitHubusercontent) {
		return true
	}
	return false
}
