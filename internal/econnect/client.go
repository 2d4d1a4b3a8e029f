package econnect

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/daemonp/econnect2mqtt/internal/log"
	"github.com/daemonp/econnect2mqtt/internal/types"
)

const (
	// DefaultBaseURL is the Elmo e-Connect cloud.
	DefaultBaseURL = "https://connect.elmospa.com"
	// DefaultUserID is the panel user used when locking without one.
	DefaultUserID = "1"
)

// System describes a known vendor deployment.
type System struct {
	Name        string
	BaseURL     string
	WebLoginURL string
}

var (
	SystemEConnect = System{
		Name:        "econnect",
		BaseURL:     "https://connect.elmospa.com",
		WebLoginURL: "https://webservice.elmospa.com",
	}
	SystemMetronet = System{
		Name:        "metronet",
		BaseURL:     "https://metronet.iessonline.com",
		WebLoginURL: "https://metronet.iessonline.com",
	}
)

// LookupSystem returns a known system by name.
func LookupSystem(name string) (System, bool) {
	switch strings.ToLower(name) {
	case SystemEConnect.Name:
		return SystemEConnect, true
	case SystemMetronet.Name:
		return SystemMetronet, true
	default:
		return System{}, false
	}
}

const (
	pathLogin       = "/api/login"
	pathLock        = "/api/panel/syncLogin"
	pathUnlock      = "/api/panel/syncLogout"
	pathSendCommand = "/api/panel/syncSendCommand"
	pathSectors     = "/api/areas"
	pathInputs      = "/api/inputs"
	pathOutputs     = "/api/outputs"
	pathStatusAdv   = "/api/statusadv"
	pathStrings     = "/api/strings"
	pathUpdates     = "/api/updates"
)

// Client talks to the e-Connect cloud on behalf of a single panel account.
// A Client is safe for concurrent use, but only one caller at a time can
// hold the panel lock.
type Client struct {
	httpClient  *http.Client
	log         *log.Logger
	domain      string
	webLoginURL string

	mu        sync.RWMutex
	baseURL   string
	sessionID string
	panel     *types.PanelInfo

	descMu       sync.Mutex
	descriptions types.Descriptions
	descLoaded   bool

	lock *writeLock

	staleMu sync.Mutex
	stale   *Guard
}

// Option configures a Client.
type Option func(*Client)

// WithDomain sets the tenant domain sent at login.
func WithDomain(domain string) Option {
	return func(c *Client) { c.domain = domain }
}

// WithHTTPClient replaces the default cookie-aware HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithSessionID starts the client with an existing token.
func WithSessionID(id string) Option {
	return func(c *Client) { c.sessionID = id }
}

// WithWebLogin enables the web-form login. After the API login, the token
// is scraped from the page served by webLoginURL.
func WithWebLogin(webLoginURL string) Option {
	return func(c *Client) { c.webLoginURL = strings.TrimRight(webLoginURL, "/") }
}

// New creates a client for baseURL, or DefaultBaseURL when empty. The base
// URL must use HTTPS.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL, err := checkBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL: baseURL,
		log:     log.Nop(),
		lock:    newWriteLock(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		c.httpClient = &http.Client{Jar: jar}
	}

	return c, nil
}

// checkBaseURL requires an https URL with a host and strips trailing
// slashes.
func checkBaseURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return "", fmt.Errorf("%w: base URL %q must be an https URL", ErrValidation, raw)
	}
	return strings.TrimRight(raw, "/"), nil
}

// BaseURL returns the endpoint currently in use, which changes after a
// login redirect.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SessionID returns the current token, empty before Authenticate.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Domain returns the configured tenant domain.
func (c *Client) Domain() string {
	return c.domain
}

func (c *Client) endpoint(path string) string {
	return c.BaseURL() + path
}

// get sends params as a query string.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.URL.RawQuery = params.Encode()
	return c.do(req, endpoint)
}

// postForm sends form as an urlencoded body.
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, endpoint)
}

// do executes req and returns the body of a 2xx response. The endpoint is
// logged instead of the full URL so credentials never reach the logs.
func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	c.log.Debug("%s %s", req.Method, endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("%s %s failed: %v", req.Method, endpoint, err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debug("%s %s returned %d", req.Method, endpoint, resp.StatusCode)
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: endpoint, Body: string(body)}
	}

	return body, nil
}
