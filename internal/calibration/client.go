// Package calibration talks to the calibration service, which loads
// calibration and marker board files into the shared store and controls
// the producer services.
package calibration

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/smazurov/nectar/internal/logging"
	"github.com/smazurov/nectar/internal/version"
)

// Type tells the service how to parse a configuration file.
type Type string

// Configuration types understood by the service.
const (
	TypeProjectiveDevice Type = "pd"
	TypeMarkerBoard      Type = "mb"
)

// Service actions.
const (
	ActionStart   = "start"
	ActionStop    = "stop"
	ActionRestart = "restart"
	ActionStatus  = "status"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("calibration service: HTTP %d", e.Code)
	}
	return fmt.Sprintf("calibration service: HTTP %d: %s", e.Code, e.Body)
}

// Options configures a Client.
type Options struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
}

// Client calls the calibration service.
type Client struct {
	base *url.URL
	http *retryablehttp.Client
}

// NewClient creates a client for the service at server, e.g.
// "http://localhost:8080".
func NewClient(server string, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return nil, fmt.Errorf("calibration server %q: %w", server, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("calibration server %q: scheme and host required", server)
	}

	rc := retryablehttp.NewClient()
	rc.Logger = logging.GetLogger("calibration")
	if opts.RetryMax > 0 {
		rc.RetryMax = opts.RetryMax
	}
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	}
	return &Client{base: base, http: rc}, nil
}

// LoadConfiguration asks the service to parse file as typ and store the
// result under output (e.g. "camera0:calibration"). It returns the
// response body.
func (c *Client) LoadConfiguration(ctx context.Context, file, output string, typ Type) (string, error) {
	q := url.Values{}
	q.Set("file", file)
	q.Set("output", output)
	q.Set("type", string(typ))
	return c.get(ctx, "/nectar/load_configuration", q)
}

// Service runs action on the named producer service.
func (c *Client) Service(ctx context.Context, name, action string) (string, error) {
	if name == "" || action == "" {
		return "", fmt.Errorf("service name and action required")
	}
	p := "/nectar/service/" + url.PathEscape(name) + "/" + url.PathEscape(action)
	return c.get(ctx, p, nil)
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (string, error) {
	u := *c.base
	u.Path = c.base.Path + path
	if q != nil {
		u.RawQuery = q.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calibration service %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("calibration service %s: read body: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return string(body), nil
}
