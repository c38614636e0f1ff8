// Package httpclient provides a typed client for the
// monitoring and control API, so tooling can inspect and drive
// a running orchestrator remotely.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"digital.vasic.automation/pkg/execlog"
	"digital.vasic.automation/pkg/orchestrator"
)

// ClientOption configures a Client via functional options.
type ClientOption func(*Client)

// Client calls the monitoring API of a running orchestrator.
// Defaults match the server's defaults so callers can use
// New(url) with zero options.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client targeting the given base URL.
func New(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// WithTimeout overrides the default HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// Status fetches the full system status.
func (c *Client) Status(
	ctx context.Context,
) (orchestrator.Status, error) {
	var s orchestrator.Status
	err := c.getJSON(ctx, "/status", &s)
	return s, err
}

// Log fetches up to count execution log entries, optionally
// filtered to one level (0 means all).
func (c *Client) Log(
	ctx context.Context,
	level, count int,
) ([]execlog.Entry, error) {
	path := fmt.Sprintf(
		"/log?level=%d&count=%d", level, count,
	)
	var entries []execlog.Entry
	err := c.getJSON(ctx, path, &entries)
	return entries, err
}

// Metrics fetches the Prometheus text exposition.
func (c *Client) Metrics(
	ctx context.Context,
) (string, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.baseURL+"/metrics", nil,
	)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("metrics request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read metrics: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf(
			"metrics returned HTTP %d", resp.StatusCode,
		)
	}
	return string(data), nil
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.baseURL+"/health", nil,
	)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf(
			"health returned HTTP %d", resp.StatusCode,
		)
	}
	return nil
}

// StartSequence asks the orchestrator to run a level range.
// The boolean reports whether the transition was accepted.
func (c *Client) StartSequence(
	ctx context.Context,
	startLevel, endLevel int,
) (bool, error) {
	q := url.Values{
		"start_level": {strconv.Itoa(startLevel)},
		"end_level":   {strconv.Itoa(endLevel)},
	}
	return c.control(ctx, "start", q)
}

// StartSingle asks the orchestrator to run one level.
func (c *Client) StartSingle(
	ctx context.Context,
	level int,
) (bool, error) {
	q := url.Values{"level": {strconv.Itoa(level)}}
	return c.control(ctx, "run", q)
}

// Pause requests a pause.
func (c *Client) Pause(ctx context.Context) (bool, error) {
	return c.control(ctx, "pause", nil)
}

// Resume clears a pause.
func (c *Client) Resume(
	ctx context.Context,
) (bool, error) {
	return c.control(ctx, "resume", nil)
}

// Stop requests termination of the active run.
func (c *Client) Stop(ctx context.Context) (bool, error) {
	return c.control(ctx, "stop", nil)
}

// control posts a control action and decodes the accepted
// flag. A 409 means the transition was rejected, which is a
// result, not an error.
func (c *Client) control(
	ctx context.Context,
	action string,
	q url.Values,
) (bool, error) {
	u := c.baseURL + "/control/" + action
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, u, nil,
	)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf(
			"control %s: %w", action, err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK &&
		resp.StatusCode != http.StatusConflict {
		return false, fmt.Errorf(
			"control %s returned HTTP %d",
			action, resp.StatusCode,
		)
	}

	var body struct {
		Accepted bool `json:"accepted"`
	}
	if err := json.NewDecoder(resp.Body).
		Decode(&body); err != nil {
		return false, fmt.Errorf(
			"parse control response: %w", err,
		)
	}
	return body.Accepted, nil
}

func (c *Client) getJSON(
	ctx context.Context,
	path string,
	out any,
) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.baseURL+path, nil,
	)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf(
			"%s returned HTTP %d", path, resp.StatusCode,
		)
	}
	if err := json.NewDecoder(resp.Body).
		Decode(out); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	return nil
}
