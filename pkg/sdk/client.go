// Package sdk provides the client-side library for the membergate daemon.
package sdk

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/covercompare/membergate/pkg/schema"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const maxAttempts = 3

// Client is a remote client for the membergate HTTP API.
// It implements the Membergate interface.
type Client struct {
	baseURL  *url.URL
	token    string
	http     *http.Client
	insecure bool
	backoff  time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithInsecureTLS accepts the daemon's self-signed certificate.
func WithInsecureTLS() Option {
	return func(c *Client) {
		c.insecure = true
		c.http.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}
}

// WithBackoff sets the base delay between retries.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// Connect returns a client for the daemon at baseURL authenticating with a bearer token.
func Connect(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		baseURL: u,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		backoff: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// do sends a request, retrying transport failures up to three times.
// HTTP error responses are returned as *APIError without a retry.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return err
		}
	}

	u := *c.baseURL
	u.Path += path
	u.RawQuery = query.Encode()

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err == nil {
			return decodeResponse(resp, out)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		log.Warn().Err(err).Int("attempt", i+1).Str("path", path).Msg("Request failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * c.backoff):
		}
	}
	return fmt.Errorf("failed after %d attempts. last error: %w", maxAttempts, lastErr)
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

func (c *Client) SetMembershipStatus(ctx context.Context, accountID, status string, note *string) (Result, error) {
	var res Result
	err := c.do(ctx, http.MethodPost, "/api/admin/membership/status", nil, map[string]any{
		"accountId": accountID,
		"status":    status,
		"note":      note,
	}, &res)
	return res, err
}

func (c *Client) ConfirmPayment(ctx context.Context, accountID, paidUntil string, note *string) (Result, error) {
	var res Result
	err := c.do(ctx, http.MethodPost, "/api/admin/membership/confirm-payment", nil, map[string]any{
		"accountId": accountID,
		"paidUntil": paidUntil,
		"note":      note,
	}, &res)
	return res, err
}

func (c *Client) Profile(ctx context.Context) (schema.Profile, error) {
	var resp struct {
		Profile schema.Profile `json:"profile"`
	}
	err := c.do(ctx, http.MethodGet, "/api/profile", nil, nil, &resp)
	return resp.Profile, err
}

func (c *Client) Banner(ctx context.Context) (schema.Banner, error) {
	var b schema.Banner
	err := c.do(ctx, http.MethodGet, "/api/profile/banner", nil, nil, &b)
	return b, err
}

func (c *Client) ListProfiles(ctx context.Context, filter string) ([]schema.Profile, error) {
	var q url.Values
	if filter != "" {
		q = url.Values{"status": {filter}}
	}
	var resp struct {
		Profiles []schema.Profile `json:"profiles"`
	}
	err := c.do(ctx, http.MethodGet, "/api/admin/profiles", q, nil, &resp)
	return resp.Profiles, err
}

func (c *Client) PublishFilter(ctx context.Context, filter string) (Result, error) {
	var res Result
	err := c.do(ctx, http.MethodPost, "/api/admin/filters", nil, schema.FilterChanged{Filter: filter}, &res)
	return res, err
}

// StreamFilters opens the filter-change websocket. The channel closes when ctx ends or the connection drops.
func (c *Client) StreamFilters(ctx context.Context) (<-chan schema.FilterChanged, error) {
	u := *c.baseURL
	u.Path += "/api/admin/filters/stream"
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}

	dialer := *websocket.DefaultDialer
	if c.insecure {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && errors.Is(err, websocket.ErrBadHandshake) {
			return nil, decodeResponse(resp, nil)
		}
		return nil, err
	}

	out := make(chan schema.FilterChanged)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(out)
		for {
			var ev schema.FilterChanged
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
