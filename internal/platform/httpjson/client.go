// Package httpjson is the single outbound JSON-over-HTTPS client shared by the
// vision, text generation and speech services.
package httpjson

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	platformerrors "ar-scan-go/internal/platform/errors"
)

const maxErrorBody = 64 * 1024

var codec = sonic.ConfigStd

// Request describes one call. Body is marshalled to JSON when non-nil.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Query  url.Values
	Body   any

	// BearerToken adds "Authorization: Bearer <token>".
	BearerToken string
	// APIKey adds "key=<key>" to the query string.
	APIKey string
}

// StatusError is the cause of a KindService error.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if detail := e.Detail(); detail != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, detail)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Detail returns the vendor error message from a {"error":{"message":...}}
// envelope, or the trimmed raw body.
func (e *StatusError) Detail() string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := codec.UnmarshalFromString(e.Body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(e.Body)
}

type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New returns a client applying timeout to every call. Zero disables it.
func New(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		timeout:    timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send performs the call and decodes a 2xx body into out when out is non-nil.
func (c *Client) Send(ctx context.Context, r Request, out any) error {
	const op = "httpjson.send"

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.build(ctx, r)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ue, ok := err.(*url.Error); ok {
			ue.URL = redact(req.URL)
		}
		return platformerrors.Wrap(platformerrors.KindTransport, op, "request "+redact(req.URL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		status := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		return platformerrors.Wrap(platformerrors.KindService, op, status.Error(), status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindTransport, op, "read body", err)
	}
	if out == nil {
		return nil
	}
	if err := codec.Unmarshal(body, out); err != nil {
		return platformerrors.Wrap(platformerrors.KindParse, op, "decode body", err)
	}
	return nil
}

func (c *Client) build(ctx context.Context, r Request) (*http.Request, error) {
	const op = "httpjson.build"

	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, op, "parse url", err)
	}
	if len(r.Query) > 0 || r.APIKey != "" {
		q := u.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		if r.APIKey != "" {
			q.Set("key", r.APIKey)
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		payload, err := codec.Marshal(r.Body)
		if err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindParse, op, "encode body", err)
		}
		body = bytes.NewReader(payload)
	}

	method := r.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, op, "new request", err)
	}

	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if r.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.BearerToken)
	}
	return req, nil
}

// redact drops the query string so keys never reach logs or error text.
func redact(u *url.URL) string {
	clean := *u
	clean.RawQuery = ""
	return clean.String()
}
