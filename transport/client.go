// Package transport implements the request/response collaborator:
// a conventional JSON-over-HTTP read (fetchResource) and write
// (submitMutation) primitive. No retry logic lives here; retries are
// owned by the polling layer.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/valyala/fasthttp"
)

// StatusError carries a non-2xx HTTP response. Status codes below 500
// are domain errors and surfaced verbatim to the user; 5xx and network
// failures are absorbed by the stale-display path.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// IsDomain reports whether err is a server-side domain rejection
// (validation, closed chat) rather than a transport problem.
func IsDomain(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Code >= 400 && se.Code < 500
}

type Client struct {
	log     *slog.Logger
	base    string
	token   string
	timeout time.Duration
	hc      *fasthttp.Client
}

func NewClient(log *slog.Logger, base, token string, timeout time.Duration) *Client {
	return &Client{
		log:     log,
		base:    base,
		token:   token,
		timeout: timeout,
		hc:      &fasthttp.Client{},
	}
}

// FetchResource performs a read against the backend.
func (c *Client) FetchResource(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, fasthttp.MethodGet, path, nil)
}

// SubmitMutation performs a write. body is JSON-encoded when non-nil.
func (c *Client) SubmitMutation(ctx context.Context, method, path string, body any) ([]byte, error) {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding mutation body: %w", err)
		}
	}
	return c.do(ctx, method, path, encoded)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI(c.base + path)
	req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+c.token)
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.hc.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	// A completion landing after cancellation must be a no-op upstream.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if code := resp.StatusCode(); code < 200 || code > 299 {
		return nil, &StatusError{Code: code, Body: string(resp.Body())}
	}

	// resp.Body() is pooled, hand back a copy.
	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, nil
}
