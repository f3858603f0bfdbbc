// Package rest is the small JSON-over-HTTP client shared by the backend services.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/evaledge/core"
)

const maxErrorBody = 4 << 10

// StatusError is returned for every non-2xx answer.
type StatusError struct {
	Method  string
	URL     string
	Code    int
	Message string // the `error` field of the body, or the raw body
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.Code, e.Message)
}

// Public is the part of the error that can be shown to a candidate.
func (e *StatusError) Public() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Code)
}

// IsStatus reports whether the root cause of err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var sErr *StatusError
	return errors.As(err, &sErr) && sErr.Code == code
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// GetJSON GETs path and decodes the body into out (when not nil).
func (c *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

// PostJSON POSTs in as JSON (no body when nil) and decodes the answer into out (when not nil).
func (c *Client) PostJSON(ctx context.Context, path string, in, out interface{}) error {
	if in == nil {
		return c.do(ctx, http.MethodPost, path, nil, "", out)
	}
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "encoding request")
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), "application/json", out)
}

// PostForm POSTs form url-encoded and decodes the answer into out.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	u := c.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, u)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if id := core.SessionIDFrom(ctx); id != "" {
		req.Header.Set(core.SessionIDHeader, id)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, u)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(method, u, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding %s %s", method, u)
	}
	return nil
}

func newStatusError(method, u string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))

	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &StatusError{Method: method, URL: u, Code: resp.StatusCode, Message: msg}
}
