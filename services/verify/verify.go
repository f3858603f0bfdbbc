// Package verify talks to the face-verification backend.
package verify

import (
	"context"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/evaledge/core/session"
	"github.com/trezcool/evaledge/services/rest"
)

var _ session.Verifier = (*Client)(nil)

type Client struct {
	rest *rest.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{rest: rest.NewClient(baseURL, timeout)}
}

// Verify sends a snapshot (a JPEG or PNG data URL) to be matched against the reference faces.
func (c *Client) Verify(ctx context.Context, image string) (session.VerifyResult, error) {
	var res session.VerifyResult
	if err := c.rest.PostForm(ctx, "/verify_api", url.Values{"image": {image}}, &res); err != nil {
		return session.VerifyResult{}, errors.Wrap(err, "verifying identity")
	}
	return res, nil
}
