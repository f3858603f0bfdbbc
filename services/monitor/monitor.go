// Package monitor talks to the webcam-monitoring backend.
package monitor

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/evaledge/core/integrity"
	"github.com/trezcool/evaledge/core/session"
	"github.com/trezcool/evaledge/services/rest"
)

var _ session.Monitor = (*Client)(nil)

type Client struct {
	rest *rest.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{rest: rest.NewClient(baseURL, timeout)}
}

// Status reads the monitor verdict. The monitor clears `warn` once read.
func (c *Client) Status(ctx context.Context) (integrity.RemoteStatus, error) {
	var rs integrity.RemoteStatus
	if err := c.rest.GetJSON(ctx, "/status", &rs); err != nil {
		return integrity.RemoteStatus{}, errors.Wrap(err, "monitor status")
	}
	return rs, nil
}

// Ready reports whether the monitor answers its status endpoint.
func (c *Client) Ready(ctx context.Context) bool {
	_, err := c.Status(ctx)
	return err == nil
}

// Reset clears the monitor state before a session starts.
func (c *Client) Reset(ctx context.Context) error {
	return errors.Wrap(c.rest.PostJSON(ctx, "/reset", nil, nil), "monitor reset")
}
