// Package executor talks to the code-execution backend.
package executor

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/evaledge/core"
	"github.com/trezcool/evaledge/core/exam"
	"github.com/trezcool/evaledge/services/rest"
)

type Client struct {
	rest *rest.Client
}

var _ exam.Backend = (*Client)(nil)

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{rest: rest.NewClient(baseURL, timeout)}
}

func (c *Client) Problems(ctx context.Context) ([]exam.Problem, error) {
	var body struct {
		Problems []exam.Problem `json:"problems"`
	}
	if err := c.rest.GetJSON(ctx, "/api/problems", &body); err != nil {
		return nil, errors.Wrap(err, "fetching problems")
	}
	return body.Problems, nil
}

func (c *Client) Problem(ctx context.Context, id string) (exam.Problem, error) {
	var body struct {
		Problem exam.Problem `json:"problem"`
	}
	if err := c.rest.GetJSON(ctx, "/api/problems/"+url.PathEscape(id), &body); err != nil {
		if rest.IsStatus(err, http.StatusNotFound) {
			return exam.Problem{}, core.ErrNotFound
		}
		return exam.Problem{}, errors.Wrapf(err, "fetching problem %s", id)
	}
	return body.Problem, nil
}

// Execute runs the code against every test case of the problem.
func (c *Client) Execute(ctx context.Context, req exam.ExecutionRequest) (exam.ExecutionResult, error) {
	return c.run(ctx, "/api/execute", req)
}

// RunSample runs the code against the first test case only.
func (c *Client) RunSample(ctx context.Context, req exam.ExecutionRequest) (exam.ExecutionResult, error) {
	return c.run(ctx, "/api/run-sample", req)
}

func (c *Client) run(ctx context.Context, path string, req exam.ExecutionRequest) (exam.ExecutionResult, error) {
	var res exam.ExecutionResult
	err := c.rest.PostJSON(ctx, path, req, &res)
	if err == nil {
		return res, nil
	}
	// execution failures come back as a 4xx/5xx with an ExecutionResult-shaped body
	var sErr *rest.StatusError
	if errors.As(err, &sErr) && sErr.Code < http.StatusInternalServerError {
		return exam.ExecutionResult{Success: false, Error: sErr.Message}, nil
	}
	return exam.ExecutionResult{}, err
}
