package exam

import (
	"context"
	"sync"

	"github.com/trezcool/evaledge/core"
)

// BackendMock answers with canned problems and results and records the execution requests.
type BackendMock struct {
	ProblemList []Problem
	ProblemsErr error
	Result      ExecutionResult
	ExecErr     error

	mu       sync.Mutex
	Requests []ExecutionRequest
	Samples  []ExecutionRequest
}

var _ Backend = (*BackendMock)(nil)

func (b *BackendMock) Problems(context.Context) ([]Problem, error) {
	return b.ProblemList, b.ProblemsErr
}

func (b *BackendMock) Problem(_ context.Context, id string) (Problem, error) {
	for _, p := range b.ProblemList {
		if p.ID == id {
			return p, nil
		}
	}
	return Problem{}, core.ErrNotFound
}

func (b *BackendMock) Execute(_ context.Context, req ExecutionRequest) (ExecutionResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Requests = append(b.Requests, req)
	return b.Result, b.ExecErr
}

func (b *BackendMock) RunSample(_ context.Context, req ExecutionRequest) (ExecutionResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Samples = append(b.Samples, req)
	return b.Result, b.ExecErr
}

// SampleProblems returns two small problems with javascript and python starter code.
func SampleProblems() []Problem {
	return []Problem{
		{
			ID:          "two_sum",
			Title:       "Two Sum",
			Difficulty:  "Easy",
			Description: "Return indices of the two numbers that add up to target.",
			StarterCode: map[string]string{
				"javascript": "function solution(nums, target) {\n}",
				"python":     "def solution(nums, target):\n    pass",
			},
			TestCases: []TestCase{
				{Input: []byte(`[[2,7,11,15],9]`), Expected: []byte(`[0,1]`), Description: "Basic case"},
			},
		},
		{
			ID:          "binary_search",
			Title:       "Binary Search",
			Difficulty:  "Easy",
			Description: "Return the index of target in nums, -1 otherwise.",
			StarterCode: map[string]string{
				"javascript": "function solution(nums, target) {\n}",
				"python":     "def solution(nums, target):\n    pass",
			},
			TestCases: []TestCase{
				{Input: []byte(`[[-1,0,3,5,9,12],9]`), Expected: []byte(`4`), Description: "Found"},
			},
		},
	}
}
