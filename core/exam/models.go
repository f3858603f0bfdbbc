// Package exam holds the coding problems, the execution results and the screen model of the exam view.
package exam

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/evaledge/core"
)

// Languages the editor offers. The first one is selected by default.
var Languages = []string{"javascript", "python", "java", "cpp"}

type TestCase struct {
	Input       json.RawMessage `json:"input"`
	Expected    json.RawMessage `json:"expected"`
	Description string          `json:"description"`
}

type Problem struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Difficulty  string            `json:"difficulty"`
	Description string            `json:"description"`
	StarterCode map[string]string `json:"starter_code"`
	TestCases   []TestCase        `json:"test_cases"`
}

type TestResult struct {
	TestCase      int             `json:"testCase"`
	Input         json.RawMessage `json:"input"`
	Expected      json.RawMessage `json:"expected"`
	Actual        json.RawMessage `json:"actual"`
	Passed        bool            `json:"passed"`
	Error         string          `json:"error,omitempty"`
	ExecutionTime float64         `json:"executionTime"`
}

type ExecutionResult struct {
	Success     bool         `json:"success"`
	Results     []TestResult `json:"results"`
	Score       float64      `json:"score"`
	PassedTests int          `json:"passed_tests"`
	TotalTests  int          `json:"total_tests"`
	AllPassed   bool         `json:"all_passed"`
	Error       string       `json:"error,omitempty"`
}

// ExecutionRequest is the body of both /api/execute and /api/run-sample.
type ExecutionRequest struct {
	Code      string `json:"code" validate:"required"`
	Language  string `json:"language" validate:"required,oneof=javascript python java cpp"`
	ProblemID string `json:"problem_id" validate:"required"`
}

func (r *ExecutionRequest) Validate(validate *validator.Validate) error {
	r.Language = core.CleanString(r.Language, true /* lower */)
	r.ProblemID = core.CleanString(r.ProblemID)
	return validate.Struct(r)
}

// Backend is the code-execution service.
type Backend interface {
	Problems(ctx context.Context) ([]Problem, error)
	Problem(ctx context.Context, id string) (Problem, error)
	Execute(ctx context.Context, req ExecutionRequest) (ExecutionResult, error)
	RunSample(ctx context.Context, req ExecutionRequest) (ExecutionResult, error)
}
