package exam

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/evaledge/core"
	"github.com/trezcool/evaledge/core/integrity"
)

const (
	TitleSessionEnded = "Session Ended"

	MsgLoading       = "Loading…"
	MsgNoProblems    = "No problems available"
	MsgOutputHint    = "// run code to see output"
	MsgFinished      = "✅ Finished."
	MsgUnavailable   = "Execution service unavailable"
	MsgWarning       = "Keep full-screen and look at the screen."
	MsgFullscreenReq = "The exam must be taken in full-screen mode."
)

var (
	ErrNoProblem = errors.New("no problem selected")
	ErrBusy      = errors.New("code is already running")
)

type ScreenKind string

const (
	ScreenLoading    ScreenKind = "loading"
	ScreenEmpty      ScreenKind = "empty"
	ScreenExam       ScreenKind = "exam"
	ScreenTerminated ScreenKind = "terminated"
)

type (
	ProblemPane struct {
		Index       int    `json:"index"` // 1-based
		Total       int    `json:"total"`
		ID          string `json:"id"`
		Title       string `json:"title"`
		Difficulty  string `json:"difficulty"`
		Description string `json:"description"`
		HasPrev     bool   `json:"has_prev"`
		HasNext     bool   `json:"has_next"`
	}

	Editor struct {
		Language    string   `json:"language"`
		Languages   []string `json:"languages"`
		StarterCode string   `json:"starter_code"`
		Executing   bool     `json:"executing"`
	}

	WarningModal struct {
		Count   int    `json:"count"`
		Max     int    `json:"max"`
		Message string `json:"message"`
	}

	FullscreenOverlay struct {
		Message string   `json:"message"`
		Actions []string `json:"actions"`
	}

	// Screen is everything the exam page renders at a given instant.
	Screen struct {
		Kind       ScreenKind         `json:"kind"`
		Title      string             `json:"title,omitempty"`
		Message    string             `json:"message,omitempty"`
		Timer      string             `json:"timer,omitempty"`
		Problem    *ProblemPane       `json:"problem,omitempty"`
		Editor     *Editor            `json:"editor,omitempty"`
		Output     string             `json:"output,omitempty"`
		Results    []TestResult       `json:"results,omitempty"`
		Warning    *WarningModal      `json:"warning,omitempty"`
		Fullscreen *FullscreenOverlay `json:"fullscreen_overlay,omitempty"`
		Actions    []string           `json:"actions,omitempty"`
	}
)

// FormatTimer renders seconds as MM:SS.
func FormatTimer(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// PublicError is a backend error whose message can be shown to the candidate.
type PublicError interface {
	error
	Public() string
}

// FormatOutput is the text of the output panel after a run.
// Errors other than PublicError are only logged: they name backend addresses.
func FormatOutput(res ExecutionResult, err error) string {
	var pErr PublicError
	switch {
	case errors.As(err, &pErr):
		return "❌ " + pErr.Public()
	case err != nil:
		return "❌ " + MsgUnavailable
	case !res.Success:
		return "❌ Execution failed: " + res.Error
	default:
		return MsgFinished
	}
}

// View is the exam page state that is not about integrity: problems, selection, editor and output.
type View struct {
	backend Backend
	logger  core.Logger

	mu        sync.Mutex
	loading   bool
	problems  []Problem
	idx       int
	lang      string
	output    string
	result    *ExecutionResult
	executing bool
}

func NewView(backend Backend, logger core.Logger) *View {
	return &View{
		backend: backend,
		logger:  logger,
		loading: true,
		lang:    Languages[0],
	}
}

// Load fetches the problems once. A failure is logged and leaves the view without problems.
func (v *View) Load(ctx context.Context) {
	problems, err := v.backend.Problems(ctx)
	if err != nil {
		v.logger.Error(fmt.Sprintf("fetching problems: %v", err), err)
		problems = nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.problems = problems
	v.idx = 0
	v.loading = false
}

// Current returns the selected problem.
func (v *View) Current() (Problem, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.idx >= len(v.problems) {
		return Problem{}, false
	}
	return v.problems[v.idx], true
}

func (v *View) Select(idx int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if idx < 0 || idx >= len(v.problems) {
		return core.NewValidationError(
			errors.New("invalid problem index"),
			core.FieldError{Field: "index", Error: fmt.Sprintf("must be between 0 and %d", len(v.problems)-1)},
		)
	}
	v.idx = idx
	v.output = ""
	v.result = nil
	return nil
}

// Next selects the following problem. It reports false on the last one.
func (v *View) Next() bool {
	v.mu.Lock()
	idx := v.idx + 1
	v.mu.Unlock()
	return v.Select(idx) == nil
}

// Prev selects the previous problem. It reports false on the first one.
func (v *View) Prev() bool {
	v.mu.Lock()
	idx := v.idx - 1
	v.mu.Unlock()
	return v.Select(idx) == nil
}

func (v *View) SetLanguage(lang string) error {
	lang = core.CleanString(lang, true /* lower */)
	for _, l := range Languages {
		if l == lang {
			v.mu.Lock()
			v.lang = lang
			v.mu.Unlock()
			return nil
		}
	}
	return core.NewValidationError(
		errors.New("unsupported language"),
		core.FieldError{Field: "language", Error: "unsupported language"},
	)
}

// StarterCode returns the starter code of the selected problem in the selected language.
func (v *View) StarterCode() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.idx >= len(v.problems) {
		return ""
	}
	return v.problems[v.idx].StarterCode[v.lang]
}

// Run sends code for the selected problem to the execution backend: every test case when all is set,
// the sample test case otherwise. Backend failures end up in the output panel, not in the returned error.
func (v *View) Run(ctx context.Context, code string, all bool) (ExecutionResult, error) {
	v.mu.Lock()
	if v.idx >= len(v.problems) {
		v.mu.Unlock()
		return ExecutionResult{}, ErrNoProblem
	}
	if v.executing {
		v.mu.Unlock()
		return ExecutionResult{}, ErrBusy
	}
	v.executing = true
	v.output = ""
	v.result = nil
	req := ExecutionRequest{Code: code, Language: v.lang, ProblemID: v.problems[v.idx].ID}
	v.mu.Unlock()

	var res ExecutionResult
	var err error
	if all {
		res, err = v.backend.Execute(ctx, req)
	} else {
		res, err = v.backend.RunSample(ctx, req)
	}
	if err != nil {
		v.logger.Error(fmt.Sprintf("running code: %v", err), err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.executing = false
	v.output = FormatOutput(res, err)
	if err == nil {
		v.result = &res
	}
	return res, nil
}

// Screen renders the view for the given integrity state.
func (v *View) Screen(st integrity.State) Screen {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case st.Terminated:
		return Screen{
			Kind:    ScreenTerminated,
			Title:   TitleSessionEnded,
			Message: st.Reason.Message(),
			Actions: []string{"home"},
		}
	case v.loading:
		return Screen{Kind: ScreenLoading, Message: MsgLoading}
	case len(v.problems) == 0:
		return Screen{Kind: ScreenEmpty, Message: MsgNoProblems}
	}

	cur := v.problems[v.idx]
	scr := Screen{
		Kind:  ScreenExam,
		Timer: FormatTimer(st.TimeRemaining),
		Problem: &ProblemPane{
			Index:       v.idx + 1,
			Total:       len(v.problems),
			ID:          cur.ID,
			Title:       cur.Title,
			Difficulty:  cur.Difficulty,
			Description: cur.Description,
			HasPrev:     v.idx > 0,
			HasNext:     v.idx < len(v.problems)-1,
		},
		Editor: &Editor{
			Language:    v.lang,
			Languages:   Languages,
			StarterCode: cur.StarterCode[v.lang],
			Executing:   v.executing,
		},
		Output: v.output,
	}
	if scr.Output == "" {
		scr.Output = MsgOutputHint
	}
	if v.result != nil && v.result.Success {
		scr.Results = v.result.Results
	}
	if st.WarningVisible {
		scr.Warning = &WarningModal{Count: st.WarningCount, Max: integrity.MaxWarnings, Message: MsgWarning}
	}
	if st.OverlayVisible {
		scr.Fullscreen = &FullscreenOverlay{Message: MsgFullscreenReq, Actions: []string{"enter_fullscreen", "home"}}
	}
	return scr
}
