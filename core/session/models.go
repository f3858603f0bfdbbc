package session

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/evaledge/core"
	"github.com/trezcool/evaledge/core/integrity"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusTerminated Status = "terminated" // ended by the integrity tracker
	StatusAbandoned  Status = "abandoned"  // the candidate left the exam page
	StatusCompleted  Status = "completed"  // the candidate submitted and finished
)

var Statuses = []Status{StatusActive, StatusTerminated, StatusAbandoned, StatusCompleted}

type Session struct {
	ID                uuid.UUID        `json:"id"`
	Candidate         string           `json:"candidate"`
	VerifiedPerson    string           `json:"verified_person"`
	VerifyScore       float64          `json:"verify_score"`
	Status            Status           `json:"status"`
	WarningCount      int              `json:"warning_count"`
	TerminationReason integrity.Reason `json:"termination_reason,omitempty"`
	TimeRemaining     int              `json:"time_remaining"` // seconds
	StartedAt         time.Time        `json:"started_at"`     // UTC
	EndedAt           time.Time        `json:"ended_at"`       // UTC; zero while running
}

func (s Session) IsEnded() bool { return s.Status != StatusActive }

// Violation is one counted integrity violation.
type Violation struct {
	ID           int64          `json:"id"`
	SessionID    uuid.UUID      `json:"session_id"`
	Kind         integrity.Kind `json:"kind"`
	WarningCount int            `json:"warning_count"` // counter value right after this violation
	OccurredAt   time.Time      `json:"occurred_at"`
}

// VerifyResult is the face-verification verdict for a snapshot.
type VerifyResult struct {
	OK      bool    `json:"ok"`
	Person  string  `json:"person,omitempty"`
	Score   float64 `json:"score,omitempty"`
	Msg     string  `json:"msg,omitempty"`
	Closest string  `json:"closest,omitempty"`
}

// VerifyRequest carries a webcam snapshot as a data URL.
type VerifyRequest struct {
	Image string `json:"image" form:"image" validate:"required,image_dataurl"`
}

func (vr *VerifyRequest) Validate(validate *validator.Validate) error {
	vr.Image = core.CleanString(vr.Image)
	return validate.Struct(vr)
}

// NewSession contains what is needed to start an exam session.
// VerifiedPerson and VerifyScore come from the verification token, never from the request body.
type NewSession struct {
	Candidate      string         `json:"candidate" validate:"omitempty,max=255"`
	Viewport       integrity.Size `json:"viewport"`
	VerifiedPerson string         `json:"-"`
	VerifyScore    float64        `json:"-"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Candidate = core.CleanString(ns.Candidate)
	if ns.Candidate == "" {
		ns.Candidate = ns.VerifiedPerson
	}
	return validate.Struct(ns)
}

// EndSession is the body of an explicit end of session.
type EndSession struct {
	Status Status `json:"status" validate:"required,oneof=abandoned completed"`
}

func (es *EndSession) Validate(validate *validator.Validate) error {
	es.Status = Status(core.CleanString(string(es.Status), true /* lower */))
	return validate.Struct(es)
}

type SelectProblem struct {
	Index    *int   `json:"index" validate:"required,gte=0"`
	Language string `json:"language" validate:"omitempty,oneof=javascript python java cpp"`
}

func (sp *SelectProblem) Validate(validate *validator.Validate) error {
	sp.Language = core.CleanString(sp.Language, true /* lower */)
	return validate.Struct(sp)
}

type QueryFilter struct {
	Status      []Status  `query:"status"`
	Candidate   string    `query:"candidate"`
	StartedFrom time.Time `query:"started_from"`
	StartedTo   time.Time `query:"started_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Status == nil && qf.Candidate == "" && qf.StartedFrom.IsZero() && qf.StartedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Candidate = core.CleanString(qf.Candidate)
}

// Snapshot is a session together with its live integrity state, when it is still tracked.
type Snapshot struct {
	Session   Session          `json:"session"`
	Integrity *integrity.State `json:"integrity,omitempty"`
}
