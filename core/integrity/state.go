// Package integrity tracks the integrity of a single exam session.
//
// A Tracker turns independent browser signals (tab visibility, window resize, fullscreen changes,
// exam container size samples) and the remote monitor status into one monotonic warning counter and
// an absorbing terminated flag. Three violations, an expired countdown or a terminate order from the
// monitor end the session; nothing leaves the terminated state.
package integrity

import "time"

const (
	// MaxWarnings is the violation count that terminates a session.
	MaxWarnings = 3

	DefaultSessionLength = 90 * time.Minute
	DefaultShrinkRatio   = 0.9
	DefaultPollInterval  = 3 * time.Second
)

type Size struct {
	Width  int `json:"width" validate:"gte=0"`
	Height int `json:"height" validate:"gte=0"`
}

func (s Size) IsZero() bool { return s.Width == 0 && s.Height == 0 }

// ShrunkBelow reports whether either dimension of s is strictly below ratio times the baseline.
// A zero baseline never reports a shrink.
func (s Size) ShrunkBelow(baseline Size, ratio float64) bool {
	if baseline.IsZero() {
		return false
	}
	return float64(s.Width) < ratio*float64(baseline.Width) ||
		float64(s.Height) < ratio*float64(baseline.Height)
}

type Phase string

const (
	PhaseActive     Phase = "active"
	PhaseWarned     Phase = "warned"
	PhaseTerminated Phase = "terminated"
)

// Reason tells why a session was terminated.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonWarnings Reason = "warnings"
	ReasonTime     Reason = "time"
	ReasonMonitor  Reason = "monitor"
)

// Message is the text shown on the termination screen.
func (r Reason) Message() string {
	switch r {
	case ReasonWarnings:
		return "You received three warnings. Your exam session has ended."
	case ReasonTime:
		return "Time is up. Your exam session has ended."
	case ReasonMonitor:
		return "You looked away from the screen for too long. Your exam session has ended."
	default:
		return ""
	}
}

// State is a snapshot of the integrity of a session.
type State struct {
	Phase             Phase  `json:"phase"`
	WarningCount      int    `json:"warning_count"`
	Terminated        bool   `json:"terminated"`
	Reason            Reason `json:"termination_reason,omitempty"`
	IsFullScreen      bool   `json:"is_full_screen"`
	BaselineViewport  *Size  `json:"baseline_viewport,omitempty"`
	BaselineContainer *Size  `json:"baseline_container,omitempty"`
	TimeRemaining     int    `json:"time_remaining"` // seconds
	WarningVisible    bool   `json:"warning_visible"`
	OverlayVisible    bool   `json:"overlay_visible"`
	SuppressedKeys    int    `json:"suppressed_keys"`
}
