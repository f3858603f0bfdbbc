// Package session runs exam sessions: it binds an integrity tracker and an exam view to each session,
// persists the session and its violations, and notifies the proctor when a session is terminated.
package session

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/mail"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/evaledge/core"
	"github.com/trezcool/evaledge/core/exam"
	"github.com/trezcool/evaledge/core/integrity"
)

var (
	ErrMonitorUnavailable = errors.New("Monitoring app is not running! Please start the monitoring app before proceeding.")
	ErrSessionEnded       = errors.New("exam session has ended")
)

type (
	Repository interface {
		CreateSession(ctx context.Context, sess Session) (Session, error)
		UpdateSession(ctx context.Context, sess Session) (Session, error)
		GetSession(ctx context.Context, id uuid.UUID) (Session, error)
		// QuerySessions applies AND operation on available QueryFilter fields.
		QuerySessions(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Session, error)
		AddViolation(ctx context.Context, v Violation) (Violation, error)
		QueryViolations(ctx context.Context, sessionID uuid.UUID) ([]Violation, error)
	}

	Verifier interface {
		Verify(ctx context.Context, image string) (VerifyResult, error)
	}

	Monitor interface {
		Status(ctx context.Context) (integrity.RemoteStatus, error)
		Ready(ctx context.Context) bool
		Reset(ctx context.Context) error
	}

	// Deps are the collaborators of the Service. Mailer may be nil.
	Deps struct {
		Repo     Repository
		Backend  exam.Backend
		Monitor  Monitor
		Verifier Verifier
		Mailer   core.EmailService
		Logger   core.Logger
		Clock    integrity.Clock // integrity.RealClock when nil
	}

	// liveSession is a session whose page is still open.
	liveSession struct {
		mu      sync.Mutex
		session Session
		bus     *integrity.Bus
		tracker *integrity.Tracker
		view    *exam.View
	}

	Service struct {
		conf *core.Config
		deps Deps

		mu   sync.Mutex
		live map[uuid.UUID]*liveSession
	}
)

func NewService(conf *core.Config, deps Deps) *Service {
	if deps.Clock == nil {
		deps.Clock = integrity.RealClock
	}
	return &Service{
		conf: conf,
		deps: deps,
		live: make(map[uuid.UUID]*liveSession),
	}
}

func (svc *Service) now() time.Time {
	return svc.deps.Clock.Now().UTC()
}

// Verify matches a webcam snapshot against the reference faces.
// A rejection is a validation error carrying the backend message.
func (svc *Service) Verify(ctx context.Context, image string) (VerifyResult, error) {
	res, err := svc.deps.Verifier.Verify(ctx, image)
	if err != nil {
		return VerifyResult{}, err
	}
	if !res.OK {
		msg := res.Msg
		if msg == "" {
			msg = "verification failed"
		}
		return res, core.NewValidationError(errors.New(msg), core.FieldError{Field: "image", Error: msg})
	}
	return res, nil
}

func (svc *Service) MonitorReady(ctx context.Context) bool {
	return svc.deps.Monitor.Ready(ctx)
}

// Start opens an exam session. The monitor must be up; it is reset while the problems are loaded.
func (svc *Service) Start(ctx context.Context, ns NewSession) (Snapshot, error) {
	if !svc.deps.Monitor.Ready(ctx) {
		return Snapshot{}, ErrMonitorUnavailable
	}

	sess := Session{
		ID:             uuid.New(),
		Candidate:      ns.Candidate,
		VerifiedPerson: ns.VerifiedPerson,
		VerifyScore:    ns.VerifyScore,
		Status:         StatusActive,
		TimeRemaining:  int(svc.sessionLength() / time.Second),
		StartedAt:      svc.now(),
	}
	ctx = core.WithSessionID(ctx, sess.ID.String())

	view := exam.NewView(svc.deps.Backend, svc.deps.Logger)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.deps.Monitor.Reset(gctx)
	})
	g.Go(func() error {
		view.Load(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		svc.deps.Logger.Error(fmt.Sprintf("starting session %s: %v", sess.ID, err), err)
		return Snapshot{}, ErrMonitorUnavailable
	}

	sess, err := svc.deps.Repo.CreateSession(ctx, sess)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "creating session")
	}

	ls := &liveSession{session: sess, bus: integrity.NewBus(), view: view}
	ls.tracker = integrity.NewTracker(ls.bus, svc.trackerOptions(ls))

	svc.mu.Lock()
	svc.live[sess.ID] = ls
	svc.mu.Unlock()

	ls.tracker.Start(ns.Viewport)
	st := ls.tracker.State()
	return Snapshot{Session: sess, Integrity: &st}, nil
}

func (svc *Service) sessionLength() time.Duration {
	if svc.conf.Exam.Duration > 0 {
		return svc.conf.Exam.Duration
	}
	return integrity.DefaultSessionLength
}

func (svc *Service) trackerOptions(ls *liveSession) integrity.Options {
	id := ls.session.ID
	return integrity.Options{
		SessionLength: svc.sessionLength(),
		ShrinkRatio:   svc.conf.Exam.ShrinkRatio,
		Debounce:      svc.conf.Exam.ViolationDebounce,
		Clock:         svc.deps.Clock,
		Status: func(ctx context.Context) (integrity.RemoteStatus, error) {
			return svc.deps.Monitor.Status(core.WithSessionID(ctx, id.String()))
		},
		PollInterval: svc.conf.Exam.StatusPollInterval,
		Logger:       svc.deps.Logger,
		OnViolation: func(kind integrity.Kind, st integrity.State) {
			svc.recordViolation(ls, kind, st)
		},
		OnTerminate: func(st integrity.State) {
			svc.terminated(ls, st)
		},
	}
}

func (svc *Service) recordViolation(ls *liveSession, kind integrity.Kind, st integrity.State) {
	ctx := core.WithSessionID(context.Background(), ls.session.ID.String())
	v := Violation{
		SessionID:    ls.session.ID,
		Kind:         kind,
		WarningCount: st.WarningCount,
		OccurredAt:   svc.now(),
	}
	if _, err := svc.deps.Repo.AddViolation(ctx, v); err != nil {
		svc.deps.Logger.Error(fmt.Sprintf("saving violation of session %s: %v", ls.session.ID, err), err, ls.current())
	}
	if st.Terminated {
		return // saved by terminated()
	}

	ls.mu.Lock()
	ls.session.WarningCount = st.WarningCount
	ls.session.TimeRemaining = st.TimeRemaining
	sess := ls.session
	ls.mu.Unlock()
	if _, err := svc.deps.Repo.UpdateSession(ctx, sess); err != nil {
		svc.deps.Logger.Error(fmt.Sprintf("updating session %s: %v", sess.ID, err), err, sess)
	}
}

func (svc *Service) terminated(ls *liveSession, st integrity.State) {
	ctx := core.WithSessionID(context.Background(), ls.session.ID.String())

	ls.mu.Lock()
	ls.session.Status = StatusTerminated
	ls.session.WarningCount = st.WarningCount
	ls.session.TerminationReason = st.Reason
	ls.session.TimeRemaining = st.TimeRemaining
	ls.session.EndedAt = svc.now()
	sess := ls.session
	ls.mu.Unlock()

	if _, err := svc.deps.Repo.UpdateSession(ctx, sess); err != nil {
		svc.deps.Logger.Error(fmt.Sprintf("updating session %s: %v", sess.ID, err), err, sess)
	}
	svc.deps.Logger.Info(fmt.Sprintf("session %s terminated: %s", sess.ID, sess.TerminationReason), sess)
	svc.notifyProctor(ctx, sess)
}

func (svc *Service) notifyProctor(ctx context.Context, sess Session) {
	to, ok := svc.conf.ProctorAddress()
	if !ok || svc.deps.Mailer == nil {
		return
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      fmt.Sprintf("Exam session of %s terminated", sess.Candidate),
		TemplateName: "session_terminated",
		TemplateData: sess,
	}

	violations, err := svc.deps.Repo.QueryViolations(ctx, sess.ID)
	if err != nil {
		svc.deps.Logger.Error(fmt.Sprintf("querying violations of session %s: %v", sess.ID, err), err, sess)
	} else if len(violations) > 0 {
		var buf bytes.Buffer
		aErr := WriteViolationsCSV(&buf, violations)
		if aErr == nil {
			aErr = msg.Attach(&buf, "violations.csv", "text/csv")
		}
		if aErr != nil {
			svc.deps.Logger.Error(fmt.Sprintf("attaching violations of session %s: %v", sess.ID, aErr), aErr, sess)
		}
	}
	svc.deps.Mailer.SendMessages(msg)
}

// WriteViolationsCSV writes one line per violation, after a header line.
func WriteViolationsCSV(w io.Writer, violations []Violation) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"occurred_at", "kind", "warning_count"})
	for _, v := range violations {
		_ = cw.Write([]string{v.OccurredAt.UTC().Format(time.RFC3339), string(v.Kind), strconv.Itoa(v.WarningCount)})
	}
	cw.Flush()
	return cw.Error()
}

func (svc *Service) getLive(ctx context.Context, id uuid.UUID) (*liveSession, error) {
	svc.mu.Lock()
	ls, ok := svc.live[id]
	svc.mu.Unlock()
	if ok {
		return ls, nil
	}

	if _, err := svc.deps.Repo.GetSession(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrSessionEnded
}

func (ls *liveSession) current() Session {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.session
}

func (ls *liveSession) snapshot() Snapshot {
	st := ls.tracker.State()
	ls.mu.Lock()
	defer ls.mu.Unlock()
	sess := ls.session
	sess.WarningCount = st.WarningCount
	sess.TimeRemaining = st.TimeRemaining
	return Snapshot{Session: sess, Integrity: &st}
}

// Get returns a session. Integrity is only set while the session page is open.
func (svc *Service) Get(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	svc.mu.Lock()
	ls, ok := svc.live[id]
	svc.mu.Unlock()
	if ok {
		return ls.snapshot(), nil
	}

	sess, err := svc.deps.Repo.GetSession(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Session: sess}, nil
}

func (svc *Service) Screen(ctx context.Context, id uuid.UUID) (exam.Screen, error) {
	ls, err := svc.getLive(ctx, id)
	if err != nil {
		return exam.Screen{}, err
	}
	return ls.view.Screen(ls.tracker.State()), nil
}

// SignalResult tells the page whether to swallow the key event, and the integrity state after the signal.
type SignalResult struct {
	Suppressed bool            `json:"suppressed"`
	State      integrity.State `json:"state"`
}

// Signal feeds a browser signal to the session tracker.
func (svc *Service) Signal(ctx context.Context, id uuid.UUID, sig integrity.Signal) (SignalResult, error) {
	ls, err := svc.getLive(ctx, id)
	if err != nil {
		return SignalResult{}, err
	}
	ls.bus.Publish(sig)

	return SignalResult{
		Suppressed: sig.Kind == integrity.KindKey && integrity.Suppress(sig.Key),
		State:      ls.tracker.State(),
	}, nil
}

func (svc *Service) DismissWarning(ctx context.Context, id uuid.UUID) (integrity.State, error) {
	ls, err := svc.getLive(ctx, id)
	if err != nil {
		return integrity.State{}, err
	}
	ls.tracker.DismissWarning()
	return ls.tracker.State(), nil
}

func (svc *Service) Problem(ctx context.Context, id uuid.UUID, problemID string) (exam.Problem, error) {
	if _, err := svc.getLive(ctx, id); err != nil {
		return exam.Problem{}, err
	}
	return svc.deps.Backend.Problem(core.WithSessionID(ctx, id.String()), problemID)
}

// Select moves to the problem at the given index, and switches the editor language when one is given.
func (svc *Service) Select(ctx context.Context, id uuid.UUID, sp SelectProblem) (exam.Screen, error) {
	ls, err := svc.getLive(ctx, id)
	if err != nil {
		return exam.Screen{}, err
	}
	if err := ls.view.Select(*sp.Index); err != nil {
		return exam.Screen{}, err
	}
	if sp.Language != "" {
		if err := ls.view.SetLanguage(sp.Language); err != nil {
			return exam.Screen{}, err
		}
	}
	return ls.view.Screen(ls.tracker.State()), nil
}

// Run sends code of the selected problem to the execution backend; all selects every test case.
// Code cannot be run once the session is terminated.
func (svc *Service) Run(ctx context.Context, id uuid.UUID, code string, all bool) (exam.Screen, error) {
	ls, err := svc.getLive(ctx, id)
	if err != nil {
		return exam.Screen{}, err
	}
	if ls.tracker.State().Terminated {
		return exam.Screen{}, ErrSessionEnded
	}
	if _, err := ls.view.Run(core.WithSessionID(ctx, id.String()), code, all); err != nil {
		return exam.Screen{}, err
	}
	return ls.view.Screen(ls.tracker.State()), nil
}

// End closes the session page: the tracker is stopped and the session leaves the live set.
// A terminated session keeps its terminated status.
func (svc *Service) End(ctx context.Context, id uuid.UUID, status Status) (Session, error) {
	svc.mu.Lock()
	ls, ok := svc.live[id]
	delete(svc.live, id)
	svc.mu.Unlock()
	if !ok {
		if _, err := svc.deps.Repo.GetSession(ctx, id); err != nil {
			return Session{}, err
		}
		return Session{}, ErrSessionEnded
	}

	ls.tracker.Stop()
	snap := ls.snapshot()
	sess := snap.Session
	if sess.Status == StatusActive {
		sess.Status = status
		sess.EndedAt = svc.now()
	}
	ls.mu.Lock()
	ls.session = sess
	ls.mu.Unlock()

	sess, err := svc.deps.Repo.UpdateSession(core.WithSessionID(ctx, id.String()), sess)
	if err != nil {
		return Session{}, errors.Wrap(err, "updating session")
	}
	return sess, nil
}

// Shutdown abandons every open session.
func (svc *Service) Shutdown(ctx context.Context) {
	svc.mu.Lock()
	ids := make([]uuid.UUID, 0, len(svc.live))
	for id := range svc.live {
		ids = append(ids, id)
	}
	svc.mu.Unlock()

	for _, id := range ids {
		if _, err := svc.End(ctx, id, StatusAbandoned); err != nil && errors.Cause(err) != ErrSessionEnded {
			svc.deps.Logger.Error(fmt.Sprintf("ending session %s: %v", id, err), err)
		}
	}
}

// Live returns the number of open sessions.
func (svc *Service) Live() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return len(svc.live)
}

func (svc *Service) QuerySessions(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Session, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.deps.Repo.QuerySessions(ctx, filter, core.FilterOrderings(ordering, "started_at", "candidate", "warning_count", "status"))
}

func (svc *Service) QueryViolations(ctx context.Context, id uuid.UUID) ([]Violation, error) {
	if _, err := svc.deps.Repo.GetSession(ctx, id); err != nil {
		return nil, err
	}
	return svc.deps.Repo.QueryViolations(ctx, id)
}
