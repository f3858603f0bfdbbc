package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/evaledge/core"
	"github.com/trezcool/evaledge/core/integrity"
	"github.com/trezcool/evaledge/core/session"
)

const (
	sessionColumns   = "id, candidate, verified_person, verify_score, status, warning_count, termination_reason, time_remaining, started_at, ended_at"
	violationColumns = "id, session_id, kind, warning_count, occurred_at"
)

// sessionRow is an exam_session row.
type sessionRow struct {
	ID                uuid.UUID   `db:"id"`
	Candidate         string      `db:"candidate"`
	VerifiedPerson    string      `db:"verified_person"`
	VerifyScore       float64     `db:"verify_score"`
	Status            string      `db:"status"`
	WarningCount      int         `db:"warning_count"`
	TerminationReason null.String `db:"termination_reason"`
	TimeRemaining     int         `db:"time_remaining"`
	StartedAt         time.Time   `db:"started_at"`
	EndedAt           null.Time   `db:"ended_at"`
}

type violationRow struct {
	ID           int64     `db:"id"`
	SessionID    uuid.UUID `db:"session_id"`
	Kind         string    `db:"kind"`
	WarningCount int       `db:"warning_count"`
	OccurredAt   time.Time `db:"occurred_at"`
}

func toRow(sess session.Session) sessionRow {
	return sessionRow{
		ID:                sess.ID,
		Candidate:         sess.Candidate,
		VerifiedPerson:    sess.VerifiedPerson,
		VerifyScore:       sess.VerifyScore,
		Status:            string(sess.Status),
		WarningCount:      sess.WarningCount,
		TerminationReason: null.NewString(string(sess.TerminationReason), sess.TerminationReason != integrity.ReasonNone),
		TimeRemaining:     sess.TimeRemaining,
		StartedAt:         sess.StartedAt.UTC(),
		EndedAt:           null.NewTime(sess.EndedAt.UTC(), !sess.EndedAt.IsZero()),
	}
}

func (r sessionRow) session() session.Session {
	return session.Session{
		ID:                r.ID,
		Candidate:         r.Candidate,
		VerifiedPerson:    r.VerifiedPerson,
		VerifyScore:       r.VerifyScore,
		Status:            session.Status(r.Status),
		WarningCount:      r.WarningCount,
		TerminationReason: integrity.Reason(r.TerminationReason.String),
		TimeRemaining:     r.TimeRemaining,
		StartedAt:         r.StartedAt.UTC(),
		EndedAt:           r.EndedAt.Time.UTC(),
	}
}

func (r violationRow) violation() session.Violation {
	return session.Violation{
		ID:           r.ID,
		SessionID:    r.SessionID,
		Kind:         integrity.Kind(r.Kind),
		WarningCount: r.WarningCount,
		OccurredAt:   r.OccurredAt.UTC(),
	}
}

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sql.DB, driverName string) *sessionRepository {
	return &sessionRepository{db: sqlx.NewDb(db, driverName)}
}

// trapNoRowsErr maps psql "no rows" err to core.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return core.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	if sess.ID == uuid.Nil {
		sess.ID = uuid.New()
	}
	q := `INSERT INTO exam_session (` + sessionColumns + `) VALUES (:id, :candidate, :verified_person, :verify_score,
		:status, :warning_count, :termination_reason, :time_remaining, :started_at, :ended_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toRow(sess)); err != nil {
		return session.Session{}, errors.Wrap(err, "inserting session")
	}
	return sess, nil
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	q := `UPDATE exam_session SET candidate = :candidate, verified_person = :verified_person,
		verify_score = :verify_score, status = :status, warning_count = :warning_count,
		termination_reason = :termination_reason, time_remaining = :time_remaining, ended_at = :ended_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toRow(sess))
	if err != nil {
		return session.Session{}, errors.Wrap(err, "updating session")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return session.Session{}, core.ErrNotFound
	}
	return sess, nil
}

func (repo *sessionRepository) GetSession(ctx context.Context, id uuid.UUID) (session.Session, error) {
	var row sessionRow
	q := `SELECT ` + sessionColumns + ` FROM exam_session WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return session.Session{}, trapNoRowsErr(err, "selecting session")
	}
	return row.session(), nil
}

// sessionsQuery builds the SELECT of QuerySessions. Orderings must have been filtered by the caller.
func sessionsQuery(filter *session.QueryFilter, ordering []core.DBOrdering) (string, []interface{}, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		if len(filter.Status) > 0 {
			statuses := make([]string, 0, len(filter.Status))
			for _, st := range filter.Status {
				statuses = append(statuses, string(st))
			}
			in, inArgs, err := sqlx.In("status IN (?)", statuses)
			if err != nil {
				return "", nil, err
			}
			where = append(where, in)
			args = append(args, inArgs...)
		}
		if filter.Candidate != "" {
			where = append(where, "candidate ILIKE ?")
			args = append(args, "%"+filter.Candidate+"%")
		}
		if !filter.StartedFrom.IsZero() {
			where = append(where, "started_at >= ?")
			args = append(args, filter.StartedFrom.UTC())
		}
		if !filter.StartedTo.IsZero() {
			where = append(where, "started_at <= ?")
			args = append(args, filter.StartedTo.UTC())
		}
	}

	q := `SELECT ` + sessionColumns + ` FROM exam_session`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "started_at"}}
	}
	orders := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orders = append(orders, ord.String())
	}
	q += fmt.Sprintf(" ORDER BY %s", strings.Join(orders, ", "))
	return sqlx.Rebind(sqlx.DOLLAR, q), args, nil
}

func (repo *sessionRepository) QuerySessions(ctx context.Context, filter *session.QueryFilter, ordering []core.DBOrdering) ([]session.Session, error) {
	q, args, err := sessionsQuery(filter, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "building sessions query")
	}
	var rows []sessionRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting sessions")
	}
	sessions := make([]session.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.session())
	}
	return sessions, nil
}

func (repo *sessionRepository) AddViolation(ctx context.Context, v session.Violation) (session.Violation, error) {
	q := `INSERT INTO exam_violation (session_id, kind, warning_count, occurred_at) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := repo.db.GetContext(ctx, &v.ID, q, v.SessionID, string(v.Kind), v.WarningCount, v.OccurredAt.UTC()); err != nil {
		return session.Violation{}, errors.Wrap(err, "inserting violation")
	}
	return v, nil
}

func (repo *sessionRepository) QueryViolations(ctx context.Context, sessionID uuid.UUID) ([]session.Violation, error) {
	var rows []violationRow
	q := `SELECT ` + violationColumns + ` FROM exam_violation WHERE session_id = $1 ORDER BY occurred_at, id`
	if err := repo.db.SelectContext(ctx, &rows, q, sessionID); err != nil {
		return nil, errors.Wrap(err, "selecting violations")
	}
	violations := make([]session.Violation, 0, len(rows))
	for _, r := range rows {
		violations = append(violations, r.violation())
	}
	return violations, nil
}
