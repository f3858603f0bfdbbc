package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/evaledge/core"
	"github.com/trezcool/evaledge/core/session"
)

type sessionRepository struct {
	sessions   *sessionTable
	violations *violationTable
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) *sessionRepository {
	return &sessionRepository{sessions: db.session, violations: db.violation}
}

func (repo *sessionRepository) CreateSession(_ context.Context, sess session.Session) (session.Session, error) {
	repo.sessions.Lock()
	defer repo.sessions.Unlock()

	if sess.ID == uuid.Nil {
		sess.ID = uuid.New()
	}
	if _, ok := repo.sessions.table[sess.ID]; ok {
		return session.Session{}, errors.Errorf("session %s already exists", sess.ID)
	}
	repo.sessions.table[sess.ID] = &sess
	return sess, nil
}

func (repo *sessionRepository) UpdateSession(_ context.Context, sess session.Session) (session.Session, error) {
	repo.sessions.Lock()
	defer repo.sessions.Unlock()

	if _, ok := repo.sessions.table[sess.ID]; !ok {
		return session.Session{}, core.ErrNotFound
	}
	repo.sessions.table[sess.ID] = &sess
	return sess, nil
}

func (repo *sessionRepository) GetSession(_ context.Context, id uuid.UUID) (session.Session, error) {
	repo.sessions.RLock()
	defer repo.sessions.RUnlock()

	if sess, ok := repo.sessions.table[id]; ok {
		return *sess, nil
	}
	return session.Session{}, core.ErrNotFound
}

func (repo *sessionRepository) QuerySessions(_ context.Context, filter *session.QueryFilter, ordering []core.DBOrdering) ([]session.Session, error) {
	repo.sessions.RLock()
	defer repo.sessions.RUnlock()

	sessions := make([]session.Session, 0, len(repo.sessions.table))
	for _, sess := range repo.sessions.table {
		if filter == nil || matches(*sess, filter) {
			sessions = append(sessions, *sess)
		}
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "started_at"}}
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		for _, ord := range ordering {
			c := compare(sessions[i], sessions[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return sessions, nil
}

func matches(sess session.Session, filter *session.QueryFilter) bool {
	if len(filter.Status) > 0 {
		found := false
		for _, st := range filter.Status {
			if sess.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Candidate != "" && !strings.Contains(strings.ToLower(sess.Candidate), strings.ToLower(filter.Candidate)) {
		return false
	}
	if !filter.StartedFrom.IsZero() && sess.StartedAt.Before(filter.StartedFrom) {
		return false
	}
	if !filter.StartedTo.IsZero() && sess.StartedAt.After(filter.StartedTo) {
		return false
	}
	return true
}

func compare(a, b session.Session, field string) int {
	switch field {
	case "candidate":
		return strings.Compare(a.Candidate, b.Candidate)
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "warning_count":
		return a.WarningCount - b.WarningCount
	case "started_at":
		switch {
		case a.StartedAt.Before(b.StartedAt):
			return -1
		case a.StartedAt.After(b.StartedAt):
			return 1
		}
	}
	return 0
}

func (repo *sessionRepository) AddViolation(_ context.Context, v session.Violation) (session.Violation, error) {
	repo.sessions.RLock()
	_, ok := repo.sessions.table[v.SessionID]
	repo.sessions.RUnlock()
	if !ok {
		return session.Violation{}, core.ErrNotFound
	}

	repo.violations.Lock()
	defer repo.violations.Unlock()
	repo.violations.pkCount++
	v.ID = repo.violations.pkCount
	repo.violations.table[v.SessionID] = append(repo.violations.table[v.SessionID], v)
	return v, nil
}

func (repo *sessionRepository) QueryViolations(_ context.Context, sessionID uuid.UUID) ([]session.Violation, error) {
	repo.violations.RLock()
	defer repo.violations.RUnlock()

	violations := make([]session.Violation, len(repo.violations.table[sessionID]))
	copy(violations, repo.violations.table[sessionID])
	return violations, nil
}
