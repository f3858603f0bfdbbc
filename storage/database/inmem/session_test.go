package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evaledge/core"
	"github.com/trezcool/evaledge/core/integrity"
	"github.com/trezcool/evaledge/core/session"
)

func seed(t *testing.T, repo *sessionRepository) []session.Session {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var out []session.Session
	for i, s := range []session.Session{
		{Candidate: "Alice Doe", Status: session.StatusActive, WarningCount: 1},
		{Candidate: "Bob Roe", Status: session.StatusTerminated, WarningCount: 3, TerminationReason: integrity.ReasonWarnings},
		{Candidate: "Carol Poe", Status: session.StatusCompleted},
	} {
		s.StartedAt = t0.Add(time.Duration(i) * time.Hour)
		created, err := repo.CreateSession(context.Background(), s)
		require.NoError(t, err)
		require.NotEqual(t, uuid.Nil, created.ID)
		out = append(out, created)
	}
	return out
}

func TestSessionRepository_QuerySessions(t *testing.T) {
	repo := NewSessionRepository(Open())
	sessions := seed(t, repo)
	ctx := context.Background()

	tests := []struct {
		name     string
		filter   *session.QueryFilter
		ordering []core.DBOrdering
		want     []string
	}{
		{name: "all, latest first", want: []string{"Carol Poe", "Bob Roe", "Alice Doe"}},
		{
			name:     "by candidate asc",
			ordering: []core.DBOrdering{{Field: "candidate", Ascending: true}},
			want:     []string{"Alice Doe", "Bob Roe", "Carol Poe"},
		},
		{name: "status", filter: &session.QueryFilter{Status: []session.Status{session.StatusTerminated, session.StatusActive}}, want: []string{"Bob Roe", "Alice Doe"}},
		{name: "candidate search", filter: &session.QueryFilter{Candidate: "poe"}, want: []string{"Carol Poe"}},
		{name: "started range", filter: &session.QueryFilter{StartedFrom: sessions[1].StartedAt, StartedTo: sessions[1].StartedAt}, want: []string{"Bob Roe"}},
		{
			name:     "warnings desc",
			ordering: []core.DBOrdering{{Field: "warning_count"}},
			want:     []string{"Bob Roe", "Alice Doe", "Carol Poe"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.QuerySessions(ctx, tt.filter, tt.ordering)
			require.NoError(t, err)
			names := make([]string, 0, len(got))
			for _, s := range got {
				names = append(names, s.Candidate)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestSessionRepository_UpdateAndViolations(t *testing.T) {
	repo := NewSessionRepository(Open())
	sess := seed(t, repo)[0]
	ctx := context.Background()

	_, err := repo.CreateSession(ctx, sess)
	assert.Error(t, err)

	sess.WarningCount = 2
	_, err = repo.UpdateSession(ctx, sess)
	require.NoError(t, err)
	got, err := repo.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.WarningCount)

	_, err = repo.GetSession(ctx, uuid.New())
	assert.True(t, core.IsNotFound(err))
	_, err = repo.UpdateSession(ctx, session.Session{ID: uuid.New()})
	assert.True(t, core.IsNotFound(err))

	v1, err := repo.AddViolation(ctx, session.Violation{SessionID: sess.ID, Kind: integrity.KindVisibility, WarningCount: 1})
	require.NoError(t, err)
	v2, err := repo.AddViolation(ctx, session.Violation{SessionID: sess.ID, Kind: integrity.KindResize, WarningCount: 2})
	require.NoError(t, err)
	assert.Less(t, v1.ID, v2.ID)

	_, err = repo.AddViolation(ctx, session.Violation{SessionID: uuid.New(), Kind: integrity.KindResize})
	assert.True(t, core.IsNotFound(err))

	violations, err := repo.QueryViolations(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []session.Violation{v1, v2}, violations)

	violations, err = repo.QueryViolations(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, violations)
}
