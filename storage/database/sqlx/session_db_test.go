package sqlxrepos_test

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
	sqlxrepos "github.com/trezcool/evaledge/storage/database/sqlx"
	"github.com/trezcool/evaledge/storage/database/testutil"
)

func TestSessionRepository_postgres(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewSessionRepository(db, "postgres")
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	alice := testutil.CreateSession(t, repo, "Alice", session.StatusActive, t0)
	bob := testutil.CreateSession(t, repo, "Bob", session.StatusActive, t0.Add(time.Hour))

	got, err := repo.GetSession(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Candidate)
	assert.True(t, got.StartedAt.Equal(t0))
	assert.True(t, got.EndedAt.IsZero())

	_, err = repo.GetSession(ctx, uuid.New())
	assert.Equal(t, core.ErrNotFound, err)
	_, err = repo.UpdateSession(ctx, session.Session{ID: uuid.New(), Status: session.StatusAbandoned, StartedAt: t0})
	assert.Equal(t, core.ErrNotFound, err)

	for i, kind := range []integrity.Kind{integrity.KindVisibility, integrity.KindFullscreen, integrity.KindMonitor} {
		v, err := repo.AddViolation(ctx, session.Violation{
			SessionID:    alice.ID,
			Kind:         kind,
			WarningCount: i + 1,
			OccurredAt:   t0.Add(time.Duration(i+1) * time.Minute),
		})
		require.NoError(t, err)
		assert.NotZero(t, v.ID)
	}

	alice.Status = session.StatusTerminated
	alice.WarningCount = 3
	alice.TerminationReason = integrity.ReasonWarnings
	alice.EndedAt = t0.Add(3 * time.Minute)
	_, err = repo.UpdateSession(ctx, alice)
	require.NoError(t, err)

	got, err = repo.GetSession(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusTerminated, got.Status)
	assert.Equal(t, integrity.ReasonWarnings, got.TerminationReason)
	assert.True(t, got.EndedAt.Equal(alice.EndedAt))

	violations, err := repo.QueryViolations(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, violations, 3)
	assert.Equal(t, integrity.KindMonitor, violations[2].Kind)

	sessions, err := repo.QuerySessions(ctx, &session.QueryFilter{Status: []session.Status{session.StatusActive}}, nil)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, bob.ID, sessions[0].ID)

	sessions, err = repo.QuerySessions(ctx, &session.QueryFilter{Candidate: "ali"}, nil)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, alice.ID, sessions[0].ID)

	sessions, err = repo.QuerySessions(ctx, nil, []core.DBOrdering{{Field: "candidate", Ascending: true}})
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, alice.ID, sessions[0].ID)
}
