package sqlxrepos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evaledge/core"
	"github.com/trezcool/evaledge/core/integrity"
	"github.com/trezcool/evaledge/core/session"
)

func TestSessionsQuery(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		filter   *session.QueryFilter
		ordering []core.DBOrdering
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:    "no filter",
			wantSQL: "SELECT " + sessionColumns + " FROM exam_session ORDER BY started_at DESC",
		},
		{
			name:     "status and candidate",
			filter:   &session.QueryFilter{Status: []session.Status{session.StatusActive, session.StatusTerminated}, Candidate: "doe"},
			ordering: []core.DBOrdering{{Field: "candidate", Ascending: true}, {Field: "started_at"}},
			wantSQL: "SELECT " + sessionColumns + " FROM exam_session WHERE status IN ($1, $2) AND candidate ILIKE $3" +
				" ORDER BY candidate ASC, started_at DESC",
			wantArgs: []interface{}{"active", "terminated", "%doe%"},
		},
		{
			name:     "started range",
			filter:   &session.QueryFilter{StartedFrom: from, StartedTo: from.Add(24 * time.Hour)},
			wantSQL:  "SELECT " + sessionColumns + " FROM exam_session WHERE started_at >= $1 AND started_at <= $2 ORDER BY started_at DESC",
			wantArgs: []interface{}{from, from.Add(24 * time.Hour)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args, err := sessionsQuery(tt.filter, tt.ordering)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, q)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestSessionRow(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	running := session.Session{Candidate: "Alice", Status: session.StatusActive, StartedAt: started, TimeRemaining: 5400}

	row := toRow(running)
	assert.False(t, row.TerminationReason.Valid)
	assert.False(t, row.EndedAt.Valid)
	assert.Equal(t, running, row.session())

	ended := running
	ended.Status = session.StatusTerminated
	ended.TerminationReason = integrity.ReasonMonitor
	ended.EndedAt = started.Add(time.Hour)
	row = toRow(ended)
	assert.Equal(t, "monitor", row.TerminationReason.String)
	assert.True(t, row.EndedAt.Valid)
	assert.Equal(t, ended, row.session())
}
