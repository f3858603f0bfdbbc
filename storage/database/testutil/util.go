// Package testutil prepares storage for the tests.
package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/evaledge/core"
	"github.com/trezcool/evaledge/core/session"
	"github.com/trezcool/evaledge/storage/database"
)

// PrepareDB returns a migrated, empty test database. The test is skipped when no database is configured,
// e.g. run with ENV=TEST TEST_DATABASE_ENGINE=postgres TEST_DATABASE_NAME=evaledge_test to enable it.
func PrepareDB(t *testing.T) *sql.DB {
	t.Helper()

	conf := core.NewConfig()
	if !conf.Database.Enabled() {
		t.Skip("no test database configured")
	}

	db, err := database.Setup(conf)
	if err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	ResetDB(t, db)
	t.Cleanup(func() {
		ResetDB(t, db)
		if err := db.Close(); err != nil {
			t.Errorf("db.Close(): %v", err)
		}
	})
	return db
}

// ResetDB deletes every session and its violations.
func ResetDB(t *testing.T, db *sql.DB) {
	t.Helper()
	if _, err := db.Exec("TRUNCATE exam_session CASCADE"); err != nil {
		t.Fatalf("ResetDB(): %v", err)
	}
}

func CreateSession(
	t *testing.T,
	repo session.Repository,
	candidate string,
	status session.Status,
	startedAt ...time.Time,
) session.Session {
	t.Helper()

	tstamp := time.Now().UTC().Truncate(time.Microsecond)
	if len(startedAt) > 0 {
		tstamp = startedAt[0].UTC()
	}
	sess := session.Session{
		ID:             uuid.New(),
		Candidate:      candidate,
		VerifiedPerson: candidate,
		Status:         status,
		TimeRemaining:  5400,
		StartedAt:      tstamp,
	}
	sess, err := repo.CreateSession(context.Background(), sess)
	if err != nil {
		t.Fatalf("CreateSession(): %v", err)
	}
	return sess
}
