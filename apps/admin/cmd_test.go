package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evaledge/core"
	"github.com/trezcool/evaledge/core/integrity"
	"github.com/trezcool/evaledge/core/session"
	inmemdb "github.com/trezcool/evaledge/storage/database/inmem"
	"github.com/trezcool/evaledge/storage/database/testutil"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*commandLine, session.Repository, *bytes.Buffer) {
	conf := core.NewTestConfig()
	repo := inmemdb.NewSessionRepository(inmemdb.Open())
	out := new(bytes.Buffer)

	return &commandLine{
		conf: conf,
		out:  out,
		sessSvc: session.NewService(conf, session.Deps{
			Repo:   repo,
			Logger: new(core.LoggerMock),
		}),
	}, repo, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	var calls []string
	migrateFunc = func(db *sql.DB, conf *core.Config, command string, args ...string) error {
		calls = append(calls, strings.TrimSpace(command+" "+strings.Join(args, " ")))
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
	assert.Contains(t, calls, "up-to 2")
	assert.Contains(t, calls, "down-to 1")
}

func Test_commandLine_sessions(t *testing.T) {
	cli, repo, out := setup(t)

	alice := testutil.CreateSession(t, repo, "alice", session.StatusTerminated, t0)
	bob := testutil.CreateSession(t, repo, "bob", session.StatusCompleted, t0.Add(time.Hour))
	carol := testutil.CreateSession(t, repo, "carol", session.StatusActive, t0.Add(2*time.Hour))

	tests := []struct {
		cliTest
		want []session.Session
	}{
		{cliTest: cliTest{name: "no command"}, want: nil},
		{cliTest: cliTest{name: "default ordering", args: []string{"sessions"}}, want: []session.Session{carol, bob, alice}},
		{cliTest: cliTest{name: "by candidate", args: []string{"sessions", "-ordering", "candidate"}}, want: []session.Session{alice, bob, carol}},
		{cliTest: cliTest{name: "ended", args: []string{"sessions", "-status", "terminated, COMPLETED"}}, want: []session.Session{bob, alice}},
		{cliTest: cliTest{name: "candidate", args: []string{"sessions", "-candidate", "CAR"}}, want: []session.Session{carol}},
		{cliTest: cliTest{name: "bad flag", args: []string{"sessions", "-lol"}}},
	}
	tests[0].wantErr = errHelp
	tests[5].wantErr = errHelp

	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			tt.check(t, err)
			if err != nil {
				return
			}

			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			require.Len(t, lines, len(tt.want)+1)
			assert.True(t, strings.HasPrefix(lines[0], "ID"))
			for i, sess := range tt.want {
				assert.True(t, strings.HasPrefix(lines[i+1], sess.ID.String()), lines[i+1])
				assert.Contains(t, lines[i+1], string(sess.Status))
			}
		})
	}
}

func Test_commandLine_violations(t *testing.T) {
	cli, repo, out := setup(t)

	sess := testutil.CreateSession(t, repo, "alice", session.StatusTerminated, t0)
	for i, kind := range []integrity.Kind{integrity.KindVisibility, integrity.KindResize, integrity.KindMonitor} {
		_, err := repo.AddViolation(context.Background(), session.Violation{
			SessionID:    sess.ID,
			Kind:         kind,
			WarningCount: i + 1,
			OccurredAt:   t0.Add(time.Duration(i+1) * time.Minute),
		})
		require.NoError(t, err)
	}

	tests := []cliTest{
		{name: "no session", args: []string{"violations"}, wantErr: errHelp},
		{name: "invalid session", args: []string{"violations", "-session", "lol"}, wantErrStr: `invalid session ID "lol"`},
		{name: "unknown session", args: []string{"violations", "-session", uuid.NewString()}, wantErr: core.ErrNotFound},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	t.Run("table", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "violations", "-session", sess.ID.String()}))
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 4)
		assert.Contains(t, lines[1], "visibility")
		assert.Contains(t, lines[3], "monitor")
	})

	t.Run("csv", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "violations", "-session", sess.ID.String(), "-csv"}))
		want := "occurred_at,kind,warning_count\n" +
			"2026-03-01T09:01:00Z,visibility,1\n" +
			"2026-03-01T09:02:00Z,resize,2\n" +
			"2026-03-01T09:03:00Z,monitor,3\n"
		assert.Equal(t, want, out.String())
	})
}
