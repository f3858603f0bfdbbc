package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/evaledge/core"
	"github.com/trezcool/evaledge/core/session"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf    *core.Config
	db      *sql.DB
	out     io.Writer
	sessSvc *session.Service
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a migration command (up, up-by-one, up-to, down, down-to, redo, reset, status, version, fix)")
	fmt.Fprintln(cli.out, "  sessions [-status S,S] [-candidate NAME] [-ordering -started_at] - list exam sessions")
	fmt.Fprintln(cli.out, "  violations -session ID [-csv] - list the integrity violations of a session")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	sessionsCmd := flag.NewFlagSet("sessions", flag.ContinueOnError)
	sessionsCmd.SetOutput(cli.out)
	sessionsStatus := sessionsCmd.String("status", "", "Comma separated statuses (active, terminated, abandoned, completed).")
	sessionsCandidate := sessionsCmd.String("candidate", "", "Only the sessions of this candidate.")
	sessionsOrdering := sessionsCmd.String("ordering", "-started_at", "Comma separated fields; prefix with - for descending.")

	violationsCmd := flag.NewFlagSet("violations", flag.ContinueOnError)
	violationsCmd.SetOutput(cli.out)
	violationsSession := violationsCmd.String("session", "", "The session ID.")
	violationsCSV := violationsCmd.Bool("csv", false, "Print as CSV.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "sessions":
		if err := sessionsCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		filter := &session.QueryFilter{Candidate: *sessionsCandidate}
		for _, s := range strings.Split(*sessionsStatus, ",") {
			if s = core.CleanString(s, true /* lower */); s != "" {
				filter.Status = append(filter.Status, session.Status(s))
			}
		}
		return cli.listSessions(filter, core.ParseOrderings(*sessionsOrdering))
	case "violations":
		if err := violationsCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *violationsSession == "" {
			violationsCmd.Usage()
			return errHelp
		}
		id, err := uuid.Parse(*violationsSession)
		if err != nil {
			return fmt.Errorf("invalid session ID %q", *violationsSession)
		}
		return cli.listViolations(id, *violationsCSV)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) listSessions(filter *session.QueryFilter, ordering []core.DBOrdering) error {
	sessions, err := cli.sessSvc.QuerySessions(context.Background(), filter, ordering)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCANDIDATE\tSTATUS\tWARNINGS\tREASON\tSTARTED AT")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			s.ID, s.Candidate, s.Status, s.WarningCount, s.TerminationReason, s.StartedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func (cli *commandLine) listViolations(id uuid.UUID, asCSV bool) error {
	violations, err := cli.sessSvc.QueryViolations(context.Background(), id)
	if err != nil {
		return err
	}
	if asCSV {
		return session.WriteViolationsCSV(cli.out, violations)
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OCCURRED AT\tKIND\tWARNINGS")
	for _, v := range violations {
		fmt.Fprintf(w, "%s\t%s\t%d\n", v.OccurredAt.Format(time.RFC3339), v.Kind, v.WarningCount)
	}
	return w.Flush()
}
