package main

import (
	"log"
	"os"

	"github.com/trezcool/evaledge/core"
	"github.com/trezcool/evaledge/core/session"
	logsvc "github.com/trezcool/evaledge/services/logger"
	"github.com/trezcool/evaledge/storage/database"
	sqlxrepos "github.com/trezcool/evaledge/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	if !conf.Database.Enabled() {
		logger.Fatal("no database configured: set the DATABASE_ENGINE and DATABASE_NAME variables")
	}

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(err.Error(), err)
	}

	// start CLI
	cli := commandLine{
		conf: conf,
		db:   db,
		out:  os.Stdout,
		sessSvc: session.NewService(conf, session.Deps{
			Repo:   sqlxrepos.NewSessionRepository(db, conf.Database.Engine),
			Logger: logger,
		}),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("error: "+err.Error(), err)
		}
		os.Exit(1)
	}
}
