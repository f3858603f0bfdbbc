package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/evaledge/apps/api/echo"
	"github.com/trezcool/evaledge/core"
	"github.com/trezcool/evaledge/core/session"
	emailsvc "github.com/trezcool/evaledge/services/email"
	"github.com/trezcool/evaledge/services/executor"
	logsvc "github.com/trezcool/evaledge/services/logger"
	"github.com/trezcool/evaledge/services/monitor"
	"github.com/trezcool/evaledge/services/verify"
	"github.com/trezcool/evaledge/storage/database"
	inmemdb "github.com/trezcool/evaledge/storage/database/inmem"
	sqlxrepos "github.com/trezcool/evaledge/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up storage: sessions live in memory when no database is configured
	var sessRepo session.Repository
	if conf.Database.Enabled() {
		db, err := database.Setup(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err = db.Close(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		sessRepo = sqlxrepos.NewSessionRepository(db, conf.Database.Engine)
	} else {
		dbLogger.Warn("no database configured: sessions are kept in memory")
		sessRepo = inmemdb.NewSessionRepository(inmemdb.Open())
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(
			log.New(os.Stdout, "", 0),
			logger,
			conf,
		)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger, conf)
	}
	sessSvc := session.NewService(conf, session.Deps{
		Repo:     sessRepo,
		Backend:  executor.New(conf.Services.ExecutorURL, conf.Services.Timeout),
		Monitor:  monitor.New(conf.Services.MonitorURL, conf.Services.Timeout),
		Verifier: verify.New(conf.Services.VerifyURL, conf.Services.Timeout),
		Mailer:   mailSvc,
		Logger:   logger,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.Publish("live_sessions", expvar.Func(func() interface{} { return sessSvc.Live() }))

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			SessionSvc: sessSvc,
			Validate:   validate,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load, then abandoning the open sessions
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
