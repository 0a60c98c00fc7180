package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/ubao/apps/api/echo"
	"github.com/trezcool/ubao/core"
	"github.com/trezcool/ubao/core/aigen"
	"github.com/trezcool/ubao/core/content"
	"github.com/trezcool/ubao/core/roster"
	"github.com/trezcool/ubao/core/session"
	"github.com/trezcool/ubao/core/student"
	"github.com/trezcool/ubao/core/teacher"
	appfs "github.com/trezcool/ubao/fs"
	emailsvc "github.com/trezcool/ubao/services/email"
	logsvc "github.com/trezcool/ubao/services/logger"
	"github.com/trezcool/ubao/storage/cache"
	"github.com/trezcool/ubao/storage/database"
	"github.com/trezcool/ubao/storage/document"
	inmemstore "github.com/trezcool/ubao/storage/document/inmem"
	pgstore "github.com/trezcool/ubao/storage/document/postgres"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up the document store
	store, closeStore, err := setUpStore(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up document store: %v", err), err)
	}
	defer func() {
		if err = closeStore(); err != nil {
			logger.Error(fmt.Sprintf("closing document store: %v", err), err)
		}
	}()

	// set up the session cache
	cch, err := setUpCache(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up cache: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	teacherSvc := teacher.NewService(teacher.NewGoogleVerifier(conf))
	sessionSvc := session.NewService(store, cch, conf, logger)
	contentSvc := content.NewService(store, logger)
	resolver := student.NewResolver(sessionSvc, contentSvc, conf, logger)
	rosterSvc := roster.NewService(store, nil)
	aiClient := aigen.NewClient(conf, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	core.ParseEmailTemplates(appfs.FS, conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			TeacherSvc: teacherSvc,
			SessionSvc: sessionSvc,
			ContentSvc: contentSvc,
			Resolver:   resolver,
			RosterSvc:  rosterSvc,
			AIClient:   aiClient,
			EmailSvc:   mailSvc,
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
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpStore opens the configured document store, wrapped with the
// transient-failure retry policy.
func setUpStore(conf *core.Config, logger core.Logger) (document.Store, func() error, error) {
	if conf.Database.Engine == "memory" {
		store := inmemstore.NewStore()
		return document.WithRetry(store, conf.Store.MaxRetries, conf.Store.RetryDelay), store.Close, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, nil, err
	}
	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	store := pgstore.NewStore(db, database.DSN(conf.Database.Name, false, conf), logger)
	return document.WithRetry(store, conf.Store.MaxRetries, conf.Store.RetryDelay), store.Close, nil
}

func setUpCache(conf *core.Config) (cache.Cache, error) {
	if conf.Redis.Enabled {
		return cache.NewRedisCache(context.Background(), conf)
	}
	return cache.NewMemCache(), nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
