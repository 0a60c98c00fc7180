package main

import (
	"context"
	"log"
	"os"

	"github.com/trezcool/ubao/core"
	"github.com/trezcool/ubao/core/session"
	"github.com/trezcool/ubao/storage/cache"
	"github.com/trezcool/ubao/storage/database"
	"github.com/trezcool/ubao/storage/document"
	inmemstore "github.com/trezcool/ubao/storage/document/inmem"
	pgstore "github.com/trezcool/ubao/storage/document/postgres"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()
	appLogger := core.NewStdLogger(logger)

	cli := commandLine{conf: conf}

	// set up the document store
	var store document.Store
	if conf.Database.Engine == "memory" {
		store = inmemstore.NewStore()
	} else {
		errAndDie(database.CreateIfNotExist(conf))
		db, err := database.Open(conf)
		errAndDie(err)
		defer db.Close()
		cli.db = db.DB
		store = pgstore.NewStore(db, database.DSN(conf.Database.Name, false, conf), appLogger)
	}
	// deactivation must invalidate the cache the API server resolves from,
	// so the CLI talks to the same shared cache when one is configured
	var cch cache.Cache
	if conf.Redis.Enabled {
		var err error
		cch, err = cache.NewRedisCache(context.Background(), conf)
		errAndDie(err)
	} else {
		cch = cache.NewMemCache()
	}
	cli.sessionSvc = session.NewService(store, cch, conf, appLogger)

	// start CLI
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
