package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"boopsite/internal/client"
	"boopsite/internal/client/cli"
	"boopsite/internal/config"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := client.OpenSessionDB(ctx, cfg.Client.SessionPath)
	if err != nil {
		logger.Fatalf("open session store: %v", err)
	}
	defer db.Close()

	anon := client.NewAPIClient(cfg.Client.BaseURL, nil)
	store, err := client.NewSessionStore(ctx, client.NewMetadataRepository(db), anon)
	if err != nil {
		logger.Fatalf("load session: %v", err)
	}

	app := cli.NewApp(store, anon.WithTokenSource(store), os.Stdin, os.Stdout)
	if err := app.Run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			db.Close()
			os.Exit(2)
		}
		logger.Error(err)
		db.Close()
		os.Exit(1)
	}
}
