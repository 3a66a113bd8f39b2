package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aqro/aqro-server/config"
	"github.com/aqro/aqro-server/database"
	"github.com/aqro/aqro-server/database/dbhelper"
	"github.com/aqro/aqro-server/engine"
	"github.com/aqro/aqro-server/handlers"
	"github.com/aqro/aqro-server/notifier"
	"github.com/aqro/aqro-server/server"
)

const shutdownTimeOut = 10 * time.Second

func main() {
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	config.Init()

	if err := database.ConnectAndMigrate(); err != nil {
		logrus.Panicf("failed to initialize database, error: %v", err)
	}
	logrus.Println("migration is successful")

	webhook := notifier.NewWebhook(config.WebhookURL())

	store := dbhelper.NewStore()
	handlers.Init(engine.New(store, store, webhook))

	svr := server.SetupRoutes()
	go func() {
		if err := svr.Run(config.Port()); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Panic("server stopped unexpectedly")
		}
	}()
	logrus.Printf("server listening on %s", config.Port())

	<-done

	logrus.Info("shutting down...")
	if err := svr.Shutdown(shutdownTimeOut); err != nil {
		logrus.WithError(err).Error("failed to shut down server cleanly!")
	}
	webhook.Close()
	if err := database.ShutdownDatabase(); err != nil {
		logrus.WithError(err).Error("failed to close database connection!")
	}

	logrus.Info("system is shut ..zzz")
}
