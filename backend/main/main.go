package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cleanstreet/backend/auth"
	"cleanstreet/backend/cache"
	"cleanstreet/backend/config"
	"cleanstreet/backend/db"
	"cleanstreet/backend/email"
	"cleanstreet/backend/metrics"
	"cleanstreet/backend/notify"
	"cleanstreet/backend/rabbitmq"
	"cleanstreet/backend/server"
	"cleanstreet/backend/storage"
	"cleanstreet/common"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

var (
	port = flag.String("port", "", "HTTP port, overrides PORT")
)

type closer interface {
	notify.Notifier
	Close(ctx context.Context) error
}

func main() {
	flag.Parse()
	cfg := config.Load()
	if *port != "" {
		cfg.Port = *port
	}

	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	log.Info("Starting CleanStreet backend")

	ctx := context.Background()
	conn, err := common.DBConnect(cfg.MySQLDSN())
	if err != nil {
		log.Fatalf("Failed to connect to the database: %v", err)
	}
	defer conn.Close()
	if err := db.InitSchema(ctx, conn); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}
	metrics.Register()

	store, err := storage.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to set up photo storage: %v", err)
	}

	var stats *cache.StatsCache
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warnf("Statistics cache disabled: %v", err)
		} else {
			defer rdb.Close()
			stats = cache.New(rdb, cfg.StatsCacheTTL)
		}
	}

	mailer := email.NewMailer(cfg.SendGridAPIKey, cfg.FromName, cfg.FromEmail)
	if !mailer.Configured() {
		log.Warn("SENDGRID_API_KEY is not set, emails will not be sent")
	}

	var notifier closer
	if cfg.AMQPURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.NotifyExchange, cfg.NotifyRoutingKey)
		if err != nil {
			log.Fatalf("Failed to create notification publisher: %v", err)
		}
		notifier = notify.NewQueueNotifier(pub)
		log.Infof("Notifications are queued on exchange %s", cfg.NotifyExchange)
	} else {
		notifier = notify.NewAsyncNotifier(mailer, cfg.NotifyWorkers, cfg.NotifyMaxRetries, time.Second)
		log.Info("Notifications are delivered in process")
	}

	srv := server.New(cfg, server.Deps{
		DB:       conn,
		Tokens:   auth.NewTokens(cfg.JWTSecret, cfg.JWTExpiry),
		Notifier: notifier,
		Mailer:   mailer,
		Storage:  store,
		Cache:    stats,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Listening on port %s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}
	if err := notifier.Close(shutdownCtx); err != nil {
		log.Errorf("Failed to drain notifications: %v", err)
	}
	log.Info("Bye")
}
