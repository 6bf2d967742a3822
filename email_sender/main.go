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

	"cleanstreet/backend/config"
	"cleanstreet/backend/email"
	"cleanstreet/backend/metrics"
	"cleanstreet/backend/notify"
	"cleanstreet/backend/rabbitmq"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsAddr = flag.String("metrics_addr", ":9091", "Address serving /metrics, empty to disable")
	retryDelay  = flag.Duration("retry_delay", 10*time.Second, "Delay before a failed email is retried")
)

func main() {
	flag.Parse()
	cfg := config.Load()
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.AMQPURL == "" {
		log.Fatal("AMQP_URL is required")
	}
	metrics.Register()

	mailer := email.NewMailer(cfg.SendGridAPIKey, cfg.FromName, cfg.FromEmail)
	if !mailer.Configured() {
		log.Warn("SENDGRID_API_KEY is not set, notifications will be skipped")
	}

	sub, err := rabbitmq.NewSubscriber(cfg.AMQPURL, cfg.NotifyExchange, cfg.NotifyQueue,
		cfg.NotifyWorkers, cfg.NotifyMaxRetries, *retryDelay)
	if err != nil {
		log.Fatalf("Failed to create subscriber: %v", err)
	}
	sub.Start(map[string]rabbitmq.CallbackFunc{
		cfg.NotifyRoutingKey: notify.Handler(mailer),
	})
	log.Infof("Email sender consuming %s on %s", cfg.NotifyRoutingKey, cfg.NotifyQueue)

	var metricsServer *http.Server
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("Metrics server stopped: %v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down email sender")

	if err := sub.Close(); err != nil {
		log.Errorf("Failed to close subscriber: %v", err)
	}
	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsServer.Shutdown(ctx)
	}
}
