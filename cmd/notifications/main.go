package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sapliy/notification-center/internal/notification"
	"github.com/sapliy/notification-center/internal/policy"
	"github.com/sapliy/notification-center/pkg/config"
	"github.com/sapliy/notification-center/pkg/database"
	"github.com/sapliy/notification-center/pkg/jsonutil"
	"github.com/sapliy/notification-center/pkg/messaging"
	"github.com/sapliy/notification-center/pkg/observability"
)

func main() {
	logger := observability.NewLogger("notifications")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	schema, err := os.ReadFile(cfg.SchemaPath)
	if err != nil {
		logger.Warn("failed to read schema file", "path", cfg.SchemaPath, "error", err)
	} else if _, err := db.Exec(string(schema)); err != nil {
		logger.Error("schema migration failed", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis connection failed, count caching disabled", "error", err)
		rdb = nil
	}

	shutdown, err := observability.InitTracer(context.Background(), observability.Config{
		ServiceName:    "notifications",
		ServiceVersion: "0.1.0",
		Endpoint:       cfg.OTLPEndpoint,
		Environment:    cfg.Environment,
	})
	if err != nil {
		logger.Warn("failed to init tracer", "error", err)
	} else {
		defer shutdown(context.Background())
	}

	hub := notification.NewHub(logger)
	announcers := notification.MultiAnnouncer{hub}

	var rabbit *messaging.Client
	rabbit, err = messaging.NewClient(messaging.DefaultConfig(cfg.RabbitURL))
	if err != nil {
		logger.Warn("rabbitmq connection failed, queue ingest disabled", "error", err)
		rabbit = nil
	} else {
		defer rabbit.Close()
		if _, err := rabbit.DeclareQueueWithDLQ(notification.DispatchQueue); err != nil {
			logger.Warn("failed to declare dispatch queue", "error", err)
		}
		// The announce queue only exists for multi-instance deployments;
		// declaring it without a consumer would let messages pile up.
		if cfg.PublishAnnounce || cfg.ConsumeAnnounce {
			if _, err := rabbit.DeclareQueue(notification.AnnounceQueue); err != nil {
				logger.Warn("failed to declare announce queue", "error", err)
			}
		}
		if cfg.PublishAnnounce {
			announcers = append(announcers, notification.NewAMQPAnnouncer(rabbit, notification.AnnounceQueue, logger))
		}
	}

	repo := notification.NewPostgresRepository(db)
	svc := notification.NewService(repo, announcers, rdb, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if rabbit != nil {
		consumer := notification.NewConsumer(svc, hub, logger)
		go func() {
			if err := rabbit.Consume(ctx, notification.DispatchQueue, consumer.HandleDispatch); err != nil && err != context.Canceled {
				logger.Error("dispatch consumer stopped", "error", err)
			}
		}()
		if cfg.ConsumeAnnounce {
			go func() {
				if err := rabbit.Consume(ctx, notification.AnnounceQueue, consumer.HandleAnnounce); err != nil && err != context.Canceled {
					logger.Error("announce consumer stopped", "error", err)
				}
			}()
		}
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		jsonutil.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "active",
			"service": "notifications",
		})
	})
	router.Handle("/metrics", promhttp.Handler())

	handler := notification.NewHandler(svc, hub, policy.NewHardcodedEngine(), logger)
	handler.Register(router, cfg.JWTSecret)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      otelhttp.NewHandler(router, "notifications"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("notifications service listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
