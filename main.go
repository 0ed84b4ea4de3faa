package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ticketdesk/internal/analytics"
	analytics_api "ticketdesk/internal/analytics/api"
	"ticketdesk/internal/auth"
	"ticketdesk/internal/backup"
	"ticketdesk/internal/config"
	"ticketdesk/internal/kafka"
	"ticketdesk/internal/logger"
	"ticketdesk/internal/status"
	ticket_db "ticketdesk/internal/tickets/db"
	tickets "ticketdesk/internal/tickets/service"
	"ticketdesk/internal/tickets/ticket_api"
)

func openDatabase(ctx context.Context, path string, log *logger.Logger) *bun.DB {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open SQLite database: %v", err))
	}
	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to SQLite database: %v", err))
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := ticket_db.CreateSchema(ctx, bunDB); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to create schema: %v", err))
	}

	log.Info("DATABASE", "SQLite connection successful: "+path)
	return bunDB
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis unavailable, snapshot cache disabled: %v", err))
		client.Close()
		return nil
	}
	log.Info("REDIS", "Redis connection successful: "+cfg.Addr)
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting ticketdesk service")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()

	ctx := context.Background()
	bunDB := openDatabase(ctx, cfg.Database.SQLitePath, log)
	defer bunDB.Close()

	store := &ticket_db.DB{Bun: bunDB}
	if err := auth.EnsureDefaultUser(store, log); err != nil {
		log.Fatal("AUTH", fmt.Sprintf("Failed to seed default user: %v", err))
	}

	mapper := status.NewMapper(cfg.Status.Codes, cfg.Status.DisplayOverrides)

	var snapshots *analytics.SnapshotCache
	if cfg.Redis.Enabled {
		if redisClient := connectRedis(ctx, cfg.Redis, log); redisClient != nil {
			defer redisClient.Close()
			snapshots = analytics.NewSnapshotCache(redisClient, cfg.Redis.SnapshotTTL, log)
		}
	}

	var events tickets.EventPublisher
	if cfg.Kafka.Enabled {
		if !cfg.Kafka.MockMode {
			topics := []string{
				cfg.Kafka.Topics.TicketCreated,
				cfg.Kafka.Topics.TicketUpdated,
				cfg.Kafka.Topics.TicketDeleted,
			}
			if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, log); err != nil {
				log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
			}
		}
		producer := kafka.NewTicketEvents(cfg.Kafka, log)
		defer producer.Close()
		events = producer
		log.Info("KAFKA", "Ticket event producer initialized")
	}

	ticketService := tickets.NewTicketService(store, mapper, cfg.Settings, cfg.Status, events)
	analyticsService := analytics.NewService(bunDB, mapper, cfg.Status, cfg.Settings, snapshots)
	backupService := backup.NewService(store)

	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authHandler := auth.NewAuthHandler(store, issuer, log)
	ticketHandler := ticket_api.NewHandler(ticketService, backupService, cfg.Settings, mapper, snapshots, log)
	analyticsHandler := analytics_api.NewAnalyticsHandler(analyticsService, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(requestLogger(log))

	// --- Public Routes ---
	authHandler.RegisterRoutes(r)

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(issuer))
		r.Route("/api", func(r chi.Router) {
			ticketHandler.RegisterRoutes(r)
			analyticsHandler.RegisterRoutes(r)
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", "ticketdesk running on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "ticketdesk shutdown complete")
	}
}

// requestLogger writes one access line per handled request.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			log.LogAPI(r.Method, r.URL.Path, fmt.Sprintf("%d", recorder.status), time.Since(start).String())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
