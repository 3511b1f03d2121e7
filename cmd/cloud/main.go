// Command cloud runs the NetsBlox Cloud network topology and message
// routing service: the Topology Engine (C6), Project Lifecycle Service
// (C7), Collaboration Invites (C8) and the HTTP/WebSocket surface in front
// of them.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/netsblox/cloud/internal/apiserver"
	"github.com/netsblox/cloud/internal/auth"
	"github.com/netsblox/cloud/internal/bus"
	"github.com/netsblox/cloud/internal/config"
	"github.com/netsblox/cloud/internal/health"
	"github.com/netsblox/cloud/internal/invites"
	"github.com/netsblox/cloud/internal/logging"
	"github.com/netsblox/cloud/internal/network"
	"github.com/netsblox/cloud/internal/project"
	"github.com/netsblox/cloud/internal/ratelimit"
	"github.com/netsblox/cloud/internal/store"
	"github.com/netsblox/cloud/internal/tracing"
)

func main() {
	envPaths := []string{".env", "../../.env", "../.env"}
	var envLoaded bool
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		slog.Warn("no .env file found in any expected location, relying on environment variables")
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if collector := os.Getenv("OTEL_COLLECTOR_ADDR"); collector != "" {
		tp, err := tracing.InitTracer(ctx, "netsblox-cloud", collector)
		if err != nil {
			slog.Warn("failed to initialize tracer, continuing without tracing", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					slog.Warn("error shutting down tracer provider", "error", err)
				}
			}()
		}
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		slog.Error("failed to connect to mongo", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(shutdownCtx); err != nil {
			slog.Warn("error disconnecting mongo client", "error", err)
		}
	}()

	projectStore := store.NewProjectStoreWithClient(mongoClient, cfg.MongoDatabase)
	inviteStore := store.NewInviteStore(mongoClient, cfg.MongoDatabase)

	blobStore, err := store.NewBlobStore(ctx, cfg.S3Bucket, cfg.S3Region)
	if err != nil {
		slog.Error("failed to initialize blob store", "error", err)
		os.Exit(1)
	}

	var redisSvc *bus.Service
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisSvc, err = bus.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			slog.Error("failed to initialize redis", "error", err)
			os.Exit(1)
		}
		redisClient = redisSvc.Client()
		defer func() {
			if err := redisSvc.Close(); err != nil {
				slog.Warn("error closing redis client", "error", err)
			}
		}()
	}

	limiter, err := ratelimit.NewRateLimiter(cfg, redisClient)
	if err != nil {
		slog.Error("failed to initialize rate limiter", "error", err)
		os.Exit(1)
	}

	resolver := network.NewResolver(projectStore, redisSvc)
	engine := network.NewEngine(resolver, projectStore, cfg.BrokenCooldown)
	engineCtx, stopEngine := context.WithCancel(ctx)
	defer stopEngine()
	go engine.Run(engineCtx)

	projectSvc := project.NewService(projectStore, blobStore, engine, cfg.ProjectCacheCapacity)
	inviteSvc := invites.NewService(inviteStore, projectStore, engine)

	var validator auth.TokenValidator
	if cfg.SkipAuth {
		slog.Warn("authentication disabled, do not use in production")
		validator = &auth.MockValidator{}
	} else {
		if cfg.Auth0Domain == "" || cfg.Auth0Audience == "" {
			slog.Error("AUTH0_DOMAIN and AUTH0_AUDIENCE must be set when SKIP_AUTH=false")
			os.Exit(1)
		}
		v, err := auth.NewValidator(ctx, cfg.Auth0Domain, cfg.Auth0Audience)
		if err != nil {
			slog.Error("failed to create auth validator", "error", err)
			os.Exit(1)
		}
		validator = v
	}

	allowedOrigins := auth.GetAllowedOriginsFromEnv("ALLOWED_ORIGINS", []string{"http://localhost:8080"})
	hub := network.NewHub(engine, validator, limiter, allowedOrigins)

	healthHandler := health.NewHandler(redisSvc, projectStore, blobStore)

	router := apiserver.NewRouter(apiserver.Deps{
		Validator:      validator,
		Limiter:        limiter,
		Health:         healthHandler,
		Projects:       projectSvc,
		Invites:        inviteSvc,
		Hub:            hub,
		AllowedOrigins: allowedOrigins,
		CloudURL:       cfg.CloudURL,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		slog.Info("cloud service starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	stopEngine()
	slog.Info("server exiting")
}
