package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/sync/errgroup"

	_ "github.com/fkhayef/tourneyhub/docs"
	"github.com/fkhayef/tourneyhub/internal/access"
	"github.com/fkhayef/tourneyhub/internal/channel"
	"github.com/fkhayef/tourneyhub/internal/community"
	"github.com/fkhayef/tourneyhub/internal/config"
	"github.com/fkhayef/tourneyhub/internal/database"
	"github.com/fkhayef/tourneyhub/internal/events"
	"github.com/fkhayef/tourneyhub/internal/invitation"
	"github.com/fkhayef/tourneyhub/internal/member"
	"github.com/fkhayef/tourneyhub/internal/mention"
	"github.com/fkhayef/tourneyhub/internal/moderation"
	"github.com/fkhayef/tourneyhub/internal/notification"
	"github.com/fkhayef/tourneyhub/internal/presence"
	"github.com/fkhayef/tourneyhub/internal/role"
	"github.com/fkhayef/tourneyhub/internal/store"
	"github.com/fkhayef/tourneyhub/internal/store/redisstore"
	"github.com/fkhayef/tourneyhub/internal/store/sqlstore"
	"github.com/fkhayef/tourneyhub/internal/ticket"
	mw "github.com/fkhayef/tourneyhub/pkg/middleware"
)

const (
	retries = 32
	backoff = 5 * time.Millisecond
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.Environment}); err != nil {
			return fmt.Errorf("failed to init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	backend, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.close()
	logger.Info("store ready", "backend", cfg.StoreBackend)

	var tracker presence.Tracker = presence.NewLocalTracker(cfg.PresenceWindow)
	if backend.redis != nil {
		tracker = presence.NewRedisTracker(backend.redis, cfg.PresenceWindow)
	}

	s := backend.store
	timeout := cfg.OperationTimeout

	notificationService := notification.NewService(logger, notification.NewRepository(s), notification.Config{
		Timeout: timeout,
		Retries: retries,
		Backoff: backoff,
	})

	// Events go to the broker and to the users' inboxes
	var broker events.Publisher = events.NewLogPublisher(logger)
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(events.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
		if err != nil {
			return err
		}
		broker = kp
	}
	publisher := events.Fanout{broker, notification.NewInbox(notificationService)}
	defer publisher.Close()

	// Repositories
	roleRepo := role.NewRepository(s)
	channelRepo := channel.NewRepository(s)
	memberRepo := member.NewRepository(s)
	invitationRepo := invitation.NewRepository(s)
	ticketRepo := ticket.NewRepository(s)
	moderationRepo := moderation.NewRepository(s)

	authz := access.NewAuthorizer(roleRepo, channelRepo, memberRepo)

	// Services
	communityService := community.NewService(logger, s, roleRepo, channelRepo, memberRepo, authz, community.Config{Timeout: timeout})
	roleService := role.NewService(logger, roleRepo, memberRepo, authz, role.Config{Timeout: timeout, Retries: retries, Backoff: backoff})
	channelService := channel.NewService(logger, channelRepo, roleRepo, authz, channel.Config{Timeout: timeout, Retries: retries, Backoff: backoff})
	invitationService := invitation.NewService(logger, invitationRepo, roleRepo, memberRepo, authz, invitation.Config{
		Timeout:           timeout,
		RedeemMaxAttempts: cfg.RedeemMaxAttempts,
		Backoff:           backoff,
	})
	ticketService := ticket.NewService(logger, ticketRepo, authz, ticket.Config{Timeout: timeout, Retries: retries, Backoff: backoff})
	moderationEngine := moderation.NewEngine(logger, moderationRepo, memberRepo, roleRepo, authz, moderation.Config{
		Timeout:       timeout,
		Retries:       retries,
		Backoff:       backoff,
		WarnThreshold: cfg.WarnThreshold,
	})
	mentionService := mention.NewService(logger, memberRepo, roleRepo, tracker, authz, publisher, mention.Config{
		Timeout:              timeout,
		MassMentionThreshold: cfg.MassMentionThreshold,
	})

	// Handlers
	communityHandler := community.NewHandler(communityService)
	roleHandler := role.NewHandler(roleService)
	channelHandler := channel.NewHandler(channelService)
	invitationHandler := invitation.NewHandler(invitationService)
	ticketHandler := ticket.NewHandler(ticketService)
	moderationHandler := moderation.NewHandler(moderationEngine)
	mentionHandler := mention.NewHandler(mentionService)
	presenceHandler := presence.NewHandler(tracker, authz, timeout)
	notificationHandler := notification.NewHandler(notificationService)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.IsDevelopment() {
			r.Use(mw.TestUserMiddleware)
		} else {
			r.Use(mw.AuthMiddleware([]byte(cfg.JWTSecret)))
		}

		r.Mount("/communities", communityHandler.Routes(func(r chi.Router) {
			r.Mount("/roles", roleHandler.Routes())
			r.Mount("/channels", channelHandler.Routes())
			r.Mount("/invitations", invitationHandler.Routes())
			r.Mount("/tickets", ticketHandler.Routes())
			r.Mount("/moderation", moderationHandler.Routes())
			r.Mount("/mentions", mentionHandler.Routes())
			r.Mount("/presence", presenceHandler.Routes())
		}))
		r.Mount("/invitations", invitationHandler.PublicRoutes())
		r.Mount("/notifications", notificationHandler.Routes())
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return moderation.NewSweeper(logger, moderationEngine, cfg.SanctionSweepInterval).Run(gctx)
	})
	g.Go(func() error {
		relay := events.NewRelay(logger, s, publisher, timeout,
			moderation.Collection, ticket.Collection, invitation.UsageCollection)
		return relay.Run(gctx)
	})
	return g.Wait()
}

type storeBackend struct {
	store store.Store
	redis *redis.Client
	close func()
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storeBackend, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := database.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s := sqlstore.New(db)
		if err := s.Listen(ctx, cfg.DatabaseURL, logger); err != nil {
			db.Close()
			return nil, err
		}
		return &storeBackend{store: s, close: func() { db.Close() }}, nil

	case config.BackendSQLite:
		db, err := database.NewSQLiteConnection(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &storeBackend{store: sqlstore.New(db), close: func() { db.Close() }}, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return &storeBackend{store: redisstore.New(client), redis: client, close: func() { client.Close() }}, nil

	default:
		return &storeBackend{store: store.NewMemory(), close: func() {}}, nil
	}
}
