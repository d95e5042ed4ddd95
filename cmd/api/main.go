package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/Methdul/newkingdom/internal/api/http"
	"github.com/Methdul/newkingdom/internal/api/http/handlers"
	"github.com/Methdul/newkingdom/internal/auth"
	"github.com/Methdul/newkingdom/internal/config"
	"github.com/Methdul/newkingdom/internal/events"
	"github.com/Methdul/newkingdom/internal/observability"
	"github.com/Methdul/newkingdom/internal/persistence"
	"github.com/Methdul/newkingdom/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	audit := observability.NewAuditSink(logger, metrics, dispatcher)
	audit.Start(ctx)

	pool := pg.PoolHandle()
	staffRepo := repository.NewStaffProfileRepository(pool)
	memberProfileRepo := repository.NewMemberProfileRepository(pool)
	memberRepo := repository.NewMemberRepository(pool)
	sessionRepo := repository.NewSessionRepository(redis.Client)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	resolver := auth.NewResolver(
		auth.NewTokenVerifier(tokens),
		staffRepo,
		memberProfileRepo,
		dispatcher,
		auth.ResolverConfig{
			CookieName:        cfg.Auth.CookieName,
			CustomTokenHeader: cfg.Auth.CustomTokenHeader,
			VerifierTimeout:   cfg.Auth.VerifierTimeout(),
		},
	)
	sessions := auth.NewSessionManager(tokens, staffRepo, memberProfileRepo, sessionRepo, dispatcher, cfg.Auth.RefreshTokenTTL(), cfg.Auth.BcryptCost)
	policy := auth.NewPolicy(dispatcher)
	rateLimiter := auth.NewRateLimiter(auth.NewMemoryLimiter(), cfg.RateLimit, dispatcher)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:    handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:      handlers.NewAuthHandler(sessions),
		Members:   handlers.NewMembersHandler(memberRepo, memberProfileRepo),
		Resolver:  resolver,
		Policy:    policy,
		RateLimit: rateLimiter,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	cancel()
	audit.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
