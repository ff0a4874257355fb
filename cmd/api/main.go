package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/izumi-lms/izumi-api/internal/config"
	"github.com/izumi-lms/izumi-api/internal/database"
	"github.com/izumi-lms/izumi-api/internal/handler"
	"github.com/izumi-lms/izumi-api/internal/middleware"
	"github.com/izumi-lms/izumi-api/internal/repository"
	"github.com/izumi-lms/izumi-api/internal/router"
	"github.com/izumi-lms/izumi-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	ctx := context.Background()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not configured; caches and leaderboard mirror disabled")
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	pointsRepo := repository.NewPointsRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	loginAuditRepo := repository.NewLoginAuditRepository(db)
	analyticsRepo := repository.NewAdminAnalyticsRepository(db)

	limiter := newLoginLimiter(cfg, redisClient, loginAuditRepo, logger)
	signer := func(userID uint, role string) (string, time.Time, error) {
		return middleware.GenerateToken(cfg.JWTSecret, userID, role, cfg.JWTTTL, time.Now().UTC())
	}

	contentValidator, err := service.NewModuleContentValidator()
	if err != nil {
		log.Fatalf("failed to compile module content schemas: %v", err)
	}

	activityService := service.NewActivityService(activityRepo, loginAuditRepo, logger)
	authService := service.NewAuthService(userRepo, limiter, signer, validate, logger)
	courseService := service.NewCourseService(courseRepo, contentValidator, redisClient, cfg.CatalogCacheTTL, validate, activityService, logger)
	gamificationService := service.NewGamificationService(pointsRepo, redisClient, cfg.LeaderboardKey, logger)
	events := service.NewProgressEventPublisher(natsConn, redisClient, cfg.EventSubjectBase, logger)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, courseRepo, userRepo, gamificationService, events, validate, logger)
	questionService := service.NewQuestionService(questionRepo, courseRepo, enrollmentRepo, validate, logger)
	adminUserService := service.NewAdminUserService(userRepo, validate, activityService, logger)
	analyticsService := service.NewAdminAnalyticsService(analyticsRepo, loginAuditRepo, redisClient, cfg.AnalyticsCacheTTL, logger)

	if cfg.AdminEmail != "" {
		if err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Fatalf("failed to seed admin account: %v", err)
		}
	}
	if err := gamificationService.SyncLeaderboard(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to seed leaderboard")
	}

	probes := []handler.HealthProbe{{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if redisClient != nil {
		probes = append(probes, handler.HealthProbe{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:           &logger,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:        cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:           handler.NewAuthHandler(authService, logger),
		CourseHandler:         handler.NewCourseHandler(courseService, logger),
		EnrollmentHandler:     handler.NewEnrollmentHandler(enrollmentService, logger),
		QuestionHandler:       handler.NewQuestionHandler(questionService, logger),
		GamificationHandler:   handler.NewGamificationHandler(gamificationService, logger),
		AdminUserHandler:      handler.NewAdminUserHandler(adminUserService, logger),
		AdminActivityHandler:  handler.NewAdminActivityHandler(activityService, logger),
		AdminAnalyticsHandler: handler.NewAdminAnalyticsHandler(analyticsService, logger),
		HealthProbes:          probes,
		JWTMiddleware:         middleware.JWTProtected(cfg.JWTSecret),
		OptionalJWTMiddleware: middleware.JWTOptional(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, logger)
}

func newLoginLimiter(cfg config.Config, redisClient *redis.Client, audits repository.LoginAuditRepository, logger zerolog.Logger) *service.LoginLimiter {
	limiterCfg := service.LoginLimiterConfig{
		MaxAttempts: cfg.LimiterMaxAttempts,
		BlockWindow: cfg.LimiterBlockWindow,
	}

	switch cfg.LimiterBackend {
	case config.LimiterBackendRedis:
		if redisClient == nil {
			log.Fatalf("limiter backend %q requires a redis url", cfg.LimiterBackend)
		}
		return service.NewLoginLimiter(service.NewRedisAttemptStore(redisClient, ""), audits, limiterCfg, logger)
	case config.LimiterBackendMemory:
		logger.Warn().Msg("login limiter uses process memory; attempts are not shared between instances")
		return service.NewLoginLimiter(service.NewMemoryAttemptStore(), audits, limiterCfg, logger)
	default:
		logger.Warn().Msg("login limiter disabled; failed logins are audited but never throttled")
		return service.NewLoginLimiter(nil, audits, limiterCfg, logger)
	}
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
