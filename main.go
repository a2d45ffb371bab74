package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"telemed-server/internal/accounts"
	"telemed-server/internal/config"
	"telemed-server/internal/handlers"
	"telemed-server/internal/logger"
	"telemed-server/internal/metrics"
	"telemed-server/internal/middleware"
	"telemed-server/internal/models"
	redisclient "telemed-server/internal/redis"
	"telemed-server/internal/routes"
	"telemed-server/internal/scheduling"
	"telemed-server/internal/storage"
	"telemed-server/internal/video"
)

func main() {
	// A missing .env is fine when the environment is set directly
	envErr := godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	if envErr != nil {
		log.WithError(envErr).Warn("no .env file loaded")
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := models.InitDB(models.DatabaseConfig{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Debug:  cfg.Environment == "development",
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	defer sqlDB.Close()

	// Redis is optional: without it bookings rely on row locks and the
	// exclusion constraint alone
	var (
		locker  redisclient.Locker = redisclient.NoopLocker{}
		rdbPing redis.Cmdable
	)
	if cfg.Redis.Enabled() {
		rdb, err := redisclient.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Username, cfg.Redis.Password)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, booking lock disabled")
		} else {
			defer rdb.Close()
			locker = redisclient.NewRedisDoctorLocker(rdb, cfg.Redis.LockTTL, log)
			rdbPing = rdb
		}
	}

	var store storage.Store
	if cfg.Storage.Bucket != "" {
		s3Store, err := storage.NewS3Store(ctx, cfg.Storage.Bucket, cfg.Storage.Region)
		if err != nil {
			return fmt.Errorf("init document storage: %w", err)
		}
		store = s3Store
	} else {
		log.Warn("S3_BUCKET not set, doctor document upload disabled")
	}

	var provider video.Provider
	if cfg.Video.APIKey != "" {
		provider = video.NewDailyClient(cfg.Video)
	} else {
		log.Warn("DAILY_API_KEY not set, video room creation disabled")
	}

	accountService := accounts.NewService(accounts.NewGormRepository(db), store, cfg, log)
	scheduler := scheduling.NewService(scheduling.NewGormRepository(db), locker, log, cfg.Scheduling)
	rooms := video.NewService(video.NewGormRepository(db), provider, log, cfg.Video.RoomTTL)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.RequestID(), middleware.Logging(log), metrics.Middleware())

	routes.SetupRoutes(router, routes.Handlers{
		Auth:         handlers.NewAuthHandler(accountService, cfg),
		Users:        handlers.NewUserHandler(accountService),
		Appointments: handlers.NewAppointmentHandler(scheduler),
		VideoRooms:   handlers.NewVideoRoomHandler(rooms),
		Health:       handlers.NewHealthHandler(sqlDB, rdbPing, cfg.Environment),
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "env": cfg.Environment}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
