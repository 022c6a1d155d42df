package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carmarket/backend/internal/auth"
	"github.com/carmarket/backend/internal/config"
	"github.com/carmarket/backend/internal/handlers"
	"github.com/carmarket/backend/internal/logging"
	"github.com/carmarket/backend/internal/media"
	"github.com/carmarket/backend/internal/ratelimit"
	"github.com/carmarket/backend/internal/services"
	"github.com/carmarket/backend/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open store")
	}
	defer store.Close()

	gateway, uploadDir, err := openMedia(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize media gateway")
	}

	limiter, err := authLimiter(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize rate limiter")
	}
	if closer, ok := limiter.(io.Closer); ok {
		defer closer.Close()
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiration)
	router := handlers.NewRouter(handlers.RouterConfig{
		Cars:        services.NewCarService(store, gateway, cfg.Catalog(), cfg.MediaFolder),
		Users:       services.NewUserService(store, gateway, tokens),
		Wishlist:    services.NewWishlistService(store),
		Tokens:      tokens,
		Store:       store,
		AuthLimiter: limiter,
		UploadDir:   uploadDir,
		Options: handlers.Options{
			Production:    cfg.IsProduction(),
			MaxImageBytes: cfg.MaxUploadBytes(),
		},
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithFields(logrus.Fields{
			"addr":  cfg.ServerAddress,
			"store": cfg.StoreDriver,
			"media": cfg.MediaDriver,
			"env":   cfg.AppEnv,
		}).Info("car marketplace API starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("graceful shutdown failed")
	}
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		return storage.OpenPostgres(cfg.DatabaseURL)
	case "sqlite":
		return storage.OpenSQLite(cfg.DatabaseURL)
	case "mongo":
		return storage.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
	case "memory":
		if cfg.DataDir == "" {
			return storage.NewMemoryStore(), nil
		}
		snapshot, err := storage.NewSnapshotFile(cfg.DataDir, "store.json")
		if err != nil {
			return nil, err
		}
		return storage.NewPersistentMemoryStore(snapshot)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// openMedia returns the gateway and, for local storage, the directory the
// router should serve under /uploads/.
func openMedia(ctx context.Context, cfg *config.Config) (media.Gateway, string, error) {
	switch cfg.MediaDriver {
	case "local":
		gw, err := media.NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, "", err
		}
		return gw, gw.Dir(), nil
	case "minio":
		gw, err := media.NewMinioStore(ctx, media.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		return gw, "", err
	case "firebase":
		gw, err := media.NewFirebaseStore(ctx, media.FirebaseConfig{
			Bucket:          cfg.FirebaseStorageBucket,
			CredentialsJSON: cfg.FirebaseCredentialsJSON,
			Moderate:        cfg.MediaModeration,
		})
		return gw, "", err
	}
	return nil, "", fmt.Errorf("unknown media driver %q", cfg.MediaDriver)
}

func authLimiter(cfg *config.Config) (ratelimit.Limiter, error) {
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemoryLimiter(cfg.AuthRateLimitPerMinute, time.Minute), nil
	}
	return ratelimit.NewFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "carmarket:auth", cfg.AuthRateLimitPerMinute, time.Minute)
}
