package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fireblob"
	"fireblob/internal/config"
	apphttp "fireblob/internal/http"
	"fireblob/internal/repository/sqlite"
	"fireblob/internal/service"
	"fireblob/internal/uploader"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if strings.TrimSpace(cfg.Storage.Bucket) == "" {
		logger.Fatalf("storage bucket is required")
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}
	if strings.TrimSpace(cfg.Auth.RegisterSecret) == "" {
		logger.Fatalf("auth registration secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	transferRepo := sqlite.NewTransferRepository(db)
	userRepo := sqlite.NewUserRepository(db)

	if err := transferRepo.Init(ctx); err != nil {
		logger.Fatalf("init transfer repository: %v", err)
	}
	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}

	transferService := service.NewTransferService(transferRepo)
	userService := service.NewUserService(userRepo, cfg.Auth.RegisterSecret)

	storageOpts := fireblob.Options{
		Endpoint:         cfg.Storage.Endpoint,
		StrictCancel:     cfg.Upload.StrictCancel,
		ProgressInterval: cfg.Upload.ProgressInterval,
	}
	if cfg.Storage.Token != "" {
		storageOpts.TokenSource = fireblob.StaticTokenSource(cfg.Storage.Token)
	}
	storage := fireblob.New(cfg.Storage.Bucket, storageOpts)

	manager := uploader.NewManager(uploader.Config{
		SpoolDir:      cfg.Upload.SpoolDir,
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		Logger:        logger,
	}, transferService, storage)

	if err := manager.Start(ctx); err != nil {
		logger.Fatalf("start manager: %v", err)
	}
	if err := manager.Resume(ctx); err != nil {
		logger.Warnf("resume transfers: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		transferService,
		userService,
		manager,
		storage,
		cfg.Upload.SpoolDir,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute,
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	manager.Shutdown()

	logger.Info("bye")
}
