package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	authsvc "propnest/internal/app/services/auth"
	inquirysvc "propnest/internal/app/services/inquiry"
	listingsvc "propnest/internal/app/services/listing"
	domainauth "propnest/internal/domain/auth"
	domaininquiry "propnest/internal/domain/inquiry"
	domainlisting "propnest/internal/domain/listing"
	domainuser "propnest/internal/domain/user"
	"propnest/internal/infra/broker/kafka"
	"propnest/internal/infra/config"
	mongodb "propnest/internal/infra/db/mongo"
	ginserver "propnest/internal/infra/http/gin"
	"propnest/internal/infra/obs"
	"propnest/internal/infra/realtime"
	"propnest/internal/infra/security"
	"propnest/internal/infra/storage/memory"
	"propnest/internal/infra/storage/s3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		cfg = config.Config{Env: "dev", HTTPAddr: ":8080"}
	}
	logger := obs.NewLogger(cfg.Env)
	if err != nil {
		logger.Warn("using fallback configuration", "error", err)
	}

	stores, ready, err := buildStores(cfg, logger)
	if err != nil {
		logger.Error("storage init failed", "error", err)
		os.Exit(1)
	}

	hub := realtime.NewHub(logger)

	var events inquirysvc.EventPublisher
	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicPrefix, nil)
		if err != nil {
			logger.Warn("kafka unavailable, lifecycle events disabled", "error", err)
		} else {
			events = producer
		}
	}

	var photos listingsvc.PhotoStore = s3.NoopUploader{}
	if uploader, err := s3.NewClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicEndpoint, logger); err != nil {
		logger.Warn("object storage unavailable, photo uploads disabled", "error", err)
	} else {
		photos = uploader
	}

	listingService := &listingsvc.Service{
		Listings: stores.listings,
		Photos:   photos,
		Logger:   logger,
	}
	inquiryService := &inquirysvc.Service{
		Inquiries: stores.inquiries,
		Listings:  listingService,
		Users:     stores.users,
		Notifier:  hub,
		Events:    events,
		Logger:    logger,
	}
	authService := &authsvc.Service{
		Users:      stores.users,
		Sessions:   stores.sessions,
		Passwords:  security.BcryptHasher{},
		Tokens:     security.RandomTokenGenerator{},
		Purger:     inquiryService,
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}

	wsHandler := &realtime.Handler{
		Hub: hub,
		Resolve: func(ctx context.Context, token string) (domainuser.ID, error) {
			resolved, err := authService.ResolveToken(ctx, token)
			if err != nil {
				return "", err
			}
			return resolved.User.ID, nil
		},
		Logger: logger,
	}

	authMW := ginserver.AuthMiddleware{Service: authService, Logger: logger}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Ready: ready}, ginserver.Handlers{
		Auth:           ginserver.AuthHandler{Service: authService, Logger: logger},
		Listing:        ginserver.ListingHandler{Service: listingService, Logger: logger},
		Inquiry:        ginserver.InquiryHandler{Service: inquiryService, Logger: logger},
		Realtime:       wsHandler.Serve,
		AuthMiddleware: authMW.Handle,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		hub.CloseAll()
		if producer != nil {
			if err := producer.Close(); err != nil {
				logger.Error("kafka close failed", "error", err)
			}
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type stores struct {
	users     domainuser.Repository
	sessions  domainauth.SessionStore
	listings  domainlisting.Repository
	inquiries domaininquiry.Repository
}

// buildStores wires Mongo-backed repositories when MONGO_URI is set, the
// in-memory twins otherwise (demo mode, nothing survives a restart).
func buildStores(cfg config.Config, logger *slog.Logger) (stores, func() error, error) {
	if cfg.MongoURI == "" {
		logger.Warn("MONGO_URI not set, using in-memory storage")
		return stores{
			users:     memory.NewUserRepository(),
			sessions:  memory.NewSessionStore(),
			listings:  memory.NewListingRepository(),
			inquiries: memory.NewInquiryRepository(),
		}, func() error { return nil }, nil
	}

	client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return stores{}, nil, err
	}
	ready := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return client.Ping(ctx)
	}
	return stores{
		users:     mongodb.NewUserRepository(client.DB),
		sessions:  mongodb.NewSessionStore(client.DB),
		listings:  mongodb.NewListingRepository(client.DB),
		inquiries: mongodb.NewInquiryRepository(client.DB),
	}, ready, nil
}
