package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-tracker/internal/api/handlers/job"
	"github.com/aliskhannn/image-tracker/internal/api/router"
	"github.com/aliskhannn/image-tracker/internal/api/server"
	"github.com/aliskhannn/image-tracker/internal/config"
	"github.com/aliskhannn/image-tracker/internal/fetcher"
	"github.com/aliskhannn/image-tracker/internal/gallery"
	"github.com/aliskhannn/image-tracker/internal/loop"
	"github.com/aliskhannn/image-tracker/internal/model"
	"github.com/aliskhannn/image-tracker/internal/remote"
	"github.com/aliskhannn/image-tracker/internal/session"
	"github.com/aliskhannn/image-tracker/internal/storage/file"
	"github.com/aliskhannn/image-tracker/internal/storage/memory"
	"github.com/aliskhannn/image-tracker/internal/view"
	"github.com/aliskhannn/image-tracker/internal/view/board"
	"github.com/aliskhannn/image-tracker/internal/view/console"
	"github.com/aliskhannn/image-tracker/internal/view/events"
)

// handleStore is satisfied by both display handle backends.
type handleStore interface {
	Create(ctx context.Context, id string, kind model.VariantKind, payload []byte, contentType string) (model.DisplayHandle, error)
	Release(ctx context.Context, h model.DisplayHandle) error
}

// handleSource serves in-memory handles over HTTP.
type handleSource interface {
	Get(key string) ([]byte, string, bool)
	Len() int
}

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad("./config/config.yml")

	// Retry strategy for MinIO uploads and Kafka sends.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	// Display handles live either in memory (served by this process) or in MinIO.
	var (
		handles    handleStore
		memHandles handleSource
	)
	switch cfg.Storage.Kind {
	case config.StorageMinio:
		storage, err := file.NewStorage(ctx, file.Options{
			Endpoint:   cfg.Storage.Endpoint,
			AccessKey:  cfg.Storage.AccessKey,
			SecretKey:  cfg.Storage.SecretKey,
			BucketName: cfg.Storage.BucketName,
			UseSSL:     cfg.Storage.UseSSL,
			URLExpiry:  cfg.Storage.URLExpiry,
		}, strategy)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
		}
		handles = storage
	default:
		store := memory.NewStore(cfg.Server.PublicURL)
		handles, memHandles = store, store
	}

	// Remote service client and variant fetcher.
	client := remote.New(cfg.Service.BaseURL, &http.Client{Timeout: cfg.Service.Timeout})
	f := fetcher.New(client, handles)

	// Views: page state for the API, log output with optional contact sheet,
	// and Kafka events when brokers are configured.
	var wg sync.WaitGroup

	page := board.New()
	views := []view.View{
		page,
		console.New(gallery.New(cfg.Gallery.FontPath), gallery.Save, cfg.Gallery.Output),
	}

	var producer *wbfkafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = wbfkafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		publisher := events.New(producer, strategy, uuid.NewString(), 0)
		views = append(views, publisher)

		wg.Add(1)
		go publisher.Run(ctx, &wg)
	}

	// The loop outlives ctx so the session can still be closed during shutdown.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	l := loop.New()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		l.Run(loopCtx)
	}()

	sess := session.New(ctx, client, f, handles, view.Multi(views...), l, cfg.Poll.Interval)

	// Start HTTP server in a separate goroutine.
	h := job.NewHandler(sess, page, memHandles)
	r := router.Setup(h)
	s := server.New(cfg.Server.HTTPPort, r)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	zlog.Logger.Info().
		Str("addr", cfg.Server.HTTPPort).
		Str("service", cfg.Service.BaseURL).
		Msg("image tracker started")

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}

	// Stop tracking and release every display handle still held.
	if err := sess.Close(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close session")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	stopLoop()
	<-loopDone

	// Wait for the event publisher to finish, then close the Kafka producer.
	wg.Wait()
	if producer != nil {
		if err := producer.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
		}
	}
}
