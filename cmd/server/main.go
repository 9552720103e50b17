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

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"regform/internal/audit"
	"regform/internal/form"
	"regform/internal/platform/config"
	"regform/internal/platform/httpserver"
	"regform/internal/platform/kafka"
	"regform/internal/platform/logger"
	platformmetrics "regform/internal/platform/metrics"
	"regform/internal/platform/middleware"
	"regform/internal/registration"
	"regform/internal/registration/handler"
	"regform/internal/registration/metrics"
	"regform/internal/registration/service"
	"regform/pkg/platform/httputil"
)

const auditQueueSize = 1024

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	if err := run(); err != nil {
		slog.Error("regform stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := registration.OpenBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Error("failed to close store", "error", err)
		}
	}()

	sink, closeSink, err := auditSink(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSink()
	queue := audit.NewQueue(auditQueueSize)
	worker := audit.NewWorker(sink, queue.Events(), log)

	regMetrics := metrics.New()
	svc := service.New(backend.Store,
		service.WithLogger(log),
		service.WithMetrics(regMetrics),
		service.WithAuditPublisher(audit.NewPublisher(queue)),
	)
	sessions := form.NewSessions(svc,
		form.WithLogger(log),
		form.WithMetrics(regMetrics),
		form.WithTTL(cfg.Form.SessionTTL.Duration),
	)

	httpMetrics := platformmetrics.New()
	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Latency(httpMetrics))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := backend.Health(r.Context()); err != nil {
			log.WarnContext(r.Context(), "health check failed", "backend", backend.Name, "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "backend": backend.Name})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "backend": backend.Name})
	})
	router.Handle("/metrics", httpMetrics.Handler())
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Server.RequestTimeout.Duration))
		handler.New(svc, sessions, log, handler.WithSubmitWait(cfg.Form.SubmitWait.Duration)).Register(r)
	})

	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting regform", "addr", cfg.Server.Addr, "backend", backend.Name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sessions.Run(gctx)
	})
	// The worker outlives gctx: it stops once the queue is closed, after the
	// last in-flight form save has published its event.
	g.Go(func() error {
		return worker.Run(context.WithoutCancel(gctx))
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		sessions.Wait()
		queue.Close()
		log.Info("regform stopped")
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// auditSink publishes to Kafka when brokers are configured and logs
// otherwise.
func auditSink(ctx context.Context, cfg config.Config, log *slog.Logger) (audit.Sink, func(), error) {
	client, err := kafka.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return audit.NewLogStore(log), func() {}, nil
	}

	st := audit.NewKafkaStore(client, cfg.Kafka.Topic)
	topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := st.EnsureTopic(topicCtx, 1, 1); err != nil {
		log.Warn("could not ensure audit topic", "topic", cfg.Kafka.Topic, "error", err)
	}
	return st, client.Close, nil
}
