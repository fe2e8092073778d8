// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"golang.org/x/time/rate"

	"librum/internal/audit"
	"librum/internal/borrowing"
	"librum/internal/catalog"
	"librum/internal/config"
	"librum/internal/inventory"
	"librum/internal/loans"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	_ = godotenv.Load()
	cfg := config.Load()
	log.Info().Str("addr", cfg.Addr).Str("db", cfg.DatabaseURL).Msg("starting borrowing service")

	shutdownTracing, err := initTracing(cfg)
	must(err)
	defer shutdownTracing()

	db, err := sqlx.Open("postgres", cfg.DatabaseURL)
	must(err)
	defer db.Close()
	must(db.Ping())

	ledger := inventory.NewLedger(db, log.Logger)
	catalogSvc, err := catalog.NewService(db, ledger)
	must(err)
	loanStore, err := loans.NewStore(db, time.Now)
	must(err)

	recorder, closeRecorder, err := buildRecorder(cfg, db)
	must(err)
	defer closeRecorder()

	svc := borrowing.NewService(catalogSvc, ledger, loanStore, recorder, log.Logger)
	borrowHandler := borrowing.NewHandler(svc)
	catalogHandler := catalog.NewHandler(catalogSvc)

	limiter := rate.NewLimiter(rate.Limit(cfg.BorrowRatePerSec), cfg.BorrowBurst)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		borrowHandler.RegisterRoutes(r, borrowing.RateLimit(limiter))
		r.Get("/books/{id}", catalogHandler.HandleGetBook)
		r.Post("/admin/books", catalogHandler.HandleAddBook)
		r.Patch("/admin/books/{id}/copies", catalogHandler.HandleSetCopies)
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: r}

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		log.Warn().Msg("shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownGrace)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	log.Info().Str("addr", cfg.Addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
}

// buildRecorder assembles the audit fan-out: always the database trail,
// plus the broker when one is configured.
func buildRecorder(cfg config.Config, db *sqlx.DB) (audit.Recorder, func(), error) {
	dbRec, err := audit.NewDBRecorder(db)
	if err != nil {
		return nil, nil, err
	}

	if cfg.RabbitURL == "" {
		return audit.NewMultiRecorder(dbRec, audit.NewLogRecorder(log.Logger)), func() {}, nil
	}

	amqpRec, err := audit.NewAMQPRecorder(cfg.RabbitURL, cfg.AuditExchange)
	if err != nil {
		return nil, nil, err
	}
	closer := func() { _ = amqpRec.Close() }
	return audit.NewMultiRecorder(dbRec, amqpRec), closer, nil
}

// initTracing wires the OTLP HTTP exporter when an endpoint is configured;
// otherwise tracing stays on the default no-op provider.
func initTracing(cfg config.Config) (func(), error) {
	if cfg.OTLPEndpoint == "" {
		return func() {}, nil
	}

	ctx := context.Background()
	exp, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
		)),
	)
	otel.SetTracerProvider(tp)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}, nil
}

func must(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}
