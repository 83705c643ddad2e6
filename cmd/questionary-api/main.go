// Questionary API - HTTP API редактора шаблонов и анкет.
//
// Настройки читаются из переменных окружения и, если задан
// QUESTIONARY_CONFIG, из YAML-файла (см. internal/config).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Questionary/internal/api"
	"github.com/shaiso/Questionary/internal/config"
	"github.com/shaiso/Questionary/internal/editor"
	"github.com/shaiso/Questionary/internal/memstore"
	"github.com/shaiso/Questionary/internal/mq"
	"github.com/shaiso/Questionary/internal/questionary"
	"github.com/shaiso/Questionary/internal/repo"
	"github.com/shaiso/Questionary/internal/telemetry"
)

var (
	startTime    = time.Now()
	healthChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questionary_api_health_checks_total",
		Help: "Total health checks by result",
	}, []string{"result"})
)

// backend - хранилища и публикатор событий для сервисов.
type backend struct {
	templates editor.TemplateStore
	questions editor.QuestionStore
	answers   questionary.Store
	events    editor.EventPublisher

	pool    *pgxpool.Pool
	closers []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func main() {
	cfg, err := config.Load(os.Getenv("QUESTIONARY_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting questionary-api", "storage", cfg.Storage)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer b.close()

	handler := api.NewHandler(api.Config{
		Editor: editor.NewService(editor.Config{
			Templates: b.templates,
			Questions: b.questions,
			Events:    b.events,
			Logger:    logger,
		}),
		Questionaries: questionary.NewService(questionary.Config{
			Templates: b.templates,
			Store:     b.answers,
			Events:    b.events,
			Logger:    logger,
		}),
		JWTSecret: cfg.JWTSecret,
		Logger:    logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if b.pool != nil {
			if err := b.pool.Ping(r.Context()); err != nil {
				healthChecks.WithLabelValues("fail").Inc()
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		healthChecks.WithLabelValues("ok").Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

// openBackend подключает хранилище и, если задан RABBITMQ_URL, брокер.
// Без брокера в режиме memory события пишутся в журнал хранилища,
// в режиме postgres не публикуются.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	b := &backend{}

	switch cfg.Storage {
	case config.StorageMemory:
		store := memstore.New()
		b.templates, b.questions, b.answers, b.events = store, store, store, store

	default:
		pool, err := repo.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return nil, err
		}
		b.pool = pool
		b.closers = append(b.closers, pool.Close)
		logger.Info("connected to database")

		if cfg.AutoMigrate {
			if err := repo.Migrate(pool); err != nil {
				b.close()
				return nil, err
			}
			logger.Info("migrations applied")
		}

		b.templates = repo.NewTemplateRepo(pool)
		b.questions = repo.NewQuestionRepo(pool)
		b.answers = repo.NewQuestionaryRepo(pool)
	}

	if cfg.RabbitMQURL == "" {
		return b, nil
	}

	conn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, events are not published", "error", err)
		return b, nil
	}
	b.closers = append(b.closers, func() { conn.Close() })

	if err := mq.SetupTopology(ctx, conn); err != nil {
		logger.Warn("failed to setup topology", "error", err)
	}
	b.events = mq.NewPublisher(conn, logger)
	logger.Info("RabbitMQ connected")
	logger.Debug(mq.TopologyInfo())

	return b, nil
}
