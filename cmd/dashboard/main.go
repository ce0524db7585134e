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

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/assistant"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/blob"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/cfg"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/ingest"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/logging"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/middleware"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/notify"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/portfolio"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/relayclient"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/server"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/store"
)

const notifyTimeout = 5 * time.Second

func main() {
	config, err := cfg.LoadDashboard()
	if err != nil {
		level.Error(logging.New("dashboard", "info")).Log("msg", "load config", "err", err)
		os.Exit(1)
	}

	logger := logging.New("dashboard", config.LogLevel)
	if err := run(config, logger); err != nil {
		level.Error(logger).Log("msg", "dashboard stopped", "err", err)
		os.Exit(1)
	}
}

func run(config cfg.DashboardConfig, logger log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			level.Warn(logger).Log("msg", "close store", "err", err)
		}
	}()
	level.Info(logger).Log("msg", "document store ready", "backend", config.StoreBackend)

	notifier, closeNotifier := buildNotifier(ctx, config, logger)
	defer closeNotifier()

	controller := ingest.New(st, relayclient.New(config.RelayURL, config.RelayTimeout), ingest.Options{
		Policy: ingest.Policy{
			MaxFileSize:   config.MaxFileSize,
			AcceptedTypes: config.AcceptedTypes,
		},
		ProgressLinger: config.ProgressLinger,
		AlertTTL:       config.AlertTTL,
		UploadTimeout:  config.RelayTimeout,
		Notifier:       notifier,
		Logger:         logger,
	})
	defer controller.Close()

	if err := controller.Load(ctx); err != nil {
		return err
	}

	holdings := portfolio.Default()
	var aiAssistant assistant.Assistant
	if config.GeminiAPIKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  config.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return fmt.Errorf("create genai client: %w", err)
		}
		aiAssistant = assistant.NewGemini(client, assistant.Config{
			ChatModel:    config.ChatModel,
			InsightModel: config.InsightModel,
			SpeechModel:  config.SpeechModel,
			Voice:        config.SpeechVoice,
		}, holdings)
	} else {
		level.Warn(logger).Log("msg", "GEMINI_API_KEY not set, assistant disabled")
	}

	rateLimiter := middleware.NewRateLimiter(config.RateLimitRequests, config.RateLimitWindow)
	router, err := server.New(server.Dependencies{
		Ingest:         controller,
		Assistant:      aiAssistant,
		Portfolio:      holdings,
		Logger:         logger,
		AllowedOrigins: config.AllowedCORSOrigins,
		Middleware: []func(http.Handler) http.Handler{
			middleware.Recover(logger),
			middleware.AccessLog(logger),
			middleware.SecurityHeaders,
			middleware.CORS(config.AllowedCORSOrigins...),
			rateLimiter.Middleware,
		},
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         ":" + config.HTTPPort,
		Handler:      router.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		level.Info(logger).Log("msg", "HTTP server listening", "port", config.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		level.Info(logger).Log("msg", "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownGrace)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, config cfg.DashboardConfig) (store.Store, error) {
	switch config.StoreBackend {
	case "postgres":
		return store.OpenPostgres(config.PostgresDSN)
	case "mongo":
		m := config.Minio
		payloads, err := blob.NewMinio(m.Endpoint, m.AccessKey, m.SecretKey, m.UseSSL, m.Bucket)
		if err != nil {
			return nil, err
		}
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return store.OpenMongo(connectCtx, config.MongoURI, config.MongoDatabase, config.MongoCollection, payloads)
	default:
		return store.OpenBadger(store.BadgerOptions{Path: config.BadgerPath})
	}
}

// buildNotifier always logs; kafka and redis are added when configured. The
// returned notifier never blocks the caller.
func buildNotifier(ctx context.Context, config cfg.DashboardConfig, logger log.Logger) (notify.Notifier, func()) {
	notifiers := []notify.Notifier{notify.NewLogNotifier(logger)}
	var closers []func()

	if len(config.KafkaBrokers) > 0 {
		producer := notify.NewKafkaProducer(config.KafkaBrokers, config.KafkaTopic)
		notifiers = append(notifiers, producer)
		closers = append(closers, func() {
			if err := producer.Close(); err != nil {
				level.Warn(logger).Log("msg", "close kafka producer", "err", err)
			}
		})
		level.Info(logger).Log("msg", "kafka notifications enabled", "topic", config.KafkaTopic)
	}

	if config.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			level.Warn(logger).Log("msg", "redis unreachable, alert mirror disabled", "err", err)
			_ = client.Close()
		} else {
			notifiers = append(notifiers, notify.NewAlertMirror(client, config.AlertTTL))
			closers = append(closers, func() { _ = client.Close() })
			level.Info(logger).Log("msg", "redis alert mirror enabled", "addr", config.RedisAddr)
		}
	}

	queue := notify.NewQueue(notify.Multi(notifiers...), 256, notifyTimeout, logger)
	return queue, func() {
		queue.Close()
		for _, c := range closers {
			c()
		}
	}
}
