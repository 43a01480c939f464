// cmd/leadflow/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"leadflow/internal/alerts"
	"leadflow/internal/api"
	"leadflow/internal/common/auth"
	"leadflow/internal/common/config"
	"leadflow/internal/common/database"
	httpx "leadflow/internal/common/http"
	"leadflow/internal/common/logger"
	"leadflow/internal/common/observability"
	"leadflow/internal/inbox"
	"leadflow/internal/leadqueue"
	"leadflow/internal/realtime"
	"leadflow/pkg/templates"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting leadflow...",
		zap.String("environment", cfg.App.Environment),
		zap.Bool("mockApi", cfg.API.Mock),
	)

	obs := observability.New("leadflow")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Backend Client ---
	var backend api.Client
	if cfg.API.Mock {
		backend = api.NewMockClient()
		zapLog.Info("Using in-memory mock backend")
	} else {
		var tokens httpx.TokenSource
		switch {
		case cfg.Auth.StaticToken != "":
			tokens = auth.StaticToken(cfg.Auth.StaticToken)
		case cfg.Auth.TokenURL != "":
			tokens = auth.NewTokenClient(cfg.Auth.TokenURL, cfg.Auth.ClientID, cfg.Auth.ClientSecret)
		}
		backend = api.NewHTTPClient(cfg.API.BaseURL, cfg.API.GetTimeout(), tokens)
		zapLog.Info("Backend client initialized", zap.String("baseUrl", cfg.API.BaseURL))
	}

	// --- Init Realtime Hubs ---
	hubOpts := realtime.Options{
		BackoffInitial: cfg.Hubs.GetBackoffInitial(),
		BackoffMax:     cfg.Hubs.GetBackoffMax(),
	}
	leadsHub := realtime.NewHub("leads", cfg.Hubs.LeadsChannel, redis, log, obs, hubOpts)
	messagingHub := realtime.NewHub("messaging", cfg.Hubs.MessagingChannel, redis, log, obs, hubOpts)

	// --- Init Lead Queue Cache ---
	queue := leadqueue.New(backend, log, leadqueue.LogNotifier{Logger: log}, obs, leadqueue.Options{
		PageSize:     cfg.Queue.GetPageSize(),
		HighlightTTL: cfg.Queue.GetHighlightTTL(),
	})
	queue.BindHub(leadsHub)
	defer queue.Close()

	// --- Init Inbox ---
	messages := inbox.New(backend, log)
	messages.BindHub(messagingHub)
	defer messages.Close()

	// --- Init Operator Alerts ---
	if cfg.Alerts.Enabled {
		catalog := templates.Default()
		if cfg.Alerts.CatalogPath != "" {
			catalog, err = templates.LoadCatalog(cfg.Alerts.CatalogPath)
			if err != nil {
				zapLog.Fatal("template catalog load failed", zap.Error(err))
			}
		}

		var senders []alerts.Sender
		if cfg.Alerts.SMS.Enabled {
			smsSender, err := alerts.NewSNSSender(ctx, cfg.Alerts.SMS.Region, cfg.Alerts.SMS.PhoneNumber)
			if err != nil {
				zapLog.Fatal("sns sender init failed", zap.Error(err))
			}
			senders = append(senders, smsSender)
		}
		if cfg.Alerts.Email.Enabled {
			emailSender, err := alerts.NewSESSender(ctx, cfg.Alerts.Email.Region, cfg.Alerts.Email.From, cfg.Alerts.Email.To)
			if err != nil {
				zapLog.Fatal("ses sender init failed", zap.Error(err))
			}
			senders = append(senders, emailSender)
		}
		if len(senders) == 0 {
			senders = append(senders, alerts.LogSender{Logger: log})
		}

		alerter := alerts.New(senders, catalog, log, alerts.Options{MinScore: cfg.Alerts.MinScore})
		alerter.BindHub(leadsHub)
		defer alerter.Close()
		zapLog.Info("Operator alerts enabled", zap.Int("minScore", cfg.Alerts.MinScore))
	}

	if err := leadsHub.Start(ctx); err != nil {
		zapLog.Fatal("leads hub failed to start", zap.Error(err))
	}
	defer leadsHub.Close()

	if err := messagingHub.Start(ctx); err != nil {
		zapLog.Fatal("messaging hub failed to start", zap.Error(err))
	}
	defer messagingHub.Close()

	// Warm the cache; hub events keep it current from here on.
	if err := queue.Refresh(ctx); err != nil {
		zapLog.Warn("initial queue load failed", zap.Error(err))
	}

	zapLog.Info("Lead queue and inbox wired to hubs")

	// --- Health & Metrics Server ---
	if cfg.Metrics.Enabled {
		addr := cfg.Metrics.Address
		if addr == "" {
			addr = ":8080"
		}
		go func() {
			http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "healthy",
					"time":   time.Now().Format(time.RFC3339),
				})
			})
			http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				status := map[string]string{
					"status":    "ready",
					"leadsHub":  string(leadsHub.Status()),
					"messaging": string(messagingHub.Status()),
					"time":      time.Now().Format(time.RFC3339),
				}
				if err := leadsHub.Ready(); err != nil {
					w.WriteHeader(http.StatusServiceUnavailable)
					status["status"] = "degraded"
					status["error"] = err.Error()
				} else {
					w.WriteHeader(http.StatusOK)
				}
				json.NewEncoder(w).Encode(status)
			})
			http.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
				st := queue.State()
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]interface{}{
					"selected":   st.Selected,
					"leads":      len(st.Leads),
					"counts":     st.Counts,
					"page":       st.Page,
					"totalPages": st.TotalPages,
					"unread":     messages.TotalUnread(),
				})
			})
			http.Handle("/metrics", promhttp.Handler())
			zapLog.Info("Health/Metrics server listening", zap.String("address", addr))
			if err := http.ListenAndServe(addr, nil); err != nil {
				zapLog.Error("Health/Metrics server failed", zap.Error(err))
			}
		}()
	}

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")

	queue.Flush()

	zapLog.Info("Leadflow stopped gracefully")
}
