package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SpeechifyInc/analytics-go/analytics"
	"github.com/SpeechifyInc/analytics-go/identitydb"
	"github.com/SpeechifyInc/analytics-go/pipeline/pubsub"
	"github.com/SpeechifyInc/analytics-go/pkg/config"
	"github.com/SpeechifyInc/analytics-go/pkg/instance"
	"github.com/SpeechifyInc/analytics-go/pkg/logger"
	"github.com/SpeechifyInc/analytics-go/pkg/metrics"
)

// command is one newline-delimited JSON instruction read from stdin.
type command struct {
	Type       string         `json:"type"`
	Event      string         `json:"event"`
	Name       string         `json:"name"`
	Category   string         `json:"category"`
	GroupID    string         `json:"groupId"`
	UserID     string         `json:"userId"`
	NewID      string         `json:"newId"`
	Properties map[string]any `json:"properties"`
	Traits     map[string]any `json:"traits"`
}

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "analytics-emitter"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "analytics-emitter",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	dispatchMetrics := metrics.NewDispatchMetrics(registry)

	var storage analytics.IdentityStorage
	if cfg.Identity.DBPath != "" {
		installKey := cfg.Identity.InstallKey
		if installKey == "" {
			installKey = instance.GetInstallKey()
		}
		store, err := identitydb.Open(cfg.Identity.DBPath, installKey, logg)
		requireResource(ctx, logg, "identity storage", err)
		storage = store
	}

	pipe, err := pubsub.New(ctx, cfg.GCP, cfg.PubSub, cfg.App.WriteKey, logg, dispatchMetrics)
	requireResource(ctx, logg, "pubsub pipeline", err)

	client, err := analytics.New(analytics.Params{
		Pipeline: pipe,
		Logger:   logg,
		Storage:  storage,
		Metrics:  dispatchMetrics,
		WriteKey: cfg.App.WriteKey,
	})
	requireResource(ctx, logg, "analytics client", err)

	server := &http.Server{
		Addr:              cfg.App.ListenAddr,
		Handler:           newRouter(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server failed", err)
		}
	}()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})
	logg.Info(runCtx, "analytics emitter ready")

	readCommands(runCtx, logg, client)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "shutting down metrics server", err)
	}
	if err := client.Close(); err != nil {
		logg.Error(ctx, "closing analytics client", err)
		os.Exit(1)
	}
}

func newRouter(registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return r
}

// readCommands dispatches stdin lines until EOF or interrupt.
func readCommands(ctx context.Context, logg *logger.Logger, client *analytics.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var cmd command
		if err := json.Unmarshal(line, &cmd); err != nil {
			logg.Error(ctx, "decoding command line", err)
			continue
		}
		dispatchCommand(ctx, logg, client, cmd)
	}
	if err := scanner.Err(); err != nil {
		logg.Error(ctx, "reading stdin", err)
	}
}

func dispatchCommand(ctx context.Context, logg *logger.Logger, client *analytics.Client, cmd command) {
	switch cmd.Type {
	case "track":
		client.TrackMap(ctx, cmd.Event, cmd.Properties)
	case "screen":
		client.ScreenMap(ctx, cmd.Name, cmd.Category, cmd.Properties)
	case "group":
		client.GroupMap(ctx, cmd.GroupID, cmd.Traits)
	case "identify":
		switch {
		case cmd.UserID != "" && cmd.Traits != nil:
			client.Identify(ctx, cmd.UserID, cmd.Traits)
		case cmd.UserID != "":
			client.IdentifyUser(ctx, cmd.UserID)
		default:
			client.IdentifyTraits(ctx, cmd.Traits)
		}
	case "alias":
		client.Alias(ctx, cmd.NewID)
	case "reset":
		client.ResetIdentity()
	default:
		logg.Error(ctx, "unknown command", fmt.Errorf("unsupported command type %q", cmd.Type))
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
