// Package main is the entry point for the SSE broadcast hub daemon.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/niv0/causeway-extensions-sse-broadcast/internal/admission"
	"github.com/niv0/causeway-extensions-sse-broadcast/internal/adminapi"
	"github.com/niv0/causeway-extensions-sse-broadcast/internal/broadcast"
	"github.com/niv0/causeway-extensions-sse-broadcast/internal/buildinfo"
	"github.com/niv0/causeway-extensions-sse-broadcast/internal/config"
	"github.com/niv0/causeway-extensions-sse-broadcast/internal/cors"
	"github.com/niv0/causeway-extensions-sse-broadcast/internal/metrics"
	"github.com/niv0/causeway-extensions-sse-broadcast/internal/sse"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "serve":
			runServe(logger, *configPath)
		case "publish":
			if flag.NArg() < 3 {
				fmt.Fprintln(os.Stderr, "usage: ssebroadcastd publish <channel> <payload>")
				os.Exit(1)
			}
			runPublish(logger, *configPath, flag.Arg(1), flag.Arg(2))
		case "version":
			fmt.Println(buildinfo.String())
			for k, v := range buildinfo.BuildInfo() {
				fmt.Printf("  %-12s %s\n", k+":", v)
			}
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
			os.Exit(1)
		}
		return
	}

	runServe(logger, *configPath)
}

func loadConfig(logger *slog.Logger, configPath string) *config.Config {
	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		logger.Warn("no config file found, using defaults", "error", err)
		return config.Default()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}
	logger.Info("config loaded", "path", cfgPath)
	return cfg
}

func buildAdmitter(cfg *config.Config) admission.Admitter {
	if cfg.BypassAuthentication {
		return admission.NewBypassAdmitter()
	}
	return admission.NewJWTAdmitter([]byte(cfg.JWTSecret))
}

func runServe(logger *slog.Logger, configPath string) {
	logger.Info("starting ssebroadcastd", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "branch", buildinfo.GitBranch, "built", buildinfo.BuildTime)

	cfg := loadConfig(logger, configPath)

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			logger.Error("invalid log_level in config", "error", err)
			os.Exit(1)
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: config.ReplaceLogLevelNames,
		}))
	}

	registry := broadcast.NewRegistry()
	recorder := metrics.NewRecorder()
	service := broadcast.NewService(registry, broadcast.WithLogger(logger), broadcast.WithMetrics(recorder))

	admitter := buildAdmitter(cfg)
	policy := cors.NewAllowlistPolicy(cfg.AllowedOrigins, cfg.AllowCredentials)
	heartbeat := time.Duration(cfg.HeartbeatIntervalSec) * time.Second

	handler := sse.NewHandler(service, admitter, policy,
		sse.WithHeartbeatInterval(heartbeat),
		sse.WithLogger(logger),
		sse.WithMetrics(recorder),
	)

	mux := http.NewServeMux()
	mux.Handle(cfg.Mount, handler)
	adminapi.NewServer(service, admitter, logger).Register(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      withLogging(logger, mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming responses have no write deadline, per spec
	}

	var metricsServer *http.Server
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(service, 15*time.Second)
		collector.Start()

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Metrics.Address, cfg.Metrics.Port),
			Handler: metricsMux,
		}
		go func() {
			logger.Info("starting metrics server", "address", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
		service.CloseAllChannels()
		if collector != nil {
			collector.Stop()
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
		if metricsServer != nil {
			_ = metricsServer.Shutdown(shutdownCtx)
		}
	}()

	logger.Info("listening", "address", addr, "mount", cfg.Mount)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		if ctx.Err() == nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("ssebroadcastd stopped")
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// runPublish posts a broadcast to a running hub's admin endpoint, a
// thin smoke-testing aid in place of the HTML demo client.
func runPublish(logger *slog.Logger, configPath, channel, payload string) {
	cfg := loadConfig(logger, configPath)

	body, err := json.Marshal(map[string]string{"channel": channel, "payload": payload})
	if err != nil {
		logger.Error("failed to marshal publish request", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("http://%s:%d/admin/broadcast", loopbackHost(cfg.Listen.Address), cfg.Listen.Port)
	resp, err := http.Post(addr, "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Error("publish request failed", "error", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Error("publish rejected", "status", resp.StatusCode)
		os.Exit(1)
	}
	fmt.Printf("published to %q\n", channel)
}

func loopbackHost(address string) string {
	if address == "" {
		return "127.0.0.1"
	}
	return address
}
