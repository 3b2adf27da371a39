// Command sennet is the main entry point for the Sennet conversation core.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sennet-ai/sennet/internal/config"
	"github.com/sennet-ai/sennet/internal/conversation"
	"github.com/sennet-ai/sennet/internal/fallback"
	"github.com/sennet-ai/sennet/internal/health"
	"github.com/sennet-ai/sennet/internal/models"
	"github.com/sennet-ai/sennet/internal/ner"
	"github.com/sennet-ai/sennet/internal/nlu"
	"github.com/sennet-ai/sennet/internal/observe"
	"github.com/sennet-ai/sennet/internal/resilience"
	"github.com/sennet-ai/sennet/internal/skills"
	"github.com/sennet-ai/sennet/internal/telemetry"
	"github.com/sennet-ai/sennet/pkg/provider/brain/procbrain"
	"github.com/sennet-ai/sennet/pkg/provider/classifier/bridge"
	"github.com/sennet-ai/sennet/pkg/surface/ws"
	"github.com/sennet-ai/sennet/pkg/tokenizer"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "sennet.yml", "path to the YAML configuration file")
	flag.Parse()

	// ── Configuration (hot-reloaded) ──────────────────────────────────────────
	// The session is created after the watcher, so the reload callback goes
	// through an atomic pointer.
	var sessPtr atomic.Pointer[nlu.Session]

	watcher, err := config.NewWatcher(*configPath, func(old, next *config.Config) {
		sess := sessPtr.Load()
		if sess == nil {
			return
		}
		fbs, err := skills.LoadFallbacks(next.Paths.Data, sess.Lang())
		if err != nil {
			slog.Warn("config reload: fallback table not refreshed", "err", err)
			return
		}
		sess.SetFallbacks(fbs)
		slog.Info("config reload: fallback table refreshed", "entries", len(fbs))
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "sennet: config file %q not found — copy configs/example.yml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "sennet: %v\n", err)
		}
		return 1
	}
	defer watcher.Stop()
	cfg := watcher.Current()

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("sennet starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"lang", cfg.Lang.Default,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "sennet",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry providers", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Classifiers ───────────────────────────────────────────────────────────
	var bridgeOpts []bridge.Option
	if cfg.Classifier.Timeout > 0 {
		bridgeOpts = append(bridgeOpts, bridge.WithTimeout(cfg.Classifier.Timeout))
	}
	globalClf := bridge.New(cfg.Classifier.URL, bridgeOpts...)
	skillsClf := bridge.New(cfg.Classifier.URL, bridgeOpts...)
	mainClf := bridge.New(cfg.Classifier.URL, bridgeOpts...)

	loader := models.NewLoader(globalClf, skillsClf, mainClf, ner.BuiltinEntities())

	// Models load in the background; turns are rejected until all three are
	// up, and /readyz reports the same.
	go func() {
		paths := models.Paths{
			GlobalResolvers: cfg.Paths.ModelFile(string(models.KindGlobalResolvers)),
			SkillsResolvers: cfg.Paths.ModelFile(string(models.KindSkillsResolvers)),
			Main:            cfg.Paths.ModelFile(string(models.KindMain)),
		}
		if err := loader.LoadAll(ctx, paths); err != nil {
			slog.Error("model loading failed, core will refuse turns", "err", err)
		}
	}()

	// ── Tokenizer sidecar ─────────────────────────────────────────────────────
	tok := tokenizer.NewRunner(tokenizer.Config{
		Command: cfg.Tokenizer.Command,
		Addr:    cfg.Tokenizer.Addr,
	})
	defer tok.Close()
	if cfg.Tokenizer.Command != "" {
		if err := tok.Restart(ctx, cfg.Lang.Default); err != nil {
			slog.Warn("tokenizer failed to start, auxiliary entities disabled", "err", err)
		}
	}

	// ── Surface + brain ───────────────────────────────────────────────────────
	surf := ws.New()
	defer surf.Close()

	brainExec, err := procbrain.New(procbrain.Config{
		Interpreter: cfg.Brain.Interpreter,
		SkillsRoot:  cfg.Paths.Skills,
		DataRoot:    cfg.Paths.Data,
		Lang:        cfg.Lang.Default,
	}, surf)
	if err != nil {
		slog.Error("failed to initialise brain", "err", err)
		return 1
	}

	// ── Session ───────────────────────────────────────────────────────────────
	breaker := resilience.New(resilience.Config{Name: "tokenizer"})
	nerGateway := ner.New(loader.Main(), tok, breaker)

	sess := nlu.NewSession(
		nlu.Config{
			Lang:           cfg.Lang.Default,
			SupportedLangs: cfg.Lang.Supported,
			SkillsRoot:     cfg.Paths.Skills,
			DataRoot:       cfg.Paths.Data,
		},
		nlu.Deps{
			Models:       loader,
			NER:          nerGateway,
			Conversation: conversation.NewStore(),
			Fallback:     fallback.New(fallback.WithPhoneticThreshold(cfg.Fallback.PhoneticThreshold)),
			Brain:        brainExec,
			Tokenizer:    tok,
			Surface:      surf,
		},
		nlu.WithMetrics(metrics),
		nlu.WithTelemetry(telemetry.New(telemetry.Config{
			Enabled:  cfg.Telemetry.Enabled,
			Endpoint: cfg.Telemetry.Endpoint,
			Version:  version,
		})),
	)

	sessPtr.Store(sess)

	if fbs, err := skills.LoadFallbacks(cfg.Paths.Data, cfg.Lang.Default); err != nil {
		slog.Warn("fallback table not loaded", "err", err)
	} else {
		sess.SetFallbacks(fbs)
	}

	surf.OnUtterance = func(utterance string) {
		if _, err := sess.Process(ctx, utterance); err != nil {
			slog.Warn("turn failed", "err", err)
		}
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	health.New(
		health.Models(loader),
		health.Tokenizer(tok),
	).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws", surf.HandleUpgrade)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printStartupSummary(cfg)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.Server.TLS != nil {
			err = srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)

	select {
	case err := <-errCh:
		slog.Error("server error", "err", err)
		return 1
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Sennet — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Lang", cfg.Lang.Default)
	printRow("Classifier", cfg.Classifier.URL)
	if cfg.Tokenizer.Command != "" {
		printRow("Tokenizer", cfg.Tokenizer.Addr)
	} else {
		printRow("Tokenizer", "(disabled)")
	}
	if cfg.Brain.Interpreter != "" {
		printRow("Interpreter", cfg.Brain.Interpreter)
	} else {
		printRow("Interpreter", "(not configured)")
	}
	if cfg.Telemetry.Enabled {
		printRow("Telemetry", "enabled")
	} else {
		printRow("Telemetry", "(disabled)")
	}
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(key, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", key, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
