// Command helpdesk runs the email helpdesk pipeline. `helpdesk serve`
// starts the HTTP API with the background mailbox poller; `helpdesk
// ingest` runs a single ingestion batch and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/appless/helpdesk/internal/api"
	"github.com/appless/helpdesk/internal/config"
	"github.com/appless/helpdesk/internal/cursor"
	"github.com/appless/helpdesk/internal/extract"
	"github.com/appless/helpdesk/internal/ingest"
	"github.com/appless/helpdesk/internal/mailbox"
	"github.com/appless/helpdesk/internal/mailer"
	"github.com/appless/helpdesk/internal/reply"
	"github.com/appless/helpdesk/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		debug      bool
	)
	flag.StringVar(&configPath, "config", config.DefaultConfigPath(), "path to config file")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Parse()

	mode := flag.Arg(0)
	if mode == "" {
		mode = "serve"
	}

	// A local .env is a convenience for development; absence is fine.
	_ = godotenv.Load()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	orch := buildOrchestrator(cfg, db, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "ingest":
		return runOnce(ctx, orch, logger)
	case "serve":
		return serve(ctx, cfg, db, orch, logger)
	default:
		return fmt.Errorf("unknown mode %q (want serve or ingest)", mode)
	}
}

// buildOrchestrator assembles the ingestion pipeline: mailbox source,
// cursor file, and the LLM extractor with its deterministic fallback.
func buildOrchestrator(cfg *config.Config, db store.Store, logger *slog.Logger) *ingest.Orchestrator {
	client := mailbox.NewClient(
		cfg.IMAP.Host, cfg.IMAP.Port,
		cfg.IMAP.Username, cfg.IMAP.Password,
		cfg.IMAP.TLS, cfg.IMAP.Mailbox,
	)
	dial := func(ctx context.Context) (ingest.Source, error) {
		return client.Dial(ctx)
	}

	var primary extract.Extractor
	if cfg.LLM.APIKey != "" {
		groq := extract.NewGroqClient(
			cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model,
			cfg.LLM.MaxTokens, time.Duration(cfg.LLM.TimeoutSec)*time.Second,
		)
		primary = extract.NewLLM(groq)
	} else {
		logger.Warn("no LLM API key configured, using keyword extraction only")
	}
	extractor := extract.NewChain(primary, extract.NewHeuristic(), logger)

	return ingest.New(dial, cursor.NewFileStore(cfg.Ingest.CursorPath), extractor, db, logger)
}

func runOnce(ctx context.Context, orch *ingest.Orchestrator, logger *slog.Logger) error {
	report, err := orch.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("ingestion batch complete",
		"cursor", report.EndCursor,
		"created", report.Count(ingest.OutcomeCreated),
		"updated", report.Count(ingest.OutcomeUpdated),
		"skipped", report.Count(ingest.OutcomeSkipped),
		"failed", report.Count(ingest.OutcomeFailed),
	)
	return nil
}

func serve(ctx context.Context, cfg *config.Config, db store.Store, orch *ingest.Orchestrator, logger *slog.Logger) error {
	sender := mailer.NewSMTPSender(
		cfg.SMTP.Host, cfg.SMTP.Port,
		cfg.SMTP.Username, cfg.SMTP.Password,
		cfg.SMTP.From, cfg.SMTP.TLS,
	)
	replySvc := reply.New(db, sender, cfg.SMTP.From, logger)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewServer(db, replySvc, orch, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Ingest.IntervalSec > 0 {
		poller := ingest.NewPoller(orch, time.Duration(cfg.Ingest.IntervalSec)*time.Second, logger)
		go poller.Start(ctx)
	} else {
		logger.Info("background polling disabled, ingest via POST /api/ingest")
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
