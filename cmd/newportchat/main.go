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
	"syscall"
	"time"

	"NewportChat/internal/chatbot"
	"NewportChat/internal/config"
	"NewportChat/internal/server"
	"NewportChat/internal/session"
	"NewportChat/internal/store"
	"NewportChat/internal/telemetry"
	"NewportChat/internal/tui"
	"NewportChat/internal/workflow"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type flags struct {
	configPath string
	widget     string
	ui         string
	serve      bool
	addr       string
	sessionID  string
	debug      bool
}

func main() {
	var f flags

	flag.StringVar(&f.configPath, "config", "", "Path to a YAML config file (environment only when empty)")
	flag.StringVar(&f.widget, "widget", config.WidgetAssistant, "Widget to open (assistant|trivia)")
	flag.StringVar(&f.ui, "ui", config.UITerminal, "Terminal frontend (tui|plain)")
	flag.BoolVar(&f.serve, "serve", false, "Serve sessions over HTTP instead of the terminal")
	flag.StringVar(&f.addr, "addr", "", "HTTP listen address (overrides config)")
	flag.StringVar(&f.sessionID, "session-id", "", "Continue an archived conversation by ID")
	flag.BoolVar(&f.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(f flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	cfg.Widget = f.widget
	cfg.UI = f.ui
	cfg.Serve = f.serve
	cfg.SessionID = f.sessionID
	cfg.Debug = f.debug
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if cfg.Debug {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	// the full-screen UI owns stderr, so console logging is only for the
	// server and plain modes when debugging
	withConsole := cfg.Serve || (cfg.Debug && cfg.UI == config.UIPlain)
	logger, closeLog, err := telemetry.InitLogger(cfg.Log, withConsole)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer closeLog()

	logger.Info("starting newportchat", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.InitTelemetry(ctx, cfg.Log.Dir)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdownTelemetry()

	var archive *store.Store
	if !cfg.Store.Disabled {
		archive, err = store.Open(cfg.Store.Path, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		defer archive.Close()
	}

	client := workflow.NewClient(cfg.Workflow, workflow.WithLogger(logger))

	newSession := func(kind session.Kind, extra ...session.Option) (*session.Session, error) {
		widget, err := session.WidgetFor(cfg, kind)
		if err != nil {
			return nil, err
		}
		opts := []session.Option{session.WithLogger(logger)}
		if archive != nil {
			opts = append(opts, session.WithRecorder(archive))
		}
		return session.New(widget, client, append(opts, extra...)...), nil
	}

	kind := session.Kind(cfg.Widget)
	var restore []session.Option
	if cfg.SessionID != "" {
		if archive == nil {
			return errors.New("cannot load a session while the store is disabled")
		}
		snap, err := archive.Load(ctx, cfg.SessionID)
		if err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}
		kind = snap.Widget
		restore = append(restore, session.WithSnapshot(snap))
		logger.Info("restored conversation", "conversation_id", snap.ConversationID, "messages", len(snap.Messages))
	}

	if cfg.Serve {
		registry := session.NewRegistry()
		defer registry.Close()

		if cfg.SessionID != "" {
			sess, err := newSession(kind, restore...)
			if err != nil {
				return err
			}
			registry.Register(sess)
			logger.Info("restored session is available", "path", "/sessions/"+sess.ID())
		}

		factory := func(kind session.Kind) (*session.Session, error) {
			return newSession(kind)
		}
		handler := server.New(registry, factory, logger, server.WithMaxSessions(cfg.Server.MaxSessions)).Handler()
		return serve(ctx, cfg.Server, handler, registry, logger)
	}

	sess, err := newSession(kind, restore...)
	if err != nil {
		return err
	}
	// runs before archive.Close, flushing queued saves
	defer sess.Close()

	if cfg.UI == config.UIPlain {
		var list chatbot.Archive
		if archive != nil {
			list = archive
		}
		return chatbot.NewChatBot(sess, list, logger, os.Stdin, os.Stdout).Run(ctx)
	}

	if err := tui.Run(sess, logger); err != nil {
		return fmt.Errorf("failed to run terminal UI: %w", err)
	}
	return nil
}

func serve(ctx context.Context, cfg config.Server, handler http.Handler, registry *session.Registry, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})

	if cfg.IdleTimeout > 0 {
		g.Go(func() error {
			registry.Sweep(gctx, cfg.IdleTimeout, logger)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
