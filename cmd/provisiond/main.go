package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"

	"github.com/allthingslinux/provisiond/internal/alerting"
	"github.com/allthingslinux/provisiond/internal/atheme"
	"github.com/allthingslinux/provisiond/internal/config"
	"github.com/allthingslinux/provisiond/internal/database"
	"github.com/allthingslinux/provisiond/internal/integration"
	"github.com/allthingslinux/provisiond/internal/prosody"
	"github.com/allthingslinux/provisiond/internal/server"
	"github.com/allthingslinux/provisiond/pkg/models"
)

// registerOnce guards integration registration: the registry rejects
// duplicate ids, and this flag makes startup re-entry a no-op instead of an
// error.
var registerOnce sync.Once

func main() {
	seed := flag.Bool("seed", false, "create a dev user and session token, print the token and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting provisioning service")

	// Connect to database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations completed")

	if *seed {
		seedDevSession(ctx, db, logger)
		return
	}

	// Operator alert sink (optional)
	var alerter alerting.Alerter = alerting.Nop{}
	if cfg.AlertsEnabled() {
		tg, err := alerting.NewTelegram(cfg.AlertTelegramToken, cfg.AlertTelegramChatID, logger)
		if err != nil {
			logger.Error("failed to create telegram alerter", "error", err)
			os.Exit(1)
		}
		alerter = tg
		logger.Info("operator alerts enabled", "chat_id", cfg.AlertTelegramChatID)
	}

	// Remote account clients; an unconfigured client leaves its integration
	// registered but disabled
	athemeClient := atheme.NewClient(atheme.Config{
		URL:      cfg.AthemeURL,
		SourceIP: cfg.AthemeSourceIP,
		Timeout:  cfg.AthemeTimeout,
	})
	prosodyClient := prosody.NewClient(prosody.Config{
		BaseURL:     cfg.ProsodyURL,
		Username:    cfg.ProsodyUser,
		Password:    cfg.ProsodyPassword,
		Domain:      cfg.ProsodyDomain,
		InsecureTLS: cfg.ProsodyInsecureTLS,
	})

	registry := integration.NewRegistry()
	registerOnce.Do(func() {
		for _, i := range []integration.Integration{
			integration.NewIRC(db, athemeClient, alerter, logger),
			integration.NewXMPP(db, prosodyClient, alerter, logger),
		} {
			if err := registry.Register(i); err != nil {
				logger.Error("failed to register integration", "id", i.ID(), "error", err)
				os.Exit(1)
			}
			logger.Info("registered integration", "id", i.ID(), "enabled", i.Enabled())
		}
	})

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(db, registry, logger).Router(),
	}

	// Setup graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		logger.Info("received shutdown signal", "signal", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	logger.Info("listening", "addr", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// seedDevSession creates a throwaway user and session so the API can be
// exercised locally without the portal
func seedDevSession(ctx context.Context, db *database.DB, logger *slog.Logger) {
	user := &models.User{Email: "dev@example.com", Role: models.RoleAdmin}
	if err := db.CreateUser(ctx, user); errors.Is(err, database.ErrAlreadyExists) {
		existing, lookupErr := db.GetUserByEmail(ctx, user.Email)
		if lookupErr != nil {
			logger.Error("failed to load seeded user", "error", lookupErr)
			os.Exit(1)
		}
		user = existing
	} else if err != nil {
		logger.Error("failed to seed user", "error", err)
		os.Exit(1)
	}

	session := &models.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	if err := db.CreateSession(ctx, session); err != nil {
		logger.Error("failed to seed session", "error", err)
		os.Exit(1)
	}
	logger.Info("seeded dev session", "user_id", user.ID, "token", session.Token)
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
			NoColor:    false,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
