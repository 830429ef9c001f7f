// Command server runs the FreelanceBill API.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	app "github.com/freelancebill/freelancebill/internal/app"
	"github.com/freelancebill/freelancebill/internal/app/httpapi"
	"github.com/freelancebill/freelancebill/internal/app/services/auth"
	"github.com/freelancebill/freelancebill/internal/app/storage/postgres"
	"github.com/freelancebill/freelancebill/internal/config"
	"github.com/freelancebill/freelancebill/internal/identity"
	"github.com/freelancebill/freelancebill/internal/mail"
	"github.com/freelancebill/freelancebill/internal/middleware"
	"github.com/freelancebill/freelancebill/internal/platform/migrations"
	"github.com/freelancebill/freelancebill/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores := app.Stores{}
	var db *sql.DB
	if cfg.Database.URL != "" {
		db, err = openDatabase(cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		if err := migrations.Up(db); err != nil {
			return err
		}

		pg := postgres.New(db)
		stores = app.Stores{Users: pg, Clients: pg, Invoices: pg}
		log.Info("using postgres storage")
	} else {
		log.Warn("DATABASE_URL not set; using in-memory storage")
	}

	var mailer mail.Dispatcher
	if cfg.Mail.SMTPHost != "" {
		mailer, err = mail.NewSMTPDispatcher(mail.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SMTPUsername,
			Password: cfg.Mail.SMTPPassword,
			From:     cfg.Mail.From,
		}, log)
		if err != nil {
			return fmt.Errorf("configure mail: %w", err)
		}
	}

	var verifier auth.IdentityVerifier
	if cfg.Auth.GoogleClientID != "" {
		verifier, err = identity.NewGoogleVerifier(nil, cfg.Auth.GoogleClientID, log)
		if err != nil {
			return fmt.Errorf("configure google login: %w", err)
		}
	}

	application, err := app.New(app.Options{
		Stores:      stores,
		Logger:      log,
		Mailer:      mailer,
		Verifier:    verifier,
		TokenSecret: []byte(cfg.Auth.JWTSecret),
		TokenTTL:    cfg.Auth.JWTTTL,
		Links: auth.Links{
			VerifyBase: cfg.App.FrontendURL + "/verify",
			ResetBase:  cfg.App.FrontendURL + "/reset-password",
		},
	})
	if err != nil {
		return err
	}

	handler := httpapi.NewHandler(application, log)

	limiter := middleware.NewRateLimiter(cfg.App.RatePerSecond, cfg.App.RateBurst, log)
	limiter.StartCleanup(10 * time.Minute)
	cors := middleware.NewCORSMiddleware(cfg.App.AllowedOrigins)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      cors.Handler(limiter.Handler(handler)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
