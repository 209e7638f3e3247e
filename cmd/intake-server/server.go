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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/intake/intake/internal/config"
	"github.com/intake/intake/internal/domain/clinic"
	"github.com/intake/intake/internal/domain/form"
	"github.com/intake/intake/internal/domain/patient"
	"github.com/intake/intake/internal/domain/submission"
	"github.com/intake/intake/internal/platform/auth"
	"github.com/intake/intake/internal/platform/db"
	"github.com/intake/intake/internal/platform/hipaa"
	"github.com/intake/intake/internal/platform/middleware"
)

const version = "0.1.0"

func runServer(migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Env, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open database")
		return err
	}
	defer st.Close()
	logger.Info().Str("driver", cfg.DatabaseDriver).Msg("connected to database")

	if migrate {
		n, err := st.migrator.Up(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Int("applied", n).Msg("migrations applied")
	}

	e, err := buildServer(cfg, logger, st)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// buildServer wires services and routes over st.
func buildServer(cfg *config.Config, logger zerolog.Logger, st *store) (*echo.Echo, error) {
	var phi *hipaa.PHIEncryptor
	key, err := cfg.PHIKey()
	if err != nil {
		return nil, err
	}
	if key != nil {
		if phi, err = hipaa.NewPHIEncryptor(key); err != nil {
			return nil, err
		}
	} else {
		logger.Warn().Msg("PHI_ENCRYPTION_KEY not set; encrypted fields are stored in plain text")
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	clinicSvc := clinic.NewService(st.clinics, st.users, st.tx, tokens, logger)
	patientSvc := patient.NewService(st.patients)
	formSvc := form.NewService(st.forms, st.tx, logger)
	submissionSvc := submission.NewService(st.submissions, formSvc, patientSvc, phi, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(st.health))

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	limiter := middleware.RateLimit(rateLimitCfg)

	public := e.Group("/api", limiter)
	api := e.Group("/api", limiter, auth.JWTMiddleware(tokens, clinicSvc.CheckUser))

	clinicHandler := clinic.NewHandler(clinicSvc, cfg.IsDev())
	clinicHandler.RegisterPublicRoutes(public)
	clinicHandler.RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	form.NewHandler(formSvc).RegisterRoutes(api)
	submission.NewHandler(submissionSvc).RegisterRoutes(api)

	return e, nil
}
