// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api contains the HTTP server for the briefdesk backend.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	v1 "github.com/briefdesk/briefdesk/pkg/api/v1"
	authmw "github.com/briefdesk/briefdesk/pkg/auth/middleware"
	"github.com/briefdesk/briefdesk/pkg/db"
	"github.com/briefdesk/briefdesk/pkg/logger"
	"github.com/briefdesk/briefdesk/pkg/telemetry"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 20 * time.Second
)

// ServerConfig carries everything the server needs beyond its
// dependencies.
type ServerConfig struct {
	Address        string
	RequestTimeout time.Duration
	LoginPath      string
}

// headersMiddleware sets the response content type for API routes.
func headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// NewRouter assembles the service routes behind the authentication
// middleware. Route policy, not mount order, decides which routes require
// an identity.
func NewRouter(
	cfg ServerConfig,
	authenticator *authmw.Authenticator,
	pool *db.Pool,
	metrics *telemetry.Metrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Timeout(cfg.RequestTimeout),
		headersMiddleware,
		authenticator.Handler,
	)

	routers := map[string]http.Handler{
		"/health":         v1.HealthcheckRouter(pool),
		"/metrics":        metrics.Handler(),
		cfg.LoginPath:     v1.LoginRouter(),
		"/api/v1/version": v1.VersionRouter(),
		"/api/v1/me":      v1.MeRouter(),
		"/api/v1/matters": v1.MattersRouter(pool),
		"/admin/users":    v1.AdminUsersRouter(pool),
	}

	for prefix, router := range routers {
		r.Mount(prefix, router)
	}

	return r
}

// Serve runs the HTTP server until ctx is canceled, then drains in-flight
// requests before returning.
func Serve(ctx context.Context, cfg ServerConfig, handler http.Handler) error {
	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              cfg.Address,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	listener, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Address, err)
	}

	logger.Infof("starting HTTP server on %s", cfg.Address)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}

	logger.Info("HTTP server stopped")
	return nil
}
