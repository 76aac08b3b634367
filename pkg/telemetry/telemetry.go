// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package telemetry exposes the service's Prometheus metrics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's metric instruments. A single instance is
// created at startup and shared; the instruments are safe for concurrent
// use.
type Metrics struct {
	registry *prometheus.Registry

	authResolutions *prometheus.CounterVec
	roleSessions    *prometheus.CounterVec
}

// NewMetrics creates the metric instruments on a private registry, so the
// /metrics endpoint exposes only what the service registers.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		authResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "briefdesk_auth_resolutions_total",
			Help: "Credential resolution attempts by outcome and winning source.",
		}, []string{"outcome", "source"}),
		roleSessions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "briefdesk_db_role_sessions_total",
			Help: "Role-scoped database sessions by role and outcome.",
		}, []string{"role", "outcome"}),
	}
}

// RecordResolution counts one credential resolution attempt. The source is
// empty when no credential resolved.
func (m *Metrics) RecordResolution(outcome, source string) {
	if m == nil {
		return
	}
	m.authResolutions.WithLabelValues(outcome, source).Inc()
}

// RecordRoleSession counts one role-scoped database session.
func (m *Metrics) RecordRoleSession(role, outcome string) {
	if m == nil {
		return
	}
	m.roleSessions.WithLabelValues(role, outcome).Inc()
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
