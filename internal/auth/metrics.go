// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import "github.com/prometheus/client_golang/prometheus"

// Status constants for login attempt metrics.
const (
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusRejected = "rejected"
	StatusError    = "error"
)

// Revocation reason constants.
const (
	RevokeReasonExpired  = "expired"
	RevokeReasonLogout   = "logout"
	RevokeReasonMutation = "mutation"
	RevokeReasonCascade  = "cascade"
)

// LoginAttempts counts login attempts by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var LoginAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatehouse_login_attempts_total",
		Help: "Total number of login attempts by status",
	},
	[]string{"status"},
)

// TokensIssued counts minted access tokens.
var TokensIssued = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "gatehouse_tokens_issued_total",
		Help: "Total number of access tokens issued",
	},
)

// TokensRevoked counts revoked access tokens by reason.
var TokensRevoked = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatehouse_tokens_revoked_total",
		Help: "Total number of access tokens revoked by reason",
	},
	[]string{"reason"},
)

// RegisterMetrics registers auth package metrics with the given Prometheus
// registry. Call at startup to make them available on /metrics. Panics if
// registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LoginAttempts)
	reg.MustRegister(TokensIssued)
	reg.MustRegister(TokensRevoked)
}

// RecordLogin increments the login attempt counter.
func RecordLogin(status string) {
	LoginAttempts.WithLabelValues(status).Inc()
}

// RecordTokenIssued increments the issued token counter.
func RecordTokenIssued() {
	TokensIssued.Inc()
}

// RecordTokensRevoked adds n to the revoked token counter for a reason.
func RecordTokensRevoked(reason string, n int64) {
	TokensRevoked.WithLabelValues(reason).Add(float64(n))
}
