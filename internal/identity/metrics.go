// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

package identity

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts identity operations by provider and outcome.
type Metrics struct {
	RegistrationsTotal *prometheus.CounterVec
	LoginsTotal        *prometheus.CounterVec
	VerificationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers identity metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accountd_registrations_total",
				Help: "Total number of registrations by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accountd_logins_total",
				Help: "Total number of login attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		VerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accountd_email_verifications_total",
				Help: "Total number of email verification attempts by outcome",
			},
			[]string{"outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.RegistrationsTotal, m.LoginsTotal, m.VerificationsTotal)
	}
	return m
}

// Metric outcome labels.
const (
	outcomeOK     = "ok"
	outcomeFailed = "failed"
)

func (m *Metrics) recordRegistration(provider Provider, err error) {
	if m == nil {
		return
	}
	m.RegistrationsTotal.WithLabelValues(string(provider), outcomeLabel(err)).Inc()
}

func (m *Metrics) recordLogin(provider Provider, err error) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(string(provider), outcomeLabel(err)).Inc()
}

func (m *Metrics) recordVerification(err error) {
	if m == nil {
		return
	}
	m.VerificationsTotal.WithLabelValues(outcomeLabel(err)).Inc()
}

func outcomeLabel(err error) string {
	if err != nil {
		return outcomeFailed
	}
	return outcomeOK
}
