package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/wolfeidau/classdesk"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Auth metrics
	LoginAttemptsTotal metric.Int64Counter
	LoginFailuresTotal metric.Int64Counter
	LoginDuration      metric.Float64Histogram
	LogoutsTotal       metric.Int64Counter
	StatusChecksTotal  metric.Int64Counter

	// Navigation metrics
	NavigationsTotal metric.Int64Counter
	RedirectsTotal   metric.Int64Counter

	// Transport metrics
	SessionExpiredTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary.
// InitTelemetry must run first for the instruments to export anywhere.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics(otel.GetMeterProvider().Meter(instrumentationName))
	})
	return metrics
}

func initMetrics(meter metric.Meter) *Metrics {
	m := &Metrics{}

	m.LoginAttemptsTotal, _ = meter.Int64Counter(
		"classdesk.auth.login.attempts.total",
		metric.WithDescription("Total number of login attempts"),
		metric.WithUnit("{attempt}"),
	)

	m.LoginFailuresTotal, _ = meter.Int64Counter(
		"classdesk.auth.login.failures.total",
		metric.WithDescription("Total number of failed logins by failure kind"),
		metric.WithUnit("{failure}"),
	)

	m.LoginDuration, _ = meter.Float64Histogram(
		"classdesk.auth.login.duration",
		metric.WithDescription("Duration of login requests"),
		metric.WithUnit("ms"),
	)

	m.LogoutsTotal, _ = meter.Int64Counter(
		"classdesk.auth.logout.total",
		metric.WithDescription("Total number of logouts"),
		metric.WithUnit("{logout}"),
	)

	m.StatusChecksTotal, _ = meter.Int64Counter(
		"classdesk.auth.status_checks.total",
		metric.WithDescription("Total number of session status checks by outcome"),
		metric.WithUnit("{check}"),
	)

	m.NavigationsTotal, _ = meter.Int64Counter(
		"classdesk.router.navigations.total",
		metric.WithDescription("Total number of navigations by guard decision"),
		metric.WithUnit("{navigation}"),
	)

	m.RedirectsTotal, _ = meter.Int64Counter(
		"classdesk.router.redirects.total",
		metric.WithDescription("Total number of guard redirects"),
		metric.WithUnit("{redirect}"),
	)

	m.SessionExpiredTotal, _ = meter.Int64Counter(
		"classdesk.transport.session_expired.total",
		metric.WithDescription("Total number of responses that ended the session"),
		metric.WithUnit("{response}"),
	)

	return m
}
