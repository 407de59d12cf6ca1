package telemetry

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all custom metrics for the service
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal metric.Int64Counter
	HTTPDurationMs    metric.Float64Histogram

	// Tenant-binding metrics. Unbind failures are the one that matters:
	// each one is a discarded connection and a near-miss on isolation.
	TenantBindsTotal    metric.Int64Counter
	UnbindFailuresTotal metric.Int64Counter
	PoolExhaustedTotal  metric.Int64Counter

	// Business metrics
	PatientRegistrations metric.Int64Counter
	SlotConflictsTotal   metric.Int64Counter

	// Auth metrics
	AuthFailuresTotal       metric.Int64Counter
	PermissionCheckDuration metric.Float64Histogram
}

// InitMetrics initializes all custom metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("github.com/clinicore/clinical-records-service")

	httpRequestsTotal, err := meter.Int64Counter(
		"http_server_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	httpDurationMs, err := meter.Float64Histogram(
		"http_server_duration_milliseconds",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	tenantBindsTotal, err := meter.Int64Counter(
		"tenant_binds_total",
		metric.WithDescription("Total number of tenant session bindings"),
		metric.WithUnit("{bind}"),
	)
	if err != nil {
		return nil, err
	}

	unbindFailuresTotal, err := meter.Int64Counter(
		"tenant_unbind_failures_total",
		metric.WithDescription("Total number of failed tenant unbinds (connection discarded)"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	poolExhaustedTotal, err := meter.Int64Counter(
		"db_pool_exhausted_total",
		metric.WithDescription("Total number of connection checkouts that timed out"),
		metric.WithUnit("{timeout}"),
	)
	if err != nil {
		return nil, err
	}

	patientRegistrations, err := meter.Int64Counter(
		"patient_registrations_total",
		metric.WithDescription("Total number of patient registration attempts"),
		metric.WithUnit("{registration}"),
	)
	if err != nil {
		return nil, err
	}

	slotConflictsTotal, err := meter.Int64Counter(
		"appointment_slot_conflicts_total",
		metric.WithDescription("Total number of rejected double-bookings"),
		metric.WithUnit("{conflict}"),
	)
	if err != nil {
		return nil, err
	}

	authFailuresTotal, err := meter.Int64Counter(
		"auth_failures_total",
		metric.WithDescription("Total number of authentication failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	permissionCheckDuration, err := meter.Float64Histogram(
		"permission_check_duration_ms",
		metric.WithDescription("Permission check duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	log.Println("✓ Custom metrics initialized")

	return &Metrics{
		HTTPRequestsTotal:       httpRequestsTotal,
		HTTPDurationMs:          httpDurationMs,
		TenantBindsTotal:        tenantBindsTotal,
		UnbindFailuresTotal:     unbindFailuresTotal,
		PoolExhaustedTotal:      poolExhaustedTotal,
		PatientRegistrations:    patientRegistrations,
		SlotConflictsTotal:      slotConflictsTotal,
		AuthFailuresTotal:       authFailuresTotal,
		PermissionCheckDuration: permissionCheckDuration,
	}, nil
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, durationMs float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http_method", method),
		attribute.String("http_route", route),
		attribute.Int("http_status_code", statusCode),
	}

	m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.HTTPDurationMs.Record(ctx, durationMs, metric.WithAttributes(attrs...))
}

// RecordTenantBind records a successful tenant session binding
func (m *Metrics) RecordTenantBind(ctx context.Context) {
	m.TenantBindsTotal.Add(ctx, 1)
}

// RecordUnbindFailure records a failed unbind (connection discarded)
func (m *Metrics) RecordUnbindFailure(ctx context.Context) {
	m.UnbindFailuresTotal.Add(ctx, 1)
}

// RecordPoolExhausted records a connection checkout timeout
func (m *Metrics) RecordPoolExhausted(ctx context.Context) {
	m.PoolExhaustedTotal.Add(ctx, 1)
}

// RecordPatientRegistration records a patient registration attempt
func (m *Metrics) RecordPatientRegistration(ctx context.Context, outcome string) {
	m.PatientRegistrations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

// RecordSlotConflict records a rejected double-booking
func (m *Metrics) RecordSlotConflict(ctx context.Context) {
	m.SlotConflictsTotal.Add(ctx, 1)
}

// RecordAuthFailure records an authentication failure metric
func (m *Metrics) RecordAuthFailure(ctx context.Context, reason string) {
	m.AuthFailuresTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordPermissionCheck records a permission check duration metric
func (m *Metrics) RecordPermissionCheck(ctx context.Context, permission string, durationMs float64, allowed bool) {
	m.PermissionCheckDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("permission", permission),
		attribute.Bool("allowed", allowed),
	))
}
