package auth

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey string

const principalKey ctxKey = "auth_principal"

var tracer = otel.Tracer("github.com/clinicore/clinical-records-service/auth")

// MetricsRecorder interface for recording auth metrics
type MetricsRecorder interface {
	RecordAuthFailure(ctx context.Context, reason string)
}

// ResolveTenant decodes the optional bearer token and, on success, injects
// the Principal into the request context. Any failure (missing header,
// malformed token, expired, bad signature) yields an anonymous context
// instead of rejecting the request: authorization is enforced later by
// RequirePermission, and database scoping never defaults open because the
// connection binder refuses to bind an empty tenant id.
func ResolveTenant(ver *Verifier) func(http.Handler) http.Handler {
	return ResolveTenantWithMetrics(ver, nil)
}

// ResolveTenantWithMetrics resolves the tenant context with metrics recording.
func ResolveTenantWithMetrics(ver *Verifier, metrics MetricsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx, span := tracer.Start(ctx, "auth.ResolveTenant",
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			defer span.End()

			authz := r.Header.Get("Authorization")
			if authz == "" {
				span.SetAttributes(attribute.Bool("auth.anonymous", true))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				span.SetAttributes(
					attribute.Bool("auth.anonymous", true),
					attribute.String("auth.failure", "invalid_header_format"),
				)
				if metrics != nil {
					metrics.RecordAuthFailure(ctx, "invalid_header_format")
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			pr, err := ver.ParseAndVerifyToken(parts[1])
			if err != nil {
				log.Printf("[WARN] Token validation failed, continuing anonymous: %v", err)
				span.SetAttributes(
					attribute.Bool("auth.anonymous", true),
					attribute.String("auth.failure", "invalid_token"),
				)
				if metrics != nil {
					metrics.RecordAuthFailure(ctx, "invalid_token")
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			span.SetAttributes(
				attribute.String("user.id", pr.UserID),
				attribute.String("user.role", pr.Role),
				attribute.String("tenant.id", pr.TenantID),
			)
			span.SetStatus(codes.Ok, "authentication successful")

			ctx = context.WithValue(ctx, principalKey, pr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PermissionMetricsRecorder interface for recording permission check metrics
type PermissionMetricsRecorder interface {
	RecordPermissionCheck(ctx context.Context, permission string, durationMs float64, allowed bool)
}

// RequirePermission returns middleware that ensures the principal has permission.
func RequirePermission(per string, perms Permissions) func(http.Handler) http.Handler {
	return RequirePermissionWithMetrics(per, perms, nil)
}

// RequirePermissionWithMetrics returns middleware with metrics recording
func RequirePermissionWithMetrics(per string, perms Permissions, metrics PermissionMetricsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()
			ctx, span := tracer.Start(ctx, "auth.RequirePermission",
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(attribute.String("permission.required", per)),
			)
			defer span.End()

			pr, ok := FromContext(ctx)
			if !ok {
				span.SetStatus(codes.Error, "unauthenticated")
				if metrics != nil {
					metrics.RecordPermissionCheck(ctx, per, float64(time.Since(start).Milliseconds()), false)
				}
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
				return
			}

			allowed := HasPermission(pr, per, perms)
			duration := float64(time.Since(start).Milliseconds())

			span.SetAttributes(
				attribute.Bool("permission.allowed", allowed),
				attribute.String("user.id", pr.UserID),
				attribute.String("user.role", pr.Role),
			)

			if metrics != nil {
				metrics.RecordPermissionCheck(ctx, per, duration, allowed)
			}

			if !allowed {
				log.Printf("[PERMISSION DENIED] User: %s, Role: %s, Required Permission: %s",
					pr.UserID, pr.Role, per)
				span.SetStatus(codes.Error, "forbidden")
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			span.SetStatus(codes.Ok, "permission granted")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext extracts Principal from context.
func FromContext(ctx context.Context) (*Principal, bool) {
	pr, ok := ctx.Value(principalKey).(*Principal)
	return pr, ok
}

// HasPermission checks the role -> permissions mapping. Role lookup is
// case-insensitive so realm roles (e.g. "doctor") match permissions.yml
// entries (e.g. "DOCTOR").
func HasPermission(pr *Principal, permission string, perms Permissions) bool {
	if pr.Role == "" {
		return false
	}
	pList, ok := perms[pr.Role]
	if !ok {
		pList, ok = perms[strings.ToUpper(pr.Role)]
	}
	if !ok {
		return false
	}
	for _, p := range pList {
		if p == permission {
			return true
		}
	}
	return false
}
