// Package tenantctx binds a tenant identity into per-connection database
// session state so the row-level-security policies (see internal/db) scope
// every query issued on that connection.
//
// Pooled connections are reused across unrelated requests. A connection
// returned to the pool with a tenant still bound leaks that tenant's rows to
// the next request that happens to receive the same physical connection, so
// the unbind step runs on every exit path and a connection whose unbind
// fails is discarded rather than reused.
package tenantctx

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/clinicore/clinical-records-service/tenantctx")

var (
	ErrPoolExhausted        = errors.New("connection pool exhausted")
	ErrInvalidTenantContext = errors.New("invalid tenant context")
)

const (
	bindQuery   = `SELECT set_config('app.current_tenant_id', $1, false)`
	unbindQuery = `SELECT set_config('app.current_tenant_id', '', false)`
	// Transaction-local variant: the engine clears it at commit/rollback.
	bindTxQuery = `SELECT set_config('app.current_tenant_id', $1, true)`

	defaultAcquireTimeout = 5 * time.Second
	releaseTimeout        = 3 * time.Second
)

// MetricsRecorder records binder health metrics.
type MetricsRecorder interface {
	RecordTenantBind(ctx context.Context)
	RecordUnbindFailure(ctx context.Context)
	RecordPoolExhausted(ctx context.Context)
}

// Binder scopes units of work to a tenant-bound database connection.
type Binder struct {
	db             *sql.DB
	acquireTimeout time.Duration
	metrics        MetricsRecorder
}

// NewBinder creates a Binder over a shared connection pool.
func NewBinder(db *sql.DB) *Binder {
	return &Binder{db: db, acquireTimeout: defaultAcquireTimeout}
}

// WithMetrics attaches a metrics recorder.
func (b *Binder) WithMetrics(m MetricsRecorder) *Binder {
	b.metrics = m
	return b
}

// WithAcquireTimeout overrides how long checkout may block on a saturated
// pool before failing with ErrPoolExhausted.
func (b *Binder) WithAcquireTimeout(d time.Duration) *Binder {
	b.acquireTimeout = d
	return b
}

// WithTenant acquires one connection, binds tenantID into its session state,
// runs fn on it and unconditionally unbinds before the connection goes back
// to the pool, on success, error and panic alike.
func (b *Binder) WithTenant(ctx context.Context, tenantID string, fn func(ctx context.Context, conn *sql.Conn) error) error {
	ctx, span := tracer.Start(ctx, "tenantctx.WithTenant")
	defer span.End()

	if _, err := uuid.Parse(tenantID); err != nil {
		span.SetStatus(codes.Error, "invalid tenant id")
		return fmt.Errorf("%w: %q is not a valid tenant id", ErrInvalidTenantContext, tenantID)
	}
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	conn, err := b.acquire(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	// Release runs unconditionally; deferred so an early return or a panic
	// inside fn cannot skip the unbind.
	defer b.release(conn)

	if _, err := conn.ExecContext(ctx, bindQuery, tenantID); err != nil {
		span.SetStatus(codes.Error, "tenant bind failed")
		return fmt.Errorf("%w: bind failed: %v", ErrInvalidTenantContext, err)
	}
	if b.metrics != nil {
		b.metrics.RecordTenantBind(ctx)
	}

	return fn(ctx, conn)
}

// WithTenantTx runs fn inside a transaction with a transaction-local tenant
// binding. The engine clears the binding at commit or rollback, so there is
// no unbind step to forget. Used by units of work that must be atomic, such
// as the clinic registration bootstrap.
func (b *Binder) WithTenantTx(ctx context.Context, tenantID string, fn func(ctx context.Context, tx *sql.Tx) error) error {
	ctx, span := tracer.Start(ctx, "tenantctx.WithTenantTx")
	defer span.End()

	if _, err := uuid.Parse(tenantID); err != nil {
		span.SetStatus(codes.Error, "invalid tenant id")
		return fmt.Errorf("%w: %q is not a valid tenant id", ErrInvalidTenantContext, tenantID)
	}
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	conn, err := b.acquire(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer b.release(conn)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, bindTxQuery, tenantID); err != nil {
		return fmt.Errorf("%w: bind failed: %v", ErrInvalidTenantContext, err)
	}
	if b.metrics != nil {
		b.metrics.RecordTenantBind(ctx)
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (b *Binder) acquire(ctx context.Context) (*sql.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, b.acquireTimeout)
	defer cancel()

	conn, err := b.db.Conn(acquireCtx)
	if err != nil {
		// Distinguish a saturated pool from the caller's own cancellation.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			if b.metrics != nil {
				b.metrics.RecordPoolExhausted(ctx)
			}
			return nil, ErrPoolExhausted
		}
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return conn, nil
}

// release unbinds the tenant and returns the connection to the pool. The
// request context may already be cancelled by the time cleanup runs, so the
// unbind uses its own deadline. If the unbind itself fails the connection is
// poisoned so the pool discards it rather than ever handing out a
// connection with a tenant still bound.
func (b *Binder) release(conn *sql.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	if _, err := conn.ExecContext(ctx, unbindQuery); err != nil {
		log.Printf("[ERROR] Tenant unbind failed, discarding connection: %v", err)
		if b.metrics != nil {
			b.metrics.RecordUnbindFailure(ctx)
		}
		_ = conn.Raw(func(driverConn interface{}) error {
			return driver.ErrBadConn
		})
	}
	conn.Close()
}
