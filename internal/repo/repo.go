// Package repo contains all database access logic for the trip planner.
// Each resource has its own file with an interface and a Postgres implementation.
// No scheduling rules live here, only SQL and type mapping.
package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/timeslot"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, and lets
// TxRunner hand the same repositories a live transaction.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Set bundles every repository bound to the same connection or transaction.
type Set struct {
	Groups          GroupRepo
	Locations       LocationRepo
	PlanTemplates   PlanTemplateRepo
	Activities      ActivityRepo
	Logistics       LogisticsRepo
	CustomTemplates CustomTemplateRepo
	Snapshots       SnapshotRepo
}

// NewSet builds every repository on top of db.
func NewSet(db db) Set {
	return Set{
		Groups:          NewGroupRepo(db),
		Locations:       NewLocationRepo(db),
		PlanTemplates:   NewPlanTemplateRepo(db),
		Activities:      NewActivityRepo(db),
		Logistics:       NewLogisticsRepo(db),
		CustomTemplates: NewCustomTemplateRepo(db),
		Snapshots:       NewSnapshotRepo(db),
	}
}

// TxRunner runs a unit of work inside one database transaction.
type TxRunner interface {
	// InTx begins a transaction, hands fn a Set bound to it, and commits if
	// fn returns nil. Any error from fn rolls the transaction back.
	InTx(ctx context.Context, fn func(Set) error) error
}

type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type pgTxRunner struct {
	db beginner
}

// NewTxRunner constructs a TxRunner. In production pass *pgxpool.Pool; in
// tests an outer pgx.Tx works too, nesting as a savepoint.
func NewTxRunner(db beginner) TxRunner {
	return &pgTxRunner{db: db}
}

func (r *pgTxRunner) InTx(ctx context.Context, fn func(Set) error) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return fn(NewSet(tx))
	})
}

const microsPerMinute = int64(time.Minute / time.Microsecond)

// clockArg converts an "HH:mm" string into a TIME parameter.
func clockArg(s string) (pgtype.Time, error) {
	m, ok := timeslot.ToMinutes(s)
	if !ok {
		return pgtype.Time{}, fmt.Errorf("%w: malformed time %q", domain.ErrValidation, s)
	}
	return pgtype.Time{Microseconds: int64(m) * microsPerMinute, Valid: true}, nil
}

func clockString(t pgtype.Time) string {
	return timeslot.FormatMinutes(int(t.Microseconds / microsPerMinute))
}
