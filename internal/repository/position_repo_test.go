package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/oddsmith/peerbet/internal/repository"
)

// execRecorder is a stub database/sql driver that records every statement it
// executes, so tests can pin down exactly what a repository writes.
type execRecorder struct {
	mu      sync.Mutex
	queries []string
}

func (r *execRecorder) Connect(context.Context) (driver.Conn, error) { return &recorderConn{rec: r}, nil }
func (r *execRecorder) Driver() driver.Driver                        { return r }
func (r *execRecorder) Open(string) (driver.Conn, error)             { return &recorderConn{rec: r}, nil }

func (r *execRecorder) executed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...)
}

type recorderConn struct{ rec *execRecorder }

func (c *recorderConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("execRecorder: prepared statements not supported")
}
func (c *recorderConn) Close() error              { return nil }
func (c *recorderConn) Begin() (driver.Tx, error) { return recorderTx{}, nil }

func (c *recorderConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return recorderTx{}, nil
}

func (c *recorderConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.rec.mu.Lock()
	c.rec.queries = append(c.rec.queries, query)
	c.rec.mu.Unlock()
	return driver.RowsAffected(1), nil
}

type recorderTx struct{}

func (recorderTx) Commit() error   { return nil }
func (recorderTx) Rollback() error { return nil }

// Settled rows stay behind as the audit trail of what was held: zeroing a
// position clears the live quantities but must not touch the entry price.
func TestPositionZero_KeepsAvgPrice(t *testing.T) {
	rec := &execRecorder{}
	db := sqlx.NewDb(sql.OpenDB(rec), "postgres")
	defer db.Close()

	repo := repository.NewPositionRepository(db)
	tx, err := db.Beginx()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	if err := repo.Zero(context.Background(), tx, uuid.New()); err != nil {
		t.Fatalf("Zero: %v", err)
	}

	queries := rec.executed()
	if len(queries) != 1 {
		t.Fatalf("executed %d statements, want 1", len(queries))
	}
	q := queries[0]
	if !strings.Contains(q, "shares = 0") || !strings.Contains(q, "amount_invested = 0") {
		t.Errorf("update must clear the live quantities, got: %s", q)
	}
	if strings.Contains(q, "avg_price") {
		t.Errorf("update must not touch avg_price, got: %s", q)
	}
}
