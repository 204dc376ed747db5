package service_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/oddsmith/peerbet/internal/config"
	"github.com/oddsmith/peerbet/internal/repository"
	"github.com/oddsmith/peerbet/internal/service"
)

// ── Stub driver ───────────────────────────────────────────────────────────────
//
// marketStore is a miniature database/sql driver serving a single markets row.
// It counts transaction lifecycle calls so tests can assert that every
// transaction the settlement pass opens is closed again, whichever branch the
// state machine takes.

var marketColumns = []string{
	"id", "creator_id", "question", "visibility",
	"q_yes", "q_no", "b", "liquidity_pool", "total_volume", "fees_collected",
	"status", "settlement_status", "creator_outcome",
	"contest_deadline", "vote_deadline", "outcome",
	"expires_at", "created_at", "updated_at",
}

type marketStore struct {
	mu         sync.Mutex
	row        []driver.Value
	begun      int
	committed  int
	rolledBack int
}

func (s *marketStore) Connect(context.Context) (driver.Conn, error) { return &storeConn{store: s}, nil }
func (s *marketStore) Driver() driver.Driver                        { return s }
func (s *marketStore) Open(string) (driver.Conn, error)             { return &storeConn{store: s}, nil }

func (s *marketStore) setRow(row []driver.Value) {
	s.mu.Lock()
	s.row = row
	s.mu.Unlock()
}

func (s *marketStore) counts() (begun, closed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begun, s.committed + s.rolledBack
}

type storeConn struct{ store *marketStore }

func (c *storeConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("marketStore: prepared statements not supported")
}
func (c *storeConn) Close() error { return nil }

func (c *storeConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *storeConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	c.store.mu.Lock()
	c.store.begun++
	c.store.mu.Unlock()
	return &storeTx{store: c.store}, nil
}

func (c *storeConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	rows := &storeRows{columns: marketColumns}
	if strings.Contains(query, "FROM markets") {
		c.store.mu.Lock()
		rows.rows = [][]driver.Value{c.store.row}
		c.store.mu.Unlock()
	}
	return rows, nil
}

type storeTx struct{ store *marketStore }

func (t *storeTx) Commit() error {
	t.store.mu.Lock()
	t.store.committed++
	t.store.mu.Unlock()
	return nil
}

func (t *storeTx) Rollback() error {
	t.store.mu.Lock()
	t.store.rolledBack++
	t.store.mu.Unlock()
	return nil
}

type storeRows struct {
	columns []string
	rows    [][]driver.Value
	cursor  int
}

func (r *storeRows) Columns() []string { return r.columns }
func (r *storeRows) Close() error      { return nil }

func (r *storeRows) Next(dest []driver.Value) error {
	if r.cursor >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.cursor])
	r.cursor++
	return nil
}

// pendingContestRow builds a markets row whose contest window closes at
// deadline.  Column order matches marketColumns.
func pendingContestRow(id uuid.UUID, deadline time.Time) []driver.Value {
	created := deadline.Add(-2 * time.Hour)
	return []driver.Value{
		id.String(), uuid.New().String(), "Will it rain tomorrow?", "public",
		"0", "0", "144.26950408", "100", "0", "0",
		"suspended", "pending_contest", true,
		deadline, nil, nil,
		created, created, created,
	}
}

func contestedRow(id uuid.UUID, voteDeadline time.Time) []driver.Value {
	row := pendingContestRow(id, voteDeadline.Add(-time.Hour))
	row[10] = "contested"
	row[11] = "contested"
	row[14] = voteDeadline
	return row
}

func newStoreService(store *marketStore) (*service.SettlementService, *sqlx.DB) {
	db := sqlx.NewDb(sql.OpenDB(store), "postgres")
	svc := service.NewSettlementService(db,
		repository.NewMarketRepository(db),
		repository.NewPositionRepository(db),
		repository.NewBondRepository(db),
		repository.NewWalletRepository(db),
		service.NewActionLimiter(1000, time.Minute),
		&config.Config{},
	)
	return svc, db
}

// ── Resolution pass ───────────────────────────────────────────────────────────

// A market can be listed as due and then turn out, under its row lock, to be
// not actionable yet (a stale listing, a competing run that got there first,
// clock skew between trigger and check).  Those exits return nil without a
// commit, and the transaction must still be released or the pooled connection
// stays checked out holding the row lock.
func TestResolveDueSettlements_ReleasesTransactionOnNoOp(t *testing.T) {
	store := &marketStore{}
	svc, db := newStoreService(store)
	defer db.Close()

	now := time.Now().UTC()
	marketID := uuid.New()

	// Contest window still open relative to the pass's clock.
	store.setRow(pendingContestRow(marketID, now.Add(time.Hour)))
	if err := svc.ResolveDueSettlements(context.Background(), now); err != nil {
		t.Fatalf("ResolveDueSettlements: %v", err)
	}

	begun, closed := store.counts()
	if begun == 0 {
		t.Fatal("expected the pass to open a transaction")
	}
	if closed != begun {
		t.Fatalf("transactions begun = %d, closed = %d; connection leaked", begun, closed)
	}
	if inUse := db.Stats().InUse; inUse != 0 {
		t.Fatalf("pool InUse = %d after pass, want 0", inUse)
	}

	// Same for a contested market whose vote window is still open.
	store.setRow(contestedRow(marketID, now.Add(time.Hour)))
	if err := svc.ResolveDueSettlements(context.Background(), now); err != nil {
		t.Fatalf("ResolveDueSettlements: %v", err)
	}
	begun, closed = store.counts()
	if closed != begun {
		t.Fatalf("transactions begun = %d, closed = %d; connection leaked", begun, closed)
	}
	if inUse := db.Stats().InUse; inUse != 0 {
		t.Fatalf("pool InUse = %d after pass, want 0", inUse)
	}
}
