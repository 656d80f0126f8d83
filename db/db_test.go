// db/db_test.go — unit tests for the SQL layer.
// Uses an in-memory SQLite database; no external services required.
//
// Run:  go test ./db/... -v -race
package db_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Skryldev/reviewkit/db"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test helpers
// ─────────────────────────────────────────────────────────────────────────────

const insertReview = `INSERT INTO reviews (id, product, author, message, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`

func newTestDB(t *testing.T, hooks ...db.Hook) *db.DB {
	t.Helper()
	if len(hooks) == 0 {
		hooks = []db.Hook{db.NewLogHook(db.LogHookConfig{Logger: zaptest.NewLogger(t), LogArgs: true})}
	}
	d, err := db.Open(db.Config{
		DSN:          ":memory:",
		DriverName:   "sqlite3",
		MaxOpenConns: 1, // every connection would otherwise get its own empty in-memory database
		Hooks:        hooks,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	_, err = d.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS reviews (
			id          TEXT PRIMARY KEY,
			product     TEXT NOT NULL,
			author      TEXT NOT NULL,
			message     TEXT NOT NULL CHECK (length(message) <= 200),
			likes_count INTEGER NOT NULL DEFAULT 0,
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL
		)`)
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return d
}

func mustInsert(t *testing.T, d *db.DB, id, author, message string) {
	t.Helper()
	now := time.Now()
	if _, err := d.Exec(context.Background(), insertReview, id, "1", author, message, now, now); err != nil {
		t.Fatalf("insert %s: %v", id, err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Open / Ping
// ─────────────────────────────────────────────────────────────────────────────

func TestOpen(t *testing.T) {
	d := newTestDB(t)
	if err := d.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	if d.DriverName() != "sqlite3" {
		t.Fatalf("unexpected driver: %q", d.DriverName())
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	if _, err := db.Open(db.Config{DSN: "", DriverName: "sqlite3"}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
	if _, err := db.Open(db.Config{DSN: ":memory:"}); err == nil {
		t.Fatal("expected error for empty driver name")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Exec / QueryRow
// ─────────────────────────────────────────────────────────────────────────────

func TestExec_UpdateRowsAffected(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	mustInsert(t, d, "r1", "alice@example.com", "old")

	res, err := d.Exec(ctx, `UPDATE reviews SET message = $1 WHERE id = $2 AND author = $3`, "new", "r1", "alice@example.com")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		t.Fatalf("expected 1 row affected, got %d", n)
	}

	res, err = d.Exec(ctx, `UPDATE reviews SET message = $1 WHERE id = $2 AND author = $3`, "hack", "r1", "bob@example.com")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 0 {
		t.Fatalf("expected 0 rows affected for foreign author, got %d", n)
	}
}

func TestQueryRow_Scan(t *testing.T) {
	d := newTestDB(t)
	mustInsert(t, d, "r1", "alice@example.com", "hello")

	var author, message string
	err := d.QueryRow(context.Background(), `SELECT author, message FROM reviews WHERE id = $1`, "r1").
		Scan(&author, &message)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if author != "alice@example.com" || message != "hello" {
		t.Fatalf("unexpected values: author=%q message=%q", author, message)
	}
}

func TestQueryRow_NotFound(t *testing.T) {
	d := newTestDB(t)

	var message string
	err := d.QueryRow(context.Background(), `SELECT message FROM reviews WHERE id = $1`, "missing").Scan(&message)
	if !db.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQuery_MultipleRows(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	for _, id := range []string{"r1", "r2", "r3"} {
		mustInsert(t, d, id, "alice@example.com", "m-"+id)
	}

	rows, err := d.Query(ctx, `SELECT id FROM reviews WHERE author = $1 ORDER BY id`, "alice@example.com")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scan: %v", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows.Err: %v", err)
	}
	if strings.Join(ids, ",") != "r1,r2,r3" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ExecTx
// ─────────────────────────────────────────────────────────────────────────────

func TestExecTx_Commit(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	err := d.ExecTx(ctx, func(tx *db.Tx) error {
		_, err := tx.Exec(ctx, insertReview, "tx1", "1", "dave@example.com", "hi", now, now)
		return err
	})
	if err != nil {
		t.Fatalf("tx commit: %v", err)
	}

	var n int
	_ = d.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE id = $1`, "tx1").Scan(&n)
	if n != 1 {
		t.Fatalf("expected 1 committed row, got %d", n)
	}
}

func TestExecTx_RollbackOnError(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	sentinelErr := errors.New("intentional failure")

	err := d.ExecTx(ctx, func(tx *db.Tx) error {
		if _, err := tx.Exec(ctx, insertReview, "rb1", "1", "eve@example.com", "x", now, now); err != nil {
			return err
		}
		return sentinelErr
	})
	if !errors.Is(err, sentinelErr) {
		t.Fatalf("expected sentinelErr, got %v", err)
	}

	var n int
	_ = d.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE id = $1`, "rb1").Scan(&n)
	if n != 0 {
		t.Fatalf("expected 0 rows after rollback, got %d", n)
	}
}

func TestExecTx_RollbackOnPanic(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic to propagate")
		}
	}()

	_ = d.ExecTx(ctx, func(tx *db.Tx) error {
		panic("test panic")
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Error mapping
// ─────────────────────────────────────────────────────────────────────────────

func TestErrorMapper_DuplicateKey(t *testing.T) {
	d := newTestDB(t)
	mustInsert(t, d, "dup", "alice@example.com", "first")

	now := time.Now()
	_, err := d.Exec(context.Background(), insertReview, "dup", "1", "alice@example.com", "second", now, now)
	if !db.IsDuplicateKey(err) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	var dbErr *db.DBError
	if !errors.As(err, &dbErr) || dbErr.Cause == nil {
		t.Fatalf("expected *DBError with cause, got %T", err)
	}
}

func TestErrorMapper_CheckViolation(t *testing.T) {
	d := newTestDB(t)
	now := time.Now()
	_, err := d.Exec(context.Background(), insertReview, "long", "1", "alice@example.com", strings.Repeat("x", 201), now, now)
	if !db.IsCheckViolation(err) {
		t.Fatalf("expected ErrCheckViolation, got %v", err)
	}
}

func TestErrorMapper_ForeignKeyViolation(t *testing.T) {
	d, err := db.Open(db.Config{DSN: ":memory:?_foreign_keys=1", DriverName: "sqlite3", MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	for _, stmt := range []string{
		`CREATE TABLE reviews (id TEXT PRIMARY KEY)`,
		`CREATE TABLE review_likes (review_id TEXT NOT NULL REFERENCES reviews(id), email TEXT NOT NULL)`,
	} {
		if _, err := d.Exec(ctx, stmt); err != nil {
			t.Fatalf("schema: %v", err)
		}
	}

	_, err = d.Exec(ctx, `INSERT INTO review_likes (review_id, email) VALUES ($1, $2)`, "missing", "alice@example.com")
	if !db.IsForeignKeyViolation(err) {
		t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
	}
}

func TestErrorMapper_ContextErrors(t *testing.T) {
	m := db.DefaultErrorMapper()
	if !db.IsTimeout(m.Map(context.DeadlineExceeded)) {
		t.Fatal("deadline should map to ErrTimeout")
	}
	if !db.IsCanceled(m.Map(context.Canceled)) {
		t.Fatal("cancel should map to ErrCanceled")
	}
	if m.Map(nil) != nil {
		t.Fatal("nil must stay nil")
	}

	plain := errors.New("plain")
	if got := m.Map(plain); got != plain {
		t.Fatalf("unknown errors must pass through, got %v", got)
	}
}

func TestChainMapper_FirstMatchWins(t *testing.T) {
	custom := errors.New("custom")
	m := db.ChainMapper(
		db.ErrorMapperFunc(func(err error) error {
			if err.Error() == "boom" {
				return custom
			}
			return err
		}),
		db.DefaultErrorMapper(),
	)
	if got := m.Map(errors.New("boom")); got != custom {
		t.Fatalf("expected custom mapping, got %v", got)
	}
	if !db.IsCanceled(m.Map(context.Canceled)) {
		t.Fatal("expected fallback to default mapper")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Hooks
// ─────────────────────────────────────────────────────────────────────────────

type countingHook struct {
	mu     sync.Mutex
	before int
	after  int
	errs   int
}

func (h *countingHook) BeforeQuery(ctx context.Context, _ string, _ []any) context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.before++
	return ctx
}

func (h *countingHook) AfterQuery(_ context.Context, _ string, _ []any, _ time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.after++
	if err != nil {
		h.errs++
	}
}

func TestHooks_CalledOnExec(t *testing.T) {
	hook := &countingHook{}
	d := newTestDB(t, hook)

	_, _ = d.Exec(context.Background(), `SELECT 1`)
	_, _ = d.Exec(context.Background(), `SELECT * FROM missing_table`)

	// schema creation + two statements
	if hook.before != 3 || hook.after != 3 {
		t.Fatalf("hook not called: before=%d after=%d", hook.before, hook.after)
	}
	if hook.errs != 1 {
		t.Fatalf("expected 1 failed statement, got %d", hook.errs)
	}
}

type panicHook struct{}

func (panicHook) BeforeQuery(context.Context, string, []any) context.Context { panic("before") }
func (panicHook) AfterQuery(context.Context, string, []any, time.Duration, error) {
	panic("after")
}

func TestHooks_PanicRecovered(t *testing.T) {
	d := newTestDB(t, panicHook{})
	if _, err := d.Exec(context.Background(), `SELECT 1`); err != nil {
		t.Fatalf("exec should survive hook panics: %v", err)
	}
}

type spanKey struct{}

type recordingTracer struct {
	mu      sync.Mutex
	started []string
	ended   int
	lastErr error
}

func (r *recordingTracer) StartSpan(ctx context.Context, query string) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, query)
	return context.WithValue(ctx, spanKey{}, len(r.started))
}

func (r *recordingTracer) EndSpan(ctx context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ctx.Value(spanKey{}) == nil {
		panic("span context not propagated")
	}
	r.ended++
	r.lastErr = err
}

func TestTracingHook_SpanSpansStatement(t *testing.T) {
	tracer := &recordingTracer{}
	d := newTestDB(t, db.NewTracingHook(tracer))

	_, err := d.Exec(context.Background(), `SELECT * FROM missing_table`)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(tracer.started) != 2 || tracer.ended != 2 {
		t.Fatalf("expected 2 spans, started=%d ended=%d", len(tracer.started), tracer.ended)
	}
	if tracer.lastErr == nil {
		t.Fatal("expected error recorded on span")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Drivers
// ─────────────────────────────────────────────────────────────────────────────

func TestMySQLRebind(t *testing.T) {
	drv, err := db.LookupDriver("mysql")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	q, args := drv.Rebind(
		`UPDATE reviews SET message = $1, updated_at = $2 WHERE id = $3 AND author = $4 AND id = $3`,
		[]any{"new", "now", "r1", "alice@example.com"},
	)
	want := `UPDATE reviews SET message = ?, updated_at = ? WHERE id = ? AND author = ? AND id = ?`
	if q != want {
		t.Fatalf("unexpected query:\n got %s\nwant %s", q, want)
	}
	if len(args) != 5 || args[4] != "r1" || args[3] != "alice@example.com" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestDriverDSN(t *testing.T) {
	cases := []struct {
		driver string
		opts   db.DriverOptions
		want   string
	}{
		{"postgres", db.DriverOptions{Host: "h", User: "u", Password: "p", Database: "d"},
			"host=h port=5432 user=u password=p dbname=d sslmode=disable"},
		{"pgx", db.DriverOptions{Host: "h", Port: 6432, User: "u", Password: "p", Database: "d", SSLMode: "require"},
			"host=h port=6432 user=u password=p dbname=d sslmode=require"},
		{"mysql", db.DriverOptions{Host: "h", User: "u", Password: "p", Database: "d"},
			"u:p@tcp(h:3306)/d?parseTime=true"},
		{"sqlite3", db.DriverOptions{Database: "reviews.db", Extra: map[string]string{"_fk": "1", "_busy_timeout": "5000"}},
			"reviews.db?_busy_timeout=5000&_fk=1"},
	}
	for _, tc := range cases {
		t.Run(tc.driver, func(t *testing.T) {
			drv, err := db.LookupDriver(tc.driver)
			if err != nil {
				t.Fatalf("lookup: %v", err)
			}
			got, err := drv.DSN(tc.opts)
			if err != nil {
				t.Fatalf("dsn: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestOpenWithDriver_SQLite(t *testing.T) {
	d, err := db.OpenWithDriver("sqlite3", db.DriverOptions{Database: ":memory:"}, db.Config{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()
	if err := d.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestSQLiteDSN(t *testing.T) {
	cases := map[string]string{
		"reviews.db":                        "reviews.db?_txlock=immediate&_busy_timeout=5000",
		"reviews.db?_fk=1":                  "reviews.db?_fk=1&_txlock=immediate&_busy_timeout=5000",
		"reviews.db?_txlock=deferred":       "reviews.db?_txlock=deferred&_busy_timeout=5000",
		"file:reviews.db?_busy_timeout=100": "file:reviews.db?_busy_timeout=100&_txlock=immediate",
	}
	for in, want := range cases {
		if got := db.SQLiteDSN(in); got != want {
			t.Errorf("SQLiteDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRegisterDriver_DuplicatePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for duplicate driver name")
		}
	}()
	db.RegisterDriver(db.SQLiteDriver{})
}

func TestStats(t *testing.T) {
	d := newTestDB(t)
	if got := d.Stats().MaxOpenConnections; got != 1 {
		t.Fatalf("expected MaxOpenConnections 1, got %d", got)
	}
}

func TestDSNFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := db.DSNFromEnv(); err == nil {
		t.Fatal("expected error when DATABASE_URL is unset")
	}
	t.Setenv("DATABASE_URL", "sqlite3://reviews.db")
	dsn, err := db.DSNFromEnv()
	if err != nil || dsn != "sqlite3://reviews.db" {
		t.Fatalf("unexpected: %q %v", dsn, err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Context cancellation
// ─────────────────────────────────────────────────────────────────────────────

func TestContextCancellation(t *testing.T) {
	d := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Exec(ctx, `SELECT 1`)
	if err != nil && !db.IsCanceled(err) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
}
