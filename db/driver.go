package db

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	// pgx registers itself with database/sql as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
)

// ─────────────────────────────────────────────────────────────────────────────
// Driver interface
// ─────────────────────────────────────────────────────────────────────────────

// RebindFunc rewrites a $n-placeholder statement into the driver's bind style.
type RebindFunc func(query string, args []any) (string, []any)

// Driver encapsulates database-specific behaviour: DSN construction,
// placeholder style and error mapping.
type Driver interface {
	// Name returns the name passed to sql.Register, e.g. "pgx", "mysql".
	Name() string

	// DSN converts structured options into a driver DSN string.
	DSN(opts DriverOptions) (string, error)

	// Rebind adapts a statement written with $n placeholders.
	Rebind(query string, args []any) (string, []any)

	// ErrorMapper returns a mapper tuned to this driver's error types.
	ErrorMapper() ErrorMapper
}

// DriverOptions carries the common connection parameters in a driver-agnostic
// form.
type DriverOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-full", etc.
	// Extra holds driver-specific key/value parameters.
	Extra map[string]string
}

// ─────────────────────────────────────────────────────────────────────────────
// Driver registry
// ─────────────────────────────────────────────────────────────────────────────

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// RegisterDriver adds a Driver to the registry. It panics on a duplicate name;
// use ReplaceDriver to override.
func RegisterDriver(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, ok := drivers[d.Name()]; ok {
		panic(fmt.Sprintf("reviewkit/db: driver %q already registered", d.Name()))
	}
	drivers[d.Name()] = d
}

// ReplaceDriver upserts a driver in the registry.
func ReplaceDriver(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[d.Name()] = d
}

// LookupDriver returns the registered Driver by name.
func LookupDriver(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("reviewkit/db: driver %q not registered", name)
	}
	return d, nil
}

// OpenWithDriver opens a DB from structured options instead of a raw DSN.
func OpenWithDriver(driverName string, driverOpts DriverOptions, cfg Config) (*DB, error) {
	drv, err := LookupDriver(driverName)
	if err != nil {
		return nil, err
	}

	dsn, err := drv.DSN(driverOpts)
	if err != nil {
		return nil, fmt.Errorf("reviewkit/db: DSN construction failed: %w", err)
	}

	cfg.DriverName = drv.Name()
	cfg.DSN = dsn

	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	db.SetErrorMapper(ChainMapper(drv.ErrorMapper(), DefaultErrorMapper()))
	return db, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL (lib/pq and pgx)
// ─────────────────────────────────────────────────────────────────────────────

// PostgresDriver is the lib/pq adapter.
type PostgresDriver struct{}

func (PostgresDriver) Name() string                        { return "postgres" }
func (PostgresDriver) DSN(o DriverOptions) (string, error) { return postgresDSN(o) }
func (PostgresDriver) Rebind(q string, a []any) (string, []any) {
	return keepDollar(q, a)
}
func (PostgresDriver) ErrorMapper() ErrorMapper { return DefaultErrorMapper() }

// PgxDriver is the jackc/pgx stdlib adapter.
type PgxDriver struct{}

func (PgxDriver) Name() string                        { return "pgx" }
func (PgxDriver) DSN(o DriverOptions) (string, error) { return postgresDSN(o) }
func (PgxDriver) Rebind(q string, a []any) (string, []any) {
	return keepDollar(q, a)
}
func (PgxDriver) ErrorMapper() ErrorMapper { return DefaultErrorMapper() }

func postgresDSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("postgres driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 5432
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		o.Host, port, o.User, o.Password, o.Database, sslMode,
	)
	for _, k := range sortedKeys(o.Extra) {
		dsn += fmt.Sprintf(" %s=%s", k, o.Extra[k])
	}
	return dsn, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// MySQL
// ─────────────────────────────────────────────────────────────────────────────

// MySQLDriver is the go-sql-driver/mysql adapter.
type MySQLDriver struct{}

func (MySQLDriver) Name() string { return "mysql" }

func (MySQLDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("mysql driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		o.User, o.Password, o.Host, port, o.Database)
	for _, k := range sortedKeys(o.Extra) {
		dsn += fmt.Sprintf("&%s=%s", k, o.Extra[k])
	}
	return dsn, nil
}

// Rebind turns $n placeholders into positional ? markers, reordering and
// duplicating args so each marker gets the value its $n referred to.
func (MySQLDriver) Rebind(query string, args []any) (string, []any) {
	var (
		b   strings.Builder
		out = make([]any, 0, len(args))
	)
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c != '$' {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteByte(c)
			continue
		}
		n, err := strconv.Atoi(query[i+1 : j])
		if err != nil || n < 1 || n > len(args) {
			b.WriteString(query[i:j])
			i = j - 1
			continue
		}
		b.WriteByte('?')
		out = append(out, args[n-1])
		i = j - 1
	}
	return b.String(), out
}

func (MySQLDriver) ErrorMapper() ErrorMapper { return DefaultErrorMapper() }

// ─────────────────────────────────────────────────────────────────────────────
// SQLite
// ─────────────────────────────────────────────────────────────────────────────

// SQLiteDriver is the mattn/go-sqlite3 adapter. SQLite accepts $n natively.
type SQLiteDriver struct{}

func (SQLiteDriver) Name() string { return "sqlite3" }

func (SQLiteDriver) DSN(o DriverOptions) (string, error) {
	if o.Database == "" {
		return "", fmt.Errorf("sqlite3 driver: Database (file path) is required")
	}
	dsn := o.Database
	for i, k := range sortedKeys(o.Extra) {
		if i == 0 {
			dsn += "?"
		} else {
			dsn += "&"
		}
		dsn += k + "=" + o.Extra[k]
	}
	return dsn, nil
}

func (SQLiteDriver) Rebind(q string, a []any) (string, []any) { return keepDollar(q, a) }
func (SQLiteDriver) ErrorMapper() ErrorMapper                 { return DefaultErrorMapper() }

// SQLiteDSN returns dsn with _txlock=immediate and _busy_timeout=5000 added
// unless already present. Immediate transactions take the write lock at
// BEGIN, so overlapping read-then-write transactions on a pooled handle wait
// on the busy timeout instead of failing the SHARED to RESERVED upgrade with
// "database is locked".
func SQLiteDSN(dsn string) string {
	for _, p := range [...]struct{ key, value string }{
		{"_txlock", "immediate"},
		{"_busy_timeout", "5000"},
	} {
		if strings.Contains(dsn, p.key+"=") {
			continue
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + p.key + "=" + p.value
	}
	return dsn
}

func init() {
	for _, d := range []Driver{PostgresDriver{}, PgxDriver{}, MySQLDriver{}, SQLiteDriver{}} {
		ReplaceDriver(d)
	}
}

func keepDollar(query string, args []any) (string, []any) { return query, args }

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ─────────────────────────────────────────────────────────────────────────────
// DSNFromEnv
// ─────────────────────────────────────────────────────────────────────────────

// DSNFromEnv returns the DATABASE_URL environment variable.
func DSNFromEnv() (string, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return "", fmt.Errorf("reviewkit/db: DATABASE_URL environment variable not set")
	}
	return dsn, nil
}
