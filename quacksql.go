package quacksql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/afero"

	_ "github.com/marcboeker/go-duckdb"
	_ "github.com/mattn/go-sqlite3"
)

// Manager owns one database connection and the registry of loaded queries.
// A Manager is safe for concurrent use; Results it hands out borrow the
// connection that was current when they were created.
type Manager struct {
	mu      sync.RWMutex
	db      *sql.DB
	queries map[string]string
	driver  string
	fs      afero.Fs
	logger  *slog.Logger
}

// QueryFunc invokes a loaded query. Nothing runs until the returned Result
// is materialized.
type QueryFunc func(args ...any) *Result

// Option configures a Manager.
type Option func(*Manager)

const (
	// DriverDuckDB is the default engine driver.
	DriverDuckDB = "duckdb"
	// DriverSQLite selects the embedded SQLite engine instead.
	DriverSQLite = "sqlite3"

	// Memory is the database sentinel for an ephemeral in-memory database.
	Memory = ":memory:"

	sqlExt = ".sql"
)

var (
	ErrMixedParams     = errors.New("quacksql: cannot mix positional and named parameters")
	ErrNoConnection    = errors.New("quacksql: no database connection; call Connect() first")
	ErrQueryNotFound   = errors.New("quacksql: query not found in loaded modules")
	ErrUnknownDriver   = errors.New("quacksql: unknown driver")
	ErrInvalidName     = errors.New("quacksql: invalid query name")
	ErrNotAStruct      = errors.New("quacksql: StructParams expects a struct or pointer to struct")
	ErrMoreThanOneRow  = errors.New("quacksql: more than one row")
	ErrFieldAmbiguous  = errors.New("quacksql: ambiguous field name")
	ErrUnsupportedDest = errors.New("quacksql: unsupported scan destination")
	ErrInvalidDest     = errors.New("quacksql: dest must be a non-nil pointer")
	ErrDestNotSlice    = errors.New("quacksql: ScanAll requires a pointer to slice")
	ErrInvalidDatabase = errors.New("quacksql: database path must not contain '?' or '#'")
)

// WithDriver selects the database/sql driver used by Connect.
// Supported values are DriverDuckDB (default) and DriverSQLite.
func WithDriver(name string) Option {
	return func(m *Manager) { m.driver = name }
}

// WithFs sets the filesystem modules are read from.
func WithFs(fs afero.Fs) Option {
	return func(m *Manager) { m.fs = fs }
}

// WithLogger sets the logger used for connection and module events.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New returns an unconnected Manager with an empty registry.
func New(opts ...Option) *Manager {
	m := &Manager{
		queries: make(map[string]string),
		driver:  DriverDuckDB,
		fs:      afero.NewOsFs(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect closes the current connection, if any, and opens database.
// database is a file path or Memory. The handle is pinged before it is
// stored, so engine open errors surface here.
func (m *Manager) Connect(database string, readOnly bool) (*Manager, error) {
	return m.ConnectContext(context.Background(), database, readOnly)
}

// ConnectContext is the context-aware variant of Connect.
func (m *Manager) ConnectContext(ctx context.Context, database string, readOnly bool) (*Manager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.closeLocked(); err != nil {
		return m, err
	}

	dsn, err := dataSourceName(m.driver, database, readOnly)
	if err != nil {
		return m, err
	}
	db, err := sql.Open(m.driver, dsn)
	if err != nil {
		return m, err
	}
	pinConnection(db)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return m, err
	}

	m.db = db
	m.logger.Debug("connected", "driver", m.driver, "database", database, "read_only", readOnly)
	return m, nil
}

// Use adopts an existing handle as the current connection, closing the
// previous one. The Manager takes ownership of db.
func (m *Manager) Use(db *sql.DB) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.closeLocked(); err != nil {
		m.logger.Warn("closing previous connection", "err", err)
	}
	m.db = db
	return m
}

// Close closes the current connection. Results still bound to it fail
// with the engine's error when materialized.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

// Module loads every *.sql file directly under dir, keyed by file name
// without extension. Existing entries with the same name are replaced.
// SQL is not validated.
func (m *Manager) Module(dir string) (*Manager, error) {
	loaded, err := readModule(m.fs, dir)
	if err != nil {
		return m, err
	}

	m.mu.Lock()
	for name, text := range loaded {
		m.queries[name] = text
	}
	m.mu.Unlock()

	m.logger.Debug("module loaded", "dir", dir, "queries", len(loaded))
	return m, nil
}

// Register adds or replaces a single query.
func (m *Manager) Register(name, query string) (*Manager, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return m, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	m.mu.Lock()
	m.queries[name] = query
	m.mu.Unlock()
	return m, nil
}

// Query resolves name to a callable. The connection is captured when the
// callable is invoked, not when it is resolved, so a later Connect is
// picked up by callables obtained earlier.
func (m *Manager) Query(name string) (QueryFunc, error) {
	m.mu.RLock()
	_, ok := m.queries[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrQueryNotFound, name)
	}

	return func(args ...any) *Result {
		m.mu.RLock()
		db, text := m.db, m.queries[name]
		m.mu.RUnlock()
		return newResult(db, text, args)
	}, nil
}

// Invoke resolves and calls name with args in one step.
func (m *Manager) Invoke(name string, args ...any) (*Result, error) {
	fn, err := m.Query(name)
	if err != nil {
		return nil, err
	}
	return fn(args...), nil
}

// Names returns the loaded query names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.queries))
	for name := range m.queries {
		names = append(names, name)
	}
	m.mu.RUnlock()
	slices.Sort(names)
	return names
}

// SQL returns the raw text stored under name.
func (m *Manager) SQL(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.queries[name]
	return text, ok
}

// closeLocked closes and clears the current connection. m.mu must be held.
func (m *Manager) closeLocked() error {
	if m.db == nil {
		return nil
	}
	db := m.db
	m.db = nil
	m.logger.Debug("closing connection", "driver", m.driver)
	return db.Close()
}

// forget drops a query from the registry.
func (m *Manager) forget(name string) {
	m.mu.Lock()
	delete(m.queries, name)
	m.mu.Unlock()
}

// readModule reads all *.sql files directly under dir.
func readModule(fs afero.Fs, dir string) (map[string]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != sqlExt {
			continue
		}
		b, err := afero.ReadFile(fs, filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out[queryName(e.Name())] = string(b)
	}
	return out, nil
}

// queryName returns the file name without its extension.
func queryName(file string) string {
	return strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
}
