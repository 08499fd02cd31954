// Package sqldb implements the repository interfaces on top of database/sql.
//
// Two backends are supported through the same queries:
//   - SQLite via modernc.org/sqlite (pure Go, no cgo), the default
//   - PostgreSQL via the pgx stdlib driver
//
// Queries are written with "?" placeholders and rewritten to "$n" for
// PostgreSQL by rebind. Both dialects support INSERT ... RETURNING, row-value
// comparisons and ON DELETE CASCADE, which is all the store relies on.
//
// The schema lives in migrations/<dialect>/*.sql and is applied with goose on
// Open.
package sqldb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	// Drivers register themselves with database/sql at init time:
	// modernc as "sqlite", pgx as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// Dialect names the SQL backend.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// ParseDialect accepts the DB_DRIVER spellings people actually use.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return "", fmt.Errorf("sqldb: unknown driver %q", s)
	}
}

// DB wraps a sql.DB pool. Each resource store is reached through an
// accessor (Users, Posts, Categories, Likes, Bookmarks) and shares the pool.
type DB struct {
	conn    *sql.DB
	dialect Dialect
	logger  *slog.Logger

	users      *UserStore
	posts      *PostStore
	categories *CategoryStore
	likes      *Relation
	bookmarks  *Relation
}

// Open connects, verifies the connection and migrates the schema.
//
// For SQLite, dsn is a file path or ":memory:"; connection pragmas are
// appended here so they apply to every pooled connection, not just the first.
// For PostgreSQL, dsn is a libpq URL or key/value string.
func Open(ctx context.Context, dialect Dialect, dsn string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	driverName := "pgx"
	if dialect == SQLite {
		driverName = "sqlite"
		dsn = sqliteDSN(dsn)
	}

	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqldb: opening %s: %w", dialect, err)
	}

	// An in-memory SQLite database exists per connection; pin the pool to one
	// so every query sees the same data.
	if dialect == SQLite && isMemory(dsn) {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqldb: pinging %s: %w", dialect, err)
	}

	db := &DB{conn: conn, dialect: dialect, logger: logger}
	db.users = &UserStore{db: db}
	db.posts = &PostStore{db: db}
	db.categories = &CategoryStore{db: db}
	db.likes = &Relation{db: db, table: "likes", resource: "like"}
	db.bookmarks = &Relation{db: db, table: "bookmarks", resource: "bookmark"}

	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqldb: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Dialect reports which backend db talks to.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

func (db *DB) Users() *UserStore { return db.users }

func (db *DB) Posts() *PostStore { return db.posts }

func (db *DB) Categories() *CategoryStore { return db.categories }

// Likes returns the like relation store.
func (db *DB) Likes() *Relation { return db.likes }

// Bookmarks returns the bookmark relation store.
func (db *DB) Bookmarks() *Relation { return db.bookmarks }

func (db *DB) migrate(ctx context.Context) error {
	gooseDialect := goose.DialectSQLite3
	if db.dialect == Postgres {
		gooseDialect = goose.DialectPostgres
	}

	dir, err := fs.Sub(migrations, "migrations/"+string(db.dialect))
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(gooseDialect, db.conn, dir)
	if err != nil {
		return fmt.Errorf("creating goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		db.logger.Info("migration applied",
			slog.String("dialect", string(db.dialect)),
			slog.String("source", r.Source.Path),
			slog.Duration("duration", r.Duration),
		)
	}
	return nil
}

// rebind rewrites "?" placeholders to "$1, $2, ..." for PostgreSQL.
//
// WHY ONE QUERY STRING FOR TWO DATABASES?
// SQLite accepts "?" placeholders, PostgreSQL only understands numbered ones:
//
//	SQLite:     SELECT ... WHERE post_id = ? AND user_id = ?
//	PostgreSQL: SELECT ... WHERE post_id = $1 AND user_id = $2
//
// Writing every query twice would let the two versions drift apart. Instead
// each store method writes the "?" form once and exec/query/queryRow pass it
// through rebind, which numbers the placeholders left to right when the
// dialect needs it. None of the store's queries contain a literal question
// mark, so a scan over the bytes is all it takes.
func (db *DB) rebind(query string) string {
	if db.dialect != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (db *DB) exec(ctx context.Context, q DBTX, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, db.rebind(query), args...)
}

func (db *DB) query(ctx context.Context, q DBTX, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, db.rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, q DBTX, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, db.rebind(query), args...)
}

// now is the timestamp written to created_at/updated_at columns. UTC with
// microsecond precision round-trips identically through both backends, and
// keeps SQLite's text timestamps ordered lexicographically.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func isMemory(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func sqliteDSN(path string) string {
	params := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
		"_time_format=sqlite",
	}
	if !isMemory(path) {
		params = append(params, "_pragma=journal_mode(WAL)")
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}
