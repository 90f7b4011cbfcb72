package sqldb

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
)

// executor interface allows using both sql.DB and sql.Tx
type executor interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// dialect hides the differences between PostgreSQL and SQLite. Queries are
// written with '?' placeholders and rebound for the target driver.
type dialect struct {
	driver string
}

func (d dialect) rebind(query string) string {
	if d.driver != relationaldb.DriverPostgres {
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

func (d dialect) primaryKey() string {
	if d.driver == relationaldb.DriverPostgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// isUniqueViolation reports whether err is a unique or primary key violation
// raised by either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch code := liteErr.Code(); {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case code&0xff == sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}

	return false
}

// boundExecutor applies the dialect to every statement.
type boundExecutor struct {
	exec executor
	d    dialect
}

func (b boundExecutor) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return b.exec.QueryRowContext(ctx, b.d.rebind(query), args...)
}

func (b boundExecutor) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return b.exec.QueryContext(ctx, b.d.rebind(query), args...)
}

func (b boundExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return b.exec.ExecContext(ctx, b.d.rebind(query), args...)
}
