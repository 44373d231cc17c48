package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// Row is one result row keyed by column name. []byte column values are
// converted to string so callers can type-assert without caring about the
// driver's raw representation.
type Row map[string]any

// QueryError wraps any failure coming back from the store together with the
// statement that caused it. The Connection never retries; retry policy
// belongs to the caller.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v (sql: %s)", e.Err, e.Query)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Conn owns a single database session. Holding one *sql.Conn (instead of the
// pool) keeps LAST_INSERT_ID stable across calls and lets logical nested
// transactions map onto exactly one physical transaction.
//
// Begin/Commit track a depth counter: the physical transaction is started
// only on the 0->1 transition and committed only on the 1->0 transition.
// Commit with depth 0 is a successful no-op. Rollback is unconditional: it
// aborts the physical transaction and forces depth back to 0, so callers
// nested inside a rolled-back transaction run outside any transaction
// afterwards. There are no savepoints.
//
// A Conn is a request-scoped, single-goroutine object.
type Conn struct {
	sc     session
	tx     *sql.Tx
	depth  int
	lastID int64
}

// session is the subset of *sql.Conn the Conn needs. Narrowing it here lets
// tests substitute a scripted connection without a live server.
type session interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	Close() error
}

// NewConn checks one session out of the pool and wraps it.
func NewConn(ctx context.Context, db *sql.DB) (*Conn, error) {
	sc, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &Conn{sc: sc}, nil
}

// Table starts a new query builder on this connection.
func (c *Conn) Table(name string) *Builder { return newBuilder(c, name) }

// Exec runs a mutating statement. The query uses :name placeholders; values
// travel only through params, never by string interpolation.
func (c *Conn) Exec(ctx context.Context, query string, params map[string]any) (sql.Result, error) {
	stmt, args, err := expandNamed(query, params)
	if err != nil {
		return nil, err
	}
	var res sql.Result
	if c.tx != nil {
		res, err = c.tx.ExecContext(ctx, stmt, args...)
	} else {
		res, err = c.sc.ExecContext(ctx, stmt, args...)
	}
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}
	if id, idErr := res.LastInsertId(); idErr == nil && id != 0 {
		c.lastID = id
	}
	return res, nil
}

// Query runs a SELECT and materializes every row.
func (c *Conn) Query(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	stmt, args, err := expandNamed(query, params)
	if err != nil {
		return nil, err
	}
	var rows *sql.Rows
	if c.tx != nil {
		rows, err = c.tx.QueryContext(ctx, stmt, args...)
	} else {
		rows, err = c.sc.QueryContext(ctx, stmt, args...)
	}
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}
	out := []Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &QueryError{Query: query, Err: err}
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = vals[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}
	return out, nil
}

// Begin enters a (possibly nested) transaction.
func (c *Conn) Begin(ctx context.Context) error {
	if c.depth == 0 {
		tx, err := c.sc.BeginTx(ctx, nil)
		if err != nil {
			return &QueryError{Query: "BEGIN", Err: err}
		}
		c.tx = tx
	}
	c.depth++
	return nil
}

// Commit leaves one transaction level. The physical commit happens only when
// the outermost level closes. Committing with no open transaction succeeds.
func (c *Conn) Commit() error {
	if c.depth == 0 {
		return nil
	}
	c.depth--
	if c.depth > 0 {
		return nil
	}
	tx := c.tx
	c.tx = nil
	if err := tx.Commit(); err != nil {
		return &QueryError{Query: "COMMIT", Err: err}
	}
	return nil
}

// Rollback aborts the physical transaction regardless of nesting depth.
func (c *Conn) Rollback() error {
	tx := c.tx
	c.tx = nil
	c.depth = 0
	if tx == nil {
		return nil
	}
	if err := tx.Rollback(); err != nil {
		return &QueryError{Query: "ROLLBACK", Err: err}
	}
	return nil
}

// InTransaction reports whether a transaction is currently open.
func (c *Conn) InTransaction() bool { return c.depth > 0 }

// LastInsertID returns the identifier generated by the most recent INSERT on
// this connection. Only meaningful immediately after that insert.
func (c *Conn) LastInsertID() int64 { return c.lastID }

// Close releases the underlying session back to the pool. An open
// transaction is rolled back first.
func (c *Conn) Close() error {
	if c.tx != nil {
		_ = c.Rollback()
	}
	return c.sc.Close()
}

// expandNamed rewrites :name placeholders to driver ? placeholders, in order
// of appearance, and lines their values up. Quoted and backtick-escaped
// regions are passed through untouched. Referencing a name with no binding
// is a caller bug, reported as a QueryError.
func expandNamed(query string, params map[string]any) (string, []any, error) {
	var (
		out  []byte
		args []any
	)
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch ch {
		case '\'', '`':
			quote := ch
			out = append(out, ch)
			for i++; i < len(query); i++ {
				out = append(out, query[i])
				if query[i] == quote {
					break
				}
			}
		case ':':
			start := i + 1
			end := start
			for end < len(query) && isNameByte(query[end]) {
				end++
			}
			if end == start {
				out = append(out, ch)
				continue
			}
			name := query[start:end]
			val, ok := params[name]
			if !ok {
				return "", nil, &QueryError{Query: query, Err: fmt.Errorf("missing binding %q", name)}
			}
			out = append(out, '?')
			args = append(args, val)
			i = end - 1
		default:
			out = append(out, ch)
		}
	}
	return string(out), args, nil
}

func isNameByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
