// Package dbtest provides a scriptable database/sql driver for exercising
// SQL-producing code without a live MySQL server. Tests inspect the recorded
// statements and script row sets or exec results through hooks.
package dbtest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// Stmt is one recorded statement with its positional arguments, captured
// after named-placeholder expansion.
type Stmt struct {
	Query string
	Args  []driver.Value
}

// Recorder collects everything the code under test sends to the driver.
type Recorder struct {
	mu        sync.Mutex
	Execs     []Stmt
	Queries   []Stmt
	Begins    int
	Commits   int
	Rollbacks int

	// OnQuery scripts the rows a query returns. When nil every query
	// yields an empty result set.
	OnQuery func(query string, args []driver.Value) (cols []string, rows [][]driver.Value)
	// OnExec scripts exec results. When nil each exec reports one affected
	// row and an auto-incrementing insert id.
	OnExec func(query string, args []driver.Value) (lastInsertID, rowsAffected int64)
	// FailNext makes the next exec or query fail with this error, once.
	FailNext error

	autoID int64
}

func (r *Recorder) takeFailure() error {
	err := r.FailNext
	r.FailNext = nil
	return err
}

// LastExec returns the most recently executed statement.
func (r *Recorder) LastExec() Stmt {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Execs) == 0 {
		return Stmt{}
	}
	return r.Execs[len(r.Execs)-1]
}

// LastQuery returns the most recently run query.
func (r *Recorder) LastQuery() Stmt {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Queries) == 0 {
		return Stmt{}
	}
	return r.Queries[len(r.Queries)-1]
}

var registered int64

// New registers a fresh fake driver instance and opens a *sql.DB on it.
func New() (*sql.DB, *Recorder) {
	rec := &Recorder{}
	name := fmt.Sprintf("dbtest-%d", atomic.AddInt64(&registered, 1))
	sql.Register(name, &drv{rec: rec})
	db, err := sql.Open(name, "")
	if err != nil {
		panic(err)
	}
	return db, rec
}

type drv struct{ rec *Recorder }

func (d *drv) Open(string) (driver.Conn, error) { return &conn{rec: d.rec}, nil }

type conn struct{ rec *Recorder }

func (c *conn) Prepare(string) (driver.Stmt, error) {
	return nil, fmt.Errorf("dbtest: prepared statements not supported")
}

func (c *conn) Close() error { return nil }

func (c *conn) Begin() (driver.Tx, error) { return c.BeginTx(context.Background(), driver.TxOptions{}) }

func (c *conn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	c.rec.mu.Lock()
	c.rec.Begins++
	c.rec.mu.Unlock()
	return &tx{rec: c.rec}, nil
}

func (c *conn) ExecContext(_ context.Context, query string, named []driver.NamedValue) (driver.Result, error) {
	args := values(named)
	c.rec.mu.Lock()
	c.rec.Execs = append(c.rec.Execs, Stmt{Query: query, Args: args})
	hook := c.rec.OnExec
	fail := c.rec.takeFailure()
	c.rec.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	if hook != nil {
		id, n := hook(query, args)
		return result{lastID: id, affected: n}, nil
	}
	c.rec.mu.Lock()
	c.rec.autoID++
	id := c.rec.autoID
	c.rec.mu.Unlock()
	return result{lastID: id, affected: 1}, nil
}

func (c *conn) QueryContext(_ context.Context, query string, named []driver.NamedValue) (driver.Rows, error) {
	args := values(named)
	c.rec.mu.Lock()
	c.rec.Queries = append(c.rec.Queries, Stmt{Query: query, Args: args})
	hook := c.rec.OnQuery
	fail := c.rec.takeFailure()
	c.rec.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	if hook == nil {
		return &rows{}, nil
	}
	cols, data := hook(query, args)
	return &rows{cols: cols, data: data}, nil
}

type tx struct{ rec *Recorder }

func (t *tx) Commit() error {
	t.rec.mu.Lock()
	t.rec.Commits++
	t.rec.mu.Unlock()
	return nil
}

func (t *tx) Rollback() error {
	t.rec.mu.Lock()
	t.rec.Rollbacks++
	t.rec.mu.Unlock()
	return nil
}

type result struct {
	lastID   int64
	affected int64
}

func (r result) LastInsertId() (int64, error) { return r.lastID, nil }
func (r result) RowsAffected() (int64, error) { return r.affected, nil }

type rows struct {
	cols []string
	data [][]driver.Value
	idx  int
}

func (r *rows) Columns() []string { return r.cols }
func (r *rows) Close() error      { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.idx >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.idx])
	r.idx++
	return nil
}

func values(named []driver.NamedValue) []driver.Value {
	out := make([]driver.Value, len(named))
	for i, nv := range named {
		out[i] = nv.Value
	}
	return out
}
