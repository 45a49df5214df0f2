package quacksql

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"sync"
)

// DefaultArraySize is the batch size FetchMany uses when size <= 0.
const DefaultArraySize = 1

// Row is one result row, values in column order.
type Row []any

// Result is a deferred query execution. It runs at most once successfully:
// the first materializing call executes the query and buffers its rows, and
// every later call reads from that buffer. Reads advance a shared cursor, so
// rows returned by one call are not returned again by the next.
//
// A Result does not own its connection; closing the Manager's connection
// before materialization makes the Result fail with the engine's error.
type Result struct {
	db    *sql.DB
	query string
	args  []any
	named []sql.NamedArg

	mu  sync.Mutex
	cur *cursor
}

// cursor holds a fully buffered result set and the read position in it.
type cursor struct {
	cols []Column
	rows []Row
	pos  int
}

func newResult(db *sql.DB, query string, args []any) *Result {
	pos, named := splitArgs(args)
	return &Result{db: db, query: query, args: pos, named: named}
}

// SQL returns the query text this Result runs.
func (r *Result) SQL() string { return r.query }

// Executed reports whether the query has run successfully.
func (r *Result) Executed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cur != nil
}

// Execute runs the query if it has not run yet. Materializers call it
// implicitly; calling it directly lets the caller pick the context.
func (r *Result) Execute(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.executeLocked(ctx)
}

// executeLocked validates the bound inputs and runs the query once.
// Failed executions are not cached. r.mu must be held.
func (r *Result) executeLocked(ctx context.Context) error {
	if r.cur != nil {
		return nil
	}
	if len(r.args) > 0 && len(r.named) > 0 {
		return ErrMixedParams
	}
	if r.db == nil {
		return ErrNoConnection
	}

	var bind []any
	switch {
	case len(r.args) > 0:
		bind = r.args
	case len(r.named) > 0:
		bind = make([]any, len(r.named))
		for i, n := range r.named {
			bind[i] = n
		}
	}

	rows, err := r.db.QueryContext(ctx, r.query, bind...)
	if err != nil {
		return err
	}
	cur, err := bufferRows(rows)
	if err != nil {
		return err
	}
	r.cur = cur
	return nil
}

// take executes if needed and removes up to n rows from the cursor.
// n < 0 takes all remaining rows.
func (r *Result) take(ctx context.Context, n int) ([]Column, []Row, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.executeLocked(ctx); err != nil {
		return nil, nil, err
	}
	c := r.cur
	rest := len(c.rows) - c.pos
	if n < 0 || n > rest {
		n = rest
	}
	out := c.rows[c.pos : c.pos+n : c.pos+n]
	c.pos += n
	return c.cols, out, nil
}

// FetchAll returns all remaining rows.
func (r *Result) FetchAll() ([]Row, error) {
	return r.FetchAllContext(context.Background())
}

// FetchAllContext is the context-aware variant of FetchAll.
func (r *Result) FetchAllContext(ctx context.Context) ([]Row, error) {
	_, rows, err := r.take(ctx, -1)
	return rows, err
}

// FetchOne returns the next row, or nil when the result is exhausted.
func (r *Result) FetchOne() (Row, error) {
	return r.FetchOneContext(context.Background())
}

// FetchOneContext is the context-aware variant of FetchOne.
func (r *Result) FetchOneContext(ctx context.Context) (Row, error) {
	_, rows, err := r.take(ctx, 1)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// FetchMany returns up to size rows. A size <= 0 means DefaultArraySize.
func (r *Result) FetchMany(size int) ([]Row, error) {
	return r.FetchManyContext(context.Background(), size)
}

// FetchManyContext is the context-aware variant of FetchMany.
func (r *Result) FetchManyContext(ctx context.Context, size int) ([]Row, error) {
	if size <= 0 {
		size = DefaultArraySize
	}
	_, rows, err := r.take(ctx, size)
	return rows, err
}

// Frame returns the remaining rows as a column-major Frame.
func (r *Result) Frame() (*Frame, error) {
	return r.FrameContext(context.Background())
}

// FrameContext is the context-aware variant of Frame.
func (r *Result) FrameContext(ctx context.Context) (*Frame, error) {
	cols, rows, err := r.take(ctx, -1)
	if err != nil {
		return nil, err
	}
	return newFrame(cols, rows), nil
}

// Columns returns the result column names.
func (r *Result) Columns() ([]string, error) {
	cols, _, err := r.take(context.Background(), 0)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}

// All returns an iterator over the remaining rows. Starting the iteration
// consumes the whole remaining set, even if the loop stops early. An
// execution error is yielded once with a nil row.
func (r *Result) All() iter.Seq2[Row, error] {
	return r.AllContext(context.Background())
}

// AllContext is the context-aware variant of All.
func (r *Result) AllContext(ctx context.Context) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		_, rows, err := r.take(ctx, -1)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, row := range rows {
			if !yield(row, nil) {
				return
			}
		}
	}
}

// String renders the remaining rows the way fmt prints the FetchAll
// result, consuming them. A failed execution is rendered inline as
// %!v(ERROR=...); call FetchAll when the error itself is needed.
func (r *Result) String() string {
	rows, err := r.FetchAll()
	if err != nil {
		return fmt.Sprintf("%%!v(ERROR=%v)", err)
	}
	return fmt.Sprint(rows)
}

// bufferRows reads every row and closes rows.
func bufferRows(rows *sql.Rows) (*cursor, error) {
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	cols := make([]Column, len(types))
	for i, ct := range types {
		cols[i] = Column{Name: ct.Name(), DatabaseType: ct.DatabaseTypeName()}
	}

	out := make([]Row, 0, 16)
	ptrs := make([]any, len(cols))
	for rows.Next() {
		row := make(Row, len(cols))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &cursor{cols: cols, rows: out}, nil
}
