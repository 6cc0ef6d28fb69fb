// Package warehouse runs read-only queries against the data warehouse and
// returns their results as typed rows with named columns.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/SurveyBot/internal/metrics"
)

var (
	// ErrConnection reports that a warehouse round-trip could not be completed.
	ErrConnection = errors.New("warehouse connection error")

	// ErrColumnNotFound reports that a result lacks an expected column.
	ErrColumnNotFound = errors.New("column not found in result")
)

// Querier issues a single read query and returns the full result.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (*Result, error)
}

// Result holds the rows returned by a query.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (r *Result) Len() int {
	return len(r.Rows)
}

// Index returns the position of the named column. Names are matched
// case-insensitively since drivers disagree on identifier case.
func (r *Result) Index(name string) (int, bool) {
	for i, col := range r.Columns {
		if strings.EqualFold(col, name) {
			return i, true
		}
	}
	return -1, false
}

// Strings returns every value of the named column in row order.
func (r *Result) Strings(name string) ([]string, error) {
	idx, ok := r.Index(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s (have %s)", ErrColumnNotFound, name, strings.Join(r.Columns, ", "))
	}

	values := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		values = append(values, FormatValue(row[idx]))
	}
	return values, nil
}

// FormatValue renders a single cell as text.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// DB adapts a *sql.DB to the Querier interface.
type DB struct {
	db *sql.DB
}

// NewDB wraps an open database handle.
func NewDB(db *sql.DB) *DB {
	return &DB{db: db}
}

// Open connects to the warehouse with a registered database/sql driver and
// verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrConnection, driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", ErrConnection, driver, err)
	}
	return NewDB(db), nil
}

// Query runs the statement and reads every row into memory.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	start := time.Now()
	result, err := d.query(ctx, query, args...)
	metrics.WarehouseQueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.WarehouseQueries.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	metrics.WarehouseQueries.WithLabelValues("ok").Inc()
	return result, nil
}

func (d *DB) query(ctx context.Context, query string, args ...any) (*Result, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Result{Columns: columns}
	for rows.Next() {
		values, err := scanRow(rows, len(columns))
		if err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, normalizeRow(values))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Close closes the underlying database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

func scanRow(rows *sql.Rows, numCols int) ([]any, error) {
	values := make([]any, numCols)
	ptrs := make([]any, numCols)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return values, nil
}

func normalizeRow(values []any) []any {
	row := make([]any, len(values))
	for i, v := range values {
		switch val := v.(type) {
		case []byte:
			row[i] = string(val)
		case time.Time:
			row[i] = val.Format(time.RFC3339Nano)
		default:
			row[i] = val
		}
	}
	return row
}

var _ Querier = (*DB)(nil)
