// Package sqlrunner provides a thin runner over a single database connection
// that materializes query results as text cells.
package sqlrunner

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("dataquality/sqlrunner")

// Drivers lists the database/sql driver names registered by this package.
var Drivers = []string{"pgx", "mysql", "sqlserver", "sqlite"}

const pingTimeout = 5 * time.Second

type SQLRunner struct {
	db *sql.DB
}

// Open opens a single connection with the given driver and verifies it is
// reachable. Close must be called to release it.
func Open(ctx context.Context, driver, dsn string) (*SQLRunner, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, NewConnectError(fmt.Errorf("open %s: %w", driver, err))
	}

	// One connection for the whole run, reused serially.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, NewConnectError(fmt.Errorf("ping %s: %w", driver, err))
	}

	return &SQLRunner{db: db}, nil
}

// New wraps an already opened database.
func New(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

// Close releases the underlying connection.
func (r *SQLRunner) Close() error {
	return r.db.Close()
}

// Query executes a query and returns the result.
func (r *SQLRunner) Query(ctx context.Context, query string) (*QueryResult, error) {
	ctx, span := tracer.Start(ctx, "SQLRunner.Query")
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return &QueryResult{Columns: []string{}, Rows: [][]Cell{}}, nil
	}

	span.AddEvent("db.query")
	result, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, NewQueryError(err)
	}
	defer func() {
		if err := result.Close(); err != nil {
			slog.WarnContext(ctx, "close result", slog.Any("error", err))
		}
	}()

	span.AddEvent("construct_result")
	cols, err := result.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}

	numeric := make([]bool, len(cols))
	if types, err := result.ColumnTypes(); err == nil {
		for i, ct := range types {
			numeric[i] = isNumericType(ct.DatabaseTypeName())
		}
	}

	rows := [][]Cell{}
	for result.Next() {
		rawCells := make([]any, 0, len(cols))
		for i := range cols {
			rawCells = append(rawCells, &StringScanner{NumericColumn: numeric[i]})
		}

		if err := result.Scan(rawCells...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		row := make([]Cell, 0, len(cols))
		for _, cell := range rawCells {
			row = append(row, cell.(*StringScanner).Cell())
		}

		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, NewQueryError(err)
	}

	span.SetAttributes(attribute.Int("db.rows", len(rows)))

	return &QueryResult{
		Columns: cols,
		Rows:    rows,
	}, nil
}
