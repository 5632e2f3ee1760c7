package rows

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// Drivers lists the database/sql driver names rows can query
var Drivers = []string{"sqlite", "postgres", "mysql"}

// Query opens a database, runs a query and returns every result row
func Query(ctx context.Context, driver, dsn, query string, args ...any) ([]formula.Row, error) {
	if !supportedDriver(driver) {
		return nil, fmt.Errorf("unsupported driver %q (want one of %v)", driver, Drivers)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	defer db.Close()

	return QueryDB(ctx, db, query, args...)
}

// QueryDB runs a query on an open database. []byte columns become text.
func QueryDB(ctx context.Context, db *sql.DB, query string, args ...any) ([]formula.Row, error) {
	rs, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	defer rs.Close()

	columns, err := rs.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	result := []formula.Row{}
	for rs.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		row := make(formula.Row, len(columns))
		for i, name := range columns {
			row[name] = convertColumn(values[i])
		}
		result = append(result, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return result, nil
}

func convertColumn(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func supportedDriver(driver string) bool {
	for _, d := range Drivers {
		if d == driver {
			return true
		}
	}
	return false
}
