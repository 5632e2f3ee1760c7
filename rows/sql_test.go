package rows_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/rows"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// every pooled connection would get its own in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE orders (name TEXT, price REAL, qty INTEGER, note BLOB)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO orders VALUES ('widget', 2.5, 4, X'6869'), ('gadget', 10.0, 1, NULL)`)
	require.NoError(t, err)
	return db
}

func TestQueryDB_SQLite(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	data, err := rows.QueryDB(ctx, db, `SELECT name, price, qty, note FROM orders ORDER BY name`)
	require.NoError(t, err)
	require.Len(t, data, 2)

	assert.Equal(t, "gadget", data[0]["name"])
	assert.Nil(t, data[0]["note"])
	assert.Equal(t, "widget", data[1]["name"])
	assert.Equal(t, "hi", data[1]["note"])

	opts := formula.DefaultOptions()
	opts.Logger = formula.DiscardLogger()
	engine := formula.NewEngine(opts)
	result := engine.Calculate("=price * qty", &formula.FormulaContext{Row: data[1]})
	require.True(t, result.Success, result.Error)
	assert.True(t, result.Value.Equal(formula.Number(10)))
}

func TestQueryDB_Args(t *testing.T) {
	db := openSQLite(t)

	data, err := rows.QueryDB(context.Background(), db, `SELECT name FROM orders WHERE qty > ?`, 2)
	require.NoError(t, err)
	require.Len(t, data, 1)
	assert.Equal(t, "widget", data[0]["name"])

	_, err = rows.QueryDB(context.Background(), db, `SELECT nope FROM missing`)
	assert.ErrorContains(t, err, "running query")
}

func TestQuery_UnsupportedDriver(t *testing.T) {
	_, err := rows.Query(context.Background(), "oracle", "", "SELECT 1")
	assert.ErrorContains(t, err, "unsupported driver")
}

func TestQuery_SQLiteFile(t *testing.T) {
	dsn := t.TempDir() + "/rows.db"
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE t (a INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO t VALUES (7)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	data, err := rows.Query(context.Background(), "sqlite", dsn, `SELECT a FROM t`)
	require.NoError(t, err)
	require.Len(t, data, 1)
	assert.EqualValues(t, 7, data[0]["a"])
}
