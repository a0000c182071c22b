package tysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ty-lang/tyrt/value"
)

func openMemDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestExecCreateAndInsert(t *testing.T) {
	db := openMemDB(t)

	_, err := db.Exec(`CREATE TABLE users (id INTEGER, name TEXT, score REAL)`)
	require.NoError(t, err)

	n, err := db.Exec(`INSERT INTO users (id, name, score) VALUES (?, ?, ?)`,
		value.NewInt(1), value.NewString("ada"), value.NewFloat(9.5))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestQueryReturnsTupleRows(t *testing.T) {
	db := openMemDB(t)
	_, err := db.Exec(`CREATE TABLE users (id INTEGER, name TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO users (id, name) VALUES (?, ?)`, value.NewInt(1), value.NewString("ada"))
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO users (id, name) VALUES (?, ?)`, value.NewInt(2), value.NewString("grace"))
	require.NoError(t, err)

	rows, err := db.Query(`SELECT id, name FROM users ORDER BY id`)
	require.NoError(t, err)
	require.Len(t, rows.Items, 2)

	first, ok := value.AsTuple(rows.Items[0])
	require.True(t, ok)
	assert.Equal(t, value.NewInt(1), first.ByIndex(0))
	name, ok := value.AsString(first.ByIndex(1))
	require.True(t, ok)
	assert.Equal(t, "ada", name.String())
}

func TestQueryWithNoRows(t *testing.T) {
	db := openMemDB(t)
	_, err := db.Exec(`CREATE TABLE empty (id INTEGER)`)
	require.NoError(t, err)

	rows, err := db.Query(`SELECT id FROM empty`)
	require.NoError(t, err)
	assert.Empty(t, rows.Items)
}

func TestExecUpdateReportsRowsAffected(t *testing.T) {
	db := openMemDB(t)
	_, err := db.Exec(`CREATE TABLE counters (id INTEGER, n INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO counters (id, n) VALUES (1, 0), (2, 0)`)
	require.NoError(t, err)

	n, err := db.Exec(`UPDATE counters SET n = n + 1`)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestQueryNullColumnBecomesNil(t *testing.T) {
	db := openMemDB(t)
	_, err := db.Exec(`CREATE TABLE nullable (id INTEGER, label TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO nullable (id, label) VALUES (?, ?)`, value.NewInt(1), value.Nil)
	require.NoError(t, err)

	rows, err := db.Query(`SELECT label FROM nullable`)
	require.NoError(t, err)
	require.Len(t, rows.Items, 1)
	tup, ok := value.AsTuple(rows.Items[0])
	require.True(t, ok)
	assert.True(t, value.IsNil(tup.ByIndex(0)))
}
