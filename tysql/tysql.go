// Package tysql gives database/sql + github.com/mattn/go-sqlite3 a
// concrete home in this runtime, supplementing the largest feature
// original_source/src/sqlite.c implements that the distilled spec
// otherwise drops (spec.md §1 scopes out "built-in library surface...
// SQLite bindings... other than what clarifies value contracts"). This
// is intentionally thin: one connection type, one parameterized query
// entry point, row columns coerced to value.Value by the same rules
// ffi.Load uses for primitive C return values - not a reproduction of
// sqlite.c's statement/blob/transaction binding surface.
package tysql

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ty-lang/tyrt/value"
)

// DB wraps a single SQLite connection pool.
type DB struct {
	sql *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path,
// mirroring sqlite.c's ty_sqlite_open but via the stdlib database/sql
// pool instead of a hand-rolled connection handle.
func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(); err != nil {
		d.Close()
		return nil, err
	}
	return &DB{sql: d}, nil
}

// Close releases the underlying connection pool.
func (db *DB) Close() error { return db.sql.Close() }

// Query runs sql with args bound positionally and returns every
// resulting row as a value.Array of value.Tuple, one column per tuple
// position - params and results both coerced via toSQLArg/fromSQLCol,
// the same primitive-only coercion contract ffi.Load uses at the C
// boundary, so a SQLite row and a C return value share one mental model
// in this runtime.
func (db *DB) Query(query string, args ...value.Value) (*value.Array, error) {
	sqlArgs := make([]interface{}, len(args))
	for i, a := range args {
		v, err := toSQLArg(a)
		if err != nil {
			return nil, fmt.Errorf("tysql: arg %d: %w", i, err)
		}
		sqlArgs[i] = v
	}

	rows, err := db.sql.Query(query, sqlArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	arr := &value.Array{}
	scanTargets := make([]interface{}, len(cols))
	scanValues := make([]interface{}, len(cols))
	for i := range scanTargets {
		scanTargets[i] = &scanValues[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, err
		}
		items := make([]value.Value, len(cols))
		for i, raw := range scanValues {
			items[i] = fromSQLCol(raw)
		}
		arr.Items = append(arr.Items, value.NewTuple(items...))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return arr, nil
}

// Exec runs a non-query statement (INSERT/UPDATE/DELETE/DDL), returning
// the number of rows affected.
func (db *DB) Exec(query string, args ...value.Value) (int64, error) {
	sqlArgs := make([]interface{}, len(args))
	for i, a := range args {
		v, err := toSQLArg(a)
		if err != nil {
			return 0, fmt.Errorf("tysql: arg %d: %w", i, err)
		}
		sqlArgs[i] = v
	}
	res, err := db.sql.Exec(query, sqlArgs...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func toSQLArg(v value.Value) (interface{}, error) {
	switch p := v.Payload.(type) {
	case value.Int:
		return int64(p), nil
	case value.Float:
		return float64(p), nil
	case value.Bool:
		return bool(p), nil
	case *value.Str:
		return p.String(), nil
	case *value.Blob:
		return p.Bytes, nil
	default:
		if value.IsMissing(v) {
			return nil, nil
		}
		return nil, fmt.Errorf("unsupported value kind %s", v.Kind())
	}
}

func fromSQLCol(raw interface{}) value.Value {
	switch r := raw.(type) {
	case nil:
		return value.Nil
	case int64:
		return value.NewInt(r)
	case float64:
		return value.NewFloat(r)
	case bool:
		return value.NewBool(r)
	case string:
		return value.NewString(r)
	case []byte:
		return value.NewBlob(append([]byte(nil), r...)...)
	default:
		return value.NewString(fmt.Sprint(r))
	}
}
