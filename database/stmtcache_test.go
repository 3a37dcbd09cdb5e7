package database

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func newTestCache(t *testing.T) *StmtCache {
	db, err := sql.Open("sqlite3", ":memory:")
	assert.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)`)
	assert.NoError(t, err)
	return NewStmtCache(db)
}

func TestPrepareCachesStatements(t *testing.T) {
	sc := newTestCache(t)
	defer sc.Clear()

	query := `INSERT INTO kv (k, v) VALUES (?, ?)`
	first, err := sc.Prepare(query)
	assert.NoError(t, err)
	second, err := sc.Prepare(query)
	assert.NoError(t, err)
	assert.Same(t, first, second)

	_, err = first.Exec("a", "1")
	assert.NoError(t, err)

	var v string
	stmt, err := sc.Prepare(`SELECT v FROM kv WHERE k = ?`)
	assert.NoError(t, err)
	assert.NoError(t, stmt.QueryRow("a").Scan(&v))
	assert.Equal(t, "1", v)
}

func TestPrepareBadQuery(t *testing.T) {
	sc := newTestCache(t)
	_, err := sc.Prepare(`SELECT nope FROM missing`)
	assert.Error(t, err)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	sc := newTestCache(t)
	defer sc.Clear()

	err := sc.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO kv (k, v) VALUES ('x', '1')`); err != nil {
			return err
		}
		return errors.New("abort")
	})
	assert.Error(t, err)

	var n int
	assert.NoError(t, sc.DB().QueryRow(`SELECT COUNT(*) FROM kv`).Scan(&n))
	assert.Equal(t, 0, n)

	assert.NoError(t, sc.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO kv (k, v) VALUES ('x', '1')`)
		return err
	}))
	assert.NoError(t, sc.DB().QueryRow(`SELECT COUNT(*) FROM kv`).Scan(&n))
	assert.Equal(t, 1, n)
}
