package database

import (
	"database/sql"
	"sync"
)

// StmtCache memoizes prepared statements per query string. Every storage
// layer in the repo (header relay, bridge ledger) funnels its queries
// through one cache so a hot path never re-prepares.
type StmtCache struct {
	db *sql.DB
	m  sync.Map
}

func NewStmtCache(db *sql.DB) *StmtCache {
	return &StmtCache{db: db}
}

// DB exposes the underlying handle for schema setup and transactions.
func (sc *StmtCache) DB() *sql.DB {
	return sc.db
}

func (sc *StmtCache) Prepare(query string) (*sql.Stmt, error) {
	if cached, ok := sc.m.Load(query); ok {
		return cached.(*sql.Stmt), nil
	}

	stmt, err := sc.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	// another goroutine may have prepared the same query meanwhile;
	// keep the stored one and close ours
	if actual, loaded := sc.m.LoadOrStore(query, stmt); loaded {
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}
	return stmt, nil
}

func (sc *StmtCache) MustPrepare(query string) *sql.Stmt {
	stmt, err := sc.Prepare(query)
	if err != nil {
		panic(err)
	}
	return stmt
}

// WithTx runs fn inside a transaction, rolling back on error.
func (sc *StmtCache) WithTx(fn func(tx *sql.Tx) error) error {
	tx, err := sc.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Clear closes every cached statement.
func (sc *StmtCache) Clear() {
	sc.m.Range(func(k, v interface{}) bool {
		_ = v.(*sql.Stmt).Close()
		sc.m.Delete(k)
		return true
	})
}
