package indexer

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// PoolSQLiteStorage implements PoolStorage for SQLite
type PoolSQLiteStorage struct {
	uniqueTableID string
	db            *sql.DB
}

// NewPoolSQLiteStorage opens (or creates) the pool table. uniqueID keeps
// multiple pools apart in one database file.
func NewPoolSQLiteStorage(dbFilePath string, uniqueID string) (*PoolSQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dbFilePath)
	if err != nil {
		return nil, err
	}
	return newPoolStorage(db, uniqueID)
}

// NewPoolSQLiteStorageWithDB wraps an already-open handle; tests use this
// with ":memory:".
func NewPoolSQLiteStorageWithDB(db *sql.DB, uniqueID string) (*PoolSQLiteStorage, error) {
	return newPoolStorage(db, uniqueID)
}

func newPoolStorage(db *sql.DB, uniqueID string) (*PoolSQLiteStorage, error) {
	storage := &PoolSQLiteStorage{db: db, uniqueTableID: "pool_utxo_" + uniqueID}
	if err := storage.init(); err != nil {
		return nil, err
	}
	return storage, nil
}

func (s *PoolSQLiteStorage) init() error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		utxo_id TEXT PRIMARY KEY,
		tx_id TEXT,
		vout INTEGER,
		amount INTEGER,
		source TEXT,
		seq INTEGER,
		lockup BOOLEAN,
		spent BOOLEAN,
		timeout INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_pool_tx_id ON %s (tx_id);
	`, s.uniqueTableID, s.uniqueTableID)
	_, err := s.db.Exec(query)
	return err
}

func (s *PoolSQLiteStorage) InsertPoolUTXO(u PoolUTXO) error {
	query := fmt.Sprintf(`
	INSERT INTO %s (utxo_id, tx_id, vout, amount, source, seq, lockup, spent, timeout)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
	`, s.uniqueTableID)
	_, err := s.db.Exec(query, u.UtxoId, u.TxID, u.Vout, u.Amount, u.Source, u.Seq, u.Lockup, u.Spent, u.Timeout)
	return err
}

func (s *PoolSQLiteStorage) QueryByUtxoId(id string) (*PoolUTXO, error) {
	query := fmt.Sprintf(`
	SELECT utxo_id, tx_id, vout, amount, source, seq, lockup, spent, timeout
	FROM %s
	WHERE utxo_id = ?;
	`, s.uniqueTableID)

	var u PoolUTXO
	err := s.db.QueryRow(query, id).Scan(&u.UtxoId, &u.TxID, &u.Vout, &u.Amount, &u.Source, &u.Seq, &u.Lockup, &u.Spent, &u.Timeout)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PoolSQLiteStorage) QueryAllUsable() ([]PoolUTXO, error) {
	query := fmt.Sprintf(`
	SELECT utxo_id, tx_id, vout, amount, source, seq, lockup, spent, timeout
	FROM %s
	WHERE lockup = 0 AND spent = 0;
	`, s.uniqueTableID)
	return s.queryMany(query)
}

func (s *PoolSQLiteStorage) QueryExpiredAndLocked(t int64) ([]PoolUTXO, error) {
	query := fmt.Sprintf(`
	SELECT utxo_id, tx_id, vout, amount, source, seq, lockup, spent, timeout
	FROM %s
	WHERE lockup = 1 AND spent = 0 AND timeout > 0 AND timeout < ?;
	`, s.uniqueTableID)
	return s.queryMany(query, t)
}

func (s *PoolSQLiteStorage) queryMany(query string, args ...any) ([]PoolUTXO, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var utxos []PoolUTXO
	for rows.Next() {
		var u PoolUTXO
		if err := rows.Scan(&u.UtxoId, &u.TxID, &u.Vout, &u.Amount, &u.Source, &u.Seq, &u.Lockup, &u.Spent, &u.Timeout); err != nil {
			return nil, err
		}
		utxos = append(utxos, u)
	}
	return utxos, rows.Err()
}

func (s *PoolSQLiteStorage) SetLockup(id string, lockup bool) error {
	query := fmt.Sprintf(`UPDATE %s SET lockup = ? WHERE utxo_id = ?;`, s.uniqueTableID)
	_, err := s.db.Exec(query, lockup, id)
	return err
}

func (s *PoolSQLiteStorage) SetTimeout(id string, timeout int64) error {
	query := fmt.Sprintf(`UPDATE %s SET timeout = ? WHERE utxo_id = ?;`, s.uniqueTableID)
	_, err := s.db.Exec(query, timeout, id)
	return err
}

func (s *PoolSQLiteStorage) SetSpent(id string) error {
	query := fmt.Sprintf(`UPDATE %s SET spent = 1, lockup = 0 WHERE utxo_id = ?;`, s.uniqueTableID)
	_, err := s.db.Exec(query, id)
	return err
}

func (s *PoolSQLiteStorage) SumUsable() (uint64, error) {
	query := fmt.Sprintf(`
	SELECT COALESCE(SUM(amount), 0) FROM %s WHERE lockup = 0 AND spent = 0;
	`, s.uniqueTableID)

	var sum uint64
	err := s.db.QueryRow(query).Scan(&sum)
	return sum, err
}
