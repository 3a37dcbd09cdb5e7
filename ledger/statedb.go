package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	ethcommon "github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/1sixtech/mojave-bridge-go/common"
	"github.com/1sixtech/mojave-bridge-go/database"
)

// LedgerDB persists the UTXO registry, the processed-outpoint set, the
// withdrawal map and the operator sets. Each map is an explicit keyed store
// owned by the bridge ledger alone.
type LedgerDB struct {
	stmtCache *database.StmtCache
}

func NewLedgerDB(db *sql.DB) (*LedgerDB, error) {
	schema := utxoTable + processedOutpointTable + withdrawalTable +
		operatorSetTable + nonceTable
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &LedgerDB{stmtCache: database.NewStmtCache(db)}, nil
}

func (db *LedgerDB) Close() {
	db.stmtCache.Clear()
}

// WithTx runs fn inside one sqlite transaction. Fund-moving transitions
// (deposit mint, settlement finalization) go through here so a mid-sequence
// failure rolls every row back.
func (db *LedgerDB) WithTx(fn func(tx *sql.Tx) error) error {
	return db.stmtCache.WithTx(fn)
}

// ---- utxo registry ----

// InsertUtxo registers a fresh unspent record. Registration always travels
// with a processed-outpoint insert, so it is transaction-scoped.
func (db *LedgerDB) InsertUtxo(tx *sql.Tx, u *UtxoRecord) error {
	query := `INSERT INTO utxo (id, txid, vout, amount, source, spent, spent_in)
		VALUES (?, ?, ?, ?, ?, 0, NULL)`
	_, err := tx.Exec(query,
		u.Id.String()[2:],
		common.ByteSliceToPureHexStr(u.Txid[:]),
		u.Vout,
		u.AmountSats,
		string(u.Source),
	)
	return err
}

func (db *LedgerDB) GetUtxo(id ethcommon.Hash) (*UtxoRecord, error) {
	query := `SELECT id, txid, vout, amount, source, spent, spent_in
		FROM utxo WHERE id = ?`
	stmt, err := db.stmtCache.Prepare(query)
	if err != nil {
		return nil, err
	}

	var (
		idHex, txidHex, source string
		spentIn                sql.NullString
		vout                   uint32
		amount                 uint64
		spent                  bool
	)
	if err := stmt.QueryRow(id.String()[2:]).Scan(
		&idHex, &txidHex, &vout, &amount, &source, &spent, &spentIn,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	u := &UtxoRecord{
		Id:         common.HexStrToBytes32(idHex),
		Txid:       common.HexStrToBytes32(txidHex),
		Vout:       vout,
		AmountSats: amount,
		Source:     UtxoSource(source),
		Spent:      spent,
	}
	if spentIn.Valid {
		u.SpentIn = common.HexStrToBytes32(spentIn.String)
	}
	return u, nil
}

// MarkUtxoSpent flips the write-once spent flag. It fails when the record
// is missing or already spent, so the flag can never be reset or doubled.
// Transaction-scoped: a settlement that loses the race on one input rolls
// back its marks on the others.
func (db *LedgerDB) MarkUtxoSpent(tx *sql.Tx, id, withdrawalId ethcommon.Hash) error {
	query := `UPDATE utxo SET spent = 1, spent_in = ? WHERE id = ? AND spent = 0`
	res, err := tx.Exec(query, withdrawalId.String()[2:], id.String()[2:])
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUtxoSpent
	}
	return nil
}

// UtxoStats sums the registry for the reporter.
func (db *LedgerDB) UtxoStats() (total, available int, availableSats uint64, err error) {
	query := `SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN spent = 0 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN spent = 0 THEN amount ELSE 0 END), 0)
		FROM utxo`
	stmt, err := db.stmtCache.Prepare(query)
	if err != nil {
		return 0, 0, 0, err
	}
	err = stmt.QueryRow().Scan(&total, &available, &availableSats)
	return total, available, availableSats, err
}

// ---- processed outpoints ----

func (db *LedgerDB) HasProcessedOutpoint(txid [32]byte, vout uint32) (bool, error) {
	query := `SELECT 1 FROM processed_outpoint WHERE txid = ? AND vout = ?`
	stmt, err := db.stmtCache.Prepare(query)
	if err != nil {
		return false, err
	}

	var one int
	if err := stmt.QueryRow(common.ByteSliceToPureHexStr(txid[:]), vout).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// InsertProcessedOutpoint books an outpoint into the exactly-once set,
// inside the same transaction as the registration it guards.
func (db *LedgerDB) InsertProcessedOutpoint(tx *sql.Tx, txid [32]byte, vout uint32) error {
	query := `INSERT INTO processed_outpoint (txid, vout) VALUES (?, ?)`
	_, err := tx.Exec(query, common.ByteSliceToPureHexStr(txid[:]), vout)
	return err
}

// ---- withdrawals ----

func (db *LedgerDB) InsertWithdrawal(w *Withdrawal) error {
	utxoIds, err := json.Marshal(hashesToHex(w.UtxoIds))
	if err != nil {
		return err
	}

	query := `INSERT INTO withdrawal (id, requester, amount, dest_script, deadline,
		outputs_hash, version, operator_set_id, fee, anchor_required, status,
		sig_bitmap, sig_count, utxo_ids, total_input, settlement_txid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`
	stmt, err := db.stmtCache.Prepare(query)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(
		w.Id.String()[2:],
		w.Requester.String()[2:],
		w.AmountSats,
		w.DestScript,
		w.Deadline,
		w.OutputsHash.String()[2:],
		w.Version,
		w.OperatorSetId.String()[2:],
		w.FeeSats,
		w.AnchorRequired,
		string(w.Status),
		fmt.Sprintf("%016x", w.SignatureBitmap),
		w.SignatureCount,
		utxoIds,
		w.TotalInputSats,
	)
	return err
}

func (db *LedgerDB) GetWithdrawal(id ethcommon.Hash) (*Withdrawal, error) {
	query := `SELECT id, requester, amount, dest_script, deadline, outputs_hash,
		version, operator_set_id, fee, anchor_required, status, sig_bitmap,
		sig_count, utxo_ids, total_input, settlement_txid
		FROM withdrawal WHERE id = ?`
	stmt, err := db.stmtCache.Prepare(query)
	if err != nil {
		return nil, err
	}

	var (
		idHex, requesterHex, outputsHex, setHex, status, bitmapHex string
		settlementHex                                              sql.NullString
		destScript, utxoIdsRaw                                     []byte
		amount, fee, totalInput                                    uint64
		deadline                                                   int64
		version                                                    uint8
		anchorRequired                                             bool
		sigCount                                                   int
	)
	if err := stmt.QueryRow(id.String()[2:]).Scan(
		&idHex, &requesterHex, &amount, &destScript, &deadline, &outputsHex,
		&version, &setHex, &fee, &anchorRequired, &status, &bitmapHex,
		&sigCount, &utxoIdsRaw, &totalInput, &settlementHex,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	bitmap, err := strconv.ParseUint(bitmapHex, 16, 64)
	if err != nil {
		return nil, err
	}

	var utxoIdsHex []string
	if len(utxoIdsRaw) > 0 {
		if err := json.Unmarshal(utxoIdsRaw, &utxoIdsHex); err != nil {
			return nil, err
		}
	}

	w := &Withdrawal{
		Id:              common.HexStrToBytes32(idHex),
		Requester:       ethcommon.HexToAddress(requesterHex),
		AmountSats:      amount,
		DestScript:      destScript,
		Deadline:        deadline,
		OutputsHash:     common.HexStrToBytes32(outputsHex),
		Version:         version,
		OperatorSetId:   common.HexStrToBytes32(setHex),
		FeeSats:         fee,
		AnchorRequired:  anchorRequired,
		Status:          WithdrawalStatus(status),
		SignatureBitmap: bitmap,
		SignatureCount:  sigCount,
		UtxoIds:         hexToHashes(utxoIdsHex),
		TotalInputSats:  totalInput,
	}
	if settlementHex.Valid {
		w.SettlementTxid = common.HexStrToBytes32(settlementHex.String)
	}
	return w, nil
}

// UpdateWithdrawalSignatures persists bitmap/count/status after an accepted
// signature.
func (db *LedgerDB) UpdateWithdrawalSignatures(id ethcommon.Hash, bitmap uint64, count int, status WithdrawalStatus) error {
	query := `UPDATE withdrawal SET sig_bitmap = ?, sig_count = ?, status = ? WHERE id = ?`
	stmt, err := db.stmtCache.Prepare(query)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(fmt.Sprintf("%016x", bitmap), count, string(status), id.String()[2:])
	return err
}

// UpdateWithdrawalSignaturesTx is UpdateWithdrawalSignatures scoped to an
// open transaction.
func (db *LedgerDB) UpdateWithdrawalSignaturesTx(tx *sql.Tx, id ethcommon.Hash, bitmap uint64, count int, status WithdrawalStatus) error {
	query := `UPDATE withdrawal SET sig_bitmap = ?, sig_count = ?, status = ? WHERE id = ?`
	_, err := tx.Exec(query, fmt.Sprintf("%016x", bitmap), count, string(status), id.String()[2:])
	return err
}

// SetWithdrawalFinalized records the settlement txid and the terminal
// state, inside the settlement transaction.
func (db *LedgerDB) SetWithdrawalFinalized(tx *sql.Tx, id ethcommon.Hash, settlementTxid [32]byte) error {
	query := `UPDATE withdrawal SET status = ?, settlement_txid = ? WHERE id = ?`
	_, err := tx.Exec(query, string(StatusFinalized),
		common.ByteSliceToPureHexStr(settlementTxid[:]), id.String()[2:])
	return err
}

func (db *LedgerDB) SetWithdrawalStatus(id ethcommon.Hash, status WithdrawalStatus) error {
	query := `UPDATE withdrawal SET status = ? WHERE id = ?`
	stmt, err := db.stmtCache.Prepare(query)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(string(status), id.String()[2:])
	return err
}

// ---- operator sets ----

func (db *LedgerDB) InsertOperatorSet(s *OperatorSet) error {
	members := make([]string, len(s.Members))
	for i, m := range s.Members {
		members[i] = m.String()[2:]
	}
	raw, err := json.Marshal(members)
	if err != nil {
		return err
	}

	if s.Active {
		deactivate := `UPDATE operator_set SET active = 0 WHERE active = 1`
		stmt, err := db.stmtCache.Prepare(deactivate)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(); err != nil {
			return err
		}
	}

	query := `INSERT INTO operator_set (id, members, threshold, active) VALUES (?, ?, ?, ?)`
	stmt, err := db.stmtCache.Prepare(query)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(s.Id.String()[2:], raw, s.Threshold, s.Active)
	return err
}

func (db *LedgerDB) GetOperatorSet(id ethcommon.Hash) (*OperatorSet, error) {
	query := `SELECT id, members, threshold, active FROM operator_set WHERE id = ?`
	stmt, err := db.stmtCache.Prepare(query)
	if err != nil {
		return nil, err
	}
	return scanOperatorSet(stmt.QueryRow(id.String()[2:]))
}

func (db *LedgerDB) GetActiveOperatorSet() (*OperatorSet, error) {
	query := `SELECT id, members, threshold, active FROM operator_set WHERE active = 1`
	stmt, err := db.stmtCache.Prepare(query)
	if err != nil {
		return nil, err
	}
	return scanOperatorSet(stmt.QueryRow())
}

func scanOperatorSet(row *sql.Row) (*OperatorSet, error) {
	var (
		idHex     string
		raw       []byte
		threshold int
		active    bool
	)
	if err := row.Scan(&idHex, &raw, &threshold, &active); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	var membersHex []string
	if err := json.Unmarshal(raw, &membersHex); err != nil {
		return nil, err
	}
	members := make([]ethcommon.Address, len(membersHex))
	for i, m := range membersHex {
		members[i] = ethcommon.HexToAddress(m)
	}

	return &OperatorSet{
		Id:        common.HexStrToBytes32(idHex),
		Members:   members,
		Threshold: threshold,
		Active:    active,
	}, nil
}

// ---- per-caller withdraw nonce ----

// NextNonce returns the caller's nonce and advances it.
func (db *LedgerDB) NextNonce(requester ethcommon.Address) (uint64, error) {
	get := `SELECT value FROM withdraw_nonce WHERE requester = ?`
	stmt, err := db.stmtCache.Prepare(get)
	if err != nil {
		return 0, err
	}

	requesterHex := requester.String()[2:]
	var nonce uint64
	if err := stmt.QueryRow(requesterHex).Scan(&nonce); err != nil && err != sql.ErrNoRows {
		return 0, err
	}

	set := `INSERT OR REPLACE INTO withdraw_nonce (requester, value) VALUES (?, ?)`
	stmt, err = db.stmtCache.Prepare(set)
	if err != nil {
		return 0, err
	}
	if _, err := stmt.Exec(requesterHex, nonce+1); err != nil {
		return 0, err
	}
	return nonce, nil
}

func hashesToHex(hashes []ethcommon.Hash) []string {
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = h.String()[2:]
	}
	return out
}

func hexToHashes(hexes []string) []ethcommon.Hash {
	out := make([]ethcommon.Hash, len(hexes))
	for i, h := range hexes {
		out[i] = common.HexStrToBytes32(h)
	}
	return out
}
