package ledger

import "strings"

var (
	strZeroBytes32 = strings.Repeat("0", 64)

	utxoTable = `CREATE TABLE IF NOT EXISTS utxo (
		id CHAR(64) PRIMARY KEY NOT NULL,
		txid CHAR(64) NOT NULL,
		vout INTEGER NOT NULL,
		amount BIGINT UNSIGNED NOT NULL,
		source VARCHAR(10) NOT NULL,
		spent BOOLEAN NOT NULL DEFAULT 0,
		spent_in CHAR(64),
		CONSTRAINT chk_source CHECK (source IN ('deposit', 'change', 'collateral')),
		CONSTRAINT chk_amount CHECK (amount > 0),
		CONSTRAINT chk_id CHECK (id != '` + strZeroBytes32 + `')
	);`

	processedOutpointTable = `CREATE TABLE IF NOT EXISTS processed_outpoint (
		txid CHAR(64) NOT NULL,
		vout INTEGER NOT NULL,
		PRIMARY KEY (txid, vout)
	);`

	withdrawalTable = `CREATE TABLE IF NOT EXISTS withdrawal (
		id CHAR(64) PRIMARY KEY NOT NULL,
		requester CHAR(40) NOT NULL,
		amount BIGINT UNSIGNED NOT NULL,
		dest_script BLOB NOT NULL,
		deadline BIGINT NOT NULL,
		outputs_hash CHAR(64) NOT NULL,
		version INTEGER NOT NULL,
		operator_set_id CHAR(64) NOT NULL,
		fee BIGINT UNSIGNED NOT NULL,
		anchor_required BOOLEAN NOT NULL,
		status VARCHAR(10) NOT NULL,
		sig_bitmap CHAR(16) NOT NULL,
		sig_count INTEGER NOT NULL,
		utxo_ids BLOB,
		total_input BIGINT UNSIGNED NOT NULL,
		settlement_txid CHAR(64),
		CONSTRAINT chk_status CHECK (status IN ('pending', 'ready', 'finalized', 'canceled')),
		CONSTRAINT chk_amount CHECK (amount > 0),
		CONSTRAINT chk_id CHECK (id != '` + strZeroBytes32 + `')
	);`

	operatorSetTable = `CREATE TABLE IF NOT EXISTS operator_set (
		id CHAR(64) PRIMARY KEY NOT NULL,
		members BLOB NOT NULL,
		threshold INTEGER NOT NULL,
		active BOOLEAN NOT NULL,
		CONSTRAINT chk_threshold CHECK (threshold > 0)
	);`

	nonceTable = `CREATE TABLE IF NOT EXISTS withdraw_nonce (
		requester CHAR(40) PRIMARY KEY NOT NULL,
		value BIGINT UNSIGNED NOT NULL
	);`
)
