package headerrelay

var (
	headerTable = `CREATE TABLE IF NOT EXISTS header (
		hash CHAR(64) PRIMARY KEY NOT NULL,
		prev_hash CHAR(64) NOT NULL,
		merkle_root CHAR(64) NOT NULL,
		height BIGINT UNSIGNED NOT NULL,
		timestamp INTEGER NOT NULL,
		bits INTEGER NOT NULL,
		cum_work VARCHAR(64) NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_header_height ON header (height);`

	// single-row table, id is always 0
	tipTable = `CREATE TABLE IF NOT EXISTS chain_tip (
		id INTEGER PRIMARY KEY CHECK (id = 0),
		best_hash CHAR(64) NOT NULL,
		best_height BIGINT UNSIGNED NOT NULL,
		best_work VARCHAR(64) NOT NULL,
		finalized_hash CHAR(64) NOT NULL,
		finalized_height BIGINT UNSIGNED NOT NULL
	);`
)
