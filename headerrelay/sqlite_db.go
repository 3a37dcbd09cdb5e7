package headerrelay

import (
	"database/sql"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/1sixtech/mojave-bridge-go/common"
	"github.com/1sixtech/mojave-bridge-go/database"
)

// HeaderSQLiteStorage implements HeaderStorage on SQLite.
type HeaderSQLiteStorage struct {
	stmtCache *database.StmtCache
}

func NewHeaderSQLiteStorage(db *sql.DB) (*HeaderSQLiteStorage, error) {
	if _, err := db.Exec(headerTable + tipTable); err != nil {
		return nil, err
	}
	return &HeaderSQLiteStorage{stmtCache: database.NewStmtCache(db)}, nil
}

func (s *HeaderSQLiteStorage) Close() {
	s.stmtCache.Clear()
}

func (s *HeaderSQLiteStorage) InsertHeader(h *StoredHeader) error {
	query := `INSERT INTO header (hash, prev_hash, merkle_root, height, timestamp, bits, cum_work)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	stmt, err := s.stmtCache.Prepare(query)
	if err != nil {
		return err
	}

	_, err = stmt.Exec(
		h.Hash.String()[2:],
		h.PrevHash.String()[2:],
		common.ByteSliceToPureHexStr(h.MerkleRoot[:]),
		h.Height,
		h.Timestamp,
		h.Bits,
		h.CumulativeWork.Text(16),
	)
	return err
}

func (s *HeaderSQLiteStorage) HasHeader(hash ethcommon.Hash) (bool, error) {
	query := `SELECT 1 FROM header WHERE hash = ?`
	stmt, err := s.stmtCache.Prepare(query)
	if err != nil {
		return false, err
	}

	var one int
	if err := stmt.QueryRow(hash.String()[2:]).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *HeaderSQLiteStorage) GetHeader(hash ethcommon.Hash) (*StoredHeader, error) {
	query := `SELECT hash, prev_hash, merkle_root, height, timestamp, bits, cum_work
		FROM header WHERE hash = ?`
	stmt, err := s.stmtCache.Prepare(query)
	if err != nil {
		return nil, err
	}

	var (
		hashHex, prevHex, rootHex, workHex string
		height                             uint64
		timestamp, bits                    uint32
	)
	if err := stmt.QueryRow(hash.String()[2:]).Scan(
		&hashHex, &prevHex, &rootHex, &height, &timestamp, &bits, &workHex,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	work, ok := new(big.Int).SetString(workHex, 16)
	if !ok {
		work = new(big.Int)
	}

	return &StoredHeader{
		Hash:           common.HexStrToBytes32(hashHex),
		PrevHash:       common.HexStrToBytes32(prevHex),
		MerkleRoot:     common.HexStrToBytes32(rootHex),
		Height:         height,
		Timestamp:      timestamp,
		Bits:           bits,
		CumulativeWork: work,
	}, nil
}

func (s *HeaderSQLiteStorage) GetTip() (*ChainTip, error) {
	query := `SELECT best_hash, best_height, best_work, finalized_hash, finalized_height
		FROM chain_tip WHERE id = 0`
	stmt, err := s.stmtCache.Prepare(query)
	if err != nil {
		return nil, err
	}

	var (
		bestHex, workHex, finHex string
		bestHeight, finHeight    uint64
	)
	if err := stmt.QueryRow().Scan(&bestHex, &bestHeight, &workHex, &finHex, &finHeight); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	work, ok := new(big.Int).SetString(workHex, 16)
	if !ok {
		work = new(big.Int)
	}

	return &ChainTip{
		BestHash:        common.HexStrToBytes32(bestHex),
		BestHeight:      bestHeight,
		BestWork:        work,
		FinalizedHash:   common.HexStrToBytes32(finHex),
		FinalizedHeight: finHeight,
	}, nil
}

func (s *HeaderSQLiteStorage) SetTip(tip *ChainTip) error {
	query := `INSERT OR REPLACE INTO chain_tip
		(id, best_hash, best_height, best_work, finalized_hash, finalized_height)
		VALUES (0, ?, ?, ?, ?, ?)`
	stmt, err := s.stmtCache.Prepare(query)
	if err != nil {
		return err
	}

	_, err = stmt.Exec(
		tip.BestHash.String()[2:],
		tip.BestHeight,
		tip.BestWork.Text(16),
		tip.FinalizedHash.String()[2:],
		tip.FinalizedHeight,
	)
	return err
}
