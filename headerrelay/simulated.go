package headerrelay

/*
In-memory header chain builder for tests. Headers carry regtest-style bits
and grind the nonce until the target passes; forks are made by re-mining
from an earlier hash with a different starting nonce.
*/

import (
	"database/sql"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/1sixtech/mojave-bridge-go/btcparse"
	"github.com/1sixtech/mojave-bridge-go/common"
)

// RegtestBits expands to a target just below 2^255; roughly every second
// hash passes, so mining is a nonce grind of expected length two.
const RegtestBits = uint32(0x207fffff)

type SimHeader struct {
	Raw    []byte
	Hash   ethcommon.Hash
	Height uint64
}

// MineSimHeader mines a header on top of prevHash, grinding the nonce from
// the given starting value until the regtest target is met. The merkle root
// can be supplied to anchor a deposit proof; pass [32]byte{} for a random
// one.
func MineSimHeader(prevHash ethcommon.Hash, height uint64, merkleRoot [32]byte, nonce uint32) *SimHeader {
	if merkleRoot == ([32]byte{}) {
		merkleRoot = common.RandBytes32()
	}
	target := btcparse.TargetFromBits(RegtestBits)
	for {
		raw := btcparse.BuildRawHeader(2, prevHash, merkleRoot, 1700000000+uint32(height), RegtestBits, nonce)
		hash := common.DoubleSHA256(raw)
		if btcparse.CheckProofOfWork(hash, target) {
			return &SimHeader{
				Raw:    raw,
				Hash:   hash,
				Height: height,
			}
		}
		nonce++
	}
}

// SimChain mines consecutive headers and keeps their hashes.
type SimChain struct {
	Headers []*SimHeader
}

func NewSimChain(genesisHeight uint64) *SimChain {
	g := MineSimHeader(ethcommon.Hash{}, genesisHeight, [32]byte{}, 0)
	return &SimChain{Headers: []*SimHeader{g}}
}

func (c *SimChain) Tip() *SimHeader {
	return c.Headers[len(c.Headers)-1]
}

// Extend mines one block on the current tip.
func (c *SimChain) Extend() *SimHeader {
	tip := c.Tip()
	h := MineSimHeader(tip.Hash, tip.Height+1, [32]byte{}, uint32(len(c.Headers)))
	c.Headers = append(c.Headers, h)
	return h
}

// ExtendWithRoot mines one block carrying a specific merkle root.
func (c *SimChain) ExtendWithRoot(merkleRoot [32]byte) *SimHeader {
	tip := c.Tip()
	h := MineSimHeader(tip.Hash, tip.Height+1, merkleRoot, uint32(len(c.Headers)))
	c.Headers = append(c.Headers, h)
	return h
}

// SubmitAll feeds every mined header to the relay in order.
func (c *SimChain) SubmitAll(r *Relay) error {
	for _, h := range c.Headers {
		if err := r.SubmitHeader(h.Raw, h.Height); err != nil {
			return err
		}
	}
	return nil
}

func getMemoryDB() *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		logger.Fatal(err)
	}
	return db
}
