package ledger

/*
Simulated fixtures for the bridge ledger: in-memory sqlite, generated
operator keys and byte-exact deposit proofs mined onto a regtest-style
header chain. Everything here is deterministic enough for tests and cheap
enough for tooling.
*/

import (
	"crypto/ecdsa"
	"database/sql"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	logger "github.com/sirupsen/logrus"

	"github.com/1sixtech/mojave-bridge-go/btcparse"
	"github.com/1sixtech/mojave-bridge-go/common"
	"github.com/1sixtech/mojave-bridge-go/headerrelay"
	"github.com/1sixtech/mojave-bridge-go/record"
	"github.com/1sixtech/mojave-bridge-go/tokenledger"
)

func getMemoryDB() *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		logger.Fatal(err)
	}
	return db
}

// SimOperators is a generated threshold group with its private keys,
// member order fixed at creation.
type SimOperators struct {
	Keys      []*ecdsa.PrivateKey
	Members   []ethcommon.Address
	Threshold int
}

func NewSimOperators(n, threshold int) (*SimOperators, error) {
	s := &SimOperators{Threshold: threshold}
	for i := 0; i < n; i++ {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		s.Keys = append(s.Keys, key)
		s.Members = append(s.Members, crypto.PubkeyToAddress(key.PublicKey))
	}
	return s, nil
}

// Sign produces the approval signature of the member at idx.
func (s *SimOperators) Sign(digest ethcommon.Hash, idx int) ([]byte, error) {
	return SignApproval(digest, s.Keys[idx])
}

// SignFirst produces n approval signatures in ascending member order.
func (s *SimOperators) SignFirst(digest ethcommon.Hash, n int) ([][]byte, error) {
	sigs := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		sig, err := s.Sign(digest, i)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// SimDeposit bundles a raw deposit transaction with everything ClaimDeposit
// needs: the envelope commitment and an SPV proof whose header still has to
// be mined into a chain (single-transaction block, empty branch).
type SimDeposit struct {
	RawTx        []byte
	TxidInternal [32]byte
	EnvelopeHash ethcommon.Hash
	Proof        *SPVProof
}

// BuildSimDeposit assembles a deposit transaction paying amountSats to the
// vault script with the serialized envelope in an OP_RETURN output.
func BuildSimDeposit(vaultScript []byte, amountSats uint64, env *common.DepositEnvelope) *SimDeposit {
	outputs := []btcparse.TxOutput{
		{Value: amountSats, PkScript: vaultScript},
		{Value: 0, PkScript: btcparse.BuildOpReturnScript(env.Serialize())},
	}
	rawTx := btcparse.BuildRawTx(1, outputs, false)
	txidInternal := common.DoubleSHA256(rawTx)

	return &SimDeposit{
		RawTx:        rawTx,
		TxidInternal: txidInternal,
		EnvelopeHash: env.Hash(),
		Proof: &SPVProof{
			RawTx:        rawTx,
			Txid:         common.ReverseBytes32(txidInternal),
			MerkleBranch: nil,
			Index:        0,
		},
	}
}

// MineInto extends the chain with a block whose merkle root is this
// deposit's txid and attaches the header to the proof.
func (d *SimDeposit) MineInto(chain *headerrelay.SimChain) *headerrelay.SimHeader {
	h := chain.ExtendWithRoot(d.TxidInternal)
	d.Proof.Header = h.Raw
	return h
}

// SimBridge wires a full in-memory bridge: regtest relay, sqlite stores,
// simulated token ledger and a publisher with no observers.
type SimBridge struct {
	Ledger *BridgeLedger
	Relay  *headerrelay.Relay
	Chain  *headerrelay.SimChain
	Tokens *tokenledger.SimulatedTokenLedger
	DB     *LedgerDB
	Config *LedgerConfig
	Pub    *record.Publisher
}

// NewSimBridge builds a bridge over a fresh simulated chain long enough for
// minConf-deep deposits to confirm immediately after mining plus extension.
func NewSimBridge(cfg *LedgerConfig) (*SimBridge, error) {
	relayStore, err := headerrelay.NewHeaderSQLiteStorage(getMemoryDB())
	if err != nil {
		return nil, err
	}
	relay := headerrelay.NewRelay(&headerrelay.RelayConfig{
		FinalizationDepth: 0,
		MaxTarget:         btcparse.TargetFromBits(headerrelay.RegtestBits),
	}, relayStore)

	db, err := NewLedgerDB(getMemoryDB())
	if err != nil {
		return nil, err
	}

	tokens := tokenledger.NewSimulatedTokenLedger()
	pub := record.NewPublisher()
	chain := headerrelay.NewSimChain(0)

	return &SimBridge{
		Ledger: NewBridgeLedger(cfg, db, relay, tokens, pub),
		Relay:  relay,
		Chain:  chain,
		Tokens: tokens,
		DB:     db,
		Config: cfg,
		Pub:    pub,
	}, nil
}

// ConfirmDeposit mines the deposit, extends the chain to the configured
// confirmation depth and submits every header to the relay.
func (b *SimBridge) ConfirmDeposit(d *SimDeposit) error {
	d.MineInto(b.Chain)
	for i := uint64(1); i < b.Config.MinConfirmations; i++ {
		b.Chain.Extend()
	}
	return b.Chain.SubmitAll(b.Relay)
}

// SimLedgerConfig returns a ready-to-use config with random vault, change
// and anchor scripts. The clock starts at a fixed epoch and is advanced by
// reassigning Now.
func SimLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		ChainId:          big.NewInt(90001),
		BridgeAddress:    common.RandEthAddress(),
		VaultScript:      append([]byte{0x00, 0x14}, common.RandBytes(20)...),
		ChangeScript:     append([]byte{0x00, 0x14}, common.RandBytes(20)...),
		AnchorScript:     common.AnchorScript(),
		AnchorRequired:   true,
		FeeSats:          500,
		FeeBufferSats:    1000,
		MinConfirmations: 6,
		PolicyVersion:    1,
		Now:              func() int64 { return 1_700_000_000 },
	}
}

// BuildSettlementTx assembles a policy-conforming settlement transaction
// for a withdrawal under cfg: exact destination payment, change return and
// the anchor output when required.
func BuildSettlementTx(cfg *LedgerConfig, w *Withdrawal, changeSats uint64) []byte {
	outputs := []btcparse.TxOutput{
		{Value: w.AmountSats, PkScript: w.DestScript},
		{Value: changeSats, PkScript: cfg.ChangeScript},
	}
	if w.AnchorRequired {
		outputs = append(outputs, btcparse.TxOutput{Value: 0, PkScript: cfg.AnchorScript})
	}
	return btcparse.BuildRawTx(len(w.UtxoIds), outputs, false)
}
