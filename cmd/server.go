// Server = header relay + bridge ledger + indexer + watcher + http reporter.
// All components are configured via environment variables (strings!).

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/1sixtech/mojave-bridge-go/btcrpc"
	"github.com/1sixtech/mojave-bridge-go/common"
	"github.com/1sixtech/mojave-bridge-go/headerrelay"
	"github.com/1sixtech/mojave-bridge-go/indexer"
	"github.com/1sixtech/mojave-bridge-go/ledger"
	"github.com/1sixtech/mojave-bridge-go/record"
	"github.com/1sixtech/mojave-bridge-go/reporter"
	"github.com/1sixtech/mojave-bridge-go/tokenledger"
	"github.com/1sixtech/mojave-bridge-go/watcher"
)

// Default params for server.
// More often we don't recommend users to tweak those.
// So we list them here.
const (
	watcherPollInterval = 15 * time.Second
	broadcastMaxRetries = 10
)

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type BridgeServerConfig struct {
	// state side
	DbFilePath string // db file path
	// btc side
	BtcRpcServer   string           // btc rpc server info
	BtcRpcPort     string           // btc rpc server info
	BtcRpcUsername string           // btc rpc server info
	BtcRpcPwd      string           // btc rpc server info
	BtcChainConfig *chaincfg.Params // regtest, testnet, mainnet?
	VaultAddress   string           // btc address deposits pay into
	ChangeAddress  string           // btc address settlement change returns to
	AnchorRequired bool
	// ledger side
	ChainId            int64
	BridgeContractAddr string // 0x-prefixed
	MinConfirmations   uint64
	FinalizationDepth  uint64
	FeeSats            uint64
	FeeBufferSats      uint64
	PolicyVersion      uint8
	SelectionPolicy    string // largest / smallest / oldest / bestfit
	// Http side
	HttpIp   string // eg. 0.0.0.0
	HttpPort string // eg. 8080
}

// BridgeServer holds the objects that consists of the bridge server.
type BridgeServer struct {
	MyRelay     *headerrelay.Relay
	MyLedger    *ledger.BridgeLedger
	MyLedgerDb  *ledger.LedgerDB
	MyPublisher *record.Publisher
	MyIndexer   *indexer.Indexer
	MyWatcher   *watcher.Watcher
	MyReporter  *reporter.HttpReporter
	MyBtcRpc    *btcrpc.Client
}

// NewBridgeServer wires every component against one sqlite file and one
// bitcoin node.
func NewBridgeServer(cfg *BridgeServerConfig) (*BridgeServer, error) {
	db, err := sql.Open("sqlite3", cfg.DbFilePath)
	if err != nil {
		return nil, err
	}

	relayStore, err := headerrelay.NewHeaderSQLiteStorage(db)
	if err != nil {
		return nil, err
	}
	relay := headerrelay.NewRelay(&headerrelay.RelayConfig{
		FinalizationDepth: cfg.FinalizationDepth,
		MaxTarget:         new(big.Int).Set(cfg.BtcChainConfig.PowLimit),
	}, relayStore)

	vaultScript, err := AddressToPkScript(cfg.VaultAddress, cfg.BtcChainConfig)
	if err != nil {
		return nil, fmt.Errorf("bad vault address: %w", err)
	}
	changeScript, err := AddressToPkScript(cfg.ChangeAddress, cfg.BtcChainConfig)
	if err != nil {
		return nil, fmt.Errorf("bad change address: %w", err)
	}

	ledgerDb, err := ledger.NewLedgerDB(db)
	if err != nil {
		return nil, err
	}

	publisher := record.NewPublisher()
	tokens := tokenledger.NewSimulatedTokenLedger()
	bridgeLedger := ledger.NewBridgeLedger(&ledger.LedgerConfig{
		ChainId:          big.NewInt(cfg.ChainId),
		BridgeAddress:    ethcommon.HexToAddress(cfg.BridgeContractAddr),
		VaultScript:      vaultScript,
		ChangeScript:     changeScript,
		AnchorScript:     common.AnchorScript(),
		AnchorRequired:   cfg.AnchorRequired,
		FeeSats:          cfg.FeeSats,
		FeeBufferSats:    cfg.FeeBufferSats,
		MinConfirmations: cfg.MinConfirmations,
		PolicyVersion:    cfg.PolicyVersion,
	}, ledgerDb, relay, tokens, publisher)

	poolStore, err := indexer.NewPoolSQLiteStorageWithDB(db, "main")
	if err != nil {
		return nil, err
	}
	ix := indexer.NewIndexer(poolStore, indexer.SelectionPolicy(cfg.SelectionPolicy))
	ix.Subscribe(publisher)

	rpc, err := SetupBtcRpc(cfg.BtcRpcServer, cfg.BtcRpcPort, cfg.BtcRpcUsername, cfg.BtcRpcPwd)
	if err != nil {
		return nil, err
	}
	wt := watcher.New(&watcher.Config{
		PollInterval:        watcherPollInterval,
		MaxBroadcastRetries: broadcastMaxRetries,
	}, rpc, rpc, relay)
	wt.Subscribe(publisher)

	rep := reporter.NewHttpReporter(cfg.HttpIp, cfg.HttpPort, relay, bridgeLedger)

	return &BridgeServer{
		MyRelay:     relay,
		MyLedger:    bridgeLedger,
		MyLedgerDb:  ledgerDb,
		MyPublisher: publisher,
		MyIndexer:   ix,
		MyWatcher:   wt,
		MyReporter:  rep,
		MyBtcRpc:    rpc,
	}, nil
}

// StartBridgeServerAndWait runs every worker and blocks until SIGINT or
// SIGTERM.
func StartBridgeServerAndWait(cfg *BridgeServerConfig) {
	server, err := NewBridgeServer(cfg)
	if err != nil {
		logger.Fatalf("failed to create bridge server: %v", err)
	}
	defer server.MyBtcRpc.Close()
	defer server.MyLedgerDb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go server.MyIndexer.Run(ctx)
	go server.MyWatcher.Run(ctx)
	go server.MyReporter.Run()

	logger.Info("bridge server started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("bridge server shutting down")
}
