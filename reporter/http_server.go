// This is a http type of reporter.
// It fetches data from the header relay and the bridge ledger
// and publishes it on read-only http routes.

package reporter

import (
	"net/http"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/1sixtech/mojave-bridge-go/common"
	"github.com/1sixtech/mojave-bridge-go/headerrelay"
	"github.com/1sixtech/mojave-bridge-go/ledger"
)

const (
	ROUTE_HELLO      = "/hello"
	ROUTE_TIP        = "/tip"
	ROUTE_WITHDRAWAL = "/withdrawal"
	ROUTE_UTXO_STATS = "/utxo/stats"
)

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	// upstream data sources
	relay  *headerrelay.Relay
	ledger *ledger.BridgeLedger
}

func NewHttpReporter(serverIP string, serverPort string, relay *headerrelay.Relay, ledger *ledger.BridgeLedger) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		relay:      relay,
		ledger:     ledger,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.Default()

	router.GET(ROUTE_HELLO, Hello)
	router.GET(ROUTE_TIP, h.Tip)
	router.GET(ROUTE_WITHDRAWAL, h.Withdrawal)
	router.GET(ROUTE_UTXO_STATS, h.UtxoStats)

	return router
}

// Hook up router & ip:port
func (h *HttpReporter) Run() {
	router := h.SetupRouter()
	address := h.serverIP + ":" + h.serverPort
	if err := router.Run(address); err != nil {
		panic(err)
	}
}

// Example route.
func Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "world",
	})
}

// Tip publishes the relay's best and finalized tips.
func (h *HttpReporter) Tip(c *gin.Context) {
	tip, err := h.relay.Tip()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if tip == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "relay has no headers yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"best_hash":        tip.BestHash.String(),
		"best_height":      tip.BestHeight,
		"finalized_hash":   tip.FinalizedHash.String(),
		"finalized_height": tip.FinalizedHeight,
	})
}

// Withdrawal publishes one withdrawal by id (?wid=0x...).
func (h *HttpReporter) Withdrawal(c *gin.Context) {
	wid := c.Query("wid")
	if wid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wid must be provided"})
		return
	}

	w, err := h.ledger.GetWithdrawal(ethcommon.HexToHash(wid))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if w == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No withdrawal found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":              w.Id.String(),
		"requester":       w.Requester.String(),
		"amount_sats":     w.AmountSats,
		"status":          string(w.Status),
		"deadline":        w.Deadline,
		"signature_count": w.SignatureCount,
		"operator_set_id": w.OperatorSetId.String(),
		"settlement_txid": common.ByteSliceToPureHexStr(w.SettlementTxid[:]),
	})
}

// UtxoStats publishes the registry totals.
func (h *HttpReporter) UtxoStats(c *gin.Context) {
	total, available, availableSats, err := h.ledger.UtxoStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":          total,
		"available":      available,
		"available_sats": availableSats,
	})
}
