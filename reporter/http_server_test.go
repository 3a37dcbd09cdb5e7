package reporter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/1sixtech/mojave-bridge-go/common"
	"github.com/1sixtech/mojave-bridge-go/ledger"
)

func get(t *testing.T, router *gin.Engine, path string) (int, map[string]any) {
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	assert.NoError(t, err)
	router.ServeHTTP(w, req)

	var body map[string]any
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func newTestReporter(t *testing.T) (*HttpReporter, *ledger.SimBridge) {
	gin.SetMode(gin.TestMode)
	b, err := ledger.NewSimBridge(ledger.SimLedgerConfig())
	assert.NoError(t, err)
	return NewHttpReporter("127.0.0.1", "0", b.Relay, b.Ledger), b
}

func TestHelloRoute(t *testing.T) {
	h, _ := newTestReporter(t)
	code, body := get(t, h.SetupRouter(), ROUTE_HELLO)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "world", body["message"])
}

func TestTipRoute(t *testing.T) {
	h, b := newTestReporter(t)
	router := h.SetupRouter()

	// empty relay
	code, _ := get(t, router, ROUTE_TIP)
	assert.Equal(t, http.StatusNotFound, code)

	b.Chain.Extend()
	assert.NoError(t, b.Chain.SubmitAll(b.Relay))

	code, body := get(t, router, ROUTE_TIP)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["best_height"])
}

func TestWithdrawalRoute(t *testing.T) {
	h, _ := newTestReporter(t)
	router := h.SetupRouter()

	code, _ := get(t, router, ROUTE_WITHDRAWAL)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = get(t, router, ROUTE_WITHDRAWAL+"?wid=0x"+common.ByteSliceToPureHexStr(common.RandBytes(32)))
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUtxoStatsRoute(t *testing.T) {
	h, b := newTestReporter(t)
	router := h.SetupRouter()

	assert.NoError(t, b.Ledger.RegisterCollateral(common.RandBytes32(), 0, 70_000))

	code, body := get(t, router, ROUTE_UTXO_STATS)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(70_000), body["available_sats"])
}
