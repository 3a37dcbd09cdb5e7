package cmd

import (
	"os"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	logger "github.com/sirupsen/logrus"

	"github.com/1sixtech/mojave-bridge-go/btcrpc"
)

// FileExists checks if a file exists and is readable
func FileExists(filePath string) bool {
	file, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer file.Close()
	return true
}

// SetupBtcRpc creates a btc rpc client.
func SetupBtcRpc(server string, port string, username string, password string) (*btcrpc.Client, error) {
	_config := btcrpc.Config{
		ServerAddr: server,
		Port:       port,
		Username:   username,
		Pwd:        password,
	}
	r, err := btcrpc.New(&_config)
	if err != nil {
		logger.Fatalf("failed to create btc rpc client: %v", err)
		return nil, err
	}
	return r, nil
}

// AddressToPkScript turns a text bitcoin address into the pkScript the
// ledger compares outputs against.
func AddressToPkScript(addr string, params *chaincfg.Params) ([]byte, error) {
	decoded, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(decoded)
}
