package main

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/spf13/viper"

	"github.com/1sixtech/mojave-bridge-go/cmd"
	"github.com/1sixtech/mojave-bridge-go/logconfig"
)

const (
	ENV_CONFIG_FILE_PATH = "BRIDGE_CONFIG"
)

func main() {
	// Tool to read environment variables
	viper.AutomaticEnv()

	// Accessing an environment variable of configuration file location.
	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	fmt.Printf("Bridge server configuration file = %s\n", _config_file)

	// See if file exists
	if !cmd.FileExists(_config_file) {
		fmt.Printf("Bridge server configuration file not found: %s\n", _config_file)
		return
	}

	// Read from config file.
	if !initializeViper(_config_file) {
		return
	}

	logconfig.ConfigFromLevel(viper.GetString("LOG_LEVEL"))

	// Make the configuration
	bsc := PrepareBridgeServerConfig()
	if bsc == nil {
		fmt.Printf("Error loading bridge server configuration\n")
		return
	}

	fmt.Println("Starting bridge server... press Ctrl+C to kill the server")
	// Start server and block.
	cmd.StartBridgeServerAndWait(bsc)
}

func initializeViper(filePath string) bool {
	viper.SetConfigFile(filePath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Error reading configuration file, %s", err)
		return false
	}
	return true
}

// PrepareBridgeServerConfig reads configuration variables and returns a BridgeServerConfig.
func PrepareBridgeServerConfig() *cmd.BridgeServerConfig {

	// Parse the BTC chain config (e.g., "regtest", "testnet", or "mainnet").
	var btcParams *chaincfg.Params
	switch viper.GetString("BTC_CHAIN_CONFIG") {
	case "testnet":
		btcParams = &chaincfg.TestNet3Params
	case "mainnet":
		btcParams = &chaincfg.MainNetParams
	case "regtest":
		btcParams = &chaincfg.RegressionNetParams
	default:
		// default to regtest
		btcParams = &chaincfg.RegressionNetParams
	}

	return &cmd.BridgeServerConfig{
		// state side
		DbFilePath: viper.GetString("DB_FILE_PATH"),
		// btc side
		BtcRpcServer:   viper.GetString("BTC_RPC_SERVER"),
		BtcRpcPort:     viper.GetString("BTC_RPC_PORT"),
		BtcRpcUsername: viper.GetString("BTC_RPC_USERNAME"),
		BtcRpcPwd:      viper.GetString("BTC_RPC_PWD"),
		BtcChainConfig: btcParams,
		VaultAddress:   viper.GetString("VAULT_ADDRESS"),
		ChangeAddress:  viper.GetString("CHANGE_ADDRESS"),
		AnchorRequired: viper.GetBool("ANCHOR_REQUIRED"),
		// ledger side
		ChainId:            viper.GetInt64("CHAIN_ID"),
		BridgeContractAddr: viper.GetString("BRIDGE_CONTRACT_ADDR"),
		MinConfirmations:   viper.GetUint64("MIN_CONFIRMATIONS"),
		FinalizationDepth:  viper.GetUint64("FINALIZATION_DEPTH"),
		FeeSats:            viper.GetUint64("FEE_SATS"),
		FeeBufferSats:      viper.GetUint64("FEE_BUFFER_SATS"),
		PolicyVersion:      uint8(viper.GetUint32("POLICY_VERSION")),
		SelectionPolicy:    viper.GetString("SELECTION_POLICY"),
		// Http side
		HttpIp:   viper.GetString("HTTP_IP"),
		HttpPort: viper.GetString("HTTP_PORT"),
	}
}
