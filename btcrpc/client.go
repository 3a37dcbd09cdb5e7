package btcrpc

import (
	"bytes"
	"context"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
)

type Config struct {
	ServerAddr string // ip address of server
	Port       string // port of server
	Username   string
	Pwd        string
}

// Client wraps the bitcoin node RPC surface the watcher needs: header
// polling, settlement broadcast and broadcast confirmation.
type Client struct {
	rpc *rpcclient.Client
}

func New(cfg *Config) (*Client, error) {
	rpc, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.ServerAddr + ":" + cfg.Port,
		User:         cfg.Username,
		Pass:         cfg.Pwd,
		HTTPPostMode: true, // original bitcoin only supports HTTP POST mode
		DisableTLS:   true, // original bitcoin does not support TLS
	}, nil)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: rpc}, nil
}

func (c *Client) Close() {
	c.rpc.Shutdown()
}

// Broadcast submits a raw settlement transaction to the node's mempool.
func (c *Client) Broadcast(ctx context.Context, rawTx []byte) error {
	var msgTx wire.MsgTx
	if err := msgTx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return err
	}
	_, err := c.rpc.SendRawTransaction(&msgTx, false)
	return err
}

// Confirm reports whether the node knows the transaction. Requires
// -txindex on the bitcoin node.
func (c *Client) Confirm(ctx context.Context, txid [32]byte) (bool, error) {
	hash, err := chainhash.NewHash(txid[:])
	if err != nil {
		return false, err
	}
	if _, err := c.rpc.GetRawTransaction(hash); err != nil {
		// the node answers "No such mempool or blockchain transaction"
		// with an RPC error, not a transport failure
		if _, ok := err.(*btcjson.RPCError); ok {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetTransaction fetches a full transaction for inspection.
func (c *Client) GetTransaction(ctx context.Context, txid [32]byte) (*btcutil.Tx, error) {
	hash, err := chainhash.NewHash(txid[:])
	if err != nil {
		return nil, err
	}
	return c.rpc.GetRawTransaction(hash)
}

// BestHeight returns the node's current chain height.
func (c *Client) BestHeight(ctx context.Context) (int64, error) {
	return c.rpc.GetBlockCount()
}

// RawHeader fetches the 80-byte serialized header at a height.
func (c *Client) RawHeader(ctx context.Context, height int64) ([]byte, error) {
	hash, err := c.rpc.GetBlockHash(height)
	if err != nil {
		return nil, err
	}
	header, err := c.rpc.GetBlockHeader(hash)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := header.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
