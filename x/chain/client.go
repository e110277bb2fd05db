package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client implements Backend over a single RPC connection, pairing the
// typed ethclient with raw JSON-RPC access for the POA-sensitive reads.
type Client struct {
	*ethclient.Client
	rpc *rpc.Client
}

// Dial connects to the ledger RPC endpoint.
func Dial(ctx context.Context, endpoint string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial ledger RPC %s: %w", endpoint, err)
	}
	return &Client{
		Client: ethclient.NewClient(rpcClient),
		rpc:    rpcClient,
	}, nil
}

// RawCall issues a raw JSON-RPC request.
func (c *Client) RawCall(ctx context.Context, result any, method string, args ...any) error {
	return c.rpc.CallContext(ctx, result, method, args...)
}

// Close tears down the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// RawReceipt is the receipt shape read via eth_getTransactionReceipt,
// kept raw so POA header quirks cannot break receipt polling.
type RawReceipt struct {
	Status      hexutil.Uint64 `json:"status"`
	BlockNumber *hexutil.Big   `json:"blockNumber"`
	TxHash      common.Hash    `json:"transactionHash"`
	GasUsed     hexutil.Uint64 `json:"gasUsed"`
	Logs        []RawLog       `json:"logs"`
}

// RawLog is a receipt log entry read via raw RPC.
type RawLog struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    hexutil.Bytes  `json:"data"`
}

// RawTransaction is the pending/mined view from eth_getTransactionByHash.
type RawTransaction struct {
	BlockNumber *hexutil.Big   `json:"blockNumber"`
	Nonce       hexutil.Uint64 `json:"nonce"`
	Input       hexutil.Bytes  `json:"input"`
}

// rawBlockHeader carries the only block field the pipeline needs.
type rawBlockHeader struct {
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

// FeeHistory is the eth_feeHistory answer, raw hex throughout.
type FeeHistory struct {
	BaseFeePerGas []*hexutil.Big   `json:"baseFeePerGas"`
	Reward        [][]*hexutil.Big `json:"reward"`
}

// ReceiptByHash polls eth_getTransactionReceipt. A nil receipt with nil
// error means the transaction is not mined yet.
func ReceiptByHash(ctx context.Context, backend Backend, txHash common.Hash) (*RawReceipt, error) {
	var receipt *RawReceipt
	if err := backend.RawCall(ctx, &receipt, "eth_getTransactionReceipt", txHash); err != nil {
		return nil, fmt.Errorf("eth_getTransactionReceipt: %w", err)
	}
	return receipt, nil
}

// TransactionByHash reads the raw transaction view; nil means unknown
// to the node (dropped or never broadcast).
func TransactionByHash(ctx context.Context, backend Backend, txHash common.Hash) (*RawTransaction, error) {
	var tx *RawTransaction
	if err := backend.RawCall(ctx, &tx, "eth_getTransactionByHash", txHash); err != nil {
		return nil, fmt.Errorf("eth_getTransactionByHash: %w", err)
	}
	return tx, nil
}

// BlockTimestamp reads a block's timestamp via raw eth_getBlockByNumber.
func BlockTimestamp(ctx context.Context, backend Backend, blockNumber uint64) (uint64, error) {
	var header *rawBlockHeader
	if err := backend.RawCall(ctx, &header, "eth_getBlockByNumber", hexutil.EncodeUint64(blockNumber), false); err != nil {
		return 0, fmt.Errorf("eth_getBlockByNumber: %w", err)
	}
	if header == nil {
		return 0, fmt.Errorf("block %d not found", blockNumber)
	}
	return uint64(header.Timestamp), nil
}

// RecentFeeHistory reads base fees and the given reward percentile over
// the last blockCount blocks.
func RecentFeeHistory(ctx context.Context, backend Backend, blockCount uint64, percentile float64) (*FeeHistory, error) {
	var hist FeeHistory
	err := backend.RawCall(ctx, &hist, "eth_feeHistory", hexutil.EncodeUint64(blockCount), "latest", []float64{percentile})
	if err != nil {
		return nil, fmt.Errorf("eth_feeHistory: %w", err)
	}
	return &hist, nil
}

// lastBaseFee returns the newest base fee in the history, nil when absent.
func (h *FeeHistory) lastBaseFee() *big.Int {
	if h == nil || len(h.BaseFeePerGas) == 0 {
		return nil
	}
	last := h.BaseFeePerGas[len(h.BaseFeePerGas)-1]
	if last == nil {
		return nil
	}
	return last.ToInt()
}

// lastReward returns the newest percentile reward, nil when absent.
func (h *FeeHistory) lastReward() *big.Int {
	if h == nil || len(h.Reward) == 0 {
		return nil
	}
	row := h.Reward[len(h.Reward)-1]
	if len(row) == 0 || row[0] == nil {
		return nil
	}
	return row[0].ToInt()
}
