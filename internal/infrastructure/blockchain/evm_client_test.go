package blockchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/require"
)

type rpcReq struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

type rpcResp struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result"`
	Error   interface{} `json:"error,omitempty"`
}

const (
	testTxHash   = "0x1111111111111111111111111111111111111111111111111111111111111111"
	testEndpoint = "0x6EDCE65403992e310A62460808c4b910D972f10f"
)

func newEVMRPCServer(t *testing.T, rawSent *atomic.Int32) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req rpcReq
		_ = json.NewDecoder(r.Body).Decode(&req)

		res := rpcResp{JSONRPC: "2.0", ID: req.ID}
		switch req.Method {
		case "eth_chainId":
			res.Result = "0xaa36a7"
		case "eth_getBalance":
			res.Result = "0xde0b6b3a7640000"
		case "eth_call":
			if strings.Contains(string(req.Params), "70a08231") {
				res.Result = "0x00000000000000000000000000000000000000000000000000000000000003e8"
			} else {
				res.Result = "0x1234"
			}
		case "eth_blockNumber":
			res.Result = "0x2a"
		case "eth_gasPrice":
			res.Result = "0x3b9aca00"
		case "eth_getTransactionCount":
			res.Result = "0x7"
		case "eth_sendRawTransaction":
			if rawSent != nil {
				rawSent.Add(1)
			}
			res.Result = testTxHash
		case "eth_getLogs":
			res.Result = []map[string]interface{}{{
				"address":          testEndpoint,
				"topics":           []string{"0x" + strings.Repeat("ab", 32)},
				"data":             "0x",
				"blockNumber":      "0x10",
				"transactionHash":  "0x" + strings.Repeat("22", 32),
				"transactionIndex": "0x0",
				"blockHash":        "0x" + strings.Repeat("33", 32),
				"logIndex":         "0x1",
				"removed":          false,
			}}
		case "eth_getTransactionReceipt":
			res.Result = map[string]interface{}{
				"transactionHash":   testTxHash,
				"transactionIndex":  "0x0",
				"blockHash":         "0x2222222222222222222222222222222222222222222222222222222222222222",
				"blockNumber":       "0x1",
				"from":              "0x3333333333333333333333333333333333333333",
				"to":                "0x4444444444444444444444444444444444444444",
				"cumulativeGasUsed": "0x5208",
				"gasUsed":           "0x5208",
				"contractAddress":   nil,
				"logs":              []interface{}{},
				"logsBloom":         "0x" + strings.Repeat("0", 512),
				"status":            "0x1",
				"effectiveGasPrice": "0x3b9aca00",
			}
		default:
			res.Result = "0x0"
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
	}))
}

func TestEVMClient_Methods_WithMockRPC(t *testing.T) {
	var rawSent atomic.Int32
	srv := newEVMRPCServer(t, &rawSent)
	defer srv.Close()

	ctx := context.Background()
	client, err := NewEVMClient(ctx, srv.URL)
	require.NoError(t, err)
	defer client.Close()

	require.Equal(t, int64(11155111), client.ChainID().Int64())
	require.Equal(t, srv.URL, client.RPCURL())

	bal, err := client.GetBalance(ctx, "0x3333333333333333333333333333333333333333")
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000", bal.String())

	tokenBal, err := client.GetTokenBalance(ctx, "0x4444444444444444444444444444444444444444", "0x3333333333333333333333333333333333333333")
	require.NoError(t, err)
	require.Equal(t, "1000", tokenBal.String())

	viewOut, err := client.CallView(ctx, "0x4444444444444444444444444444444444444444", []byte{0x12, 0x34})
	require.NoError(t, err)
	require.Equal(t, []byte{0x12, 0x34}, viewOut)

	block, err := client.GetBlockNumber(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(42), block)

	price, err := client.SuggestGasPrice(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000_000), price.Int64())

	nonce, err := client.PendingNonceAt(ctx, common.HexToAddress("0x3333333333333333333333333333333333333333"))
	require.NoError(t, err)
	require.Equal(t, uint64(7), nonce)

	logs, err := client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: big.NewInt(1),
		ToBlock:   big.NewInt(42),
		Addresses: []common.Address{common.HexToAddress(testEndpoint)},
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, uint64(16), logs[0].BlockNumber)

	receipt, err := client.GetTransactionReceipt(ctx, testTxHash)
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	to := common.HexToAddress("0x4444444444444444444444444444444444444444")
	signed, err := types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(1),
		Gas:      600000,
		GasPrice: price,
	}), types.NewEIP155Signer(client.ChainID()), key)
	require.NoError(t, err)
	require.NoError(t, client.SendTransaction(ctx, signed))
	require.Equal(t, int32(1), rawSent.Load())

	backend, err := client.Backend()
	require.NoError(t, err)
	require.NotNil(t, backend)
}

func TestEVMClient_WithoutBackend(t *testing.T) {
	c := NewEVMClientWithCallView(big.NewInt(1), nil)
	ctx := context.Background()

	_, err := c.GetBalance(ctx, "0x1111111111111111111111111111111111111111")
	require.ErrorIs(t, err, ErrNoBackend)
	_, err = c.GetTransactionReceipt(ctx, testTxHash)
	require.ErrorIs(t, err, ErrNoBackend)
	_, err = c.GetBlockNumber(ctx)
	require.ErrorIs(t, err, ErrNoBackend)
	_, err = c.FilterLogs(ctx, ethereum.FilterQuery{})
	require.ErrorIs(t, err, ErrNoBackend)
	_, err = c.SuggestGasPrice(ctx)
	require.ErrorIs(t, err, ErrNoBackend)
	_, err = c.PendingNonceAt(ctx, common.Address{})
	require.ErrorIs(t, err, ErrNoBackend)
	require.ErrorIs(t, c.SendTransaction(ctx, nil), ErrNoBackend)
	_, err = c.Backend()
	require.ErrorIs(t, err, ErrNoBackend)
	_, err = c.CallView(ctx, "0x1111111111111111111111111111111111111111", nil)
	require.ErrorIs(t, err, ErrNoBackend)

	// no-op without a connection
	c.Close()
}

func TestNewEVMClientWithCallView_DefaultChainIDAndCall(t *testing.T) {
	called := false
	client := NewEVMClientWithCallView(nil, func(_ context.Context, to string, data []byte) ([]byte, error) {
		called = true
		require.Equal(t, "0x1111111111111111111111111111111111111111", to)
		return common.LeftPadBytes([]byte{0x05}, 32), nil
	})

	require.Equal(t, int64(1), client.ChainID().Int64())
	bal, err := client.GetTokenBalance(context.Background(), "0x1111111111111111111111111111111111111111", "0x2222222222222222222222222222222222222222")
	require.NoError(t, err)
	require.Equal(t, int64(5), bal.Int64())
	require.True(t, called)

	clientErr := NewEVMClientWithCallView(big.NewInt(10), func(context.Context, string, []byte) ([]byte, error) {
		return nil, fmt.Errorf("boom")
	})
	_, err = clientErr.GetTokenBalance(context.Background(), "0x1111111111111111111111111111111111111111", "0x2222222222222222222222222222222222222222")
	require.Error(t, err)
}

func TestNewEVMClient_InvalidURL(t *testing.T) {
	_, err := NewEVMClient(context.Background(), "://bad-url")
	require.Error(t, err)
}

func TestNewEVMClient_ChainIDFailure(t *testing.T) {
	origDial := dialEVMClient
	origChainID := getClientChainID
	t.Cleanup(func() {
		dialEVMClient = origDial
		getClientChainID = origChainID
	})

	srv := newEVMRPCServer(t, nil)
	defer srv.Close()
	getClientChainID = func(*ethclient.Client, context.Context) (*big.Int, error) {
		return nil, errors.New("chain id unavailable")
	}

	_, err := NewEVMClient(context.Background(), srv.URL)
	require.EqualError(t, err, "chain id unavailable")
}
