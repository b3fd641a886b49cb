package blockchain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	dialEVMClient    = ethclient.DialContext
	getClientChainID = func(client *ethclient.Client, ctx context.Context) (*big.Int, error) {
		return client.ChainID(ctx)
	}

	// ErrNoBackend is returned by clients built without an RPC connection.
	ErrNoBackend = errors.New("evm client has no rpc backend")
)

// Client is the JSON-RPC surface used by the send, fee and correlation flows.
type Client interface {
	ChainID() *big.Int
	CallView(ctx context.Context, to string, data []byte) ([]byte, error)
	GetBalance(ctx context.Context, address string) (*big.Int, error)
	GetTokenBalance(ctx context.Context, tokenAddress, ownerAddress string) (*big.Int, error)
	GetTransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error)
	GetBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	Backend() (bind.ContractBackend, error)
	Close()
}

// EVMClient provides EVM blockchain interaction
type EVMClient struct {
	client  *ethclient.Client
	chainID *big.Int
	rpcURL  string
	// testCallView allows deterministic unit tests without network sockets.
	testCallView func(ctx context.Context, to string, data []byte) ([]byte, error)
}

var _ Client = (*EVMClient)(nil)

// NewEVMClient dials rpcURL and caches the remote chain id.
func NewEVMClient(ctx context.Context, rpcURL string) (*EVMClient, error) {
	client, err := dialEVMClient(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	chainID, err := getClientChainID(client, ctx)
	if err != nil {
		client.Close()
		return nil, err
	}

	return &EVMClient{
		client:  client,
		chainID: chainID,
		rpcURL:  rpcURL,
	}, nil
}

// NewEVMClientWithCallView creates an EVM client that uses an injected CallView implementation.
// This is intended for unit tests where RPC sockets are unavailable.
func NewEVMClientWithCallView(chainID *big.Int, callViewFn func(ctx context.Context, to string, data []byte) ([]byte, error)) *EVMClient {
	if chainID == nil {
		chainID = big.NewInt(1)
	}
	return &EVMClient{
		chainID:      chainID,
		testCallView: callViewFn,
	}
}

func (c *EVMClient) ChainID() *big.Int {
	return c.chainID
}

func (c *EVMClient) RPCURL() string {
	return c.rpcURL
}

func (c *EVMClient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	if c.client == nil {
		return nil, ErrNoBackend
	}
	return c.client.BalanceAt(ctx, common.HexToAddress(address), nil)
}

// GetTokenBalance calls balanceOf(owner) on an ERC20.
func (c *EVMClient) GetTokenBalance(ctx context.Context, tokenAddress, ownerAddress string) (*big.Int, error) {
	owner := common.HexToAddress(ownerAddress)

	// balanceOf(address) selector: 0x70a08231
	data := append(common.Hex2Bytes("70a08231"), common.LeftPadBytes(owner.Bytes(), 32)...)

	result, err := c.CallView(ctx, tokenAddress, data)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(result), nil
}

// GetTransactionReceipt returns ethereum.NotFound while the tx is pending.
func (c *EVMClient) GetTransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	if c.client == nil {
		return nil, ErrNoBackend
	}
	return c.client.TransactionReceipt(ctx, common.HexToHash(txHash))
}

func (c *EVMClient) GetBlockNumber(ctx context.Context) (uint64, error) {
	if c.client == nil {
		return 0, ErrNoBackend
	}
	return c.client.BlockNumber(ctx)
}

func (c *EVMClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if c.client == nil {
		return nil, ErrNoBackend
	}
	return c.client.FilterLogs(ctx, q)
}

func (c *EVMClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if c.client == nil {
		return nil, ErrNoBackend
	}
	return c.client.SuggestGasPrice(ctx)
}

func (c *EVMClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if c.client == nil {
		return 0, ErrNoBackend
	}
	return c.client.PendingNonceAt(ctx, account)
}

func (c *EVMClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if c.client == nil {
		return ErrNoBackend
	}
	return c.client.SendTransaction(ctx, tx)
}

// Backend exposes the connection for bind.BoundContract transactions.
func (c *EVMClient) Backend() (bind.ContractBackend, error) {
	if c.client == nil {
		return nil, ErrNoBackend
	}
	return c.client, nil
}

// CallView executes a read-only contract call
func (c *EVMClient) CallView(ctx context.Context, to string, data []byte) ([]byte, error) {
	if c.testCallView != nil {
		return c.testCallView(ctx, to, data)
	}
	if c.client == nil {
		return nil, ErrNoBackend
	}
	addr := common.HexToAddress(to)
	msg := ethereum.CallMsg{
		To:   &addr,
		Data: data,
	}
	return c.client.CallContract(ctx, msg, nil)
}

// Close closes the client connection
func (c *EVMClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}
