package usecases

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"oft-bridge.backend/internal/domain/entities"
	domainerrors "oft-bridge.backend/internal/domain/errors"
	"oft-bridge.backend/internal/infrastructure/blockchain"
)

const (
	testSenderKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
	srcRPC        = "http://src.rpc"
	dstRPC        = "http://dst.rpc"
	srcEID        = uint32(40161)
	dstEID        = uint32(40231)
)

var (
	srcOFT      = common.HexToAddress("0x1111111111111111111111111111111111111111")
	dstOFT      = common.HexToAddress("0x2222222222222222222222222222222222222222")
	innerToken  = common.HexToAddress("0x3333333333333333333333333333333333333333")
	srcEndpoint = common.HexToAddress("0x1a44076050125825900e736c501f859c50fE728c")
	dstEndpoint = common.HexToAddress("0x6EDCE65403992e310A62460808c4b910D972f10f")
	dstDVN      = common.HexToAddress("0x4444444444444444444444444444444444444444")
	testTxHash  = "0x" + strings.Repeat("ab", 32)
)

func testNetworks() []entities.NetworkConfig {
	return []entities.NetworkConfig{
		{
			Key: "sepolia", Name: "Sepolia", ChainID: 11155111, RPCURL: srcRPC, EID: srcEID,
			EndpointAddress: srcEndpoint.Hex(), DVNAddress: "0x5555555555555555555555555555555555555555",
			ExecutorAddress: "0x6666666666666666666666666666666666666666", TokenAddress: srcOFT.Hex(),
			ExplorerTxURL: "https://sepolia.etherscan.io/tx",
		},
		{
			Key: "arbsep", Name: "Arbitrum Sepolia", ChainID: 421614, RPCURL: dstRPC, EID: dstEID,
			EndpointAddress: dstEndpoint.Hex(), DVNAddress: dstDVN.Hex(),
			ExecutorAddress: "0x7777777777777777777777777777777777777777", TokenAddress: dstOFT.Hex(),
			ExplorerTxURL: "https://sepolia.arbiscan.io/tx",
		},
	}
}

func testRegistry(nativeAdapter bool) *entities.Registry {
	token := entities.TokenDescriptor{
		ID: "oft", Symbol: "OFT", Name: "Test OFT",
		Addresses:     map[string]string{"sepolia": srcOFT.Hex(), "arbsep": dstOFT.Hex()},
		NativeAdapter: nativeAdapter,
	}
	pairs := []entities.SupportedPair{
		{Source: "sepolia", Destination: "arbsep"},
		{Source: "arbsep", Destination: "sepolia"},
	}
	return entities.NewRegistry(testNetworks(), []entities.TokenDescriptor{token}, pairs)
}

func testSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := ParseSigner(testSenderKey)
	require.NoError(t, err)
	return s
}

// viewFn answers one OFT method call made against a contract address.
type viewFn func(to common.Address, args []interface{}) ([]byte, error)

type fakeChain struct {
	mu sync.Mutex

	chainID      *big.Int
	views        map[string]viewFn
	viewCalls    []string
	balance      *big.Int
	tokenBalance *big.Int
	balanceErr   error

	receipts   map[string]*types.Receipt
	receiptErr error
	head       uint64
	headErr    error
	logs       []types.Log
	logsErr    error
	filters    []ethereum.FilterQuery

	gasPrice *big.Int
	nonce    uint64
	sent     []*types.Transaction
	sendErr  error
}

var _ blockchain.Client = (*fakeChain)(nil)

func newFakeChain(chainID int64) *fakeChain {
	return &fakeChain{
		chainID:  big.NewInt(chainID),
		views:    map[string]viewFn{},
		receipts: map[string]*types.Receipt{},
		gasPrice: big.NewInt(3_000_000_000),
	}
}

func (f *fakeChain) onView(method string, fn viewFn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views[method] = fn
}

func (f *fakeChain) calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.viewCalls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *fakeChain) ChainID() *big.Int { return f.chainID }

func (f *fakeChain) CallView(_ context.Context, to string, data []byte) ([]byte, error) {
	method, err := OFTABI.MethodById(data)
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.viewCalls = append(f.viewCalls, method.Name)
	fn, ok := f.views[method.Name]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("execution reverted: no handler for %s", method.Name)
	}
	return fn(common.HexToAddress(to), args)
}

func (f *fakeChain) GetBalance(context.Context, string) (*big.Int, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return f.balance, nil
}

func (f *fakeChain) GetTokenBalance(context.Context, string, string) (*big.Int, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return f.tokenBalance, nil
}

func (f *fakeChain) GetTransactionReceipt(_ context.Context, txHash string) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	r, ok := f.receipts[strings.ToLower(txHash)]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *fakeChain) setReceipt(txHash string, r *types.Receipt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts[strings.ToLower(txHash)] = r
}

func (f *fakeChain) GetBlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, f.headErr
}

func (f *fakeChain) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, q)
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	var out []types.Log
	for _, lg := range f.logs {
		if lg.BlockNumber < q.FromBlock.Uint64() || lg.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if len(q.Addresses) > 0 && !containsAddress(q.Addresses, lg.Address) {
			continue
		}
		if len(q.Topics) > 0 && len(q.Topics[0]) > 0 && !containsHash(q.Topics[0], lg.Topics[0]) {
			continue
		}
		out = append(out, lg)
	}
	return out, nil
}

func (f *fakeChain) addLogs(logs ...types.Log) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, logs...)
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) { return f.gasPrice, nil }

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeChain) sentTxs() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}

func (f *fakeChain) Backend() (bind.ContractBackend, error) { return nil, nil }

func (f *fakeChain) Close() {}

func containsAddress(list []common.Address, a common.Address) bool {
	for _, v := range list {
		if v == a {
			return true
		}
	}
	return false
}

func containsHash(list []common.Hash, h common.Hash) bool {
	for _, v := range list {
		if v == h {
			return true
		}
	}
	return false
}

type fakeProvider map[string]blockchain.Client

func (p fakeProvider) GetClient(_ context.Context, rpcURL string) (blockchain.Client, error) {
	c, ok := p[rpcURL]
	if !ok {
		return nil, fmt.Errorf("no client for %s", rpcURL)
	}
	return c, nil
}

func packOutputs(t *testing.T, method string, values ...interface{}) []byte {
	t.Helper()
	out, err := OFTABI.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return out
}

func packTypes(t *testing.T, typeNames []string, values ...interface{}) []byte {
	t.Helper()
	args := make(abi.Arguments, 0, len(typeNames))
	for _, name := range typeNames {
		typ, err := abi.NewType(name, "", nil)
		require.NoError(t, err)
		args = append(args, abi.Argument{Type: typ})
	}
	out, err := args.Pack(values...)
	require.NoError(t, err)
	return out
}

// stubOFT installs happy-path handlers for an OFT with an inner ERC20.
func stubOFT(t *testing.T, chain *fakeChain, decimals uint8, nativeFee int64) {
	t.Helper()
	chain.onView("token", func(common.Address, []interface{}) ([]byte, error) {
		return packOutputs(t, "token", innerToken), nil
	})
	chain.onView("decimals", func(common.Address, []interface{}) ([]byte, error) {
		return packOutputs(t, "decimals", decimals), nil
	})
	chain.onView("enforcedOptions", func(common.Address, []interface{}) ([]byte, error) {
		return packOutputs(t, "enforcedOptions", []byte{}), nil
	})
	chain.onView("combineOptions", func(_ common.Address, args []interface{}) ([]byte, error) {
		return packOutputs(t, "combineOptions", args[2].([]byte)), nil
	})
	chain.onView("quoteSend", func(common.Address, []interface{}) ([]byte, error) {
		return packTypes(t, []string{"uint256", "uint256"}, big.NewInt(nativeFee), big.NewInt(0)), nil
	})
}

type memHistory struct {
	mu      sync.Mutex
	records []*entities.TransferRecord
	updates map[string]string
}

func newMemHistory() *memHistory {
	return &memHistory{updates: map[string]string{}}
}

func (h *memHistory) Append(_ context.Context, r *entities.TransferRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *memHistory) ListByClient(_ context.Context, clientID string, limit int) ([]*entities.TransferRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*entities.TransferRecord
	for i := len(h.records) - 1; i >= 0 && len(out) < limit; i-- {
		if h.records[i].ClientID == clientID {
			out = append(out, h.records[i])
		}
	}
	return out, nil
}

func (h *memHistory) GetByTxHash(_ context.Context, txHash string) (*entities.TransferRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.records {
		if r.TxHash == txHash {
			return r, nil
		}
	}
	return nil, domainerrors.ErrNotFound
}

func (h *memHistory) UpdateStatus(_ context.Context, txHash, status string, _ null.String) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates[txHash] = status
	return nil
}

func (h *memHistory) statusOf(txHash string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.updates[txHash]
}

type memCache struct {
	mu    sync.Mutex
	items map[string]entities.TransferStatus
}

func newMemCache() *memCache {
	return &memCache{items: map[string]entities.TransferStatus{}}
}

func (c *memCache) Get(_ context.Context, txHash string) (*entities.TransferStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.items[txHash]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	return &s, nil
}

func (c *memCache) Save(_ context.Context, s entities.TransferStatus) (entities.TransferStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.items[s.TxHash]; ok {
		s = entities.MergeStatus(prev, s)
	}
	c.items[s.TxHash] = s
	return s, nil
}

// stubSource returns queued answers in order, repeating the last one.
type stubSource struct {
	name string
	mu   sync.Mutex
	seq  []stubAnswer
	n    int
}

type stubAnswer struct {
	stage entities.Stage
	err   error
	delay time.Duration
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context, req TrackRequest) (*entities.TransferStatus, error) {
	s.mu.Lock()
	a := s.seq[len(s.seq)-1]
	if s.n < len(s.seq) {
		a = s.seq[s.n]
	}
	s.n++
	s.mu.Unlock()

	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	st := entities.NewTransferStatus(req.TxHash)
	st.Stage = a.stage
	st.Source = s.name
	return &st, nil
}
