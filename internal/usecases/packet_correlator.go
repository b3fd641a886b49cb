package usecases

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"oft-bridge.backend/internal/domain/entities"
	domainerrors "oft-bridge.backend/internal/domain/errors"
	"oft-bridge.backend/internal/infrastructure/blockchain"
	"oft-bridge.backend/pkg/logger"
)

const (
	DefaultScanWindow uint64 = 20000
	packetHeaderSize         = 113
	maxDVNEvents             = 20
)

// logChunkSize bounds each eth_getLogs range; many providers cap it.
var logChunkSize uint64 = 5000

// Side states reported by the correlator.
const (
	SidePending   = "pending"
	SideConfirmed = "confirmed"
	SideReverted  = "reverted"
	SideNone      = "none"
	SideVerified  = "verified"
	SideDelivered = "delivered"
)

// CorrelateRequest identifies the source transaction to follow.
type CorrelateRequest struct {
	TxHash        string `json:"txHash" binding:"required"`
	SourceNetwork string `json:"sourceNetwork" binding:"required"`
	DestNetwork   string `json:"destNetwork" binding:"required"`
	TokenID       string `json:"tokenId"`
	ScanWindow    uint64 `json:"scanWindow"`
	IncludeDVN    bool   `json:"includeDvn"`
}

type SideStatus struct {
	Status string `json:"status"`
	TxHash string `json:"txHash,omitempty"`
}

type OriginView struct {
	SrcEid uint32 `json:"srcEid"`
	Sender string `json:"sender"`
	Nonce  uint64 `json:"nonce,omitempty"`
}

type BlockWindow struct {
	FromBlock uint64 `json:"fromBlock"`
	ToBlock   uint64 `json:"toBlock"`
}

// PacketHeader is the fixed-size prefix of an encoded packet.
type PacketHeader struct {
	Version  uint8  `json:"version"`
	Nonce    uint64 `json:"nonce"`
	SrcEid   uint32 `json:"srcEid"`
	Sender   string `json:"sender"`
	DstEid   uint32 `json:"dstEid"`
	Receiver string `json:"receiver"`
	GUID     string `json:"guid"`
}

type DVNEvent struct {
	Kind        string `json:"kind"`
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
}

// DVNDiagnostics summarises verifier contract logs in the scan window.
type DVNDiagnostics struct {
	Address string         `json:"address"`
	Counts  map[string]int `json:"counts"`
	Events  []DVNEvent     `json:"events"`
	Error   string         `json:"error,omitempty"`
}

// CorrelationResult uses the correlator vocabulary: inflight, verified,
// executed or unknown.
type CorrelationResult struct {
	Stage        entities.Stage  `json:"stage"`
	Source       SideStatus      `json:"source"`
	Destination  SideStatus      `json:"destination"`
	Origin       *OriginView     `json:"origin,omitempty"`
	Packet       *PacketHeader   `json:"packet,omitempty"`
	Verification *DVNDiagnostics `json:"verification,omitempty"`
	NetworkBase  string          `json:"networkBase"`
	Window       BlockWindow     `json:"window"`
}

// PacketCorrelator derives delivery progress from endpoint events on the
// destination chain.
type PacketCorrelator struct {
	registry      *entities.Registry
	clients       ClientProvider
	defaultWindow uint64
}

func NewPacketCorrelator(registry *entities.Registry, clients ClientProvider, defaultWindow uint64) *PacketCorrelator {
	if defaultWindow == 0 {
		defaultWindow = DefaultScanWindow
	}
	return &PacketCorrelator{registry: registry, clients: clients, defaultWindow: defaultWindow}
}

func (c *PacketCorrelator) Correlate(ctx context.Context, req CorrelateRequest) (*CorrelationResult, error) {
	txHash, err := normalizeTxHash(req.TxHash)
	if err != nil {
		return nil, err
	}
	route, err := ResolveRoute(c.registry, req.SourceNetwork, req.DestNetwork, req.TokenID)
	if err != nil {
		return nil, err
	}
	window := req.ScanWindow
	if window == 0 {
		window = c.defaultWindow
	}

	result := &CorrelationResult{
		Stage:       entities.StageInflight,
		Source:      SideStatus{Status: SidePending, TxHash: txHash},
		Destination: SideStatus{Status: SideNone},
		NetworkBase: route.Destination.ExplorerTxURL,
		Origin: &OriginView{
			SrcEid: route.Source.EID,
			Sender: bytes32Hex(addressToBytes32(route.SourceOFT)),
		},
	}

	srcClient, err := c.clients.GetClient(ctx, route.Source.RPCURL)
	if err != nil {
		return nil, domainerrors.ChainCall("connect to "+route.Source.Key, err)
	}
	receipt, err := srcClient.GetTransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return result, nil
		}
		return nil, domainerrors.ChainCall("source receipt lookup failed", err)
	}
	if receipt == nil {
		return result, nil
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		result.Stage = entities.StageUnknown
		result.Source.Status = SideReverted
		return result, nil
	}
	result.Source.Status = SideConfirmed

	sourceEndpoint := common.HexToAddress(route.Source.EndpointAddress)
	if header, ok := findPacketSent(receipt, sourceEndpoint); ok {
		result.Packet = header
		if header.SrcEid == route.Source.EID && strings.EqualFold(header.Sender, result.Origin.Sender) {
			result.Origin.Nonce = header.Nonce
		} else {
			logger.Warn(ctx, "PacketSent does not match the route",
				zap.Uint32("srcEid", header.SrcEid), zap.String("sender", header.Sender))
		}
	}

	dstClient, err := c.clients.GetClient(ctx, route.Destination.RPCURL)
	if err != nil {
		return nil, domainerrors.ChainCall("connect to "+route.Destination.Key, err)
	}
	head, err := dstClient.GetBlockNumber(ctx)
	if err != nil {
		return nil, domainerrors.ChainCall("destination head lookup failed", err)
	}
	var sourceBlock uint64
	if receipt.BlockNumber != nil {
		sourceBlock = receipt.BlockNumber.Uint64()
	}
	result.Window = scanRange(sourceBlock, head, window)

	match, err := scanEndpoint(ctx, dstClient, common.HexToAddress(route.Destination.EndpointAddress), result.Window, originMatcher{
		srcEid: route.Source.EID,
		sender: addressToBytes32(route.SourceOFT),
		nonce:  result.Origin.Nonce,
	})
	if err != nil {
		return nil, domainerrors.ChainCall("destination log scan failed", err)
	}
	switch {
	case match.delivered != nil:
		result.Stage = entities.StageExecuted
		result.Destination = SideStatus{Status: SideDelivered, TxHash: strings.ToLower(match.delivered.TxHash.Hex())}
	case match.verified != nil:
		result.Stage = entities.StageVerified
		result.Destination = SideStatus{Status: SideVerified, TxHash: strings.ToLower(match.verified.TxHash.Hex())}
	}

	if req.IncludeDVN {
		result.Verification = scanDVN(ctx, dstClient, common.HexToAddress(route.Destination.DVNAddress), result.Window)
	}
	return result, nil
}

// scanRange starts at the source block when it is a usable lower bound and
// otherwise looks back window blocks from the destination head.
func scanRange(sourceBlock, head, window uint64) BlockWindow {
	lookback := uint64(0)
	if head > window {
		lookback = head - window
	}
	from := lookback
	if sourceBlock > 0 && sourceBlock <= head && head-sourceBlock <= window {
		from = sourceBlock
	}
	return BlockWindow{FromBlock: from, ToBlock: head}
}

// DecodePacketHeader parses the 113-byte header of an encoded packet.
func DecodePacketHeader(packet []byte) (*PacketHeader, error) {
	if len(packet) < packetHeaderSize {
		return nil, fmt.Errorf("packet too short: %d bytes", len(packet))
	}
	var sender, receiver, guid [32]byte
	copy(sender[:], packet[13:45])
	copy(receiver[:], packet[49:81])
	copy(guid[:], packet[81:113])
	return &PacketHeader{
		Version:  packet[0],
		Nonce:    binary.BigEndian.Uint64(packet[1:9]),
		SrcEid:   binary.BigEndian.Uint32(packet[9:13]),
		Sender:   bytes32Hex(sender),
		DstEid:   binary.BigEndian.Uint32(packet[45:49]),
		Receiver: bytes32Hex(receiver),
		GUID:     bytes32Hex(guid),
	}, nil
}

func findPacketSent(receipt *types.Receipt, endpoint common.Address) (*PacketHeader, bool) {
	for _, lg := range receipt.Logs {
		if lg == nil || lg.Address != endpoint || len(lg.Topics) == 0 || lg.Topics[0] != PacketSentTopic {
			continue
		}
		values, err := EndpointABI.Unpack("PacketSent", lg.Data)
		if err != nil || len(values) == 0 {
			continue
		}
		encoded, ok := values[0].([]byte)
		if !ok {
			continue
		}
		header, err := DecodePacketHeader(encoded)
		if err != nil {
			continue
		}
		return header, true
	}
	return nil, false
}

type originMatcher struct {
	srcEid uint32
	sender [32]byte
	nonce  uint64
}

func (m originMatcher) matches(origin entities.PacketOrigin) bool {
	if origin.SrcEid != m.srcEid || !bytes.Equal(origin.Sender[:], m.sender[:]) {
		return false
	}
	return m.nonce == 0 || origin.Nonce == m.nonce
}

type originTuple struct {
	SrcEid uint32
	Sender [32]byte
	Nonce  uint64
}

// decodeOrigin reads the origin tuple from PacketDelivered or PacketVerified
// data using the endpoint ABI.
func decodeOrigin(lg types.Log) (entities.PacketOrigin, bool) {
	if len(lg.Topics) == 0 {
		return entities.PacketOrigin{}, false
	}
	var event abi.Event
	switch lg.Topics[0] {
	case PacketDeliveredTopic:
		event = EndpointABI.Events["PacketDelivered"]
	case PacketVerifiedTopic:
		event = EndpointABI.Events["PacketVerified"]
	default:
		return entities.PacketOrigin{}, false
	}
	values, err := event.Inputs.Unpack(lg.Data)
	if err != nil || len(values) == 0 {
		return entities.PacketOrigin{}, false
	}
	origin := *abi.ConvertType(values[0], new(originTuple)).(*originTuple)
	return entities.PacketOrigin{SrcEid: origin.SrcEid, Sender: origin.Sender, Nonce: origin.Nonce}, true
}

type endpointMatch struct {
	delivered *types.Log
	verified  *types.Log
}

// scanEndpoint walks the window in chunks. The first delivered match ends
// the scan; the first verified match is kept.
func scanEndpoint(ctx context.Context, client blockchain.Client, endpoint common.Address, w BlockWindow, m originMatcher) (endpointMatch, error) {
	var out endpointMatch
	for from := w.FromBlock; from <= w.ToBlock; from += logChunkSize {
		to := from + logChunkSize - 1
		if to > w.ToBlock {
			to = w.ToBlock
		}
		logs, err := client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{endpoint},
			Topics:    [][]common.Hash{{PacketDeliveredTopic, PacketVerifiedTopic}},
		})
		if err != nil {
			return out, err
		}
		for i := range logs {
			lg := logs[i]
			if len(lg.Topics) == 0 {
				continue
			}
			origin, ok := decodeOrigin(lg)
			if !ok || !m.matches(origin) {
				continue
			}
			switch lg.Topics[0] {
			case PacketDeliveredTopic:
				out.delivered = &lg
				return out, nil
			case PacketVerifiedTopic:
				if out.verified == nil {
					out.verified = &lg
				}
			}
		}
		if to == w.ToBlock {
			break
		}
	}
	return out, nil
}

func dvnEventKind(topic common.Hash) string {
	switch topic {
	case DVNFeePaidTopic:
		return "fee_paid"
	case DVNVerifySignaturesFailedTopic:
		return "verify_signatures_failed"
	case DVNExecuteFailedTopic:
		return "execute_failed"
	case DVNHashAlreadyUsedTopic:
		return "hash_already_used"
	}
	return "other"
}

// scanDVN never fails the correlation; errors are reported inline.
func scanDVN(ctx context.Context, client blockchain.Client, dvn common.Address, w BlockWindow) *DVNDiagnostics {
	diag := &DVNDiagnostics{Address: dvn.Hex(), Counts: map[string]int{}, Events: []DVNEvent{}}
	for from := w.FromBlock; from <= w.ToBlock; from += logChunkSize {
		to := from + logChunkSize - 1
		if to > w.ToBlock {
			to = w.ToBlock
		}
		logs, err := client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{dvn},
		})
		if err != nil {
			logger.Debug(ctx, "dvn log scan failed", zap.Error(err))
			diag.Error = err.Error()
			return diag
		}
		for _, lg := range logs {
			if len(lg.Topics) == 0 {
				continue
			}
			kind := dvnEventKind(lg.Topics[0])
			diag.Counts[kind]++
			if len(diag.Events) < maxDVNEvents {
				diag.Events = append(diag.Events, DVNEvent{
					Kind:        kind,
					TxHash:      strings.ToLower(lg.TxHash.Hex()),
					BlockNumber: lg.BlockNumber,
				})
			}
		}
		if to == w.ToBlock {
			break
		}
	}
	return diag
}
