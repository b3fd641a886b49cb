package entities

import (
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// SlippageBps is the minimum received share in basis points of 10000.
const SlippageBps = 9900

// SendParam mirrors the OFT SendParam tuple.
type SendParam struct {
	DstEid       uint32   `json:"dstEid" abi:"dstEid"`
	To           [32]byte `json:"to" abi:"to"`
	AmountLD     *big.Int `json:"amountLD" abi:"amountLD"`
	MinAmountLD  *big.Int `json:"minAmountLD" abi:"minAmountLD"`
	ExtraOptions []byte   `json:"extraOptions" abi:"extraOptions"`
	ComposeMsg   []byte   `json:"composeMsg" abi:"composeMsg"`
	OftCmd       []byte   `json:"oftCmd" abi:"oftCmd"`
}

// MessagingFee mirrors the endpoint MessagingFee tuple.
type MessagingFee struct {
	NativeFee  *big.Int `json:"nativeFee" abi:"nativeFee"`
	LzTokenFee *big.Int `json:"lzTokenFee" abi:"lzTokenFee"`
}

// MinAmount applies the 1% slippage floor: floor(amount * 9900 / 10000).
func MinAmount(amountLD *big.Int) *big.Int {
	if amountLD == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amountLD, big.NewInt(SlippageBps))
	return out.Quo(out, big.NewInt(10000))
}

// PacketOrigin identifies one cross-chain message instance.
type PacketOrigin struct {
	SrcEid uint32   `json:"srcEid"`
	Sender [32]byte `json:"-"`
	Nonce  uint64   `json:"nonce"`
}

// Stage is the reconciled lifecycle label of a transfer.
type Stage string

const (
	StageUnknown      Stage = "unknown"
	StageSent         Stage = "sent"
	StageDVNVerifying Stage = "dvn_verifying"
	StageCommitted    Stage = "committed"
	StageExecuting    Stage = "executing"
	StageExecuted     Stage = "executed"

	// Source vocabularies, normalised before ranking.
	StageInflight  Stage = "inflight"
	StageVerified  Stage = "verified"
	StageDelivered Stage = "delivered"
)

var stageRank = map[Stage]int{
	StageUnknown:      0,
	StageSent:         1,
	StageDVNVerifying: 2,
	StageCommitted:    3,
	StageExecuting:    4,
	StageExecuted:     5,
}

// Normalize maps source-specific names onto the ranked stage set.
func (s Stage) Normalize() Stage {
	v := Stage(strings.ToLower(strings.TrimSpace(string(s))))
	switch v {
	case StageInflight:
		return StageSent
	case StageVerified:
		return StageCommitted
	case StageDelivered:
		return StageExecuted
	}
	if _, ok := stageRank[v]; ok {
		return v
	}
	return StageUnknown
}

// Rank orders stages; unrecognised names rank as unknown.
func (s Stage) Rank() int {
	return stageRank[s.Normalize()]
}

// StageDetail is one step as reported by a status source.
type StageDetail struct {
	Stage     Stage     `json:"stage"`
	Completed bool      `json:"completed"`
	TxHash    string    `json:"txHash,omitempty"`
	ChainID   int64     `json:"chainId,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// TransferStatus is the published status of one source transaction.
type TransferStatus struct {
	TxHash    string        `json:"txHash"`
	Stage     Stage         `json:"stage"`
	Source    string        `json:"source"`
	Detail    []StageDetail `json:"detail,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// NewTransferStatus starts a status at unknown.
func NewTransferStatus(txHash string) TransferStatus {
	return TransferStatus{TxHash: txHash, Stage: StageUnknown, UpdatedAt: time.Now().UTC()}
}

// Done reports whether the transfer reached the final stage.
func (s TransferStatus) Done() bool {
	return s.Stage.Normalize() == StageExecuted
}

// DestinationTxHash returns the hash attached to the executed step, if any.
func (s TransferStatus) DestinationTxHash() string {
	if d, ok := s.executedDetail(); ok {
		return d.TxHash
	}
	return ""
}

func (s TransferStatus) executedDetail() (StageDetail, bool) {
	for _, d := range s.Detail {
		if d.Stage.Normalize() == StageExecuted && d.TxHash != "" {
			return d, true
		}
	}
	return StageDetail{}, false
}

// MergeStatus is the rank reducer: next wins when its stage ranks at least
// as high as prev's, so ties take the newer detail. A destination hash
// already known survives a winner that lacks one. The result carries a
// normalized stage.
func MergeStatus(prev, next TransferStatus) TransferStatus {
	out := prev
	if next.Stage.Rank() >= prev.Stage.Rank() {
		out = next
		if _, ok := out.executedDetail(); !ok {
			if d, ok := prev.executedDetail(); ok {
				out.Detail = append(append([]StageDetail(nil), out.Detail...), d)
			}
		}
	}
	out.Stage = out.Stage.Normalize()
	return out
}

// SendState is a step of the send state machine.
type SendState string

const (
	SendIdle              SendState = "idle"
	SendResolvingDecimals SendState = "resolving_decimals"
	SendBuildingOptions   SendState = "building_options"
	SendQuotingFee        SendState = "quoting_fee"
	SendSubmitting        SendState = "submitting"
	SendSubmitted         SendState = "submitted"
	SendFailed            SendState = "failed"
)

// Record statuses kept in transfer history.
const (
	RecordSubmitted = "submitted"
	RecordConfirmed = "confirmed"
	RecordReverted  = "reverted"
	RecordDelivered = "delivered"
)

// HistoryLimit is how many transfers are kept per client.
const HistoryLimit = 5

// TransferRecord is one entry of a client's transfer history.
type TransferRecord struct {
	ID            uuid.UUID   `json:"id"`
	ClientID      string      `json:"clientId"`
	SourceNetwork string      `json:"sourceNetwork"`
	DestNetwork   string      `json:"destNetwork"`
	TokenID       string      `json:"tokenId"`
	Amount        string      `json:"amount"`
	Receiver      string      `json:"receiver"`
	TxHash        string      `json:"txHash"`
	Status        string      `json:"status"`
	Stage         null.String `json:"stage,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}
