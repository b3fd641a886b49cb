package usecases

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"oft-bridge.backend/internal/domain/entities"
	"oft-bridge.backend/pkg/utils"
)

// FeeEstimateRequest uses the short field names of the estimate endpoint.
type FeeEstimateRequest struct {
	SourceNetwork string `json:"src"`
	DestNetwork   string `json:"dst"`
	Amount        string `json:"amount"`
	TokenID       string `json:"tokenId"`
	Receiver      string `json:"receiver"`
}

// FeeEstimate is a quote without submission.
type FeeEstimate struct {
	Fee             string `json:"fee"`
	NativeFeeWei    string `json:"nativeFeeWei"`
	LzTokenFeeWei   string `json:"lzTokenFeeWei"`
	AmountLD        string `json:"amountLD"`
	MinAmount       string `json:"minAmount"`
	MinAmountLD     string `json:"minAmountLD"`
	Decimals        uint8  `json:"decimals"`
	Options         string `json:"options"`
	OptionsCombined bool   `json:"optionsCombined"`
}

type FeeUsecase struct {
	registry *entities.Registry
	clients  ClientProvider
	signer   *Signer
}

// NewFeeUsecase takes an optional signer; with one, the receiver defaults to
// the sender and the balance check applies.
func NewFeeUsecase(registry *entities.Registry, clients ClientProvider, signer *Signer) *FeeUsecase {
	return &FeeUsecase{registry: registry, clients: clients, signer: signer}
}

// EstimateFee runs validation, options and the fee quote without signing.
func (u *FeeUsecase) EstimateFee(ctx context.Context, req FeeEstimateRequest) (*FeeEstimate, error) {
	var owner common.Address
	if u.signer != nil {
		owner = u.signer.Address()
	}
	p, err := prepareTransfer(ctx, u.registry, u.clients, transferInput{
		SourceNetwork: req.SourceNetwork,
		DestNetwork:   req.DestNetwork,
		TokenID:       req.TokenID,
		Amount:        req.Amount,
		Receiver:      req.Receiver,
	}, owner, nil)
	if err != nil {
		return nil, err
	}

	return &FeeEstimate{
		Fee:             utils.FormatUnits(p.fee.NativeFee, int32(nativeDecimals)),
		NativeFeeWei:    p.fee.NativeFee.String(),
		LzTokenFeeWei:   p.fee.LzTokenFee.String(),
		AmountLD:        p.param.AmountLD.String(),
		MinAmount:       utils.FormatUnits(p.param.MinAmountLD, int32(p.decimals)),
		MinAmountLD:     p.param.MinAmountLD.String(),
		Decimals:        p.decimals,
		Options:         "0x" + common.Bytes2Hex(p.param.ExtraOptions),
		OptionsCombined: p.combined,
	}, nil
}
