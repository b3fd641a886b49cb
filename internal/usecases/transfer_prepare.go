package usecases

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"oft-bridge.backend/internal/domain/entities"
	domainerrors "oft-bridge.backend/internal/domain/errors"
	"oft-bridge.backend/internal/infrastructure/blockchain"
	"oft-bridge.backend/pkg/logger"
	"oft-bridge.backend/pkg/utils"
)

// AmountMax asks for the sender's whole balance.
const AmountMax = "max"

// transferInput is what Send and EstimateFee share.
type transferInput struct {
	SourceNetwork string
	DestNetwork   string
	TokenID       string
	Amount        string
	Receiver      string
}

type preparedTransfer struct {
	route      *Route
	client     blockchain.Client
	oft        oftContract
	decimals   uint8
	innerToken common.Address
	balance    *big.Int
	param      entities.SendParam
	fee        entities.MessagingFee
	combined   bool
}

// checkAmountSyntax rejects malformed and non-positive amounts before any
// network call.
func checkAmountSyntax(amount string) (isMax bool, err error) {
	v := strings.TrimSpace(amount)
	if strings.EqualFold(v, AmountMax) {
		return true, nil
	}
	if v == "" {
		return false, domainerrors.Validation("amount is required")
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return false, domainerrors.Validation(fmt.Sprintf("amount %q is not a number", amount))
	}
	if !d.IsPositive() {
		return false, domainerrors.Validation("amount must be greater than zero")
	}
	return false, nil
}

// transferStep is called between phases so Send can record state changes.
type transferStep func(entities.SendState)

// prepareTransfer runs validation, decimals, options and the fee quote.
// owner may be the zero address when no signer is configured; the balance
// check is skipped then.
func prepareTransfer(ctx context.Context, registry *entities.Registry, clients ClientProvider, in transferInput, owner common.Address, step transferStep) (*preparedTransfer, error) {
	if step == nil {
		step = func(entities.SendState) {}
	}

	route, err := ResolveRoute(registry, in.SourceNetwork, in.DestNetwork, in.TokenID)
	if err != nil {
		return nil, err
	}
	isMax, err := checkAmountSyntax(in.Amount)
	if err != nil {
		return nil, err
	}
	var to [32]byte
	if strings.TrimSpace(in.Receiver) != "" {
		receiver, err := parseReceiver(in.Receiver)
		if err != nil {
			return nil, err
		}
		to = addressToBytes32(receiver)
	} else if owner != (common.Address{}) {
		to = addressToBytes32(owner)
	}
	if isMax && owner == (common.Address{}) {
		return nil, domainerrors.Validation("amount \"max\" needs a configured sender")
	}

	client, err := clients.GetClient(ctx, route.Source.RPCURL)
	if err != nil {
		return nil, domainerrors.ChainCall(fmt.Sprintf("connect to %s", route.Source.Key), err)
	}
	p := &preparedTransfer{
		route:  route,
		client: client,
		oft:    oftContract{client: client, address: route.SourceOFT},
	}

	step(entities.SendResolvingDecimals)
	p.decimals, p.innerToken = resolveDecimals(ctx, p.oft, route.Token)

	if owner != (common.Address{}) {
		p.balance = fetchBalance(ctx, client, route.Token, p.innerToken, owner)
	}

	var amountLD *big.Int
	if isMax {
		if p.balance == nil {
			return nil, domainerrors.Validation("balance unavailable, cannot resolve \"max\"")
		}
		amountLD = new(big.Int).Set(p.balance)
	} else {
		amountLD, err = utils.ParseUnits(in.Amount, int32(p.decimals))
		if err != nil {
			if errors.Is(err, utils.ErrTooManyDecimals) {
				return nil, domainerrors.Validation(fmt.Sprintf("amount has more than %d decimals", p.decimals))
			}
			return nil, domainerrors.Validation(err.Error())
		}
	}
	if amountLD.Sign() <= 0 {
		return nil, domainerrors.Validation("amount must be greater than zero")
	}
	if p.balance != nil && amountLD.Cmp(p.balance) > 0 {
		return nil, domainerrors.Validation(fmt.Sprintf("amount exceeds balance %s", utils.FormatUnits(p.balance, int32(p.decimals))))
	}

	step(entities.SendBuildingOptions)
	options, combined, err := buildOptions(ctx, p.oft, route.Destination.EID)
	if err != nil {
		return nil, err
	}
	p.combined = combined
	p.param = entities.SendParam{
		DstEid:       route.Destination.EID,
		To:           to,
		AmountLD:     amountLD,
		MinAmountLD:  entities.MinAmount(amountLD),
		ExtraOptions: options,
		ComposeMsg:   []byte{},
		OftCmd:       []byte{},
	}

	step(entities.SendQuotingFee)
	fee, err := p.oft.quoteSend(ctx, p.param)
	if err != nil {
		reason := err.Error()
		if decoded, ok := DecodeError(err); ok {
			reason = decoded
		}
		return nil, domainerrors.ChainCall("quoteSend failed: "+reason, err)
	}
	p.fee = fee

	// The fee for a native "max" comes out of the same balance, so the
	// principal shrinks by it and is quoted again.
	if isMax && route.Token.NativeAdapter {
		if err := p.fitNativeMax(ctx); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// msgValue is the native value attached to send: the fee, plus the
// principal for native adapters.
func (p *preparedTransfer) msgValue() *big.Int {
	value := new(big.Int).Set(p.fee.NativeFee)
	if p.route.Token.NativeAdapter {
		value.Add(value, p.param.AmountLD)
	}
	return value
}

func (p *preparedTransfer) fitNativeMax(ctx context.Context) error {
	amountLD := new(big.Int).Sub(p.balance, p.fee.NativeFee)
	if amountLD.Sign() <= 0 {
		return domainerrors.Validation(fmt.Sprintf("balance %s does not cover the messaging fee %s",
			utils.FormatUnits(p.balance, int32(p.decimals)), utils.FormatUnits(p.fee.NativeFee, int32(p.decimals))))
	}
	p.param.AmountLD = amountLD
	p.param.MinAmountLD = entities.MinAmount(amountLD)

	fee, err := p.oft.quoteSend(ctx, p.param)
	if err != nil {
		return domainerrors.ChainCall("quoteSend failed: "+err.Error(), err)
	}
	p.fee = fee
	if p.msgValue().Cmp(p.balance) > 0 {
		return domainerrors.Validation("fee rose while quoting \"max\", retry with an explicit amount")
	}
	return nil
}

// checkNativeFunds rejects a send whose attached value exceeds the sender's
// native balance. An unreadable balance skips the check.
func checkNativeFunds(ctx context.Context, p *preparedTransfer, owner common.Address) error {
	native := p.balance
	if !p.route.Token.NativeAdapter {
		var err error
		native, err = p.client.GetBalance(ctx, owner.Hex())
		if err != nil {
			logger.Warn(ctx, "native balance lookup failed", zap.String("owner", owner.Hex()), zap.Error(err))
			return nil
		}
	}
	if native == nil {
		return nil
	}
	value := p.msgValue()
	if value.Cmp(native) > 0 {
		return domainerrors.Validation(fmt.Sprintf("native balance %s wei is below the required %s wei (fee %s wei)",
			native, value, p.fee.NativeFee))
	}
	return nil
}

// fetchBalance returns nil when the balance cannot be read.
func fetchBalance(ctx context.Context, client blockchain.Client, token entities.TokenDescriptor, inner, owner common.Address) *big.Int {
	var (
		balance *big.Int
		err     error
	)
	if token.NativeAdapter {
		balance, err = client.GetBalance(ctx, owner.Hex())
	} else {
		balance, err = client.GetTokenBalance(ctx, inner.Hex(), owner.Hex())
	}
	if err != nil {
		logger.Warn(ctx, "balance lookup failed", zap.String("owner", owner.Hex()), zap.Error(err))
		return nil
	}
	return balance
}
