package usecases

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"oft-bridge.backend/internal/domain/entities"
	domainerrors "oft-bridge.backend/internal/domain/errors"
	"oft-bridge.backend/internal/infrastructure/blockchain"
	"oft-bridge.backend/pkg/logger"
	"oft-bridge.backend/pkg/lzoptions"
)

const nativeDecimals uint8 = 18

// ClientProvider hands out cached RPC clients keyed by URL.
type ClientProvider interface {
	GetClient(ctx context.Context, rpcURL string) (blockchain.Client, error)
}

// oftContract issues read-only calls against an OFT or OFT adapter.
type oftContract struct {
	client  blockchain.Client
	address common.Address
}

func (c oftContract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := OFTABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := c.client.CallView(ctx, c.address.Hex(), data)
	if err != nil {
		return nil, err
	}
	values, err := OFTABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func (c oftContract) innerToken(ctx context.Context) (common.Address, error) {
	values, err := c.call(ctx, "token")
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("token() returned %T", values[0])
	}
	return addr, nil
}

func (c oftContract) decimals(ctx context.Context) (uint8, error) {
	values, err := c.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals() returned %T", values[0])
	}
	return d, nil
}

func (c oftContract) bytesCall(ctx context.Context, method string, args ...interface{}) ([]byte, error) {
	values, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	b, ok := values[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("%s returned %T", method, values[0])
	}
	return b, nil
}

func (c oftContract) enforcedOptions(ctx context.Context, dstEid uint32) ([]byte, error) {
	return c.bytesCall(ctx, "enforcedOptions", dstEid, MsgTypeSend)
}

func (c oftContract) combineOptions(ctx context.Context, dstEid uint32, local []byte) ([]byte, error) {
	return c.bytesCall(ctx, "combineOptions", dstEid, MsgTypeSend, local)
}

// quoteSend always quotes with payInLzToken=false.
func (c oftContract) quoteSend(ctx context.Context, param entities.SendParam) (entities.MessagingFee, error) {
	data, err := OFTABI.Pack("quoteSend", param, false)
	if err != nil {
		return entities.MessagingFee{}, fmt.Errorf("pack quoteSend: %w", err)
	}
	out, err := c.client.CallView(ctx, c.address.Hex(), data)
	if err != nil {
		return entities.MessagingFee{}, err
	}
	values, ok := unpackValues(out, []string{"uint256", "uint256"})
	if !ok || len(values) != 2 {
		return entities.MessagingFee{}, fmt.Errorf("unexpected quoteSend output 0x%x", out)
	}
	nativeFee, _ := values[0].(*big.Int)
	lzTokenFee, _ := values[1].(*big.Int)
	if nativeFee == nil || lzTokenFee == nil {
		return entities.MessagingFee{}, fmt.Errorf("unexpected quoteSend output 0x%x", out)
	}
	return entities.MessagingFee{NativeFee: nativeFee, LzTokenFee: lzTokenFee}, nil
}

// resolveDecimals reads decimals() of the token the OFT moves. Native
// adapters are 18; a failed read also degrades to 18.
func resolveDecimals(ctx context.Context, oft oftContract, token entities.TokenDescriptor) (uint8, common.Address) {
	if token.NativeAdapter {
		return nativeDecimals, common.Address{}
	}
	inner, err := oft.innerToken(ctx)
	if err != nil || inner == (common.Address{}) {
		inner = oft.address
	}
	d, err := oftContract{client: oft.client, address: inner}.decimals(ctx)
	if err != nil {
		logger.Warn(ctx, "decimals lookup failed, assuming 18",
			zap.String("token", inner.Hex()), zap.Error(err))
		return nativeDecimals, inner
	}
	return d, inner
}

// buildOptions combines the local executor options with the OFT's enforced
// options. A failed combine degrades to the local options alone.
func buildOptions(ctx context.Context, oft oftContract, dstEid uint32) (options []byte, combined bool, err error) {
	local, err := lzoptions.DefaultSendOptions()
	if err != nil {
		return nil, false, domainerrors.InternalError(err)
	}

	if enforced, err := oft.enforcedOptions(ctx, dstEid); err != nil {
		logger.Debug(ctx, "enforcedOptions unavailable", zap.Uint32("dstEid", dstEid), zap.Error(err))
	} else if len(enforced) > 0 {
		if directives, derr := lzoptions.Decode(enforced); derr == nil {
			logger.Debug(ctx, "enforced options", zap.Uint32("dstEid", dstEid), zap.Int("directives", len(directives)))
		}
	}

	merged, err := oft.combineOptions(ctx, dstEid, local)
	if err != nil || len(merged) == 0 {
		logger.Warn(ctx, "combineOptions failed, using local options",
			zap.Uint32("dstEid", dstEid), zap.Error(err))
		return local, false, nil
	}
	return merged, true, nil
}
