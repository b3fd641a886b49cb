package usecases

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"oft-bridge.backend/internal/domain/entities"
	domainerrors "oft-bridge.backend/internal/domain/errors"
	"oft-bridge.backend/internal/domain/repositories"
	"oft-bridge.backend/internal/infrastructure/blockchain"
	"oft-bridge.backend/pkg/logger"
	"oft-bridge.backend/pkg/metrics"
	"oft-bridge.backend/pkg/utils"
)

const (
	missingTrieNode   = "missing trie node"
	legacyFallbackGas = uint64(600000)
)

var (
	performContractTransact = func(backend bind.ContractBackend, contract common.Address, parsedABI abi.ABI, auth *bind.TransactOpts, method string, args ...interface{}) (common.Hash, error) {
		bound := bind.NewBoundContract(contract, parsedABI, backend, backend, backend)
		tx, err := bound.Transact(auth, method, args...)
		if err != nil {
			return common.Hash{}, err
		}
		return tx.Hash(), nil
	}

	receiptPollInterval = 3 * time.Second
	receiptWaitTimeout  = 10 * time.Minute
)

// SendRequest is one transfer submission.
type SendRequest struct {
	ClientID      string `json:"clientId"`
	SourceNetwork string `json:"sourceNetwork" binding:"required"`
	DestNetwork   string `json:"destNetwork" binding:"required"`
	TokenID       string `json:"tokenId"`
	Amount        string `json:"amount" binding:"required"`
	Receiver      string `json:"receiver"`
}

// SendAttempt records how far a submission got.
type SendAttempt struct {
	State         entities.SendState `json:"state"`
	SourceNetwork string             `json:"sourceNetwork"`
	DestNetwork   string             `json:"destNetwork"`
	TokenID       string             `json:"tokenId"`
	Sender        string             `json:"sender,omitempty"`
	Receiver      string             `json:"receiver,omitempty"`
	Amount        string             `json:"amount,omitempty"`
	AmountLD      string             `json:"amountLD,omitempty"`
	MinAmountLD   string             `json:"minAmountLD,omitempty"`
	NativeFeeWei  string             `json:"nativeFeeWei,omitempty"`
	LzTokenFeeWei string             `json:"lzTokenFeeWei,omitempty"`
	Options       string             `json:"options,omitempty"`
	TxHash        string             `json:"txHash,omitempty"`
	ExplorerURL   string             `json:"explorerUrl,omitempty"`
	LegacyTx      bool               `json:"legacyTx"`
	Error         string             `json:"error,omitempty"`
}

func (a *SendAttempt) transition(ctx context.Context, next entities.SendState) {
	logger.Debug(ctx, "send state",
		zap.String("from", string(a.State)),
		zap.String("to", string(next)))
	a.State = next
}

// TransferTracker starts status tracking for a submitted transfer.
type TransferTracker interface {
	Track(ctx context.Context, req TrackRequest) (*entities.TransferStatus, error)
}

// SendUsecase drives the OFT send state machine.
type SendUsecase struct {
	registry *entities.Registry
	clients  ClientProvider
	signer   *Signer
	history  repositories.TransferHistoryRepository
	tracker  TransferTracker
	metrics  *metrics.SendMetrics
}

func NewSendUsecase(
	registry *entities.Registry,
	clients ClientProvider,
	signer *Signer,
	history repositories.TransferHistoryRepository,
	tracker TransferTracker,
) *SendUsecase {
	return &SendUsecase{
		registry: registry,
		clients:  clients,
		signer:   signer,
		history:  history,
		tracker:  tracker,
		metrics:  metrics.NewSendMetrics(),
	}
}

// Send validates, quotes and submits a transfer. The returned attempt is
// populated even when err is non-nil.
func (u *SendUsecase) Send(ctx context.Context, req SendRequest) (*SendAttempt, error) {
	attempt := &SendAttempt{
		State:         entities.SendIdle,
		SourceNetwork: req.SourceNetwork,
		DestNetwork:   req.DestNetwork,
		TokenID:       req.TokenID,
		Receiver:      req.Receiver,
		Amount:        req.Amount,
	}
	err := u.send(ctx, req, attempt)
	if err != nil {
		attempt.transition(ctx, entities.SendFailed)
		attempt.Error = err.Error()
		logger.Warn(ctx, "send failed",
			zap.String("source", req.SourceNetwork),
			zap.String("destination", req.DestNetwork),
			zap.Error(err))
	}
	u.metrics.RecordAttempt(req.SourceNetwork, req.DestNetwork, string(attempt.State))
	return attempt, err
}

func (u *SendUsecase) send(ctx context.Context, req SendRequest, attempt *SendAttempt) error {
	if u.signer == nil {
		return domainerrors.MissingConfiguration("SENDER_PRIVATE_KEY is not configured")
	}
	attempt.Sender = u.signer.Address().Hex()

	in := transferInput{
		SourceNetwork: req.SourceNetwork,
		DestNetwork:   req.DestNetwork,
		TokenID:       req.TokenID,
		Amount:        req.Amount,
		Receiver:      req.Receiver,
	}
	prepared, err := prepareTransfer(ctx, u.registry, u.clients, in, u.signer.Address(), func(s entities.SendState) {
		attempt.transition(ctx, s)
	})
	if err != nil {
		return err
	}
	if err := checkNativeFunds(ctx, prepared, u.signer.Address()); err != nil {
		return err
	}

	attempt.TokenID = prepared.route.Token.ID
	attempt.Receiver = common.BytesToAddress(prepared.param.To[12:]).Hex()
	attempt.AmountLD = prepared.param.AmountLD.String()
	attempt.Amount = utils.FormatUnits(prepared.param.AmountLD, int32(prepared.decimals))
	attempt.MinAmountLD = prepared.param.MinAmountLD.String()
	attempt.NativeFeeWei = prepared.fee.NativeFee.String()
	attempt.LzTokenFeeWei = prepared.fee.LzTokenFee.String()
	attempt.Options = "0x" + common.Bytes2Hex(prepared.param.ExtraOptions)

	attempt.transition(ctx, entities.SendSubmitting)
	hash, legacy, err := u.submit(ctx, prepared)
	if err != nil {
		return err
	}
	attempt.LegacyTx = legacy
	attempt.TxHash = strings.ToLower(hash.Hex())
	attempt.ExplorerURL = prepared.route.Source.TxURL(attempt.TxHash)
	attempt.transition(ctx, entities.SendSubmitted)

	ctx = logger.WithTransfer(ctx, attempt.TxHash)
	logger.Info(ctx, "transfer submitted",
		zap.String("source", prepared.route.Source.Key),
		zap.String("destination", prepared.route.Destination.Key),
		zap.String("amountLD", attempt.AmountLD),
		zap.Bool("legacy", legacy))

	u.afterSubmit(ctx, req, attempt, prepared.client)
	return nil
}

// submit sends through the bound contract and retries once as a raw legacy
// transaction when the node reports a state gap.
func (u *SendUsecase) submit(ctx context.Context, p *preparedTransfer) (common.Hash, bool, error) {
	value := p.msgValue()
	fee := entities.MessagingFee{NativeFee: p.fee.NativeFee, LzTokenFee: big.NewInt(0)}
	refund := u.signer.Address()

	chainID := p.client.ChainID()
	if chainID == nil {
		chainID = big.NewInt(p.route.Source.ChainID)
	}
	auth, err := u.signer.transactOpts(ctx, chainID, value)
	if err != nil {
		return common.Hash{}, false, domainerrors.InternalError(err)
	}
	backend, err := p.client.Backend()
	if err != nil {
		return common.Hash{}, false, domainerrors.ChainCall("no rpc backend for "+p.route.Source.Key, err)
	}

	hash, err := performContractTransact(backend, p.route.SourceOFT, OFTABI, auth, "send", p.param, fee, refund)
	if err == nil {
		return hash, false, nil
	}
	if !strings.Contains(strings.ToLower(err.Error()), missingTrieNode) {
		return common.Hash{}, false, sendError(err)
	}

	logger.Warn(ctx, "node is missing state, retrying as legacy transaction",
		zap.String("network", p.route.Source.Key), zap.Error(err))
	data, packErr := OFTABI.Pack("send", p.param, fee, refund)
	if packErr != nil {
		return common.Hash{}, false, domainerrors.InternalError(packErr)
	}
	hash, err = u.sendLegacyRawTx(ctx, p.client, chainID, p.route.SourceOFT, value, data)
	u.metrics.RecordFallback(p.route.Source.Key, err == nil)
	if err != nil {
		return common.Hash{}, true, domainerrors.TransientNodeGap(err)
	}
	return hash, true, nil
}

// sendLegacyRawTx signs and broadcasts a type-0 transaction with a fixed
// gas limit, skipping estimation.
func (u *SendUsecase) sendLegacyRawTx(ctx context.Context, client blockchain.Client, chainID *big.Int, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas price: %w", err)
	}
	nonce, err := client.PendingNonceAt(ctx, u.signer.Address())
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      legacyFallbackGas,
		To:       &to,
		Value:    value,
		Data:     data,
	})
	signed, err := u.signer.signLegacy(tx, chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign legacy tx: %w", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("broadcast legacy tx: %w", err)
	}
	return signed.Hash(), nil
}

// sendError classifies a failed submission.
func sendError(err error) error {
	if reason, ok := DecodeError(err); ok {
		return domainerrors.Revert(reason, err)
	}
	msg := "send failed"
	if data, ok := revertDataFromError(err); ok {
		msg = fmt.Sprintf("send failed (revert data 0x%x)", data)
	}
	return domainerrors.ChainCall(msg, err)
}

// afterSubmit records history, starts tracking and watches the receipt.
// None of it affects the response.
func (u *SendUsecase) afterSubmit(ctx context.Context, req SendRequest, attempt *SendAttempt, client blockchain.Client) {
	if u.history != nil && req.ClientID != "" {
		record := &entities.TransferRecord{
			ClientID:      req.ClientID,
			SourceNetwork: attempt.SourceNetwork,
			DestNetwork:   attempt.DestNetwork,
			TokenID:       attempt.TokenID,
			Amount:        attempt.Amount,
			Receiver:      attempt.Receiver,
			TxHash:        attempt.TxHash,
			Status:        entities.RecordSubmitted,
		}
		if err := u.history.Append(ctx, record); err != nil {
			logger.Warn(ctx, "failed to record transfer history", zap.Error(err))
		}
	}

	if u.tracker != nil && req.ClientID != "" {
		_, err := u.tracker.Track(ctx, TrackRequest{
			ClientID:      req.ClientID,
			TxHash:        attempt.TxHash,
			SourceNetwork: attempt.SourceNetwork,
			DestNetwork:   attempt.DestNetwork,
			TokenID:       attempt.TokenID,
		})
		if err != nil {
			logger.Warn(ctx, "failed to start tracking", zap.Error(err))
		}
	}

	watchCtx := logger.WithTransfer(context.Background(), attempt.TxHash)
	go u.watchReceipt(watchCtx, client, common.HexToHash(attempt.TxHash))
}

// watchReceipt polls for the receipt and updates the history record.
func (u *SendUsecase) watchReceipt(ctx context.Context, client blockchain.Client, hash common.Hash) {
	ctx, cancel := context.WithTimeout(ctx, receiptWaitTimeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.GetTransactionReceipt(ctx, hash.Hex())
		if err == nil && receipt != nil {
			status := entities.RecordConfirmed
			if receipt.Status != types.ReceiptStatusSuccessful {
				status = entities.RecordReverted
			}
			logger.Info(ctx, "send receipt",
				zap.String("status", status),
				zap.Uint64("block", receipt.BlockNumber.Uint64()),
				zap.Uint64("gasUsed", receipt.GasUsed))
			if u.history != nil {
				if err := u.history.UpdateStatus(ctx, strings.ToLower(hash.Hex()), status, null.String{}); err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
					logger.Warn(ctx, "failed to update transfer history", zap.Error(err))
				}
			}
			return
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			logger.Debug(ctx, "receipt lookup failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			logger.Warn(ctx, "gave up waiting for send receipt")
			return
		case <-ticker.C:
		}
	}
}
