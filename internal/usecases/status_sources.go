package usecases

import (
	"context"
	"errors"
	"strings"
	"time"

	"oft-bridge.backend/internal/domain/entities"
	domainerrors "oft-bridge.backend/internal/domain/errors"
	"oft-bridge.backend/internal/infrastructure/upstream"
)

// Status source names.
const (
	SourceAggregator = "aggregator"
	SourceOnchain    = "onchain"
	SourceScanner    = "scanner"
)

// errSourceSkipped means the source cannot answer for this request.
var errSourceSkipped = errors.New("status source not applicable")

// TrackRequest names a transfer to follow.
type TrackRequest struct {
	ClientID      string `json:"clientId" binding:"required"`
	TxHash        string `json:"txHash" binding:"required"`
	SourceNetwork string `json:"sourceNetwork"`
	DestNetwork   string `json:"destNetwork"`
	TokenID       string `json:"tokenId"`
	// ScanNetwork selects the scanner base; empty tries all.
	ScanNetwork string `json:"scanNetwork"`
}

// StatusSource reports one view of a transfer's progress.
type StatusSource interface {
	Name() string
	Fetch(ctx context.Context, req TrackRequest) (*entities.TransferStatus, error)
}

// AggregatorStatusAPI is the part of the aggregator client used here.
type AggregatorStatusAPI interface {
	Configured() bool
	Status(ctx context.Context, txHash string) (*upstream.AggregatorStatus, error)
}

// ScannerAPI is the part of the scanner client used here.
type ScannerAPI interface {
	Lookup(ctx context.Context, txHash, network string) (*upstream.ScanLookup, error)
}

type aggregatorSource struct {
	api AggregatorStatusAPI
}

func NewAggregatorSource(api AggregatorStatusAPI) StatusSource {
	return &aggregatorSource{api: api}
}

func (s *aggregatorSource) Name() string { return SourceAggregator }

func (s *aggregatorSource) Fetch(ctx context.Context, req TrackRequest) (*entities.TransferStatus, error) {
	if !s.api.Configured() {
		return nil, errSourceSkipped
	}
	res, err := s.api.Status(ctx, req.TxHash)
	if err != nil {
		return nil, err
	}
	return aggregatorToStatus(req.TxHash, res.Steps), nil
}

// aggregatorToStatus takes the highest completed step as the stage.
func aggregatorToStatus(txHash string, steps []upstream.AggregatorStep) *entities.TransferStatus {
	status := entities.NewTransferStatus(txHash)
	status.Source = SourceAggregator
	for _, step := range steps {
		stage := entities.Stage(step.Name).Normalize()
		status.Detail = append(status.Detail, entities.StageDetail{
			Stage:     stage,
			Completed: step.Completed,
			TxHash:    strings.ToLower(step.TxHash),
			ChainID:   step.ChainID.Int64(),
			Timestamp: unixTime(step.Timestamp.Int64()),
		})
		if step.Completed && stage.Rank() > status.Stage.Rank() {
			status.Stage = stage
		}
	}
	return &status
}

// unixTime accepts seconds or milliseconds.
func unixTime(v int64) time.Time {
	switch {
	case v <= 0:
		return time.Time{}
	case v > 1e12:
		return time.UnixMilli(v).UTC()
	default:
		return time.Unix(v, 0).UTC()
	}
}

type onchainSource struct {
	correlator *PacketCorrelator
}

func NewOnchainSource(correlator *PacketCorrelator) StatusSource {
	return &onchainSource{correlator: correlator}
}

func (s *onchainSource) Name() string { return SourceOnchain }

func (s *onchainSource) Fetch(ctx context.Context, req TrackRequest) (*entities.TransferStatus, error) {
	if req.SourceNetwork == "" || req.DestNetwork == "" {
		return nil, errSourceSkipped
	}
	res, err := s.correlator.Correlate(ctx, CorrelateRequest{
		TxHash:        req.TxHash,
		SourceNetwork: req.SourceNetwork,
		DestNetwork:   req.DestNetwork,
		TokenID:       req.TokenID,
	})
	if err != nil {
		return nil, err
	}
	status := entities.NewTransferStatus(req.TxHash)
	status.Source = SourceOnchain
	status.Stage = res.Stage.Normalize()
	status.Detail = []entities.StageDetail{{
		Stage:     entities.StageSent,
		Completed: res.Source.Status == SideConfirmed,
		TxHash:    res.Source.TxHash,
	}}
	if res.Destination.TxHash != "" {
		status.Detail = append(status.Detail, entities.StageDetail{
			Stage:     status.Stage,
			Completed: true,
			TxHash:    res.Destination.TxHash,
		})
	}
	return &status, nil
}

type scannerSource struct {
	api ScannerAPI
}

func NewScannerSource(api ScannerAPI) StatusSource {
	return &scannerSource{api: api}
}

func (s *scannerSource) Name() string { return SourceScanner }

func (s *scannerSource) Fetch(ctx context.Context, req TrackRequest) (*entities.TransferStatus, error) {
	res, err := s.api.Lookup(ctx, req.TxHash, req.ScanNetwork)
	if errors.Is(err, domainerrors.ErrConfiguration) {
		return nil, errSourceSkipped
	}
	if err != nil {
		return nil, err
	}
	status := entities.NewTransferStatus(req.TxHash)
	status.Source = SourceScanner
	if !res.Found || res.Message == nil {
		return &status, nil
	}
	msg := res.Message
	status.Stage = msg.Stage()
	if msg.Source.Tx.TxHash != "" {
		status.Detail = append(status.Detail, entities.StageDetail{
			Stage:     entities.StageSent,
			Completed: strings.EqualFold(msg.Source.Status, "SUCCEEDED"),
			TxHash:    strings.ToLower(msg.Source.Tx.TxHash),
		})
	}
	if msg.Destination.Tx.TxHash != "" {
		status.Detail = append(status.Detail, entities.StageDetail{
			Stage:     entities.StageExecuted,
			Completed: strings.EqualFold(msg.Destination.Status, "SUCCEEDED"),
			TxHash:    strings.ToLower(msg.Destination.Tx.TxHash),
		})
	}
	return &status, nil
}
