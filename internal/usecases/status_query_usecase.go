package usecases

import (
	"context"
	"encoding/json"

	"oft-bridge.backend/internal/domain/entities"
	"oft-bridge.backend/internal/infrastructure/upstream"
)

// ScanSummary is the scanner view of a transfer.
type ScanSummary struct {
	Found        bool                       `json:"found"`
	NetworkBase  string                     `json:"networkBase,omitempty"`
	Stage        entities.Stage             `json:"stage"`
	GUID         string                     `json:"guid,omitempty"`
	Pathway      *upstream.ScanPathway      `json:"pathway,omitempty"`
	Source       *upstream.ScanSide         `json:"source,omitempty"`
	Destination  *upstream.ScanSide         `json:"destination,omitempty"`
	Verification *upstream.ScanVerification `json:"verification,omitempty"`
	Raw          json.RawMessage            `json:"raw,omitempty"`
}

// StatusQueryUsecase answers one-shot status questions against a single
// source, without tracking.
type StatusQueryUsecase struct {
	aggregator AggregatorStatusAPI
	scanner    ScannerAPI
	correlator *PacketCorrelator
}

func NewStatusQueryUsecase(aggregator AggregatorStatusAPI, scanner ScannerAPI, correlator *PacketCorrelator) *StatusQueryUsecase {
	return &StatusQueryUsecase{aggregator: aggregator, scanner: scanner, correlator: correlator}
}

// AggregatorStatus returns the aggregator body untouched.
func (u *StatusQueryUsecase) AggregatorStatus(ctx context.Context, txHash string) (json.RawMessage, error) {
	hash, err := normalizeTxHash(txHash)
	if err != nil {
		return nil, err
	}
	res, err := u.aggregator.Status(ctx, hash)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// ScannerStatus looks txHash up on the scanner. network picks one base;
// empty tries testnet then mainnet.
func (u *StatusQueryUsecase) ScannerStatus(ctx context.Context, txHash, network string) (*ScanSummary, error) {
	hash, err := normalizeTxHash(txHash)
	if err != nil {
		return nil, err
	}
	res, err := u.scanner.Lookup(ctx, hash, network)
	if err != nil {
		return nil, err
	}
	summary := &ScanSummary{Found: res.Found, Stage: entities.StageUnknown}
	if !res.Found || res.Message == nil {
		return summary, nil
	}
	msg := res.Message
	summary.NetworkBase = res.NetworkBase
	summary.Stage = msg.Stage()
	summary.GUID = msg.GUID
	summary.Pathway = &msg.Pathway
	summary.Source = &msg.Source
	summary.Destination = &msg.Destination
	summary.Verification = &msg.Verification
	summary.Raw = res.Raw
	return summary, nil
}

// OnchainStatus runs the packet correlator.
func (u *StatusQueryUsecase) OnchainStatus(ctx context.Context, req CorrelateRequest) (*CorrelationResult, error) {
	return u.correlator.Correlate(ctx, req)
}
