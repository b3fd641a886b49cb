package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/singleflight"

	"oft-bridge.backend/internal/domain/entities"
	domainerrors "oft-bridge.backend/internal/domain/errors"
	"oft-bridge.backend/pkg/metrics"
)

const scannerName = "scanner"

// ScanBase is one named scanner deployment ("testnet", "mainnet").
type ScanBase struct {
	Name string
	URL  string
}

// ScannerConfig configures ScannerClient. Bases are tried in order.
type ScannerConfig struct {
	Bases []ScanBase
	HTTP  HTTPConfig
}

type ScanEndpoint struct {
	Address string `json:"address"`
	Chain   string `json:"chain,omitempty"`
}

type ScanPathway struct {
	SrcEid   uint32       `json:"srcEid"`
	DstEid   uint32       `json:"dstEid"`
	Sender   ScanEndpoint `json:"sender"`
	Receiver ScanEndpoint `json:"receiver"`
}

type ScanTx struct {
	TxHash      string    `json:"txHash"`
	BlockNumber flexInt64 `json:"blockNumber,omitempty"`
}

type ScanSide struct {
	Status string `json:"status"`
	Tx     ScanTx `json:"tx"`
}

type ScanVerification struct {
	DVN struct {
		Status string `json:"status"`
	} `json:"dvn"`
	Sealer struct {
		Status string `json:"status"`
	} `json:"sealer"`
}

// ScanMessage is one message entry of /messages/tx/{hash}.
type ScanMessage struct {
	GUID         string           `json:"guid"`
	Pathway      ScanPathway      `json:"pathway"`
	Source       ScanSide         `json:"source"`
	Destination  ScanSide         `json:"destination"`
	Verification ScanVerification `json:"verification"`
	Status       struct {
		Name    string `json:"name"`
		Message string `json:"message,omitempty"`
	} `json:"status"`
}

// Stage maps the scanner vocabulary onto the reconciled stage set.
func (m ScanMessage) Stage() entities.Stage {
	switch {
	case strings.EqualFold(m.Status.Name, "DELIVERED"),
		strings.EqualFold(m.Destination.Status, "SUCCEEDED"):
		return entities.StageExecuted
	case strings.EqualFold(m.Destination.Status, "EXECUTING"):
		return entities.StageExecuting
	case strings.EqualFold(m.Verification.Sealer.Status, "SUCCEEDED"):
		return entities.StageCommitted
	case strings.EqualFold(m.Verification.DVN.Status, "WAITING"),
		strings.EqualFold(m.Verification.DVN.Status, "SUCCEEDED"):
		return entities.StageDVNVerifying
	case strings.EqualFold(m.Source.Status, "SUCCEEDED"),
		strings.EqualFold(m.Status.Name, "INFLIGHT"),
		strings.EqualFold(m.Status.Name, "CONFIRMING"):
		return entities.StageSent
	}
	return entities.StageUnknown
}

// ScanLookup is the outcome of a scanner lookup across bases.
type ScanLookup struct {
	Found       bool
	NetworkBase string
	Message     *ScanMessage
	Raw         json.RawMessage
}

// ScannerClient queries the protocol scanner API.
type ScannerClient struct {
	bases  []ScanBase
	client *http.Client
	group  singleflight.Group
}

func NewScannerClient(cfg ScannerConfig) (*ScannerClient, error) {
	client, err := NewHTTPClient(cfg.HTTP)
	if err != nil {
		return nil, err
	}
	bases := make([]ScanBase, 0, len(cfg.Bases))
	for _, b := range cfg.Bases {
		u := strings.TrimRight(strings.TrimSpace(b.URL), "/")
		if u == "" {
			continue
		}
		bases = append(bases, ScanBase{Name: b.Name, URL: u})
	}
	return &ScannerClient{bases: bases, client: client}, nil
}

// Bases returns the bases to query for network: all of them in order when
// network is empty, else the base with that name.
func (c *ScannerClient) Bases(network string) ([]ScanBase, error) {
	network = strings.ToLower(strings.TrimSpace(network))
	if network == "" {
		if len(c.bases) == 0 {
			return nil, domainerrors.MissingConfiguration("no scanner base URL configured")
		}
		return c.bases, nil
	}
	for _, b := range c.bases {
		if strings.EqualFold(b.Name, network) {
			return []ScanBase{b}, nil
		}
	}
	return nil, domainerrors.Validation(fmt.Sprintf("unknown scanner network %q", network))
}

// Lookup tries each base in order and returns the first that knows txHash.
// A miss on every base is not an error; transport or non-2xx failures are
// returned only when no base answered at all.
func (c *ScannerClient) Lookup(ctx context.Context, txHash, network string) (*ScanLookup, error) {
	bases, err := c.Bases(network)
	if err != nil {
		return nil, err
	}
	key := strings.ToLower(network) + "|" + strings.ToLower(txHash)
	v, err := sharedFetch(ctx, &c.group, key, func(ctx context.Context) (interface{}, error) {
		return c.lookup(ctx, txHash, bases)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ScanLookup), nil
}

func (c *ScannerClient) lookup(ctx context.Context, txHash string, bases []ScanBase) (*ScanLookup, error) {
	var (
		lastErr  error
		answered bool
	)
	for _, base := range bases {
		result, err := c.fetch(ctx, base, txHash)
		if err != nil {
			lastErr = err
			continue
		}
		answered = true
		if result.Found {
			return result, nil
		}
	}
	if !answered && lastErr != nil {
		return nil, lastErr
	}
	return &ScanLookup{Found: false}, nil
}

func (c *ScannerClient) fetch(ctx context.Context, base ScanBase, txHash string) (*ScanLookup, error) {
	endpoint := base.URL + "/messages/tx/" + url.PathEscape(txHash)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordUpstream(scannerName, 0)
		return nil, domainerrors.Upstream(0, "scanner request failed", err)
	}
	defer resp.Body.Close()
	metrics.RecordUpstream(scannerName, resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, domainerrors.Upstream(0, "scanner response unreadable", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return &ScanLookup{NetworkBase: base.URL}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domainerrors.Upstream(resp.StatusCode,
			fmt.Sprintf("scanner %s returned %d", base.Name, resp.StatusCode),
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet(body)))
	}

	var envelope struct {
		Data []ScanMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, domainerrors.Upstream(http.StatusBadGateway, "scanner returned malformed JSON", err)
	}
	if len(envelope.Data) == 0 {
		return &ScanLookup{NetworkBase: base.URL}, nil
	}
	msg := envelope.Data[0]
	return &ScanLookup{Found: true, NetworkBase: base.URL, Message: &msg, Raw: json.RawMessage(body)}, nil
}
