package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	domainerrors "oft-bridge.backend/internal/domain/errors"
	"oft-bridge.backend/pkg/metrics"
)

const (
	aggregatorName = "aggregator"

	// CredentialHint is returned with 401/403 answers from the aggregator.
	CredentialHint = "check AGGREGATOR_USERNAME and AGGREGATOR_PASSWORD"
)

// AggregatorConfig configures AggregatorClient.
type AggregatorConfig struct {
	BaseURL  string
	Username string
	Password string
	HTTP     HTTPConfig
}

// AggregatorStep is one named step of the aggregator's status list.
type AggregatorStep struct {
	Name      string    `json:"name"`
	Completed bool      `json:"completed"`
	TxHash    string    `json:"txHash,omitempty"`
	ChainID   flexInt64 `json:"chainId,omitempty"`
	Timestamp flexInt64 `json:"timestamp,omitempty"`
}

// AggregatorStatus is a 2xx aggregator answer: the raw body for passthrough
// plus the parsed step list.
type AggregatorStatus struct {
	Body  json.RawMessage
	Steps []AggregatorStep
}

// AggregatorClient talks to the status aggregator proxy.
type AggregatorClient struct {
	cfg    AggregatorConfig
	client *http.Client
	group  singleflight.Group
}

func NewAggregatorClient(cfg AggregatorConfig) (*AggregatorClient, error) {
	client, err := NewHTTPClient(cfg.HTTP)
	if err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return &AggregatorClient{cfg: cfg, client: client}, nil
}

// Configured reports whether a base URL is set.
func (c *AggregatorClient) Configured() bool {
	return c != nil && c.cfg.BaseURL != ""
}

// Status fetches GET {base}/status?txHash=. Concurrent calls for the same
// hash share one request.
func (c *AggregatorClient) Status(ctx context.Context, txHash string) (*AggregatorStatus, error) {
	if !c.Configured() {
		return nil, domainerrors.MissingConfiguration("AGGREGATOR_BASE_URL is not configured")
	}
	v, err := sharedFetch(ctx, &c.group, txHash, func(ctx context.Context) (interface{}, error) {
		return c.fetch(ctx, txHash)
	})
	if err != nil {
		return nil, err
	}
	return v.(*AggregatorStatus), nil
}

func (c *AggregatorClient) fetch(ctx context.Context, txHash string) (*AggregatorStatus, error) {
	endpoint := c.cfg.BaseURL + "/status?txHash=" + url.QueryEscape(txHash)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Username != "" || c.cfg.Password != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordUpstream(aggregatorName, 0)
		return nil, domainerrors.Upstream(0, "aggregator request failed", err)
	}
	defer resp.Body.Close()
	metrics.RecordUpstream(aggregatorName, resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domainerrors.Upstream(0, "aggregator response unreadable", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		appErr := domainerrors.Upstream(resp.StatusCode,
			fmt.Sprintf("aggregator returned %d", resp.StatusCode),
			fmt.Errorf("HTTP %d after %s: %s", resp.StatusCode, time.Since(start).Round(time.Millisecond), snippet(body)))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			appErr.WithHint(CredentialHint)
		}
		return nil, appErr
	}

	steps, err := parseAggregatorSteps(body)
	if err != nil {
		return nil, domainerrors.Upstream(http.StatusBadGateway, "aggregator returned malformed JSON", err)
	}
	return &AggregatorStatus{Body: json.RawMessage(body), Steps: steps}, nil
}

// parseAggregatorSteps accepts {steps:[...]} and {data:{steps:[...]}}.
func parseAggregatorSteps(body []byte) ([]AggregatorStep, error) {
	var envelope struct {
		Steps []AggregatorStep `json:"steps"`
		Data  *struct {
			Steps []AggregatorStep `json:"steps"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Steps) > 0 {
		return envelope.Steps, nil
	}
	if envelope.Data != nil {
		return envelope.Data.Steps, nil
	}
	return nil, nil
}

// flexInt64 decodes numbers that upstreams send either as JSON numbers or
// as decimal/hex strings.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*f = 0
		return nil
	}
	raw = strings.Trim(raw, `"`)
	var (
		v   int64
		err error
	)
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		v, err = strconv.ParseInt(raw[2:], 16, 64)
	} else if strings.ContainsAny(raw, ".eE") {
		var fv float64
		fv, err = strconv.ParseFloat(raw, 64)
		v = int64(fv)
	} else {
		v, err = strconv.ParseInt(raw, 10, 64)
	}
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", data, err)
	}
	*f = flexInt64(v)
	return nil
}

func (f flexInt64) Int64() int64 { return int64(f) }
