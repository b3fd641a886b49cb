package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"oft-bridge.backend/internal/domain/entities"
	domainerrors "oft-bridge.backend/internal/domain/errors"
)

const scanDelivered = `{"data":[{
	"guid":"0xguid",
	"pathway":{"srcEid":40161,"dstEid":40231,"sender":{"address":"0xaaa","chain":"sepolia"},"receiver":{"address":"0xbbb"}},
	"source":{"status":"SUCCEEDED","tx":{"txHash":"0xsrc","blockNumber":"6000000"}},
	"destination":{"status":"SUCCEEDED","tx":{"txHash":"0xdst","blockNumber":123}},
	"verification":{"dvn":{"status":"SUCCEEDED"},"sealer":{"status":"SUCCEEDED"}},
	"status":{"name":"DELIVERED","message":"Executor transaction confirmed"}
}]}`

func scanServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages/tx/0xsrc", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScannerLookup_FallsThroughToMainnet(t *testing.T) {
	testnet := scanServer(t, http.StatusNotFound, `{"message":"not found"}`)
	mainnet := scanServer(t, http.StatusOK, scanDelivered)

	client, err := NewScannerClient(ScannerConfig{Bases: []ScanBase{
		{Name: "testnet", URL: testnet.URL},
		{Name: "mainnet", URL: mainnet.URL + "/"},
	}})
	require.NoError(t, err)

	res, err := client.Lookup(context.Background(), "0xsrc", "")
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Equal(t, mainnet.URL, res.NetworkBase)
	require.Equal(t, "0xguid", res.Message.GUID)
	require.Equal(t, uint32(40161), res.Message.Pathway.SrcEid)
	require.Equal(t, int64(6000000), res.Message.Source.Tx.BlockNumber.Int64())
	require.Equal(t, entities.StageExecuted, res.Message.Stage())
	require.NotEmpty(t, res.Raw)
}

func TestScannerLookup_EmptyEverywhereIsNotFound(t *testing.T) {
	testnet := scanServer(t, http.StatusOK, `{"data":[]}`)
	mainnet := scanServer(t, http.StatusNotFound, ``)

	client, err := NewScannerClient(ScannerConfig{Bases: []ScanBase{
		{Name: "testnet", URL: testnet.URL},
		{Name: "mainnet", URL: mainnet.URL},
	}})
	require.NoError(t, err)

	res, err := client.Lookup(context.Background(), "0xsrc", "")
	require.NoError(t, err)
	require.False(t, res.Found)
}

func TestScannerLookup_ErrorOnlyWhenNoBaseAnswered(t *testing.T) {
	broken := scanServer(t, http.StatusBadGateway, `oops`)
	empty := scanServer(t, http.StatusNotFound, ``)

	client, err := NewScannerClient(ScannerConfig{Bases: []ScanBase{
		{Name: "testnet", URL: broken.URL},
		{Name: "mainnet", URL: empty.URL},
	}})
	require.NoError(t, err)
	res, err := client.Lookup(context.Background(), "0xsrc", "")
	require.NoError(t, err)
	require.False(t, res.Found)

	_, err = client.Lookup(context.Background(), "0xsrc", "testnet")
	require.True(t, errors.Is(err, domainerrors.ErrUpstreamUnavailable))
}

func TestScannerBases(t *testing.T) {
	client, err := NewScannerClient(ScannerConfig{Bases: []ScanBase{
		{Name: "testnet", URL: "https://t.example/v1"},
		{Name: "mainnet", URL: " "},
	}})
	require.NoError(t, err)

	bases, err := client.Bases("")
	require.NoError(t, err)
	require.Len(t, bases, 1)

	bases, err = client.Bases("TESTNET")
	require.NoError(t, err)
	require.Equal(t, "https://t.example/v1", bases[0].URL)

	_, err = client.Bases("mainnet")
	require.True(t, errors.Is(err, domainerrors.ErrValidation))

	empty, err := NewScannerClient(ScannerConfig{})
	require.NoError(t, err)
	_, err = empty.Bases("")
	require.True(t, errors.Is(err, domainerrors.ErrConfiguration))
}

func TestScanMessageStage(t *testing.T) {
	var m ScanMessage
	require.Equal(t, entities.StageUnknown, m.Stage())

	m.Source.Status = "SUCCEEDED"
	require.Equal(t, entities.StageSent, m.Stage())

	m.Verification.DVN.Status = "WAITING"
	require.Equal(t, entities.StageDVNVerifying, m.Stage())

	m.Verification.Sealer.Status = "SUCCEEDED"
	require.Equal(t, entities.StageCommitted, m.Stage())

	m.Destination.Status = "SUCCEEDED"
	require.Equal(t, entities.StageExecuted, m.Stage())

	var inflight ScanMessage
	inflight.Status.Name = "INFLIGHT"
	require.Equal(t, entities.StageSent, inflight.Stage())
}
