package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"oft-bridge.backend/internal/domain/entities"
	domainerrors "oft-bridge.backend/internal/domain/errors"
	"oft-bridge.backend/internal/infrastructure/upstream"
)

func trackReq() TrackRequest {
	return TrackRequest{ClientID: "client-1", TxHash: testTxHash, SourceNetwork: "sepolia", DestNetwork: "arbsep"}
}

func TestReconciler_PollMergesByRank(t *testing.T) {
	r := NewStatusReconciler(time.Second,
		&stubSource{name: "a", seq: []stubAnswer{{stage: entities.StageSent}}},
		&stubSource{name: "b", seq: []stubAnswer{{stage: entities.StageVerified}}},
		&stubSource{name: "c", seq: []stubAnswer{{err: errors.New("boom")}}},
	)

	got, ok := r.Poll(context.Background(), trackReq())
	require.True(t, ok)
	require.Equal(t, entities.StageCommitted, got.Stage)
	require.Equal(t, "b", got.Source)
}

func TestReconciler_NoAnswers(t *testing.T) {
	r := NewStatusReconciler(20*time.Millisecond,
		&stubSource{name: "slow", seq: []stubAnswer{{stage: entities.StageExecuted, delay: time.Second}}},
		&stubSource{name: "down", seq: []stubAnswer{{err: errSourceSkipped}}},
	)

	start := time.Now()
	_, ok := r.Poll(context.Background(), trackReq())
	require.False(t, ok)
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestMerge_OrderIndependent(t *testing.T) {
	r := NewStatusReconciler(time.Second)
	stages := []entities.Stage{
		entities.StageSent, entities.StageExecuted, entities.StageInflight,
		entities.StageDVNVerifying, "bogus", entities.StageCommitted,
	}
	fold := func(order []int) entities.Stage {
		s := entities.NewTransferStatus(testTxHash)
		for _, i := range order {
			next := entities.NewTransferStatus(testTxHash)
			next.Stage = stages[i]
			s = r.Merge(s, next)
		}
		return s.Stage
	}
	require.Equal(t, entities.StageExecuted, fold([]int{0, 1, 2, 3, 4, 5}))
	require.Equal(t, entities.StageExecuted, fold([]int{5, 4, 3, 2, 1, 0}))
	require.Equal(t, entities.StageExecuted, fold([]int{2, 4, 1, 1, 0, 3}))
	require.Equal(t, entities.StageCommitted, fold([]int{0, 2, 5, 3, 4}))
}

// Source receipt absent, then delivered, then the on-chain fetch fails: the
// published stage never goes back.
func TestTracker_StageNeverRegresses(t *testing.T) {
	onchain := &stubSource{name: SourceOnchain, seq: []stubAnswer{
		{stage: entities.StageInflight},
		{stage: entities.StageExecuted},
		{err: errors.New("rpc timeout")},
		{stage: entities.StageInflight},
	}}
	cache := newMemCache()
	history := newMemHistory()
	tr := NewTracker(NewStatusReconciler(time.Second, onchain), cache, history)
	tr.Reset(trackReq())

	tr.Tick(context.Background())
	require.Equal(t, entities.StageSent, tr.Status().Stage)
	require.False(t, tr.Done())

	tr.Tick(context.Background())
	require.Equal(t, entities.StageExecuted, tr.Status().Stage)
	require.True(t, tr.Done())
	require.Equal(t, entities.RecordDelivered, history.statusOf(testTxHash))

	tr.Tick(context.Background())
	tr.Tick(context.Background())
	require.Equal(t, entities.StageExecuted, tr.Status().Stage)

	cached, err := cache.Get(context.Background(), testTxHash)
	require.NoError(t, err)
	require.Equal(t, entities.StageExecuted, cached.Stage)
}

func TestTracker_DropsResultsForReplacedHash(t *testing.T) {
	tr := NewTracker(NewStatusReconciler(time.Second), nil, nil)
	tr.Reset(trackReq())

	other := "0x" + "12" + testTxHash[4:]
	next := entities.NewTransferStatus(other)
	next.Stage = entities.StageExecuted
	tr.apply(context.Background(), other, next)
	require.Equal(t, entities.StageUnknown, tr.Status().Stage)

	next.TxHash = testTxHash
	next.Stage = entities.StageCommitted
	tr.apply(context.Background(), testTxHash, next)
	require.Equal(t, entities.StageCommitted, tr.Status().Stage)

	req := trackReq()
	req.TxHash = other
	tr.Reset(req)
	require.Equal(t, entities.StageUnknown, tr.Status().Stage)
	require.Equal(t, other, tr.Status().TxHash)
}

// An aggregator answering 403 is just a failed source; the last published
// status stays.
func TestTracker_AggregatorUnauthorizedKeepsStatus(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"steps": []map[string]interface{}{
					{"name": "sent", "completed": true, "txHash": testTxHash},
					{"name": "dvn_verifying", "completed": true},
					{"name": "executed", "completed": false},
				},
			})
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	agg, err := upstream.NewAggregatorClient(upstream.AggregatorConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	tr := NewTracker(NewStatusReconciler(time.Second, NewAggregatorSource(agg)), nil, nil)
	tr.Reset(trackReq())

	tr.Tick(context.Background())
	require.Equal(t, entities.StageDVNVerifying, tr.Status().Stage)
	require.Equal(t, SourceAggregator, tr.Status().Source)

	tr.Tick(context.Background())
	require.Equal(t, 2, calls)
	require.Equal(t, entities.StageDVNVerifying, tr.Status().Stage)
}

func TestTrackingUsecase_TrackAndStatus(t *testing.T) {
	src := &stubSource{name: "s", seq: []stubAnswer{{stage: entities.StageCommitted}}}
	cache := newMemCache()
	uc := NewTrackingUsecase(NewStatusReconciler(time.Second, src), cache, nil, 10*time.Millisecond)
	defer uc.Shutdown(context.Background())

	_, err := uc.Track(context.Background(), TrackRequest{TxHash: testTxHash})
	require.ErrorIs(t, err, domainerrors.ErrValidation)

	upper := "0x" + "AB" + testTxHash[4:]
	status, err := uc.Track(context.Background(), TrackRequest{ClientID: "client-1", TxHash: upper})
	require.NoError(t, err)
	require.Equal(t, testTxHash, status.TxHash)

	require.Eventually(t, func() bool {
		s, err := uc.Status(context.Background(), testTxHash)
		return err == nil && s.Stage == entities.StageCommitted
	}, 2*time.Second, 10*time.Millisecond)

	_, err = uc.Status(context.Background(), "0x"+"00"+testTxHash[4:])
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestTrackingUsecase_ReplacesClientTransfer(t *testing.T) {
	src := &stubSource{name: "s", seq: []stubAnswer{{stage: entities.StageSent}}}
	uc := NewTrackingUsecase(NewStatusReconciler(time.Second, src), nil, nil, 10*time.Millisecond)

	second := "0x" + "cd" + testTxHash[4:]
	_, err := uc.Track(context.Background(), TrackRequest{ClientID: "client-1", TxHash: testTxHash})
	require.NoError(t, err)
	_, err = uc.Track(context.Background(), TrackRequest{ClientID: "client-1", TxHash: second})
	require.NoError(t, err)

	_, err = uc.Status(context.Background(), testTxHash)
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
	require.Eventually(t, func() bool {
		s, err := uc.Status(context.Background(), second)
		return err == nil && s.Stage == entities.StageSent
	}, 2*time.Second, 10*time.Millisecond)

	require.True(t, uc.Untrack("client-1"))
	require.False(t, uc.Untrack("client-1"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	uc.Shutdown(ctx)
	_, err = uc.Track(context.Background(), TrackRequest{ClientID: "client-2", TxHash: testTxHash})
	require.ErrorIs(t, err, domainerrors.ErrIdempotencyConflict)
}
