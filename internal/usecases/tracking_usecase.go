package usecases

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"oft-bridge.backend/internal/domain/entities"
	domainerrors "oft-bridge.backend/internal/domain/errors"
	"oft-bridge.backend/internal/domain/repositories"
	"oft-bridge.backend/internal/infrastructure/jobs"
	"oft-bridge.backend/pkg/logger"
	"oft-bridge.backend/pkg/metrics"
)

// Tracker owns the published status of one client's active transfer.
type Tracker struct {
	mu         sync.Mutex
	req        TrackRequest
	status     entities.TransferStatus
	active     bool
	reconciler *StatusReconciler
	cache      repositories.StatusCache
	history    repositories.TransferHistoryRepository
	metrics    *metrics.TrackingMetrics
}

func NewTracker(reconciler *StatusReconciler, cache repositories.StatusCache, history repositories.TransferHistoryRepository) *Tracker {
	return &Tracker{
		reconciler: reconciler,
		cache:      cache,
		history:    history,
		metrics:    metrics.NewTrackingMetrics(),
	}
}

// Reset makes req the active transfer and drops the previous status.
func (t *Tracker) Reset(req TrackRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.req = req
	t.status = entities.NewTransferStatus(req.TxHash)
	t.active = true
}

// Request returns the active request.
func (t *Tracker) Request() (TrackRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.req, t.active
}

func (t *Tracker) Status() entities.TransferStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Done reports whether the active transfer has been executed.
func (t *Tracker) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status.Done()
}

// Tick polls every source once and publishes the merge.
func (t *Tracker) Tick(ctx context.Context) {
	req, ok := t.Request()
	if !ok {
		return
	}
	ctx = logger.WithTransfer(logger.WithClient(ctx, req.ClientID), req.TxHash)

	next, ok := t.reconciler.Poll(ctx, req)
	if !ok {
		return
	}
	t.apply(ctx, req.TxHash, next)
}

// apply merges next into the slot unless the active hash changed while the
// tick was in flight.
func (t *Tracker) apply(ctx context.Context, txHash string, next entities.TransferStatus) {
	t.mu.Lock()
	if !t.active || t.req.TxHash != txHash {
		t.mu.Unlock()
		t.metrics.RecordFetch("tracker", "stale", 0)
		logger.Debug(ctx, "dropping status for replaced transfer")
		return
	}
	prev := t.status
	merged := t.reconciler.Merge(prev, next)
	merged.TxHash = txHash
	merged.UpdatedAt = time.Now().UTC()
	t.status = merged
	t.mu.Unlock()

	advanced := merged.Stage.Rank() > prev.Stage.Rank()
	if advanced {
		t.metrics.RecordStageAdvance(string(merged.Stage))
		logger.Info(ctx, "transfer stage advanced",
			zap.String("from", string(prev.Stage)),
			zap.String("to", string(merged.Stage)),
			zap.String("source", merged.Source))
	}

	if t.cache != nil {
		if _, err := t.cache.Save(ctx, merged); err != nil {
			logger.Warn(ctx, "failed to cache transfer status", zap.Error(err))
		}
	}
	if advanced && t.history != nil {
		status := entities.RecordConfirmed
		if merged.Done() {
			status = entities.RecordDelivered
		}
		err := t.history.UpdateStatus(ctx, txHash, status, null.StringFrom(string(merged.Stage)))
		if err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
			logger.Warn(ctx, "failed to update transfer history", zap.Error(err))
		}
	}
}

type clientTracker struct {
	tracker *Tracker
	job     *jobs.StatusPollJob
	cancel  context.CancelFunc
}

// TrackingUsecase keeps one tracker per client.
type TrackingUsecase struct {
	reconciler *StatusReconciler
	cache      repositories.StatusCache
	history    repositories.TransferHistoryRepository
	interval   time.Duration
	metrics    *metrics.TrackingMetrics

	mu       sync.Mutex
	trackers map[string]*clientTracker
	baseCtx  context.Context
	closed   bool
}

func NewTrackingUsecase(
	reconciler *StatusReconciler,
	cache repositories.StatusCache,
	history repositories.TransferHistoryRepository,
	interval time.Duration,
) *TrackingUsecase {
	return &TrackingUsecase{
		reconciler: reconciler,
		cache:      cache,
		history:    history,
		interval:   interval,
		metrics:    metrics.NewTrackingMetrics(),
		trackers:   make(map[string]*clientTracker),
		baseCtx:    context.Background(),
	}
}

// Track starts polling req.TxHash for req.ClientID, replacing whatever the
// client tracked before.
func (u *TrackingUsecase) Track(ctx context.Context, req TrackRequest) (*entities.TransferStatus, error) {
	req.ClientID = strings.TrimSpace(req.ClientID)
	if req.ClientID == "" {
		return nil, domainerrors.Validation("clientId is required")
	}
	txHash, err := normalizeTxHash(req.TxHash)
	if err != nil {
		return nil, err
	}
	req.TxHash = txHash

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil, domainerrors.Conflict("tracking is shutting down")
	}

	ct, ok := u.trackers[req.ClientID]
	if ok {
		ct.cancel()
		ct.job.Stop()
		u.metrics.TrackerStopped()
	} else {
		ct = &clientTracker{tracker: NewTracker(u.reconciler, u.cache, u.history)}
		u.trackers[req.ClientID] = ct
	}
	ct.tracker.Reset(req)

	jobCtx, cancel := context.WithCancel(u.baseCtx)
	ct.cancel = cancel
	ct.job = jobs.NewStatusPollJob("track:"+req.ClientID, ct.tracker, u.interval)
	go ct.job.Start(jobCtx)
	u.metrics.TrackerStarted()

	logger.Info(logger.WithTransfer(ctx, txHash), "tracking started",
		zap.String("clientId", req.ClientID),
		zap.String("source", req.SourceNetwork),
		zap.String("destination", req.DestNetwork))

	status := ct.tracker.Status()
	return &status, nil
}

// Status returns the published status for txHash: a live tracker first,
// then the shared cache.
func (u *TrackingUsecase) Status(ctx context.Context, txHash string) (*entities.TransferStatus, error) {
	hash, err := normalizeTxHash(txHash)
	if err != nil {
		return nil, err
	}

	u.mu.Lock()
	var live *entities.TransferStatus
	for _, ct := range u.trackers {
		if req, ok := ct.tracker.Request(); ok && req.TxHash == hash {
			s := ct.tracker.Status()
			live = &s
			break
		}
	}
	u.mu.Unlock()

	if u.cache != nil {
		cached, err := u.cache.Get(ctx, hash)
		switch {
		case err == nil && live != nil:
			merged := entities.MergeStatus(*cached, *live)
			return &merged, nil
		case err == nil:
			return cached, nil
		case !errors.Is(err, domainerrors.ErrNotFound):
			logger.Warn(ctx, "status cache lookup failed", zap.Error(err))
		}
	}
	if live != nil {
		return live, nil
	}
	return nil, domainerrors.NotFound("no status for " + hash)
}

// Untrack stops the client's tracker.
func (u *TrackingUsecase) Untrack(clientID string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	ct, ok := u.trackers[clientID]
	if !ok {
		return false
	}
	ct.cancel()
	ct.job.Stop()
	delete(u.trackers, clientID)
	u.metrics.TrackerStopped()
	return true
}

// Shutdown stops every tracker and waits for the poll loops to exit.
func (u *TrackingUsecase) Shutdown(ctx context.Context) {
	u.mu.Lock()
	u.closed = true
	running := make([]*clientTracker, 0, len(u.trackers))
	for id, ct := range u.trackers {
		ct.cancel()
		ct.job.Stop()
		running = append(running, ct)
		delete(u.trackers, id)
		u.metrics.TrackerStopped()
	}
	u.mu.Unlock()

	for _, ct := range running {
		select {
		case <-ct.job.Done():
		case <-ctx.Done():
			return
		}
	}
}
