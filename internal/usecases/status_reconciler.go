package usecases

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"oft-bridge.backend/internal/domain/entities"
	"oft-bridge.backend/pkg/logger"
	"oft-bridge.backend/pkg/metrics"
)

const defaultSourceTimeout = 15 * time.Second

// StatusReconciler fans out to every source and folds the answers with the
// rank merge.
type StatusReconciler struct {
	sources []StatusSource
	timeout time.Duration
	metrics *metrics.TrackingMetrics
}

func NewStatusReconciler(timeout time.Duration, sources ...StatusSource) *StatusReconciler {
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}
	return &StatusReconciler{
		sources: sources,
		timeout: timeout,
		metrics: metrics.NewTrackingMetrics(),
	}
}

// Merge is the published-status reducer.
func (r *StatusReconciler) Merge(prev, next entities.TransferStatus) entities.TransferStatus {
	return entities.MergeStatus(prev, next)
}

// Poll queries all sources concurrently. Failed sources are logged and left
// out; ok is false when no source answered.
func (r *StatusReconciler) Poll(ctx context.Context, req TrackRequest) (entities.TransferStatus, bool) {
	type sourceResult struct {
		status *entities.TransferStatus
		err    error
	}
	results := make([]sourceResult, len(r.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, source := range r.sources {
		i, source := i, source
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, r.timeout)
			defer cancel()

			start := time.Now()
			status, err := source.Fetch(fetchCtx, req)
			results[i] = sourceResult{status: status, err: err}

			outcome := "success"
			switch {
			case errors.Is(err, errSourceSkipped):
				outcome = "skipped"
			case err != nil:
				outcome = "error"
				logger.Debug(ctx, "status source failed",
					zap.String("source", source.Name()), zap.Error(err))
			}
			r.metrics.RecordFetch(source.Name(), outcome, time.Since(start))
			return nil
		})
	}
	_ = g.Wait()

	merged := entities.NewTransferStatus(req.TxHash)
	ok := false
	for _, res := range results {
		if res.err != nil || res.status == nil {
			continue
		}
		ok = true
		merged = r.Merge(merged, *res.status)
	}
	return merged, ok
}
