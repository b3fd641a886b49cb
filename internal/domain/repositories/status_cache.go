package repositories

import (
	"context"

	"oft-bridge.backend/internal/domain/entities"
)

// StatusCache holds the published status per source transaction hash.
type StatusCache interface {
	Get(ctx context.Context, txHash string) (*entities.TransferStatus, error)
	// Save merges status into the cached value by stage rank and returns
	// what is stored afterwards.
	Save(ctx context.Context, status entities.TransferStatus) (entities.TransferStatus, error)
}
