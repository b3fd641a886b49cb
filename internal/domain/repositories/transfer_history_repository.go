package repositories

import (
	"context"

	"github.com/volatiletech/null/v8"

	"oft-bridge.backend/internal/domain/entities"
)

// TransferHistoryRepository keeps the most recent transfers of each client.
type TransferHistoryRepository interface {
	// Append stores record and prunes the client's history to the newest
	// entities.HistoryLimit entries.
	Append(ctx context.Context, record *entities.TransferRecord) error
	ListByClient(ctx context.Context, clientID string, limit int) ([]*entities.TransferRecord, error)
	GetByTxHash(ctx context.Context, txHash string) (*entities.TransferRecord, error)
	UpdateStatus(ctx context.Context, txHash, status string, stage null.String) error
}
