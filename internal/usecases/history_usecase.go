package usecases

import (
	"context"
	"strings"

	"oft-bridge.backend/internal/domain/entities"
	domainerrors "oft-bridge.backend/internal/domain/errors"
	"oft-bridge.backend/internal/domain/repositories"
)

type HistoryUsecase struct {
	repo repositories.TransferHistoryRepository
}

func NewHistoryUsecase(repo repositories.TransferHistoryRepository) *HistoryUsecase {
	return &HistoryUsecase{repo: repo}
}

// List returns the client's newest transfers first.
func (u *HistoryUsecase) List(ctx context.Context, clientID string) ([]*entities.TransferRecord, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, domainerrors.Validation("clientId is required")
	}
	records, err := u.repo.ListByClient(ctx, clientID, entities.HistoryLimit)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*entities.TransferRecord{}
	}
	return records, nil
}
