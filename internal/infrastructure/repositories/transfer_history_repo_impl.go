package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"oft-bridge.backend/internal/domain/entities"
	domainerrors "oft-bridge.backend/internal/domain/errors"
	domainRepos "oft-bridge.backend/internal/domain/repositories"
	"oft-bridge.backend/internal/infrastructure/models"
	"oft-bridge.backend/pkg/utils"
)

// TransferHistoryRepository implements capped per-client transfer history.
type TransferHistoryRepository struct {
	db  *gorm.DB
	uow domainRepos.UnitOfWork
}

// NewTransferHistoryRepository creates a new transfer history repository
func NewTransferHistoryRepository(db *gorm.DB) *TransferHistoryRepository {
	return &TransferHistoryRepository{db: db, uow: NewUnitOfWork(db)}
}

// Append inserts record and deletes everything older than the newest
// entities.HistoryLimit rows of the same client.
func (r *TransferHistoryRepository) Append(ctx context.Context, record *entities.TransferRecord) error {
	if record.ID == uuid.Nil {
		record.ID = utils.NewRecordID()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	record.TxHash = strings.ToLower(record.TxHash)

	return r.uow.Do(ctx, func(ctx context.Context) error {
		db := GetDB(ctx, r.db)
		if err := db.Create(toTransferModel(record)).Error; err != nil {
			return err
		}

		var keep []string
		if err := db.Model(&models.TransferRecord{}).
			Where("client_id = ?", record.ClientID).
			Order("created_at DESC").
			Order("id DESC").
			Limit(entities.HistoryLimit).
			Pluck("id", &keep).Error; err != nil {
			return err
		}
		return db.Where("client_id = ? AND id NOT IN ?", record.ClientID, keep).
			Delete(&models.TransferRecord{}).Error
	})
}

// ListByClient returns the newest records first.
func (r *TransferHistoryRepository) ListByClient(ctx context.Context, clientID string, limit int) ([]*entities.TransferRecord, error) {
	if limit <= 0 || limit > entities.HistoryLimit {
		limit = entities.HistoryLimit
	}
	var ms []models.TransferRecord
	if err := GetDB(ctx, r.db).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}

	records := make([]*entities.TransferRecord, 0, len(ms))
	for i := range ms {
		records = append(records, toTransferEntity(&ms[i]))
	}
	return records, nil
}

// GetByTxHash gets a record by its source transaction hash
func (r *TransferHistoryRepository) GetByTxHash(ctx context.Context, txHash string) (*entities.TransferRecord, error) {
	var m models.TransferRecord
	if err := GetDB(ctx, r.db).Where("tx_hash = ?", strings.ToLower(txHash)).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toTransferEntity(&m), nil
}

// UpdateStatus sets status and, when valid, stage. A pruned record is not an error.
func (r *TransferHistoryRepository) UpdateStatus(ctx context.Context, txHash, status string, stage null.String) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if stage.Valid {
		updates["stage"] = stage.String
	}
	return GetDB(ctx, r.db).Model(&models.TransferRecord{}).
		Where("tx_hash = ?", strings.ToLower(txHash)).
		Updates(updates).Error
}

func toTransferModel(e *entities.TransferRecord) *models.TransferRecord {
	m := &models.TransferRecord{
		ID:            e.ID,
		ClientID:      e.ClientID,
		SourceNetwork: e.SourceNetwork,
		DestNetwork:   e.DestNetwork,
		TokenID:       e.TokenID,
		Amount:        e.Amount,
		Receiver:      e.Receiver,
		TxHash:        e.TxHash,
		Status:        e.Status,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
	if e.Stage.Valid {
		stage := e.Stage.String
		m.Stage = &stage
	}
	return m
}

func toTransferEntity(m *models.TransferRecord) *entities.TransferRecord {
	return &entities.TransferRecord{
		ID:            m.ID,
		ClientID:      m.ClientID,
		SourceNetwork: m.SourceNetwork,
		DestNetwork:   m.DestNetwork,
		TokenID:       m.TokenID,
		Amount:        m.Amount,
		Receiver:      m.Receiver,
		TxHash:        m.TxHash,
		Status:        m.Status,
		Stage:         null.StringFromPtr(m.Stage),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
