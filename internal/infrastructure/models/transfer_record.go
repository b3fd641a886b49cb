package models

import (
	"time"

	"github.com/google/uuid"
)

type TransferRecord struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	ClientID      string    `gorm:"type:varchar(128);not null;index:idx_transfer_records_client_created,priority:1"`
	SourceNetwork string    `gorm:"type:varchar(64);not null"`
	DestNetwork   string    `gorm:"type:varchar(64);not null"`
	TokenID       string    `gorm:"type:varchar(64);not null"`
	Amount        string    `gorm:"type:varchar(100);not null"`
	Receiver      string    `gorm:"type:varchar(66);not null"`
	TxHash        string    `gorm:"type:varchar(66);not null;uniqueIndex"`
	Status        string    `gorm:"type:varchar(32);not null;index"`
	Stage         *string   `gorm:"type:varchar(32)"`
	CreatedAt     time.Time `gorm:"index:idx_transfer_records_client_created,priority:2"`
	UpdatedAt     time.Time
}

func (TransferRecord) TableName() string {
	return "transfer_records"
}
