package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ITDevS919/marketplace-backend/pkg/enums"
)

// PointsTransaction is an append-only record of a points movement. Rows are
// never updated or deleted.
type PointsTransaction struct {
	ID           uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID                   `gorm:"column:user_id;type:uuid;not null;index"`
	OrderGroupID *uuid.UUID                  `gorm:"column:order_group_id;type:uuid"`
	Kind         enums.PointsTransactionKind `gorm:"column:kind;type:text;not null"`
	Amount       int                         `gorm:"column:amount;not null"`
	CreatedAt    time.Time                   `gorm:"column:created_at;autoCreateTime"`
}
