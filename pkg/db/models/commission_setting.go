package models

import (
	"time"
)

// CommissionSetting is the versioned platform commission rate. Rows are
// append-only; every operation reads the latest version once and stamps it
// onto the derived record, so later rate changes never apply retroactively.
type CommissionSetting struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	RateBps   int       `gorm:"column:rate_bps;not null"`
	Version   int       `gorm:"column:version;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
