package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is the shared core for domain repositories. It holds the connection
// handle; repositories clone themselves around it when joining a transaction.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB hands back the handle scoped to ctx so cancellation propagates into
// queries. A nil ctx returns the raw handle.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}
