package option

import (
	"time"

	"github.com/smallbiznis/prooflink/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type optionFunc func(*gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

func WithLimit(limit int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

func WithOrder(order string) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if order == "" {
			return db
		}
		return db.Order(order)
	})
}

// ApplyPagination decodes a cursor token and applies keyset paging.
// One extra row is fetched so callers can detect a next page.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if page.PageToken != "" {
			cursor, err := pagination.DecodeCursor(page.PageToken)
			if err == nil && cursor != nil && cursor.CreatedAt != "" && cursor.ID != "" {
				if createdAt, parseErr := time.Parse(time.RFC3339, cursor.CreatedAt); parseErr == nil {
					db = db.Where("(created_at, id) < (?, ?)", createdAt, cursor.ID)
				}
			}
		}
		size := page.PageSize
		if size <= 0 {
			size = 10
		}
		return db.Limit(size + 1)
	})
}
