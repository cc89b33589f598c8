package option

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/creditledger/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryOptionFunc func(*gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// WithSortBy orders by a column. Column names are restricted to identifiers.
func WithSortBy(column string, direction SortDirection) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		column = strings.TrimSpace(column)
		if !isIdentifier(column) {
			return db
		}
		if direction != Asc {
			direction = Desc
		}
		return db.Order(fmt.Sprintf("%s %s", column, direction))
	})
}

// ApplyPagination applies limit/offset, fetching one extra row for has_more detection.
func ApplyPagination(page pagination.Offset) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Limit(page.Limit + 1).Offset(page.Offset)
	})
}

// WithWhere adds an arbitrary condition.
func WithWhere(query string, args ...any) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
