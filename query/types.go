package query

import (
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

// Builder builds SQL queries for content filtering
type Builder interface {
	Build(limit int) (string, []interface{})
}

// FilterStrategy produces a WHERE expression for a select builder
type FilterStrategy interface {
	// Condition returns the expression, registering its arguments on sb.
	// An empty string means the filter does not constrain anything.
	Condition(sb *sqlbuilder.SelectBuilder) string
}

// Filter is the typed content filter handed to the content store.
// Keywords and Sector are alternatives: an item matches when either applies.
type Filter struct {
	Keywords []string
	Sector   string
}

// IsEmpty reports whether the filter matches every item
func (f Filter) IsEmpty() bool {
	return len(f.Keywords) == 0 && strings.TrimSpace(f.Sector) == ""
}
