package query

import (
	"github.com/huandu/go-sqlbuilder"
)

// ContentColumns is the column list every content select returns, in scan order
var ContentColumns = []string{
	"content_items.id",
	"content_items.title",
	"content_items.summary",
	"content_items.source_reference",
	"content_items.sectors",
	"content_items.created_at",
}

// FeedQueryBuilder builds recency ordered content queries
type FeedQueryBuilder struct {
	filters []FilterStrategy
}

func NewFeedQueryBuilder() *FeedQueryBuilder {
	return &FeedQueryBuilder{
		filters: make([]FilterStrategy, 0),
	}
}

func (b *FeedQueryBuilder) AddFilter(filter FilterStrategy) *FeedQueryBuilder {
	b.filters = append(b.filters, filter)
	return b
}

// Build returns the newest items first, at most limit rows. Filters added to
// the builder are combined with AND.
func (b *FeedQueryBuilder) Build(limit int) (string, []interface{}) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(ContentColumns...).From("content_items")

	for _, filter := range b.filters {
		if cond := filter.Condition(sb); cond != "" {
			sb.Where(cond)
		}
	}

	sb.OrderBy("content_items.id").Desc()
	sb.Limit(limit)

	return sb.Build()
}

var _ Builder = (*FeedQueryBuilder)(nil)
