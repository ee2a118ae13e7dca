package query

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"
	"github.com/samber/lo"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns a keyword into a case-insensitive substring pattern
func containsPattern(keyword string) string {
	return "%" + likeEscaper.Replace(keyword) + "%"
}

// KeywordFilter matches items whose title and summary contain any keyword
type KeywordFilter struct {
	Keywords []string
}

func (f *KeywordFilter) Condition(sb *sqlbuilder.SelectBuilder) string {
	keywords := lo.Compact(lo.Map(f.Keywords, func(k string, _ int) string {
		return strings.TrimSpace(k)
	}))
	if len(keywords) == 0 {
		return ""
	}

	patterns := lo.Map(keywords, func(k string, _ int) string {
		return containsPattern(k)
	})
	return fmt.Sprintf("(content_items.title || ' ' || COALESCE(content_items.summary, '')) ILIKE ANY(%s)",
		sb.Args.Add(pq.Array(patterns)))
}

// SectorFilter matches items tagged with the exact sector
type SectorFilter struct {
	Sector string
}

func (f *SectorFilter) Condition(sb *sqlbuilder.SelectBuilder) string {
	if strings.TrimSpace(f.Sector) == "" {
		return ""
	}
	return fmt.Sprintf("%s = ANY(content_items.sectors)", sb.Args.Add(f.Sector))
}

// AnyOf matches when any of its filters match. Filters that do not apply are
// ignored; if none apply the whole filter does not apply.
type AnyOf struct {
	Filters []FilterStrategy
}

func (f *AnyOf) Condition(sb *sqlbuilder.SelectBuilder) string {
	var conds []string
	for _, filter := range f.Filters {
		if cond := filter.Condition(sb); cond != "" {
			conds = append(conds, cond)
		}
	}

	switch len(conds) {
	case 0:
		return ""
	case 1:
		return conds[0]
	default:
		return sb.Or(conds...)
	}
}

// Match builds the strategy for a typed filter
func Match(filter Filter) FilterStrategy {
	return &AnyOf{Filters: []FilterStrategy{
		&KeywordFilter{Keywords: filter.Keywords},
		&SectorFilter{Sector: strings.TrimSpace(filter.Sector)},
	}}
}

var _ FilterStrategy = (*KeywordFilter)(nil)
var _ FilterStrategy = (*SectorFilter)(nil)
var _ FilterStrategy = (*AnyOf)(nil)
