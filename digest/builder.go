package digest

import (
	"fmt"
	"regwatch/models"
	"strings"

	"github.com/samber/lo"
)

const DefaultRenderCap = 20

// Digest is the rendered message for one subscriber in one run
type Digest struct {
	Subscriber models.Subscriber
	// Total is the number of matching items before the render cap
	Total   int
	Items   []models.ContentItem
	Subject string
	Body    string
}

// Truncated reports whether matches were left out of the rendered body
func (d *Digest) Truncated() bool {
	return d.Total > len(d.Items)
}

// Builder filters and renders digests
type Builder struct {
	renderCap     int
	subjectPrefix string
}

// BuilderOption configures a Builder
type BuilderOption func(*Builder)

// WithRenderCap limits how many matches a digest body lists
func WithRenderCap(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.renderCap = n
		}
	}
}

// WithSubjectPrefix prepends a tag such as "[regwatch]" to every subject
func WithSubjectPrefix(prefix string) BuilderOption {
	return func(b *Builder) {
		b.subjectPrefix = strings.TrimSpace(prefix)
	}
}

func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{renderCap: DefaultRenderCap}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns nil when nothing in candidates matches sub. Candidate order is
// preserved.
func (b *Builder) Build(sub models.Subscriber, candidates []models.ContentItem) *Digest {
	matched := lo.Filter(candidates, func(item models.ContentItem, _ int) bool {
		return Matches(sub, item)
	})
	if len(matched) == 0 {
		return nil
	}

	rendered := matched
	if len(rendered) > b.renderCap {
		rendered = rendered[:b.renderCap]
	}

	d := &Digest{
		Subscriber: sub,
		Total:      len(matched),
		Items:      rendered,
	}
	d.Subject = b.subject(d.Total)
	d.Body = renderBody(d)
	return d
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func (b *Builder) subject(total int) string {
	subject := fmt.Sprintf("Regulatory digest: %d new matching %s", total, plural(total, "update"))
	if b.subjectPrefix != "" {
		subject = b.subjectPrefix + " " + subject
	}
	return subject
}

func renderBody(d *Digest) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Hello %s,\n\n", d.Subscriber.Email)
	fmt.Fprintf(&sb, "These regulatory updates match your preferences:\n\n")

	for _, item := range d.Items {
		summary := item.Summary
		if summary == "" {
			summary = "(no summary)"
		}
		source := item.SourceReference
		if source == "" {
			source = "no source"
		}
		fmt.Fprintf(&sb, "- %s: %s [%s]\n", item.Title, summary, source)
	}

	if d.Truncated() {
		rest := d.Total - len(d.Items)
		fmt.Fprintf(&sb, "...and %d more matching %s\n", rest, plural(rest, "update"))
	}

	return sb.String()
}
