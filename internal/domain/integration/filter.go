package integration

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// SearchFilter narrows the catalog. Every populated criterion must hold;
// an empty filter matches everything.
type SearchFilter struct {
	Categories   []Category   `json:"categories,omitempty"`
	Statuses     []Status     `json:"statuses,omitempty"`
	Capabilities []Capability `json:"capabilities,omitempty"`
	Search       string       `json:"search,omitempty"`
	// MatchBusinessSize restricts results to integrations supporting the
	// current business size. Ignored when no business is in context.
	MatchBusinessSize bool `json:"match_business_size,omitempty"`
}

// IsEmpty reports whether the filter has no criteria
func (f SearchFilter) IsEmpty() bool {
	return len(f.Categories) == 0 && len(f.Statuses) == 0 && len(f.Capabilities) == 0 &&
		strings.TrimSpace(f.Search) == "" && !f.MatchBusinessSize
}

// Matcher evaluates a SearchFilter. It is not safe for concurrent use.
type Matcher struct {
	filter SearchFilter
	ctx    *Context
	fold   cases.Caser
	query  string
}

// NewMatcher prepares filter for evaluation against ctx
func (f SearchFilter) NewMatcher(ctx *Context) *Matcher {
	m := &Matcher{filter: f, ctx: ctx, fold: cases.Fold()}
	if q := strings.TrimSpace(f.Search); q != "" {
		m.query = m.fold.String(q)
	}
	return m
}

// Match reports whether in satisfies every criterion
func (m *Matcher) Match(in *Integration) bool {
	f := m.filter
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, in.Category) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, in.Status) {
		return false
	}
	if len(f.Capabilities) > 0 && !slices.ContainsFunc(f.Capabilities, in.HasCapability) {
		return false
	}
	if m.query != "" && !m.containsQuery(in.Name, in.DisplayName, in.Description, in.Provider) {
		return false
	}
	if f.MatchBusinessSize && m.ctx != nil && m.ctx.Business != nil && m.ctx.Business.Size != "" {
		if !in.SupportsBusinessSize(m.ctx.Business.Size) {
			return false
		}
	}
	return true
}

func (m *Matcher) containsQuery(fields ...string) bool {
	for _, field := range fields {
		if strings.Contains(m.fold.String(field), m.query) {
			return true
		}
	}
	return false
}
