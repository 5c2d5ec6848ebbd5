// Package recommend proposes cross-sell candidates for a product.
//
// The engine is a pure function of its cross-sell table and the caller's
// purchase-intent score. It never mutates order state; candidates only
// become items through an explicit user action.
package recommend

import "sort"

// Candidate is one cross-sell proposal. Lower Priority ranks first.
type Candidate struct {
	ProductID string
	Name      string
	Reason    string
	Priority  int
}

// Engine selects candidates from a static cross-sell table.
type Engine struct {
	table         map[string][]Candidate
	maxResults    int
	highIntent    float64
	highIntentTop int
}

// New creates an engine over the given table. maxResults bounds every
// result; scores above highIntentThreshold narrow the result to the top
// two candidates by priority.
func New(table map[string][]Candidate, maxResults int, highIntentThreshold float64) *Engine {
	if maxResults <= 0 {
		maxResults = 4
	}
	return &Engine{
		table:         table,
		maxResults:    maxResults,
		highIntent:    highIntentThreshold,
		highIntentTop: 2,
	}
}

// For returns the priority-ordered candidates for a product. A high
// intent score produces a narrower, more decisive list.
func (e *Engine) For(productID string, intentScore float64) []Candidate {
	candidates, ok := e.table[productID]
	if !ok || len(candidates) == 0 {
		return nil
	}

	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })

	limit := e.maxResults
	if intentScore > e.highIntent && e.highIntentTop < limit {
		limit = e.highIntentTop
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
