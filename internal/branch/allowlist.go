// =============================================================================
// Branch Sales Aggregator - Branch Filter
// =============================================================================
//
// An AllowList is the fixed set of branches whose sales appear in a report.
// It is built once from configuration and never changes afterwards, so one
// list can be shared by every concurrent analysis.
//
// MATCHING:
//   Shop cells and list entries are compared after trimming surrounding
//   whitespace and applying Unicode case folding. "Awaisia " matches
//   "AWAISIA". Internal whitespace is significant, and there is no partial
//   matching: "BAHRIA" does not match "BAHRIA TOWN".
//
// =============================================================================

package branch

import (
	"strings"

	"golang.org/x/text/cases"
)

// Normalizer maps a branch name to the key used for comparison.
type Normalizer func(string) string

// Key is the default Normalizer: trimmed and case folded.
func Key(name string) string {
	// Casers hold state and must not be shared between goroutines.
	return cases.Fold().String(strings.TrimSpace(name))
}

// AllowList is an ordered, immutable set of branch names.
type AllowList struct {
	entries   []string
	keys      map[string]struct{}
	normalize Normalizer
}

// Option configures an AllowList.
type Option func(*AllowList)

// WithNormalizer replaces the comparison key function. Use it to collapse
// internal whitespace or map known aliases.
func WithNormalizer(n Normalizer) Option {
	return func(a *AllowList) {
		if n != nil {
			a.normalize = n
		}
	}
}

// NewAllowList builds an allow-list from entries. Blank entries are ignored
// and duplicates (after normalization) keep their first spelling.
func NewAllowList(entries []string, opts ...Option) AllowList {
	list := AllowList{
		keys:      make(map[string]struct{}, len(entries)),
		normalize: Key,
	}
	for _, opt := range opts {
		opt(&list)
	}

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key := list.normalize(entry)
		if _, exists := list.keys[key]; exists {
			continue
		}
		list.keys[key] = struct{}{}
		list.entries = append(list.entries, entry)
	}

	return list
}

// Allows reports whether shop is on the list.
func (a AllowList) Allows(shop string) bool {
	if len(a.keys) == 0 {
		return false
	}
	_, ok := a.keys[a.Normalize(shop)]
	return ok
}

// Normalize returns the comparison key the list uses for name.
func (a AllowList) Normalize(name string) string {
	if a.normalize == nil {
		return Key(name)
	}
	return a.normalize(name)
}

// Entries returns the configured names in their original order.
func (a AllowList) Entries() []string {
	out := make([]string, len(a.entries))
	copy(out, a.entries)
	return out
}

// Len returns the number of distinct entries.
func (a AllowList) Len() int { return len(a.entries) }
