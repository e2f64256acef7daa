package reference

import (
	"strings"
)

const (
	// OtherLabel is returned for tickers the table does not know.
	OtherLabel = "Other"
	// MaxSuggestions caps autocomplete results.
	MaxSuggestions = 10
)

// Resolver maps tickers to industry and sector labels. A resolver built from
// a nil table answers OtherLabel for everything.
type Resolver struct {
	table *Table
}

func NewResolver(table *Table) *Resolver {
	if table == nil {
		table = NewTable(nil)
	}
	return &Resolver{table: table}
}

func (r *Resolver) Len() int {
	if r == nil {
		return 0
	}
	return r.table.Len()
}

// Lookup is an exact, case-insensitive match.
func (r *Resolver) Lookup(ticker string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	return r.table.Get(ticker)
}

// Resolve returns the industry label of ticker, or OtherLabel.
func (r *Resolver) Resolve(ticker string) string {
	e, ok := r.Lookup(ticker)
	if !ok {
		return OtherLabel
	}
	if e.Industry != "" {
		return e.Industry
	}
	if e.Sector != "" {
		return e.Sector
	}
	return OtherLabel
}

// Sector reports the sector of a mapped ticker.
func (r *Resolver) Sector(ticker string) (string, bool) {
	e, ok := r.Lookup(ticker)
	if !ok || e.Sector == "" {
		return "", false
	}
	return e.Sector, true
}

// Suggest returns up to MaxSuggestions symbols starting with prefix.
func (r *Resolver) Suggest(prefix string) []string {
	prefix = normalize(prefix)
	out := []string{}
	if r == nil || prefix == "" {
		return out
	}
	for _, e := range r.table.entries {
		if strings.HasPrefix(e.Symbol, prefix) {
			out = append(out, e.Symbol)
			if len(out) == MaxSuggestions {
				break
			}
		}
	}
	return out
}

func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '.' || r == '-' || r == '&' || r == '_' || r == ' ' {
			return -1
		}
		return r
	}, s)
}

// ClosestMatch corrects a typed ticker. An exact entry wins; otherwise the
// first entry in table order that contains the input, or is contained by it,
// is returned. Punctuation is ignored in the containment test.
func (r *Resolver) ClosestMatch(input string) (string, bool) {
	input = normalize(input)
	if r == nil || input == "" {
		return "", false
	}
	if _, ok := r.table.Get(input); ok {
		return input, true
	}

	stripped := stripPunctuation(input)
	for _, e := range r.table.entries {
		sym := e.Symbol
		if strings.Contains(sym, input) || strings.Contains(input, sym) {
			return sym, true
		}
		s := stripPunctuation(sym)
		if s == "" || stripped == "" {
			continue
		}
		if strings.Contains(s, stripped) || strings.Contains(stripped, s) {
			return sym, true
		}
	}
	return "", false
}
