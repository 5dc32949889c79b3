package core

// query.go computes display views over a RecordCollection.
//
// Every function here is pure: the input collection is never modified and
// the result shares Record values with it. View applies the fixed
// composition filter -> search -> sort.

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// ApplySearch keeps records where any value contains term, ignoring case.
// An empty term returns c unchanged.
func ApplySearch(c RecordCollection, term string) RecordCollection {
	if term == "" {
		return c
	}
	needle := strings.ToLower(term)

	out := make([]Record, 0, len(c.Records))
	for _, rec := range c.Records {
		if recordContains(rec, needle) {
			out = append(out, rec)
		}
	}
	return c.derive(out)
}

func recordContains(rec Record, needle string) bool {
	for _, v := range rec {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

// ApplySort orders records by the value at spec.Key.
//
// Two values that both parse as decimal numbers compare numerically;
// otherwise they compare as strings. Ascending order is stable. Descending
// order is the exact reverse of ascending order, so sorting an ascending
// result descending inverts it row for row. A zero spec returns c unchanged.
func ApplySort(c RecordCollection, spec SortSpec) RecordCollection {
	if spec.IsZero() {
		return c
	}

	keys := make([]sortKey, len(c.Records))
	for i, rec := range c.Records {
		keys[i] = newSortKey(rec[spec.Key])
	}

	idx := make([]int, len(c.Records))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return compareKeys(keys[a], keys[b])
	})
	if spec.Direction == SortDesc {
		slices.Reverse(idx)
	}

	out := make([]Record, len(idx))
	for i, j := range idx {
		out[i] = c.Records[j]
	}
	return c.derive(out)
}

// sortKey caches the numeric reading of a cell so each value is parsed once.
type sortKey struct {
	raw     string
	num     decimal.Decimal
	numeric bool
}

func newSortKey(raw string) sortKey {
	k := sortKey{raw: raw}
	k.num, k.numeric = parseNumber(raw)
	return k
}

// maxExponent bounds the decimal exponent of a numeric cell. Comparing or
// rounding a decimal rescales it to its exponent, so "1e400000000" would
// expand into hundreds of millions of digits.
const maxExponent = 64

// parseNumber reads raw as a decimal number. Values whose exponent falls
// outside ±maxExponent are treated as text.
func parseNumber(raw string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, false
	}
	if exp := d.Exponent(); exp > maxExponent || exp < -maxExponent {
		return decimal.Decimal{}, false
	}
	return d, true
}

// compareKeys is the natural ordering of two cell values.
func compareKeys(a, b sortKey) int {
	if a.numeric && b.numeric {
		return a.num.Cmp(b.num)
	}
	return strings.Compare(a.raw, b.raw)
}

// ToggleSort returns the next sort after the user selects key: the active
// key flips direction, any other key starts ascending.
func ToggleSort(current SortSpec, key string) SortSpec {
	if current.Key == key {
		return SortSpec{Key: key, Direction: current.Direction.Opposite()}
	}
	return SortSpec{Key: key, Direction: SortAsc}
}

// ApplyFilter keeps records whose value is selected in every active column
// filter. Columns with no selected values do not filter.
func ApplyFilter(c RecordCollection, spec FilterSpec) RecordCollection {
	active := spec.Active()
	if len(active) == 0 {
		return c
	}

	out := make([]Record, 0, len(c.Records))
	for _, rec := range c.Records {
		if matchesFilters(rec, active) {
			out = append(out, rec)
		}
	}
	return c.derive(out)
}

func matchesFilters(rec Record, active FilterSpec) bool {
	for col, set := range active {
		if !set.Contains(rec[col]) {
			return false
		}
	}
	return true
}

// UniqueValues returns the distinct values at key in first-seen order.
func UniqueValues(c RecordCollection, key string) []string {
	seen := make(ValueSet)
	var values []string
	for _, rec := range c.Records {
		v, ok := rec[key]
		if !ok || seen.Contains(v) {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	return values
}

// View applies q to c in the fixed order filter, search, sort.
func View(c RecordCollection, q QueryState) RecordCollection {
	return ApplySort(ApplySearch(ApplyFilter(c, q.Filters), q.Search), q.Sort)
}

// Evaluate computes the view of c for q together with its counts.
func Evaluate(c RecordCollection, q QueryState) QueryResult {
	view := View(c, q)
	return QueryResult{
		Collection: view,
		Total:      c.Len(),
		Shown:      view.Len(),
	}
}
