package core

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Schema is the ordered list of column names declared by a file header.
// Duplicate names are preserved as declared.
type Schema []string

// Columns returns the distinct column names in first-occurrence order.
func (s Schema) Columns() []string {
	seen := make(map[string]struct{}, len(s))
	cols := make([]string, 0, len(s))
	for _, name := range s {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		cols = append(cols, name)
	}
	return cols
}

// Has reports whether name is one of the schema's columns.
func (s Schema) Has(name string) bool {
	return slices.Contains(s, name)
}

// Record is one data row keyed by column name. Values are kept as strings.
type Record map[string]string

// RecordCollection is an ordered sequence of records sharing one schema.
// A collection handed to the Store is never mutated; query functions
// return new collections.
type RecordCollection struct {
	Schema  Schema
	Records []Record
}

// Len returns the number of records.
func (c RecordCollection) Len() int {
	return len(c.Records)
}

// derive returns a collection with the same schema and the given records.
func (c RecordCollection) derive(records []Record) RecordCollection {
	return RecordCollection{Schema: c.Schema, Records: records}
}

// Validate checks that every record's key set equals the schema's columns.
func (c RecordCollection) Validate() error {
	cols := c.Schema.Columns()
	for i, rec := range c.Records {
		if len(rec) != len(cols) {
			return fmt.Errorf("%w: record %d has %d fields, schema has %d",
				ErrSchemaMismatch, i, len(rec), len(cols))
		}
		for _, col := range cols {
			if _, ok := rec[col]; !ok {
				return fmt.Errorf("%w: record %d is missing column %q", ErrSchemaMismatch, i, col)
			}
		}
	}
	return nil
}

// Row returns the record's values in schema column order.
func (c RecordCollection) Row(i int) []string {
	cols := c.Schema.Columns()
	row := make([]string, len(cols))
	for j, col := range cols {
		row[j] = c.Records[i][col]
	}
	return row
}

// SortDirection is the direction of an active sort.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection maps "desc" (any case) to SortDesc and anything else to SortAsc.
func ParseSortDirection(s string) SortDirection {
	if strings.EqualFold(strings.TrimSpace(s), "desc") {
		return SortDesc
	}
	return SortAsc
}

// Opposite returns the other direction.
func (d SortDirection) Opposite() SortDirection {
	if d == SortDesc {
		return SortAsc
	}
	return SortDesc
}

// SortSpec names the column to sort by and the direction.
// The zero value means no active sort.
type SortSpec struct {
	Key       string
	Direction SortDirection
}

// IsZero reports whether no sort is active.
func (s SortSpec) IsZero() bool {
	return s.Key == ""
}

// ValueSet is a set of selected cell values.
type ValueSet map[string]struct{}

// NewValueSet builds a set from values.
func NewValueSet(values ...string) ValueSet {
	set := make(ValueSet, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// Contains reports whether v is selected.
func (s ValueSet) Contains(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the selected values in lexical order.
func (s ValueSet) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// FilterSpec maps a column name to its selected values.
// An absent or empty set lets every record through for that column.
type FilterSpec map[string]ValueSet

// Active returns the filter with empty sets dropped.
func (f FilterSpec) Active() FilterSpec {
	active := make(FilterSpec, len(f))
	for col, set := range f {
		if len(set) > 0 {
			active[col] = set
		}
	}
	return active
}

// Toggle returns a copy of f with value added to or removed from column's set.
func (f FilterSpec) Toggle(column, value string) FilterSpec {
	next := make(FilterSpec, len(f)+1)
	for col, set := range f {
		next[col] = maps.Clone(set)
	}
	set := next[column]
	if set == nil {
		set = make(ValueSet)
	}
	if set.Contains(value) {
		delete(set, value)
	} else {
		set[value] = struct{}{}
	}
	if len(set) == 0 {
		delete(next, column)
	} else {
		next[column] = set
	}
	return next
}

// QueryState is the search, sort and filter selection for one render.
// Transitions return new values and leave the receiver unchanged.
type QueryState struct {
	Search  string
	Sort    SortSpec
	Filters FilterSpec
}

// ToggleSort returns the state with the sort toggled on key.
func (q QueryState) ToggleSort(key string) QueryState {
	q.Sort = ToggleSort(q.Sort, key)
	return q
}

// ToggleFilterValue returns the state with value toggled in column's filter.
func (q QueryState) ToggleFilterValue(column, value string) QueryState {
	q.Filters = q.Filters.Toggle(column, value)
	return q
}

// WithSearch returns the state with the search term replaced.
func (q QueryState) WithSearch(term string) QueryState {
	q.Search = term
	return q
}

// Reset returns the empty state.
func (q QueryState) Reset() QueryState {
	return QueryState{}
}

// Snapshot is what the Store holds: the active collection and where it came from.
type Snapshot struct {
	Collection RecordCollection
	ImportID   string
	Source     string
	ImportedAt time.Time
}

// ImportResult summarizes a completed import.
type ImportResult struct {
	ImportID string
	Source   string
	Columns  []string
	Rows     int
	Duration time.Duration
}

// QueryResult is a computed view plus the counts needed for display.
type QueryResult struct {
	Collection RecordCollection
	Total      int // records in the store
	Shown      int // records in the view
}
