package web

import (
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/JonMunkholm/finboard/internal/core"
)

// parseQueryState reads the view selection from the URL:
//
//	search=loyer&sort=amount&dir=desc&filter[type]=Besoins&filter[type]=Urgences
//
// An unknown dir means ascending. Empty filter values are ignored.
func parseQueryState(r *http.Request) core.QueryState {
	q := r.URL.Query()

	state := core.QueryState{Search: q.Get("search")}
	if key := strings.TrimSpace(q.Get("sort")); key != "" {
		state.Sort = core.SortSpec{Key: key, Direction: core.ParseSortDirection(q.Get("dir"))}
	}

	for key, values := range q {
		col, ok := filterColumn(key)
		if !ok {
			continue
		}
		for _, v := range values {
			if v == "" {
				continue
			}
			if state.Filters == nil {
				state.Filters = make(core.FilterSpec)
			}
			if state.Filters[col] == nil {
				state.Filters[col] = make(core.ValueSet)
			}
			state.Filters[col][v] = struct{}{}
		}
	}
	return state
}

// filterColumn extracts col from "filter[col]".
func filterColumn(key string) (string, bool) {
	inner, ok := strings.CutPrefix(key, "filter[")
	if !ok {
		return "", false
	}
	col, ok := strings.CutSuffix(inner, "]")
	if !ok || col == "" {
		return "", false
	}
	return col, true
}

// encodeQueryState is the inverse of parseQueryState. Filter columns and
// values are emitted in sorted order so links are stable.
func encodeQueryState(state core.QueryState) string {
	v := url.Values{}
	if state.Search != "" {
		v.Set("search", state.Search)
	}
	if !state.Sort.IsZero() {
		v.Set("sort", state.Sort.Key)
		v.Set("dir", string(state.Sort.Direction))
	}
	active := state.Filters.Active()
	cols := make([]string, 0, len(active))
	for col := range active {
		cols = append(cols, col)
	}
	slices.Sort(cols)
	for _, col := range cols {
		for _, val := range active[col].Sorted() {
			v.Add("filter["+col+"]", val)
		}
	}
	return v.Encode()
}

// viewURL returns the dashboard URL for state.
func viewURL(state core.QueryState) string {
	if enc := encodeQueryState(state); enc != "" {
		return "/?" + enc
	}
	return "/"
}
