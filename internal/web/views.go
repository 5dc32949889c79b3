package web

//go:generate templ generate

import (
	"fmt"
	"maps"
	"slices"

	"github.com/JonMunkholm/finboard/internal/core"
)

// dashboardData is everything the table page renders.
type dashboardData struct {
	State    core.QueryState
	Result   core.QueryResult
	Columns  []string
	Facets   []facet
	Snapshot core.Snapshot
	HasData  bool
	Notice   core.Notification
	Format   core.CellFormatter
}

// facet is the value picker for one filter column.
type facet struct {
	Column string
	Values []facetValue
}

type facetValue struct {
	Value    string
	Selected bool
	Link     string
}

type hiddenField struct {
	Name  string
	Value string
}

// hiddenFilters carries the active filters through the search form, in a
// stable order.
func hiddenFilters(state core.QueryState) []hiddenField {
	active := state.Filters.Active()
	var out []hiddenField
	for _, col := range slices.Sorted(maps.Keys(active)) {
		for _, v := range active[col].Sorted() {
			out = append(out, hiddenField{Name: "filter[" + col + "]", Value: v})
		}
	}
	return out
}

func sortMarker(state core.QueryState, col string) string {
	switch {
	case state.Sort.Key != col:
		return ""
	case state.Sort.Direction == core.SortDesc:
		return " ↓"
	default:
		return " ↑"
	}
}

func exportURL(state core.QueryState) string {
	if enc := encodeQueryState(state); enc != "" {
		return "/api/export?" + enc
	}
	return "/api/export"
}

func shownText(r core.QueryResult) string {
	return fmt.Sprintf("Affichage de %d sur %d transactions", r.Shown, r.Total)
}

func importedText(snap core.Snapshot) string {
	return fmt.Sprintf("%s, importé le %s", snap.Source, snap.ImportedAt.Format("02/01/2006 15:04"))
}
