package web

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/finboard/internal/core"
	"github.com/JonMunkholm/finboard/internal/logging"
)

// multipartOverhead allows for boundaries and headers around the file part.
const multipartOverhead = 1 << 20

// ============================================================================
// Pages
// ============================================================================

// handleDashboard renders the table view for the URL's query state.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.renderDashboard(w, r, http.StatusOK, core.Notification{})
}

// handleDashboardImport imports the posted file and re-renders the table
// with the outcome as a notification.
func (s *Server) handleDashboardImport(w http.ResponseWriter, r *http.Request) {
	out, err := s.receiveImport(w, r)
	if err != nil {
		s.renderDashboard(w, r, statusFor(err), core.Notify(err))
		return
	}
	status := http.StatusOK
	if out.Err != nil {
		status = statusFor(out.Err)
	}
	s.renderDashboard(w, r, status, out.Notification)
}

func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, status int, notice core.Notification) {
	snap, ok := s.service.Snapshot()
	data := s.dashboard(snap, ok, parseQueryState(r), notice)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := dashboardPage(data).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render dashboard", "error", err)
	}
}

// dashboard derives everything the page shows from the one snapshot, so an
// import committing mid-render cannot mix two collections.
func (s *Server) dashboard(snap core.Snapshot, ok bool, state core.QueryState, notice core.Notification) dashboardData {
	data := dashboardData{
		State:    state,
		Snapshot: snap,
		HasData:  ok,
		Notice:   notice,
		Format:   s.formatter,
	}
	if ok {
		data.Result = core.Evaluate(snap.Collection, state)
		data.Columns = snap.Collection.Schema.Columns()
		data.Facets = s.facets(state, snap.Collection)
	}
	return data
}

// facets builds the value pickers for the configured filter columns that
// exist in c.
func (s *Server) facets(state core.QueryState, c core.RecordCollection) []facet {
	var out []facet
	for _, col := range s.cfg.Display.FilterColumns {
		if !c.Schema.Has(col) {
			continue
		}
		f := facet{Column: col}
		selected := state.Filters[col]
		for _, v := range core.UniqueValues(c, col) {
			f.Values = append(f.Values, facetValue{
				Value:    v,
				Selected: selected.Contains(v),
				Link:     viewURL(state.ToggleFilterValue(col, v)),
			})
		}
		out = append(out, f)
	}
	return out
}

// ============================================================================
// Import
// ============================================================================

type importResponse struct {
	ImportID     string            `json:"import_id"`
	Source       string            `json:"source"`
	Rows         int               `json:"rows"`
	Columns      []string          `json:"columns"`
	DurationMS   int64             `json:"duration_ms"`
	Notification core.Notification `json:"notification"`
}

// handleImport imports the multipart "file" field.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	out, err := s.receiveImport(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if out.Err != nil {
		respondError(w, r, out.Err, statusFor(out.Err))
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		notificationAlert(out.Notification).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{
		ImportID:     out.Result.ImportID,
		Source:       out.Result.Source,
		Rows:         out.Result.Rows,
		Columns:      out.Result.Columns,
		DurationMS:   out.Result.Duration.Milliseconds(),
		Notification: out.Notification,
	})
}

// receiveImport reads the uploaded file and waits for its import outcome.
// The returned error covers request problems that happen before the import
// starts; import failures are reported in the outcome.
func (s *Server) receiveImport(w http.ResponseWriter, r *http.Request) (core.ImportOutcome, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return core.ImportOutcome{}, fmt.Errorf("%w: %w", core.ErrRead, err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return core.ImportOutcome{}, fmt.Errorf("%w: no file provided", core.ErrInvalidFormat)
	}
	defer file.Close()

	src := core.Source{
		Name:      header.Filename,
		MediaType: header.Header.Get("Content-Type"),
		Reader:    file,
		Size:      header.Size,
	}
	return <-s.service.ImportAsync(withRequestMetadata(r.Context(), r), src), nil
}

// ============================================================================
// Query API
// ============================================================================

type recordsResponse struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Total   int        `json:"total"`
	Shown   int        `json:"shown"`
}

// handleRecords returns the current view as rows aligned with columns.
// format=display applies the cell formatter.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	res := s.service.Query(parseQueryState(r))
	view := res.Collection
	if r.URL.Query().Get("format") == "display" {
		view = s.formatter.Apply(view)
	}

	rows := make([][]string, view.Len())
	for i := range rows {
		rows[i] = view.Row(i)
	}
	cols := view.Schema.Columns()
	if cols == nil {
		cols = []string{}
	}
	writeJSON(w, http.StatusOK, recordsResponse{
		Columns: cols,
		Rows:    rows,
		Total:   res.Total,
		Shown:   res.Shown,
	})
}

// handleColumnValues lists the distinct values of a column.
func (s *Server) handleColumnValues(w http.ResponseWriter, r *http.Request) {
	column := chi.URLParam(r, "column")
	coll, ok := s.service.Store().Current()
	if !ok || !coll.Schema.Has(column) {
		respondError(w, r, fmt.Errorf("column %q: %w", column, core.ErrNotFound), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"column": column,
		"values": core.UniqueValues(coll, column),
	})
}

// handleExport downloads the current view as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	res := s.service.Query(parseQueryState(r))

	filename := fmt.Sprintf("finboard_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if _, err := io.Copy(w, strings.NewReader(core.EncodeCSV(res.Collection))); err != nil {
		logging.FromContext(r.Context()).Warn("export interrupted", "error", err)
	}
}

type statusResponse struct {
	Loaded     bool      `json:"loaded"`
	ImportID   string    `json:"import_id,omitempty"`
	Source     string    `json:"source,omitempty"`
	ImportedAt time.Time `json:"imported_at,omitzero"`
	Columns    []string  `json:"columns"`
	Rows       int       `json:"rows"`
}

// handleStatus describes the active snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.service.Snapshot()
	resp := statusResponse{Loaded: ok, Columns: []string{}}
	if ok {
		resp.ImportID = snap.ImportID
		resp.Source = snap.Source
		resp.ImportedAt = snap.ImportedAt
		resp.Columns = snap.Collection.Schema.Columns()
		resp.Rows = snap.Collection.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}
