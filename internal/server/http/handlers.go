package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/library"
	"github.com/helixir/paperhub/internal/observability"
	"github.com/helixir/paperhub/internal/plugins"
	"github.com/helixir/paperhub/internal/validation"
)

// Pagination and request limits.
const (
	defaultPageSize    = 50
	maxPageSize        = 500
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

type importRequest struct {
	Identifier string `json:"identifier"`
}

// decodeBody reads a bounded JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if len(body) > maxRequestBodySize {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	return true
}

// decodeQuery reads and validates a UnifiedQuery body.
func decodeQuery(w http.ResponseWriter, r *http.Request) (domain.UnifiedQuery, bool) {
	var q domain.UnifiedQuery
	if !decodeBody(w, r, &q) {
		return q, false
	}
	if err := validation.Struct(q); err != nil {
		writeDomainError(w, err)
		return q, false
	}
	return q, true
}

// listPlugins handles GET /api/v1/plugins.
func (s *Server) listPlugins(w http.ResponseWriter, r *http.Request) {
	infos := s.manager.Info()
	if infos == nil {
		infos = []plugins.PluginInfo{}
	}
	writeJSON(w, http.StatusOK, listPluginsResponse{Plugins: infos, Active: s.manager.ActiveID()})
}

func (s *Server) activatePlugin(w http.ResponseWriter, r *http.Request) {
	s.changePlugin(w, r, s.manager.SetActive)
}

func (s *Server) enablePlugin(w http.ResponseWriter, r *http.Request) {
	s.changePlugin(w, r, s.manager.Enable)
}

func (s *Server) disablePlugin(w http.ResponseWriter, r *http.Request) {
	s.changePlugin(w, r, s.manager.Disable)
}

// changePlugin applies a registry transition and reports the resulting state.
func (s *Server) changePlugin(w http.ResponseWriter, r *http.Request, apply func(string) error) {
	id := chi.URLParam(r, "pluginID")
	if err := apply(id); err != nil {
		writeDomainError(w, err)
		return
	}

	resp := pluginStateResponse{ID: id, Active: s.manager.ActiveID()}
	for _, info := range s.manager.Info() {
		if info.ID == id {
			resp.Enabled = info.Enabled
			break
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// search handles POST /api/v1/search[?plugin=id]. Without a plugin parameter
// the active plugin answers.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q, ok := decodeQuery(w, r)
	if !ok {
		return
	}

	pluginID := strings.TrimSpace(r.URL.Query().Get("plugin"))
	var (
		result *domain.SearchResult
		err    error
	)
	if pluginID == "" {
		result, err = s.manager.Search(r.Context(), q)
	} else {
		r = withPlugin(r, pluginID)
		result, err = s.manager.SearchPlugin(r.Context(), pluginID, q)
	}
	if err != nil {
		s.logFailure(r, err, "search failed")
		writeDomainError(w, err)
		return
	}
	if pluginID == "" && result.Metadata != nil {
		pluginID = result.Metadata[domain.MetaSource]
	}
	writeJSON(w, http.StatusOK, searchResponse{Plugin: pluginID, Result: result})
}

// federatedSearch handles POST /api/v1/search/federated. Per-plugin errors
// are reported in the body; the request itself only fails on bad input.
func (s *Server) federatedSearch(w http.ResponseWriter, r *http.Request) {
	q, ok := decodeQuery(w, r)
	if !ok {
		return
	}
	if q.IsEmpty() {
		writeDomainError(w, domain.NewValidationError("query", "must not be empty"))
		return
	}
	writeJSON(w, http.StatusOK, toFederatedResponse(s.manager.FederatedSearch(r.Context(), q)))
}

// lookup handles GET /api/v1/lookup?identifier=. A miss is 404 with the
// per-plugin attempts in the body.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("identifier"))
	if raw == "" {
		writeDomainError(w, domain.NewValidationError("identifier", "is required"))
		return
	}

	res := s.manager.Lookup(r.Context(), raw)
	status := http.StatusOK
	if res.Paper == nil {
		status = http.StatusNotFound
	}
	writeJSON(w, status, toLookupResponse(res))
}

// pdfSources handles POST /api/v1/pdf-sources with a paper body.
func (s *Server) pdfSources(w http.ResponseWriter, r *http.Request) {
	var paper domain.Paper
	if !decodeBody(w, r, &paper) {
		return
	}
	if paper.Identifiers.IsEmpty() && paper.SourceID == "" {
		writeDomainError(w, domain.ErrNoIdentifier)
		return
	}
	if err := validation.Struct(paper.Identifiers); err != nil {
		writeDomainError(w, err)
		return
	}

	res := s.manager.GetPdfSources(r.Context(), &paper)
	sources := res.Sources
	if sources == nil {
		sources = []domain.PdfSource{}
	}
	writeJSON(w, http.StatusOK, pdfSourcesResponse{Sources: sources, Failures: toFailures(res.Failures)})
}

// bibtex handles GET /api/v1/bibtex?plugin=&id=.
func (s *Server) bibtex(w http.ResponseWriter, r *http.Request) {
	pluginID, id, ok := pluginAndID(w, r, r.URL.Query().Get("plugin"))
	if !ok {
		return
	}
	r = withPlugin(r, pluginID)
	entry, err := s.manager.GetBibtex(r.Context(), pluginID, id)
	if err != nil {
		s.logFailure(r, err, "bibtex export failed")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bibtexResponse{Plugin: pluginID, ID: id, Bibtex: entry})
}

// references handles GET /api/v1/papers/{pluginID}/references?id=&limit=.
func (s *Server) references(w http.ResponseWriter, r *http.Request) {
	s.relatedPapers(w, r, s.manager.GetReferences)
}

// citations handles GET /api/v1/papers/{pluginID}/citations?id=&limit=.
func (s *Server) citations(w http.ResponseWriter, r *http.Request) {
	s.relatedPapers(w, r, s.manager.GetCitations)
}

type relatedFunc func(ctx context.Context, pluginID, id string, opts plugins.ListOptions) ([]*domain.Paper, error)

func (s *Server) relatedPapers(w http.ResponseWriter, r *http.Request, fetch relatedFunc) {
	pluginID, id, ok := pluginAndID(w, r, chi.URLParam(r, "pluginID"))
	if !ok {
		return
	}
	r = withPlugin(r, pluginID)
	limit, _ := parsePaginationParams(r, plugins.DefaultListLimit)

	papers, err := fetch(r.Context(), pluginID, id, plugins.ListOptions{Limit: limit})
	if err != nil {
		s.logFailure(r, err, "related papers failed")
		writeDomainError(w, err)
		return
	}
	if papers == nil {
		papers = []*domain.Paper{}
	}
	writeJSON(w, http.StatusOK, papersResponse{Plugin: pluginID, ID: id, Papers: papers})
}

// listLibrary handles GET /api/v1/library?limit=&offset=.
func (s *Server) listLibrary(w http.ResponseWriter, r *http.Request) {
	if s.library == nil {
		writeError(w, http.StatusServiceUnavailable, "library not configured")
		return
	}
	limit, offset := parsePaginationParams(r, defaultPageSize)
	entries, total, err := s.library.List(r.Context(), library.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logFailure(r, err, "library list failed")
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []*library.Entry{}
	}
	writeJSON(w, http.StatusOK, listLibraryResponse{Entries: entries, TotalCount: total})
}

// importPaper handles POST /api/v1/library/import. A new entry is 201, an
// existing one 200, an unresolvable identifier 404 with the lookup attempts.
func (s *Server) importPaper(w http.ResponseWriter, r *http.Request) {
	if s.library == nil {
		writeError(w, http.StatusServiceUnavailable, "library not configured")
		return
	}
	var req importRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Identifier) == "" {
		writeDomainError(w, domain.NewValidationError("identifier", "is required"))
		return
	}

	res, err := s.library.ImportIdentifier(r.Context(), req.Identifier)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) && res != nil {
			writeJSON(w, http.StatusNotFound, importResponse{Outcome: res.Outcome, Lookup: toLookupResponse(res.Lookup)})
			return
		}
		s.logFailure(r, err, "library import failed")
		writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if res.Outcome == library.OutcomeCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, importResponse{Outcome: res.Outcome, Entry: res.Entry, Lookup: toLookupResponse(res.Lookup)})
}

// withPlugin tags r's context so failure logs carry the plugin ID.
func withPlugin(r *http.Request, pluginID string) *http.Request {
	return r.WithContext(observability.WithPluginID(r.Context(), pluginID))
}

// pluginAndID reads the plugin ID and the "id" query parameter.
func pluginAndID(w http.ResponseWriter, r *http.Request, pluginID string) (string, string, bool) {
	pluginID = strings.TrimSpace(pluginID)
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if pluginID == "" {
		writeDomainError(w, domain.NewValidationError("plugin", "is required"))
		return "", "", false
	}
	if id == "" {
		writeDomainError(w, domain.NewValidationError("id", "is required"))
		return "", "", false
	}
	return pluginID, id, true
}

// parsePaginationParams extracts limit and offset, clamping bad values.
func parsePaginationParams(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// logFailure logs unexpected handler errors; client errors stay at debug.
func (s *Server) logFailure(r *http.Request, err error, msg string) {
	log := observability.LoggerFromContext(r.Context(), s.logger)
	if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrPluginNotFound) {
		log.Debug().Err(err).Msg(msg)
		return
	}
	log.Warn().Err(err).Msg(msg)
}
