package httpserver

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"sort"
	"strconv"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/library"
	"github.com/helixir/paperhub/internal/plugins"
)

type healthResponse struct {
	Status         string `json:"status"`
	Active         string `json:"active,omitempty"`
	PluginsTotal   int    `json:"plugins_total"`
	PluginsEnabled int    `json:"plugins_enabled"`
}

type pluginStateResponse struct {
	ID      string `json:"id"`
	Active  string `json:"active"`
	Enabled bool   `json:"enabled"`
}

type listPluginsResponse struct {
	Plugins []plugins.PluginInfo `json:"plugins"`
	Active  string               `json:"active,omitempty"`
}

type searchResponse struct {
	Plugin string               `json:"plugin,omitempty"`
	Result *domain.SearchResult `json:"result"`
}

type federatedResponse struct {
	Results     map[string]*domain.SearchResult `json:"results"`
	Errors      map[string]string               `json:"errors,omitempty"`
	TotalPapers int                             `json:"total_papers"`
}

type attemptResponse struct {
	Plugin string `json:"plugin"`
	Method string `json:"method"`
	Found  bool   `json:"found"`
	Error  string `json:"error,omitempty"`
}

type lookupResponse struct {
	Identifier string            `json:"identifier"`
	Type       string            `json:"type"`
	Plugin     string            `json:"plugin,omitempty"`
	Paper      *domain.Paper     `json:"paper"`
	Attempts   []attemptResponse `json:"attempts"`
}

type failureResponse struct {
	Plugin string `json:"plugin"`
	Error  string `json:"error"`
}

type pdfSourcesResponse struct {
	Sources  []domain.PdfSource `json:"sources"`
	Failures []failureResponse  `json:"failures,omitempty"`
}

type bibtexResponse struct {
	Plugin string `json:"plugin"`
	ID     string `json:"id"`
	Bibtex string `json:"bibtex"`
}

type papersResponse struct {
	Plugin string          `json:"plugin"`
	ID     string          `json:"id"`
	Papers []*domain.Paper `json:"papers"`
}

type importResponse struct {
	Outcome string          `json:"outcome"`
	Entry   *library.Entry  `json:"entry,omitempty"`
	Lookup  *lookupResponse `json:"lookup,omitempty"`
}

type listLibraryResponse struct {
	Entries    []*library.Entry `json:"entries"`
	TotalCount int              `json:"total_count"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func toLookupResponse(res *plugins.LookupResult) *lookupResponse {
	if res == nil {
		return nil
	}
	resp := &lookupResponse{
		Identifier: res.Identifier,
		Type:       res.Type.String(),
		Plugin:     res.PluginID,
		Paper:      res.Paper,
		Attempts:   make([]attemptResponse, 0, len(res.Attempts)),
	}
	for _, a := range res.Attempts {
		ar := attemptResponse{Plugin: a.PluginID, Method: a.Method, Found: a.Found}
		if a.Err != nil {
			ar.Error = a.Err.Error()
		}
		resp.Attempts = append(resp.Attempts, ar)
	}
	return resp
}

func toFederatedResponse(res *plugins.FederatedResult) federatedResponse {
	resp := federatedResponse{
		Results:     res.Results,
		TotalPapers: res.TotalPapers(),
	}
	if resp.Results == nil {
		resp.Results = map[string]*domain.SearchResult{}
	}
	if len(res.Errors) > 0 {
		resp.Errors = make(map[string]string, len(res.Errors))
		for id, err := range res.Errors {
			resp.Errors[id] = err.Error()
		}
	}
	return resp
}

func toFailures(failures []plugins.PluginFailure) []failureResponse {
	if len(failures) == 0 {
		return nil
	}
	out := make([]failureResponse, 0, len(failures))
	for _, f := range failures {
		out = append(out, failureResponse{Plugin: f.PluginID, Error: f.Err.Error()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Plugin < out[j].Plugin })
	return out
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Headers are already sent, so an encoding error cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}

// writeDomainError maps domain errors to HTTP status codes. Unknown errors
// are reported as 500 without their message.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var (
		ve     *domain.ValidationError
		rl     *domain.RateLimitError
		apiErr *domain.ExternalAPIError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Error(), Field: ve.Field})
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, domain.ErrPluginNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrNoActivePlugin), errors.Is(err, domain.ErrPluginDisabled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrCapabilityUnsupported), errors.Is(err, domain.ErrNoIdentifier):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		}
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.As(err, &apiErr):
		writeError(w, http.StatusBadGateway, apiErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
