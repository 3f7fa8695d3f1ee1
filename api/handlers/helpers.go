package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"helix-qms/core/apperr"
	"helix-qms/core/utils"
)

func urlParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func pathID(r *http.Request, key string) (int64, error) {
	raw := strings.TrimSpace(urlParam(r, key))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s %q", key, raw)
	}
	return id, nil
}

func parseIntDefault(raw string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

func queryID(r *http.Request, key string) *int64 {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, logger *utils.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError && logger != nil {
		logger.Errorf("request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": apperr.ClientMessage(err)})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("invalid JSON body")
	}
	return nil
}

const (
	defaultPageSize = 20
	minPageSize     = 10
	maxPageSize     = 100
)

type pageParams struct {
	Page  int
	Limit int
}

// parsePage clamps the page size into the allowed band so clients can
// neither request unbounded result sets nor tiny ones that hammer the API.
func parsePage(r *http.Request) pageParams {
	page := parseIntDefault(r.URL.Query().Get("page"), 1)
	if page < 1 {
		page = 1
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), defaultPageSize)
	if limit < minPageSize {
		limit = minPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return pageParams{Page: page, Limit: limit}
}

func (p pageParams) offset() int {
	return (p.Page - 1) * p.Limit
}

type pageEnvelope struct {
	Items interface{} `json:"items"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
	Total int64       `json:"total"`
	Pages int64       `json:"pages"`
}

func paged(items interface{}, p pageParams, total int64) pageEnvelope {
	pages := total / int64(p.Limit)
	if total%int64(p.Limit) != 0 {
		pages++
	}
	return pageEnvelope{Items: items, Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}
