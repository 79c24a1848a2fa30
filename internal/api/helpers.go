package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/carolinespringscc/cricket-agent/internal/apperr"
	"github.com/carolinespringscc/cricket-agent/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("writeJSON marshal error: %v", err)
		return
	}

	if _, err := w.Write(data); err != nil {
		log.Printf("writeJSON write error: %v", err)
	}
}

func writeInternalServerError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, err string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err})
}

func writeUnauthorized(w http.ResponseWriter, err string) {
	writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: err})
}

func writeNotFound(w http.ResponseWriter, r string) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("%v not found", r)})
}

// writeError maps the internal error taxonomy (§7) to an HTTP status:
// NotFoundError -> 404, ValidationError -> 400, WebhookAuthError -> 401,
// UpstreamError -> 502, everything else -> 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case core.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case isType[*apperr.ValidationError](err):
		writeBadRequest(w, err.Error())
	case isType[*apperr.WebhookAuthError](err):
		writeUnauthorized(w, err.Error())
	case isType[*apperr.UpstreamError](err):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	default:
		writeInternalServerError(w, err)
	}
}

func isType[T error](err error) bool {
	_, ok := apperr.As[T](err)
	return ok
}

func getIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
