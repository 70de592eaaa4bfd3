package rpc

import (
	"net/http"
	"strconv"
	"strings"

	"shopchain/integrations/archive"
	"shopchain/integrations/exports"
)

const checksumHeader = "X-Export-Checksum"

// handleExport streams one page of archived events as CSV or JSON Lines.
// Query parameters: format (csv|jsonl), type, afterSeq and limit.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Archive == nil {
		http.Error(w, "event archive is not enabled", http.StatusNotFound)
		return
	}
	q := r.URL.Query()
	filter := archive.Filter{Type: strings.TrimSpace(q.Get("type"))}
	if raw := q.Get("afterSeq"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "afterSeq must be an unsigned integer", http.StatusBadRequest)
			return
		}
		filter.AfterSeq = v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		filter.Limit = v
	}

	records, err := s.cfg.Archive.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("export events", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	var (
		data        []byte
		sum         string
		contentType string
	)
	switch strings.ToLower(q.Get("format")) {
	case "", "csv":
		data, sum, err = exports.EventsCSV(records)
		contentType = "text/csv"
	case "jsonl":
		data, sum, err = exports.EventsJSONL(records)
		contentType = "application/x-ndjson"
	default:
		http.Error(w, "format must be csv or jsonl", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.logger.Error("render export", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set(checksumHeader, sum)
	_, _ = w.Write(data)
}
