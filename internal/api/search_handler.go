package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/huyndo/tpcn-advisor/internal/common"
	"github.com/huyndo/tpcn-advisor/internal/retriever"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		logger.Warn("api: search missing query parameter")
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing q parameter"))
		return
	}
	limit := retriever.DefaultTopK
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if !s.engine.Ready() {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("index not ready"))
		return
	}
	results := s.engine.Search(query, limit)
	if results == nil {
		results = []retriever.Match{}
	}
	logger.Debug("api: search served", "query", query, "results", len(results))
	writeJSON(w, http.StatusOK, searchResponse{Results: results, Count: len(results)})
}
