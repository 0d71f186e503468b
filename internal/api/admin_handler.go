package api

import (
	"fmt"
	"net/http"

	"github.com/huyndo/tpcn-advisor/internal/common"
)

const adminTokenHeader = "X-Admin-Token"

// handleReindex rebuilds the search index from the configured sources. The
// endpoint is open unless an admin token was configured at startup.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	if s.adminToken != "" && r.Header.Get(adminTokenHeader) != s.adminToken {
		logger.Warn("api: reindex rejected", "remote", r.RemoteAddr)
		writeError(w, http.StatusForbidden, fmt.Errorf("invalid admin token"))
		return
	}
	stats, err := s.engine.Reload(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("reindex: %w", err))
		return
	}
	logger.Info("api: reindex complete",
		"products", stats.Counts.Products,
		"combos", stats.Counts.Combos,
		"symptoms", stats.Counts.Symptoms,
	)
	writeJSON(w, http.StatusOK, reindexResponse{
		Status: "reindexed",
		OK:     stats.OK,
		Counts: stats.Counts,
	})
}
