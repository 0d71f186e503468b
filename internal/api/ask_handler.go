package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/huyndo/tpcn-advisor/internal/common"
)

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("api: ask payload malformed", "error", err)
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("query required"))
		return
	}
	if !s.engine.Ready() {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("index not ready"))
		return
	}
	reply := s.advisor.Suggest(req.Query, req.Profile)
	logger.Info("api: ask answered",
		"type", reply.Type,
		"products", len(reply.Products),
		"combos", len(reply.Combos),
	)
	writeJSON(w, http.StatusOK, reply)
}
