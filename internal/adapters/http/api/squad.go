package api

import (
	"net/http"

	"github.com/dlystyr/fantasypl-mcp/internal/adapters/mq/queue"
	service "github.com/dlystyr/fantasypl-mcp/internal/app"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/analytics"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/types"
)

// handleTransfers handles POST /v1/transfers.
func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	var p analytics.TransferParams
	if err := decodeBody(r, "get_transfer_suggestions", &p); err != nil {
		writeOutcome(w, types.Failure(err))
		return
	}
	writeOutcome(w, s.svc.TransferSuggestions(r.Context(), p))
}

// handleSquadAnalysis handles POST /v1/squad/analysis.
func (s *Server) handleSquadAnalysis(w http.ResponseWriter, r *http.Request) {
	var req service.SquadRequest
	if err := decodeBody(r, "analyze_my_team", &req); err != nil {
		writeOutcome(w, types.Failure(err))
		return
	}
	writeOutcome(w, s.svc.AnalyzeSquad(r.Context(), req))
}

// handleCaptaincy handles POST /v1/captaincy.
func (s *Server) handleCaptaincy(w http.ResponseWriter, r *http.Request) {
	var req service.CaptaincyRequest
	if err := decodeBody(r, "get_captaincy_picks", &req); err != nil {
		writeOutcome(w, types.Failure(err))
		return
	}
	writeOutcome(w, s.svc.CaptaincyPicks(r.Context(), req))
}

// handleStatus handles GET /v1/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, s.svc.SyncStatus(r.Context()))
}

// handleSync handles POST /v1/sync. An accepted or coalesced request is 202.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	o := s.svc.TriggerSync(r.Context(), queue.SourceAPI)
	if o.OK {
		writeJSON(w, http.StatusAccepted, o)
		return
	}
	writeOutcome(w, o)
}
