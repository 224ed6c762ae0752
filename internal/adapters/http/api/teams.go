package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/analytics"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/types"
)

// handleTeams handles GET /v1/teams?q=name&limit=N.
func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r, "search_teams")
	p := analytics.SearchTeamsParams{Query: q.str("q"), Limit: q.int("limit")}
	if q.err != nil {
		writeOutcome(w, types.Failure(q.err))
		return
	}
	writeOutcome(w, s.svc.SearchTeams(r.Context(), p))
}

// handleTeamForm handles GET /v1/teams/{team}/form where team is an id or a name.
func (s *Server) handleTeamForm(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r, "get_team_form")
	p := analytics.TeamFormParams{Window: q.int("window")}
	team := mux.Vars(r)["team"]
	if id, err := strconv.Atoi(team); err == nil {
		p.TeamID = id
	} else {
		p.TeamName = team
	}
	if q.err != nil {
		writeOutcome(w, types.Failure(q.err))
		return
	}
	writeOutcome(w, s.svc.TeamForm(r.Context(), p))
}

// handleTeamFixtures handles GET /v1/teams/{id}/fixtures?horizon=N.
func (s *Server) handleTeamFixtures(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r, "get_fixture_difficulty")
	p := analytics.FixtureDifficultyParams{TeamID: q.pathID("id"), Horizon: q.int("horizon")}
	if q.err != nil {
		writeOutcome(w, types.Failure(q.err))
		return
	}
	writeOutcome(w, s.svc.FixtureDifficulty(r.Context(), p))
}

func (s *Server) handleTeamBogey(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r, "check_bogey_teams")
	p := analytics.BogeyParams{
		TeamID:        q.pathID("id"),
		OpponentID:    q.int("opponent_id"),
		MinEncounters: q.int("min_encounters"),
	}
	if q.err != nil {
		writeOutcome(w, types.Failure(q.err))
		return
	}
	writeOutcome(w, s.svc.BogeyTeams(r.Context(), p))
}

// handleEasiest handles GET /v1/fixtures/easiest?horizon=N&limit=N.
func (s *Server) handleEasiest(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r, "get_easiest_schedules")
	p := analytics.EasiestSchedulesParams{Horizon: q.int("horizon"), Limit: q.int("limit")}
	if q.err != nil {
		writeOutcome(w, types.Failure(q.err))
		return
	}
	writeOutcome(w, s.svc.EasiestSchedules(r.Context(), p))
}
