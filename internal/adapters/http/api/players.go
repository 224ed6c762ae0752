package api

import (
	"net/http"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/analytics"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/types"
)

// handlePlayers handles GET /v1/players. With name= it looks one player up,
// otherwise it searches with q= and the filters.
func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("name"); name != "" {
		writeOutcome(w, s.svc.PlayerInfo(r.Context(), analytics.PlayerLookup{Name: name}))
		return
	}
	q := newQuery(r, "search_players")
	p := analytics.SearchPlayersParams{
		Query:    q.str("q"),
		TeamID:   q.int("team_id"),
		Position: q.position("position"),
		MaxPrice: q.price("max_price"),
		MinForm:  q.float("min_form"),
		Limit:    q.int("limit"),
	}
	if q.err != nil {
		writeOutcome(w, types.Failure(q.err))
		return
	}
	writeOutcome(w, s.svc.SearchPlayers(r.Context(), p))
}

// handlePlayer handles GET /v1/players/{id}.
func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r, "get_player_info")
	id := q.pathID("id")
	if q.err != nil {
		writeOutcome(w, types.Failure(q.err))
		return
	}
	writeOutcome(w, s.svc.PlayerInfo(r.Context(), analytics.PlayerLookup{PlayerID: id}))
}

// handlePlayerForm handles GET /v1/players/{id}/form?window=N.
func (s *Server) handlePlayerForm(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r, "get_player_form")
	p := analytics.PlayerFormParams{PlayerID: q.pathID("id"), Window: q.int("window")}
	if q.err != nil {
		writeOutcome(w, types.Failure(q.err))
		return
	}
	writeOutcome(w, s.svc.PlayerForm(r.Context(), p))
}

// handlePlayerFixtures handles GET /v1/players/{id}/fixtures?horizon=N.
func (s *Server) handlePlayerFixtures(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r, "get_fixture_difficulty")
	p := analytics.FixtureDifficultyParams{PlayerID: q.pathID("id"), Horizon: q.int("horizon")}
	if q.err != nil {
		writeOutcome(w, types.Failure(q.err))
		return
	}
	writeOutcome(w, s.svc.FixtureDifficulty(r.Context(), p))
}

func (s *Server) handlePlayerBogey(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r, "check_bogey_teams")
	p := analytics.BogeyParams{
		PlayerID:      q.pathID("id"),
		OpponentID:    q.int("opponent_id"),
		MinEncounters: q.int("min_encounters"),
	}
	if q.err != nil {
		writeOutcome(w, types.Failure(q.err))
		return
	}
	writeOutcome(w, s.svc.BogeyTeams(r.Context(), p))
}

// handlePlayersInForm handles GET /v1/form/players.
func (s *Server) handlePlayersInForm(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r, "get_players_in_form")
	p := analytics.PlayersInFormParams{
		Position: q.position("position"),
		MaxPrice: q.price("max_price"),
		Window:   q.int("window"),
		Limit:    q.int("limit"),
	}
	if q.err != nil {
		writeOutcome(w, types.Failure(q.err))
		return
	}
	writeOutcome(w, s.svc.PlayersInForm(r.Context(), p))
}

// handleDifferentials handles GET /v1/differentials.
func (s *Server) handleDifferentials(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r, "find_differentials")
	p := analytics.DifferentialParams{
		MaxOwnership: q.float("max_ownership"),
		MinForm:      q.float("min_form"),
		Position:     q.position("position"),
		MaxPrice:     q.price("max_price"),
		Limit:        q.int("limit"),
	}
	if q.err != nil {
		writeOutcome(w, types.Failure(q.err))
		return
	}
	writeOutcome(w, s.svc.Differentials(r.Context(), p))
}
