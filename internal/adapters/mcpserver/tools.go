package mcpserver

import (
	"context"
	"strconv"

	"github.com/dlystyr/fantasypl-mcp/internal/adapters/mq/queue"
	service "github.com/dlystyr/fantasypl-mcp/internal/app"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/analytics"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/types"
)

// Tool arguments carry prices in millions and positions as text; they are
// converted to domain parameters before the service sees them.

type PlayerInfoArgs struct {
	PlayerID int    `json:"player_id,omitempty" jsonschema:"Player id; give this or name"`
	Name     string `json:"name,omitempty" jsonschema:"Player name, full or web name"`
}

type SearchPlayersArgs struct {
	Query    string  `json:"query,omitempty" jsonschema:"Name to match, fuzzy"`
	TeamID   int     `json:"team_id,omitempty" jsonschema:"Only players of this team"`
	Position string  `json:"position,omitempty" jsonschema:"GK, DEF, MID or FWD"`
	MaxPrice float64 `json:"max_price,omitempty" jsonschema:"Maximum price in millions, e.g. 8.5"`
	MinForm  float64 `json:"min_form,omitempty" jsonschema:"Minimum upstream form"`
	Limit    int     `json:"limit,omitempty" jsonschema:"Maximum results (default 10)"`
}

type SearchTeamsArgs struct {
	Query string `json:"query" jsonschema:"Team name or short name (required)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum results (default 5)"`
}

type PlayerFormArgs struct {
	PlayerID int `json:"player_id" jsonschema:"Player id (required)"`
	Window   int `json:"window,omitempty" jsonschema:"Gameweeks to weigh (default 5)"`
}

type PlayersInFormArgs struct {
	Position string  `json:"position,omitempty" jsonschema:"GK, DEF, MID or FWD"`
	MaxPrice float64 `json:"max_price,omitempty" jsonschema:"Maximum price in millions"`
	Window   int     `json:"window,omitempty" jsonschema:"Gameweeks to weigh (default 5)"`
	Limit    int     `json:"limit,omitempty" jsonschema:"Maximum results (default 10)"`
}

type TeamFormArgs struct {
	TeamID   int    `json:"team_id,omitempty" jsonschema:"Team id; give this or team_name"`
	TeamName string `json:"team_name,omitempty" jsonschema:"Team name or short name"`
	Window   int    `json:"window,omitempty" jsonschema:"Fixtures to weigh (default 5)"`
}

type FixtureDifficultyArgs struct {
	TeamID   int `json:"team_id,omitempty" jsonschema:"Team id; give this or player_id"`
	PlayerID int `json:"player_id,omitempty" jsonschema:"Player id, resolved to the player's team"`
	Horizon  int `json:"horizon,omitempty" jsonschema:"Gameweeks ahead (default 5)"`
}

type EasiestSchedulesArgs struct {
	Horizon int `json:"horizon,omitempty" jsonschema:"Gameweeks ahead (default 5)"`
	Limit   int `json:"limit,omitempty" jsonschema:"Maximum teams (default 20)"`
}

type TransferArgs struct {
	Outgoing       []int              `json:"outgoing" jsonschema:"Player ids to sell (required)"`
	Owned          []int              `json:"owned,omitempty" jsonschema:"Every player id in the squad, for club limits"`
	Bank           float64            `json:"bank,omitempty" jsonschema:"Money in the bank in millions"`
	PurchasePrices map[string]float64 `json:"purchase_prices,omitempty" jsonschema:"Purchase price in millions keyed by player id"`
	Candidates     []int              `json:"candidates,omitempty" jsonschema:"Restrict replacements to these player ids"`
	Position       string             `json:"position,omitempty" jsonschema:"Only plan for outgoing players of this position: GK, DEF, MID or FWD"`
	Horizon        int                `json:"horizon,omitempty" jsonschema:"Gameweeks ahead (default 5)"`
	Limit          int                `json:"limit,omitempty" jsonschema:"Maximum suggestions (default 5)"`
}

type SquadArgs struct {
	Squad    []int `json:"squad,omitempty" jsonschema:"Player ids; give this or entry_id"`
	EntryID  int   `json:"entry_id,omitempty" jsonschema:"FPL entry id whose picks are loaded"`
	Gameweek int   `json:"gameweek,omitempty" jsonschema:"Gameweek of the entry picks (default current)"`
	Horizon  int   `json:"horizon,omitempty" jsonschema:"Gameweeks ahead (default 5)"`
}

type CaptaincyArgs struct {
	Squad        []int `json:"squad,omitempty" jsonschema:"Player ids; give this or entry_id"`
	EntryID      int   `json:"entry_id,omitempty" jsonschema:"FPL entry id whose picks are loaded"`
	Gameweek     int   `json:"gameweek,omitempty" jsonschema:"Gameweek of the entry picks (default current)"`
	Differential bool  `json:"differential,omitempty" jsonschema:"Favour low-ownership picks"`
	Limit        int   `json:"limit,omitempty" jsonschema:"Maximum picks (default whole squad)"`
}

type DifferentialsArgs struct {
	MaxOwnership float64 `json:"max_ownership,omitempty" jsonschema:"Maximum selected-by percent"`
	MinForm      float64 `json:"min_form,omitempty" jsonschema:"Minimum form score"`
	Position     string  `json:"position,omitempty" jsonschema:"GK, DEF, MID or FWD"`
	MaxPrice     float64 `json:"max_price,omitempty" jsonschema:"Maximum price in millions"`
	Limit        int     `json:"limit,omitempty" jsonschema:"Maximum results (default 10)"`
}

type BogeyArgs struct {
	PlayerID      int `json:"player_id,omitempty" jsonschema:"Player id; give this or team_id"`
	TeamID        int `json:"team_id,omitempty" jsonschema:"Team id"`
	OpponentID    int `json:"opponent_id,omitempty" jsonschema:"Only this opponent"`
	MinEncounters int `json:"min_encounters,omitempty" jsonschema:"Meetings needed before judging (default 2)"`
}

type NoArgs struct{}

func (s *Server) registerTools() {
	addTool(s, "get_player_info", "Look a player up by id or name", func(ctx context.Context, a PlayerInfoArgs) types.Outcome {
		return s.svc.PlayerInfo(ctx, analytics.PlayerLookup{PlayerID: a.PlayerID, Name: a.Name})
	})
	addTool(s, "search_players", "Search players by name, team, position, price and form", func(ctx context.Context, a SearchPlayersArgs) types.Outcome {
		const op = "search_players"
		pos, err := position(op, a.Position)
		if err != nil {
			return types.Failure(err)
		}
		maxPrice, err := price(op, "max_price", a.MaxPrice)
		if err != nil {
			return types.Failure(err)
		}
		return s.svc.SearchPlayers(ctx, analytics.SearchPlayersParams{
			Query: a.Query, TeamID: a.TeamID, Position: pos, MaxPrice: maxPrice, MinForm: a.MinForm, Limit: a.Limit,
		})
	})
	addTool(s, "search_teams", "Find teams by name", func(ctx context.Context, a SearchTeamsArgs) types.Outcome {
		return s.svc.SearchTeams(ctx, analytics.SearchTeamsParams{Query: a.Query, Limit: a.Limit})
	})
	addTool(s, "get_player_form", "Recency-weighted form of one player", func(ctx context.Context, a PlayerFormArgs) types.Outcome {
		return s.svc.PlayerForm(ctx, analytics.PlayerFormParams{PlayerID: a.PlayerID, Window: a.Window})
	})
	addTool(s, "get_players_in_form", "Players ranked by form", func(ctx context.Context, a PlayersInFormArgs) types.Outcome {
		const op = "get_players_in_form"
		pos, err := position(op, a.Position)
		if err != nil {
			return types.Failure(err)
		}
		maxPrice, err := price(op, "max_price", a.MaxPrice)
		if err != nil {
			return types.Failure(err)
		}
		return s.svc.PlayersInForm(ctx, analytics.PlayersInFormParams{
			Position: pos, MaxPrice: maxPrice, Window: a.Window, Limit: a.Limit,
		})
	})
	addTool(s, "get_team_form", "Recent results and form rating of a team", func(ctx context.Context, a TeamFormArgs) types.Outcome {
		return s.svc.TeamForm(ctx, analytics.TeamFormParams{TeamID: a.TeamID, TeamName: a.TeamName, Window: a.Window})
	})
	addTool(s, "get_fixture_difficulty", "Upcoming fixtures and their difficulty for a team or player", func(ctx context.Context, a FixtureDifficultyArgs) types.Outcome {
		return s.svc.FixtureDifficulty(ctx, analytics.FixtureDifficultyParams{TeamID: a.TeamID, PlayerID: a.PlayerID, Horizon: a.Horizon})
	})
	addTool(s, "get_easiest_schedules", "Teams ranked by how easy their next fixtures are", func(ctx context.Context, a EasiestSchedulesArgs) types.Outcome {
		return s.svc.EasiestSchedules(ctx, analytics.EasiestSchedulesParams{Horizon: a.Horizon, Limit: a.Limit})
	})
	addTool(s, "get_transfer_suggestions", "Affordable replacements for outgoing players", func(ctx context.Context, a TransferArgs) types.Outcome {
		p, err := transferParams(a)
		if err != nil {
			return types.Failure(err)
		}
		return s.svc.TransferSuggestions(ctx, p)
	})
	addTool(s, "analyze_my_team", "Form, fixtures and weak spots of a squad", func(ctx context.Context, a SquadArgs) types.Outcome {
		return s.svc.AnalyzeSquad(ctx, service.SquadRequest{
			Squad: a.Squad, EntryID: a.EntryID, Gameweek: a.Gameweek, Horizon: a.Horizon,
		})
	})
	addTool(s, "get_captaincy_picks", "Captain candidates ranked for the next gameweek", func(ctx context.Context, a CaptaincyArgs) types.Outcome {
		return s.svc.CaptaincyPicks(ctx, service.CaptaincyRequest{
			Squad: a.Squad, EntryID: a.EntryID, Gameweek: a.Gameweek, Differential: a.Differential, Limit: a.Limit,
		})
	})
	addTool(s, "find_differentials", "Low-ownership players in form", func(ctx context.Context, a DifferentialsArgs) types.Outcome {
		const op = "find_differentials"
		pos, err := position(op, a.Position)
		if err != nil {
			return types.Failure(err)
		}
		maxPrice, err := price(op, "max_price", a.MaxPrice)
		if err != nil {
			return types.Failure(err)
		}
		return s.svc.Differentials(ctx, analytics.DifferentialParams{
			MaxOwnership: a.MaxOwnership, MinForm: a.MinForm, Position: pos, MaxPrice: maxPrice, Limit: a.Limit,
		})
	})
	addTool(s, "check_bogey_teams", "Opponents a player or team does badly against", func(ctx context.Context, a BogeyArgs) types.Outcome {
		return s.svc.BogeyTeams(ctx, analytics.BogeyParams{
			PlayerID: a.PlayerID, TeamID: a.TeamID, OpponentID: a.OpponentID, MinEncounters: a.MinEncounters,
		})
	})
	addTool(s, "sync_status", "Epoch being served and the state of data syncs", func(ctx context.Context, _ NoArgs) types.Outcome {
		return s.svc.SyncStatus(ctx)
	})
	addTool(s, "trigger_sync", "Request a data sync; coalesces with one already pending", func(ctx context.Context, _ NoArgs) types.Outcome {
		return s.svc.TriggerSync(ctx, queue.SourceTool)
	})
}

func position(op, s string) (model.Position, error) {
	p, err := model.ParsePosition(s)
	if err != nil {
		return model.PositionAny, fault.Invalid(op, "position", "%v", err)
	}
	return p, nil
}

func price(op, param string, millions float64) (model.Price, error) {
	p, err := model.PriceFromMillions(millions)
	if err != nil {
		return 0, fault.Invalid(op, param, "%s: %v", param, err)
	}
	return p, nil
}

func transferParams(a TransferArgs) (analytics.TransferParams, error) {
	const op = "get_transfer_suggestions"
	p := analytics.TransferParams{
		Outgoing:   a.Outgoing,
		Owned:      a.Owned,
		Candidates: a.Candidates,
		Horizon:    a.Horizon,
		Limit:      a.Limit,
	}
	var err error
	if p.Position, err = position(op, a.Position); err != nil {
		return p, err
	}
	if p.Bank, err = price(op, "bank", a.Bank); err != nil {
		return p, err
	}
	if len(a.PurchasePrices) > 0 {
		p.PurchasePrices = make(map[int]model.Price, len(a.PurchasePrices))
		for key, millions := range a.PurchasePrices {
			id, err := strconv.Atoi(key)
			if err != nil || id <= 0 {
				return p, fault.Invalid(op, "purchase_prices", "purchase_prices key %q is not a player id", key)
			}
			if p.PurchasePrices[id], err = price(op, "purchase_prices", millions); err != nil {
				return p, err
			}
		}
	}
	return p, nil
}
