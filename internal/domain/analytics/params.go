package analytics

import (
	"math"
	"slices"
	"strings"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

const (
	maxLimit   = 50
	maxWindow  = 38
	maxHorizon = 10
	squadSize  = 15
)

func normLimit(op string, limit, def int) (int, error) {
	if limit == 0 {
		return def, nil
	}
	if limit < 0 || limit > maxLimit {
		return 0, fault.Invalid(op, "limit", "limit must be between 1 and %d, got %d", maxLimit, limit)
	}
	return limit, nil
}

func normWindow(op string, window, def int) (int, error) {
	if window == 0 {
		return def, nil
	}
	if window < 0 || window > maxWindow {
		return 0, fault.Invalid(op, "window", "window must be between 1 and %d, got %d", maxWindow, window)
	}
	return window, nil
}

func normHorizon(op string, horizon, def int) (int, error) {
	if horizon == 0 {
		return def, nil
	}
	if horizon < 0 || horizon > maxHorizon {
		return 0, fault.Invalid(op, "horizon", "horizon must be between 1 and %d, got %d", maxHorizon, horizon)
	}
	return horizon, nil
}

func normName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func normPosition(op string, p model.Position) error {
	if p != model.PositionAny && !p.Valid() {
		return fault.Invalid(op, "position", "unknown position %d", int(p))
	}
	return nil
}

func normFloat(op, param string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fault.Invalid(op, param, "%s must be a finite non-negative number", param)
	}
	return nil
}

// normIDs sorts and deduplicates an id list; order never changes a result.
func normIDs(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func normSquad(op string, squad []int) ([]int, error) {
	if len(squad) == 0 {
		return nil, fault.Invalid(op, "squad", "squad must name at least one player")
	}
	out := normIDs(squad)
	if len(out) != len(squad) {
		return nil, fault.Invalid(op, "squad", "squad lists a player more than once")
	}
	if len(out) > squadSize {
		return nil, fault.Invalid(op, "squad", "squad has %d players, at most %d allowed", len(out), squadSize)
	}
	return out, nil
}

// PlayerLookup identifies a player by id or by name.
type PlayerLookup struct {
	PlayerID int    `json:"player_id,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Normalize validates the lookup.
func (p PlayerLookup) Normalize(Config) (PlayerLookup, error) {
	const op = "get_player_info"
	p.Name = normName(p.Name)
	if (p.PlayerID == 0) == (p.Name == "") {
		return p, fault.Invalid(op, "player_id", "exactly one of player_id or name is required")
	}
	if p.PlayerID < 0 {
		return p, fault.Invalid(op, "player_id", "player_id must be positive")
	}
	return p, nil
}

// SearchPlayersParams filters and ranks players.
type SearchPlayersParams struct {
	Query    string         `json:"query,omitempty"`
	TeamID   int            `json:"team_id,omitempty"`
	Position model.Position `json:"position,omitempty"`
	MaxPrice model.Price    `json:"max_price,omitempty"`
	MinForm  float64        `json:"min_form,omitempty"`
	Limit    int            `json:"limit"`
}

// Normalize applies defaults and bounds.
func (p SearchPlayersParams) Normalize(Config) (SearchPlayersParams, error) {
	const op = "search_players"
	var err error
	p.Query = normName(p.Query)
	if p.Limit, err = normLimit(op, p.Limit, 10); err != nil {
		return p, err
	}
	if err = normPosition(op, p.Position); err != nil {
		return p, err
	}
	if p.MaxPrice < 0 {
		return p, fault.Invalid(op, "max_price", "max_price must not be negative")
	}
	if err = normFloat(op, "min_form", p.MinForm); err != nil {
		return p, err
	}
	return p, nil
}

// SearchTeamsParams ranks teams by name similarity.
type SearchTeamsParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// Normalize applies defaults and bounds.
func (p SearchTeamsParams) Normalize(Config) (SearchTeamsParams, error) {
	const op = "search_teams"
	var err error
	p.Query = normName(p.Query)
	if p.Query == "" {
		return p, fault.Invalid(op, "query", "query is required")
	}
	p.Limit, err = normLimit(op, p.Limit, 5)
	return p, err
}

// PlayerFormParams selects one player's form.
type PlayerFormParams struct {
	PlayerID int `json:"player_id"`
	Window   int `json:"window"`
}

// Normalize applies defaults and bounds.
func (p PlayerFormParams) Normalize(cfg Config) (PlayerFormParams, error) {
	const op = "get_player_form"
	if p.PlayerID <= 0 {
		return p, fault.Invalid(op, "player_id", "player_id is required")
	}
	var err error
	p.Window, err = normWindow(op, p.Window, cfg.FormWindow)
	return p, err
}

// PlayersInFormParams ranks the league by form.
type PlayersInFormParams struct {
	Position model.Position `json:"position,omitempty"`
	MaxPrice model.Price    `json:"max_price,omitempty"`
	Window   int            `json:"window"`
	Limit    int            `json:"limit"`
}

// Normalize applies defaults and bounds.
func (p PlayersInFormParams) Normalize(cfg Config) (PlayersInFormParams, error) {
	const op = "get_players_in_form"
	var err error
	if err = normPosition(op, p.Position); err != nil {
		return p, err
	}
	if p.MaxPrice < 0 {
		return p, fault.Invalid(op, "max_price", "max_price must not be negative")
	}
	if p.Window, err = normWindow(op, p.Window, cfg.FormWindow); err != nil {
		return p, err
	}
	p.Limit, err = normLimit(op, p.Limit, 10)
	return p, err
}

// TeamFormParams selects a team by id or name.
type TeamFormParams struct {
	TeamID   int    `json:"team_id,omitempty"`
	TeamName string `json:"team_name,omitempty"`
	Window   int    `json:"window"`
}

// Normalize applies defaults and bounds.
func (p TeamFormParams) Normalize(cfg Config) (TeamFormParams, error) {
	const op = "get_team_form"
	p.TeamName = normName(p.TeamName)
	if (p.TeamID == 0) == (p.TeamName == "") {
		return p, fault.Invalid(op, "team_id", "exactly one of team_id or team_name is required")
	}
	var err error
	p.Window, err = normWindow(op, p.Window, cfg.FormWindow)
	return p, err
}

// FixtureDifficultyParams selects a team directly or through one of its players.
type FixtureDifficultyParams struct {
	TeamID   int `json:"team_id,omitempty"`
	PlayerID int `json:"player_id,omitempty"`
	Horizon  int `json:"horizon"`
}

// Normalize applies defaults and bounds.
func (p FixtureDifficultyParams) Normalize(cfg Config) (FixtureDifficultyParams, error) {
	const op = "get_fixture_difficulty"
	if (p.TeamID == 0) == (p.PlayerID == 0) {
		return p, fault.Invalid(op, "team_id", "exactly one of team_id or player_id is required")
	}
	var err error
	p.Horizon, err = normHorizon(op, p.Horizon, cfg.FixtureHorizon)
	return p, err
}

// EasiestSchedulesParams ranks every team's upcoming run.
type EasiestSchedulesParams struct {
	Horizon int `json:"horizon"`
	Limit   int `json:"limit"`
}

// Normalize applies defaults and bounds.
func (p EasiestSchedulesParams) Normalize(cfg Config) (EasiestSchedulesParams, error) {
	const op = "get_easiest_schedules"
	var err error
	if p.Horizon, err = normHorizon(op, p.Horizon, cfg.FixtureHorizon); err != nil {
		return p, err
	}
	p.Limit, err = normLimit(op, p.Limit, 20)
	return p, err
}

// TransferParams describes the manager's squad and money.
type TransferParams struct {
	Outgoing       []int               `json:"outgoing"`
	Owned          []int               `json:"owned,omitempty"`
	Bank           model.Price         `json:"bank"`
	PurchasePrices map[int]model.Price `json:"purchase_prices,omitempty"`
	Candidates     []int               `json:"candidates,omitempty"`
	Position       model.Position      `json:"position,omitempty"`
	Horizon        int                 `json:"horizon"`
	Limit          int                 `json:"limit"`
}

// Normalize applies defaults and bounds.
func (p TransferParams) Normalize(cfg Config) (TransferParams, error) {
	const op = "get_transfer_suggestions"
	var err error
	if len(p.Outgoing) == 0 {
		return p, fault.Invalid(op, "outgoing", "at least one outgoing player is required")
	}
	p.Outgoing = normIDs(p.Outgoing)
	if len(p.Outgoing) > squadSize {
		return p, fault.Invalid(op, "outgoing", "at most %d outgoing players", squadSize)
	}
	p.Owned = normIDs(p.Owned)
	p.Candidates = normIDs(p.Candidates)
	if p.Bank < 0 {
		return p, fault.Invalid(op, "bank", "bank must not be negative")
	}
	for id, price := range p.PurchasePrices {
		if price <= 0 {
			return p, fault.Invalid(op, "purchase_prices", "purchase price for player %d must be positive", id).With("player_id", id)
		}
	}
	if len(p.PurchasePrices) == 0 {
		p.PurchasePrices = nil
	}
	if err = normPosition(op, p.Position); err != nil {
		return p, err
	}
	if p.Horizon, err = normHorizon(op, p.Horizon, cfg.FixtureHorizon); err != nil {
		return p, err
	}
	p.Limit, err = normLimit(op, p.Limit, 5)
	return p, err
}

// SquadParams names a squad for team analysis.
type SquadParams struct {
	Squad   []int `json:"squad"`
	Horizon int   `json:"horizon"`
}

// Normalize applies defaults and bounds.
func (p SquadParams) Normalize(cfg Config) (SquadParams, error) {
	const op = "analyze_my_team"
	var err error
	if p.Squad, err = normSquad(op, p.Squad); err != nil {
		return p, err
	}
	p.Horizon, err = normHorizon(op, p.Horizon, cfg.FixtureHorizon)
	return p, err
}

// CaptaincyParams names the captaincy candidates.
type CaptaincyParams struct {
	Squad        []int `json:"squad"`
	Differential bool  `json:"differential"`
	Limit        int   `json:"limit"`
}

// Normalize applies defaults and bounds.
func (p CaptaincyParams) Normalize(Config) (CaptaincyParams, error) {
	const op = "get_captaincy_picks"
	var err error
	if p.Squad, err = normSquad(op, p.Squad); err != nil {
		return p, err
	}
	if p.Limit, err = normLimit(op, p.Limit, len(p.Squad)); err != nil {
		return p, err
	}
	return p, nil
}

// DifferentialParams filters low-ownership players in form.
type DifferentialParams struct {
	MaxOwnership float64        `json:"max_ownership"`
	MinForm      float64        `json:"min_form"`
	Position     model.Position `json:"position,omitempty"`
	MaxPrice     model.Price    `json:"max_price,omitempty"`
	Limit        int            `json:"limit"`
}

// Normalize applies defaults and bounds.
func (p DifferentialParams) Normalize(cfg Config) (DifferentialParams, error) {
	const op = "find_differentials"
	var err error
	if p.MaxOwnership == 0 {
		p.MaxOwnership = cfg.DifferentialMaxOwnership
	}
	if err = normFloat(op, "max_ownership", p.MaxOwnership); err != nil {
		return p, err
	}
	if p.MaxOwnership > 100 {
		return p, fault.Invalid(op, "max_ownership", "max_ownership is a percentage, got %v", p.MaxOwnership)
	}
	if p.MinForm == 0 {
		p.MinForm = cfg.DifferentialMinForm
	}
	if err = normFloat(op, "min_form", p.MinForm); err != nil {
		return p, err
	}
	if err = normPosition(op, p.Position); err != nil {
		return p, err
	}
	if p.MaxPrice < 0 {
		return p, fault.Invalid(op, "max_price", "max_price must not be negative")
	}
	p.Limit, err = normLimit(op, p.Limit, 10)
	return p, err
}

// BogeyParams selects a player or a team and optionally one opponent.
type BogeyParams struct {
	PlayerID      int `json:"player_id,omitempty"`
	TeamID        int `json:"team_id,omitempty"`
	OpponentID    int `json:"opponent_id,omitempty"`
	MinEncounters int `json:"min_encounters"`
}

// Normalize applies defaults and bounds.
func (p BogeyParams) Normalize(cfg Config) (BogeyParams, error) {
	const op = "check_bogey_teams"
	if (p.PlayerID == 0) == (p.TeamID == 0) {
		return p, fault.Invalid(op, "player_id", "exactly one of player_id or team_id is required")
	}
	if p.MinEncounters == 0 {
		p.MinEncounters = cfg.BogeyMinEncounters
	}
	if p.MinEncounters < 1 || p.MinEncounters > maxWindow {
		return p, fault.Invalid(op, "min_encounters", "min_encounters must be between 1 and %d", maxWindow)
	}
	return p, nil
}
