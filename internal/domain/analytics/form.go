package analytics

import (
	"math"
	"slices"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

// GameweekPoints is one gameweek's haul; double gameweeks are summed.
type GameweekPoints struct {
	Gameweek int `json:"gameweek"`
	Points   int `json:"points"`
	Fixtures int `json:"fixtures"`
	Minutes  int `json:"minutes"`
}

// FormScore is a player's recency-weighted points per gameweek. When fewer
// than Required gameweeks are available Status is insufficient_data and no
// score is given.
type FormScore struct {
	Player        PlayerRef        `json:"player"`
	Status        Status           `json:"status"`
	Score         *float64         `json:"score,omitempty"`
	Trend         Trend            `json:"trend,omitempty"`
	Samples       int              `json:"samples"`
	Required      int              `json:"required"`
	Window        int              `json:"window"`
	SinceGameweek int              `json:"since_gameweek,omitempty"`
	Gameweeks     []GameweekPoints `json:"gameweeks"`

	raw float64
}

// Sufficient reports whether the score is usable.
func (f FormScore) Sufficient() bool { return f.Status == StatusOK }

// PlayersInForm is the league ranked by form.
type PlayersInForm struct {
	Window       int         `json:"window"`
	Considered   int         `json:"considered"`
	Insufficient int         `json:"insufficient"`
	Players      []FormScore `json:"players"`
}

// MatchResult is one settled fixture from a team's point of view.
type MatchResult struct {
	FixtureID    int    `json:"fixture_id"`
	Gameweek     int    `json:"gameweek"`
	OpponentID   int    `json:"opponent_id"`
	Opponent     string `json:"opponent"`
	Home         bool   `json:"home"`
	GoalsFor     int    `json:"goals_for"`
	GoalsAgainst int    `json:"goals_against"`
	Outcome      string `json:"outcome"`
}

// TeamForm summarizes a club's recent results.
type TeamForm struct {
	Team          TeamRef       `json:"team"`
	Status        Status        `json:"status"`
	Window        int           `json:"window"`
	Samples       int           `json:"samples"`
	Required      int           `json:"required"`
	Record        string        `json:"record"`
	Results       []MatchResult `json:"results"`
	PointsPerGame *float64      `json:"points_per_game,omitempty"`
	GoalsFor      *float64      `json:"goals_for,omitempty"`
	GoalsAgainst  *float64      `json:"goals_against,omitempty"`
	Rating        *float64      `json:"rating,omitempty"`
	Trend         Trend         `json:"trend,omitempty"`
}

// PlayerForm computes one player's form.
func (e *Engine) PlayerForm(snap *model.Snapshot, params PlayerFormParams) (FormScore, error) {
	params, err := params.Normalize(e.cfg)
	if err != nil {
		return FormScore{}, err
	}
	p, err := lookupPlayer(snap, "get_player_form", params.PlayerID)
	if err != nil {
		return FormScore{}, err
	}
	return e.formOf(snap, p, params.Window), nil
}

// PlayersInForm ranks players by form, highest first, ties by id.
func (e *Engine) PlayersInForm(snap *model.Snapshot, params PlayersInFormParams) (PlayersInForm, error) {
	params, err := params.Normalize(e.cfg)
	if err != nil {
		return PlayersInForm{}, err
	}
	out := PlayersInForm{Window: params.Window}
	var scored []FormScore
	for _, id := range snap.PlayerIDs() {
		p, _ := snap.Player(id)
		if params.Position != model.PositionAny && p.Position != params.Position {
			continue
		}
		if params.MaxPrice > 0 && p.Price > params.MaxPrice {
			continue
		}
		out.Considered++
		f := e.formOf(snap, p, params.Window)
		if !f.Sufficient() {
			out.Insufficient++
			continue
		}
		scored = append(scored, f)
	}
	slices.SortFunc(scored, func(a, b FormScore) int {
		if c := cmpDesc(a.raw, b.raw); c != 0 {
			return c
		}
		return cmpInt(a.Player.ID, b.Player.ID)
	})
	if len(scored) > params.Limit {
		scored = scored[:params.Limit]
	}
	out.Players = scored
	return out, nil
}

// formOf weights the newest window gameweeks since the player's last status
// change by decay^i, i = 0 for the newest.
func (e *Engine) formOf(snap *model.Snapshot, p model.Player, window int) FormScore {
	f := FormScore{
		Player:    playerRef(snap, p),
		Status:    StatusInsufficient,
		Required:  e.cfg.MinSamples,
		Window:    window,
		Gameweeks: []GameweekPoints{},
	}

	since := 0
	if p.StatusChangedAt != nil {
		since = math.MaxInt
		if gw, ok := snap.GameweekAt(*p.StatusChangedAt); ok {
			since, f.SinceGameweek = gw.ID, gw.ID
		}
	}

	var per []GameweekPoints
	for _, row := range snap.PlayerHistory(p.ID) {
		if row.Gameweek < since {
			continue
		}
		if n := len(per); n > 0 && per[n-1].Gameweek == row.Gameweek {
			per[n-1].Points += row.Points
			per[n-1].Minutes += row.Minutes
			per[n-1].Fixtures++
			continue
		}
		per = append(per, GameweekPoints{Gameweek: row.Gameweek, Points: row.Points, Minutes: row.Minutes, Fixtures: 1})
	}
	slices.Reverse(per)
	if len(per) > window {
		per = per[:window]
	}
	f.Samples = len(per)
	if len(per) > 0 {
		f.Gameweeks = per
	}
	if f.Samples < e.cfg.MinSamples {
		return f
	}

	points := make([]float64, len(per))
	for i, gw := range per {
		points[i] = float64(gw.Points)
	}
	f.raw = e.decayed(points)
	f.Status = StatusOK
	f.Score = ptr(round3(f.raw))
	f.Trend = e.trend(points)
	return f
}

// decayed is the decay-weighted mean of values ordered newest first.
func (e *Engine) decayed(values []float64) float64 {
	var sum, weights float64
	w := 1.0
	for _, v := range values {
		sum += w * v
		weights += w
		w *= e.cfg.FormDecay
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

// trend compares the mean of the newer half against the older half.
func (e *Engine) trend(newestFirst []float64) Trend {
	n := len(newestFirst)
	if n < 2 {
		return TrendSteady
	}
	mid := n / 2
	diff := mean(newestFirst[:mid]) - mean(newestFirst[mid:])
	switch {
	case cmpDesc(diff, e.cfg.TrendThreshold) <= 0:
		return TrendRising
	case cmpAsc(diff, -e.cfg.TrendThreshold) <= 0:
		return TrendFalling
	}
	return TrendSteady
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// TeamForm summarizes a team's last window settled fixtures.
func (e *Engine) TeamForm(snap *model.Snapshot, params TeamFormParams) (TeamForm, error) {
	const op = "get_team_form"
	params, err := params.Normalize(e.cfg)
	if err != nil {
		return TeamForm{}, err
	}
	team, err := resolveTeam(snap, op, params.TeamID, params.TeamName)
	if err != nil {
		return TeamForm{}, err
	}

	settled := slices.Clone(snap.SettledFixtures(team.ID))
	slices.Reverse(settled)
	if len(settled) > params.Window {
		settled = settled[:params.Window]
	}

	tf := TeamForm{
		Team:     teamRef(team),
		Status:   StatusInsufficient,
		Window:   params.Window,
		Samples:  len(settled),
		Required: e.cfg.MinSamples,
		Results:  []MatchResult{},
	}
	points := make([]float64, 0, len(settled))
	scored := make([]float64, 0, len(settled))
	conceded := make([]float64, 0, len(settled))
	for _, fx := range settled {
		opp, home, _ := fx.Opponent(team.ID)
		gf, ga, _ := fx.Result(team.ID)
		oppTeam, _ := snap.Team(opp)
		res := MatchResult{
			FixtureID:    fx.ID,
			Gameweek:     fx.Gameweek,
			OpponentID:   opp,
			Opponent:     oppTeam.ShortName,
			Home:         home,
			GoalsFor:     gf,
			GoalsAgainst: ga,
			Outcome:      outcome(gf, ga),
		}
		tf.Results = append(tf.Results, res)
		tf.Record += res.Outcome
		points = append(points, matchPoints(gf, ga))
		scored = append(scored, float64(gf))
		conceded = append(conceded, float64(ga))
	}
	if tf.Samples < e.cfg.MinSamples {
		return tf, nil
	}

	ppg, gf, ga := e.decayed(points), e.decayed(scored), e.decayed(conceded)
	tf.Status = StatusOK
	tf.PointsPerGame = ptr(round3(ppg))
	tf.GoalsFor = ptr(round3(gf))
	tf.GoalsAgainst = ptr(round3(ga))
	tf.Rating = ptr(round3(clamp(ppg/3*7+gf*1.5-ga*0.5, 0, 10)))
	tf.Trend = e.trend(points)
	return tf, nil
}

func outcome(gf, ga int) string {
	switch {
	case gf > ga:
		return "W"
	case gf < ga:
		return "L"
	}
	return "D"
}

func matchPoints(gf, ga int) float64 {
	switch {
	case gf > ga:
		return 3
	case gf == ga:
		return 1
	}
	return 0
}
