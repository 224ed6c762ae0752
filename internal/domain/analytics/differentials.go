package analytics

import (
	"slices"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

// Differential is a low-ownership player in form.
type Differential struct {
	Player        PlayerRef `json:"player"`
	Form          float64   `json:"form"`
	Trend         Trend     `json:"trend"`
	AvgDifficulty *float64  `json:"avg_difficulty,omitempty"`

	raw float64
}

// Differentials is the result of find_differentials.
type Differentials struct {
	MaxOwnership float64        `json:"max_ownership"`
	MinForm      float64        `json:"min_form"`
	Players      []Differential `json:"players"`
}

// Differentials lists available players owned by at most MaxOwnership percent
// of managers whose form is at least MinForm. Ranked by form descending,
// ownership ascending, then id.
func (e *Engine) Differentials(snap *model.Snapshot, params DifferentialParams) (Differentials, error) {
	params, err := params.Normalize(e.cfg)
	if err != nil {
		return Differentials{}, err
	}
	scale := leagueScale(snap)
	outlooks := map[int]*float64{}
	out := Differentials{MaxOwnership: params.MaxOwnership, MinForm: params.MinForm, Players: []Differential{}}

	for _, id := range snap.PlayerIDs() {
		p, _ := snap.Player(id)
		if !available(p) || cmpAsc(p.SelectedByPercent, params.MaxOwnership) > 0 {
			continue
		}
		if params.Position != model.PositionAny && p.Position != params.Position {
			continue
		}
		if params.MaxPrice > 0 && p.Price > params.MaxPrice {
			continue
		}
		f := e.formOf(snap, p, e.cfg.FormWindow)
		if !f.Sufficient() || cmpAsc(f.raw, params.MinForm) < 0 {
			continue
		}
		d := Differential{Player: f.Player, Form: *f.Score, Trend: f.Trend, raw: f.raw}
		avg, seen := outlooks[p.TeamID]
		if !seen {
			if t, ok := snap.Team(p.TeamID); ok {
				avg = e.outlook(snap, scale, t, e.cfg.FixtureHorizon).Average
			}
			outlooks[p.TeamID] = avg
		}
		d.AvgDifficulty = avg
		out.Players = append(out.Players, d)
	}

	slices.SortFunc(out.Players, func(a, b Differential) int {
		if c := cmpDesc(a.raw, b.raw); c != 0 {
			return c
		}
		if c := cmpAsc(a.Player.Ownership, b.Player.Ownership); c != 0 {
			return c
		}
		return cmpInt(a.Player.ID, b.Player.ID)
	})
	if len(out.Players) > params.Limit {
		out.Players = out.Players[:params.Limit]
	}
	return out, nil
}
