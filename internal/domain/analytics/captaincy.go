package analytics

import (
	"slices"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

// CaptaincyPick is one ranked captain option. Players without enough form
// data carry Status insufficient_data and rank after every scored player.
type CaptaincyPick struct {
	Rank     int                 `json:"rank"`
	Player   PlayerRef           `json:"player"`
	Status   Status              `json:"status"`
	Form     *float64            `json:"form,omitempty"`
	Fixtures []FixtureDifficulty `json:"fixtures"`
	Blank    bool                `json:"blank"`
	Proxy    *float64            `json:"proxy,omitempty"`

	raw float64
}

// CaptaincyPicks is the result of get_captaincy_picks.
type CaptaincyPicks struct {
	Gameweek     int             `json:"gameweek,omitempty"`
	Differential bool            `json:"differential"`
	Picks        []CaptaincyPick `json:"picks"`
}

// CaptaincyPicks orders a squad by form times next-gameweek fixture ease.
func (e *Engine) CaptaincyPicks(snap *model.Snapshot, params CaptaincyParams) (CaptaincyPicks, error) {
	const op = "get_captaincy_picks"
	params, err := params.Normalize(e.cfg)
	if err != nil {
		return CaptaincyPicks{}, err
	}
	players := make([]model.Player, 0, len(params.Squad))
	for _, id := range params.Squad {
		p, err := lookupPlayer(snap, op, id)
		if err != nil {
			return CaptaincyPicks{}, err
		}
		players = append(players, p)
	}
	picks := e.rankCaptains(snap, players, params.Differential)
	if len(picks) > params.Limit {
		picks = picks[:params.Limit]
	}
	out := CaptaincyPicks{Differential: params.Differential, Picks: picks}
	if gw, ok := horizonStart(snap); ok {
		out.Gameweek = gw
	}
	return out, nil
}

// rankCaptains scores each player as form x sum((11 - difficulty) / 10) over
// their next-gameweek fixtures. A blank gameweek scores zero.
func (e *Engine) rankCaptains(snap *model.Snapshot, players []model.Player, differential bool) []CaptaincyPick {
	scale := leagueScale(snap)
	next, hasNext := horizonStart(snap)

	picks := make([]CaptaincyPick, 0, len(players))
	for _, p := range players {
		pick := CaptaincyPick{
			Player:   playerRef(snap, p),
			Status:   StatusInsufficient,
			Fixtures: []FixtureDifficulty{},
		}
		var ease float64
		if hasNext {
			for _, fx := range snap.UpcomingFixtures(p.TeamID, 0) {
				if fx.Gameweek != next {
					continue
				}
				fd := e.difficulty(snap, scale, p.TeamID, fx)
				pick.Fixtures = append(pick.Fixtures, fd)
				ease += (11 - fd.raw) / 10
			}
		}
		pick.Blank = len(pick.Fixtures) == 0

		if f := e.formOf(snap, p, e.cfg.FormWindow); f.Sufficient() {
			pick.Status = StatusOK
			pick.Form = f.Score
			pick.raw = f.raw * ease
			pick.Proxy = ptr(round3(pick.raw))
		}
		picks = append(picks, pick)
	}

	slices.SortFunc(picks, func(a, b CaptaincyPick) int {
		if a.Status != b.Status {
			if a.Status == StatusOK {
				return -1
			}
			return 1
		}
		if c := cmpDesc(a.raw, b.raw); c != 0 {
			return c
		}
		own := cmpDesc(a.Player.Ownership, b.Player.Ownership)
		if differential {
			own = -own
		}
		if own != 0 {
			return own
		}
		return cmpInt(a.Player.ID, b.Player.ID)
	})
	for i := range picks {
		picks[i].Rank = i + 1
	}
	return picks
}
