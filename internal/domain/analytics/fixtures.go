package analytics

import (
	"slices"
	"time"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

// FixtureDifficulty rates one fixture from a team's point of view, 1 (easy) to 10 (hard).
type FixtureDifficulty struct {
	FixtureID          int        `json:"fixture_id"`
	Gameweek           int        `json:"gameweek"`
	Kickoff            *time.Time `json:"kickoff,omitempty"`
	OpponentID         int        `json:"opponent_id"`
	Opponent           string     `json:"opponent"`
	Home               bool       `json:"home"`
	Difficulty         float64    `json:"difficulty"`
	UpstreamDifficulty int        `json:"upstream_difficulty,omitempty"`

	raw float64
}

// FixtureOutlook is a team's run over the next horizon gameweeks.
type FixtureOutlook struct {
	Team            TeamRef             `json:"team"`
	Player          *PlayerRef          `json:"player,omitempty"`
	Horizon         int                 `json:"horizon"`
	FromGameweek    int                 `json:"from_gameweek,omitempty"`
	ToGameweek      int                 `json:"to_gameweek,omitempty"`
	Schedule        []FixtureDifficulty `json:"schedule"`
	Ranked          []FixtureDifficulty `json:"ranked"`
	Average         *float64            `json:"average,omitempty"`
	BlankGameweeks  []int               `json:"blank_gameweeks,omitempty"`
	DoubleGameweeks []int               `json:"double_gameweeks,omitempty"`

	avg float64
}

// ScheduleRank is one team's line in the easiest-schedule table.
type ScheduleRank struct {
	Rank            int          `json:"rank"`
	Team            TeamRef      `json:"team"`
	Average         float64      `json:"average"`
	PreviousAverage *float64     `json:"previous_average,omitempty"`
	Swing           *float64     `json:"swing,omitempty"`
	Fixtures        int          `json:"fixtures"`
	BlankGameweeks  []int        `json:"blank_gameweeks,omitempty"`
	DoubleGameweeks []int        `json:"double_gameweeks,omitempty"`
	Run             []RunFixture `json:"run"`

	avg float64
}

// RunFixture is a compact fixture entry for schedule tables.
type RunFixture struct {
	Gameweek   int     `json:"gameweek"`
	Opponent   string  `json:"opponent"`
	Home       bool    `json:"home"`
	Difficulty float64 `json:"difficulty"`
}

// EasiestSchedules ranks teams by average upcoming difficulty.
type EasiestSchedules struct {
	Horizon      int            `json:"horizon"`
	FromGameweek int            `json:"from_gameweek,omitempty"`
	ToGameweek   int            `json:"to_gameweek,omitempty"`
	Teams        []ScheduleRank `json:"teams"`
	NoFixtures   []TeamRef      `json:"no_fixtures,omitempty"`
}

// strengthScale maps raw opponent strength onto 1..9 across the league.
type strengthScale struct {
	lo, hi float64
}

func venueStrength(t model.Team, home bool) float64 {
	return float64(t.Attack(home)+t.Defence(home)) / 2
}

func leagueScale(snap *model.Snapshot) strengthScale {
	s := strengthScale{}
	first := true
	for _, id := range snap.TeamIDs() {
		t, _ := snap.Team(id)
		for _, home := range []bool{true, false} {
			v := venueStrength(t, home)
			if first {
				s.lo, s.hi, first = v, v, false
				continue
			}
			s.lo, s.hi = min(s.lo, v), max(s.hi, v)
		}
	}
	return s
}

func (s strengthScale) normalize(v float64) float64 {
	if s.hi-s.lo < 1e-9 {
		return 5
	}
	return 1 + 8*(v-s.lo)/(s.hi-s.lo)
}

// difficulty rates fx for teamID: the opponent's strength at its own venue,
// blended with the upstream rating when present, shifted by home advantage.
func (e *Engine) difficulty(snap *model.Snapshot, scale strengthScale, teamID int, fx model.Fixture) FixtureDifficulty {
	opp, home, _ := fx.Opponent(teamID)
	o, _ := snap.Team(opp)

	d := scale.normalize(venueStrength(o, !home))
	upstream := fx.UpstreamDifficulty(teamID)
	if upstream >= 1 && upstream <= 5 {
		mapped := float64((upstream-1)*2 + 1)
		d = (1-e.cfg.FDRWeight)*d + e.cfg.FDRWeight*mapped
	} else {
		upstream = 0
	}
	if home {
		d -= e.cfg.HomeAdvantage
	} else {
		d += e.cfg.HomeAdvantage
	}
	d = clamp(d, 1, 10)

	return FixtureDifficulty{
		FixtureID:          fx.ID,
		Gameweek:           fx.Gameweek,
		Kickoff:            fx.Kickoff,
		OpponentID:         opp,
		Opponent:           o.ShortName,
		Home:               home,
		Difficulty:         round3(d),
		UpstreamDifficulty: upstream,
		raw:                d,
	}
}

func cmpFixtureEase(a, b FixtureDifficulty) int {
	if c := cmpAsc(a.raw, b.raw); c != 0 {
		return c
	}
	if c := cmpInt(a.Gameweek, b.Gameweek); c != 0 {
		return c
	}
	if c := cmpInt(a.OpponentID, b.OpponentID); c != 0 {
		return c
	}
	return cmpInt(a.FixtureID, b.FixtureID)
}

// horizonStart is the first gameweek still to be decided on.
func horizonStart(snap *model.Snapshot) (int, bool) {
	if gw, ok := snap.NextGameweek(); ok {
		return gw.ID, true
	}
	return 0, false
}

// outlook rates a team's unstarted fixtures in gameweeks [from, from+horizon).
func (e *Engine) outlook(snap *model.Snapshot, scale strengthScale, team model.Team, horizon int) FixtureOutlook {
	out := FixtureOutlook{
		Team:     teamRef(team),
		Horizon:  horizon,
		Schedule: []FixtureDifficulty{},
		Ranked:   []FixtureDifficulty{},
	}
	from, ok := horizonStart(snap)
	if !ok {
		return out
	}
	to := from + horizon - 1
	out.FromGameweek, out.ToGameweek = from, to

	perGameweek := map[int]int{}
	var sum float64
	for _, fx := range snap.UpcomingFixtures(team.ID, 0) {
		if fx.Gameweek < from || fx.Gameweek > to {
			continue
		}
		fd := e.difficulty(snap, scale, team.ID, fx)
		out.Schedule = append(out.Schedule, fd)
		perGameweek[fx.Gameweek]++
		sum += fd.raw
	}
	for gw := from; gw <= to; gw++ {
		if _, exists := snap.Gameweek(gw); !exists {
			break
		}
		switch n := perGameweek[gw]; {
		case n == 0:
			out.BlankGameweeks = append(out.BlankGameweeks, gw)
		case n > 1:
			out.DoubleGameweeks = append(out.DoubleGameweeks, gw)
		}
	}
	out.Ranked = slices.Clone(out.Schedule)
	slices.SortFunc(out.Ranked, cmpFixtureEase)
	if n := len(out.Schedule); n > 0 {
		out.avg = sum / float64(n)
		out.Average = ptr(round3(out.avg))
	}
	return out
}

// previousAverage rates the settled fixtures of the horizon gameweeks before from.
func (e *Engine) previousAverage(snap *model.Snapshot, scale strengthScale, teamID, from, horizon int) (float64, bool) {
	var sum float64
	n := 0
	for _, fx := range snap.SettledFixtures(teamID) {
		if fx.Gameweek < from-horizon || fx.Gameweek >= from {
			continue
		}
		sum += e.difficulty(snap, scale, teamID, fx).raw
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// FixtureDifficulty rates a team's (or a player's team's) upcoming fixtures.
func (e *Engine) FixtureDifficulty(snap *model.Snapshot, params FixtureDifficultyParams) (FixtureOutlook, error) {
	const op = "get_fixture_difficulty"
	params, err := params.Normalize(e.cfg)
	if err != nil {
		return FixtureOutlook{}, err
	}
	var player *PlayerRef
	teamID := params.TeamID
	if params.PlayerID != 0 {
		p, err := lookupPlayer(snap, op, params.PlayerID)
		if err != nil {
			return FixtureOutlook{}, err
		}
		ref := playerRef(snap, p)
		player, teamID = &ref, p.TeamID
	}
	team, err := lookupTeam(snap, op, teamID)
	if err != nil {
		return FixtureOutlook{}, err
	}
	out := e.outlook(snap, leagueScale(snap), team, params.Horizon)
	out.Player = player
	return out, nil
}

// EasiestSchedules ranks every team by average difficulty over the horizon,
// easiest first, ties by team id. Swing is the previous window's average
// minus the upcoming one, so a positive swing means the run is getting easier.
func (e *Engine) EasiestSchedules(snap *model.Snapshot, params EasiestSchedulesParams) (EasiestSchedules, error) {
	params, err := params.Normalize(e.cfg)
	if err != nil {
		return EasiestSchedules{}, err
	}
	scale := leagueScale(snap)
	out := EasiestSchedules{Horizon: params.Horizon, Teams: []ScheduleRank{}}

	for _, id := range snap.TeamIDs() {
		team, _ := snap.Team(id)
		ol := e.outlook(snap, scale, team, params.Horizon)
		out.FromGameweek, out.ToGameweek = ol.FromGameweek, ol.ToGameweek
		if ol.Average == nil {
			out.NoFixtures = append(out.NoFixtures, ol.Team)
			continue
		}
		row := ScheduleRank{
			Team:            ol.Team,
			Average:         *ol.Average,
			Fixtures:        len(ol.Schedule),
			BlankGameweeks:  ol.BlankGameweeks,
			DoubleGameweeks: ol.DoubleGameweeks,
			Run:             make([]RunFixture, 0, len(ol.Schedule)),
			avg:             ol.avg,
		}
		for _, fd := range ol.Schedule {
			row.Run = append(row.Run, RunFixture{Gameweek: fd.Gameweek, Opponent: fd.Opponent, Home: fd.Home, Difficulty: fd.Difficulty})
		}
		if prev, ok := e.previousAverage(snap, scale, id, ol.FromGameweek, params.Horizon); ok {
			row.PreviousAverage = ptr(round3(prev))
			row.Swing = ptr(round3(prev - ol.avg))
		}
		out.Teams = append(out.Teams, row)
	}

	slices.SortFunc(out.Teams, func(a, b ScheduleRank) int {
		if c := cmpAsc(a.avg, b.avg); c != 0 {
			return c
		}
		return cmpInt(a.Team.ID, b.Team.ID)
	})
	if len(out.Teams) > params.Limit {
		out.Teams = out.Teams[:params.Limit]
	}
	for i := range out.Teams {
		out.Teams[i].Rank = i + 1
	}
	return out, nil
}
