package analytics

import (
	"fmt"
	"slices"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

// Verdict classifies a matchup history.
type Verdict string

const (
	VerdictBogey            Verdict = "bogey"
	VerdictFavored          Verdict = "favored"
	VerdictNeutral          Verdict = "neutral"
	VerdictNotEnoughHistory Verdict = "not_enough_history"
)

var verdictRank = map[Verdict]int{ //nolint:gochecknoglobals // lookup table
	VerdictBogey:            0,
	VerdictFavored:          1,
	VerdictNeutral:          2,
	VerdictNotEnoughHistory: 3,
}

// OpponentVerdict is the history against one opponent.
type OpponentVerdict struct {
	Opponent   TeamRef  `json:"opponent"`
	Verdict    Verdict  `json:"verdict"`
	Encounters int      `json:"encounters"`
	Required   int      `json:"required"`
	Average    *float64 `json:"average,omitempty"`
	Delta      *float64 `json:"delta,omitempty"`
	Record     string   `json:"record,omitempty"`

	signal float64
}

// BogeyReport is the result of check_bogey_teams. For a player Average is
// points per appearance against the opponent and Delta its difference from
// Baseline; for a team Average is points per game.
type BogeyReport struct {
	Player      *PlayerRef        `json:"player,omitempty"`
	Team        *TeamRef          `json:"team,omitempty"`
	Appearances int               `json:"appearances"`
	Baseline    *float64          `json:"baseline,omitempty"`
	Verdicts    []OpponentVerdict `json:"verdicts"`
}

type tally struct {
	n                   int
	sum                 float64
	wins, draws, losses int
}

// BogeyTeams classifies a player's or team's history per opponent. Verdicts
// are ordered bogey, favored, neutral, then not enough history; within a
// class the strongest signal comes first, then opponent id.
func (e *Engine) BogeyTeams(snap *model.Snapshot, params BogeyParams) (BogeyReport, error) {
	const op = "check_bogey_teams"
	params, err := params.Normalize(e.cfg)
	if err != nil {
		return BogeyReport{}, err
	}
	if params.OpponentID != 0 {
		if _, err := lookupTeam(snap, op, params.OpponentID); err != nil {
			return BogeyReport{}, err
		}
	}

	var report BogeyReport
	if params.PlayerID != 0 {
		report, err = e.playerBogeys(snap, op, params)
	} else {
		report, err = e.teamBogeys(snap, op, params)
	}
	if err != nil {
		return BogeyReport{}, err
	}

	slices.SortFunc(report.Verdicts, func(a, b OpponentVerdict) int {
		if c := cmpInt(verdictRank[a.Verdict], verdictRank[b.Verdict]); c != 0 {
			return c
		}
		var c int
		switch a.Verdict {
		case VerdictBogey:
			c = cmpAsc(a.signal, b.signal)
		case VerdictFavored:
			c = cmpDesc(a.signal, b.signal)
		}
		if c != 0 {
			return c
		}
		return cmpInt(a.Opponent.ID, b.Opponent.ID)
	})
	return report, nil
}

// opponents lists the opponents to judge: the one asked for, or every one met.
func opponents(tallies map[int]*tally, only int) []int {
	if only != 0 {
		return []int{only}
	}
	ids := make([]int, 0, len(tallies))
	for id := range tallies {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (e *Engine) playerBogeys(snap *model.Snapshot, op string, params BogeyParams) (BogeyReport, error) {
	p, err := lookupPlayer(snap, op, params.PlayerID)
	if err != nil {
		return BogeyReport{}, err
	}
	ref := playerRef(snap, p)
	report := BogeyReport{Player: &ref, Verdicts: []OpponentVerdict{}}

	tallies := map[int]*tally{}
	var total float64
	for _, row := range snap.PlayerHistory(p.ID) {
		if row.Minutes <= 0 {
			continue
		}
		report.Appearances++
		total += float64(row.Points)
		t := tallies[row.OpponentTeamID]
		if t == nil {
			t = &tally{}
			tallies[row.OpponentTeamID] = t
		}
		t.n++
		t.sum += float64(row.Points)
	}
	var baseline float64
	if report.Appearances > 0 {
		baseline = total / float64(report.Appearances)
		report.Baseline = ptr(round3(baseline))
	}

	for _, oppID := range opponents(tallies, params.OpponentID) {
		opp, _ := snap.Team(oppID)
		v := OpponentVerdict{Opponent: teamRef(opp), Verdict: VerdictNotEnoughHistory, Required: params.MinEncounters}
		if t := tallies[oppID]; t != nil {
			v.Encounters = t.n
			avg := t.sum / float64(t.n)
			v.Average = ptr(round3(avg))
			if t.n >= params.MinEncounters {
				v.signal = avg - baseline
				v.Delta = ptr(round3(v.signal))
				switch {
				case cmpAsc(v.signal, -e.cfg.BogeyPointsDelta) <= 0:
					v.Verdict = VerdictBogey
				case cmpDesc(v.signal, e.cfg.BogeyPointsDelta) <= 0:
					v.Verdict = VerdictFavored
				default:
					v.Verdict = VerdictNeutral
				}
			}
		}
		report.Verdicts = append(report.Verdicts, v)
	}
	return report, nil
}

func (e *Engine) teamBogeys(snap *model.Snapshot, op string, params BogeyParams) (BogeyReport, error) {
	team, err := lookupTeam(snap, op, params.TeamID)
	if err != nil {
		return BogeyReport{}, err
	}
	ref := teamRef(team)
	report := BogeyReport{Team: &ref, Verdicts: []OpponentVerdict{}}

	tallies := map[int]*tally{}
	for _, fx := range snap.SettledFixtures(team.ID) {
		opp, _, _ := fx.Opponent(team.ID)
		gf, ga, _ := fx.Result(team.ID)
		t := tallies[opp]
		if t == nil {
			t = &tally{}
			tallies[opp] = t
		}
		report.Appearances++
		t.n++
		t.sum += matchPoints(gf, ga)
		switch outcome(gf, ga) {
		case "W":
			t.wins++
		case "D":
			t.draws++
		default:
			t.losses++
		}
	}

	for _, oppID := range opponents(tallies, params.OpponentID) {
		opp, _ := snap.Team(oppID)
		v := OpponentVerdict{Opponent: teamRef(opp), Verdict: VerdictNotEnoughHistory, Required: params.MinEncounters}
		if t := tallies[oppID]; t != nil {
			v.Encounters = t.n
			v.Record = fmt.Sprintf("%d-%d-%d", t.wins, t.draws, t.losses)
			ppg := t.sum / float64(t.n)
			v.Average = ptr(round3(ppg))
			if t.n >= params.MinEncounters {
				v.signal = ppg
				switch {
				case cmpAsc(ppg, e.cfg.BogeyTeamPPG) <= 0:
					v.Verdict = VerdictBogey
				case cmpDesc(ppg, e.cfg.FavoredTeamPPG) <= 0:
					v.Verdict = VerdictFavored
				default:
					v.Verdict = VerdictNeutral
				}
			}
		}
		report.Verdicts = append(report.Verdicts, v)
	}
	return report, nil
}
