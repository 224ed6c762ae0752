package analytics

import (
	"fmt"
	"slices"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

// toughRun is the average difficulty above which a run of fixtures is flagged.
const toughRun = 6.5

// ConcernKind classifies a squad issue.
type ConcernKind string

const (
	ConcernUnavailable ConcernKind = "unavailable"
	ConcernDoubtful    ConcernKind = "doubtful"
	ConcernNoFormData  ConcernKind = "insufficient_data"
	ConcernFallingForm ConcernKind = "falling_form"
	ConcernToughRun    ConcernKind = "tough_fixtures"
	ConcernBlank       ConcernKind = "blank_gameweek"
	ConcernClubLimit   ConcernKind = "club_limit"
	ConcernSquadSize   ConcernKind = "squad_size"
)

// Concern is one issue found in a squad.
type Concern struct {
	Kind     ConcernKind `json:"kind"`
	PlayerID int         `json:"player_id,omitempty"`
	TeamID   int         `json:"team_id,omitempty"`
	Message  string      `json:"message"`
}

// SquadMember is one player's line in a team analysis.
type SquadMember struct {
	Player        PlayerRef    `json:"player"`
	Available     bool         `json:"available"`
	News          string       `json:"news,omitempty"`
	FormStatus    Status       `json:"form_status"`
	Form          *float64     `json:"form,omitempty"`
	Trend         Trend        `json:"trend,omitempty"`
	AvgDifficulty *float64     `json:"avg_difficulty,omitempty"`
	Fixtures      []RunFixture `json:"fixtures"`
}

// SquadAnalysis is the result of analyze_my_team.
type SquadAnalysis struct {
	Gameweek  int             `json:"gameweek,omitempty"`
	Horizon   int             `json:"horizon"`
	Size      int             `json:"size"`
	Value     model.Price     `json:"value"`
	Members   []SquadMember   `json:"members"`
	Concerns  []Concern       `json:"concerns"`
	Captaincy []CaptaincyPick `json:"captaincy"`
}

// AnalyzeSquad reviews each player's availability, form and run of fixtures,
// then flags squad-level issues and proposes the top three captains. Members
// are ordered by position, then id.
func (e *Engine) AnalyzeSquad(snap *model.Snapshot, params SquadParams) (SquadAnalysis, error) {
	const op = "analyze_my_team"
	params, err := params.Normalize(e.cfg)
	if err != nil {
		return SquadAnalysis{}, err
	}
	players := make([]model.Player, 0, len(params.Squad))
	for _, id := range params.Squad {
		p, err := lookupPlayer(snap, op, id)
		if err != nil {
			return SquadAnalysis{}, err
		}
		players = append(players, p)
	}
	slices.SortFunc(players, func(a, b model.Player) int {
		if c := cmpInt(int(a.Position), int(b.Position)); c != 0 {
			return c
		}
		return cmpInt(a.ID, b.ID)
	})

	out := SquadAnalysis{
		Horizon:   params.Horizon,
		Size:      len(players),
		Members:   make([]SquadMember, 0, len(players)),
		Concerns:  []Concern{},
		Captaincy: []CaptaincyPick{},
	}
	next, hasNext := horizonStart(snap)
	if hasNext {
		out.Gameweek = next
	}

	scale := leagueScale(snap)
	clubs := map[int]int{}
	for _, p := range players {
		out.Value += p.Price
		clubs[p.TeamID]++

		f := e.formOf(snap, p, e.cfg.FormWindow)
		m := SquadMember{
			Player:     f.Player,
			Available:  available(p),
			News:       p.News,
			FormStatus: f.Status,
			Form:       f.Score,
			Trend:      f.Trend,
			Fixtures:   []RunFixture{},
		}
		var ol FixtureOutlook
		if t, ok := snap.Team(p.TeamID); ok {
			ol = e.outlook(snap, scale, t, params.Horizon)
			m.AvgDifficulty = ol.Average
			for _, fd := range ol.Schedule {
				m.Fixtures = append(m.Fixtures, RunFixture{Gameweek: fd.Gameweek, Opponent: fd.Opponent, Home: fd.Home, Difficulty: fd.Difficulty})
			}
		}
		out.Members = append(out.Members, m)
		out.Concerns = append(out.Concerns, e.memberConcerns(p, f, ol, next, hasNext)...)
	}

	clubIDs := make([]int, 0, len(clubs))
	for id := range clubs {
		clubIDs = append(clubIDs, id)
	}
	slices.Sort(clubIDs)
	for _, id := range clubIDs {
		if n := clubs[id]; n > e.cfg.ClubLimit {
			t, _ := snap.Team(id)
			out.Concerns = append(out.Concerns, Concern{
				Kind:    ConcernClubLimit,
				TeamID:  id,
				Message: fmt.Sprintf("%d players from %s, the limit is %d", n, t.ShortName, e.cfg.ClubLimit),
			})
		}
	}
	if out.Size != squadSize {
		out.Concerns = append(out.Concerns, Concern{
			Kind:    ConcernSquadSize,
			Message: fmt.Sprintf("squad has %d players, a full squad has %d", out.Size, squadSize),
		})
	}

	captains := e.rankCaptains(snap, players, false)
	if len(captains) > 3 {
		captains = captains[:3]
	}
	out.Captaincy = captains
	return out, nil
}

func (e *Engine) memberConcerns(p model.Player, f FormScore, ol FixtureOutlook, next int, hasNext bool) []Concern {
	var out []Concern
	add := func(kind ConcernKind, format string, args ...any) {
		out = append(out, Concern{Kind: kind, PlayerID: p.ID, Message: p.WebName + ": " + fmt.Sprintf(format, args...)})
	}
	switch {
	case !available(p):
		add(ConcernUnavailable, "%s", newsOr(p, "not expected to play"))
	case p.Status == model.Doubtful:
		add(ConcernDoubtful, "%s", newsOr(p, "fitness doubt"))
	}
	if !f.Sufficient() {
		add(ConcernNoFormData, "%d gameweeks played, %d needed for a form score", f.Samples, f.Required)
	} else if f.Trend == TrendFalling {
		add(ConcernFallingForm, "form is falling (%.1f)", *f.Score)
	}
	if ol.Average != nil && cmpDesc(ol.avg, toughRun) <= 0 {
		add(ConcernToughRun, "average difficulty %.1f over the next %d gameweeks", *ol.Average, ol.Horizon)
	}
	if hasNext && slices.Contains(ol.BlankGameweeks, next) {
		add(ConcernBlank, "no fixture in gameweek %d", next)
	}
	return out
}

func newsOr(p model.Player, fallback string) string {
	if p.News != "" {
		return p.News
	}
	return fallback
}
