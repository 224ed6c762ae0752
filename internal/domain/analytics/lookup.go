package analytics

import (
	"slices"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

const similarityThreshold = 0.7

// PlayerInfo is everything known about one player at the committed epoch.
type PlayerInfo struct {
	Player       model.Player       `json:"player"`
	Team         TeamRef            `json:"team"`
	MatchedName  string             `json:"matched_name,omitempty"`
	Available    bool               `json:"available"`
	Form         FormScore          `json:"form"`
	Fixtures     FixtureOutlook     `json:"fixtures"`
	PriceHistory []model.PricePoint `json:"price_history"`
}

// PlayerHit is one search result.
type PlayerHit struct {
	PlayerRef
	UpstreamForm float64 `json:"upstream_form"`
	TotalPoints  int     `json:"total_points"`
	Distance     *int    `json:"distance,omitempty"`
}

// PlayerSearch is a filtered, ranked player list.
type PlayerSearch struct {
	Query   string      `json:"query,omitempty"`
	Matched int         `json:"matched"`
	Players []PlayerHit `json:"players"`
}

// TeamHit is one team search result.
type TeamHit struct {
	TeamRef
	Distance int `json:"distance"`
}

// TeamSearch is a ranked team list.
type TeamSearch struct {
	Query string    `json:"query"`
	Teams []TeamHit `json:"teams"`
}

// nameDistance scores query against each name form: the edit distance for a
// folded subsequence match or a near spelling. Exact matches score 0.
func nameDistance(query string, forms ...string) (int, bool) {
	best, found := 0, false
	for _, form := range forms {
		form = normName(form)
		if form == "" {
			continue
		}
		d := fuzzy.RankMatchNormalizedFold(query, form)
		if d < 0 {
			lev := fuzzy.LevenshteinDistance(query, form)
			if 1-float64(lev)/float64(max(len(query), len(form))) >= similarityThreshold {
				d = lev
			}
		}
		if d >= 0 && (!found || d < best) {
			best, found = d, true
		}
	}
	return best, found
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}

func playerForms(p model.Player) []string {
	return []string{p.WebName, p.FullName(), p.SecondName}
}

// resolvePlayer finds the closest player name; ties go to the lower id.
func resolvePlayer(snap *model.Snapshot, op, name string) (model.Player, error) {
	bestID, bestDist := 0, 0
	for _, id := range snap.PlayerIDs() {
		p, _ := snap.Player(id)
		d, ok := nameDistance(name, playerForms(p)...)
		if ok && (bestID == 0 || d < bestDist) {
			bestID, bestDist = id, d
		}
	}
	if bestID == 0 {
		return model.Player{}, fault.Invalid(op, "name", "no player matches %q", name).With("name", name)
	}
	p, _ := snap.Player(bestID)
	return p, nil
}

// resolveTeam looks a team up by id, or by closest name when id is zero.
func resolveTeam(snap *model.Snapshot, op string, id int, name string) (model.Team, error) {
	if id != 0 {
		return lookupTeam(snap, op, id)
	}
	bestID, bestDist := 0, 0
	for _, tid := range snap.TeamIDs() {
		t, _ := snap.Team(tid)
		d, ok := nameDistance(name, t.Name, t.ShortName)
		if ok && (bestID == 0 || d < bestDist) {
			bestID, bestDist = tid, d
		}
	}
	if bestID == 0 {
		return model.Team{}, fault.Invalid(op, "team_name", "no team matches %q", name).With("team_name", name)
	}
	t, _ := snap.Team(bestID)
	return t, nil
}

// PlayerInfo looks a player up by id or name.
func (e *Engine) PlayerInfo(snap *model.Snapshot, params PlayerLookup) (PlayerInfo, error) {
	const op = "get_player_info"
	params, err := params.Normalize(e.cfg)
	if err != nil {
		return PlayerInfo{}, err
	}
	var p model.Player
	if params.PlayerID != 0 {
		p, err = lookupPlayer(snap, op, params.PlayerID)
	} else {
		p, err = resolvePlayer(snap, op, params.Name)
	}
	if err != nil {
		return PlayerInfo{}, err
	}
	team, err := lookupTeam(snap, op, p.TeamID)
	if err != nil {
		return PlayerInfo{}, err
	}

	info := PlayerInfo{
		Player:       p,
		Team:         teamRef(team),
		Available:    available(p),
		Form:         e.formOf(snap, p, e.cfg.FormWindow),
		Fixtures:     e.outlook(snap, leagueScale(snap), team, e.cfg.FixtureHorizon),
		PriceHistory: slices.Clone(snap.PriceHistory(p.ID)),
	}
	if params.Name != "" {
		info.MatchedName = p.FullName()
	}
	if info.PriceHistory == nil {
		info.PriceHistory = []model.PricePoint{}
	}
	return info, nil
}

// SearchPlayers filters players and ranks them by name distance when a query
// is given, then upstream form descending, then id.
func (e *Engine) SearchPlayers(snap *model.Snapshot, params SearchPlayersParams) (PlayerSearch, error) {
	params, err := params.Normalize(e.cfg)
	if err != nil {
		return PlayerSearch{}, err
	}
	out := PlayerSearch{Query: params.Query, Players: []PlayerHit{}}
	var hits []PlayerHit
	for _, id := range snap.PlayerIDs() {
		p, _ := snap.Player(id)
		if params.TeamID != 0 && p.TeamID != params.TeamID {
			continue
		}
		if params.Position != model.PositionAny && p.Position != params.Position {
			continue
		}
		if params.MaxPrice > 0 && p.Price > params.MaxPrice {
			continue
		}
		if cmpAsc(p.UpstreamForm, params.MinForm) < 0 {
			continue
		}
		hit := PlayerHit{PlayerRef: playerRef(snap, p), UpstreamForm: p.UpstreamForm, TotalPoints: p.TotalPoints}
		if params.Query != "" {
			d, ok := nameDistance(params.Query, playerForms(p)...)
			if !ok {
				continue
			}
			hit.Distance = &d
		}
		hits = append(hits, hit)
	}
	slices.SortFunc(hits, func(a, b PlayerHit) int {
		if a.Distance != nil && b.Distance != nil {
			if c := cmpInt(*a.Distance, *b.Distance); c != 0 {
				return c
			}
		}
		if c := cmpDesc(a.UpstreamForm, b.UpstreamForm); c != 0 {
			return c
		}
		return cmpInt(a.ID, b.ID)
	})
	out.Matched = len(hits)
	if len(hits) > params.Limit {
		hits = hits[:params.Limit]
	}
	if hits != nil {
		out.Players = hits
	}
	return out, nil
}

// SearchTeams ranks teams by name distance, then id.
func (e *Engine) SearchTeams(snap *model.Snapshot, params SearchTeamsParams) (TeamSearch, error) {
	params, err := params.Normalize(e.cfg)
	if err != nil {
		return TeamSearch{}, err
	}
	out := TeamSearch{Query: params.Query, Teams: []TeamHit{}}
	for _, id := range snap.TeamIDs() {
		t, _ := snap.Team(id)
		if d, ok := nameDistance(params.Query, t.Name, t.ShortName, firstWord(t.Name)); ok {
			out.Teams = append(out.Teams, TeamHit{TeamRef: teamRef(t), Distance: d})
		}
	}
	slices.SortFunc(out.Teams, func(a, b TeamHit) int {
		if c := cmpInt(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmpInt(a.ID, b.ID)
	})
	if len(out.Teams) > params.Limit {
		out.Teams = out.Teams[:params.Limit]
	}
	return out, nil
}
