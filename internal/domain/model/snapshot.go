package model

import (
	"sort"
	"time"
)

// Snapshot is the complete canonical state of one committed epoch.
// It is immutable once handed to a store; readers share it without locking.
type Snapshot struct {
	Epoch       Epoch     `json:"epoch"`
	RunID       string    `json:"run_id"`
	CommittedAt time.Time `json:"committed_at"`

	Teams     map[int]Team             `json:"teams"`
	Players   map[int]Player           `json:"players"`
	Gameweeks []Gameweek               `json:"gameweeks"`
	Fixtures  map[int]Fixture          `json:"fixtures"`
	History   map[int][]PlayerGameweek `json:"history"`
	Prices    map[int][]PricePoint     `json:"prices"`

	idx *snapshotIndex
}

type snapshotIndex struct {
	teamIDs        []int
	playerIDs      []int
	fixturesByTeam map[int][]Fixture
}

// NewSnapshot returns an empty snapshot for epoch e.
func NewSnapshot(e Epoch) *Snapshot {
	return &Snapshot{
		Epoch:    e,
		Teams:    map[int]Team{},
		Players:  map[int]Player{},
		Fixtures: map[int]Fixture{},
		History:  map[int][]PlayerGameweek{},
		Prices:   map[int][]PricePoint{},
	}
}

// Seal sorts the ordered collections and builds lookup indexes.
// Stores call it before publishing; it must not be called concurrently with readers.
func (s *Snapshot) Seal() *Snapshot {
	sort.Slice(s.Gameweeks, func(i, j int) bool { return s.Gameweeks[i].ID < s.Gameweeks[j].ID })
	for id := range s.History {
		SortHistory(s.History[id])
	}
	for id := range s.Prices {
		pts := s.Prices[id]
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].Epoch < pts[j].Epoch })
	}
	s.idx = s.buildIndex()
	return s
}

// SortHistory orders appearances by gameweek, then fixture.
func SortHistory(rows []PlayerGameweek) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Gameweek != rows[j].Gameweek {
			return rows[i].Gameweek < rows[j].Gameweek
		}
		return rows[i].FixtureID < rows[j].FixtureID
	})
}

func (s *Snapshot) index() *snapshotIndex {
	if s.idx != nil {
		return s.idx
	}
	return s.buildIndex()
}

func (s *Snapshot) buildIndex() *snapshotIndex {
	idx := &snapshotIndex{
		teamIDs:        sortedKeys(s.Teams),
		playerIDs:      sortedKeys(s.Players),
		fixturesByTeam: make(map[int][]Fixture, len(s.Teams)),
	}
	for _, id := range sortedKeys(s.Fixtures) {
		f := s.Fixtures[id]
		idx.fixturesByTeam[f.HomeTeamID] = append(idx.fixturesByTeam[f.HomeTeamID], f)
		idx.fixturesByTeam[f.AwayTeamID] = append(idx.fixturesByTeam[f.AwayTeamID], f)
	}
	for team := range idx.fixturesByTeam {
		SortSchedule(idx.fixturesByTeam[team])
	}
	return idx
}

// SortSchedule orders fixtures by gameweek, kickoff (unknown last), then id.
func SortSchedule(fs []Fixture) {
	sort.Slice(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.Gameweek != b.Gameweek {
			return a.Gameweek < b.Gameweek
		}
		switch {
		case a.Kickoff != nil && b.Kickoff != nil && !a.Kickoff.Equal(*b.Kickoff):
			return a.Kickoff.Before(*b.Kickoff)
		case a.Kickoff != nil && b.Kickoff == nil:
			return true
		case a.Kickoff == nil && b.Kickoff != nil:
			return false
		}
		return a.ID < b.ID
	})
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Team looks up a team by id.
func (s *Snapshot) Team(id int) (Team, bool) {
	t, ok := s.Teams[id]
	return t, ok
}

// Player looks up a player by id.
func (s *Snapshot) Player(id int) (Player, bool) {
	p, ok := s.Players[id]
	return p, ok
}

// TeamIDs returns all team ids in ascending order.
func (s *Snapshot) TeamIDs() []int {
	return s.index().teamIDs
}

// PlayerIDs returns all player ids in ascending order.
func (s *Snapshot) PlayerIDs() []int {
	return s.index().playerIDs
}

// Gameweek looks up a gameweek by id.
func (s *Snapshot) Gameweek(id int) (Gameweek, bool) {
	i := sort.Search(len(s.Gameweeks), func(i int) bool { return s.Gameweeks[i].ID >= id })
	if i < len(s.Gameweeks) && s.Gameweeks[i].ID == id {
		return s.Gameweeks[i], true
	}
	return Gameweek{}, false
}

// CurrentGameweek returns the gameweek flagged current, if any.
func (s *Snapshot) CurrentGameweek() (Gameweek, bool) {
	for _, gw := range s.Gameweeks {
		if gw.IsCurrent {
			return gw, true
		}
	}
	return Gameweek{}, false
}

// NextGameweek returns the gameweek flagged next, or else the first open one.
func (s *Snapshot) NextGameweek() (Gameweek, bool) {
	for _, gw := range s.Gameweeks {
		if gw.IsNext {
			return gw, true
		}
	}
	for _, gw := range s.Gameweeks {
		if gw.Status == GameweekOpen {
			return gw, true
		}
	}
	return Gameweek{}, false
}

// GameweekAt returns the first gameweek whose deadline is at or after t.
func (s *Snapshot) GameweekAt(t time.Time) (Gameweek, bool) {
	for _, gw := range s.Gameweeks {
		if !gw.Deadline.Before(t) {
			return gw, true
		}
	}
	return Gameweek{}, false
}

// TeamFixtures returns every fixture of a team in schedule order.
func (s *Snapshot) TeamFixtures(teamID int) []Fixture {
	return s.index().fixturesByTeam[teamID]
}

// UpcomingFixtures returns up to limit fixtures of a team that have not kicked off.
// A limit of zero or less returns all of them.
func (s *Snapshot) UpcomingFixtures(teamID, limit int) []Fixture {
	var out []Fixture
	for _, f := range s.TeamFixtures(teamID) {
		if f.Started || f.Finished {
			continue
		}
		out = append(out, f)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// SettledFixtures returns the finished fixtures of a team in schedule order.
func (s *Snapshot) SettledFixtures(teamID int) []Fixture {
	var out []Fixture
	for _, f := range s.TeamFixtures(teamID) {
		if _, _, ok := f.Result(teamID); ok {
			out = append(out, f)
		}
	}
	return out
}

// PlayerHistory returns a player's appearances ordered by gameweek.
func (s *Snapshot) PlayerHistory(id int) []PlayerGameweek {
	return s.History[id]
}

// PriceHistory returns a player's price and ownership series.
func (s *Snapshot) PriceHistory(id int) []PricePoint {
	return s.Prices[id]
}

// Counts returns entity counts keyed by entity name.
func (s *Snapshot) Counts() map[string]int {
	history, prices := 0, 0
	for _, rows := range s.History {
		history += len(rows)
	}
	for _, pts := range s.Prices {
		prices += len(pts)
	}
	return map[string]int{
		"teams":     len(s.Teams),
		"players":   len(s.Players),
		"gameweeks": len(s.Gameweeks),
		"fixtures":  len(s.Fixtures),
		"history":   history,
		"prices":    prices,
	}
}

// WithoutEpochs returns a deep copy with entity epoch stamps and run metadata
// cleared, so two snapshots can be compared by content alone.
func (s *Snapshot) WithoutEpochs() *Snapshot {
	out := NewSnapshot(0)
	for id, t := range s.Teams {
		t.Epoch = 0
		out.Teams[id] = t
	}
	for id, p := range s.Players {
		p.Epoch = 0
		out.Players[id] = p
	}
	for _, gw := range s.Gameweeks {
		gw.Epoch = 0
		out.Gameweeks = append(out.Gameweeks, gw)
	}
	for id, f := range s.Fixtures {
		f.Epoch = 0
		out.Fixtures[id] = f
	}
	for id, rows := range s.History {
		cp := make([]PlayerGameweek, len(rows))
		for i, r := range rows {
			r.Epoch = 0
			cp[i] = r
		}
		out.History[id] = cp
	}
	for id, pts := range s.Prices {
		out.Prices[id] = append([]PricePoint(nil), pts...)
	}
	return out.Seal()
}
