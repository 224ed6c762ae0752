package analytics_test

import (
	"time"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/analytics"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

// The test league has four clubs. Gameweeks 1-5 are settled, 6 is next and
// Burnley and Aston Villa blank in it.
const (
	ARS = 1
	AVL = 2
	BUR = 3
	CHE = 4
)

var firstDeadline = time.Date(2025, 8, 15, 17, 30, 0, 0, time.UTC)

func deadline(gw int) time.Time {
	return firstDeadline.AddDate(0, 0, 7*(gw-1))
}

type result struct{ home, away int }

type pairing struct {
	gw, home, away int
	score          *result
}

var tier = map[int]int{ARS: 5, CHE: 4, AVL: 3, BUR: 2}

var schedule = []pairing{
	{1, ARS, AVL, &result{2, 0}}, {1, BUR, CHE, &result{1, 1}},
	{2, ARS, BUR, &result{3, 0}}, {2, AVL, CHE, &result{1, 2}},
	{3, ARS, CHE, &result{1, 1}}, {3, AVL, BUR, &result{2, 0}},
	{4, AVL, ARS, &result{0, 1}}, {4, CHE, BUR, &result{2, 0}},
	{5, BUR, ARS, &result{0, 2}}, {5, CHE, AVL, &result{1, 1}},
	{6, CHE, ARS, nil},
	{7, ARS, AVL, nil}, {7, BUR, CHE, nil},
	{8, ARS, BUR, nil}, {8, AVL, CHE, nil},
}

func fixtureID(gw, home int) int { return gw*100 + home }

func clubs() []model.Team {
	return []model.Team{
		{ID: ARS, Name: "Arsenal", ShortName: "ARS", AttackHome: 1350, AttackAway: 1330, DefenceHome: 1340, DefenceAway: 1320},
		{ID: AVL, Name: "Aston Villa", ShortName: "AVL", AttackHome: 1200, AttackAway: 1170, DefenceHome: 1180, DefenceAway: 1150},
		{ID: BUR, Name: "Burnley", ShortName: "BUR", AttackHome: 1010, AttackAway: 990, DefenceHome: 1030, DefenceAway: 1000},
		{ID: CHE, Name: "Chelsea", ShortName: "CHE", AttackHome: 1260, AttackAway: 1240, DefenceHome: 1270, DefenceAway: 1250},
	}
}

type squadEntry struct {
	id        int
	first     string
	second    string
	web       string
	team      int
	pos       model.Position
	price     model.Price
	ownership float64
	status    model.Availability
	points    []int // gameweek 1 onwards
}

func roster() []squadEntry {
	return []squadEntry{
		{10, "Bukayo", "Saka", "Saka", ARS, model.Midfielder, 100, 30, model.Available, []int{6, 8, 5, 10, 9}},
		{11, "Kai", "Havertz", "Havertz", ARS, model.Forward, 80, 5, model.Available, []int{2, 3, 8, 9, 10}},
		{12, "Declan", "Rice", "Rice", ARS, model.Midfielder, 65, 8, model.Available, []int{4, 4}},
		{13, "Gabriel", "Martinelli", "Martinelli", ARS, model.Midfielder, 70, 1, model.Doubtful, []int{5, 5, 5, 5, 5}},
		{14, "Martin", "Odegaard", "Odegaard", ARS, model.Midfielder, 85, 20, model.Available, []int{8, 8, 8, 8, 8}},
		{20, "Ollie", "Watkins", "Watkins", AVL, model.Forward, 90, 12, model.Available, []int{12, 8, 2, 9, 1}},
		{30, "Lyle", "Foster", "Foster", BUR, model.Forward, 55, 2, model.Available, []int{6, 6, 6, 6, 6}},
		{40, "Cole", "Palmer", "Palmer", CHE, model.Midfielder, 105, 40, model.Available, []int{0, 0, 0, 10, 10}},
		{41, "Noni", "Madueke", "Madueke", CHE, model.Midfielder, 65, 3, model.Injured, []int{7, 7, 7, 7, 7}},
		{50, "James", "Maddison", "Maddison", AVL, model.Midfielder, 80, 15, model.Available, []int{7, 7, 7, 7, 7}},
		{51, "Anthony", "Gordon", "Gordon", BUR, model.Midfielder, 85, 9, model.Available, []int{9, 9, 9, 9, 9}},
	}
}

func league() *model.Snapshot {
	snap := model.NewSnapshot(7)
	for _, t := range clubs() {
		snap.Teams[t.ID] = t
	}
	for gw := 1; gw <= 8; gw++ {
		g := model.Gameweek{ID: gw, Name: "Gameweek", Deadline: deadline(gw), Status: model.GameweekOpen}
		switch {
		case gw <= 5:
			g.Status = model.GameweekSettled
			g.IsCurrent = gw == 5
		case gw == 6:
			g.IsNext = true
		}
		snap.Gameweeks = append(snap.Gameweeks, g)
	}

	byTeamGW := map[[2]int]model.Fixture{}
	for _, p := range schedule {
		kickoff := deadline(p.gw).Add(20 * time.Hour)
		fx := model.Fixture{
			ID:             fixtureID(p.gw, p.home),
			Gameweek:       p.gw,
			HomeTeamID:     p.home,
			AwayTeamID:     p.away,
			Kickoff:        &kickoff,
			HomeDifficulty: tier[p.away],
			AwayDifficulty: tier[p.home],
		}
		if p.score != nil {
			fx.Started, fx.Finished = true, true
			fx.HomeScore, fx.AwayScore = &p.score.home, &p.score.away
		}
		snap.Fixtures[fx.ID] = fx
		byTeamGW[[2]int{p.home, p.gw}] = fx
		byTeamGW[[2]int{p.away, p.gw}] = fx
	}

	for _, e := range roster() {
		snap.Players[e.id] = model.Player{
			ID:                e.id,
			FirstName:         e.first,
			SecondName:        e.second,
			WebName:           e.web,
			TeamID:            e.team,
			Position:          e.pos,
			Price:             e.price,
			SelectedByPercent: e.ownership,
			UpstreamForm:      float64(e.points[len(e.points)-1]),
			Status:            e.status,
		}
		for i, pts := range e.points {
			gw := i + 1
			if e.id == 40 && gw <= 3 {
				continue
			}
			fx := byTeamGW[[2]int{e.team, gw}]
			opp, home, _ := fx.Opponent(e.team)
			snap.History[e.id] = append(snap.History[e.id], model.PlayerGameweek{
				PlayerID:       e.id,
				FixtureID:      fx.ID,
				Gameweek:       gw,
				OpponentTeamID: opp,
				WasHome:        home,
				Points:         pts,
				Minutes:        90,
			})
		}
	}

	// Rice had a double gameweek 3: 3 and 5 points.
	snap.History[12] = append(snap.History[12],
		model.PlayerGameweek{PlayerID: 12, FixtureID: fixtureID(3, ARS), Gameweek: 3, OpponentTeamID: CHE, WasHome: true, Points: 3, Minutes: 90},
		model.PlayerGameweek{PlayerID: 12, FixtureID: 9999, Gameweek: 3, OpponentTeamID: AVL, Points: 5, Minutes: 90},
	)

	// Martinelli's status changed between the gameweek 3 and 4 deadlines.
	changed := deadline(3).Add(48 * time.Hour)
	m := snap.Players[13]
	m.StatusChangedAt = &changed
	chance := 75
	m.ChanceOfPlaying = &chance
	snap.Players[13] = m

	return snap.Seal()
}

func engine() *analytics.Engine {
	return analytics.New(analytics.DefaultConfig())
}

// decayed mirrors the form weighting for expected values.
func decayed(newestFirst ...float64) float64 {
	var sum, weights float64
	w := 1.0
	for _, v := range newestFirst {
		sum += w * v
		weights += w
		w *= 0.8
	}
	return sum / weights
}
