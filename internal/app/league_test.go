package service_test

import (
	"context"
	"time"

	"github.com/dlystyr/fantasypl-mcp/internal/adapters/repository"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/ingest"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
	"github.com/dlystyr/fantasypl-mcp/pkg/logger"
)

var kickoff = time.Date(2025, 8, 16, 14, 0, 0, 0, time.UTC)

func intp(v int) *int { return &v }

// league builds a two-club snapshot: gameweeks 1-4 settled, 5 next.
func league(epoch model.Epoch) *model.Snapshot {
	snap := model.NewSnapshot(epoch)
	snap.RunID = "run-test"
	snap.CommittedAt = kickoff.AddDate(0, 1, 0)
	snap.Teams[1] = model.Team{ID: 1, Name: "Arsenal", ShortName: "ARS", AttackHome: 1350, AttackAway: 1330, DefenceHome: 1340, DefenceAway: 1320}
	snap.Teams[2] = model.Team{ID: 2, Name: "Aston Villa", ShortName: "AVL", AttackHome: 1200, AttackAway: 1170, DefenceHome: 1180, DefenceAway: 1150}

	players := []model.Player{
		{ID: 10, FirstName: "Bukayo", SecondName: "Saka", WebName: "Saka", TeamID: 1, Position: model.Midfielder, Price: 100, SelectedByPercent: 30, Status: model.Available},
		{ID: 11, FirstName: "Kai", SecondName: "Havertz", WebName: "Havertz", TeamID: 1, Position: model.Forward, Price: 80, SelectedByPercent: 5, Status: model.Available},
		{ID: 20, FirstName: "Ollie", SecondName: "Watkins", WebName: "Watkins", TeamID: 2, Position: model.Forward, Price: 90, SelectedByPercent: 12, Status: model.Available},
	}
	points := map[int][]int{10: {6, 8, 5, 10}, 11: {2, 3, 8, 9}, 20: {12, 8, 2, 9}}

	for gw := 1; gw <= 5; gw++ {
		g := model.Gameweek{ID: gw, Name: "Gameweek", Deadline: kickoff.AddDate(0, 0, 7*(gw-1)-1), Status: model.GameweekSettled}
		if gw == 4 {
			g.IsCurrent = true
		}
		if gw == 5 {
			g.Status, g.IsNext = model.GameweekOpen, true
		}
		snap.Gameweeks = append(snap.Gameweeks, g)

		home, away := 1, 2
		if gw%2 == 0 {
			home, away = 2, 1
		}
		ko := kickoff.AddDate(0, 0, 7*(gw-1))
		fx := model.Fixture{ID: gw * 100, Gameweek: gw, HomeTeamID: home, AwayTeamID: away, Kickoff: &ko, HomeDifficulty: 3, AwayDifficulty: 3}
		if gw < 5 {
			fx.Started, fx.Finished = true, true
			fx.HomeScore, fx.AwayScore = intp(2), intp(1)
		}
		snap.Fixtures[fx.ID] = fx
	}

	for _, p := range players {
		snap.Players[p.ID] = p
		for i, pts := range points[p.ID] {
			gw := i + 1
			fx := snap.Fixtures[gw*100]
			opp, home, _ := fx.Opponent(p.TeamID)
			snap.History[p.ID] = append(snap.History[p.ID], model.PlayerGameweek{
				PlayerID: p.ID, FixtureID: fx.ID, Gameweek: gw, OpponentTeamID: opp, WasHome: home, Points: pts, Minutes: 90, Value: p.Price,
			})
		}
	}
	return snap
}

// committedStore returns a memory store holding league(1).
func committedStore() *repository.MemoryStore {
	store := repository.NewMemoryStore(repository.WithLogger(logger.Nop()))
	if err := store.Commit(context.Background(), league(1)); err != nil {
		panic(err)
	}
	return store
}

// fakeEntries serves canned picks.
type fakeEntries struct {
	picks map[int]*ingest.EntryPicks
	err   error
	asked []int
}

func (f *fakeEntries) FetchEntryPicks(_ context.Context, entryID, gameweek int) (*ingest.EntryPicks, error) {
	f.asked = append(f.asked, entryID, gameweek)
	if f.err != nil {
		return nil, f.err
	}
	return f.picks[entryID], nil
}
