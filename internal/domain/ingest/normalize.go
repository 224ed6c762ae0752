package ingest

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

// Drop records one upstream record discarded during normalization.
type Drop struct {
	Entity string `json:"entity"`
	ID     int    `json:"id"`
	Reason string `json:"reason"`
}

// Normalizer converts upstream records into canonical entities.
// Invalid records are dropped individually; inconsistencies that make a
// whole subset untrustworthy are returned as validation errors.
type Normalizer struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewNormalizer creates a Normalizer. A nil clock defaults to time.Now.
func NewNormalizer(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{validate: validator.New(), now: now}
}

func (n *Normalizer) check(entity string, id int, rec any) *Drop {
	if err := n.validate.Struct(rec); err != nil {
		return &Drop{Entity: entity, ID: id, Reason: describeValidation(err)}
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func duplicate(entity string, id int) error {
	return fault.New(fault.KindValidation, "normalize "+entity, "duplicate id %d", id).With("entity", entity)
}

// Teams normalizes the team subset.
func (n *Normalizer) Teams(recs []TeamRecord, epoch model.Epoch) ([]model.Team, []Drop, error) {
	var (
		out   = make([]model.Team, 0, len(recs))
		drops []Drop
		seen  = make(map[int]bool, len(recs))
	)
	for _, r := range recs {
		if d := n.check("team", r.ID, r); d != nil {
			drops = append(drops, *d)
			continue
		}
		if seen[r.ID] {
			return nil, drops, duplicate("teams", r.ID)
		}
		seen[r.ID] = true
		out = append(out, model.Team{
			ID:          r.ID,
			Code:        r.Code,
			Name:        strings.TrimSpace(r.Name),
			ShortName:   strings.TrimSpace(r.ShortName),
			Strength:    r.Strength,
			OverallHome: r.StrengthOverallHome,
			OverallAway: r.StrengthOverallAway,
			AttackHome:  r.StrengthAttackHome,
			AttackAway:  r.StrengthAttackAway,
			DefenceHome: r.StrengthDefenceHome,
			DefenceAway: r.StrengthDefenceAway,
			Epoch:       epoch,
		})
	}
	return out, drops, nil
}

// Players normalizes the player subset.
func (n *Normalizer) Players(recs []PlayerRecord, epoch model.Epoch) ([]model.Player, []Drop, error) {
	var (
		out   = make([]model.Player, 0, len(recs))
		drops []Drop
		seen  = make(map[int]bool, len(recs))
	)
	for _, r := range recs {
		if d := n.check("player", r.ID, r); d != nil {
			drops = append(drops, *d)
			continue
		}
		if seen[r.ID] {
			return nil, drops, duplicate("players", r.ID)
		}
		seen[r.ID] = true

		var changed *time.Time
		if r.NewsAdded != nil && *r.NewsAdded != "" {
			t, err := time.Parse(time.RFC3339, *r.NewsAdded)
			if err != nil {
				drops = append(drops, Drop{Entity: "player", ID: r.ID, Reason: "news_added is not a timestamp"})
				continue
			}
			t = t.UTC()
			changed = &t
		}
		var chance *int
		if r.ChanceOfPlaying != nil {
			v := *r.ChanceOfPlaying
			chance = &v
		}
		out = append(out, model.Player{
			ID:                r.ID,
			Code:              r.Code,
			FirstName:         strings.TrimSpace(r.FirstName),
			SecondName:        strings.TrimSpace(r.SecondName),
			WebName:           strings.TrimSpace(r.WebName),
			TeamID:            r.Team,
			Position:          model.Position(r.ElementType),
			Price:             model.Price(r.NowCost),
			TotalPoints:       r.TotalPoints,
			EventPoints:       r.EventPoints,
			PointsPerGame:     float64(r.PointsPerGame),
			UpstreamForm:      float64(r.Form),
			SelectedByPercent: float64(r.SelectedByPercent),
			Minutes:           r.Minutes,
			GoalsScored:       r.GoalsScored,
			Assists:           r.Assists,
			CleanSheets:       r.CleanSheets,
			Bonus:             r.Bonus,
			ExpectedGoals:     float64(r.ExpectedGoals),
			ExpectedAssists:   float64(r.ExpectedAssists),
			ICTIndex:          float64(r.ICTIndex),
			Status:            model.Availability(r.Status),
			ChanceOfPlaying:   chance,
			News:              strings.TrimSpace(r.News),
			StatusChangedAt:   changed,
			Epoch:             epoch,
		})
	}
	return out, drops, nil
}

// Gameweeks normalizes the gameweek subset. Ids must run 1..N without gaps
// and at most one gameweek may be current.
func (n *Normalizer) Gameweeks(recs []GameweekRecord, epoch model.Epoch) ([]model.Gameweek, []Drop, error) {
	const op = "normalize gameweeks"
	var (
		out   = make([]model.Gameweek, 0, len(recs))
		drops []Drop
		seen  = make(map[int]bool, len(recs))
		now   = n.now()
	)
	for _, r := range recs {
		if d := n.check("gameweek", r.ID, r); d != nil {
			drops = append(drops, *d)
			continue
		}
		deadline, err := time.Parse(time.RFC3339, r.DeadlineTime)
		if err != nil {
			drops = append(drops, Drop{Entity: "gameweek", ID: r.ID, Reason: "deadline_time is not a timestamp"})
			continue
		}
		if seen[r.ID] {
			return nil, drops, duplicate("gameweeks", r.ID)
		}
		seen[r.ID] = true
		highest := 0
		if r.HighestScore != nil {
			highest = *r.HighestScore
		}
		out = append(out, model.Gameweek{
			ID:           r.ID,
			Name:         strings.TrimSpace(r.Name),
			Deadline:     deadline.UTC(),
			Status:       gameweekStatus(r, deadline, now),
			IsCurrent:    r.IsCurrent,
			IsNext:       r.IsNext,
			AverageScore: r.AverageEntryScore,
			HighestScore: highest,
			Epoch:        epoch,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	current, next := 0, 0
	for i, gw := range out {
		if gw.ID != i+1 {
			return nil, drops, fault.New(fault.KindValidation, op, "gameweek ids are not contiguous").
				With("expected", i+1).With("got", gw.ID)
		}
		if gw.IsCurrent {
			current++
		}
		if gw.IsNext {
			next++
		}
	}
	if current > 1 {
		return nil, drops, fault.New(fault.KindValidation, op, "%d gameweeks flagged current", current)
	}
	if next > 1 {
		return nil, drops, fault.New(fault.KindValidation, op, "%d gameweeks flagged next", next)
	}
	return out, drops, nil
}

func gameweekStatus(r GameweekRecord, deadline, now time.Time) model.GameweekStatus {
	switch {
	case r.Finished && r.DataChecked:
		return model.GameweekSettled
	case r.Finished, r.IsCurrent, !deadline.After(now):
		return model.GameweekClosed
	}
	return model.GameweekOpen
}

// Fixtures normalizes the fixture subset. Fixtures without a gameweek are
// dropped; scores of unfinished fixtures are discarded.
func (n *Normalizer) Fixtures(recs []FixtureRecord, epoch model.Epoch) ([]model.Fixture, []Drop, error) {
	var (
		out   = make([]model.Fixture, 0, len(recs))
		drops []Drop
		seen  = make(map[int]bool, len(recs))
	)
	for _, r := range recs {
		if d := n.check("fixture", r.ID, r); d != nil {
			drops = append(drops, *d)
			continue
		}
		if r.Event == nil {
			drops = append(drops, Drop{Entity: "fixture", ID: r.ID, Reason: "unscheduled"})
			continue
		}
		if r.Finished && (r.TeamHScore == nil || r.TeamAScore == nil) {
			drops = append(drops, Drop{Entity: "fixture", ID: r.ID, Reason: "finished without a score"})
			continue
		}
		var kickoff *time.Time
		if r.KickoffTime != nil && *r.KickoffTime != "" {
			t, err := time.Parse(time.RFC3339, *r.KickoffTime)
			if err != nil {
				drops = append(drops, Drop{Entity: "fixture", ID: r.ID, Reason: "kickoff_time is not a timestamp"})
				continue
			}
			t = t.UTC()
			kickoff = &t
		}
		if seen[r.ID] {
			return nil, drops, duplicate("fixtures", r.ID)
		}
		seen[r.ID] = true

		f := model.Fixture{
			ID:             r.ID,
			Code:           r.Code,
			Gameweek:       *r.Event,
			HomeTeamID:     r.TeamH,
			AwayTeamID:     r.TeamA,
			Kickoff:        kickoff,
			Started:        r.Started != nil && *r.Started,
			Finished:       r.Finished,
			HomeDifficulty: r.TeamHDifficulty,
			AwayDifficulty: r.TeamADifficulty,
			Epoch:          epoch,
		}
		if r.Finished {
			hs, as := *r.TeamHScore, *r.TeamAScore
			f.HomeScore, f.AwayScore = &hs, &as
			f.Started = true
		}
		out = append(out, f)
	}
	return out, drops, nil
}

// History normalizes one player's appearance rows. Rows belonging to another
// player or repeating a fixture are dropped.
func (n *Normalizer) History(playerID int, recs []HistoryRecord, epoch model.Epoch) ([]model.PlayerGameweek, []Drop) {
	var (
		out   = make([]model.PlayerGameweek, 0, len(recs))
		drops []Drop
		seen  = make(map[int]bool, len(recs))
	)
	for _, r := range recs {
		if d := n.check("history", playerID, r); d != nil {
			drops = append(drops, *d)
			continue
		}
		if r.Element != playerID {
			drops = append(drops, Drop{Entity: "history", ID: playerID, Reason: fmt.Sprintf("row belongs to player %d", r.Element)})
			continue
		}
		if seen[r.Fixture] {
			drops = append(drops, Drop{Entity: "history", ID: playerID, Reason: fmt.Sprintf("fixture %d repeated", r.Fixture)})
			continue
		}
		seen[r.Fixture] = true
		out = append(out, model.PlayerGameweek{
			PlayerID:        playerID,
			FixtureID:       r.Fixture,
			Gameweek:        r.Round,
			OpponentTeamID:  r.OpponentTeam,
			WasHome:         r.WasHome,
			Points:          r.TotalPoints,
			Minutes:         r.Minutes,
			GoalsScored:     r.GoalsScored,
			Assists:         r.Assists,
			CleanSheets:     r.CleanSheets,
			Bonus:           r.Bonus,
			ExpectedGoals:   float64(r.ExpectedGoals),
			ExpectedAssists: float64(r.ExpectedAssists),
			Value:           model.Price(r.Value),
			Epoch:           epoch,
		})
	}
	model.SortHistory(out)
	return out, drops
}
