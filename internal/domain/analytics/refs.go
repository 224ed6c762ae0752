package analytics

import (
	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

// Status marks whether a computed value rests on enough data.
type Status string

const (
	StatusOK           Status = "ok"
	StatusInsufficient Status = "insufficient_data"
)

// Trend is the direction of recent form.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendSteady  Trend = "steady"
)

// PlayerRef is the identifying summary embedded in results.
type PlayerRef struct {
	ID        int                `json:"id"`
	Name      string             `json:"name"`
	TeamID    int                `json:"team_id"`
	Team      string             `json:"team"`
	Position  model.Position     `json:"position"`
	Price     model.Price        `json:"price"`
	Ownership float64            `json:"ownership"`
	Status    model.Availability `json:"status"`
}

// TeamRef is the identifying summary of a club.
type TeamRef struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
}

func playerRef(snap *model.Snapshot, p model.Player) PlayerRef {
	team, _ := snap.Team(p.TeamID)
	return PlayerRef{
		ID:        p.ID,
		Name:      p.WebName,
		TeamID:    p.TeamID,
		Team:      team.ShortName,
		Position:  p.Position,
		Price:     p.Price,
		Ownership: p.SelectedByPercent,
		Status:    p.Status,
	}
}

func teamRef(t model.Team) TeamRef {
	return TeamRef{ID: t.ID, Name: t.Name, ShortName: t.ShortName}
}

func lookupPlayer(snap *model.Snapshot, op string, id int) (model.Player, error) {
	p, ok := snap.Player(id)
	if !ok {
		return p, fault.Invalid(op, "player_id", "unknown player %d", id).With("player_id", id)
	}
	return p, nil
}

func lookupTeam(snap *model.Snapshot, op string, id int) (model.Team, error) {
	t, ok := snap.Team(id)
	if !ok {
		return t, fault.Invalid(op, "team_id", "unknown team %d", id).With("team_id", id)
	}
	return t, nil
}

// available reports whether a player is expected to be picked: fit, or
// doubtful with at least an even chance.
func available(p model.Player) bool {
	switch p.Status {
	case model.Available:
		return true
	case model.Doubtful:
		return p.ChanceOfPlaying == nil || *p.ChanceOfPlaying >= 50
	}
	return false
}
