// Package model contains the canonical entities shared between layers.
package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Epoch is the monotonic version stamped on data written by one ingestion run.
type Epoch int64

// Position is the squad position of a player. The zero value means "any".
type Position int

const (
	PositionAny Position = iota
	Goalkeeper
	Defender
	Midfielder
	Forward
)

var positionNames = map[Position]string{Goalkeeper: "GK", Defender: "DEF", Midfielder: "MID", Forward: "FWD"} //nolint:gochecknoglobals // lookup table

func (p Position) String() string {
	return positionNames[p]
}

// Valid reports whether p names a concrete position.
func (p Position) Valid() bool {
	return p >= Goalkeeper && p <= Forward
}

// MarshalText encodes the short position name.
func (p Position) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts short names, long names and upstream element_type numbers.
func (p *Position) UnmarshalText(b []byte) error {
	parsed, err := ParsePosition(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePosition parses "GK", "GKP", "goalkeeper", "DEF", "MID", "FWD" or "1".."4".
// An empty string parses to PositionAny.
func ParsePosition(s string) (Position, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return PositionAny, nil
	case "GK", "GKP", "GOALKEEPER", "1":
		return Goalkeeper, nil
	case "DEF", "DEFENDER", "2":
		return Defender, nil
	case "MID", "MIDFIELDER", "3":
		return Midfielder, nil
	case "FWD", "FORWARD", "4":
		return Forward, nil
	}
	return PositionAny, fmt.Errorf("unknown position %q", s)
}

// Price is an amount in tenths of a million, the unit the upstream reports.
type Price int

// PriceFromMillions converts 8.5 to Price(85). Values that are not whole
// tenths, negative or not finite are rejected.
func PriceFromMillions(m float64) (Price, error) {
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return 0, fmt.Errorf("price %v is not finite", m)
	}
	if m < 0 {
		return 0, fmt.Errorf("price %v is negative", m)
	}
	tenths := math.Round(m * 10)
	if math.Abs(tenths-m*10) > 1e-6 {
		return 0, fmt.Errorf("price %v is not a whole number of tenths", m)
	}
	return Price(tenths), nil
}

// Millions returns the price as a float, e.g. 8.5.
func (p Price) Millions() float64 {
	return float64(p) / 10
}

func (p Price) String() string {
	sign := ""
	v := int(p)
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%d", sign, v/10, v%10)
}

// MarshalJSON encodes the price in millions.
func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalJSON decodes a price in millions.
func (p *Price) UnmarshalJSON(b []byte) error {
	m, err := strconv.ParseFloat(strings.Trim(string(b), `"`), 64)
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return fmt.Errorf("price %v is not finite", m)
	}
	*p = Price(math.Round(m * 10))
	return nil
}

// Availability mirrors the upstream player status codes.
type Availability string

const (
	Available   Availability = "a"
	Doubtful    Availability = "d"
	Injured     Availability = "i"
	Suspended   Availability = "s"
	Unavailable Availability = "u"
	NotInSquad  Availability = "n"
)

// Valid reports whether a is a known status code.
func (a Availability) Valid() bool {
	switch a {
	case Available, Doubtful, Injured, Suspended, Unavailable, NotInSquad:
		return true
	}
	return false
}

// Team is a club with its upstream strength ratings.
type Team struct {
	ID          int    `json:"id"`
	Code        int    `json:"code"`
	Name        string `json:"name"`
	ShortName   string `json:"short_name"`
	Strength    int    `json:"strength"`
	OverallHome int    `json:"strength_overall_home"`
	OverallAway int    `json:"strength_overall_away"`
	AttackHome  int    `json:"strength_attack_home"`
	AttackAway  int    `json:"strength_attack_away"`
	DefenceHome int    `json:"strength_defence_home"`
	DefenceAway int    `json:"strength_defence_away"`
	Epoch       Epoch  `json:"epoch"`
}

// Attack returns the attack rating at the given venue.
func (t Team) Attack(home bool) int {
	if home {
		return t.AttackHome
	}
	return t.AttackAway
}

// Defence returns the defence rating at the given venue.
func (t Team) Defence(home bool) int {
	if home {
		return t.DefenceHome
	}
	return t.DefenceAway
}

// Player is one element of the player pool.
type Player struct {
	ID                int          `json:"id"`
	Code              int          `json:"code"`
	FirstName         string       `json:"first_name"`
	SecondName        string       `json:"second_name"`
	WebName           string       `json:"web_name"`
	TeamID            int          `json:"team_id"`
	Position          Position     `json:"position"`
	Price             Price        `json:"price"`
	TotalPoints       int          `json:"total_points"`
	EventPoints       int          `json:"event_points"`
	PointsPerGame     float64      `json:"points_per_game"`
	UpstreamForm      float64      `json:"upstream_form"`
	SelectedByPercent float64      `json:"selected_by_percent"`
	Minutes           int          `json:"minutes"`
	GoalsScored       int          `json:"goals_scored"`
	Assists           int          `json:"assists"`
	CleanSheets       int          `json:"clean_sheets"`
	Bonus             int          `json:"bonus"`
	ExpectedGoals     float64      `json:"expected_goals"`
	ExpectedAssists   float64      `json:"expected_assists"`
	ICTIndex          float64      `json:"ict_index"`
	Status            Availability `json:"status"`
	ChanceOfPlaying   *int         `json:"chance_of_playing,omitempty"`
	News              string       `json:"news,omitempty"`
	StatusChangedAt   *time.Time   `json:"status_changed_at,omitempty"`
	Epoch             Epoch        `json:"epoch"`
}

// FullName returns "First Second", falling back to the web name.
func (p Player) FullName() string {
	full := strings.TrimSpace(p.FirstName + " " + p.SecondName)
	if full == "" {
		return p.WebName
	}
	return full
}

// GameweekStatus is the lifecycle state of a gameweek.
type GameweekStatus string

const (
	GameweekOpen    GameweekStatus = "open"
	GameweekClosed  GameweekStatus = "closed"
	GameweekSettled GameweekStatus = "settled"
)

// Gameweek is one round of the season.
type Gameweek struct {
	ID           int            `json:"id"`
	Name         string         `json:"name"`
	Deadline     time.Time      `json:"deadline"`
	Status       GameweekStatus `json:"status"`
	IsCurrent    bool           `json:"is_current"`
	IsNext       bool           `json:"is_next"`
	AverageScore int            `json:"average_score"`
	HighestScore int            `json:"highest_score"`
	Epoch        Epoch          `json:"epoch"`
}

// Fixture is a scheduled match. Scores are set only when Finished.
type Fixture struct {
	ID             int        `json:"id"`
	Code           int        `json:"code"`
	Gameweek       int        `json:"gameweek"`
	HomeTeamID     int        `json:"home_team_id"`
	AwayTeamID     int        `json:"away_team_id"`
	Kickoff        *time.Time `json:"kickoff,omitempty"`
	Started        bool       `json:"started"`
	Finished       bool       `json:"finished"`
	HomeScore      *int       `json:"home_score,omitempty"`
	AwayScore      *int       `json:"away_score,omitempty"`
	HomeDifficulty int        `json:"home_difficulty"`
	AwayDifficulty int        `json:"away_difficulty"`
	Epoch          Epoch      `json:"epoch"`
}

// Involves reports whether teamID plays in the fixture.
func (f Fixture) Involves(teamID int) bool {
	return f.HomeTeamID == teamID || f.AwayTeamID == teamID
}

// Opponent returns the opponent of teamID and whether teamID is at home.
func (f Fixture) Opponent(teamID int) (opponent int, home bool, ok bool) {
	switch teamID {
	case f.HomeTeamID:
		return f.AwayTeamID, true, true
	case f.AwayTeamID:
		return f.HomeTeamID, false, true
	}
	return 0, false, false
}

// Result returns goals for and against teamID in a finished fixture.
func (f Fixture) Result(teamID int) (goalsFor, goalsAgainst int, ok bool) {
	if !f.Finished || f.HomeScore == nil || f.AwayScore == nil {
		return 0, 0, false
	}
	switch teamID {
	case f.HomeTeamID:
		return *f.HomeScore, *f.AwayScore, true
	case f.AwayTeamID:
		return *f.AwayScore, *f.HomeScore, true
	}
	return 0, 0, false
}

// UpstreamDifficulty returns the upstream 1..5 rating for teamID's side, 0 if unknown.
func (f Fixture) UpstreamDifficulty(teamID int) int {
	switch teamID {
	case f.HomeTeamID:
		return f.HomeDifficulty
	case f.AwayTeamID:
		return f.AwayDifficulty
	}
	return 0
}

// PlayerGameweek is one appearance of a player in a fixture.
type PlayerGameweek struct {
	PlayerID        int     `json:"player_id"`
	FixtureID       int     `json:"fixture_id"`
	Gameweek        int     `json:"gameweek"`
	OpponentTeamID  int     `json:"opponent_team_id"`
	WasHome         bool    `json:"was_home"`
	Points          int     `json:"points"`
	Minutes         int     `json:"minutes"`
	GoalsScored     int     `json:"goals_scored"`
	Assists         int     `json:"assists"`
	CleanSheets     int     `json:"clean_sheets"`
	Bonus           int     `json:"bonus"`
	ExpectedGoals   float64 `json:"expected_goals"`
	ExpectedAssists float64 `json:"expected_assists"`
	Value           Price   `json:"value"`
	Epoch           Epoch   `json:"epoch"`
}

// PricePoint is one observation of a player's price and ownership.
// Series are append-only: a point is added only when either value changes.
type PricePoint struct {
	PlayerID          int       `json:"player_id"`
	Epoch             Epoch     `json:"epoch"`
	ObservedAt        time.Time `json:"observed_at"`
	Price             Price     `json:"price"`
	SelectedByPercent float64   `json:"selected_by_percent"`
}
