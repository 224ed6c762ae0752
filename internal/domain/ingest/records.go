package ingest

import (
	"bytes"
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // codec

// FlexFloat decodes numbers the upstream sometimes sends as strings ("5.2").
// Null and empty strings decode to zero.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("flex float %q: %w", s, err)
		}
		*f = FlexFloat(v)
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("flex float %s: %w", b, err)
	}
	*f = FlexFloat(v)
	return nil
}

// Bootstrap is the static snapshot: teams, players and gameweeks in one payload.
type Bootstrap struct {
	Teams     []TeamRecord     `json:"teams"`
	Players   []PlayerRecord   `json:"elements"`
	Gameweeks []GameweekRecord `json:"events"`
}

// TeamRecord is an upstream team.
type TeamRecord struct {
	ID                  int    `json:"id" validate:"gt=0"`
	Code                int    `json:"code" validate:"gte=0"`
	Name                string `json:"name" validate:"required"`
	ShortName           string `json:"short_name" validate:"required"`
	Strength            int    `json:"strength" validate:"gte=0"`
	StrengthOverallHome int    `json:"strength_overall_home" validate:"gte=0"`
	StrengthOverallAway int    `json:"strength_overall_away" validate:"gte=0"`
	StrengthAttackHome  int    `json:"strength_attack_home" validate:"gte=0"`
	StrengthAttackAway  int    `json:"strength_attack_away" validate:"gte=0"`
	StrengthDefenceHome int    `json:"strength_defence_home" validate:"gte=0"`
	StrengthDefenceAway int    `json:"strength_defence_away" validate:"gte=0"`
}

// PlayerRecord is an upstream element.
type PlayerRecord struct {
	ID                int       `json:"id" validate:"gt=0"`
	Code              int       `json:"code" validate:"gte=0"`
	FirstName         string    `json:"first_name"`
	SecondName        string    `json:"second_name"`
	WebName           string    `json:"web_name" validate:"required"`
	Team              int       `json:"team" validate:"gt=0"`
	ElementType       int       `json:"element_type" validate:"oneof=1 2 3 4"`
	NowCost           int       `json:"now_cost" validate:"gte=0"`
	TotalPoints       int       `json:"total_points"`
	EventPoints       int       `json:"event_points"`
	PointsPerGame     FlexFloat `json:"points_per_game"`
	Form              FlexFloat `json:"form" validate:"gte=0"`
	SelectedByPercent FlexFloat `json:"selected_by_percent" validate:"gte=0,lte=100"`
	Minutes           int       `json:"minutes" validate:"gte=0"`
	GoalsScored       int       `json:"goals_scored" validate:"gte=0"`
	Assists           int       `json:"assists" validate:"gte=0"`
	CleanSheets       int       `json:"clean_sheets" validate:"gte=0"`
	Bonus             int       `json:"bonus" validate:"gte=0"`
	ExpectedGoals     FlexFloat `json:"expected_goals" validate:"gte=0"`
	ExpectedAssists   FlexFloat `json:"expected_assists" validate:"gte=0"`
	ICTIndex          FlexFloat `json:"ict_index" validate:"gte=0"`
	Status            string    `json:"status" validate:"oneof=a d i s u n"`
	ChanceOfPlaying   *int      `json:"chance_of_playing_next_round" validate:"omitempty,gte=0,lte=100"`
	News              string    `json:"news"`
	NewsAdded         *string   `json:"news_added"`
}

// GameweekRecord is an upstream event.
type GameweekRecord struct {
	ID                int    `json:"id" validate:"gt=0"`
	Name              string `json:"name" validate:"required"`
	DeadlineTime      string `json:"deadline_time" validate:"required"`
	Finished          bool   `json:"finished"`
	DataChecked       bool   `json:"data_checked"`
	IsCurrent         bool   `json:"is_current"`
	IsNext            bool   `json:"is_next"`
	AverageEntryScore int    `json:"average_entry_score"`
	HighestScore      *int   `json:"highest_score"`
}

// FixtureRecord is an upstream fixture.
type FixtureRecord struct {
	ID              int     `json:"id" validate:"gt=0"`
	Code            int     `json:"code" validate:"gte=0"`
	Event           *int    `json:"event" validate:"omitempty,gt=0"`
	TeamH           int     `json:"team_h" validate:"gt=0"`
	TeamA           int     `json:"team_a" validate:"gt=0,nefield=TeamH"`
	TeamHScore      *int    `json:"team_h_score" validate:"omitempty,gte=0"`
	TeamAScore      *int    `json:"team_a_score" validate:"omitempty,gte=0"`
	KickoffTime     *string `json:"kickoff_time"`
	Started         *bool   `json:"started"`
	Finished        bool    `json:"finished"`
	TeamHDifficulty int     `json:"team_h_difficulty" validate:"gte=0,lte=5"`
	TeamADifficulty int     `json:"team_a_difficulty" validate:"gte=0,lte=5"`
}

// HistoryRecord is one row of a player's element-summary history.
type HistoryRecord struct {
	Element         int       `json:"element" validate:"gt=0"`
	Fixture         int       `json:"fixture" validate:"gt=0"`
	OpponentTeam    int       `json:"opponent_team" validate:"gt=0"`
	TotalPoints     int       `json:"total_points"`
	WasHome         bool      `json:"was_home"`
	Round           int       `json:"round" validate:"gt=0"`
	Minutes         int       `json:"minutes" validate:"gte=0"`
	GoalsScored     int       `json:"goals_scored" validate:"gte=0"`
	Assists         int       `json:"assists" validate:"gte=0"`
	CleanSheets     int       `json:"clean_sheets" validate:"gte=0"`
	Bonus           int       `json:"bonus" validate:"gte=0"`
	ExpectedGoals   FlexFloat `json:"expected_goals" validate:"gte=0"`
	ExpectedAssists FlexFloat `json:"expected_assists" validate:"gte=0"`
	Value           int       `json:"value" validate:"gte=0"`
}

// PlayerSummary is the element-summary payload.
type PlayerSummary struct {
	History []HistoryRecord `json:"history"`
}

// Pick is one player of a manager's squad for a gameweek.
type Pick struct {
	Element       int  `json:"element" validate:"gt=0"`
	Position      int  `json:"position"`
	Multiplier    int  `json:"multiplier"`
	IsCaptain     bool `json:"is_captain"`
	IsViceCaptain bool `json:"is_vice_captain"`
}

// EntryPicks is a manager's squad for a gameweek.
type EntryPicks struct {
	Picks      []Pick `json:"picks" validate:"dive"`
	ActiveChip string `json:"active_chip"`
}
