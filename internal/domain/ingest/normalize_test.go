package ingest_test

import (
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/smartystreets/goconvey/convey"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/ingest"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

func TestFlexFloat(t *testing.T) {
	json := jsoniter.ConfigCompatibleWithStandardLibrary
	convey.Convey("Numbers decode from strings, numbers and null", t, func() {
		var v struct {
			A ingest.FlexFloat `json:"a"`
			B ingest.FlexFloat `json:"b"`
			C ingest.FlexFloat `json:"c"`
			D ingest.FlexFloat `json:"d"`
		}
		err := json.Unmarshal([]byte(`{"a":"5.2","b":3.5,"c":null,"d":""}`), &v)
		convey.So(err, convey.ShouldBeNil)
		convey.So(float64(v.A), convey.ShouldEqual, 5.2)
		convey.So(float64(v.B), convey.ShouldEqual, 3.5)
		convey.So(float64(v.C), convey.ShouldEqual, 0)
		convey.So(float64(v.D), convey.ShouldEqual, 0)
		convey.So(json.Unmarshal([]byte(`{"a":"abc"}`), &v), convey.ShouldNotBeNil)

		convey.So(json.Unmarshal([]byte(`{"a":"\u0037.5"}`), &v), convey.ShouldBeNil)
		convey.So(float64(v.A), convey.ShouldEqual, 7.5)
	})
}

func TestNormalizer(t *testing.T) {
	convey.Convey("Given a normalizer at a fixed time", t, func() {
		n := ingest.NewNormalizer(fixedClock())

		convey.Convey("Teams with duplicate ids fail the subset", func() {
			recs := sampleBootstrap().Teams
			recs = append(recs, recs[0])
			_, _, err := n.Teams(recs, 1)
			convey.So(fault.Is(err, fault.KindValidation), convey.ShouldBeTrue)
		})

		convey.Convey("Invalid players are dropped individually", func() {
			recs := sampleBootstrap().Players
			recs = append(recs, ingest.PlayerRecord{ID: 31, WebName: "", Team: 1, ElementType: 3, Status: "a"})
			out, drops, err := n.Players(recs, 4)
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(out), convey.ShouldEqual, 2)
			convey.So(len(drops), convey.ShouldEqual, 1)
			convey.So(drops[0].ID, convey.ShouldEqual, 31)
			convey.So(drops[0].Reason, convey.ShouldContainSubstring, "WebName")
			convey.So(out[0].Epoch, convey.ShouldEqual, 4)
			convey.So(out[0].Position, convey.ShouldEqual, model.Midfielder)
			convey.So(out[0].Price, convey.ShouldEqual, model.Price(101))
		})

		convey.Convey("Gameweek status follows the deadline and settlement", func() {
			recs := sampleBootstrap().Gameweeks
			recs = append(recs, ingest.GameweekRecord{ID: 3, Name: "Gameweek 3", DeadlineTime: "2025-08-19T17:30:00Z"})
			out, _, err := n.Gameweeks(recs, 1)
			convey.So(err, convey.ShouldBeNil)
			convey.So(out[0].Status, convey.ShouldEqual, model.GameweekSettled)
			convey.So(out[1].Status, convey.ShouldEqual, model.GameweekOpen)
			convey.So(out[2].Status, convey.ShouldEqual, model.GameweekClosed)
		})

		convey.Convey("Two current gameweeks fail the subset", func() {
			recs := sampleBootstrap().Gameweeks
			recs[1].IsCurrent = true
			_, _, err := n.Gameweeks(recs, 1)
			convey.So(fault.Is(err, fault.KindValidation), convey.ShouldBeTrue)
		})

		convey.Convey("Fixtures are cleaned at the boundary", func() {
			recs := sampleFixtures()
			recs[1].TeamHScore, recs[1].TeamAScore = intp(1), intp(1)
			recs = append(recs,
				ingest.FixtureRecord{ID: 102, TeamH: 1, TeamA: 2},
				ingest.FixtureRecord{ID: 103, Event: intp(3), TeamH: 1, TeamA: 1},
				ingest.FixtureRecord{ID: 104, Event: intp(3), TeamH: 1, TeamA: 2, Finished: true},
			)
			out, drops, err := n.Fixtures(recs, 1)
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(out), convey.ShouldEqual, 2)
			convey.So(len(drops), convey.ShouldEqual, 3)
			convey.So(out[1].HomeScore, convey.ShouldBeNil)
			convey.So(out[1].AwayScore, convey.ShouldBeNil)
			convey.So(*out[0].HomeScore, convey.ShouldEqual, 2)
			reasons := []string{drops[0].Reason, drops[2].Reason}
			convey.So(reasons, convey.ShouldResemble, []string{"unscheduled", "finished without a score"})
		})

		convey.Convey("History rows for other players or repeated fixtures are dropped", func() {
			recs := []ingest.HistoryRecord{
				{Element: 10, Fixture: 101, OpponentTeam: 2, Round: 2, TotalPoints: 3},
				{Element: 10, Fixture: 100, OpponentTeam: 2, Round: 1, TotalPoints: 9},
				{Element: 10, Fixture: 100, OpponentTeam: 2, Round: 1, TotalPoints: 9},
				{Element: 11, Fixture: 102, OpponentTeam: 2, Round: 3},
			}
			out, drops := n.History(10, recs, 1)
			convey.So(len(out), convey.ShouldEqual, 2)
			convey.So(len(drops), convey.ShouldEqual, 2)
			convey.So(out[0].Gameweek, convey.ShouldEqual, 1)
		})
	})
}
