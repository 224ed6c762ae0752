package analytics_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/analytics"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

func ids(refs []analytics.FormScore) []int {
	out := make([]int, 0, len(refs))
	for _, f := range refs {
		out = append(out, f.Player.ID)
	}
	return out
}

func TestPlayerForm(t *testing.T) {
	Convey("Given the test league", t, func() {
		snap, e := league(), engine()

		Convey("A steady scorer has a flat form and a steady trend", func() {
			f, err := e.PlayerForm(snap, analytics.PlayerFormParams{PlayerID: 30})
			So(err, ShouldBeNil)
			So(f.Sufficient(), ShouldBeTrue)
			So(*f.Score, ShouldAlmostEqual, 6.0, 1e-9)
			So(f.Trend, ShouldEqual, analytics.TrendSteady)
			So(f.Samples, ShouldEqual, 5)
			So(f.Window, ShouldEqual, 5)
		})

		Convey("Recent gameweeks weigh more", func() {
			f, err := e.PlayerForm(snap, analytics.PlayerFormParams{PlayerID: 10})
			So(err, ShouldBeNil)
			So(*f.Score, ShouldAlmostEqual, decayed(9, 10, 5, 8, 6), 0.001)
			So(f.Gameweeks[0].Gameweek, ShouldEqual, 5)
		})

		Convey("The window limits how far back form looks", func() {
			f, err := e.PlayerForm(snap, analytics.PlayerFormParams{PlayerID: 10, Window: 3})
			So(err, ShouldBeNil)
			So(f.Samples, ShouldEqual, 3)
			So(*f.Score, ShouldAlmostEqual, decayed(9, 10, 5), 0.001)
		})

		Convey("Trends follow the newer half against the older half", func() {
			rising, err := e.PlayerForm(snap, analytics.PlayerFormParams{PlayerID: 11})
			So(err, ShouldBeNil)
			So(rising.Trend, ShouldEqual, analytics.TrendRising)

			falling, err := e.PlayerForm(snap, analytics.PlayerFormParams{PlayerID: 20})
			So(err, ShouldBeNil)
			So(falling.Trend, ShouldEqual, analytics.TrendFalling)
		})

		Convey("Double gameweeks are summed into one sample", func() {
			f, err := e.PlayerForm(snap, analytics.PlayerFormParams{PlayerID: 12})
			So(err, ShouldBeNil)
			So(f.Samples, ShouldEqual, 3)
			So(f.Gameweeks[0], ShouldResemble, analytics.GameweekPoints{Gameweek: 3, Points: 8, Fixtures: 2, Minutes: 180})
			So(*f.Score, ShouldAlmostEqual, decayed(8, 4, 4), 0.001)
		})

		Convey("Too few gameweeks give an insufficient marker, not a number", func() {
			f, err := e.PlayerForm(snap, analytics.PlayerFormParams{PlayerID: 40})
			So(err, ShouldBeNil)
			So(f.Status, ShouldEqual, analytics.StatusInsufficient)
			So(f.Score, ShouldBeNil)
			So(f.Samples, ShouldEqual, 2)
			So(f.Required, ShouldEqual, 3)
		})

		Convey("Only gameweeks since the last status change count", func() {
			f, err := e.PlayerForm(snap, analytics.PlayerFormParams{PlayerID: 13})
			So(err, ShouldBeNil)
			So(f.SinceGameweek, ShouldEqual, 4)
			So(f.Samples, ShouldEqual, 2)
			So(f.Sufficient(), ShouldBeFalse)
		})

		Convey("An unknown player is an invalid parameter", func() {
			_, err := e.PlayerForm(snap, analytics.PlayerFormParams{PlayerID: 999})
			So(fault.KindOf(err), ShouldEqual, fault.KindInvalidParameters)
			So(fault.ContextOf(err)["param"], ShouldEqual, "player_id")
		})

		Convey("A window beyond a season is rejected", func() {
			_, err := e.PlayerForm(snap, analytics.PlayerFormParams{PlayerID: 10, Window: 39})
			So(fault.KindOf(err), ShouldEqual, fault.KindInvalidParameters)
		})
	})
}

func TestPlayersInForm(t *testing.T) {
	Convey("Given the test league", t, func() {
		snap, e := league(), engine()

		Convey("Players are ranked by form with ties broken by id", func() {
			res, err := e.PlayersInForm(snap, analytics.PlayersInFormParams{Limit: 6})
			So(err, ShouldBeNil)
			So(ids(res.Players), ShouldResemble, []int{51, 14, 10, 11, 41, 50})
			So(res.Considered, ShouldEqual, 11)
			So(res.Insufficient, ShouldEqual, 2)
		})

		Convey("Position and price filters narrow the field", func() {
			res, err := e.PlayersInForm(snap, analytics.PlayersInFormParams{Position: model.Midfielder, MaxPrice: 80})
			So(err, ShouldBeNil)
			So(ids(res.Players), ShouldResemble, []int{41, 50, 12})
			So(res.Considered, ShouldEqual, 4)
			So(res.Insufficient, ShouldEqual, 1)
		})

		Convey("The same inputs always give the same ranking", func() {
			a, err := e.PlayersInForm(snap, analytics.PlayersInFormParams{})
			So(err, ShouldBeNil)
			b, err := e.PlayersInForm(league(), analytics.PlayersInFormParams{})
			So(err, ShouldBeNil)
			So(a, ShouldResemble, b)
		})
	})
}

func TestTeamForm(t *testing.T) {
	Convey("Given the test league", t, func() {
		snap, e := league(), engine()

		Convey("A team's recent results are rated on a 0 to 10 scale", func() {
			tf, err := e.TeamForm(snap, analytics.TeamFormParams{TeamID: ARS})
			So(err, ShouldBeNil)
			So(tf.Status, ShouldEqual, analytics.StatusOK)
			So(tf.Record, ShouldEqual, "WWDWW")
			So(tf.Results[0].Gameweek, ShouldEqual, 5)
			So(tf.Results[0].Home, ShouldBeFalse)

			ppg := decayed(3, 3, 1, 3, 3)
			gf := decayed(2, 1, 1, 3, 2)
			ga := decayed(0, 0, 1, 0, 0)
			So(*tf.PointsPerGame, ShouldAlmostEqual, ppg, 0.001)
			So(*tf.Rating, ShouldAlmostEqual, ppg/3*7+gf*1.5-ga*0.5, 0.001)
		})

		Convey("A team can be named instead of numbered", func() {
			tf, err := e.TeamForm(snap, analytics.TeamFormParams{TeamName: "Villa"})
			So(err, ShouldBeNil)
			So(tf.Team.ID, ShouldEqual, AVL)
		})

		Convey("Fewer settled fixtures than required is insufficient", func() {
			tf, err := e.TeamForm(snap, analytics.TeamFormParams{TeamID: BUR, Window: 2})
			So(err, ShouldBeNil)
			So(tf.Status, ShouldEqual, analytics.StatusInsufficient)
			So(tf.Rating, ShouldBeNil)
			So(tf.Record, ShouldEqual, "LL")
		})

		Convey("Both or neither of id and name is rejected", func() {
			_, err := e.TeamForm(snap, analytics.TeamFormParams{})
			So(fault.KindOf(err), ShouldEqual, fault.KindInvalidParameters)
			_, err = e.TeamForm(snap, analytics.TeamFormParams{TeamID: 1, TeamName: "arsenal"})
			So(fault.KindOf(err), ShouldEqual, fault.KindInvalidParameters)
		})
	})
}
