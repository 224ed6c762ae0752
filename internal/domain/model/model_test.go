package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func intp(v int) *int { return &v }

func TestPrice(t *testing.T) {
	convey.Convey("Given prices in millions", t, func() {
		convey.Convey("Whole tenths convert exactly", func() {
			p, err := model.PriceFromMillions(8.5)
			convey.So(err, convey.ShouldBeNil)
			convey.So(p, convey.ShouldEqual, model.Price(85))
			convey.So(p.String(), convey.ShouldEqual, "8.5")
			convey.So(p.Millions(), convey.ShouldEqual, 8.5)
		})

		convey.Convey("Malformed amounts are rejected", func() {
			_, err := model.PriceFromMillions(0.45)
			convey.So(err, convey.ShouldNotBeNil)
			_, err = model.PriceFromMillions(-1)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("JSON uses millions", func() {
			b, err := json.Marshal(struct {
				P model.Price `json:"p"`
			}{P: 40})
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(b), convey.ShouldEqual, `{"p":4.0}`)

			var back struct {
				P model.Price `json:"p"`
			}
			convey.So(json.Unmarshal([]byte(`{"p":0.6}`), &back), convey.ShouldBeNil)
			convey.So(back.P, convey.ShouldEqual, model.Price(6))
		})

		convey.Convey("Negative deltas print with a sign", func() {
			convey.So(model.Price(-5).String(), convey.ShouldEqual, "-0.5")
		})
	})
}

func TestPosition(t *testing.T) {
	convey.Convey("Positions parse from the common spellings", t, func() {
		for in, want := range map[string]model.Position{
			"GK": model.Goalkeeper, "gkp": model.Goalkeeper, "2": model.Defender,
			"Midfielder": model.Midfielder, "FWD": model.Forward, "": model.PositionAny,
		} {
			got, err := model.ParsePosition(in)
			convey.So(err, convey.ShouldBeNil)
			convey.So(got, convey.ShouldEqual, want)
		}
		_, err := model.ParsePosition("striker")
		convey.So(err, convey.ShouldNotBeNil)

		b, err := json.Marshal(model.Midfielder)
		convey.So(err, convey.ShouldBeNil)
		convey.So(string(b), convey.ShouldEqual, `"MID"`)
	})
}

func TestFixture(t *testing.T) {
	convey.Convey("Given a finished fixture 2-1", t, func() {
		f := model.Fixture{ID: 1, HomeTeamID: 10, AwayTeamID: 20, Finished: true, HomeScore: intp(2), AwayScore: intp(1), HomeDifficulty: 2, AwayDifficulty: 4}

		convey.Convey("Orientation is resolved per team", func() {
			opp, home, ok := f.Opponent(20)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(opp, convey.ShouldEqual, 10)
			convey.So(home, convey.ShouldBeFalse)
			gf, ga, ok := f.Result(20)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(gf, convey.ShouldEqual, 1)
			convey.So(ga, convey.ShouldEqual, 2)
			convey.So(f.UpstreamDifficulty(20), convey.ShouldEqual, 4)
		})

		convey.Convey("A team outside the fixture has no result", func() {
			_, _, ok := f.Result(30)
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("An unfinished fixture has no result", func() {
			f.Finished = false
			_, _, ok := f.Result(10)
			convey.So(ok, convey.ShouldBeFalse)
		})
	})
}

func TestSnapshot(t *testing.T) {
	convey.Convey("Given a sealed snapshot", t, func() {
		k1 := time.Date(2025, 8, 16, 14, 0, 0, 0, time.UTC)
		k2 := k1.Add(3 * time.Hour)
		s := model.NewSnapshot(3)
		s.Teams[2] = model.Team{ID: 2, Epoch: 3}
		s.Teams[1] = model.Team{ID: 1, Epoch: 2}
		s.Gameweeks = []model.Gameweek{
			{ID: 2, Status: model.GameweekOpen, IsNext: true, Deadline: k1.Add(7 * 24 * time.Hour)},
			{ID: 1, Status: model.GameweekClosed, IsCurrent: true, Deadline: k1.Add(-time.Hour)},
		}
		s.Fixtures[7] = model.Fixture{ID: 7, Gameweek: 2, HomeTeamID: 2, AwayTeamID: 1}
		s.Fixtures[5] = model.Fixture{ID: 5, Gameweek: 1, HomeTeamID: 1, AwayTeamID: 2, Kickoff: &k2, Finished: true, HomeScore: intp(0), AwayScore: intp(0)}
		s.Fixtures[6] = model.Fixture{ID: 6, Gameweek: 1, HomeTeamID: 2, AwayTeamID: 1, Kickoff: &k1, Finished: true, HomeScore: intp(1), AwayScore: intp(3)}
		s.Seal()

		convey.Convey("Gameweeks are ordered and flags resolve", func() {
			convey.So(s.Gameweeks[0].ID, convey.ShouldEqual, 1)
			cur, ok := s.CurrentGameweek()
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(cur.ID, convey.ShouldEqual, 1)
			next, ok := s.NextGameweek()
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(next.ID, convey.ShouldEqual, 2)
			gw, ok := s.GameweekAt(k1)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(gw.ID, convey.ShouldEqual, 2)
		})

		convey.Convey("Schedules are ordered by gameweek then kickoff", func() {
			fs := s.TeamFixtures(1)
			convey.So(len(fs), convey.ShouldEqual, 3)
			convey.So(fs[0].ID, convey.ShouldEqual, 6)
			convey.So(fs[1].ID, convey.ShouldEqual, 5)
			convey.So(fs[2].ID, convey.ShouldEqual, 7)
			convey.So(len(s.SettledFixtures(1)), convey.ShouldEqual, 2)
			up := s.UpcomingFixtures(1, 5)
			convey.So(len(up), convey.ShouldEqual, 1)
			convey.So(up[0].ID, convey.ShouldEqual, 7)
		})

		convey.Convey("Ids are sorted", func() {
			convey.So(s.TeamIDs(), convey.ShouldResemble, []int{1, 2})
		})

		convey.Convey("Content comparison ignores epoch stamps", func() {
			other := model.NewSnapshot(9)
			for id, tm := range s.Teams {
				tm.Epoch = 9
				other.Teams[id] = tm
			}
			other.Gameweeks = append(other.Gameweeks, s.Gameweeks...)
			for id, f := range s.Fixtures {
				other.Fixtures[id] = f
			}
			other.Seal()
			convey.So(other.WithoutEpochs(), convey.ShouldResemble, s.WithoutEpochs())
		})
	})
}
