package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/dlystyr/fantasypl-mcp/internal/adapters/cache"
	"github.com/dlystyr/fantasypl-mcp/internal/adapters/mq/queue"
	"github.com/dlystyr/fantasypl-mcp/internal/adapters/repository"
	service "github.com/dlystyr/fantasypl-mcp/internal/app"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/analytics"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/ingest"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/types"
	"github.com/dlystyr/fantasypl-mcp/pkg/logger"
)

func engine() *analytics.Engine { return analytics.New(analytics.DefaultConfig()) }

func TestService_NoData(t *testing.T) {
	Convey("Given a service over an empty store", t, func() {
		store := repository.NewMemoryStore(repository.WithLogger(logger.Nop()))
		svc := service.New(store, engine(), service.WithLogger(logger.Nop()))
		ctx := context.Background()

		Convey("Valid requests fail with no_data", func() {
			o := svc.PlayerForm(ctx, analytics.PlayerFormParams{PlayerID: 10})
			So(o.OK, ShouldBeFalse)
			So(o.Error.Kind, ShouldEqual, fault.KindNoData)
		})

		Convey("Invalid parameters are reported before the store is consulted", func() {
			o := svc.PlayerForm(ctx, analytics.PlayerFormParams{})
			So(o.OK, ShouldBeFalse)
			So(o.Error.Kind, ShouldEqual, fault.KindInvalidParameters)
			So(o.Error.Context["param"], ShouldEqual, "player_id")
		})

		Convey("Sync status reports epoch zero", func() {
			o := svc.SyncStatus(ctx)
			So(o.OK, ShouldBeTrue)
			st := o.Data.(service.SyncStatus)
			So(st.Epoch, ShouldEqual, model.Epoch(0))
			So(st.CommittedAt, ShouldBeNil)
		})

		Convey("Triggering a sync without a queue is an internal error", func() {
			o := svc.TriggerSync(ctx, queue.SourceAPI)
			So(o.OK, ShouldBeFalse)
			So(o.Error.Kind, ShouldEqual, fault.KindInternal)
		})
	})
}

func TestService_Operations(t *testing.T) {
	Convey("Given a service over a committed league with a memory cache", t, func() {
		store := committedStore()
		backend := cache.NewMemoryBackend()
		rt := cache.New(backend, cache.WithLogger(logger.Nop()))
		svc := service.New(store, engine(), service.WithLogger(logger.Nop()), service.WithCache(rt))
		ctx := context.Background()

		Convey("Results carry the epoch they were computed against", func() {
			o := svc.PlayerForm(ctx, analytics.PlayerFormParams{PlayerID: 10})
			So(o.OK, ShouldBeTrue)
			So(o.Epoch, ShouldEqual, model.Epoch(1))
			f := o.Data.(analytics.FormScore)
			So(f.Sufficient(), ShouldBeTrue)
			So(f.Samples, ShouldEqual, 4)
		})

		Convey("Equivalent requests share one cache entry", func() {
			a := svc.SearchPlayers(ctx, analytics.SearchPlayersParams{Position: model.Forward})
			b := svc.SearchPlayers(ctx, analytics.SearchPlayersParams{Position: model.Forward, Limit: 10})
			So(a.OK, ShouldBeTrue)
			So(b.Data, ShouldResemble, a.Data)
			So(backend.Len(), ShouldEqual, 1)

			_ = svc.SearchPlayers(ctx, analytics.SearchPlayersParams{Position: model.Midfielder})
			So(backend.Len(), ShouldEqual, 2)
		})

		Convey("A new epoch is computed afresh", func() {
			_ = svc.TeamForm(ctx, analytics.TeamFormParams{TeamID: 1})
			So(store.Commit(ctx, league(2)), ShouldBeNil)
			rt.EpochAdvanced(ctx, league(2).Seal())

			o := svc.TeamForm(ctx, analytics.TeamFormParams{TeamID: 1})
			So(o.OK, ShouldBeTrue)
			So(o.Epoch, ShouldEqual, model.Epoch(2))
			So(backend.Len(), ShouldEqual, 2)
		})

		Convey("Unknown ids are invalid parameters", func() {
			o := svc.BogeyTeams(ctx, analytics.BogeyParams{PlayerID: 999})
			So(o.OK, ShouldBeFalse)
			So(o.Error.Kind, ShouldEqual, fault.KindInvalidParameters)
		})

		Convey("Every catalogue operation answers", func() {
			outcomes := map[string]types.Outcome{
				"player info":       svc.PlayerInfo(ctx, analytics.PlayerLookup{Name: "saka"}),
				"search teams":      svc.SearchTeams(ctx, analytics.SearchTeamsParams{Query: "villa"}),
				"players in form":   svc.PlayersInForm(ctx, analytics.PlayersInFormParams{}),
				"fixtures":          svc.FixtureDifficulty(ctx, analytics.FixtureDifficultyParams{TeamID: 2}),
				"easiest schedules": svc.EasiestSchedules(ctx, analytics.EasiestSchedulesParams{}),
				"transfers":         svc.TransferSuggestions(ctx, analytics.TransferParams{Outgoing: []int{11}, Bank: 20}),
				"differentials":     svc.Differentials(ctx, analytics.DifferentialParams{MaxOwnership: 15}),
				"squad":             svc.AnalyzeSquad(ctx, service.SquadRequest{Squad: []int{10, 11, 20}}),
				"captaincy":         svc.CaptaincyPicks(ctx, service.CaptaincyRequest{Squad: []int{10, 20}}),
			}
			for name, o := range outcomes {
				So(fmt.Sprint(name, ": ", o.Error), ShouldEqual, name+": <nil>")
				So(o.Epoch, ShouldEqual, model.Epoch(1))
			}
		})
	})
}

func TestService_EntrySquads(t *testing.T) {
	Convey("Given a service that can look up entries", t, func() {
		entries := &fakeEntries{picks: map[int]*ingest.EntryPicks{
			77: {Picks: []ingest.Pick{{Element: 20, Position: 1}, {Element: 10, Position: 2}, {Element: 11, Position: 12}}},
		}}
		svc := service.New(committedStore(), engine(),
			service.WithLogger(logger.Nop()),
			service.WithEntrySource(entries))
		ctx := context.Background()

		Convey("An entry id resolves to the picks of the current gameweek", func() {
			o := svc.AnalyzeSquad(ctx, service.SquadRequest{EntryID: 77})
			So(o.OK, ShouldBeTrue)
			So(entries.asked, ShouldResemble, []int{77, 4})
			a := o.Data.(analytics.SquadAnalysis)
			So(a.Size, ShouldEqual, 3)
			So(a.Value, ShouldEqual, model.Price(270))
		})

		Convey("An explicit gameweek is honoured", func() {
			o := svc.CaptaincyPicks(ctx, service.CaptaincyRequest{EntryID: 77, Gameweek: 2})
			So(o.OK, ShouldBeTrue)
			So(entries.asked, ShouldResemble, []int{77, 2})
			So(o.Data.(analytics.CaptaincyPicks).Picks, ShouldHaveLength, 3)
		})

		Convey("An explicit squad wins over the entry id", func() {
			o := svc.CaptaincyPicks(ctx, service.CaptaincyRequest{EntryID: 77, Squad: []int{10}})
			So(o.OK, ShouldBeTrue)
			So(entries.asked, ShouldBeEmpty)
		})

		Convey("Entries without picks are no_data", func() {
			o := svc.AnalyzeSquad(ctx, service.SquadRequest{EntryID: 78})
			So(o.Error.Kind, ShouldEqual, fault.KindNoData)
		})

		Convey("Upstream failures surface as upstream_unavailable", func() {
			entries.err = errors.New("connection reset")
			o := svc.AnalyzeSquad(ctx, service.SquadRequest{EntryID: 77})
			So(o.Error.Kind, ShouldEqual, fault.KindUpstreamUnavailable)
		})

		Convey("Neither squad nor entry is invalid", func() {
			o := svc.AnalyzeSquad(ctx, service.SquadRequest{})
			So(o.Error.Kind, ShouldEqual, fault.KindInvalidParameters)
			So(o.Error.Context["param"], ShouldEqual, "squad")

			o = svc.CaptaincyPicks(ctx, service.CaptaincyRequest{EntryID: -1})
			So(o.Error.Context["param"], ShouldEqual, "entry_id")
		})
	})

	Convey("Without an entry source, entry ids cannot be resolved", t, func() {
		svc := service.New(committedStore(), engine(), service.WithLogger(logger.Nop()))
		o := svc.AnalyzeSquad(context.Background(), service.SquadRequest{EntryID: 77})
		So(o.Error.Kind, ShouldEqual, fault.KindUpstreamUnavailable)
	})
}

func TestService_Sync(t *testing.T) {
	Convey("Given a service with a sync queue", t, func() {
		q := queue.NewSyncQueue(queue.WithCapacity(1))
		svc := service.New(committedStore(), engine(),
			service.WithLogger(logger.Nop()),
			service.WithSyncQueue(q))
		ctx := context.Background()

		Convey("The first trigger is queued and the next coalesced into it", func() {
			first := svc.TriggerSync(ctx, queue.SourceAPI)
			So(first.OK, ShouldBeTrue)
			t1 := first.Data.(service.SyncTrigger)
			So(t1.Coalesced, ShouldBeFalse)

			second := svc.TriggerSync(ctx, queue.SourceTool)
			So(second.OK, ShouldBeTrue)
			t2 := second.Data.(service.SyncTrigger)
			So(t2.Coalesced, ShouldBeTrue)
			So(t2.Trigger.ID, ShouldEqual, t1.Trigger.ID)
		})

		Convey("Status reports the committed epoch and pending triggers", func() {
			_ = svc.TriggerSync(ctx, queue.SourceAPI)
			o := svc.SyncStatus(ctx)
			st := o.Data.(service.SyncStatus)
			So(o.Epoch, ShouldEqual, model.Epoch(1))
			So(st.RunID, ShouldEqual, "run-test")
			So(st.Pending, ShouldEqual, 1)
			So(st.Counts["players"], ShouldEqual, 3)
		})

		Convey("A closed queue refuses triggers", func() {
			_ = q.Close()
			o := svc.TriggerSync(ctx, queue.SourceAPI)
			So(o.OK, ShouldBeFalse)
			So(o.Error.Kind, ShouldEqual, fault.KindInternal)
		})
	})
}
