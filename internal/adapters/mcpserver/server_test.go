package mcpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/dlystyr/fantasypl-mcp/internal/adapters/mq/queue"
	service "github.com/dlystyr/fantasypl-mcp/internal/app"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/analytics"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/types"
)

type stubService struct {
	mu     sync.Mutex
	calls  []string
	params any
	reply  types.Outcome
}

func (s *stubService) record(op string, p any) types.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, op)
	s.params = p
	return s.reply
}

func (s *stubService) last() (string, any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return "", nil
	}
	return s.calls[len(s.calls)-1], s.params
}

func (s *stubService) PlayerInfo(_ context.Context, p analytics.PlayerLookup) types.Outcome {
	return s.record("get_player_info", p)
}

func (s *stubService) SearchPlayers(_ context.Context, p analytics.SearchPlayersParams) types.Outcome {
	return s.record("search_players", p)
}

func (s *stubService) SearchTeams(_ context.Context, p analytics.SearchTeamsParams) types.Outcome {
	return s.record("search_teams", p)
}

func (s *stubService) PlayerForm(_ context.Context, p analytics.PlayerFormParams) types.Outcome {
	return s.record("get_player_form", p)
}

func (s *stubService) PlayersInForm(_ context.Context, p analytics.PlayersInFormParams) types.Outcome {
	return s.record("get_players_in_form", p)
}

func (s *stubService) TeamForm(_ context.Context, p analytics.TeamFormParams) types.Outcome {
	return s.record("get_team_form", p)
}

func (s *stubService) FixtureDifficulty(_ context.Context, p analytics.FixtureDifficultyParams) types.Outcome {
	return s.record("get_fixture_difficulty", p)
}

func (s *stubService) EasiestSchedules(_ context.Context, p analytics.EasiestSchedulesParams) types.Outcome {
	return s.record("get_easiest_schedules", p)
}

func (s *stubService) TransferSuggestions(_ context.Context, p analytics.TransferParams) types.Outcome {
	return s.record("get_transfer_suggestions", p)
}

func (s *stubService) Differentials(_ context.Context, p analytics.DifferentialParams) types.Outcome {
	return s.record("find_differentials", p)
}

func (s *stubService) BogeyTeams(_ context.Context, p analytics.BogeyParams) types.Outcome {
	return s.record("check_bogey_teams", p)
}

func (s *stubService) AnalyzeSquad(_ context.Context, req service.SquadRequest) types.Outcome {
	return s.record("analyze_my_team", req)
}

func (s *stubService) CaptaincyPicks(_ context.Context, req service.CaptaincyRequest) types.Outcome {
	return s.record("get_captaincy_picks", req)
}

func (s *stubService) SyncStatus(context.Context) types.Outcome {
	return s.record("sync_status", nil)
}

func (s *stubService) TriggerSync(_ context.Context, source string) types.Outcome {
	return s.record("trigger_sync", source)
}

func connect(ctx context.Context, srv *Server) (*mcp.ClientSession, error) {
	clientT, serverT := mcp.NewInMemoryTransports()
	if _, err := srv.MCP().Connect(ctx, serverT, nil); err != nil {
		return nil, err
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	return client.Connect(ctx, clientT, nil)
}

func text(res *mcp.CallToolResult) string {
	if res == nil || len(res.Content) == 0 {
		return ""
	}
	if tc, ok := res.Content[0].(*mcp.TextContent); ok {
		return tc.Text
	}
	return ""
}

func TestTools(t *testing.T) {
	Convey("Given an MCP server over a stub service", t, func() {
		ctx := context.Background()
		svc := &stubService{reply: types.Success(7, map[string]int{"answer": 42})}
		srv := New(svc)

		Convey("Every operation is registered once", func() {
			names := make([]string, 0, len(srv.Tools()))
			for _, tool := range srv.Tools() {
				names = append(names, tool.Name)
			}
			So(names, ShouldResemble, []string{
				"get_player_info", "search_players", "search_teams",
				"get_player_form", "get_players_in_form", "get_team_form",
				"get_fixture_difficulty", "get_easiest_schedules", "get_transfer_suggestions",
				"analyze_my_team", "get_captaincy_picks", "find_differentials",
				"check_bogey_teams", "sync_status", "trigger_sync",
			})

			session, err := connect(ctx, srv)
			So(err, ShouldBeNil)
			defer session.Close()
			listed, err := session.ListTools(ctx, &mcp.ListToolsParams{})
			So(err, ShouldBeNil)
			So(len(listed.Tools), ShouldEqual, len(names))
		})

		Convey("A call converts typed arguments and returns the envelope", func() {
			session, err := connect(ctx, srv)
			So(err, ShouldBeNil)
			defer session.Close()

			res, err := session.CallTool(ctx, &mcp.CallToolParams{
				Name:      "search_players",
				Arguments: map[string]any{"query": "saka", "position": "MID", "max_price": 10.5, "limit": 3},
			})
			So(err, ShouldBeNil)
			So(res.IsError, ShouldBeFalse)
			So(text(res), ShouldContainSubstring, `"ok":true`)
			So(text(res), ShouldContainSubstring, `"epoch":7`)

			op, p := svc.last()
			So(op, ShouldEqual, "search_players")
			So(p, ShouldResemble, analytics.SearchPlayersParams{
				Query: "saka", Position: model.Midfielder, MaxPrice: 105, Limit: 3,
			})
		})

		Convey("A failed outcome is flagged as a tool error", func() {
			svc.reply = types.Failure(fault.New(fault.KindNoData, "get_player_info", "no player with id 99"))
			session, err := connect(ctx, srv)
			So(err, ShouldBeNil)
			defer session.Close()

			res, err := session.CallTool(ctx, &mcp.CallToolParams{
				Name:      "get_player_info",
				Arguments: map[string]any{"player_id": 99},
			})
			So(err, ShouldBeNil)
			So(res.IsError, ShouldBeTrue)
			So(text(res), ShouldContainSubstring, `"kind":"no_data"`)
		})

		Convey("Bad positions never reach the service", func() {
			session, err := connect(ctx, srv)
			So(err, ShouldBeNil)
			defer session.Close()

			res, err := session.CallTool(ctx, &mcp.CallToolParams{
				Name:      "find_differentials",
				Arguments: map[string]any{"position": "sweeper"},
			})
			So(err, ShouldBeNil)
			So(res.IsError, ShouldBeTrue)
			So(text(res), ShouldContainSubstring, `"kind":"invalid_parameters"`)
			op, _ := svc.last()
			So(op, ShouldBeEmpty)
		})

		Convey("Trigger sync is attributed to the tool source", func() {
			session, err := connect(ctx, srv)
			So(err, ShouldBeNil)
			defer session.Close()

			_, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "trigger_sync", Arguments: map[string]any{}})
			So(err, ShouldBeNil)
			op, src := svc.last()
			So(op, ShouldEqual, "trigger_sync")
			So(src, ShouldEqual, queue.SourceTool)
		})
	})
}

func TestTransferParams(t *testing.T) {
	Convey("Transfer arguments convert millions to prices", t, func() {
		p, err := transferParams(TransferArgs{
			Outgoing:       []int{10},
			Bank:           0.5,
			PurchasePrices: map[string]float64{"10": 9.8},
			Position:       "fwd",
		})
		So(err, ShouldBeNil)
		So(p.Bank, ShouldEqual, model.Price(5))
		So(p.PurchasePrices, ShouldResemble, map[int]model.Price{10: 98})
		So(p.Position, ShouldEqual, model.Forward)

		_, err = transferParams(TransferArgs{Outgoing: []int{10}, PurchasePrices: map[string]float64{"saka": 9}})
		So(fault.Is(err, fault.KindInvalidParameters), ShouldBeTrue)

		_, err = transferParams(TransferArgs{Outgoing: []int{10}, Bank: 0.55})
		So(fault.ContextOf(err)["param"], ShouldEqual, "bank")
	})
}

func TestAuth(t *testing.T) {
	Convey("The HTTP handler checks the API key", t, func() {
		srv := New(&stubService{}, WithAPIKey("s3cret", "X-API-Key"))
		ts := httptest.NewServer(srv.Handler())
		defer ts.Close()

		post := func(header, value string) int {
			req, _ := http.NewRequest(http.MethodPost, ts.URL, strings.NewReader(`{}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json, text/event-stream")
			if header != "" {
				req.Header.Set(header, value)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return 0
			}
			_ = resp.Body.Close()
			return resp.StatusCode
		}

		So(post("", ""), ShouldEqual, http.StatusUnauthorized)
		So(post("X-API-Key", "wrong"), ShouldEqual, http.StatusUnauthorized)
		So(post("X-API-Key", "s3cret"), ShouldNotEqual, http.StatusUnauthorized)
		So(post("Authorization", "Bearer s3cret"), ShouldNotEqual, http.StatusUnauthorized)
	})

	Convey("Without a key every request passes", t, func() {
		srv := New(&stubService{})
		rec := httptest.NewRecorder()
		srv.withAuth(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
		So(rec.Code, ShouldEqual, http.StatusNoContent)
	})
}
