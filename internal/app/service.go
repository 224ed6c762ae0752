// Package service provides the facade the HTTP API and the MCP tools call:
// every analytics operation evaluated against the current epoch through the
// read-through cache, plus sync status and triggering.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/dlystyr/fantasypl-mcp/internal/adapters/cache"
	"github.com/dlystyr/fantasypl-mcp/internal/adapters/mq/queue"
	"github.com/dlystyr/fantasypl-mcp/internal/adapters/mq/worker"
	"github.com/dlystyr/fantasypl-mcp/internal/adapters/scheduler"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/analytics"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/ingest"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/types"
	"github.com/dlystyr/fantasypl-mcp/pkg/logger"
	"github.com/dlystyr/fantasypl-mcp/pkg/metrics"
)

// Store is the read side of the canonical store.
type Store interface {
	Current(ctx context.Context) (*model.Snapshot, error)
	Epoch() model.Epoch
}

// Enqueuer accepts sync requests.
type Enqueuer interface {
	Enqueue(ctx context.Context, source string) (queue.Trigger, error)
	Len() int
}

// SyncState reports the sync worker's progress.
type SyncState interface {
	Running() bool
	Last() (worker.Result, bool)
}

// Reports exposes the last finished ingestion run.
type Reports interface {
	LastReport() (ingest.Report, bool)
}

// EntrySource resolves a manager's picks.
type EntrySource interface {
	FetchEntryPicks(ctx context.Context, entryID, gameweek int) (*ingest.EntryPicks, error)
}

// Jobs lists scheduled sync jobs.
type Jobs interface {
	Jobs() []scheduler.JobInfo
}

// Service implements the operations exposed to callers.
type Service struct {
	store   Store
	engine  *analytics.Engine
	cache   *cache.ReadThrough
	entries EntrySource
	queue   Enqueuer
	worker  SyncState
	reports Reports
	jobs    Jobs
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCache routes operations through a read-through cache.
func WithCache(c *cache.ReadThrough) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithEntrySource enables entry_id squad lookups.
func WithEntrySource(src EntrySource) Option {
	return func(s *Service) { s.entries = src }
}

// WithSyncQueue enables TriggerSync.
func WithSyncQueue(q Enqueuer) Option {
	return func(s *Service) { s.queue = q }
}

// WithSyncState reports worker progress in SyncStatus.
func WithSyncState(w SyncState) Option {
	return func(s *Service) { s.worker = w }
}

// WithReports reports the last ingestion run in SyncStatus.
func WithReports(r Reports) Option {
	return func(s *Service) { s.reports = r }
}

// WithJobs reports the sync schedule in SyncStatus.
func WithJobs(j Jobs) Option {
	return func(s *Service) { s.jobs = j }
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service over store and engine. Without WithCache every
// call computes.
func New(store Store, engine *analytics.Engine, opts ...Option) *Service {
	s := &Service{
		store:  store,
		engine: engine,
		logger: logger.Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.New(nil, cache.WithLogger(s.logger))
	}
	return s
}

// Engine returns the analytics engine.
func (s *Service) Engine() *analytics.Engine { return s.engine }

// run validates params, loads the current snapshot and evaluates compute
// through the cache.
func run[P, T any](
	ctx context.Context,
	s *Service,
	op string,
	params P,
	normalize func(P, analytics.Config) (P, error),
	compute func(*model.Snapshot, P) (T, error),
) types.Outcome {
	start := time.Now()
	p, err := normalize(params, s.engine.Config())
	if err != nil {
		return s.fail(ctx, op, start, err)
	}
	snap, err := s.store.Current(ctx)
	if err != nil {
		return s.fail(ctx, op, start, err)
	}
	return evaluate(ctx, s, op, start, snap, p, compute)
}

func evaluate[P, T any](
	ctx context.Context,
	s *Service,
	op string,
	start time.Time,
	snap *model.Snapshot,
	params P,
	compute func(*model.Snapshot, P) (T, error),
) types.Outcome {
	if err := ctx.Err(); err != nil {
		return s.fail(ctx, op, start, fault.Wrap(fault.KindCancelled, op, err))
	}
	res, err := cache.GetOrCompute(ctx, s.cache, op, params, cache.VersionOf(snap), func(context.Context) (T, error) {
		return compute(snap, params)
	})
	if err != nil {
		return s.fail(ctx, op, start, err)
	}
	s.observe(op, start)
	return types.Success(snap.Epoch, res)
}

func (s *Service) observe(op string, start time.Time) {
	metrics.RecordAnalyticsLatency(op, float64(time.Since(start).Microseconds())/1000)
}

func (s *Service) fail(ctx context.Context, op string, start time.Time, err error) types.Outcome {
	s.observe(op, start)
	kind := fault.KindOf(err)
	metrics.RecordAnalyticsError(op, string(kind))
	if kind == fault.KindInternal {
		s.logger.Error(ctx, "operation failed", logger.String("op", op), logger.Error(err))
	} else {
		s.logger.Debug(ctx, "operation rejected", logger.String("op", op), logger.String("kind", string(kind)), logger.Error(err))
	}
	return types.Failure(err)
}

// PlayerInfo resolves one player by id or fuzzy name.
func (s *Service) PlayerInfo(ctx context.Context, p analytics.PlayerLookup) types.Outcome {
	return run(ctx, s, "get_player_info", p, analytics.PlayerLookup.Normalize, s.engine.PlayerInfo)
}

// SearchPlayers filters and ranks players.
func (s *Service) SearchPlayers(ctx context.Context, p analytics.SearchPlayersParams) types.Outcome {
	return run(ctx, s, "search_players", p, analytics.SearchPlayersParams.Normalize, s.engine.SearchPlayers)
}

// SearchTeams fuzzy-matches team names.
func (s *Service) SearchTeams(ctx context.Context, p analytics.SearchTeamsParams) types.Outcome {
	return run(ctx, s, "search_teams", p, analytics.SearchTeamsParams.Normalize, s.engine.SearchTeams)
}

// PlayerForm scores one player's recent form.
func (s *Service) PlayerForm(ctx context.Context, p analytics.PlayerFormParams) types.Outcome {
	return run(ctx, s, "get_player_form", p, analytics.PlayerFormParams.Normalize, s.engine.PlayerForm)
}

// PlayersInForm ranks players by form.
func (s *Service) PlayersInForm(ctx context.Context, p analytics.PlayersInFormParams) types.Outcome {
	return run(ctx, s, "get_players_in_form", p, analytics.PlayersInFormParams.Normalize, s.engine.PlayersInForm)
}

// TeamForm summarizes a team's recent results.
func (s *Service) TeamForm(ctx context.Context, p analytics.TeamFormParams) types.Outcome {
	return run(ctx, s, "get_team_form", p, analytics.TeamFormParams.Normalize, s.engine.TeamForm)
}

// FixtureDifficulty rates a team's or player's upcoming fixtures.
func (s *Service) FixtureDifficulty(ctx context.Context, p analytics.FixtureDifficultyParams) types.Outcome {
	return run(ctx, s, "get_fixture_difficulty", p, analytics.FixtureDifficultyParams.Normalize, s.engine.FixtureDifficulty)
}

// EasiestSchedules ranks teams by upcoming difficulty.
func (s *Service) EasiestSchedules(ctx context.Context, p analytics.EasiestSchedulesParams) types.Outcome {
	return run(ctx, s, "get_easiest_schedules", p, analytics.EasiestSchedulesParams.Normalize, s.engine.EasiestSchedules)
}

// TransferSuggestions proposes replacements for outgoing players.
func (s *Service) TransferSuggestions(ctx context.Context, p analytics.TransferParams) types.Outcome {
	return run(ctx, s, "get_transfer_suggestions", p, analytics.TransferParams.Normalize, s.engine.TransferSuggestions)
}

// Differentials finds low-ownership players in form.
func (s *Service) Differentials(ctx context.Context, p analytics.DifferentialParams) types.Outcome {
	return run(ctx, s, "find_differentials", p, analytics.DifferentialParams.Normalize, s.engine.Differentials)
}

// BogeyTeams reports opponents a player or team historically struggles against.
func (s *Service) BogeyTeams(ctx context.Context, p analytics.BogeyParams) types.Outcome {
	return run(ctx, s, "check_bogey_teams", p, analytics.BogeyParams.Normalize, s.engine.BogeyTeams)
}

// SquadRequest names a squad directly or by entry id. An explicit squad
// wins over an entry id.
type SquadRequest struct {
	Squad    []int `json:"squad,omitempty"`
	EntryID  int   `json:"entry_id,omitempty"`
	Gameweek int   `json:"gameweek,omitempty"`
	Horizon  int   `json:"horizon,omitempty"`
}

// CaptaincyRequest is a SquadRequest for captaincy ranking.
type CaptaincyRequest struct {
	Squad        []int `json:"squad,omitempty"`
	EntryID      int   `json:"entry_id,omitempty"`
	Gameweek     int   `json:"gameweek,omitempty"`
	Differential bool  `json:"differential,omitempty"`
	Limit        int   `json:"limit,omitempty"`
}

// AnalyzeSquad reviews a fifteen-man squad.
func (s *Service) AnalyzeSquad(ctx context.Context, req SquadRequest) types.Outcome {
	const op = "analyze_my_team"
	start := time.Now()
	snap, err := s.store.Current(ctx)
	if err != nil {
		return s.fail(ctx, op, start, err)
	}
	squad, err := s.resolveSquad(ctx, op, snap, req.Squad, req.EntryID, req.Gameweek)
	if err != nil {
		return s.fail(ctx, op, start, err)
	}
	p, err := analytics.SquadParams{Squad: squad, Horizon: req.Horizon}.Normalize(s.engine.Config())
	if err != nil {
		return s.fail(ctx, op, start, err)
	}
	return evaluate(ctx, s, op, start, snap, p, s.engine.AnalyzeSquad)
}

// CaptaincyPicks ranks captain options within a squad.
func (s *Service) CaptaincyPicks(ctx context.Context, req CaptaincyRequest) types.Outcome {
	const op = "get_captaincy_picks"
	start := time.Now()
	snap, err := s.store.Current(ctx)
	if err != nil {
		return s.fail(ctx, op, start, err)
	}
	squad, err := s.resolveSquad(ctx, op, snap, req.Squad, req.EntryID, req.Gameweek)
	if err != nil {
		return s.fail(ctx, op, start, err)
	}
	p, err := analytics.CaptaincyParams{Squad: squad, Differential: req.Differential, Limit: req.Limit}.Normalize(s.engine.Config())
	if err != nil {
		return s.fail(ctx, op, start, err)
	}
	return evaluate(ctx, s, op, start, snap, p, s.engine.CaptaincyPicks)
}

// resolveSquad returns squad when given, otherwise the entry's picks for
// gameweek, defaulting to the current gameweek.
func (s *Service) resolveSquad(ctx context.Context, op string, snap *model.Snapshot, squad []int, entryID, gameweek int) ([]int, error) {
	if len(squad) > 0 {
		return squad, nil
	}
	switch {
	case entryID == 0:
		return nil, fault.Invalid(op, "squad", "either squad or entry_id is required")
	case entryID < 0:
		return nil, fault.Invalid(op, "entry_id", "entry_id must be positive, got %d", entryID)
	case gameweek < 0:
		return nil, fault.Invalid(op, "gameweek", "gameweek must be positive, got %d", gameweek)
	case s.entries == nil:
		return nil, fault.New(fault.KindUpstreamUnavailable, op, "entry lookups are not configured")
	}

	if gameweek == 0 {
		gw, ok := snap.CurrentGameweek()
		if !ok {
			return nil, fault.Invalid(op, "gameweek", "no gameweek has started yet; pass a squad instead")
		}
		gameweek = gw.ID
	}

	picks, err := s.entries.FetchEntryPicks(ctx, entryID, gameweek)
	if err != nil {
		if fault.KindOf(err) == fault.KindInternal {
			err = fault.Wrap(fault.KindUpstreamUnavailable, op, err)
		}
		return nil, err
	}
	if picks == nil || len(picks.Picks) == 0 {
		return nil, fault.New(fault.KindNoData, op, "entry %d has no picks for gameweek %d", entryID, gameweek).
			With("entry_id", entryID).With("gameweek", gameweek)
	}
	out := make([]int, 0, len(picks.Picks))
	for _, pick := range picks.Picks {
		out = append(out, pick.Element)
	}
	return out, nil
}

// SyncStatus describes the committed epoch and the sync machinery.
type SyncStatus struct {
	Epoch       model.Epoch         `json:"epoch"`
	RunID       string              `json:"run_id,omitempty"`
	CommittedAt *time.Time          `json:"committed_at,omitempty"`
	Counts      map[string]int      `json:"counts,omitempty"`
	CacheEpoch  model.Epoch         `json:"cache_epoch"`
	Syncing     bool                `json:"syncing"`
	Pending     int                 `json:"pending"`
	LastReport  *ingest.Report      `json:"last_report,omitempty"`
	LastTrigger *queue.Trigger      `json:"last_trigger,omitempty"`
	Schedule    []scheduler.JobInfo `json:"schedule,omitempty"`
}

// SyncStatus never fails; before the first commit the epoch is zero.
func (s *Service) SyncStatus(ctx context.Context) types.Outcome {
	st := SyncStatus{CacheEpoch: s.cache.Latest()}
	if snap, err := s.store.Current(ctx); err == nil {
		st.Epoch = snap.Epoch
		st.RunID = snap.RunID
		at := snap.CommittedAt
		st.CommittedAt = &at
		st.Counts = snap.Counts()
	}
	if s.reports != nil {
		if r, ok := s.reports.LastReport(); ok {
			st.LastReport = &r
		}
	}
	if s.worker != nil {
		st.Syncing = s.worker.Running()
		if res, ok := s.worker.Last(); ok {
			st.LastTrigger = &res.Trigger
		}
	}
	if s.queue != nil {
		st.Pending = s.queue.Len()
	}
	if s.jobs != nil {
		st.Schedule = s.jobs.Jobs()
	}
	return types.Success(st.Epoch, st)
}

// SyncTrigger acknowledges a sync request.
type SyncTrigger struct {
	Trigger   queue.Trigger `json:"trigger"`
	Coalesced bool          `json:"coalesced"`
}

// TriggerSync queues a sync. A request made while one is already pending
// is coalesced into it and still succeeds.
func (s *Service) TriggerSync(ctx context.Context, source string) types.Outcome {
	const op = "trigger_sync"
	if s.queue == nil {
		return types.Failure(fault.New(fault.KindInternal, op, "sync queue is not configured"))
	}
	t, err := s.queue.Enqueue(ctx, source)
	switch {
	case errors.Is(err, queue.ErrCoalesced):
		return types.Success(s.store.Epoch(), SyncTrigger{Trigger: t, Coalesced: true})
	case errors.Is(err, queue.ErrClosed):
		return types.Failure(fault.Wrap(fault.KindInternal, op, err))
	case err != nil:
		return types.Failure(fault.Wrap(fault.KindCancelled, op, err))
	}
	s.logger.Info(ctx, "sync requested", logger.String("trigger", t.ID), logger.String("source", source))
	return types.Success(s.store.Epoch(), SyncTrigger{Trigger: t})
}
