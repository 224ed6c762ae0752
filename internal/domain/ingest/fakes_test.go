package ingest_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/ingest"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

var (
	errUpstreamDown = errors.New("connection refused")
	noData          = fault.New(fault.KindNoData, "current snapshot", "nothing committed")
)

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }
func boolp(v bool) *bool    { return &v }

func fixedClock() func() time.Time {
	t := time.Date(2025, 8, 20, 8, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

// fakeSource serves canned payloads and can be told to fail per endpoint.
type fakeSource struct {
	mu        sync.Mutex
	boot      *ingest.Bootstrap
	fixtures  []ingest.FixtureRecord
	history   map[int][]ingest.HistoryRecord
	bootErr   error
	fixErr    error
	histErr   map[int]error
	block     chan struct{}
	failBoot  atomic.Int32
	calls     atomic.Int32
	histCalls atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		boot:     sampleBootstrap(),
		fixtures: sampleFixtures(),
		history: map[int][]ingest.HistoryRecord{
			10: {
				{Element: 10, Fixture: 100, OpponentTeam: 2, TotalPoints: 9, WasHome: true, Round: 1, Minutes: 90, GoalsScored: 1, Value: 100},
			},
			20: {
				{Element: 20, Fixture: 100, OpponentTeam: 1, TotalPoints: 2, Round: 1, Minutes: 90, Value: 90},
			},
		},
		histErr: map[int]error{},
	}
}

func (f *fakeSource) wait(ctx context.Context) error {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block == nil {
		return nil
	}
	select {
	case <-block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSource) FetchBootstrap(ctx context.Context) (*ingest.Bootstrap, error) {
	f.calls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.failBoot.Load() > 0 {
		f.failBoot.Add(-1)
		return nil, errUpstreamDown
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bootErr != nil {
		return nil, f.bootErr
	}
	cp := *f.boot
	return &cp, nil
}

func (f *fakeSource) FetchFixtures(ctx context.Context) ([]ingest.FixtureRecord, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fixErr != nil {
		return nil, f.fixErr
	}
	return append([]ingest.FixtureRecord(nil), f.fixtures...), nil
}

func (f *fakeSource) FetchPlayerHistory(_ context.Context, id int) ([]ingest.HistoryRecord, error) {
	f.histCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.histErr[id]; err != nil {
		return nil, err
	}
	return append([]ingest.HistoryRecord(nil), f.history[id]...), nil
}

func (f *fakeSource) FetchEntryPicks(context.Context, int, int) (*ingest.EntryPicks, error) {
	return &ingest.EntryPicks{}, nil
}

func sampleBootstrap() *ingest.Bootstrap {
	return &ingest.Bootstrap{
		Teams: []ingest.TeamRecord{
			{ID: 1, Name: "Arsenal", ShortName: "ARS", Strength: 5, StrengthAttackHome: 1300, StrengthAttackAway: 1250, StrengthDefenceHome: 1320, StrengthDefenceAway: 1290},
			{ID: 2, Name: "Aston Villa", ShortName: "AVL", Strength: 3, StrengthAttackHome: 1150, StrengthAttackAway: 1100, StrengthDefenceHome: 1120, StrengthDefenceAway: 1090},
		},
		Players: []ingest.PlayerRecord{
			{ID: 10, WebName: "Saka", Team: 1, ElementType: 3, NowCost: 101, TotalPoints: 40, Form: 6.5, SelectedByPercent: 31.2, Status: "a"},
			{ID: 20, WebName: "Watkins", Team: 2, ElementType: 4, NowCost: 90, TotalPoints: 30, Form: 4.1, SelectedByPercent: 12.0, Status: "d", ChanceOfPlaying: intp(75), NewsAdded: strp("2025-08-10T09:00:00Z")},
		},
		Gameweeks: []ingest.GameweekRecord{
			{ID: 1, Name: "Gameweek 1", DeadlineTime: "2025-08-15T17:30:00Z", Finished: true, DataChecked: true, IsCurrent: true},
			{ID: 2, Name: "Gameweek 2", DeadlineTime: "2025-08-22T17:30:00Z", IsNext: true},
		},
	}
}

func sampleFixtures() []ingest.FixtureRecord {
	return []ingest.FixtureRecord{
		{ID: 100, Event: intp(1), TeamH: 1, TeamA: 2, TeamHScore: intp(2), TeamAScore: intp(0), KickoffTime: strp("2025-08-16T14:00:00Z"), Started: boolp(true), Finished: true, TeamHDifficulty: 3, TeamADifficulty: 4},
		{ID: 101, Event: intp(2), TeamH: 2, TeamA: 1, KickoffTime: strp("2025-08-23T14:00:00Z"), Started: boolp(false), TeamHDifficulty: 4, TeamADifficulty: 3},
	}
}

// memStore is a minimal canonical store for pipeline tests.
type memStore struct {
	mu      sync.Mutex
	current atomic.Pointer[model.Snapshot]
	commits int
}

func (m *memStore) Current(context.Context) (*model.Snapshot, error) {
	if s := m.current.Load(); s != nil {
		return s, nil
	}
	return nil, noData
}

func (m *memStore) Commit(_ context.Context, snap *model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits++
	m.current.Store(snap)
	return nil
}

// recorder captures epoch advances and failure notifications.
type recorder struct {
	mu       sync.Mutex
	epochs   []model.Epoch
	failures []ingest.Report
}

func (r *recorder) EpochAdvanced(_ context.Context, snap *model.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epochs = append(r.epochs, snap.Epoch)
}

func (r *recorder) NotifySyncFailure(_ context.Context, report ingest.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, report)
	return nil
}
