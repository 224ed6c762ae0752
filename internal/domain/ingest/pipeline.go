// Package ingest pulls the upstream snapshot, normalizes it and commits it
// to the canonical store as a new sync epoch.
//
// A run either commits a complete, referentially consistent snapshot or
// leaves the previous epoch current. Subsets that fail to fetch or validate
// are carried forward from the previous epoch with their old epoch stamps.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
	"github.com/dlystyr/fantasypl-mcp/pkg/logger"
	"github.com/dlystyr/fantasypl-mcp/pkg/metrics"
)

const (
	defaultHistoryTopN        = 100
	defaultHistoryConcurrency = 4
	notifyTimeout             = 10 * time.Second
	maxReportedBreaks         = 5
)

// Source is the read-only upstream.
type Source interface {
	FetchBootstrap(ctx context.Context) (*Bootstrap, error)
	FetchFixtures(ctx context.Context) ([]FixtureRecord, error)
	FetchPlayerHistory(ctx context.Context, playerID int) ([]HistoryRecord, error)
	FetchEntryPicks(ctx context.Context, entryID, gameweek int) (*EntryPicks, error)
}

// Store is the canonical store the pipeline reads its base from and commits to.
// Current returns a no_data error before the first commit.
type Store interface {
	Current(ctx context.Context) (*model.Snapshot, error)
	Commit(ctx context.Context, snap *model.Snapshot) error
}

// EpochListener is told about every committed epoch.
type EpochListener interface {
	EpochAdvanced(ctx context.Context, snap *model.Snapshot)
}

// EpochListenerFunc adapts a function to EpochListener.
type EpochListenerFunc func(ctx context.Context, snap *model.Snapshot)

// EpochAdvanced calls f.
func (f EpochListenerFunc) EpochAdvanced(ctx context.Context, snap *model.Snapshot) { f(ctx, snap) }

// Notifier receives reports of failed runs.
type Notifier interface {
	NotifySyncFailure(ctx context.Context, report Report) error
}

// Pipeline runs ingestion. Runs are serialized; Sync is safe to call concurrently.
type Pipeline struct {
	source     Source
	store      Store
	normalizer *Normalizer

	retry              RetryPolicy
	historyTopN        int
	historyConcurrency int

	listeners []EpochListener
	notifier  Notifier
	logger    logger.Logger
	now       func() time.Time

	slot chan struct{}
	last atomic.Pointer[Report]
}

// NewPipeline creates a pipeline reading from source and committing to store.
func NewPipeline(source Source, store Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:             source,
		store:              store,
		retry:              DefaultRetryPolicy(),
		historyTopN:        defaultHistoryTopN,
		historyConcurrency: defaultHistoryConcurrency,
		logger:             logger.Named("ingest"),
		now:                time.Now,
		slot:               make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.normalizer = NewNormalizer(p.now)
	return p
}

// LastReport returns the report of the most recent finished run.
func (p *Pipeline) LastReport() (Report, bool) {
	r := p.last.Load()
	if r == nil {
		return Report{}, false
	}
	return *r, true
}

// Sync performs one ingestion run. It waits for an in-flight run to finish
// first, or gives up when ctx is done. The returned report is populated on
// failure too.
func (p *Pipeline) Sync(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString(), StartedAt: p.now()}

	select {
	case p.slot <- struct{}{}:
	case <-ctx.Done():
		return p.finish(ctx, report, nil, fault.Wrap(fault.KindCancelled, "sync", ctx.Err()))
	}
	defer func() { <-p.slot }()
	report.StartedAt = p.now()

	base, err := p.store.Current(ctx)
	switch {
	case err == nil:
		report.PreviousEpoch = base.Epoch
	case fault.Is(err, fault.KindNoData):
		base = nil
	default:
		return p.finish(ctx, report, nil, err)
	}

	p.logger.Info(ctx, "sync started",
		logger.String("run_id", report.RunID),
		logger.Int64("previous_epoch", int64(report.PreviousEpoch)))

	snap, err := p.assemble(ctx, base, report.PreviousEpoch+1, &report)
	if err == nil && ctx.Err() != nil {
		err = fault.Wrap(fault.KindCancelled, "sync", ctx.Err())
	}
	if err == nil {
		snap.RunID = report.RunID
		snap.CommittedAt = p.now().UTC()
		err = p.store.Commit(ctx, snap)
	}
	return p.finish(ctx, report, snap, err)
}

func (p *Pipeline) finish(ctx context.Context, report Report, snap *model.Snapshot, err error) (Report, error) {
	report.FinishedAt = p.now()
	durationMs := float64(report.Duration().Microseconds()) / 1000

	if err != nil {
		report.ErrorKind = fault.KindOf(err)
		report.Error = err.Error()
		p.last.Store(&report)
		metrics.RecordSyncRun(string(report.ErrorKind), durationMs)
		metrics.RecordErrorByComponent("ingest", string(report.ErrorKind))
		p.logger.Error(ctx, "sync failed",
			logger.String("run_id", report.RunID),
			logger.String("kind", string(report.ErrorKind)),
			logger.Duration("duration", report.Duration()),
			logger.Error(err))
		if p.notifier != nil && report.ErrorKind != fault.KindCancelled {
			nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
			if nerr := p.notifier.NotifySyncFailure(nctx, report); nerr != nil {
				p.logger.Warn(ctx, "failure notification not delivered", logger.Error(nerr))
			}
			cancel()
		}
		return report, err
	}

	report.Committed = true
	report.Epoch = snap.Epoch
	p.last.Store(&report)

	metrics.RecordSyncRun("committed", durationMs)
	metrics.UpdateSyncEpoch(int64(snap.Epoch), snap.CommittedAt.Unix())
	counts := snap.Counts()
	for name, n := range counts {
		metrics.UpdateSyncEntities(name, n)
	}
	p.logger.Info(ctx, "sync committed",
		logger.String("run_id", report.RunID),
		logger.Int64("epoch", int64(snap.Epoch)),
		logger.Int("players", counts[SubsetPlayers]),
		logger.Int("fixtures", counts[SubsetFixtures]),
		logger.Int("dropped", report.DroppedTotal()),
		logger.Duration("duration", report.Duration()))

	for _, l := range p.listeners {
		l.EpochAdvanced(ctx, snap)
	}
	return report, nil
}

// assemble builds the candidate snapshot for epoch. Nothing is visible to
// readers until the caller commits it.
func (p *Pipeline) assemble(ctx context.Context, base *model.Snapshot, epoch model.Epoch, report *Report) (*model.Snapshot, error) {
	var (
		boot         *Bootstrap
		fixtures     []FixtureRecord
		bootErr      error
		fixErr       error
		bootAttempts int
		fixAttempts  int
		g            errgroup.Group
	)
	g.Go(func() error {
		bootAttempts, bootErr = p.retry.Do(ctx, "bootstrap-static", func(ctx context.Context) error {
			b, err := p.source.FetchBootstrap(ctx)
			if err != nil {
				return err
			}
			boot = b
			return nil
		})
		return nil
	})
	g.Go(func() error {
		fixAttempts, fixErr = p.retry.Do(ctx, "fixtures", func(ctx context.Context) error {
			fs, err := p.source.FetchFixtures(ctx)
			if err != nil {
				return err
			}
			fixtures = fs
			return nil
		})
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fault.Wrap(fault.KindCancelled, "sync", err)
	}
	if bootErr != nil && fixErr != nil {
		fe := fault.New(fault.KindUpstreamUnavailable, "sync", "every upstream fetch failed")
		fe.Err = errors.Join(bootErr, fixErr)
		return nil, fe
	}
	if boot == nil && bootErr == nil {
		bootErr = errors.New("empty bootstrap payload")
	}

	snap := model.NewSnapshot(epoch)
	var bootstrap Bootstrap
	if boot != nil {
		bootstrap = *boot
	}

	teams, _, _ := resolveSubset(ctx, p, report, SubsetTeams, bootErr, bootAttempts,
		func() ([]model.Team, []Drop, error) { return p.normalizer.Teams(bootstrap.Teams, epoch) },
		func() []model.Team { return carriedTeams(base) })
	players, playerDrops, playersFresh := resolveSubset(ctx, p, report, SubsetPlayers, bootErr, bootAttempts,
		func() ([]model.Player, []Drop, error) { return p.normalizer.Players(bootstrap.Players, epoch) },
		func() []model.Player { return carriedPlayers(base) })
	gameweeks, _, _ := resolveSubset(ctx, p, report, SubsetGameweeks, bootErr, bootAttempts,
		func() ([]model.Gameweek, []Drop, error) { return p.normalizer.Gameweeks(bootstrap.Gameweeks, epoch) },
		func() []model.Gameweek { return carriedGameweeks(base) })
	fixs, _, _ := resolveSubset(ctx, p, report, SubsetFixtures, fixErr, fixAttempts,
		func() ([]model.Fixture, []Drop, error) { return p.normalizer.Fixtures(fixtures, epoch) },
		func() []model.Fixture { return carriedFixtures(base) })

	for _, t := range teams {
		snap.Teams[t.ID] = t
	}
	for _, pl := range players {
		snap.Players[pl.ID] = pl
	}
	snap.Gameweeks = gameweeks
	for _, f := range fixs {
		snap.Fixtures[f.ID] = f
	}
	if playersFresh {
		if kept := carryDroppedPlayers(base, snap, playerDrops); kept > 0 {
			if sr, ok := report.Subset(SubsetPlayers); ok {
				sr.Status = SubsetPartial
				sr.Count = len(snap.Players)
				report.setSubset(sr)
			}
			p.logger.Warn(ctx, "dropped players kept from previous epoch", logger.Int("count", kept))
		}
	}

	for _, req := range []struct {
		name string
		n    int
	}{{SubsetTeams, len(snap.Teams)}, {SubsetPlayers, len(snap.Players)}, {SubsetGameweeks, len(snap.Gameweeks)}} {
		if req.n > 0 {
			continue
		}
		kind := fault.KindValidation
		if bootErr != nil {
			kind = fault.KindUpstreamUnavailable
		}
		fe := fault.New(kind, "sync", "%s subset is empty", req.name).With("subset", req.name)
		fe.Err = bootErr
		return nil, fe
	}

	playerIDs := sortedIDs(snap.Players)
	if err := p.history(ctx, base, snap, playerIDs, report); err != nil {
		return nil, err
	}
	p.prices(base, snap, playerIDs, playersFresh, report)

	if err := checkReferences(snap, playerIDs); err != nil {
		return nil, err
	}
	return snap.Seal(), nil
}

// resolveSubset returns fresh records and their drops when the fetch
// succeeded and the subset validates, and the previous epoch's records
// otherwise.
func resolveSubset[T any](
	ctx context.Context,
	p *Pipeline,
	report *Report,
	name string,
	fetchErr error,
	attempts int,
	normalize func() ([]T, []Drop, error),
	carried func() []T,
) ([]T, []Drop, bool) {
	sr := SubsetReport{Name: name, Attempts: attempts}
	if fetchErr == nil {
		items, drops, err := normalize()
		sr.Dropped = len(drops)
		report.addDrops(drops)
		metrics.RecordDroppedRecords(name, len(drops))
		if len(drops) > 0 {
			p.logger.Warn(ctx, "records dropped",
				logger.String("subset", name),
				logger.Int("count", len(drops)),
				logger.String("first_reason", drops[0].Reason))
		}
		if err == nil {
			sr.Status = SubsetFresh
			sr.Count = len(items)
			report.setSubset(sr)
			metrics.RecordSubset(name, string(sr.Status))
			return items, drops, true
		}
		fetchErr = err
	}

	items := carried()
	sr.Error = fetchErr.Error()
	sr.Count = len(items)
	sr.Status = SubsetCarried
	if len(items) == 0 {
		sr.Status = SubsetFailed
	}
	report.setSubset(sr)
	metrics.RecordSubset(name, string(sr.Status))
	p.logger.Warn(ctx, "subset not refreshed",
		logger.String("subset", name),
		logger.String("status", string(sr.Status)),
		logger.Error(fetchErr))
	return items, nil, false
}

// history refreshes per-gameweek rows for the top players by total points and
// carries the previous rows of everyone else still in the pool.
func (p *Pipeline) history(ctx context.Context, base *model.Snapshot, snap *model.Snapshot, playerIDs []int, report *Report) error {
	candidates := topByPoints(snap, playerIDs, p.historyTopN)

	var (
		mu       sync.Mutex
		fresh    = make(map[int][]model.PlayerGameweek, len(candidates))
		drops    []Drop
		failed   int
		attempts int
		lastErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.historyConcurrency)
	for _, id := range candidates {
		g.Go(func() error {
			var recs []HistoryRecord
			n, err := p.retry.Do(gctx, "element-summary", func(ctx context.Context) error {
				rs, err := p.source.FetchPlayerHistory(ctx, id)
				if err != nil {
					return err
				}
				recs = rs
				return nil
			})

			mu.Lock()
			defer mu.Unlock()
			attempts += n
			if err != nil {
				if fault.Is(err, fault.KindCancelled) {
					return err
				}
				failed++
				lastErr = fmt.Errorf("player %d: %w", id, err)
				return nil
			}
			rows, ds := p.normalizer.History(id, recs, snap.Epoch)
			fresh[id] = rows
			drops = append(drops, ds...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fault.Wrap(fault.KindCancelled, "sync", err)
	}

	total := 0
	for _, id := range playerIDs {
		rows, ok := fresh[id]
		if !ok && base != nil {
			rows = base.History[id]
		}
		if len(rows) > 0 {
			snap.History[id] = rows
			total += len(rows)
		}
	}

	sort.Slice(drops, func(i, j int) bool { return drops[i].ID < drops[j].ID })
	sr := SubsetReport{Name: SubsetHistory, Status: SubsetFresh, Count: total, Dropped: len(drops), Attempts: attempts}
	switch {
	case failed > 0 && failed == len(candidates):
		sr.Status = SubsetCarried
	case failed > 0:
		sr.Status = SubsetPartial
	}
	if lastErr != nil {
		sr.Error = fmt.Sprintf("%d of %d histories not refreshed; last: %v", failed, len(candidates), lastErr)
		p.logger.Warn(ctx, "history partially refreshed",
			logger.Int("failed", failed),
			logger.Int("requested", len(candidates)),
			logger.Error(lastErr))
	}
	report.addDrops(drops)
	report.setSubset(sr)
	metrics.RecordDroppedRecords(SubsetHistory, len(drops))
	metrics.RecordSubset(SubsetHistory, string(sr.Status))
	return nil
}

// prices extends each player's series with a point when price or ownership
// changed. Series of players the upstream no longer sends are not carried.
func (p *Pipeline) prices(base *model.Snapshot, snap *model.Snapshot, playerIDs []int, observe bool, report *Report) {
	observedAt := p.now().UTC()
	total, added := 0, 0
	for _, id := range playerIDs {
		var series []model.PricePoint
		if base != nil {
			series = append(series, base.Prices[id]...)
		}
		if observe {
			pl := snap.Players[id]
			n := len(series)
			if n == 0 || series[n-1].Price != pl.Price || series[n-1].SelectedByPercent != pl.SelectedByPercent {
				series = append(series, model.PricePoint{
					PlayerID:          id,
					Epoch:             snap.Epoch,
					ObservedAt:        observedAt,
					Price:             pl.Price,
					SelectedByPercent: pl.SelectedByPercent,
				})
				added++
			}
		}
		if len(series) > 0 {
			snap.Prices[id] = series
			total += len(series)
		}
	}
	status := SubsetFresh
	if !observe {
		status = SubsetCarried
	}
	report.setSubset(SubsetReport{Name: SubsetPrices, Status: status, Count: total})
	metrics.RecordSubset(SubsetPrices, string(status))
}

// checkReferences rejects a snapshot with any dangling cross-entity reference.
func checkReferences(snap *model.Snapshot, playerIDs []int) error {
	gameweeks := make(map[int]bool, len(snap.Gameweeks))
	for _, gw := range snap.Gameweeks {
		gameweeks[gw.ID] = true
	}
	var broken []string
	brk := func(format string, args ...any) {
		broken = append(broken, fmt.Sprintf(format, args...))
	}
	for _, id := range playerIDs {
		pl := snap.Players[id]
		if _, ok := snap.Teams[pl.TeamID]; !ok {
			brk("player %d references team %d", id, pl.TeamID)
		}
	}
	for _, id := range sortedIDs(snap.Fixtures) {
		f := snap.Fixtures[id]
		if _, ok := snap.Teams[f.HomeTeamID]; !ok {
			brk("fixture %d references team %d", id, f.HomeTeamID)
		}
		if _, ok := snap.Teams[f.AwayTeamID]; !ok {
			brk("fixture %d references team %d", id, f.AwayTeamID)
		}
		if !gameweeks[f.Gameweek] {
			brk("fixture %d references gameweek %d", id, f.Gameweek)
		}
	}
	for _, id := range playerIDs {
		for _, row := range snap.History[id] {
			if _, ok := snap.Fixtures[row.FixtureID]; !ok {
				brk("history of player %d references fixture %d", id, row.FixtureID)
			}
			if _, ok := snap.Teams[row.OpponentTeamID]; !ok {
				brk("history of player %d references team %d", id, row.OpponentTeamID)
			}
		}
	}
	if len(broken) == 0 {
		return nil
	}
	examples := broken
	if len(examples) > maxReportedBreaks {
		examples = examples[:maxReportedBreaks]
	}
	return fault.New(fault.KindValidation, "sync", "%d broken references", len(broken)).With("examples", examples)
}

func topByPoints(snap *model.Snapshot, playerIDs []int, n int) []int {
	if n <= 0 {
		return nil
	}
	ids := append([]int(nil), playerIDs...)
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := snap.Players[ids[i]], snap.Players[ids[j]]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		return a.ID < b.ID
	})
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

func sortedIDs[V any](m map[int]V) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func carriedTeams(base *model.Snapshot) []model.Team {
	if base == nil {
		return nil
	}
	out := make([]model.Team, 0, len(base.Teams))
	for _, id := range base.TeamIDs() {
		out = append(out, base.Teams[id])
	}
	return out
}

func carriedPlayers(base *model.Snapshot) []model.Player {
	if base == nil {
		return nil
	}
	out := make([]model.Player, 0, len(base.Players))
	for _, id := range base.PlayerIDs() {
		out = append(out, base.Players[id])
	}
	return out
}

// carryDroppedPlayers puts back the previous version of players whose
// record failed validation in this run, so their history and price series
// survive. A player whose team is gone is left out.
func carryDroppedPlayers(base, snap *model.Snapshot, drops []Drop) int {
	if base == nil {
		return 0
	}
	kept := 0
	for _, d := range drops {
		if _, ok := snap.Players[d.ID]; ok {
			continue
		}
		prev, ok := base.Players[d.ID]
		if !ok {
			continue
		}
		if _, ok := snap.Teams[prev.TeamID]; !ok {
			continue
		}
		snap.Players[d.ID] = prev
		kept++
	}
	return kept
}

func carriedGameweeks(base *model.Snapshot) []model.Gameweek {
	if base == nil {
		return nil
	}
	return append([]model.Gameweek(nil), base.Gameweeks...)
}

func carriedFixtures(base *model.Snapshot) []model.Fixture {
	if base == nil {
		return nil
	}
	out := make([]model.Fixture, 0, len(base.Fixtures))
	for _, id := range sortedIDs(base.Fixtures) {
		out = append(out, base.Fixtures[id])
	}
	return out
}
