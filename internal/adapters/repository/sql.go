package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"   // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

// Dialect selects placeholder style and driver.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SQLStore persists snapshots relationally. Every entity table carries the
// epoch that last wrote each row and a sweep column marking the rows present
// in the latest commit; rows not swept by a commit are deleted in the same
// transaction.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL opens a database for dialect and applies the schema.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	switch dialect {
	case DialectPostgres, DialectSQLite:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, dialect)
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := NewSQLStore(db, dialect)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database. Call Migrate before use.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

type tableSpec struct {
	name string
	key  []string
	cols []string
}

//nolint:gochecknoglobals // table layout
var (
	teamsTable = tableSpec{
		name: "teams",
		key:  []string{"id"},
		cols: []string{"id", "code", "name", "short_name", "strength", "overall_home", "overall_away",
			"attack_home", "attack_away", "defence_home", "defence_away"},
	}
	playersTable = tableSpec{
		name: "players",
		key:  []string{"id"},
		cols: []string{"id", "code", "first_name", "second_name", "web_name", "team_id", "position", "price",
			"total_points", "event_points", "points_per_game", "upstream_form", "selected_by_percent", "minutes",
			"goals_scored", "assists", "clean_sheets", "bonus", "expected_goals", "expected_assists", "ict_index",
			"status", "chance_of_playing", "news", "status_changed_at"},
	}
	gameweeksTable = tableSpec{
		name: "gameweeks",
		key:  []string{"id"},
		cols: []string{"id", "name", "deadline", "status", "is_current", "is_next", "average_score", "highest_score"},
	}
	fixturesTable = tableSpec{
		name: "fixtures",
		key:  []string{"id"},
		cols: []string{"id", "code", "gameweek", "home_team_id", "away_team_id", "kickoff", "started", "finished",
			"home_score", "away_score", "home_difficulty", "away_difficulty"},
	}
	historyTable = tableSpec{
		name: "player_history",
		key:  []string{"player_id", "fixture_id"},
		cols: []string{"player_id", "fixture_id", "gameweek", "opponent_team_id", "was_home", "points", "minutes",
			"goals_scored", "assists", "clean_sheets", "bonus", "expected_goals", "expected_assists", "value"},
	}
)

//nolint:gochecknoglobals // schema
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sync_epochs (
		epoch BIGINT PRIMARY KEY,
		run_id TEXT NOT NULL,
		committed_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS teams (
		id INTEGER PRIMARY KEY,
		code INTEGER NOT NULL,
		name TEXT NOT NULL,
		short_name TEXT NOT NULL,
		strength INTEGER NOT NULL,
		overall_home INTEGER NOT NULL,
		overall_away INTEGER NOT NULL,
		attack_home INTEGER NOT NULL,
		attack_away INTEGER NOT NULL,
		defence_home INTEGER NOT NULL,
		defence_away INTEGER NOT NULL,
		epoch BIGINT NOT NULL,
		sweep BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS players (
		id INTEGER PRIMARY KEY,
		code INTEGER NOT NULL,
		first_name TEXT NOT NULL,
		second_name TEXT NOT NULL,
		web_name TEXT NOT NULL,
		team_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		price INTEGER NOT NULL,
		total_points INTEGER NOT NULL,
		event_points INTEGER NOT NULL,
		points_per_game DOUBLE PRECISION NOT NULL,
		upstream_form DOUBLE PRECISION NOT NULL,
		selected_by_percent DOUBLE PRECISION NOT NULL,
		minutes INTEGER NOT NULL,
		goals_scored INTEGER NOT NULL,
		assists INTEGER NOT NULL,
		clean_sheets INTEGER NOT NULL,
		bonus INTEGER NOT NULL,
		expected_goals DOUBLE PRECISION NOT NULL,
		expected_assists DOUBLE PRECISION NOT NULL,
		ict_index DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL,
		chance_of_playing INTEGER,
		news TEXT NOT NULL,
		status_changed_at BIGINT,
		epoch BIGINT NOT NULL,
		sweep BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_players_team ON players(team_id)`,
	`CREATE TABLE IF NOT EXISTS gameweeks (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		deadline BIGINT NOT NULL,
		status TEXT NOT NULL,
		is_current BOOLEAN NOT NULL,
		is_next BOOLEAN NOT NULL,
		average_score INTEGER NOT NULL,
		highest_score INTEGER NOT NULL,
		epoch BIGINT NOT NULL,
		sweep BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fixtures (
		id INTEGER PRIMARY KEY,
		code INTEGER NOT NULL,
		gameweek INTEGER NOT NULL,
		home_team_id INTEGER NOT NULL,
		away_team_id INTEGER NOT NULL,
		kickoff BIGINT,
		started BOOLEAN NOT NULL,
		finished BOOLEAN NOT NULL,
		home_score INTEGER,
		away_score INTEGER,
		home_difficulty INTEGER NOT NULL,
		away_difficulty INTEGER NOT NULL,
		epoch BIGINT NOT NULL,
		sweep BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fixtures_gameweek ON fixtures(gameweek)`,
	`CREATE TABLE IF NOT EXISTS player_history (
		player_id INTEGER NOT NULL,
		fixture_id INTEGER NOT NULL,
		gameweek INTEGER NOT NULL,
		opponent_team_id INTEGER NOT NULL,
		was_home BOOLEAN NOT NULL,
		points INTEGER NOT NULL,
		minutes INTEGER NOT NULL,
		goals_scored INTEGER NOT NULL,
		assists INTEGER NOT NULL,
		clean_sheets INTEGER NOT NULL,
		bonus INTEGER NOT NULL,
		expected_goals DOUBLE PRECISION NOT NULL,
		expected_assists DOUBLE PRECISION NOT NULL,
		value INTEGER NOT NULL,
		epoch BIGINT NOT NULL,
		sweep BIGINT NOT NULL,
		PRIMARY KEY (player_id, fixture_id)
	)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		player_id INTEGER NOT NULL,
		epoch BIGINT NOT NULL,
		observed_at BIGINT NOT NULL,
		price INTEGER NOT NULL,
		selected_by_percent DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (player_id, epoch)
	)`,
}

// Migrate creates missing tables and indexes.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(q string) string {
	if s.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (t tableSpec) upsertSQL() string {
	cols := append(append([]string(nil), t.cols...), "epoch", "sweep")
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	isKey := make(map[string]bool, len(t.key))
	for _, k := range t.key {
		isKey[k] = true
	}
	var sets []string
	for _, c := range cols {
		if !isKey[c] {
			sets = append(sets, c+" = excluded."+c)
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		t.name, strings.Join(cols, ", "), marks, strings.Join(t.key, ", "), strings.Join(sets, ", "))
}

// Persist implements Persister. The whole snapshot is written in one transaction.
func (s *SQLStore) Persist(ctx context.Context, snap *model.Snapshot) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	sweep := int64(snap.Epoch)
	if _, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO sync_epochs (epoch, run_id, committed_at) VALUES (?, ?, ?)`),
		sweep, snap.RunID, snap.CommittedAt.UnixMilli()); err != nil {
		return fmt.Errorf("record epoch: %w", err)
	}

	if err = s.upsert(ctx, tx, teamsTable, sweep, func(yield func(args ...any) error) error {
		for _, id := range snap.TeamIDs() {
			t := snap.Teams[id]
			if err := yield(t.ID, t.Code, t.Name, t.ShortName, t.Strength, t.OverallHome, t.OverallAway,
				t.AttackHome, t.AttackAway, t.DefenceHome, t.DefenceAway, int64(t.Epoch)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err = s.upsert(ctx, tx, playersTable, sweep, func(yield func(args ...any) error) error {
		for _, id := range snap.PlayerIDs() {
			p := snap.Players[id]
			if err := yield(p.ID, p.Code, p.FirstName, p.SecondName, p.WebName, p.TeamID, int(p.Position), int(p.Price),
				p.TotalPoints, p.EventPoints, p.PointsPerGame, p.UpstreamForm, p.SelectedByPercent, p.Minutes,
				p.GoalsScored, p.Assists, p.CleanSheets, p.Bonus, p.ExpectedGoals, p.ExpectedAssists, p.ICTIndex,
				string(p.Status), nullInt(p.ChanceOfPlaying), p.News, nullMillis(p.StatusChangedAt), int64(p.Epoch)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err = s.upsert(ctx, tx, gameweeksTable, sweep, func(yield func(args ...any) error) error {
		for _, gw := range snap.Gameweeks {
			if err := yield(gw.ID, gw.Name, gw.Deadline.UnixMilli(), string(gw.Status), gw.IsCurrent, gw.IsNext,
				gw.AverageScore, gw.HighestScore, int64(gw.Epoch)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err = s.upsert(ctx, tx, fixturesTable, sweep, func(yield func(args ...any) error) error {
		for _, f := range snap.Fixtures {
			if err := yield(f.ID, f.Code, f.Gameweek, f.HomeTeamID, f.AwayTeamID, nullMillis(f.Kickoff), f.Started,
				f.Finished, nullInt(f.HomeScore), nullInt(f.AwayScore), f.HomeDifficulty, f.AwayDifficulty,
				int64(f.Epoch)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err = s.upsert(ctx, tx, historyTable, sweep, func(yield func(args ...any) error) error {
		for _, id := range snap.PlayerIDs() {
			for _, r := range snap.History[id] {
				if err := yield(r.PlayerID, r.FixtureID, r.Gameweek, r.OpponentTeamID, r.WasHome, r.Points, r.Minutes,
					r.GoalsScored, r.Assists, r.CleanSheets, r.Bonus, r.ExpectedGoals, r.ExpectedAssists, int(r.Value),
					int64(r.Epoch)); err != nil {
					return err
				}
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err = s.appendPrices(ctx, tx, snap); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// upsert writes the rows produced by rows and deletes every row of the
// table not written by this sweep.
func (s *SQLStore) upsert(ctx context.Context, tx *sql.Tx, t tableSpec, sweep int64, rows func(yield func(args ...any) error) error) error {
	stmt, err := tx.PrepareContext(ctx, s.rebind(t.upsertSQL()))
	if err != nil {
		return fmt.Errorf("prepare %s: %w", t.name, err)
	}
	defer stmt.Close()

	if err := rows(func(args ...any) error {
		if _, err := stmt.ExecContext(ctx, append(args, sweep)...); err != nil {
			return fmt.Errorf("upsert %s: %w", t.name, err)
		}
		return nil
	}); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM "+t.name+" WHERE sweep <> ?"), sweep); err != nil {
		return fmt.Errorf("sweep %s: %w", t.name, err)
	}
	return nil
}

// appendPrices inserts new price points; existing points are never rewritten.
func (s *SQLStore) appendPrices(ctx context.Context, tx *sql.Tx, snap *model.Snapshot) error {
	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO price_history (player_id, epoch, observed_at, price, selected_by_percent)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT (player_id, epoch) DO NOTHING`))
	if err != nil {
		return fmt.Errorf("prepare price_history: %w", err)
	}
	defer stmt.Close()

	for _, id := range snap.PlayerIDs() {
		for _, pt := range snap.Prices[id] {
			if _, err := stmt.ExecContext(ctx, pt.PlayerID, int64(pt.Epoch), pt.ObservedAt.UnixMilli(), int(pt.Price),
				pt.SelectedByPercent); err != nil {
				return fmt.Errorf("insert price_history: %w", err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM price_history WHERE player_id NOT IN (SELECT id FROM players)`); err != nil {
		return fmt.Errorf("prune price_history: %w", err)
	}
	return nil
}

// Load implements Persister. It returns a no_data error when nothing was persisted.
func (s *SQLStore) Load(ctx context.Context) (*model.Snapshot, error) {
	var (
		epoch       int64
		runID       string
		committedAt int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT epoch, run_id, committed_at FROM sync_epochs ORDER BY epoch DESC LIMIT 1`).
		Scan(&epoch, &runID, &committedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.New(fault.KindNoData, "load snapshot", "no persisted epoch")
	}
	if err != nil {
		return nil, fmt.Errorf("load epoch: %w", err)
	}

	snap := model.NewSnapshot(model.Epoch(epoch))
	snap.RunID = runID
	snap.CommittedAt = time.UnixMilli(committedAt).UTC()

	loaders := []func(context.Context, *model.Snapshot) error{
		s.loadTeams, s.loadPlayers, s.loadGameweeks, s.loadFixtures, s.loadHistory, s.loadPrices,
	}
	for _, load := range loaders {
		if err := load(ctx, snap); err != nil {
			return nil, err
		}
	}
	return snap.Seal(), nil
}

func (s *SQLStore) query(ctx context.Context, table string, cols []string, scan func(*sql.Rows) error) error {
	q := fmt.Sprintf("SELECT %s, epoch FROM %s", strings.Join(cols, ", "), table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("load %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
	}
	return rows.Err()
}

func (s *SQLStore) loadTeams(ctx context.Context, snap *model.Snapshot) error {
	return s.query(ctx, teamsTable.name, teamsTable.cols, func(rows *sql.Rows) error {
		var t model.Team
		if err := rows.Scan(&t.ID, &t.Code, &t.Name, &t.ShortName, &t.Strength, &t.OverallHome, &t.OverallAway,
			&t.AttackHome, &t.AttackAway, &t.DefenceHome, &t.DefenceAway, &t.Epoch); err != nil {
			return err
		}
		snap.Teams[t.ID] = t
		return nil
	})
}

func (s *SQLStore) loadPlayers(ctx context.Context, snap *model.Snapshot) error {
	return s.query(ctx, playersTable.name, playersTable.cols, func(rows *sql.Rows) error {
		var (
			p       model.Player
			status  string
			chance  sql.NullInt64
			changed sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.Code, &p.FirstName, &p.SecondName, &p.WebName, &p.TeamID, &p.Position, &p.Price,
			&p.TotalPoints, &p.EventPoints, &p.PointsPerGame, &p.UpstreamForm, &p.SelectedByPercent, &p.Minutes,
			&p.GoalsScored, &p.Assists, &p.CleanSheets, &p.Bonus, &p.ExpectedGoals, &p.ExpectedAssists, &p.ICTIndex,
			&status, &chance, &p.News, &changed, &p.Epoch); err != nil {
			return err
		}
		p.Status = model.Availability(status)
		p.ChanceOfPlaying = intFromNull(chance)
		p.StatusChangedAt = timeFromNull(changed)
		snap.Players[p.ID] = p
		return nil
	})
}

func (s *SQLStore) loadGameweeks(ctx context.Context, snap *model.Snapshot) error {
	return s.query(ctx, gameweeksTable.name, gameweeksTable.cols, func(rows *sql.Rows) error {
		var (
			gw       model.Gameweek
			deadline int64
			status   string
		)
		if err := rows.Scan(&gw.ID, &gw.Name, &deadline, &status, &gw.IsCurrent, &gw.IsNext, &gw.AverageScore,
			&gw.HighestScore, &gw.Epoch); err != nil {
			return err
		}
		gw.Deadline = time.UnixMilli(deadline).UTC()
		gw.Status = model.GameweekStatus(status)
		snap.Gameweeks = append(snap.Gameweeks, gw)
		return nil
	})
}

func (s *SQLStore) loadFixtures(ctx context.Context, snap *model.Snapshot) error {
	return s.query(ctx, fixturesTable.name, fixturesTable.cols, func(rows *sql.Rows) error {
		var (
			f                    model.Fixture
			kickoff              sql.NullInt64
			homeScore, awayScore sql.NullInt64
		)
		if err := rows.Scan(&f.ID, &f.Code, &f.Gameweek, &f.HomeTeamID, &f.AwayTeamID, &kickoff, &f.Started, &f.Finished,
			&homeScore, &awayScore, &f.HomeDifficulty, &f.AwayDifficulty, &f.Epoch); err != nil {
			return err
		}
		f.Kickoff = timeFromNull(kickoff)
		f.HomeScore = intFromNull(homeScore)
		f.AwayScore = intFromNull(awayScore)
		snap.Fixtures[f.ID] = f
		return nil
	})
}

func (s *SQLStore) loadHistory(ctx context.Context, snap *model.Snapshot) error {
	return s.query(ctx, historyTable.name, historyTable.cols, func(rows *sql.Rows) error {
		var r model.PlayerGameweek
		if err := rows.Scan(&r.PlayerID, &r.FixtureID, &r.Gameweek, &r.OpponentTeamID, &r.WasHome, &r.Points, &r.Minutes,
			&r.GoalsScored, &r.Assists, &r.CleanSheets, &r.Bonus, &r.ExpectedGoals, &r.ExpectedAssists, &r.Value,
			&r.Epoch); err != nil {
			return err
		}
		snap.History[r.PlayerID] = append(snap.History[r.PlayerID], r)
		return nil
	})
}

func (s *SQLStore) loadPrices(ctx context.Context, snap *model.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT player_id, epoch, observed_at, price, selected_by_percent FROM price_history ORDER BY player_id, epoch`)
	if err != nil {
		return fmt.Errorf("load price_history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			pt       model.PricePoint
			observed int64
		)
		if err := rows.Scan(&pt.PlayerID, &pt.Epoch, &observed, &pt.Price, &pt.SelectedByPercent); err != nil {
			return fmt.Errorf("scan price_history: %w", err)
		}
		pt.ObservedAt = time.UnixMilli(observed).UTC()
		snap.Prices[pt.PlayerID] = append(snap.Prices[pt.PlayerID], pt)
	}
	return rows.Err()
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func intFromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func timeFromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
