package repository

import (
	"context"
	"reflect"
	"testing"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

func openSQLite(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQL(context.Background(), DialectSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLStore_LoadEmpty(t *testing.T) {
	s := openSQLite(t)
	if _, err := s.Load(context.Background()); !fault.Is(err, fault.KindNoData) {
		t.Fatalf("expected no_data, got %v", err)
	}
}

func TestSQLStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	want := sampleSnapshot(1)

	if err := s.Persist(ctx, want); err != nil {
		t.Fatalf("persist: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Epoch != 1 || got.RunID != "run" || !got.CommittedAt.Equal(want.CommittedAt) {
		t.Errorf("unexpected epoch metadata: %d %s %v", got.Epoch, got.RunID, got.CommittedAt)
	}
	if !reflect.DeepEqual(got.Teams, want.Teams) {
		t.Errorf("teams differ:\n got %+v\nwant %+v", got.Teams, want.Teams)
	}
	if !reflect.DeepEqual(got.Players, want.Players) {
		t.Errorf("players differ:\n got %+v\nwant %+v", got.Players, want.Players)
	}
	if !reflect.DeepEqual(got.Gameweeks, want.Gameweeks) {
		t.Errorf("gameweeks differ:\n got %+v\nwant %+v", got.Gameweeks, want.Gameweeks)
	}
	if !reflect.DeepEqual(got.Fixtures, want.Fixtures) {
		t.Errorf("fixtures differ:\n got %+v\nwant %+v", got.Fixtures, want.Fixtures)
	}
	if !reflect.DeepEqual(got.History, want.History) {
		t.Errorf("history differs:\n got %+v\nwant %+v", got.History, want.History)
	}
	if !reflect.DeepEqual(got.Prices, want.Prices) {
		t.Errorf("prices differ:\n got %+v\nwant %+v", got.Prices, want.Prices)
	}
}

func TestSQLStore_SweepRemovesAbsentRowsAndKeepsEpochStamps(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	if err := s.Persist(ctx, sampleSnapshot(1)); err != nil {
		t.Fatalf("persist 1: %v", err)
	}

	next := sampleSnapshot(2)
	delete(next.Players, 20)
	team := next.Teams[2]
	team.Epoch = 1 // carried from the previous epoch
	next.Teams[2] = team
	next.Prices[10] = append(next.Prices[10], model.PricePoint{PlayerID: 10, Epoch: 2, ObservedAt: next.CommittedAt, Price: 101, SelectedByPercent: 31.2})
	next.Seal()
	if err := s.Persist(ctx, next); err != nil {
		t.Fatalf("persist 2: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Epoch != 2 {
		t.Errorf("expected epoch 2, got %d", got.Epoch)
	}
	if _, ok := got.Players[20]; ok {
		t.Error("player 20 should have been swept")
	}
	if got.Teams[2].Epoch != 1 || got.Teams[1].Epoch != 2 {
		t.Errorf("epoch stamps not preserved: %+v", got.Teams)
	}
	if n := len(got.Prices[10]); n != 2 {
		t.Errorf("expected 2 price points, got %d", n)
	}
}

func TestSQLStore_BacksMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	store := NewMemoryStore(WithPersister(s))
	if err := store.Commit(ctx, sampleSnapshot(1)); err != nil {
		t.Fatalf("commit: %v", err)
	}

	restored := NewMemoryStore(WithPersister(s))
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Epoch() != 1 {
		t.Errorf("expected restored epoch 1, got %d", restored.Epoch())
	}
	if err := restored.Commit(ctx, sampleSnapshot(2)); err != nil {
		t.Errorf("restored store should accept the next epoch: %v", err)
	}
}

func TestSQLStore_Rebind(t *testing.T) {
	pg := NewSQLStore(nil, DialectPostgres)
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("unexpected rebind: %s", got)
	}
	lite := NewSQLStore(nil, DialectSQLite)
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite must keep ? placeholders: %s", got)
	}
	if _, err := OpenSQL(context.Background(), Dialect("mysql"), ""); err == nil {
		t.Error("expected unknown driver error")
	}
}
