package engine_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cardroomhq/blackjack/internal/engine"
	"github.com/cardroomhq/blackjack/internal/engine/domain/game"
	"github.com/cardroomhq/blackjack/internal/engine/domain/table"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory TableStore. Documents round-trip through JSON
// so readers get independent copies, matching the jsonb-backed store.
type memStore struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*memDoc

	// failNextWrite makes the next conditional write lose its race
	failNextWrite bool
}

type memDoc struct {
	data    []byte
	version int64
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[uuid.UUID]*memDoc)}
}

func (s *memStore) Insert(_ context.Context, t *table.Table) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[t.ID]; ok {
		return 0, fmt.Errorf("duplicate table id %s", t.ID)
	}
	data, err := json.Marshal(t)
	if err != nil {
		return 0, err
	}
	s.docs[t.ID] = &memDoc{data: data, version: 1}
	return 1, nil
}

func (s *memStore) Read(_ context.Context, id uuid.UUID) (*table.Table, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, 0, table.ErrTableNotFound
	}
	var t table.Table
	if err := json.Unmarshal(doc.data, &t); err != nil {
		return nil, 0, err
	}
	return &t, doc.version, nil
}

func (s *memStore) Write(_ context.Context, t *table.Table, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextWrite {
		s.failNextWrite = false
		return 0, engine.ErrVersionConflict
	}
	doc, ok := s.docs[t.ID]
	if !ok {
		return 0, table.ErrTableNotFound
	}
	if doc.version != expectedVersion {
		return 0, engine.ErrVersionConflict
	}
	data, err := json.Marshal(t)
	if err != nil {
		return 0, err
	}
	doc.data = data
	doc.version++
	return doc.version, nil
}

func (s *memStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return table.ErrTableNotFound
	}
	delete(s.docs, id)
	return nil
}

func (s *memStore) List(_ context.Context) ([]*table.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tables := make([]*table.Table, 0, len(s.docs))
	for _, doc := range s.docs {
		var t table.Table
		if err := json.Unmarshal(doc.data, &t); err != nil {
			return nil, err
		}
		tables = append(tables, &t)
	}
	return tables, nil
}

func (s *memStore) DeleteStale(_ context.Context, cutoff time.Time, force bool) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []uuid.UUID
	for id, doc := range s.docs {
		var t table.Table
		if err := json.Unmarshal(doc.data, &t); err != nil {
			return nil, err
		}
		if t.UpdatedAt.After(cutoff) {
			continue
		}
		if !force && len(t.Players) > 0 {
			continue
		}
		delete(s.docs, id)
		removed = append(removed, id)
	}
	return removed, nil
}

// setUpdatedAt back-dates a stored document for staleness tests
func (s *memStore) setUpdatedAt(t *testing.T, id uuid.UUID, at time.Time) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	require.True(t, ok)
	var tbl table.Table
	require.NoError(t, json.Unmarshal(doc.data, &tbl))
	tbl.UpdatedAt = at
	data, err := json.Marshal(&tbl)
	require.NoError(t, err)
	doc.data = data
}

// recordingNotifier counts fan-out calls
type recordingNotifier struct {
	mu      sync.Mutex
	changed int
	deleted []uuid.UUID
}

func (n *recordingNotifier) TableChanged(_ context.Context, _ *table.Table) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed++
}

func (n *recordingNotifier) TableDeleted(_ context.Context, id uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleted = append(n.deleted, id)
}

func newTestEngine(opts ...engine.Option) (engine.Engine, *memStore, *recordingNotifier) {
	store := newMemStore()
	notifier := &recordingNotifier{}
	return engine.New(store, notifier, opts...), store, notifier
}

func ident(name string) engine.Identity {
	return engine.Identity{UserID: uuid.New(), DisplayName: name}
}

// insertMidRound builds a single-player table paused at the player's turn
// with a known shoe, and stores it. The player holds 10-7 against a
// dealer 6-10.
func insertMidRound(t *testing.T, store *memStore, user engine.Identity) *table.Table {
	t.Helper()
	tbl, err := table.NewTable(user.UserID, user.DisplayName, "", "")
	require.NoError(t, err)
	require.NoError(t, tbl.StartBetting(user.UserID))
	require.NoError(t, tbl.PlaceBet(user.UserID, 50))

	shoe := make([]game.Card, 0, 8)
	for _, r := range []string{"10", "6", "7", "10", "2", "5", "9", "3"} {
		shoe = append(shoe, game.Card{Suit: "♠", Rank: r})
	}
	require.NoError(t, tbl.Deal(shoe))
	require.Equal(t, table.PhasePlayerTurns, tbl.Phase)

	_, err = store.Insert(context.Background(), tbl)
	require.NoError(t, err)
	return tbl
}

func TestCreateTable(t *testing.T) {
	e, _, notifier := newTestEngine()
	alice := ident("alice")

	tbl, err := e.CreateTable(context.Background(), alice, "")
	require.NoError(t, err)
	assert.Equal(t, "alice's Table", tbl.Name)
	assert.Equal(t, 1, notifier.changed)

	got, err := e.GetTable(context.Background(), tbl.ID)
	require.NoError(t, err)
	assert.Equal(t, tbl.ID, got.ID)
	require.Len(t, got.Players, 1)
	assert.Equal(t, alice.UserID, got.Players[0].UserID)
}

func TestCreateTableInvalidName(t *testing.T) {
	e, store, _ := newTestEngine()

	long := make([]byte, table.MaxNameLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err := e.CreateTable(context.Background(), ident("alice"), string(long))
	assert.ErrorIs(t, err, table.ErrValidation)
	assert.Empty(t, store.docs)
}

func TestJoinAndLeaveTable(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()
	alice, bob := ident("alice"), ident("bob")

	tbl, err := e.CreateTable(ctx, alice, "")
	require.NoError(t, err)

	got, err := e.JoinTable(ctx, tbl.ID, bob)
	require.NoError(t, err)
	assert.Len(t, got.Players, 2)

	_, err = e.JoinTable(ctx, tbl.ID, bob)
	assert.ErrorIs(t, err, table.ErrAlreadySeated)

	require.NoError(t, e.LeaveTable(ctx, tbl.ID, bob.UserID))
	got, err = e.GetTable(ctx, tbl.ID)
	require.NoError(t, err)
	assert.Len(t, got.Players, 1)

	assert.ErrorIs(t, e.LeaveTable(ctx, uuid.New(), bob.UserID), table.ErrTableNotFound)
}

func TestPlaceBetAutoDeals(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()
	alice := ident("alice")

	tbl, err := e.CreateTable(ctx, alice, "")
	require.NoError(t, err)
	_, err = e.StartRound(ctx, tbl.ID, alice.UserID)
	require.NoError(t, err)

	// The only bet completes the round's bets, so the deal happens in the
	// same write
	got, err := e.PlaceBet(ctx, tbl.ID, alice.UserID, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.RoundID)
	// A natural off the random shoe can settle the round immediately,
	// looping straight back to betting
	assert.Contains(t, []table.Phase{table.PhasePlayerTurns, table.PhaseBetting}, got.Phase)
}

func TestPlaceBetWaitsForOthers(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()
	alice, bob := ident("alice"), ident("bob")

	tbl, err := e.CreateTable(ctx, alice, "")
	require.NoError(t, err)
	_, err = e.JoinTable(ctx, tbl.ID, bob)
	require.NoError(t, err)
	_, err = e.StartRound(ctx, tbl.ID, alice.UserID)
	require.NoError(t, err)

	got, err := e.PlaceBet(ctx, tbl.ID, alice.UserID, 50)
	require.NoError(t, err)
	assert.Equal(t, table.PhaseBetting, got.Phase)
	assert.Zero(t, got.RoundID)
}

func TestForceDeal(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()
	alice, bob := ident("alice"), ident("bob")

	tbl, err := e.CreateTable(ctx, alice, "")
	require.NoError(t, err)

	// Only betting tables can be force-dealt
	_, err = e.ForceDeal(ctx, tbl.ID)
	assert.ErrorIs(t, err, table.ErrWrongPhase)

	_, err = e.JoinTable(ctx, tbl.ID, bob)
	require.NoError(t, err)
	_, err = e.StartRound(ctx, tbl.ID, alice.UserID)
	require.NoError(t, err)
	_, err = e.PlaceBet(ctx, tbl.ID, alice.UserID, 50)
	require.NoError(t, err)

	got, err := e.ForceDeal(ctx, tbl.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.RoundID)
	assert.Equal(t, table.StatusSittingOut, got.GetPlayer(bob.UserID).Status)
}

func TestLeaveTableCompletesBetting(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()
	alice, bob := ident("alice"), ident("bob")

	tbl, err := e.CreateTable(ctx, alice, "")
	require.NoError(t, err)
	_, err = e.JoinTable(ctx, tbl.ID, bob)
	require.NoError(t, err)
	_, err = e.StartRound(ctx, tbl.ID, alice.UserID)
	require.NoError(t, err)
	_, err = e.PlaceBet(ctx, tbl.ID, alice.UserID, 50)
	require.NoError(t, err)

	// The holdout leaving makes every remaining bet final
	require.NoError(t, e.LeaveTable(ctx, tbl.ID, bob.UserID))

	got, err := e.GetTable(ctx, tbl.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.RoundID)
}

func TestMakeAction(t *testing.T) {
	e, store, _ := newTestEngine()
	alice := ident("alice")
	insertMidRound(t, store, alice)
	tbl, err := e.ListTables(context.Background())
	require.NoError(t, err)
	require.Len(t, tbl, 1)

	got, err := e.MakeAction(context.Background(), tbl[0].ID, alice.UserID, table.ActionStand)
	require.NoError(t, err)

	// 17 loses to the dealer's 18 (16 plus the drawn 2)
	assert.Equal(t, int64(950), got.GetPlayer(alice.UserID).Chips)
	assert.Equal(t, table.PhaseBetting, got.Phase)
}

func TestMakeActionRejectsUnknown(t *testing.T) {
	e, _, _ := newTestEngine()
	_, err := e.MakeAction(context.Background(), uuid.New(), uuid.New(), table.Action("insurance"))
	assert.ErrorIs(t, err, table.ErrIllegalAction)
}

func TestConcurrentModification(t *testing.T) {
	e, store, _ := newTestEngine()
	ctx := context.Background()
	alice := ident("alice")
	tbl := insertMidRound(t, store, alice)

	store.failNextWrite = true
	_, err := e.MakeAction(ctx, tbl.ID, alice.UserID, table.ActionHit)
	assert.ErrorIs(t, err, table.ErrConcurrentModification)

	// The stored document is untouched by the lost write
	got, err := e.GetTable(ctx, tbl.ID)
	require.NoError(t, err)
	require.Len(t, got.GetPlayer(alice.UserID).Hands, 1)
	assert.Len(t, got.GetPlayer(alice.UserID).Hands[0].Cards, 2)

	// The caller's retry draws exactly one card
	got, err = e.MakeAction(ctx, tbl.ID, alice.UserID, table.ActionHit)
	require.NoError(t, err)
	assert.Len(t, got.GetPlayer(alice.UserID).Hands[0].Cards, 3)
}

func TestListTables(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()

	_, err := e.CreateTable(ctx, ident("alice"), "First")
	require.NoError(t, err)
	_, err = e.CreateTable(ctx, ident("bob"), "Second")
	require.NoError(t, err)

	summaries, err := e.ListTables(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.Equal(t, 1, s.PlayerCount)
		assert.Equal(t, table.PhaseWaiting, s.Phase)
	}
}

func TestDeleteTable(t *testing.T) {
	e, _, notifier := newTestEngine()
	ctx := context.Background()

	tbl, err := e.CreateTable(ctx, ident("alice"), "")
	require.NoError(t, err)

	require.NoError(t, e.DeleteTable(ctx, tbl.ID))
	assert.Equal(t, []uuid.UUID{tbl.ID}, notifier.deleted)

	_, err = e.GetTable(ctx, tbl.ID)
	assert.ErrorIs(t, err, table.ErrTableNotFound)
	assert.ErrorIs(t, e.DeleteTable(ctx, tbl.ID), table.ErrTableNotFound)
}

func TestCleanupStaleTables(t *testing.T) {
	e, store, notifier := newTestEngine(engine.WithStaleAge(time.Hour))
	ctx := context.Background()
	alice := ident("alice")

	occupied, err := e.CreateTable(ctx, alice, "Occupied")
	require.NoError(t, err)
	empty, err := e.CreateTable(ctx, ident("bob"), "Empty")
	require.NoError(t, err)
	require.NoError(t, e.LeaveTable(ctx, empty.ID, empty.Players[0].UserID))

	stale := time.Now().UTC().Add(-2 * time.Hour)
	store.setUpdatedAt(t, occupied.ID, stale)
	store.setUpdatedAt(t, empty.ID, stale)

	// Default cleanup only removes empty tables
	removed, err := e.CleanupStaleTables(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Contains(t, notifier.deleted, empty.ID)

	_, err = e.GetTable(ctx, occupied.ID)
	require.NoError(t, err)

	// Force sweeps occupied tables too
	removed, err = e.CleanupStaleTables(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Contains(t, notifier.deleted, occupied.ID)
}
