package engine

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/cardroomhq/blackjack/internal/engine/domain/game"
	"github.com/cardroomhq/blackjack/internal/engine/domain/table"
	"github.com/google/uuid"
)

// ErrVersionConflict is returned by a TableStore when a conditional write
// loses a race. The engine surfaces it as ErrConcurrentModification and
// never retries internally; callers re-read and re-issue.
var ErrVersionConflict = errors.New("version conflict")

// Identity is the acting player as supplied by the identity provider.
// The engine trusts these fields as given.
type Identity struct {
	UserID      uuid.UUID
	DisplayName string
	AvatarURL   string
}

// TableStore is the persistence contract the engine consumes: a document
// store keyed by table id with read-modify-write via version guard.
type TableStore interface {
	Insert(ctx context.Context, t *table.Table) (int64, error)
	Read(ctx context.Context, id uuid.UUID) (*table.Table, int64, error)
	Write(ctx context.Context, t *table.Table, expectedVersion int64) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*table.Table, error)
	DeleteStale(ctx context.Context, cutoff time.Time, force bool) ([]uuid.UUID, error)
}

// Notifier fans a committed table change out to live subscribers.
// Notification failures are logged, never returned: the write already
// committed and viewers reconcile on their next read.
type Notifier interface {
	TableChanged(ctx context.Context, t *table.Table)
	TableDeleted(ctx context.Context, id uuid.UUID)
}

// Engine owns the lifecycle of blackjack tables. Every mutating call is a
// single read-validate-write cycle against the table document; writes are
// conditional on the version observed at read time.
type Engine interface {
	CreateTable(ctx context.Context, creator Identity, name string) (*table.Table, error)
	JoinTable(ctx context.Context, tableID uuid.UUID, user Identity) (*table.Table, error)
	LeaveTable(ctx context.Context, tableID, userID uuid.UUID) error
	StartRound(ctx context.Context, tableID, userID uuid.UUID) (*table.Table, error)
	PlaceBet(ctx context.Context, tableID, userID uuid.UUID, amount int64) (*table.Table, error)
	ForceDeal(ctx context.Context, tableID uuid.UUID) (*table.Table, error)
	MakeAction(ctx context.Context, tableID, userID uuid.UUID, action table.Action) (*table.Table, error)
	GetTable(ctx context.Context, tableID uuid.UUID) (*table.Table, error)
	ListTables(ctx context.Context) ([]table.Summary, error)
	DeleteTable(ctx context.Context, tableID uuid.UUID) error
	CleanupStaleTables(ctx context.Context, force bool) (int64, error)
}

type tableEngine struct {
	store    TableStore
	notifier Notifier
	staleAge time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures the engine
type Option func(*tableEngine)

// WithRand sets the random source used to shuffle shoes. Tests use a
// seeded source for deterministic deals.
func WithRand(rng *rand.Rand) Option {
	return func(e *tableEngine) { e.rng = rng }
}

// WithStaleAge sets how long an empty table must idle before cleanup
// removes it.
func WithStaleAge(d time.Duration) Option {
	return func(e *tableEngine) { e.staleAge = d }
}

// New creates a table engine backed by the given store. The notifier may
// be nil when no live fan-out is wanted.
func New(store TableStore, notifier Notifier, opts ...Option) Engine {
	e := &tableEngine{
		store:    store,
		notifier: notifier,
		staleAge: 30 * time.Minute,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *tableEngine) CreateTable(ctx context.Context, creator Identity, name string) (*table.Table, error) {
	t, err := table.NewTable(creator.UserID, creator.DisplayName, creator.AvatarURL, name)
	if err != nil {
		return nil, err
	}

	if _, err := e.store.Insert(ctx, t); err != nil {
		return nil, err
	}

	slog.Info("table created", "table_id", t.ID, "name", t.Name, "creator", creator.UserID)
	e.notifyChanged(ctx, t)
	return t, nil
}

func (e *tableEngine) JoinTable(ctx context.Context, tableID uuid.UUID, user Identity) (*table.Table, error) {
	return e.update(ctx, tableID, func(t *table.Table) error {
		return t.AddPlayer(user.UserID, user.DisplayName, user.AvatarURL)
	})
}

func (e *tableEngine) LeaveTable(ctx context.Context, tableID, userID uuid.UUID) error {
	t, version, err := e.store.Read(ctx, tableID)
	if err != nil {
		return err
	}

	if err := t.RemovePlayer(userID); err != nil {
		return err
	}
	// Leaving during betting can complete the round's bets
	if t.Phase == table.PhaseBetting && t.AllBetsIn() {
		if err := t.Deal(game.NewShoe(e.rand())); err != nil {
			return err
		}
	}

	if err := e.commit(ctx, t, version); err != nil {
		return err
	}

	slog.Info("player left table", "table_id", tableID, "user_id", userID)
	return nil
}

func (e *tableEngine) StartRound(ctx context.Context, tableID, userID uuid.UUID) (*table.Table, error) {
	return e.update(ctx, tableID, func(t *table.Table) error {
		return t.StartBetting(userID)
	})
}

func (e *tableEngine) PlaceBet(ctx context.Context, tableID, userID uuid.UUID, amount int64) (*table.Table, error) {
	return e.update(ctx, tableID, func(t *table.Table) error {
		if err := t.PlaceBet(userID, amount); err != nil {
			return err
		}
		if t.AllBetsIn() {
			return t.Deal(game.NewShoe(e.rand()))
		}
		return nil
	})
}

func (e *tableEngine) ForceDeal(ctx context.Context, tableID uuid.UUID) (*table.Table, error) {
	return e.update(ctx, tableID, func(t *table.Table) error {
		if t.Phase != table.PhaseBetting {
			return table.ErrWrongPhase
		}
		t.SitOutNonBettors()
		return t.Deal(game.NewShoe(e.rand()))
	})
}

func (e *tableEngine) MakeAction(ctx context.Context, tableID, userID uuid.UUID, action table.Action) (*table.Table, error) {
	if !action.Valid() {
		return nil, table.ErrIllegalAction
	}
	return e.update(ctx, tableID, func(t *table.Table) error {
		return t.Apply(userID, action)
	})
}

func (e *tableEngine) GetTable(ctx context.Context, tableID uuid.UUID) (*table.Table, error) {
	t, _, err := e.store.Read(ctx, tableID)
	return t, err
}

func (e *tableEngine) ListTables(ctx context.Context) ([]table.Summary, error) {
	tables, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]table.Summary, len(tables))
	for i, t := range tables {
		summaries[i] = t.Summarize()
	}
	return summaries, nil
}

func (e *tableEngine) DeleteTable(ctx context.Context, tableID uuid.UUID) error {
	if err := e.store.Delete(ctx, tableID); err != nil {
		return err
	}
	slog.Info("table deleted", "table_id", tableID)
	if e.notifier != nil {
		e.notifier.TableDeleted(ctx, tableID)
	}
	return nil
}

func (e *tableEngine) CleanupStaleTables(ctx context.Context, force bool) (int64, error) {
	cutoff := time.Now().UTC().Add(-e.staleAge)
	removed, err := e.store.DeleteStale(ctx, cutoff, force)
	if err != nil {
		return 0, err
	}
	for _, id := range removed {
		if e.notifier != nil {
			e.notifier.TableDeleted(ctx, id)
		}
	}
	if len(removed) > 0 {
		slog.Info("cleaned up stale tables", "removed", len(removed), "force", force)
	}
	return int64(len(removed)), nil
}

// update runs one read-validate-write cycle. The transition mutates a
// freshly read document; the conditional write rejects the whole
// transition if another writer got there first, leaving the stored
// document untouched.
func (e *tableEngine) update(ctx context.Context, tableID uuid.UUID, transition func(*table.Table) error) (*table.Table, error) {
	t, version, err := e.store.Read(ctx, tableID)
	if err != nil {
		return nil, err
	}

	if err := transition(t); err != nil {
		return nil, err
	}

	if err := e.commit(ctx, t, version); err != nil {
		return nil, err
	}
	return t, nil
}

func (e *tableEngine) commit(ctx context.Context, t *table.Table, expectedVersion int64) error {
	t.UpdatedAt = time.Now().UTC()
	if _, err := e.store.Write(ctx, t, expectedVersion); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return table.ErrConcurrentModification
		}
		return err
	}
	e.notifyChanged(ctx, t)
	return nil
}

func (e *tableEngine) notifyChanged(ctx context.Context, t *table.Table) {
	if e.notifier != nil {
		e.notifier.TableChanged(ctx, t)
	}
}

// rand returns a fresh shuffled-shoe source. The engine's rand is shared
// across goroutines serving concurrent requests, hence the lock.
func (e *tableEngine) rand() *rand.Rand {
	e.mu.Lock()
	defer e.mu.Unlock()
	return rand.New(rand.NewSource(e.rng.Int63()))
}
