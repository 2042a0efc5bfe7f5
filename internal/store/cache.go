package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/glossian/internal/db"
)

var ErrNotFound = errors.New("record not found")

// RecordStore is the durable side of the cache. *db.Pool implements it.
type RecordStore interface {
	FindMessage(ctx context.Context, kind db.Kind, key db.LookupKey, matchEngine bool) (*db.Message, error)
	InsertMessage(ctx context.Context, kind db.Kind, row *db.Message) (*db.Message, error)
	ListMessages(ctx context.Context, kind db.Kind) ([]db.Message, error)

	FindQuestPlate(ctx context.Context, key db.QuestKey, matchEngine bool) (*db.QuestPlate, error)
	GetQuestPlate(ctx context.Context, id int64) (*db.QuestPlate, error)
	InsertQuestPlate(ctx context.Context, plate *db.QuestPlate) (*db.QuestPlate, error)
	UpdateQuestPlate(ctx context.Context, plate *db.QuestPlate) (*db.QuestPlate, error)
	ListQuestPlates(ctx context.Context) ([]db.QuestPlate, error)
}

var _ RecordStore = (*db.Pool)(nil)

// Cache is a read-through replica of the durable store. Each kind is loaded on
// first access and reloaded in full after every write made through the cache.
type Cache struct {
	store  RecordStore
	logger zerolog.Logger

	mu       sync.RWMutex
	messages map[db.Kind][]db.Message
	quests   []db.QuestPlate
	// questsLoaded is tracked separately because an empty table is a valid load.
	questsLoaded bool
}

func New(store RecordStore, logger zerolog.Logger) (*Cache, error) {
	if store == nil {
		return nil, fmt.Errorf("record store is nil")
	}
	return &Cache{
		store:    store,
		logger:   logger.With().Str("component", "store").Logger(),
		messages: make(map[db.Kind][]db.Message, len(db.MessageKinds())),
	}, nil
}

// Preload loads every kind concurrently.
func (c *Cache) Preload(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range db.MessageKinds() {
		g.Go(func() error {
			return c.ReloadKind(gctx, kind)
		})
	}
	g.Go(func() error {
		return c.reloadQuests(gctx)
	})
	return g.Wait()
}

// ReloadKind replaces the memory replica of kind with the current store contents.
func (c *Cache) ReloadKind(ctx context.Context, kind db.Kind) error {
	if kind == db.KindQuestPlate {
		return c.reloadQuests(ctx)
	}
	rows, err := c.store.ListMessages(ctx, kind)
	if err != nil {
		return fmt.Errorf("load %s: %w", kind, err)
	}

	c.mu.Lock()
	c.messages[kind] = rows
	c.mu.Unlock()

	c.logger.Debug().Str("kind", kind.String()).Int("rows", len(rows)).Msg("memory cache reloaded")
	return nil
}

func (c *Cache) reloadQuests(ctx context.Context) error {
	rows, err := c.store.ListQuestPlates(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", db.KindQuestPlate, err)
	}

	c.mu.Lock()
	c.quests = rows
	c.questsLoaded = true
	c.mu.Unlock()

	c.logger.Debug().Str("kind", db.KindQuestPlate.String()).Int("rows", len(rows)).Msg("memory cache reloaded")
	return nil
}

func (c *Cache) ensureKind(ctx context.Context, kind db.Kind) error {
	c.mu.RLock()
	_, ok := c.messages[kind]
	c.mu.RUnlock()
	if ok {
		return nil
	}
	return c.ReloadKind(ctx, kind)
}

func (c *Cache) ensureQuests(ctx context.Context) error {
	c.mu.RLock()
	ok := c.questsLoaded
	c.mu.RUnlock()
	if ok {
		return nil
	}
	return c.reloadQuests(ctx)
}

// FindMessage looks in memory first and falls back to the store. A miss in both
// returns ErrNotFound; any other error comes from the store.
func (c *Cache) FindMessage(ctx context.Context, kind db.Kind, key db.LookupKey, matchEngine bool) (*db.Message, error) {
	if !kind.Valid() || kind == db.KindQuestPlate {
		return nil, fmt.Errorf("kind %q is not a message kind", kind)
	}

	if err := c.ensureKind(ctx, kind); err != nil {
		c.logger.Warn().Err(err).Str("kind", kind.String()).Msg("memory cache load failed, querying store")
	} else if hit := c.memoryMessage(kind, key, matchEngine); hit != nil {
		return hit, nil
	}

	row, err := c.store.FindMessage(ctx, kind, key, matchEngine)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row, nil
}

func (c *Cache) memoryMessage(kind db.Kind, key db.LookupKey, matchEngine bool) *db.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rows := c.messages[kind]
	for i := range rows {
		if key.Matches(&rows[i], matchEngine) {
			row := rows[i]
			return &row
		}
	}
	return nil
}

// InsertMessage persists row and refreshes the kind. A failed refresh is logged and
// leaves the kind unloaded so the next lookup retries the load.
func (c *Cache) InsertMessage(ctx context.Context, kind db.Kind, row *db.Message) (*db.Message, error) {
	stored, err := c.store.InsertMessage(ctx, kind, row)
	if err != nil {
		return nil, err
	}
	if err := c.ReloadKind(ctx, kind); err != nil {
		c.logger.Warn().Err(err).Str("kind", kind.String()).Msg("memory cache reload failed")
		c.mu.Lock()
		delete(c.messages, kind)
		c.mu.Unlock()
	}
	return stored, nil
}

// Messages returns a snapshot of the loaded rows of kind.
func (c *Cache) Messages(ctx context.Context, kind db.Kind) ([]db.Message, error) {
	if err := c.ensureKind(ctx, kind); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]db.Message(nil), c.messages[kind]...), nil
}

func (c *Cache) FindQuestPlate(ctx context.Context, key db.QuestKey, matchEngine bool) (*db.QuestPlate, error) {
	if err := c.ensureQuests(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("memory cache load failed, querying store")
	} else if hit := c.memoryQuest(key, matchEngine); hit != nil {
		return hit, nil
	}

	plate, err := c.store.FindQuestPlate(ctx, key, matchEngine)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return plate, nil
}

func (c *Cache) memoryQuest(key db.QuestKey, matchEngine bool) *db.QuestPlate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range c.quests {
		if key.Matches(&c.quests[i], matchEngine) {
			return c.quests[i].Clone()
		}
	}
	return nil
}

// GetQuestPlate always reads the store; it is used to re-read a row after a conflict.
func (c *Cache) GetQuestPlate(ctx context.Context, id int64) (*db.QuestPlate, error) {
	plate, err := c.store.GetQuestPlate(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return plate, nil
}

func (c *Cache) InsertQuestPlate(ctx context.Context, plate *db.QuestPlate) (*db.QuestPlate, error) {
	stored, err := c.store.InsertQuestPlate(ctx, plate)
	if err != nil {
		return nil, err
	}
	c.refreshQuests(ctx)
	return stored, nil
}

// UpdateQuestPlate passes db.ErrConflict through unchanged.
func (c *Cache) UpdateQuestPlate(ctx context.Context, plate *db.QuestPlate) (*db.QuestPlate, error) {
	updated, err := c.store.UpdateQuestPlate(ctx, plate)
	if err != nil {
		return nil, err
	}
	c.refreshQuests(ctx)
	return updated, nil
}

func (c *Cache) refreshQuests(ctx context.Context) {
	if err := c.reloadQuests(ctx); err != nil {
		c.logger.Warn().Err(err).Str("kind", db.KindQuestPlate.String()).Msg("memory cache reload failed")
		c.mu.Lock()
		c.quests = nil
		c.questsLoaded = false
		c.mu.Unlock()
	}
}

func (c *Cache) QuestPlates(ctx context.Context) ([]db.QuestPlate, error) {
	if err := c.ensureQuests(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]db.QuestPlate, 0, len(c.quests))
	for i := range c.quests {
		out = append(out, *c.quests[i].Clone())
	}
	return out, nil
}
