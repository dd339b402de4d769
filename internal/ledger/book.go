package ledger

import (
	"context"
	"strd/internal/models"
	"strd/internal/providers"
	"strd/internal/store"
	"sync"
)

// Book loads and saves the ledger state record. Reads degrade to the last
// state successfully loaded or committed by this process.
type Book struct {
	store  store.SharedStore
	codec  *store.Codec
	clock  providers.Clock
	logger providers.Logger

	mu       sync.RWMutex
	snapshot *models.LedgerState
}

func NewBook(s store.SharedStore, codec *store.Codec, clock providers.Clock, logger providers.Logger) *Book {
	return &Book{
		store:    s,
		codec:    codec,
		clock:    clock,
		logger:   logger,
		snapshot: models.NewLedgerState(),
	}
}

// load reads the stored state, failing on store errors. A missing record is
// an empty ledger.
func (b *Book) load(ctx context.Context) (*models.LedgerState, error) {
	state := models.NewLedgerState()
	if err := store.GetJSON(ctx, b.store, b.codec, store.KeyLedgerState, state); err != nil {
		if store.IsNotFound(err) {
			return models.NewLedgerState(), nil
		}
		return nil, err
	}
	state.Normalize()

	b.mu.Lock()
	b.snapshot = state.Clone()
	b.mu.Unlock()
	return state, nil
}

// State returns a private copy of the current ledger state.
func (b *Book) State(ctx context.Context) *models.LedgerState {
	state, err := b.load(ctx)
	if err == nil {
		return state
	}
	b.logger.Warnf(providers.TypeLedger, "ledger state unavailable, serving snapshot: %s", err)
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot.Clone()
}

// commit saves next. The snapshot moves only after the write succeeded.
// Per-app projections are refreshed afterwards on a best-effort basis.
func (b *Book) commit(ctx context.Context, prev, next *models.LedgerState) error {
	next.UpdatedAt = b.clock.Now()
	if err := store.SetJSON(ctx, b.store, b.codec, store.KeyLedgerState, next); err != nil {
		b.logger.Errorf(providers.TypeLedger, "unable to save %s: %s", store.KeyLedgerState, err)
		return err
	}

	b.mu.Lock()
	b.snapshot = next.Clone()
	b.mu.Unlock()

	b.project(ctx, prev, next)
	return nil
}

func (b *Book) project(ctx context.Context, prev, next *models.LedgerState) {
	for token, entry := range next.Unlocked {
		if old, ok := prev.Unlocked[token]; ok && *old == *entry {
			continue
		}
		if err := store.SetJSON(ctx, b.store, b.codec, store.UnlockedKey(token), entry); err != nil {
			b.logger.Warnf(providers.TypeLedger, "unable to project %s: %s", token, err)
		}
	}
	for token := range prev.Unlocked {
		if _, ok := next.Unlocked[token]; ok {
			continue
		}
		if _, err := b.store.Delete(ctx, store.UnlockedKey(token)); err != nil {
			b.logger.Warnf(providers.TypeLedger, "unable to drop projection %s: %s", token, err)
		}
	}
}

// Unlocked returns the live entry for tokenHash.
func (b *Book) Unlocked(ctx context.Context, tokenHash string) (*models.UnlockedRewardApp, bool) {
	entry, ok := b.State(ctx).Unlocked[tokenHash]
	return entry, ok
}

// RewardExpired reports whether the reservation for tokenHash ran out today.
func (b *Book) RewardExpired(ctx context.Context, tokenHash string) bool {
	return b.State(ctx).ExpiredOn(tokenHash, b.clock.StartOfDay(b.clock.Now()))
}

// Projected reads the token-free per-app record written for other
// processes and extensions.
func (b *Book) Projected(ctx context.Context, tokenHash string) (*models.UnlockedRewardApp, error) {
	var entry models.UnlockedRewardApp
	if err := store.GetJSON(ctx, b.store, b.codec, store.UnlockedKey(tokenHash), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
