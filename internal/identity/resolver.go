// Package identity turns opaque, process-local app handles into keys that are
// safe to persist and compare across processes.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strd/internal/models"
	"strd/internal/providers"
	"strd/internal/store"
	"strings"
	"sync"
)

// Hash is the token hash of handle: hex SHA-256 of its bytes. It is the
// same in every process for the same handle and never fails.
func Hash(handle models.AppHandle) string {
	sum := sha256.Sum256(handle)
	return hex.EncodeToString(sum[:])
}

type ResolverInterface interface {
	Resolve(handle models.AppHandle) string
	LogicalID(ctx context.Context, tokenHash string) (string, error)
	Assign(ctx context.Context, tokenHash, logicalID string, hasHistory HistoryFunc) error
	RememberHandle(ctx context.Context, tokenHash string, handle models.AppHandle) error
	Handle(ctx context.Context, tokenHash string) (models.AppHandle, error)
	Reconcile(ctx context.Context, handle models.AppHandle, displayName string, known []models.AppIdentity) (models.AppIdentity, error)
	Canonical(ctx context.Context, tokenHash string) string
	Reissued(ctx context.Context, tokenHash string) (bool, error)
}

// HistoryFunc reports whether usage history exists for a logical ID.
type HistoryFunc func(ctx context.Context, logicalID string) bool

type Resolver struct {
	store  store.SharedStore
	codec  *store.Codec
	logger providers.Logger

	mu      sync.RWMutex
	memo    map[string]string
	aliases map[string]string
}

func NewResolver(s store.SharedStore, codec *store.Codec, logger providers.Logger) *Resolver {
	return &Resolver{
		store:  s,
		codec:  codec,
		logger: logger,
		memo:    make(map[string]string),
		aliases: make(map[string]string),
	}
}

func (r *Resolver) Resolve(handle models.AppHandle) string {
	return Hash(handle)
}

// LogicalID returns the persisted logical ID for tokenHash, allocating the
// self-mapping on first sight. When the store fails the self-mapping is still
// returned together with the error.
func (r *Resolver) LogicalID(ctx context.Context, tokenHash string) (string, error) {
	r.mu.RLock()
	id, ok := r.memo[tokenHash]
	r.mu.RUnlock()
	if ok {
		return id, nil
	}

	err := store.GetJSON(ctx, r.store, r.codec, store.IdentityMapKey(tokenHash), &id)
	switch {
	case err == nil:
		r.remember(tokenHash, id)
		return id, nil
	case !store.IsNotFound(err):
		r.logger.Warnf(providers.TypeApp, "identity lookup for %s failed: %s", tokenHash, err)
		return tokenHash, err
	}

	if err := store.SetJSON(ctx, r.store, r.codec, store.IdentityMapKey(tokenHash), tokenHash); err != nil {
		r.logger.Errorf(providers.TypeApp, "identity allocation for %s failed: %s", tokenHash, err)
		return tokenHash, err
	}
	r.remember(tokenHash, tokenHash)
	return tokenHash, nil
}

// Assign maps tokenHash to a guardian-chosen logical ID. A logical ID owned by
// another token moves only while it has no usage history.
func (r *Resolver) Assign(ctx context.Context, tokenHash, logicalID string, hasHistory HistoryFunc) error {
	if logicalID == "" {
		logicalID = tokenHash
	}

	owners, err := r.owners(ctx, logicalID)
	if err != nil {
		return err
	}
	for _, owner := range owners {
		if owner == tokenHash {
			continue
		}
		if hasHistory != nil && hasHistory(ctx, logicalID) {
			return fmt.Errorf("logical id %s belongs to %s: %w", logicalID, owner, models.ErrIdentityConflict)
		}
	}

	if err := store.SetJSON(ctx, r.store, r.codec, store.IdentityMapKey(tokenHash), logicalID); err != nil {
		return err
	}
	r.remember(tokenHash, logicalID)
	r.dropStale(ctx, owners, tokenHash)
	return nil
}

// dropStale removes every mapping in owners except keep, so one token hash
// maps to a logical ID at a time.
func (r *Resolver) dropStale(ctx context.Context, owners []string, keep string) {
	for _, owner := range owners {
		if owner == keep {
			continue
		}
		if _, err := r.store.Delete(ctx, store.IdentityMapKey(owner)); err != nil {
			r.logger.Warnf(providers.TypeApp, "unable to drop stale mapping %s: %s", owner, err)
		}
		if _, err := r.store.Delete(ctx, store.IdentityAliasKey(owner)); err != nil {
			r.logger.Warnf(providers.TypeApp, "unable to drop stale alias %s: %s", owner, err)
		}
		r.forget(owner)
	}
}

func (r *Resolver) owners(ctx context.Context, logicalID string) ([]string, error) {
	keys, err := r.store.List(ctx, store.PrefixIdentityMap)
	if err != nil {
		return nil, err
	}
	owners := make([]string, 0, 1)
	for _, key := range keys {
		var id string
		if err := store.GetJSON(ctx, r.store, r.codec, key, &id); err != nil {
			if store.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if id == logicalID {
			owners = append(owners, strings.TrimPrefix(key, store.PrefixIdentityMap))
		}
	}
	return owners, nil
}

func (r *Resolver) RememberHandle(ctx context.Context, tokenHash string, handle models.AppHandle) error {
	return store.SetJSON(ctx, r.store, r.codec, store.IdentityHandleKey(tokenHash), handle)
}

// Handle returns the serialized handle last seen for tokenHash, or
// models.ErrNotFound.
func (r *Resolver) Handle(ctx context.Context, tokenHash string) (models.AppHandle, error) {
	var handle models.AppHandle
	if err := store.GetJSON(ctx, r.store, r.codec, store.IdentityHandleKey(tokenHash), &handle); err != nil {
		return nil, err
	}
	return handle, nil
}

// Reconcile matches a possibly reissued handle against the known apps: by
// token hash first, then by display name when exactly one app carries it.
// It returns the matching known app. A name match maps the new token hash
// onto the app's logical ID, records it as an alias of the app's token hash,
// points the app's handle side table entry at the new handle and drops the
// mapping of the retired hash.
func (r *Resolver) Reconcile(ctx context.Context, handle models.AppHandle, displayName string, known []models.AppIdentity) (models.AppIdentity, error) {
	hash := Hash(handle)
	for _, app := range known {
		if app.TokenHash == hash {
			return app, r.RememberHandle(ctx, hash, handle)
		}
	}

	var matches []models.AppIdentity
	name := strings.TrimSpace(displayName)
	for _, app := range known {
		if name != "" && strings.EqualFold(strings.TrimSpace(app.DisplayName), name) {
			matches = append(matches, app)
		}
	}

	switch len(matches) {
	case 0:
		return models.AppIdentity{}, fmt.Errorf("no app named %q: %w", displayName, models.ErrUnknownApp)
	case 1:
	default:
		return models.AppIdentity{}, fmt.Errorf("%d apps named %q: %w", len(matches), displayName, models.ErrIdentityConflict)
	}

	app := matches[0]
	owners, err := r.owners(ctx, app.LogicalID)
	if err != nil {
		return app, err
	}
	err = errors.Join(
		store.SetJSON(ctx, r.store, r.codec, store.IdentityMapKey(hash), app.LogicalID),
		store.SetJSON(ctx, r.store, r.codec, store.IdentityAliasKey(hash), app.TokenHash),
		r.RememberHandle(ctx, hash, handle),
		r.RememberHandle(ctx, app.TokenHash, handle),
	)
	if err != nil {
		return app, err
	}
	r.remember(hash, app.LogicalID)
	r.mu.Lock()
	r.aliases[hash] = app.TokenHash
	r.mu.Unlock()
	r.dropStale(ctx, owners, hash)
	r.logger.Infof(providers.TypeApp, "reissued handle for %q mapped to %s", displayName, app.LogicalID)
	return app, nil
}

// Canonical returns the token hash tokenHash stands in for after a reissue,
// or tokenHash itself.
func (r *Resolver) Canonical(ctx context.Context, tokenHash string) string {
	r.mu.RLock()
	canonical, ok := r.aliases[tokenHash]
	r.mu.RUnlock()
	if ok {
		return canonical
	}

	err := store.GetJSON(ctx, r.store, r.codec, store.IdentityAliasKey(tokenHash), &canonical)
	switch {
	case err == nil:
	case store.IsNotFound(err):
		canonical = tokenHash
	default:
		r.logger.Warnf(providers.TypeApp, "alias lookup for %s failed: %s", tokenHash, err)
		return tokenHash
	}
	r.mu.Lock()
	r.aliases[tokenHash] = canonical
	r.mu.Unlock()
	return canonical
}

// Reissued reports whether a live alias currently stands in for tokenHash.
func (r *Resolver) Reissued(ctx context.Context, tokenHash string) (bool, error) {
	keys, err := r.store.List(ctx, store.PrefixIdentityAlias)
	if err != nil {
		return false, err
	}
	for _, key := range keys {
		var canonical string
		if err := store.GetJSON(ctx, r.store, r.codec, key, &canonical); err != nil {
			if store.IsNotFound(err) {
				continue
			}
			return false, err
		}
		if canonical == tokenHash {
			return true, nil
		}
	}
	return false, nil
}

func (r *Resolver) remember(tokenHash, logicalID string) {
	r.mu.Lock()
	r.memo[tokenHash] = logicalID
	r.mu.Unlock()
}

func (r *Resolver) forget(tokenHash string) {
	r.mu.Lock()
	delete(r.memo, tokenHash)
	delete(r.aliases, tokenHash)
	r.mu.Unlock()
}
