// Package store holds the durable key-value store shared by the foreground
// and monitor processes, the record codec, and the cross-process notifiers.
//
// The store gives no cross-key transactions. Every caller is written so that
// a single logical mutation touches a single key.
package store

import (
	"context"
	"errors"
	"fmt"
	"strd/internal/models"
)

type SharedStore interface {
	// Get returns models.ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete reports whether this call removed the key. When two processes
	// delete the same key exactly one of them sees true, which is how usage
	// events are claimed.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns the keys starting with prefix in ascending order.
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

const (
	PrefixIdentityMap    = "identity:map:"
	PrefixIdentityHandle = "identity:handle:"
	PrefixIdentityAlias  = "identity:alias:"
	PrefixUsageRecord    = "usage:record:"
	PrefixUsageCounter   = "usage:counter:"
	PrefixUnlocked       = "ledger:unlocked:"
	PrefixUsageEvent     = "events:usage:"
	PrefixShield         = "shield:"
	KeyLedgerState       = "ledger:state"
	KeyCatalogApps       = "catalog:apps"
)

func IdentityMapKey(tokenHash string) string    { return PrefixIdentityMap + tokenHash }
func IdentityHandleKey(tokenHash string) string { return PrefixIdentityHandle + tokenHash }
func IdentityAliasKey(tokenHash string) string  { return PrefixIdentityAlias + tokenHash }
func UsageRecordKey(logicalID string) string    { return PrefixUsageRecord + logicalID }
func UsageCounterKey(tokenHash string) string   { return PrefixUsageCounter + tokenHash }
func UnlockedKey(tokenHash string) string       { return PrefixUnlocked + tokenHash }
func ShieldKey(tokenHash string) string         { return PrefixShield + tokenHash }

func unavailable(op, key string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, key, models.ErrStoreUnavailable, err)
}

func IsNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}

// GetJSON loads key into v. It returns models.ErrNotFound untouched so
// callers can treat a missing record as zero state.
func GetJSON(ctx context.Context, s SharedStore, codec *Codec, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := codec.Decode(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func SetJSON(ctx context.Context, s SharedStore, codec *Codec, key string, v any) error {
	data, err := codec.Encode(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}
