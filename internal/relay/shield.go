package relay

import (
	"context"
	"strd/internal/identity"
	"strd/internal/models"
	"strd/internal/providers"
	"strd/internal/store"
)

// ShieldPublisher is the Blocker used by both roles. It records the desired
// shield state per app for the platform enforcement agent to apply.
type ShieldPublisher struct {
	store    store.SharedStore
	codec    *store.Codec
	notifier store.Notifier
	clock    providers.Clock
	logger   providers.Logger
}

func NewShieldPublisher(s store.SharedStore, codec *store.Codec, notifier store.Notifier, clock providers.Clock, logger providers.Logger) *ShieldPublisher {
	return &ShieldPublisher{
		store:    s,
		codec:    codec,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}
}

func (p *ShieldPublisher) ApplyBlock(ctx context.Context, handle models.AppHandle, reason models.BlockingReason) error {
	return p.publish(ctx, handle, true, reason)
}

func (p *ShieldPublisher) RemoveBlock(ctx context.Context, handle models.AppHandle) error {
	return p.publish(ctx, handle, false, models.ReasonNone)
}

func (p *ShieldPublisher) publish(ctx context.Context, handle models.AppHandle, blocked bool, reason models.BlockingReason) error {
	cmd := models.ShieldCommand{
		TokenHash: identity.Hash(handle),
		Blocked:   blocked,
		Reason:    reason,
		Handle:    handle,
		UpdatedAt: p.clock.Now(),
	}
	if err := store.SetJSON(ctx, p.store, p.codec, store.ShieldKey(cmd.TokenHash), cmd); err != nil {
		return err
	}
	if err := p.notifier.Notify(ctx); err != nil {
		p.logger.Warnf(providers.TypeSync, "shield notify failed: %s", err)
	}
	return nil
}

func (p *ShieldPublisher) Command(ctx context.Context, tokenHash string) (models.ShieldCommand, error) {
	var cmd models.ShieldCommand
	err := store.GetJSON(ctx, p.store, p.codec, store.ShieldKey(tokenHash), &cmd)
	return cmd, err
}

// Commands returns every published command, ordered by token hash.
func (p *ShieldPublisher) Commands(ctx context.Context) ([]models.ShieldCommand, error) {
	keys, err := p.store.List(ctx, store.PrefixShield)
	if err != nil {
		return nil, err
	}
	out := make([]models.ShieldCommand, 0, len(keys))
	for _, key := range keys {
		var cmd models.ShieldCommand
		if err := store.GetJSON(ctx, p.store, p.codec, key, &cmd); err != nil {
			if store.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, cmd)
	}
	return out, nil
}
