package models

import "errors"

var (
	ErrStoreUnavailable     = errors.New("shared store unavailable")
	ErrNotFound             = errors.New("key not found")
	ErrUnknownApp           = errors.New("unknown app")
	ErrIdentityConflict     = errors.New("identity conflict")
	ErrConfigurationMissing = errors.New("configuration missing")
	ErrInvalidSample        = errors.New("invalid usage sample")
	ErrNotRewardApp         = errors.New("not a reward app")
)
