// Package storage provides the durable key-value backends that keep the
// console session across process restarts.
package storage

import (
	"context"
	"errors"
)

// Keys of the two persisted session entries. Absence of either is a valid
// logged-out state.
const (
	KeyAccessToken  = "token"
	KeyRefreshToken = "refreshToken"
)

var ErrWatchUnsupported = errors.New("storage backend does not support change notification")

// KV is a string key-value store. Get reports a missing key with ok=false
// and a nil error.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}

// Change describes a write made to the store by another process.
type Change struct {
	Key     string
	Value   string
	Deleted bool
}

// Watcher is implemented by backends that can report external changes.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Change, error)
}
