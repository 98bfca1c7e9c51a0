// Package session persists draft state across server restarts, keyed by
// session id. Stores are last-write-wins: a Save wholly overwrites the
// prior record, and callers are responsible for serializing concurrent
// writers (the room actor loop does exactly that).
package session

import (
	"context"
	"errors"

	"github.com/smite-tools/draft-server/internal/draft"
)

var ErrNotFound = errors.New("session not found")

type Store interface {
	Load(ctx context.Context, sessionID string) (draft.State, error)
	Save(ctx context.Context, sessionID string, state draft.State) error
	Close() error
}
