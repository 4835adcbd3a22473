package varstore

import (
	"context"
	"errors"
)

// ErrNotFound marks a missing variable path.
var ErrNotFound = errors.New("variable not found")

// Store is a hierarchical key/value store for pipeline invocation
// variables. Paths use slash-separated segments; ListByPrefix returns
// every variable under a path.
type Store interface {
	Put(ctx context.Context, path, value string) error
	Get(ctx context.Context, path string) (string, error)
	Delete(ctx context.Context, path string) error
	ListByPrefix(ctx context.Context, prefix string) (map[string]string, error)
}
