// Package kvstore exposes the flat key-value primitives the storage layer
// is built on: whole-value reads and writes over unique string keys, with
// batched variants that are atomic as a unit.
package kvstore

import (
	"context"
	"errors"
)

var ErrKeyNotFound = errors.New("kvstore: key not found")

type Pair struct {
	Key   string
	Value string
}

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	MultiGet(ctx context.Context, keys []string) (map[string]string, error)
	Set(ctx context.Context, key, value string) error
	MultiSet(ctx context.Context, pairs []Pair) error
	Remove(ctx context.Context, key string) error
	MultiRemove(ctx context.Context, keys []string) error
	AllKeys(ctx context.Context) ([]string, error)
}
