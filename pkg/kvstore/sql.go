package kvstore

import (
	"context"
	"errors"

	"github.com/vocadrill/vocadrill/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLStore keeps the namespace in the kv_entries table. MultiSet and
// MultiRemove run inside a single transaction, which is the atomic batch
// write the storage layer relies on.
type SQLStore struct {
	gdb *gorm.DB
}

func NewSQLStore(gdb *gorm.DB) *SQLStore {
	return &SQLStore{gdb: gdb}
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, error) {
	var entry db.KVEntry
	err := s.gdb.WithContext(ctx).First(&entry, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", err
	}
	return entry.Value, nil
}

func (s *SQLStore) MultiGet(ctx context.Context, keys []string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return values, nil
	}
	var entries []db.KVEntry
	if err := s.gdb.WithContext(ctx).Where("key IN ?", keys).Find(&entries).Error; err != nil {
		return nil, err
	}
	for _, entry := range entries {
		values[entry.Key] = entry.Value
	}
	return values, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	return s.upsert(s.gdb.WithContext(ctx), []Pair{{Key: key, Value: value}})
}

func (s *SQLStore) MultiSet(ctx context.Context, pairs []Pair) error {
	if len(pairs) == 0 {
		return nil
	}
	return s.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.upsert(tx, pairs)
	})
}

func (s *SQLStore) upsert(tx *gorm.DB, pairs []Pair) error {
	entries := make([]db.KVEntry, 0, len(pairs))
	for _, pair := range pairs {
		entries = append(entries, db.KVEntry{Key: pair.Key, Value: pair.Value})
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entries).Error
}

func (s *SQLStore) Remove(ctx context.Context, key string) error {
	return s.gdb.WithContext(ctx).Delete(&db.KVEntry{}, "key = ?", key).Error
}

func (s *SQLStore) MultiRemove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Where("key IN ?", keys).Delete(&db.KVEntry{}).Error
	})
}

func (s *SQLStore) AllKeys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.gdb.WithContext(ctx).Model(&db.KVEntry{}).Order("key ASC").Pluck("key", &keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}
