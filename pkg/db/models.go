// pkg/db/models.go
package db

import (
	"time"

	"gorm.io/datatypes"
)

// KVEntry is a row of the flat key-value namespace every entity table is
// mapped onto. Keys follow the <prefix><id> convention owned by pkg/storage.
type KVEntry struct {
	Key       string `gorm:"primaryKey;size:512"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

func (KVEntry) TableName() string {
	return "kv_entries"
}

// SyncRecord is an audit row appended after every sync attempt.
type SyncRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Direction string `gorm:"not null"` // push or pull
	Status    string `gorm:"not null"` // ok or failed
	Detail    datatypes.JSON
	CreatedAt time.Time
}
