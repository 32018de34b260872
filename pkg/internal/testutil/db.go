package testutil

import (
	"testing"

	"github.com/vocadrill/vocadrill/pkg/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	if err := gdb.AutoMigrate(&db.KVEntry{}, &db.SyncRecord{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	// The shared in-memory database survives between tests in a package;
	// start each test from an empty namespace.
	if err := gdb.Exec("DELETE FROM kv_entries").Error; err != nil {
		t.Fatalf("failed to reset kv_entries: %v", err)
	}
	if err := gdb.Exec("DELETE FROM sync_records").Error; err != nil {
		t.Fatalf("failed to reset sync_records: %v", err)
	}

	db.DB = gdb

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to access underlying DB: %v", err)
	}

	t.Cleanup(func() {
		if err := sqlDB.Close(); err != nil {
			t.Fatalf("failed to close database: %v", err)
		}
		db.DB = nil
	})
}
