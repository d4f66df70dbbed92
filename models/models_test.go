package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&CacheEntry{}, &CacheDependency{}))
	return gdb
}

func TestTableNamesUseCleanerPlurals(t *testing.T) {
	assert.Equal(t, "cache_entries", CacheEntry{}.TableName())
	assert.Equal(t, "cache_dependencies", CacheDependency{}.TableName())
}

func TestCacheEntryPreloadsDependencies(t *testing.T) {
	gdb := openTestDB(t)

	entry := CacheEntry{
		Hash:        "abc123",
		FilePath:    "proj/a.py",
		ToolVersion: "0.1.0",
		ConfigHash:  "cfg1",
		ContentHash: "hash1",
		BlobPath:    "files/abc123.bin",
		Dependencies: []CacheDependency{
			{DependencyPath: "proj/b.py", DependencyHash: "hashb"},
		},
	}
	require.NoError(t, gdb.Create(&entry).Error)

	var loaded CacheEntry
	require.NoError(t, gdb.Preload("Dependencies").Where("hash = ?", "abc123").First(&loaded).Error)
	require.Len(t, loaded.Dependencies, 1)
	assert.Equal(t, "proj/b.py", loaded.Dependencies[0].DependencyPath)
	assert.Equal(t, "abc123", loaded.Dependencies[0].EntryHash)
	assert.False(t, loaded.CreatedAt.IsZero())
}
