// Package models defines the gorm-mapped tables backing the persistent
// cache store (spec.md §4.8), grounded on the teacher's own
// models.Stage/models.Apply pattern: small, flat structs with explicit
// gorm tags rather than a generic blob table.
package models

import "time"

// CacheEntry is one row of the content-addressed cache (spec.md §4.8 "Key
// per file: hash(toolVersion || configHash || contentHash). Entry value:
// serialized parse+bind artifacts and the list of (dependencyPath,
// dependencyContentHash) pairs observed while binding that file."). The
// serialized artifacts themselves live in a sibling `files/<hash>.bin` blob
// file, not a SQL BLOB column — gorm only indexes the hash to that path and
// the dependency rows, matching SPEC_FULL.md §4.8.F's "BLOB-in-SQL for
// multi-megabyte parse trees is the wrong tool."
type CacheEntry struct {
	Hash string `gorm:"primaryKey;type:varchar(64)"`

	FilePath    string `gorm:"type:text;index"`
	ToolVersion string `gorm:"type:varchar(32)"`
	ConfigHash  string `gorm:"type:varchar(64)"`
	ContentHash string `gorm:"type:varchar(64)"`

	// BlobPath is the relative path under the cache directory's files/
	// subdirectory holding the serialized parse+bind artifacts.
	BlobPath string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"autoCreateTime"`

	Dependencies []CacheDependency `gorm:"foreignKey:EntryHash;references:Hash"`
}

// CacheDependency is one (dependencyPath, dependencyContentHash) pair
// observed while binding the owning CacheEntry's file (spec.md §4.8). On
// load, the cache recursively verifies every dependency's current content
// hash still matches before trusting the parent entry.
type CacheDependency struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	EntryHash       string `gorm:"type:varchar(64);index"`
	DependencyPath  string `gorm:"type:text"`
	DependencyHash  string `gorm:"type:varchar(64)"`
}

// TableName customizations mirroring the teacher's cleaner-plural-names
// convention.
func (CacheEntry) TableName() string      { return "cache_entries" }
func (CacheDependency) TableName() string { return "cache_dependencies" }
