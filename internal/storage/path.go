package storage

import (
	"path"
)

// PathConfig controls how content hashes map to storage keys.
type PathConfig struct {
	// ShardLevels is the number of directory levels for sharding.
	// Default: 2 (e.g., ab/cd/abcdef...)
	ShardLevels int

	// ShardWidth is the number of characters per shard level.
	// Default: 2 (e.g., ab, cd)
	ShardWidth int
}

// DefaultPathConfig returns the default path configuration.
func DefaultPathConfig() PathConfig {
	return PathConfig{
		ShardLevels: 2,
		ShardWidth:  2,
	}
}

// ComputeKey generates the slash-separated key for a content hash.
// Uses directory sharding to distribute files across directories.
//
// Example with default config (2 levels, 2 chars each):
//
//	hash: "abcdef1234567890...", ext: "png"
//	result: "ab/cd/abcdef1234567890....png"
func ComputeKey(cfg PathConfig, contentHash, ext string) string {
	name := contentHash + "." + ext

	if len(contentHash) < cfg.ShardLevels*cfg.ShardWidth {
		return name
	}

	components := make([]string, 0, cfg.ShardLevels+1)
	offset := 0
	for i := 0; i < cfg.ShardLevels; i++ {
		components = append(components, contentHash[offset:offset+cfg.ShardWidth])
		offset += cfg.ShardWidth
	}
	components = append(components, name)

	return path.Join(components...)
}
