// Package cache implements the task engine's two-tier result cache.
//
// # Cache Architecture
//
// Two tiers, chosen by whether a value can be serialized:
//
//  1. Disk tier: SQLite (modernc.org/sqlite), primary tier for any
//     value the msgpack codec can encode.
//  2. Memory tier: plain in-process map, fallback for values that
//     fail to serialize (closures, channels, and similar), enabled by
//     the engine's MemoryCacheFallbackEnabled setting. With the
//     fallback disabled, a value that cannot reach the disk tier is
//     dropped and logged instead of kept in memory.
//
// A value lives in exactly one tier at a time.
//
// # Usage
//
//	c, err := cache.New("/var/lib/taskforge/results.db", true, logger)
//	c.Set(taskID, result)
//
//	v, ok := c.Get(taskID)
//	if ok {
//	    c.Delete(taskID)
//	}
//
// # Exceptions
//
// A *models.TaskException is tracked with its own discriminator in
// the disk tier's schema so it decodes back into the concrete type
// rather than a generic map, since the msgpack codec alone cannot
// recover a value's original Go type on decode.
package cache
