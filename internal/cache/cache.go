// Package cache implements the engine's two-tier result cache: a
// disk-backed primary tier for values that can be serialized, and an
// in-memory fallback tier for the ones that cannot.
package cache

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
	_ "modernc.org/sqlite"

	"github.com/riftlabs/taskforge/internal/models"
)

// compressMinBytes is the encoded-size threshold above which a disk
// tier payload is gzipped before being written, mirroring the tiered
// cache's compress-if-it-helps heuristic.
const compressMinBytes = 256

// Disk-tier value discriminators. Round-tripping an arbitrary `any`
// through msgpack loses its concrete Go type (it decodes back as a
// generic map), so the tier records whether the stored value is a
// *models.TaskException and decodes accordingly.
const (
	kindValue     = 0
	kindException = 1
)

// Cache is the engine's result store. A value lives in exactly one of
// its two tiers: the disk tier when it serializes cleanly, the memory
// tier when it does not (functions, channels, and other values the
// msgpack codec cannot represent).
type Cache struct {
	db              *sql.DB
	handle          codec.Handle
	logger          *logrus.Logger
	fallbackEnabled bool

	memMu sync.RWMutex
	mem   map[string]any
}

// New opens (creating if necessary) a disk-backed cache at path. Pass
// ":memory:" for an ephemeral cache useful in tests. fallbackEnabled
// controls whether a value that cannot reach the disk tier is kept in
// the memory tier instead of dropped; see Set.
func New(path string, fallbackEnabled bool, logger *logrus.Logger) (*Cache, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open disk tier: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writes; avoid SQLITE_BUSY churn

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS results (
		task_id    TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		compressed INTEGER NOT NULL,
		kind       INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: create schema: %w", err)
	}

	return &Cache{
		db:              db,
		handle:          &codec.MsgpackHandle{},
		logger:          logger,
		fallbackEnabled: fallbackEnabled,
		mem:             make(map[string]any),
	}, nil
}

// Close releases the disk tier's connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Set stores value under taskID, preferring the disk tier. Values the
// msgpack codec cannot encode (closures, channels, raw pointers to
// unexported-field-only structs with no exported surface), and values
// whose disk write fails, go to the memory tier when fallback is
// enabled; with fallback disabled they are logged and dropped.
func (c *Cache) Set(taskID string, value any) {
	kind := kindValue
	encodeTarget := value
	if exc, ok := value.(*models.TaskException); ok {
		kind = kindException
		encodeTarget = exc
	}

	encoded, err := c.encode(encodeTarget)
	if err != nil {
		if !c.fallbackEnabled {
			c.logger.WithFields(logrus.Fields{"task_id": taskID, "error": err}).
				Warn("cache: value not serializable, memory fallback disabled, dropping result")
			return
		}
		c.logger.WithFields(logrus.Fields{"task_id": taskID, "error": err}).
			Debug("cache: value not serializable, using memory tier")
		c.memMu.Lock()
		c.mem[taskID] = value
		c.memMu.Unlock()
		return
	}

	compressed := false
	if len(encoded) > compressMinBytes {
		if gz, gzErr := gzipCompress(encoded); gzErr == nil && len(gz) < len(encoded) {
			encoded = gz
			compressed = true
		}
	}

	if _, err := c.db.Exec(
		`INSERT INTO results (task_id, value, compressed, kind) VALUES (?, ?, ?, ?)
		 ON CONFLICT(task_id) DO UPDATE SET value = excluded.value, compressed = excluded.compressed, kind = excluded.kind`,
		taskID, encoded, boolToInt(compressed), kind,
	); err != nil {
		if !c.fallbackEnabled {
			c.logger.WithFields(logrus.Fields{"task_id": taskID, "error": err}).
				Warn("cache: disk tier write failed, memory fallback disabled, dropping result")
			return
		}
		c.logger.WithFields(logrus.Fields{"task_id": taskID, "error": err}).
			Warn("cache: disk tier write failed, falling back to memory tier")
		c.memMu.Lock()
		c.mem[taskID] = value
		c.memMu.Unlock()
		return
	}

	// A value lives in exactly one tier; clear any stale memory entry
	// from a previous Set of the same task id.
	c.memMu.Lock()
	delete(c.mem, taskID)
	c.memMu.Unlock()
}

// Get returns the cached value for taskID without removing it.
func (c *Cache) Get(taskID string) (any, bool) {
	c.memMu.RLock()
	v, ok := c.mem[taskID]
	c.memMu.RUnlock()
	if ok {
		return v, true
	}

	var raw []byte
	var compressed, kind int
	err := c.db.QueryRow(`SELECT value, compressed, kind FROM results WHERE task_id = ?`, taskID).
		Scan(&raw, &compressed, &kind)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		c.logger.WithFields(logrus.Fields{"task_id": taskID, "error": err}).
			Warn("cache: disk tier read failed")
		return nil, false
	}

	if compressed != 0 {
		decompressed, err := gzipDecompress(raw)
		if err != nil {
			c.logger.WithFields(logrus.Fields{"task_id": taskID, "error": err}).
				Warn("cache: failed to decompress disk tier value")
			return nil, false
		}
		raw = decompressed
	}

	if kind == kindException {
		exc := &models.TaskException{}
		if err := c.decode(raw, exc); err != nil {
			c.logger.WithFields(logrus.Fields{"task_id": taskID, "error": err}).
				Warn("cache: failed to decode disk tier exception")
			return nil, false
		}
		return exc, true
	}

	var value any
	if err := c.decode(raw, &value); err != nil {
		c.logger.WithFields(logrus.Fields{"task_id": taskID, "error": err}).
			Warn("cache: failed to decode disk tier value")
		return nil, false
	}
	return value, true
}

// Peek reports whether a value is cached without decoding it.
func (c *Cache) Peek(taskID string) bool {
	c.memMu.RLock()
	_, ok := c.mem[taskID]
	c.memMu.RUnlock()
	if ok {
		return true
	}

	var exists int
	err := c.db.QueryRow(`SELECT 1 FROM results WHERE task_id = ?`, taskID).Scan(&exists)
	return err == nil
}

// Delete removes taskID from both tiers.
func (c *Cache) Delete(taskID string) {
	c.memMu.Lock()
	delete(c.mem, taskID)
	c.memMu.Unlock()

	if _, err := c.db.Exec(`DELETE FROM results WHERE task_id = ?`, taskID); err != nil {
		c.logger.WithFields(logrus.Fields{"task_id": taskID, "error": err}).
			Warn("cache: disk tier delete failed")
	}
}

// MemSize reports how many entries currently live in the memory tier,
// for stats reporting.
func (c *Cache) MemSize() int {
	c.memMu.RLock()
	defer c.memMu.RUnlock()
	return len(c.mem)
}

// ClearMemory drops every entry in the memory tier. The disk tier is
// left untouched; this is used at engine shutdown where only the
// fallback tier's accumulated non-serializable values need releasing.
func (c *Cache) ClearMemory() {
	c.memMu.Lock()
	c.mem = make(map[string]any)
	c.memMu.Unlock()
}

func (c *Cache) encode(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, c.handle)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Cache) decode(data []byte, out any) error {
	dec := codec.NewDecoder(bytes.NewReader(data), c.handle)
	return dec.Decode(out)
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
