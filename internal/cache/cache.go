// Package cache persists per-file token streams and fingerprints keyed by
// content hash, so repeat scans of an unchanged tree skip tokenization
// entirely.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/augurlabs/augur/pkg/lexer"
	"github.com/augurlabs/augur/pkg/parser"
)

// SchemaVersion guards entry deserialization. Any change to the entry or
// token serialization must bump it; old records then read as misses instead
// of being misread.
const SchemaVersion = 1

// Entry is one cached file result. The only state that outlives a run.
type Entry struct {
	SchemaVersion int             `json:"schema_version"`
	ContentHash   string          `json:"content_hash"`
	Language      parser.Language `json:"language"`
	Mode          string          `json:"mode"`
	WindowTokens  int             `json:"window_tokens"`
	Stream        *lexer.Stream   `json:"stream"`
	Fingerprints  []uint64        `json:"fingerprints"`
	LastSeen      time.Time       `json:"last_seen"`
}

// Store is the cache contract. Implementations must support concurrent
// readers; writes are per-key and compute-first (the engine only calls Put
// with a fully computed entry).
type Store interface {
	Get(contentHash string) (*Entry, bool)
	Put(contentHash string, e *Entry) error
	Invalidate(contentHash string) error
	Clear() error
}

// HashBytes computes a BLAKE3 content hash as a hex string.
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Disk is a durable Store backed by one JSON record per content hash.
type Disk struct {
	dir     string
	enabled bool
}

// NewDisk creates a disk store rooted at dir. A disabled store satisfies
// every call as a miss or no-op, so callers never branch on caching.
func NewDisk(dir string, enabled bool) (*Disk, error) {
	if !enabled {
		return &Disk{enabled: false}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Disk{dir: dir, enabled: true}, nil
}

// Get returns the entry for a content hash. Unreadable, corrupt, or
// version-mismatched records are misses, never errors.
func (d *Disk) Get(contentHash string) (*Entry, bool) {
	if !d.enabled {
		return nil, false
	}

	data, err := os.ReadFile(d.keyPath(contentHash))
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	if entry.SchemaVersion != SchemaVersion || entry.ContentHash != contentHash {
		return nil, false
	}
	return &entry, true
}

// Put writes an entry atomically: the record is staged to a temp file and
// renamed into place, so a cancelled run never leaves a partial record.
func (d *Disk) Put(contentHash string, e *Entry) error {
	if !d.enabled {
		return nil
	}

	e.SchemaVersion = SchemaVersion
	e.ContentHash = contentHash
	if e.LastSeen.IsZero() {
		e.LastSeen = time.Now()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(d.dir, "put-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), d.keyPath(contentHash))
}

// Invalidate removes the entry for a content hash.
func (d *Disk) Invalidate(contentHash string) error {
	if !d.enabled {
		return nil
	}
	err := os.Remove(d.keyPath(contentHash))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Clear removes every record. Clearing never changes the violation output
// of a subsequent run, only its duration.
func (d *Disk) Clear() error {
	if !d.enabled {
		return nil
	}
	if err := os.RemoveAll(d.dir); err != nil {
		return err
	}
	return os.MkdirAll(d.dir, 0o755)
}

// Prune removes records whose content hash is not in the live set. Called
// after a successful run with the hashes of every scanned file.
func (d *Disk) Prune(live map[string]struct{}) error {
	if !d.enabled {
		return nil
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return err
	}
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		hash := strings.TrimSuffix(name, ".json")
		if _, ok := live[hash]; !ok {
			os.Remove(filepath.Join(d.dir, name))
		}
	}
	return nil
}

// Stats summarizes the on-disk cache for the cache subcommand.
type Stats struct {
	Entries   int   `json:"entries"`
	TotalSize int64 `json:"total_size"`
}

// GetStats returns record count and total size.
func (d *Disk) GetStats() (*Stats, error) {
	stats := &Stats{}
	if !d.enabled {
		return stats, nil
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return nil, err
	}
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".json") {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			continue
		}
		stats.Entries++
		stats.TotalSize += info.Size()
	}
	return stats, nil
}

// keyPath converts a content hash to its record path. Hashes are hex, so
// they are already safe filenames.
func (d *Disk) keyPath(contentHash string) string {
	return filepath.Join(d.dir, contentHash+".json")
}
