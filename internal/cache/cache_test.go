package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/augurlabs/augur/pkg/lexer"
	"github.com/augurlabs/augur/pkg/parser"
)

func sampleEntry() *Entry {
	return &Entry{
		Language:     parser.LangGo,
		Mode:         "exact",
		WindowTokens: 40,
		Stream: &lexer.Stream{
			Language: parser.LangGo,
			Tokens: []lexer.Token{
				{Text: "package", StartLine: 1, StartCol: 1, EndLine: 1, EndCol: 8},
				{Text: "main", StartLine: 1, StartCol: 9, EndLine: 1, EndCol: 13},
			},
		},
		Fingerprints: []uint64{0xdeadbeef, 0xcafef00d},
	}
}

func TestHashBytes(t *testing.T) {
	a := HashBytes([]byte("hello"))
	b := HashBytes([]byte("hello"))
	c := HashBytes([]byte("world"))

	if a != b {
		t.Errorf("same content hashed differently: %s vs %s", a, b)
	}
	if a == c {
		t.Error("different content produced the same hash")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestDiskRoundTrip(t *testing.T) {
	store, err := NewDisk(t.TempDir(), true)
	if err != nil {
		t.Fatalf("NewDisk() error = %v", err)
	}

	hash := HashBytes([]byte("content"))
	if err := store.Put(hash, sampleEntry()); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok := store.Get(hash)
	if !ok {
		t.Fatal("Get() miss after Put()")
	}
	if got.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", got.SchemaVersion, SchemaVersion)
	}
	if got.ContentHash != hash {
		t.Errorf("ContentHash = %q, want %q", got.ContentHash, hash)
	}
	if got.Language != parser.LangGo || got.Mode != "exact" || got.WindowTokens != 40 {
		t.Errorf("entry settings round-trip failed: %+v", got)
	}
	if len(got.Stream.Tokens) != 2 || got.Stream.Tokens[0].Text != "package" {
		t.Errorf("token stream round-trip failed: %+v", got.Stream)
	}
	if len(got.Fingerprints) != 2 || got.Fingerprints[0] != 0xdeadbeef {
		t.Errorf("fingerprint round-trip failed: %+v", got.Fingerprints)
	}
	if got.LastSeen.IsZero() {
		t.Error("LastSeen should be set on Put")
	}
}

func TestDiskMiss(t *testing.T) {
	store, err := NewDisk(t.TempDir(), true)
	if err != nil {
		t.Fatalf("NewDisk() error = %v", err)
	}
	if _, ok := store.Get(HashBytes([]byte("never stored"))); ok {
		t.Error("Get() should miss for unknown hash")
	}
}

func TestDiskCorruptRecordIsMiss(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDisk(dir, true)
	if err != nil {
		t.Fatalf("NewDisk() error = %v", err)
	}

	hash := HashBytes([]byte("content"))
	if err := os.WriteFile(filepath.Join(dir, hash+".json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Get(hash); ok {
		t.Error("corrupt record should read as a miss")
	}
}

func TestDiskVersionMismatchIsMiss(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDisk(dir, true)
	if err != nil {
		t.Fatalf("NewDisk() error = %v", err)
	}

	hash := HashBytes([]byte("content"))
	entry := sampleEntry()
	entry.SchemaVersion = SchemaVersion + 1
	entry.ContentHash = hash
	data, _ := json.Marshal(entry)
	if err := os.WriteFile(filepath.Join(dir, hash+".json"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := store.Get(hash); ok {
		t.Error("version-mismatched record should read as a miss")
	}
}

func TestDiskDisabled(t *testing.T) {
	store, err := NewDisk("/nonexistent/should/not/be/created", false)
	if err != nil {
		t.Fatalf("NewDisk(disabled) error = %v", err)
	}

	hash := HashBytes([]byte("content"))
	if err := store.Put(hash, sampleEntry()); err != nil {
		t.Errorf("disabled Put() error = %v", err)
	}
	if _, ok := store.Get(hash); ok {
		t.Error("disabled store should always miss")
	}
	if err := store.Clear(); err != nil {
		t.Errorf("disabled Clear() error = %v", err)
	}
	if _, err := os.Stat("/nonexistent/should/not/be/created"); !os.IsNotExist(err) {
		t.Error("disabled store should not create its directory")
	}
}

func TestDiskInvalidate(t *testing.T) {
	store, err := NewDisk(t.TempDir(), true)
	if err != nil {
		t.Fatalf("NewDisk() error = %v", err)
	}

	hash := HashBytes([]byte("content"))
	if err := store.Put(hash, sampleEntry()); err != nil {
		t.Fatal(err)
	}
	if err := store.Invalidate(hash); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, ok := store.Get(hash); ok {
		t.Error("Get() should miss after Invalidate()")
	}
}

func TestDiskClear(t *testing.T) {
	store, err := NewDisk(t.TempDir(), true)
	if err != nil {
		t.Fatalf("NewDisk() error = %v", err)
	}

	for _, content := range []string{"one", "two", "three"} {
		if err := store.Put(HashBytes([]byte(content)), sampleEntry()); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	stats, err := store.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.Entries != 0 {
		t.Errorf("Entries = %d after Clear(), want 0", stats.Entries)
	}

	// The store stays usable after Clear.
	hash := HashBytes([]byte("again"))
	if err := store.Put(hash, sampleEntry()); err != nil {
		t.Errorf("Put() after Clear() error = %v", err)
	}
	if _, ok := store.Get(hash); !ok {
		t.Error("Get() miss after post-Clear Put()")
	}
}

func TestDiskPrune(t *testing.T) {
	store, err := NewDisk(t.TempDir(), true)
	if err != nil {
		t.Fatalf("NewDisk() error = %v", err)
	}

	keep := HashBytes([]byte("keep"))
	drop := HashBytes([]byte("drop"))
	for _, h := range []string{keep, drop} {
		if err := store.Put(h, sampleEntry()); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.Prune(map[string]struct{}{keep: {}}); err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if _, ok := store.Get(keep); !ok {
		t.Error("live entry pruned")
	}
	if _, ok := store.Get(drop); ok {
		t.Error("stale entry survived prune")
	}
}

func TestDiskStats(t *testing.T) {
	store, err := NewDisk(t.TempDir(), true)
	if err != nil {
		t.Fatalf("NewDisk() error = %v", err)
	}

	stats, err := store.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.Entries != 0 || stats.TotalSize != 0 {
		t.Errorf("empty stats = %+v, want zeros", stats)
	}

	if err := store.Put(HashBytes([]byte("content")), sampleEntry()); err != nil {
		t.Fatal(err)
	}
	stats, err = store.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.Entries != 1 {
		t.Errorf("Entries = %d, want 1", stats.Entries)
	}
	if stats.TotalSize == 0 {
		t.Error("TotalSize should be non-zero with one record")
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemory()
	hash := HashBytes([]byte("content"))

	if _, ok := store.Get(hash); ok {
		t.Error("empty memory store should miss")
	}
	if err := store.Put(hash, sampleEntry()); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, ok := store.Get(hash)
	if !ok || got.Mode != "exact" {
		t.Errorf("Get() = %+v, %v", got, ok)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
	if err := store.Invalidate(hash); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Get(hash); ok {
		t.Error("Get() should miss after Invalidate()")
	}
	if err := store.Put(hash, sampleEntry()); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d after Clear(), want 0", store.Len())
	}
}
