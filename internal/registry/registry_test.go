package registry

import (
	"fmt"
	"testing"

	"texturesys/internal/imagereader/synth"
)

func defineN(prefix string, n int) []string {
	names := make([]string, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%s-%d.synth", prefix, i)
		synth.Define(name, synth.Options{
			Width: 2, Height: 2, TileWidth: 2, TileHeight: 2, Channels: 1, Levels: 1,
			Pattern: "constant", Value: float32(i),
		})
		names[i] = name
	}
	return names
}

func TestFindOrOpenReusesEntry(t *testing.T) {
	names := defineN("reuse", 1)
	r := New("")
	a := r.FindOrOpen(names[0])
	b := r.FindOrOpen(names[0])
	if a != b {
		t.Errorf("FindOrOpen should return the same TextureFile on repeat lookups")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestMaxOpenFilesEvictsLeastRecentlyUsed(t *testing.T) {
	names := defineN("evict", 10)
	r := New("")
	r.MaxOpenFiles(2)

	for _, n := range names {
		tf := r.FindOrOpen(n)
		if tf.Broken() {
			t.Fatalf("%s: unexpected broken file", n)
		}
	}

	if r.OpenCount() > 2 {
		t.Errorf("OpenCount() = %d, want at most 2 after budget enforcement", r.OpenCount())
	}
	// Every filename must still be resolvable via lazy reopen, even
	// though most have had their reader closed by the sweep. FindOrOpen
	// only returns the registered entry; Open (driven here directly,
	// and by ReadTile in normal use) is what transparently reopens it.
	for _, n := range names {
		tf := r.FindOrOpen(n)
		if tf.Broken() {
			t.Errorf("%s: reopen after eviction failed", n)
			continue
		}
		if !tf.Open() {
			t.Errorf("%s: Open() after eviction should succeed", n)
		}
	}
	if r.Len() != len(names) {
		t.Errorf("Len() = %d, want %d (registry keeps every filename ever seen)", r.Len(), len(names))
	}
}

func TestLookupDoesNotCreate(t *testing.T) {
	r := New("")
	if _, ok := r.Lookup("never-registered.synth"); ok {
		t.Errorf("Lookup should not find an entry that was never opened")
	}
}
