package tilecache

import (
	"sync"
	"testing"

	"texturesys/internal/imagereader/synth"
	"texturesys/internal/texturefile"
	"texturesys/internal/tileid"
)

func defineTiled(name string, tiles int) *texturefile.TextureFile {
	w := tiles * 2
	synth.Define(name, synth.Options{
		Width: w, Height: 2, TileWidth: 2, TileHeight: 2, Channels: 1, Levels: 1,
		Pattern: "ramp",
	})
	return texturefile.New(name, "", nil)
}

func TestFindOrLoadCachesHit(t *testing.T) {
	tf := defineTiled("hit.synth", 1)
	c := New()
	id := tileid.TileID{File: tf, Level: 0, X: 0, Y: 0}

	a := c.FindOrLoad(id)
	b := c.FindOrLoad(id)
	if a != b {
		t.Errorf("FindOrLoad should return the same Tile pointer on a cache hit")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestMaxMemoryZeroStillServesOneTile(t *testing.T) {
	tf := defineTiled("budget0.synth", 100)
	c := New()
	c.MaxMemoryMB(0)

	for i := 0; i < 100; i++ {
		id := tileid.TileID{File: tf, Level: 0, X: i * 2, Y: 0}
		tile := c.FindOrLoad(id)
		if tile == nil || !tile.Valid {
			t.Fatalf("tile %d: expected a valid tile even at a zero byte budget", i)
		}
	}
}

func TestFindOrLoadSingleFlight(t *testing.T) {
	tf := defineTiled("singleflight.synth", 1)
	c := New()
	id := tileid.TileID{File: tf, Level: 0, X: 0, Y: 0}

	var wg sync.WaitGroup
	results := make([]*tileid.Tile, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.FindOrLoad(id)
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Errorf("concurrent FindOrLoad for the same id returned different Tile pointers")
		}
	}
}

func TestBytesUsedTracksEviction(t *testing.T) {
	tf := defineTiled("bytes.synth", 4)
	c := New()
	c.MaxMemoryMB(0) // force eviction pressure on every insert beyond the first

	var last int64
	for i := 0; i < 4; i++ {
		id := tileid.TileID{File: tf, Level: 0, X: i * 2, Y: 0}
		c.FindOrLoad(id)
		used := c.BytesUsed()
		// Only the newest 2x2x1 tile (16 bytes) survives each load.
		if used != 2*2*1*4 {
			t.Errorf("iteration %d: BytesUsed() = %d, want %d (one tile)", i, used, 2*2*1*4)
		}
		last = used
	}
	_ = last
}
