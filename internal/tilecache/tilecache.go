// Package tilecache implements component D: a TileID -> Tile map
// bounded by a total-byte budget, swept with a CLOCK (second-chance)
// policy, with single-flight loads so the cache lock is not held across
// disk I/O (spec §3, §4.D, §9 "Single-flight tile loads").
package tilecache

import (
	"sync"

	"texturesys/internal/tileid"
)

const defaultMaxBytes = 50 << 20 // 50 MiB

// TileCache maps TileID to Tile.
type TileCache struct {
	mu    sync.Mutex
	tiles map[tileid.TileID]*tileid.Tile
	order []tileid.TileID
	cursor int
	bytesUsed int64
	maxBytes  int64

	loading map[tileid.TileID]*loadState
}

type loadState struct {
	done chan struct{}
	tile *tileid.Tile
}

// New creates a cache bounded by the default 50 MiB budget.
func New() *TileCache {
	c := &TileCache{
		tiles:   make(map[tileid.TileID]*tileid.Tile),
		loading: make(map[tileid.TileID]*loadState),
	}
	c.maxBytes = defaultMaxBytes
	return c
}

// MaxMemoryMB sets the tile-byte budget (spec §4.D configuration). A
// value of 0 is accepted as "smallest positive" per §8 scenario 6: it
// still allows exactly the one tile presently pinned by an in-flight
// lookup, but nothing beyond that survives the next load.
func (c *TileCache) MaxMemoryMB(mb int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mb < 0 {
		mb = 0
	}
	c.maxBytes = int64(mb) << 20
}

// FindOrLoad looks up id; on a hit it marks the tile used and returns
// it. On a miss, a single loader reads through the file while other
// callers for the same id wait, avoiding holding the cache lock across
// I/O (spec §9).
func (c *TileCache) FindOrLoad(id tileid.TileID) *tileid.Tile {
	c.mu.Lock()
	if t, ok := c.tiles[id]; ok {
		t.Use()
		c.mu.Unlock()
		return t
	}
	if ls, ok := c.loading[id]; ok {
		c.mu.Unlock()
		<-ls.done
		return ls.tile
	}

	ls := &loadState{done: make(chan struct{})}
	c.loading[id] = ls
	c.mu.Unlock()

	tile := tileid.Load(id)

	c.mu.Lock()
	c.admitLocked(id, tile)
	delete(c.loading, id)
	ls.tile = tile
	close(ls.done)
	c.mu.Unlock()

	return tile
}

// admitLocked inserts tile under id, first making room under the byte
// budget. Called with c.mu held.
func (c *TileCache) admitLocked(id tileid.TileID, tile *tileid.Tile) {
	if existing, ok := c.tiles[id]; ok {
		// Another path (shouldn't happen under single-flight, but stay
		// safe) already inserted this id; keep the existing entry.
		existing.Use()
		return
	}
	c.checkMaxMemoryLocked(int64(tile.ByteSize()))
	c.tiles[id] = tile
	c.order = append(c.order, id)
	c.bytesUsed += int64(tile.ByteSize())
	c.compactIfStaleLocked()
}

// checkMaxMemoryLocked advances the sweep cursor, clearing the used bit
// on a first pass and dropping the entry on a second, while total bytes
// plus the incoming tile would exceed the budget.
func (c *TileCache) checkMaxMemoryLocked(incoming int64) {
	if len(c.order) == 0 {
		return
	}
	steps := 0
	limit := len(c.order) * 2
	for c.bytesUsed+incoming > c.maxBytes && steps < limit {
		if c.cursor >= len(c.order) {
			c.cursor = 0
		}
		id := c.order[c.cursor]
		t, ok := c.tiles[id]
		if !ok {
			// Already evicted; advance past the stale slot.
			c.cursor++
			steps++
			continue
		}
		if t.Used() {
			t.ClearUsed()
			c.cursor++
		} else {
			delete(c.tiles, id)
			c.bytesUsed -= int64(t.ByteSize())
			c.cursor++
		}
		steps++
	}
}

// compactIfStaleLocked rebuilds the sweep ring once it has accumulated
// enough stale (already-deleted) slots, so a long-running cache doesn't
// grow the ring unboundedly.
func (c *TileCache) compactIfStaleLocked() {
	if len(c.order) < 64 || len(c.order) < 2*len(c.tiles) {
		return
	}
	fresh := make([]tileid.TileID, 0, len(c.tiles))
	for _, id := range c.order {
		if _, ok := c.tiles[id]; ok {
			fresh = append(fresh, id)
		}
	}
	c.order = fresh
	c.cursor = 0
}

// BytesUsed returns the current total size of cached tile buffers.
func (c *TileCache) BytesUsed() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytesUsed
}

// Len returns the number of tiles currently resident.
func (c *TileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tiles)
}
