// Package tileid implements component B: the TileID value type and the
// Tile it identifies (spec §3, §4.B).
package tileid

import (
	"fmt"
	"sync/atomic"

	"texturesys/internal/texturefile"
)

// TileID identifies one tile: a file, MIP level, and tile-aligned
// origin. Two TileIDs are equal iff all five fields match; since File
// is a pointer and the rest are plain ints, the zero-value-comparable
// struct can be used directly as a map key.
type TileID struct {
	File  *texturefile.TextureFile
	Level int
	X, Y, Z int
}

// Aligned reports whether X, Y are multiples of the level's tile
// dimensions, the precondition §3 and §7 kind 5 require of every TileID.
func (id TileID) Aligned() bool {
	spec := id.File.Spec(id.Level)
	tw, th := spec.TileWidth, spec.TileHeight
	if tw <= 0 || th <= 0 {
		return false
	}
	return id.X%tw == 0 && id.Y%th == 0
}

// Tile is the decoded pixel buffer for one TileID: 32-bit float,
// channel-interleaved, row-major within the tile.
type Tile struct {
	ID     TileID
	Texels []float32
	Valid  bool

	MinDepth, MaxDepth float32
	HasDepthRange      bool

	used atomic.Bool
}

// Load reads a tile through its file's ReadTile. I/O failure does not
// panic or propagate: the tile is still returned, marked invalid, so it
// occupies cache space and bounds retries (spec §4.B, §7 kind 3).
func Load(id TileID) *Tile {
	if !id.Aligned() {
		panic(fmt.Sprintf("tileid: tile origin (%d,%d) is not aligned to level %d tile size", id.X, id.Y, id.Level))
	}

	spec := id.File.Spec(id.Level)
	n := spec.TilePixels() * spec.Channels
	t := &Tile{ID: id, Texels: make([]float32, n), Valid: true}
	t.used.Store(true)

	if err := id.File.ReadTile(id.Level, id.X, id.Y, id.Z, t.Texels); err != nil {
		t.Valid = false
	}
	return t
}

// Use marks the tile as recently accessed, for the cache's CLOCK sweep.
func (t *Tile) Use() { t.used.Store(true) }

// ClearUsed is called by the cache sweep's first pass.
func (t *Tile) ClearUsed() { t.used.Store(false) }

// Used reports the current state of the LRU bit.
func (t *Tile) Used() bool { return t.used.Load() }

// ByteSize is the size in bytes of the tile's texel buffer, the unit
// the cache's byte budget tracks.
func (t *Tile) ByteSize() int { return len(t.Texels) * 4 }

// At returns all channels of the texel at tile-local (tx, ty), where
// channels is the texel's channel count, using the tile's own width
// derived from its ID's file/level. It returns nil if out of range.
func (t *Tile) At(tx, ty, channels int) []float32 {
	spec := t.ID.File.Spec(t.ID.Level)
	offset := (ty*spec.TileWidth + tx) * channels
	if offset < 0 || offset+channels > len(t.Texels) {
		return nil
	}
	return t.Texels[offset : offset+channels]
}
