// Package imagereader declares the collaborator interface the texture
// cache reads through (spec §6). Format-specific knowledge lives behind
// implementations in subpackages (plain, synth); this package only
// defines the contract and a filename-extension dispatch table.
//
// Deliberately, nothing here or in internal/sampler blank-imports plain
// or synth: which decoders a binary needs is a main-package decision
// (a headless server driving only synth-backed textures shouldn't pull
// in image/jpeg, tga, tiff, bmp and their transitive deps). Every
// cmd/ driver that expects to open real files on disk must blank-import
// "texturesys/internal/imagereader/plain" itself.
package imagereader

import (
	"fmt"
	"strings"
	"sync"
)

// AttrType tags the concrete type carried by an Attribute.
type AttrType int

const (
	AttrInt AttrType = iota
	AttrFloat
	AttrString
	AttrMatrix
)

// Attribute is one piece of format metadata attached to a Spec, e.g.
// "textureformat", "wrapmodes", "worldtocamera". Matrix values are
// 4x4, row-major.
type Attribute struct {
	Type      AttrType
	IntVal    int
	FloatVal  float64
	StringVal string
	MatrixVal [16]float64
}

// Spec describes one MIP level / subimage of a texture file.
type Spec struct {
	Width, Height, Depth          int
	TileWidth, TileHeight, TileDepth int
	FullWidth, FullHeight         int // full (display) size; for a cube environment, one face's size, used by cube layout detection
	Channels                      int
	Attributes                    map[string]Attribute
}

// TilePixels returns the number of texels in one tile.
func (s Spec) TilePixels() int {
	td := s.TileDepth
	if td < 1 {
		td = 1
	}
	return s.TileWidth * s.TileHeight * td
}

// Reader is the per-format I/O surface the texture cache treats as its
// only collaborator (spec §6). A Reader is not safe for concurrent use;
// callers serialize access to a single Reader instance (texturefile.TextureFile
// does this with its own lock).
type Reader interface {
	// Open opens filename (already resolved against the search path) and
	// returns the spec of the first subimage.
	Open(filename string) (Spec, error)
	// SeekSubimage moves the read cursor to subimage/MIP level index and
	// returns its spec.
	SeekSubimage(index int) (Spec, error)
	// CurrentSubimage returns the index last reached by Open or SeekSubimage.
	CurrentSubimage() int
	// ReadTile reads the tile at tile-aligned (x, y, z) of the current
	// subimage, converting to 32-bit float channel-interleaved, into out.
	// len(out) must be at least spec.TilePixels() * spec.Channels.
	ReadTile(x, y, z int, out []float32) error
	// FormatName returns the format's name, e.g. "openexr". Used verbatim
	// by texturefile to detect y-up cube environments (spec §4.A).
	FormatName() string
	Close() error
}

// Opener constructs a fresh, unopened Reader capable of handling
// filename, searching searchPath for it. It returns an error only when
// this format plainly cannot resolve the file (spec §7 kind 1/2).
type Opener func(filename, searchPath string) (Reader, error)

var (
	mu       sync.RWMutex
	openers  = map[string]Opener{}
)

// Register associates a Reader constructor with a lowercase file
// extension (including the leading dot, e.g. ".tga"). Subpackages call
// this from an init() so that blank-importing them is enough to wire a
// format in, mirroring the teacher's blank-import decoder registration.
func Register(ext string, o Opener) {
	mu.Lock()
	defer mu.Unlock()
	openers[strings.ToLower(ext)] = o
}

// Create resolves filename to a Reader using the registered opener for
// its extension. It is the Go analogue of ImageInput::create.
func Create(filename, searchPath string) (Reader, error) {
	ext := strings.ToLower(extOf(filename))
	mu.RLock()
	o, ok := openers[ext]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("imagereader: no reader registered for extension %q (file %s)", ext, filename)
	}
	return o(filename, searchPath)
}

func extOf(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return ""
	}
	return filename[i:]
}
