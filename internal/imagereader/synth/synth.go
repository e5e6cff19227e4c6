// Package synth is a dependency-free image reader that generates
// deterministic, in-memory tiled/mipped textures. It backs the test
// suite; neither cmd/ driver imports it. The retrieved pack has no Go
// decoder exposing tiled, multi-subimage Volume/Shadow/Environment
// formats behind the spec §6 interface, so this is the system's only
// always-available backend for those texture formats.
package synth

import (
	"fmt"
	"sync"

	"texturesys/internal/imagereader"
)

// Options describes one synthetic texture definition.
type Options struct {
	Width, Height, Depth             int
	TileWidth, TileHeight, TileDepth int
	Channels                         int
	Levels                           int // MIP levels, each half resolution of the previous
	Pattern                          string // "constant", "checker", "diagonal", "ramp"
	Value                            float32
	TextureFormat                    string // e.g. "Plain Texture", matched against the enum by texturefile
	WrapModes                        string // e.g. "black" or "periodic,mirror"
	FormatName                      string // Reader.FormatName(), e.g. "openexr" to trigger y-up
	// FullWidth/FullHeight override the declared per-face size used by
	// texturefile's cube-layout detection (spec §4.A): a cube environment
	// packs six faces into one montage, so Width/Height (the montage size)
	// and FullWidth/FullHeight (one face's size) legitimately differ.
	// Zero means "same as Width/Height", the common non-cube case.
	FullWidth, FullHeight int
	ExtraAttrs            map[string]imagereader.Attribute
}

var registry = struct {
	mu sync.Mutex
	m  map[string]Options
}{m: map[string]Options{}}

// Define registers a synthetic texture under name (a pseudo filename
// ending in ".synth"). System.Texture/GetTextureInfo called with that
// name will read through this definition.
func Define(name string, opts Options) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.m[name] = opts
}

func init() {
	imagereader.Register(".synth", open)
}

func open(filename, searchPath string) (imagereader.Reader, error) {
	registry.mu.Lock()
	opts, ok := registry.m[filename]
	registry.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("synth: no definition registered for %q", filename)
	}
	return newReader(opts), nil
}

type reader struct {
	opts  Options
	specs []imagereader.Spec
	cur   int
}

func newReader(opts Options) *reader {
	levels := opts.Levels
	if levels < 1 {
		levels = 1
	}
	w, h, d := opts.Width, opts.Height, opts.Depth
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if d < 1 {
		d = 1
	}
	tw, th, td := opts.TileWidth, opts.TileHeight, opts.TileDepth
	if tw < 1 {
		tw = w
	}
	if th < 1 {
		th = h
	}
	if td < 1 {
		td = d
	}

	fullW, fullH := opts.FullWidth, opts.FullHeight
	if fullW < 1 {
		fullW = w
	}
	if fullH < 1 {
		fullH = h
	}

	specs := make([]imagereader.Spec, levels)
	lw, lh, ld := w, h, d
	for i := 0; i < levels; i++ {
		s := imagereader.Spec{
			Width: lw, Height: lh, Depth: ld,
			TileWidth: minInt(tw, lw), TileHeight: minInt(th, lh), TileDepth: minInt(td, ld),
			FullWidth: fullW, FullHeight: fullH,
			Channels: opts.Channels,
		}
		if i == 0 {
			s.Attributes = buildAttrs(opts)
		}
		specs[i] = s
		lw, lh = maxInt(1, lw/2), maxInt(1, lh/2)
		if ld > 1 {
			ld = maxInt(1, ld/2)
		}
	}
	return &reader{opts: opts, specs: specs}
}

func buildAttrs(opts Options) map[string]imagereader.Attribute {
	attrs := map[string]imagereader.Attribute{}
	if opts.TextureFormat != "" {
		attrs["textureformat"] = imagereader.Attribute{Type: imagereader.AttrString, StringVal: opts.TextureFormat}
	}
	if opts.WrapModes != "" {
		attrs["wrapmodes"] = imagereader.Attribute{Type: imagereader.AttrString, StringVal: opts.WrapModes}
	}
	for k, v := range opts.ExtraAttrs {
		attrs[k] = v
	}
	return attrs
}

func (r *reader) Open(filename string) (imagereader.Spec, error) {
	r.cur = 0
	return r.specs[0], nil
}

func (r *reader) SeekSubimage(index int) (imagereader.Spec, error) {
	if index < 0 || index >= len(r.specs) {
		return imagereader.Spec{}, fmt.Errorf("synth: subimage %d out of range (have %d)", index, len(r.specs))
	}
	r.cur = index
	return r.specs[index], nil
}

func (r *reader) CurrentSubimage() int { return r.cur }

func (r *reader) FormatName() string {
	if r.opts.FormatName != "" {
		return r.opts.FormatName
	}
	return "synth"
}

func (r *reader) Close() error { return nil }

func (r *reader) ReadTile(x, y, z int, out []float32) error {
	spec := r.specs[r.cur]
	ch := spec.Channels
	need := spec.TileWidth * spec.TileHeight * maxInt(1, spec.TileDepth) * ch
	if len(out) < need {
		return fmt.Errorf("synth: output buffer too small: have %d, need %d", len(out), need)
	}
	idx := 0
	for ty := 0; ty < spec.TileHeight; ty++ {
		for tx := 0; tx < spec.TileWidth; tx++ {
			px, py := x+tx, y+ty
			for c := 0; c < ch; c++ {
				out[idx] = r.texel(px, py, z, c, spec)
				idx++
			}
		}
	}
	return nil
}

func (r *reader) texel(x, y, z, c int, spec imagereader.Spec) float32 {
	switch r.opts.Pattern {
	case "checker":
		if (x+y)%2 == 0 {
			return 1
		}
		return 0
	case "diagonal":
		if (x+y)%2 == 0 {
			return 0
		}
		return 1
	case "ramp":
		if spec.Width <= 1 {
			return 0
		}
		return float32(x) / float32(spec.Width-1)
	default:
		return r.opts.Value
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
