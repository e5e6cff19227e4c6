// Package texturefile implements component A of the texture cache: a
// lazily-opened handle onto one on-disk texture, its per-MIP specs, and
// the declared format/wrap/cube metadata read out of the first MIP's
// attributes on first open. Grounded on the teacher's internal/texture
// loader plus the TextureFile type in original_source/texfile.cpp.
package texturefile

import (
	"fmt"
	"strings"
	"sync"

	"texturesys/internal/imagereader"
	"texturesys/internal/mathutil"
)

// TexFormat is the declared texture type, decoded from the "textureformat"
// attribute of the first MIP level (spec §3, §6).
type TexFormat int

const (
	FormatUnknown TexFormat = iota
	FormatPlain
	FormatVolume
	FormatShadow
	FormatCubeFaceShadow
	FormatVolumeShadow
	FormatLatLongEnv
	FormatCubeFaceEnv
	formatCount
)

var formatNames = [formatCount]string{
	"unknown", "Plain Texture", "Volume Texture",
	"Shadow", "CubeFace Shadow", "Volume Shadow",
	"LatLong Environment", "CubeFace Environment",
}

// Name returns the wire-visible metadata string for this format.
func (f TexFormat) Name() string {
	if f < 0 || int(f) >= len(formatNames) {
		return formatNames[FormatUnknown]
	}
	return formatNames[f]
}

// Wrap is the coordinate wrap policy along one texture axis (spec §3, §6).
type Wrap int

const (
	WrapDefault Wrap = iota
	WrapBlack
	WrapClamp
	WrapPeriodic
	WrapMirror
	wrapCount
)

var wrapNames = [wrapCount]string{"default", "black", "clamp", "periodic", "mirror"}

func (w Wrap) Name() string {
	if w < 0 || int(w) >= len(wrapNames) {
		return wrapNames[WrapDefault]
	}
	return wrapNames[w]
}

// decodeWrapmode is a case-sensitive exact match against the enumerated
// wrap names; unknown strings yield WrapDefault (spec §4.A).
func decodeWrapmode(name string) Wrap {
	for i := Wrap(0); i < wrapCount; i++ {
		if wrapNames[i] == name {
			return i
		}
	}
	return WrapDefault
}

func parseWrapmodes(s string) (Wrap, Wrap) {
	parts := strings.SplitN(s, ",", 2)
	swrap := decodeWrapmode(parts[0])
	twrap := swrap
	if len(parts) == 2 {
		twrap = decodeWrapmode(parts[1])
	}
	return swrap, twrap
}

// CubeLayout is the arrangement of six cube faces within one 2D image,
// detected by comparing the spec's declared size against its base tile
// size (spec §4.A).
type CubeLayout int

const (
	CubeUnknown CubeLayout = iota
	CubeThreeByTwo
	CubeOneBySix
	cubeLayoutCount
)

var cubeLayoutNames = [cubeLayoutCount]string{"unknown", "3x2", "1x6"}

// Name returns the wire-visible "cubelayout" gettextureinfo string.
func (l CubeLayout) Name() string {
	if l < 0 || int(l) >= len(cubeLayoutNames) {
		return cubeLayoutNames[CubeUnknown]
	}
	return cubeLayoutNames[l]
}

// OpenCounter is the non-owning handle a TextureFile uses to report its
// open/close transitions to whatever owns the open-file budget. The
// registry implements this; TextureFile never holds a strong reference
// back to its owner (spec §9 "Cyclic ownership").
type OpenCounter interface {
	IncrOpenFiles()
	DecrOpenFiles()
}

// TextureFile represents one on-disk texture. Construction opens it
// once; after that it toggles between Open and Closed(metadata-only)
// via Release and Open (which ReadTile calls implicitly), or becomes
// permanently Broken.
type TextureFile struct {
	mu sync.Mutex // guards reader state: current subimage cursor, open/broken/used

	filename   string
	searchPath string
	counter    OpenCounter

	reader  imagereader.Reader
	specs   []imagereader.Spec // all MIP levels; filled on first successful open
	curSub  int

	texFormat  TexFormat
	swrap      Wrap
	twrap      Wrap
	cubeLayout CubeLayout
	yUp        bool

	// worldtocameraRaw/worldtoscreenRaw are the declared attributes as
	// read from the file; mLocal/mProj are those composed against the
	// system's common-to-world matrix by ComposeMatrices. Composition is
	// always recomputed from the raw values so repeated ComposeMatrices
	// calls (one per batch/query) are idempotent rather than accumulating.
	worldtocameraRaw mathutil.Mat4
	worldtoscreenRaw mathutil.Mat4
	mLocal           mathutil.Mat4
	mProj            mathutil.Mat4
	hasMLocal        bool
	hasMProj         bool

	broken bool
	open   bool
	used   bool
}

// New creates a TextureFile for filename and immediately attempts to
// open it, mirroring the original TextureFile constructor. counter may
// be nil in tests that don't care about the open-file budget.
func New(filename, searchPath string, counter OpenCounter) *TextureFile {
	tf := &TextureFile{
		filename:   filename,
		searchPath: searchPath,
		counter:    counter,
		swrap:      WrapBlack,
		twrap:      WrapBlack,
	}
	tf.Open()
	return tf
}

// Open is idempotent: already-open returns success, already-broken
// returns failure without retrying, otherwise it creates a reader,
// opens it, and on the very first successful open parses all MIP specs
// and the format/wrap/cube-layout/matrix metadata (spec §4.A).
func (tf *TextureFile) Open() bool {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return tf.openLocked()
}

func (tf *TextureFile) openLocked() bool {
	if tf.open {
		return true
	}
	if tf.broken {
		return false
	}

	r, err := imagereader.Create(tf.filename, tf.searchPath)
	if err != nil {
		tf.broken = true
		return false
	}

	first, err := r.Open(tf.filename)
	if err != nil {
		tf.broken = true
		return false
	}

	tf.reader = r
	tf.open = true
	tf.curSub = 0
	if tf.counter != nil {
		tf.counter.IncrOpenFiles()
	}
	tf.useLocked()

	// If specs were already filled out, this is a reopen after eviction:
	// metadata is retained, nothing more to do.
	if len(tf.specs) > 0 {
		return true
	}

	specs := make([]imagereader.Spec, 0, 16)
	specs = append(specs, first)
	level := 1
	for {
		s, err := r.SeekSubimage(level)
		if err != nil {
			break
		}
		if s.Channels != specs[0].Channels {
			tf.broken = true
			tf.closeReaderLocked()
			return false
		}
		specs = append(specs, s)
		level++
	}
	// restore cursor to level 0 after probing for further subimages
	r.SeekSubimage(0)
	tf.curSub = 0
	tf.specs = specs

	tf.parseMetadata(specs[0], r)
	return true
}

func (tf *TextureFile) parseMetadata(spec0 imagereader.Spec, r imagereader.Reader) {
	tf.texFormat = FormatPlain
	if attr, ok := spec0.Attributes["textureformat"]; ok && attr.Type == imagereader.AttrString {
		for i := TexFormat(0); i < formatCount; i++ {
			if formatNames[i] == attr.StringVal {
				tf.texFormat = i
				break
			}
		}
	}

	if attr, ok := spec0.Attributes["wrapmodes"]; ok && attr.Type == imagereader.AttrString {
		tf.swrap, tf.twrap = parseWrapmodes(attr.StringVal)
	}

	tf.yUp = false
	if tf.texFormat == FormatCubeFaceEnv {
		if r.FormatName() == "openexr" {
			tf.yUp = true
		}
		w := maxInt(spec0.FullWidth, spec0.TileWidth)
		h := maxInt(spec0.FullHeight, spec0.TileHeight)
		switch {
		case spec0.Width == 3*w && spec0.Height == 2*h:
			tf.cubeLayout = CubeThreeByTwo
		case spec0.Width == w && spec0.Height == 6*h:
			tf.cubeLayout = CubeOneBySix
		default:
			tf.cubeLayout = CubeUnknown
		}
	}

	if attr, ok := spec0.Attributes["worldtocamera"]; ok && attr.Type == imagereader.AttrMatrix {
		tf.worldtocameraRaw = mathutil.Mat4(attr.MatrixVal)
		tf.mLocal = tf.worldtocameraRaw
		tf.hasMLocal = true
	}
	if attr, ok := spec0.Attributes["worldtoscreen"]; ok && attr.Type == imagereader.AttrMatrix {
		tf.worldtoscreenRaw = mathutil.Mat4(attr.MatrixVal)
		tf.mProj = tf.worldtoscreenRaw
		tf.hasMProj = true
	}
}

// ComposeMatrices recomputes the local/projection matrices as the
// system's common-to-world matrix composed against this file's declared
// worldtocamera/worldtoscreen attributes (supplemented feature, §4 of
// SPEC_FULL, grounded on original_source/texfile.cpp's use of
// get_commontoworld). It always composes from the raw declared
// attributes, not from a prior composition, so calling it repeatedly
// (once per batch/query) is idempotent rather than accumulating
// commonToWorld on every call.
func (tf *TextureFile) ComposeMatrices(commonToWorld mathutil.Mat4) {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	if tf.hasMLocal {
		tf.mLocal = mathutil.Mat4Mul(commonToWorld, tf.worldtocameraRaw)
	}
	if tf.hasMProj {
		tf.mProj = mathutil.Mat4Mul(commonToWorld, tf.worldtoscreenRaw)
	}
}

// ReadTile ensures the file is open, seeks to level if the reader isn't
// already positioned there, and reads the tile-aligned (x, y, z) tile
// converted to float32 into out. It tolerates being called on a file
// that release() previously closed (spec §4.A).
func (tf *TextureFile) ReadTile(level, x, y, z int, out []float32) error {
	tf.mu.Lock()
	defer tf.mu.Unlock()

	if !tf.openLocked() {
		return fmt.Errorf("texturefile: %s is broken", tf.filename)
	}
	tf.useLocked()

	if tf.curSub != level {
		if _, err := tf.reader.SeekSubimage(level); err != nil {
			return fmt.Errorf("texturefile: seek level %d of %s: %w", level, tf.filename, err)
		}
		tf.curSub = level
	}
	if err := tf.reader.ReadTile(x, y, z, out); err != nil {
		return fmt.Errorf("texturefile: read tile (%d,%d,%d)@%d of %s: %w", x, y, z, level, tf.filename, err)
	}
	return nil
}

// Release is the two-phase closer the registry's sweep drives: a first
// pass clears the used bit and returns (a grace period), a second pass
// closes the reader and reports the release to the open-file counter
// (spec §4.A, §9 "Second-chance sweep").
func (tf *TextureFile) Release() {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	if tf.used {
		tf.used = false
		return
	}
	tf.closeReaderLocked()
}

// closeReaderLocked closes the underlying reader, if any, and brings
// open/counter state back in line with it being closed. Called both by
// Release's second phase and by openLocked when a newly-discovered
// subimage disagrees with level 0 and the file must become broken
// without leaving broken ⇒ open = false violated (spec §3).
func (tf *TextureFile) closeReaderLocked() {
	if !tf.open {
		return
	}
	if tf.reader != nil {
		tf.reader.Close()
		tf.reader = nil
	}
	tf.open = false
	if tf.counter != nil {
		tf.counter.DecrOpenFiles()
	}
}

// Use marks the file as recently accessed, for the registry's CLOCK sweep.
func (tf *TextureFile) Use() {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	tf.useLocked()
}

func (tf *TextureFile) useLocked() { tf.used = true }

func (tf *TextureFile) Filename() string { return tf.filename }

func (tf *TextureFile) Broken() bool {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return tf.broken
}

func (tf *TextureFile) Opened() bool {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return tf.open
}

// Spec returns the spec of the given MIP level, or the zero value if
// level is out of range or the file has never opened successfully.
func (tf *TextureFile) Spec(level int) imagereader.Spec {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	if level < 0 || level >= len(tf.specs) {
		return imagereader.Spec{}
	}
	return tf.specs[level]
}

func (tf *TextureFile) NumLevels() int {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return len(tf.specs)
}

func (tf *TextureFile) TextureFormat() TexFormat {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return tf.texFormat
}

func (tf *TextureFile) SWrap() Wrap {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return tf.swrap
}

func (tf *TextureFile) TWrap() Wrap {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return tf.twrap
}

func (tf *TextureFile) CubeLayout() CubeLayout {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return tf.cubeLayout
}

func (tf *TextureFile) YUp() bool {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return tf.yUp
}

// LocalMatrix and ProjMatrix return the composed worldtocamera/
// worldtoscreen matrices (see ComposeMatrices) and whether the file
// declared one.
func (tf *TextureFile) LocalMatrix() (mathutil.Mat4, bool) {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return tf.mLocal, tf.hasMLocal
}

func (tf *TextureFile) ProjMatrix() (mathutil.Mat4, bool) {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return tf.mProj, tf.hasMProj
}

// Attribute looks up an arbitrary metadata attribute from the first MIP
// level's spec, for gettextureinfo's passthrough path.
func (tf *TextureFile) Attribute(name string) (imagereader.Attribute, bool) {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	if len(tf.specs) == 0 {
		return imagereader.Attribute{}, false
	}
	a, ok := tf.specs[0].Attributes[name]
	return a, ok
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
