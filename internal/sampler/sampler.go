// Package sampler implements component E: the public texture() batch
// entry point and gettextureinfo query, backed by the file registry and
// tile cache. Grounded on texture_lookup in
// original_source/texfile.cpp, corrected per spec §4.E/§9 to actually
// perform MIP selection, bilinear/trilinear filtering and wrap instead
// of the source's level-0-only placeholder.
package sampler

import (
	"math"

	"texturesys/internal/imagereader"
	"texturesys/internal/mathutil"
	"texturesys/internal/registry"
	"texturesys/internal/tilecache"
	"texturesys/internal/tileid"
	"texturesys/internal/tlog"
	"texturesys/internal/texturefile"
)

// Wrap re-exports texturefile.Wrap so callers only need to import this package.
type Wrap = texturefile.Wrap

const (
	WrapDefault  = texturefile.WrapDefault
	WrapBlack    = texturefile.WrapBlack
	WrapClamp    = texturefile.WrapClamp
	WrapPeriodic = texturefile.WrapPeriodic
	WrapMirror   = texturefile.WrapMirror
)

// Options carries everything texture() needs per batch plus per-lane
// varying references (spec §4.E). Slices indexed by lane must be
// addressable at least over [first, last].
type Options struct {
	FirstChannel int
	NChannels    int
	SWrap, TWrap Wrap

	SBlur, TBlur   []float32
	SWidth, TWidth []float32
	Bias           []float32
	Fill           []float32
	Alpha          []float32 // nil disables alpha output

	actualChannels int
	alphaEnabled   bool
}

// DefaultOptions fills in the sane per-lane defaults the original
// TextureOptions() default constructor uses (blur 0, width 1, bias 0,
// fill 0), sized for nlanes lanes.
func DefaultOptions(nchannels, nlanes int) *Options {
	ones := make([]float32, nlanes)
	for i := range ones {
		ones[i] = 1
	}
	return &Options{
		NChannels: nchannels,
		SBlur:     make([]float32, nlanes),
		TBlur:     make([]float32, nlanes),
		SWidth:    ones,
		TWidth:    append([]float32(nil), ones...),
		Bias:      make([]float32, nlanes),
		Fill:      make([]float32, nlanes),
	}
}

// System is the public sampling surface (spec §6): create/destroy
// lifecycle, configuration, gettextureinfo, and the texture() batch entry
// point.
type System struct {
	registry *registry.FileRegistry
	cache    *tilecache.TileCache
	log      *tlog.Logger

	commonToWorld mathutil.Mat4
}

// Create constructs a System with the registry/cache default budgets
// (100 open files, 50 MiB tiles), matching TextureSystemImpl::init.
func Create(searchPath string) *System {
	return &System{
		registry:      registry.New(searchPath),
		cache:         tilecache.New(),
		log:           tlog.New(),
		commonToWorld: mathutil.Mat4Identity(),
	}
}

// Destroy releases the system. The core holds no state that needs
// explicit teardown beyond what the garbage collector reclaims once the
// caller drops its reference; Destroy exists to mirror the lifecycle
// pair in spec §6 and is where a future explicit-resource backend would
// hook in.
func (s *System) Destroy() {}

func (s *System) MaxOpenFiles(n int)  { s.registry.MaxOpenFiles(n) }
func (s *System) MaxMemoryMB(mb int)  { s.cache.MaxMemoryMB(mb) }

// SetCommonToWorld sets the matrix composed into each file's declared
// worldtocamera/worldtoscreen attributes (supplemented feature, SPEC_FULL §4).
func (s *System) SetCommonToWorld(m mathutil.Mat4) { s.commonToWorld = m }

func (s *System) GetCommonToWorld() mathutil.Mat4 { return s.commonToWorld }

// GetTextureInfo answers the documented gettextureinfo queries (spec §6).
// It returns false on any mismatch rather than mutating out.
func (s *System) GetTextureInfo(filename, dataname string, out any) bool {
	tf := s.registry.FindOrOpen(filename)
	if tf == nil || tf.Broken() {
		s.log.Printf("gettextureinfo %q: not found or broken", filename)
		return false
	}
	tf.ComposeMatrices(s.commonToWorld)
	spec := tf.Spec(0)

	switch dataname {
	case "resolution":
		dst, ok := out.(*[2]int)
		if !ok {
			return false
		}
		dst[0], dst[1] = spec.Width, spec.Height
		return true
	case "texturetype":
		dst, ok := out.(*string)
		if !ok {
			return false
		}
		*dst = textureTypeName(tf.TextureFormat())
		return true
	case "textureformat":
		dst, ok := out.(*string)
		if !ok {
			return false
		}
		*dst = tf.TextureFormat().Name()
		return true
	case "channels":
		switch dst := out.(type) {
		case *int:
			*dst = spec.Channels
			return true
		case *float64:
			*dst = float64(spec.Channels)
			return true
		}
		return false
	case "cubelayout":
		dst, ok := out.(*string)
		if !ok {
			return false
		}
		*dst = tf.CubeLayout().Name()
		return true
	case "yup":
		dst, ok := out.(*bool)
		if !ok {
			return false
		}
		*dst = tf.YUp()
		return true
	case "worldtocamera":
		dst, ok := out.(*[16]float64)
		if !ok {
			return false
		}
		m, has := tf.LocalMatrix()
		if !has {
			return false
		}
		*dst = [16]float64(m)
		return true
	case "worldtoscreen":
		dst, ok := out.(*[16]float64)
		if !ok {
			return false
		}
		m, has := tf.ProjMatrix()
		if !has {
			return false
		}
		*dst = [16]float64(m)
		return true
	}

	attr, ok := tf.Attribute(dataname)
	if !ok {
		return false
	}
	switch dst := out.(type) {
	case *int:
		if attr.Type != imagereader.AttrInt {
			return false
		}
		*dst = attr.IntVal
		return true
	case *float64:
		if attr.Type == imagereader.AttrFloat {
			*dst = attr.FloatVal
			return true
		}
		if attr.Type == imagereader.AttrInt {
			*dst = float64(attr.IntVal)
			return true
		}
		return false
	case *string:
		if attr.Type != imagereader.AttrString {
			return false
		}
		*dst = attr.StringVal
		return true
	case *[16]float64:
		if attr.Type != imagereader.AttrMatrix {
			return false
		}
		*dst = attr.MatrixVal
		return true
	}
	return false
}

// textureTypeName collapses the declared TexFormat into the coarser
// "texturetype" string (Shadow/Environment variants fold together),
// matching texture_type_name in original_source/texfile.cpp.
func textureTypeName(f texturefile.TexFormat) string {
	switch f {
	case texturefile.FormatShadow, texturefile.FormatCubeFaceShadow, texturefile.FormatVolumeShadow:
		return "Shadow"
	case texturefile.FormatLatLongEnv, texturefile.FormatCubeFaceEnv:
		return "Environment"
	default:
		return f.Name()
	}
}

// Texture is the batch entry point (spec §4.E). runflags, s, t, dsdx,
// dtdx, dsdy, dtdy and result are all addressable over [first, last];
// result holds options.NChannels floats per active lane, laid out
// result[lane*NChannels + channel].
func (s *System) Texture(filename string, opts *Options, runflags []bool, first, last int,
	sArr, tArr, dsdx, dtdx, dsdy, dtdy []float32, result []float32) {

	tf := s.registry.FindOrOpen(filename)
	if tf == nil || tf.Broken() {
		for i := first; i <= last; i++ {
			if !runflags[i] {
				continue
			}
			fill := lanefill(opts, i)
			for c := 0; c < opts.NChannels; c++ {
				result[i*opts.NChannels+c] = fill
			}
			if opts.Alpha != nil {
				opts.Alpha[i] = fill
			}
		}
		return
	}
	tf.ComposeMatrices(s.commonToWorld)

	swrap, twrap := opts.SWrap, opts.TWrap
	if swrap == WrapDefault {
		swrap = tf.SWrap()
	}
	if twrap == WrapDefault {
		twrap = tf.TWrap()
	}
	if swrap == WrapDefault {
		swrap = WrapBlack
	}
	if twrap == WrapDefault {
		twrap = WrapBlack
	}

	spec0 := tf.Spec(0)
	actual := clampInt(spec0.Channels-opts.FirstChannel, 0, opts.NChannels)
	opts.actualChannels = actual

	if actual < opts.NChannels {
		for i := first; i <= last; i++ {
			if !runflags[i] {
				continue
			}
			fill := lanefill(opts, i)
			for c := actual; c < opts.NChannels; c++ {
				result[i*opts.NChannels+c] = fill
			}
		}
	}

	opts.alphaEnabled = opts.Alpha != nil
	if opts.alphaEnabled && opts.FirstChannel+actual >= spec0.Channels {
		for i := first; i <= last; i++ {
			if runflags[i] {
				opts.Alpha[i] = lanefill(opts, i)
			}
		}
		opts.alphaEnabled = false
	}

	if actual < 1 {
		return
	}

	for i := first; i <= last; i++ {
		if !runflags[i] {
			continue
		}
		s.lookup(tf, opts, i, swrap, twrap, sArr, tArr, dsdx, dtdx, dsdy, dtdy,
			result[i*opts.NChannels:(i+1)*opts.NChannels])
	}
}

func lanefill(opts *Options, i int) float32 {
	if opts.Fill == nil {
		return 0
	}
	return opts.Fill[i]
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// lookup is texture_lookup: everything here must be redone per point;
// everything that could be hoisted already was, in Texture above (spec
// §4.E, §9 "Batched dispatch").
func (s *System) lookup(tf *texturefile.TextureFile, opts *Options, i int, swrap, twrap Wrap,
	sArr, tArr, dsdx, dtdx, dsdy, dtdy []float32, result []float32) {

	sblur, tblur := float32(0), float32(0)
	if opts.SBlur != nil {
		sblur = opts.SBlur[i]
	}
	if opts.TBlur != nil {
		tblur = opts.TBlur[i]
	}
	swidth, twidth := float32(1), float32(1)
	if opts.SWidth != nil {
		swidth = opts.SWidth[i]
	}
	if opts.TWidth != nil {
		twidth = opts.TWidth[i]
	}

	var dsdxv, dtdxv, dsdyv, dtdyv float32
	if dsdx != nil {
		dsdxv = dsdx[i]*swidth + sblur
	}
	if dtdx != nil {
		dtdxv = dtdx[i]*twidth + tblur
	}
	if dsdy != nil {
		dsdyv = dsdy[i]*swidth + sblur
	}
	if dtdy != nil {
		dtdyv = dtdy[i]*twidth + tblur
	}

	bias := float32(0)
	if opts.Bias != nil {
		bias = opts.Bias[i]
	}
	fill := lanefill(opts, i)

	sv, tv := sArr[i], tArr[i]

	// Black wrap on an axis whose nominal coordinate already lies
	// outside [0,1) returns fill for the whole lookup, not a partial
	// blend with in-range neighbors (spec §4.E item 2, §8 scenario 5).
	if isBlackOOB(swrap, sv) || isBlackOOB(twrap, tv) {
		for c := 0; c < opts.actualChannels; c++ {
			result[c] = fill
		}
		if opts.alphaEnabled {
			opts.Alpha[i] = fill
		}
		return
	}

	nlevels := tf.NumLevels()
	level, frac := s.selectLevel(tf, dsdxv, dtdxv, dsdyv, dtdyv, bias, nlevels)

	c0, a0 := s.bilinear(tf, level, sv, tv, swrap, twrap, opts, fill)
	if frac > 0 && level+1 < nlevels {
		c1, a1 := s.bilinear(tf, level+1, sv, tv, swrap, twrap, opts, fill)
		for c := range c0 {
			c0[c] = c0[c]*(1-frac) + c1[c]*frac
		}
		a0 = a0*(1-frac) + a1*frac
	}

	copy(result[:opts.actualChannels], c0)
	if opts.alphaEnabled {
		opts.Alpha[i] = a0
	}
}

// selectLevel computes the anisotropic footprint from the 2x2 Jacobian
// of derivatives scaled by the level-0 texture size, and picks the base
// MIP level as floor(log2(len_minor)) + bias, clamped to the available
// range (spec §4.E item 1). It also returns the fractional blend weight
// toward level+1 for trilinear filtering.
func (s *System) selectLevel(tf *texturefile.TextureFile, dsdx, dtdx, dsdy, dtdy, bias float32, nlevels int) (int, float32) {
	if nlevels <= 1 {
		return 0, 0
	}
	spec0 := tf.Spec(0)
	w, h := float64(spec0.Width), float64(spec0.Height)

	a := float64(dsdx) * w
	b := float64(dtdx) * h
	c := float64(dsdy) * w
	d := float64(dtdy) * h

	lenA := math.Hypot(a, b)
	lenB := math.Hypot(c, d)
	lenMinor := math.Min(lenA, lenB)
	if lenMinor < 1e-8 {
		lenMinor = 1e-8
	}

	levelFloat := math.Log2(lenMinor) + float64(bias)
	if levelFloat < 0 {
		levelFloat = 0
	}
	maxLevel := float64(nlevels - 1)
	if levelFloat > maxLevel {
		levelFloat = maxLevel
	}
	level := int(math.Floor(levelFloat))
	frac := levelFloat - float64(level)
	return level, float32(frac)
}

// bilinear performs the 4-tap filtered lookup at one MIP level,
// resolving each contributing texel's tile through the cache (spec
// §4.E items 2, 3, 5).
func (s *System) bilinear(tf *texturefile.TextureFile, level int, sv, tv float32, swrap, twrap Wrap,
	opts *Options, fill float32) ([]float32, float32) {

	spec := tf.Spec(level)
	out := make([]float32, opts.actualChannels)

	sf := float64(sv)*float64(spec.Width) - 0.5
	tf64 := float64(tv)*float64(spec.Height) - 0.5
	si := int(math.Floor(sf))
	ti := int(math.Floor(tf64))
	sfrac := float32(sf - math.Floor(sf))
	tfrac := float32(tf64 - math.Floor(tf64))

	type tap struct {
		si, ti int
		weight float32
	}
	taps := [4]tap{
		{si, ti, (1 - sfrac) * (1 - tfrac)},
		{si + 1, ti, sfrac * (1 - tfrac)},
		{si, ti + 1, (1 - sfrac) * tfrac},
		{si + 1, ti + 1, sfrac * tfrac},
	}

	var alpha float32
	hasAlpha := opts.alphaEnabled

	for _, tp := range taps {
		if tp.weight == 0 {
			continue
		}
		wsi, sok := wrapIndex(swrap, tp.si, spec.Width)
		wti, tok := wrapIndex(twrap, tp.ti, spec.Height)
		if !sok || !tok {
			for c := range out {
				out[c] += tp.weight * fill
			}
			continue
		}

		texel, a := s.fetchTexel(tf, level, spec, wsi, wti, opts, fill)
		for c := range out {
			out[c] += tp.weight * texel[c]
		}
		if hasAlpha {
			alpha += tp.weight * a
		}
	}

	return out, alpha
}

// fetchTexel resolves the tile containing (si, ti) at level through the
// cache and returns the requested channel window plus the alpha channel
// if enabled (spec §4.E items 5, 6).
func (s *System) fetchTexel(tf *texturefile.TextureFile, level int, spec imagereader.Spec, si, ti int,
	opts *Options, fill float32) ([]float32, float32) {

	tw, th := spec.TileWidth, spec.TileHeight
	// si, ti arrive already wrapped into [0, width)/[0, height) by the
	// caller, so plain integer division finds the tile-aligned origin
	// for both power-of-two and arbitrary tile sizes.
	originX := (si / tw) * tw
	originY := (ti / th) * th

	id := tileid.TileID{File: tf, Level: level, X: originX, Y: originY, Z: 0}
	t := s.cache.FindOrLoad(id)

	out := make([]float32, opts.actualChannels)
	if !t.Valid {
		for c := range out {
			out[c] = fill
		}
		return out, 0
	}

	localX, localY := si-originX, ti-originY
	texel := t.At(localX, localY, spec.Channels)
	if texel == nil {
		for c := range out {
			out[c] = fill
		}
		return out, 0
	}
	for c := range out {
		out[c] = texel[opts.FirstChannel+c]
	}
	var alpha float32
	if opts.alphaEnabled {
		alphaIdx := opts.FirstChannel + opts.actualChannels
		if alphaIdx < len(texel) {
			alpha = texel[alphaIdx]
		}
	}
	return out, alpha
}

// isBlackOOB reports whether Black wrap should reject this lane's
// lookup outright because its own (not a tap's) coordinate already
// falls outside [0,1) on this axis.
func isBlackOOB(w Wrap, v float32) bool {
	return w == WrapBlack && (v < 0 || v >= 1)
}

// wrapIndex applies one axis's wrap mode to a texel index, returning
// the wrapped index and whether the tap contributes texture data at all
// (false for Black mode out of range, per spec §4.E item 2).
func wrapIndex(w Wrap, idx, size int) (int, bool) {
	if size <= 0 {
		return 0, false
	}
	switch w {
	case WrapPeriodic:
		m := idx % size
		if m < 0 {
			m += size
		}
		return m, true
	case WrapMirror:
		period := 2 * size
		m := idx % period
		if m < 0 {
			m += period
		}
		if m >= size {
			m = period - 1 - m
		}
		return m, true
	case WrapClamp:
		if idx < 0 {
			idx = 0
		}
		if idx >= size {
			idx = size - 1
		}
		return idx, true
	default: // WrapBlack and any unresolved WrapDefault
		if idx < 0 || idx >= size {
			return 0, false
		}
		return idx, true
	}
}
