package texturefile

import (
	"testing"

	"texturesys/internal/imagereader"
	"texturesys/internal/imagereader/synth"
	"texturesys/internal/mathutil"
)

func TestNewMissingFileIsBroken(t *testing.T) {
	tf := New("does-not-exist.synth", "", nil)
	if !tf.Broken() {
		t.Errorf("expected missing file to be Broken")
	}
	if tf.Opened() {
		t.Errorf("broken file should not report Opened")
	}
}

func TestOpenReadsFormatAndWrap(t *testing.T) {
	synth.Define("plain2x2.synth", synth.Options{
		Width: 2, Height: 2, TileWidth: 2, TileHeight: 2, Channels: 1, Levels: 1,
		Pattern:       "constant",
		Value:         0.5,
		TextureFormat: "Plain Texture",
		WrapModes:     "periodic,clamp",
	})

	tf := New("plain2x2.synth", "", nil)
	if tf.Broken() {
		t.Fatalf("expected successful open")
	}
	if tf.TextureFormat() != FormatPlain {
		t.Errorf("TextureFormat() = %v, want FormatPlain", tf.TextureFormat())
	}
	if tf.SWrap() != WrapPeriodic {
		t.Errorf("SWrap() = %v, want WrapPeriodic", tf.SWrap())
	}
	if tf.TWrap() != WrapClamp {
		t.Errorf("TWrap() = %v, want WrapClamp", tf.TWrap())
	}
	if tf.NumLevels() != 1 {
		t.Errorf("NumLevels() = %d, want 1", tf.NumLevels())
	}
}

func TestReleaseTwoPhase(t *testing.T) {
	synth.Define("release.synth", synth.Options{
		Width: 2, Height: 2, TileWidth: 2, TileHeight: 2, Channels: 1, Levels: 1,
	})
	tf := New("release.synth", "", nil)
	if !tf.Opened() {
		t.Fatalf("expected file to be open after New")
	}

	// First Release clears the used bit but keeps the reader open.
	tf.Release()
	if !tf.Opened() {
		t.Errorf("first Release() should only clear the used bit, not close")
	}

	// Second Release with no intervening Use actually closes.
	tf.Release()
	if tf.Opened() {
		t.Errorf("second Release() should close the reader")
	}
}

func TestReadTileReopensAfterRelease(t *testing.T) {
	synth.Define("reopen.synth", synth.Options{
		Width: 2, Height: 2, TileWidth: 2, TileHeight: 2, Channels: 1, Levels: 1,
		Pattern: "constant", Value: 0.25,
	})
	tf := New("reopen.synth", "", nil)
	tf.Release()
	tf.Release() // force closed

	out := make([]float32, 4)
	if err := tf.ReadTile(0, 0, 0, 0, out); err != nil {
		t.Fatalf("ReadTile after release: %v", err)
	}
	for _, v := range out {
		if v != 0.25 {
			t.Errorf("texel = %v, want 0.25", v)
		}
	}
}

func TestDecodeWrapmodeUnknownIsDefault(t *testing.T) {
	if decodeWrapmode("bogus") != WrapDefault {
		t.Errorf("unknown wrapmode should decode to WrapDefault")
	}
}

func TestCubeLayoutAndYUpDetection(t *testing.T) {
	synth.Define("cube3x2.synth", synth.Options{
		Width: 6, Height: 4, TileWidth: 2, TileHeight: 2, Channels: 1, Levels: 1,
		Pattern:       "constant",
		TextureFormat: "CubeFace Environment",
		FormatName:    "openexr",
		FullWidth:     2, FullHeight: 2,
	})
	tf := New("cube3x2.synth", "", nil)
	if tf.Broken() {
		t.Fatalf("expected successful open")
	}
	if tf.CubeLayout() != CubeThreeByTwo {
		t.Errorf("CubeLayout() = %v, want CubeThreeByTwo", tf.CubeLayout())
	}
	if tf.CubeLayout().Name() != "3x2" {
		t.Errorf("CubeLayout().Name() = %q, want %q", tf.CubeLayout().Name(), "3x2")
	}
	if !tf.YUp() {
		t.Errorf("YUp() = false, want true for an openexr-backed cube environment")
	}
}

func TestCubeLayoutOneBySix(t *testing.T) {
	synth.Define("cube1x6.synth", synth.Options{
		Width: 2, Height: 12, TileWidth: 2, TileHeight: 2, Channels: 1, Levels: 1,
		Pattern:       "constant",
		TextureFormat: "CubeFace Environment",
		FullWidth:     2, FullHeight: 2,
	})
	tf := New("cube1x6.synth", "", nil)
	if tf.CubeLayout() != CubeOneBySix {
		t.Errorf("CubeLayout() = %v, want CubeOneBySix", tf.CubeLayout())
	}
	if tf.YUp() {
		t.Errorf("YUp() = true, want false when the reader isn't openexr")
	}
}

func TestComposeMatricesIsIdempotent(t *testing.T) {
	raw := mathutil.Mat4{
		1, 0, 0, 5,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	synth.Define("matrixed.synth", synth.Options{
		Width: 2, Height: 2, TileWidth: 2, TileHeight: 2, Channels: 1, Levels: 1,
		Pattern: "constant",
		ExtraAttrs: map[string]imagereader.Attribute{
			"worldtocamera": {Type: imagereader.AttrMatrix, MatrixVal: [16]float64(raw)},
		},
	})
	tf := New("matrixed.synth", "", nil)

	c2w := mathutil.Mat4{
		2, 0, 0, 0,
		0, 2, 0, 0,
		0, 0, 2, 0,
		0, 0, 0, 1,
	}
	want := mathutil.Mat4Mul(c2w, raw)

	tf.ComposeMatrices(c2w)
	got, has := tf.LocalMatrix()
	if !has {
		t.Fatalf("LocalMatrix() reported no declared worldtocamera attribute")
	}
	if got != want {
		t.Errorf("LocalMatrix() after one ComposeMatrices call = %v, want %v", got, want)
	}

	// A second call with the same commonToWorld must not accumulate on
	// top of the previous composition.
	tf.ComposeMatrices(c2w)
	got2, _ := tf.LocalMatrix()
	if got2 != want {
		t.Errorf("LocalMatrix() after two ComposeMatrices calls = %v, want unchanged %v (composition must be idempotent)", got2, want)
	}
}
