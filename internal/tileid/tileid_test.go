package tileid

import (
	"fmt"
	"testing"

	"texturesys/internal/imagereader"
	"texturesys/internal/imagereader/synth"
	"texturesys/internal/texturefile"
)

// failReader opens successfully but always fails ReadTile, so tests can
// exercise Load's invalid-tile-on-I/O-error path without it being
// confused with the alignment precondition.
type failReader struct {
	spec imagereader.Spec
}

func init() {
	imagereader.Register(".failread", func(filename, searchPath string) (imagereader.Reader, error) {
		return &failReader{spec: imagereader.Spec{
			Width: 2, Height: 2, TileWidth: 2, TileHeight: 2, Channels: 1,
		}}, nil
	})
}

func (r *failReader) Open(filename string) (imagereader.Spec, error)  { return r.spec, nil }
func (r *failReader) SeekSubimage(index int) (imagereader.Spec, error) {
	if index != 0 {
		return imagereader.Spec{}, fmt.Errorf("failread: no such subimage")
	}
	return r.spec, nil
}
func (r *failReader) CurrentSubimage() int { return 0 }
func (r *failReader) FormatName() string   { return "failread" }
func (r *failReader) Close() error         { return nil }
func (r *failReader) ReadTile(x, y, z int, out []float32) error {
	return fmt.Errorf("failread: simulated I/O failure")
}

func TestAlignedRejectsOffGridOrigin(t *testing.T) {
	synth.Define("aligned.synth", synth.Options{
		Width: 4, Height: 4, TileWidth: 2, TileHeight: 2, Channels: 1, Levels: 1,
	})
	tf := texturefile.New("aligned.synth", "", nil)
	id := TileID{File: tf, Level: 0, X: 1, Y: 0}
	if id.Aligned() {
		t.Errorf("X=1 with tile width 2 should not be aligned")
	}
	id2 := TileID{File: tf, Level: 0, X: 2, Y: 2}
	if !id2.Aligned() {
		t.Errorf("X=2,Y=2 should be aligned to tile size 2")
	}
}

func TestLoadPanicsOnMisalignedID(t *testing.T) {
	synth.Define("misaligned.synth", synth.Options{
		Width: 4, Height: 4, TileWidth: 2, TileHeight: 2, Channels: 1, Levels: 1,
	})
	tf := texturefile.New("misaligned.synth", "", nil)
	defer func() {
		if recover() == nil {
			t.Errorf("Load should panic on a misaligned TileID")
		}
	}()
	Load(TileID{File: tf, Level: 0, X: 1, Y: 1})
}

func TestLoadMarksInvalidOnIOFailure(t *testing.T) {
	tf := texturefile.New("whatever.failread", "", nil)
	if tf.Broken() {
		t.Fatalf("failReader should open successfully")
	}

	tile := Load(TileID{File: tf, Level: 0, X: 0, Y: 0})
	if tile.Valid {
		t.Errorf("a ReadTile error should mark the tile invalid, not panic or propagate")
	}
}

func TestByteSizeAndAt(t *testing.T) {
	synth.Define("bytesize.synth", synth.Options{
		Width: 2, Height: 2, TileWidth: 2, TileHeight: 2, Channels: 3, Levels: 1,
		Pattern: "constant", Value: 0.75,
	})
	tf := texturefile.New("bytesize.synth", "", nil)
	tile := Load(TileID{File: tf, Level: 0, X: 0, Y: 0})
	if !tile.Valid {
		t.Fatalf("expected a valid tile")
	}
	if tile.ByteSize() != 2*2*3*4 {
		t.Errorf("ByteSize() = %d, want %d", tile.ByteSize(), 2*2*3*4)
	}
	texel := tile.At(1, 1, 3)
	if len(texel) != 3 || texel[0] != 0.75 {
		t.Errorf("At(1,1,3) = %v, want [0.75 0.75 0.75]", texel)
	}
}
