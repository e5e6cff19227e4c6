// Package plain is an image reader for ordinary, single-subimage Plain
// Texture files (photos, hand-authored textures with no MIP pyramid
// baked in): JPEG/PNG/GIF via the standard library, TIFF/BMP via
// golang.org/x/image, and legacy TGA via github.com/ftrvxmtrx/tga,
// exactly the decoder set the teacher registers in its texture loader.
// Since these formats carry no tile/MIP structure of their own, the
// whole decoded image is treated as level 0's single tile.
package plain

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	"golang.org/x/text/encoding/charmap"

	_ "github.com/ftrvxmtrx/tga"

	"texturesys/internal/imagereader"
)

func init() {
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".tif", ".tiff", ".bmp", ".tga"} {
		imagereader.Register(ext, open)
	}
	// x/image/bmp is only pulled in for its Decode registration side
	// effect through image.RegisterFormat; reference the package so a
	// tool that prunes unused imports can't drop it.
	_ = bmp.Decode
}

func open(filename, searchPath string) (imagereader.Reader, error) {
	path, err := resolve(filename, searchPath)
	if err != nil {
		return nil, err
	}
	return &reader{path: path}, nil
}

// resolve finds filename either as given or under searchPath (colon- or
// semicolon-separated directories), matching the "search path" passed
// to ImageInput::create in the collaborator interface (spec §6).
func resolve(filename, searchPath string) (string, error) {
	if _, err := os.Stat(filename); err == nil {
		return filename, nil
	}
	sep := ":"
	if strings.Contains(searchPath, ";") {
		sep = ";"
	}
	for _, dir := range strings.Split(searchPath, sep) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("plain: %s not found (search path %q)", filename, searchPath)
}

type reader struct {
	path    string
	img     *image.NRGBA
	format  string
	spec    imagereader.Spec
}

func (r *reader) Open(filename string) (imagereader.Spec, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return imagereader.Spec{}, fmt.Errorf("plain: open %s: %w", r.path, err)
	}
	defer f.Close()

	src, format, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return imagereader.Spec{}, fmt.Errorf("plain: decode %s: %w", r.path, err)
	}
	r.format = format
	r.img = toNRGBA(src)

	b := r.img.Bounds()
	r.spec = imagereader.Spec{
		Width: b.Dx(), Height: b.Dy(), Depth: 1,
		TileWidth: b.Dx(), TileHeight: b.Dy(), TileDepth: 1,
		FullWidth: b.Dx(), FullHeight: b.Dy(),
		Channels:   4,
		Attributes: r.readSidecarAttrs(),
	}
	return r.spec, nil
}

func (r *reader) SeekSubimage(index int) (imagereader.Spec, error) {
	if index != 0 {
		return imagereader.Spec{}, fmt.Errorf("plain: %s has only subimage 0", r.path)
	}
	return r.spec, nil
}

func (r *reader) CurrentSubimage() int { return 0 }

func (r *reader) FormatName() string { return r.format }

func (r *reader) Close() error {
	r.img = nil
	return nil
}

func (r *reader) ReadTile(x, y, z int, out []float32) error {
	if r.img == nil {
		return fmt.Errorf("plain: %s not open", r.path)
	}
	b := r.img.Bounds()
	idx := 0
	for ty := 0; ty < r.spec.TileHeight; ty++ {
		for tx := 0; tx < r.spec.TileWidth; tx++ {
			px, py := b.Min.X+x+tx, b.Min.Y+y+ty
			i := r.img.PixOffset(px, py)
			out[idx+0] = float32(r.img.Pix[i+0]) / 255
			out[idx+1] = float32(r.img.Pix[i+1]) / 255
			out[idx+2] = float32(r.img.Pix[i+2]) / 255
			out[idx+3] = float32(r.img.Pix[i+3]) / 255
			idx += 4
		}
	}
	return nil
}

func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, src.At(x, y))
		}
	}
	return dst
}

// readSidecarAttrs looks for "<file>.meta", a legacy "key=value" per
// line format some Plain Texture exporters emit in Latin-1, and decodes
// it into attributes consumed by TextureFile.open (textureformat,
// wrapmodes) and by gettextureinfo's passthrough path.
func (r *reader) readSidecarAttrs() map[string]imagereader.Attribute {
	raw, err := os.ReadFile(r.path + ".meta")
	if err != nil {
		return nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return nil
	}
	attrs := map[string]imagereader.Attribute{}
	for _, line := range bytes.Split(decoded, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		kv := bytes.SplitN(line, []byte("="), 2)
		if len(kv) != 2 {
			continue
		}
		key := string(bytes.TrimSpace(kv[0]))
		val := string(bytes.TrimSpace(kv[1]))
		attrs[key] = imagereader.Attribute{Type: imagereader.AttrString, StringVal: val}
	}
	return attrs
}
