package scene

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"deferred-engine/internal/gpu"
)

// Texture holds CPU-side pixel data for a 2D texture.
type Texture struct {
	Name   string
	Width  int
	Height int
	// Pixels in RGBA8 format, rows bottom-to-top as the device expects.
	Pixels []byte

	handle gpu.Texture
}

// LoadTexture reads a PNG, JPEG, BMP, TIFF or WebP file and converts it to
// RGBA8.
func LoadTexture(path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open texture %q: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode texture %q: %w", path, err)
	}
	tex := FromImage(img)
	tex.Name = path
	return tex, nil
}

// FromImage converts any image to an RGBA8 texture, flipping rows so the
// first row in memory is the bottom of the picture.
func FromImage(img image.Image) *Texture {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	pixels := make([]byte, 0, w*h*4)
	for y := h - 1; y >= 0; y-- {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		pixels = append(pixels, row...)
	}
	return &Texture{Width: w, Height: h, Pixels: pixels}
}

// NewSolidTexture creates a 1x1 texture with the given RGBA color values (0–255).
func NewSolidTexture(name string, r, g, b, a uint8) *Texture {
	return &Texture{
		Name:   name,
		Width:  1,
		Height: 1,
		Pixels: []byte{r, g, b, a},
	}
}

// Upload creates the device texture on first use and returns its handle.
func (t *Texture) Upload(dev gpu.Device) (gpu.Texture, error) {
	if t.handle != 0 {
		return t.handle, nil
	}
	handle, err := dev.CreateTexture(gpu.TextureDesc{
		Width:  t.Width,
		Height: t.Height,
		Format: gpu.FormatRGBA8,
		Pixels: t.Pixels,
		Linear: true,
	})
	if err != nil {
		return 0, fmt.Errorf("upload texture %q: %w", t.Name, err)
	}
	t.handle = handle
	return handle, nil
}

func (t *Texture) Handle() gpu.Texture { return t.handle }

func (t *Texture) Release(dev gpu.Device) {
	if t.handle != 0 {
		dev.DeleteTexture(t.handle)
		t.handle = 0
	}
}
