package image

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalizeDownscalesLargePNG(t *testing.T) {
	data := encodePNG(t, 3200, 800)

	p, err := Normalize(data, "image/png", ".png")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", p.ContentType)
	assert.Equal(t, ".jpg", p.Ext)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(p.Data))
	require.NoError(t, err)
	assert.Equal(t, 1600, cfg.Width)
	assert.Equal(t, 400, cfg.Height)
}

func TestNormalizeKeepsSmallImage(t *testing.T) {
	data := encodePNG(t, 40, 30)
	p, err := Normalize(data, "image/png", ".png")
	require.NoError(t, err)
	assert.Equal(t, data, p.Data)
	assert.Equal(t, ".png", p.Ext)
}

func TestNormalizePassesThroughOtherFormats(t *testing.T) {
	p, err := Normalize([]byte("GIF89a..."), "image/gif", ".gif")
	require.NoError(t, err)
	assert.Equal(t, "image/gif", p.ContentType)
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	_, err := Normalize([]byte("not an image"), "image/jpeg", ".jpg")
	assert.Error(t, err)
}

func TestOrientationWithoutExif(t *testing.T) {
	assert.Equal(t, 1, Orientation(encodePNG(t, 2, 2)))
}

func TestOrient(t *testing.T) {
	// 2x1 image: red then blue.
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	src.Set(0, 0, red)
	src.Set(1, 0, blue)

	assert.Equal(t, src, Orient(src, 1))

	mirrored := Orient(src, 2)
	assert.Equal(t, blue, mirrored.At(0, 0))

	cw := Orient(src, 6)
	assert.Equal(t, image.Rect(0, 0, 1, 2), cw.Bounds())
	assert.Equal(t, red, cw.At(0, 0))
	assert.Equal(t, blue, cw.At(0, 1))

	ccw := Orient(src, 8)
	assert.Equal(t, blue, ccw.At(0, 0))
	assert.Equal(t, red, ccw.At(0, 1))
}

func TestFit(t *testing.T) {
	w, h := fit(1000, 500, 1600)
	assert.Equal(t, [2]int{1000, 500}, [2]int{w, h})
	w, h = fit(800, 3200, 1600)
	assert.Equal(t, [2]int{400, 1600}, [2]int{w, h})
	w, h = fit(5000, 1, 1600)
	assert.Equal(t, [2]int{1600, 1}, [2]int{w, h})
}

func TestNormalizeRefusesOversizedImage(t *testing.T) {
	defer func(v int) { MaxPixels = v }(MaxPixels)
	MaxPixels = 100 * 100

	_, err := Normalize(encodePNG(t, 200, 100), "image/png", ".png")
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = Normalize(encodePNG(t, 100, 100), "image/png", ".png")
	assert.NoError(t, err)
}
