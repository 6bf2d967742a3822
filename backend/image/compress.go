package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"

	"github.com/apex/log"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
)

const (
	MaxDimension = 1600
	Quality      = 85
)

// MaxPixels bounds the decoded size of an image Normalize will touch.
var MaxPixels = 40_000_000

var ErrTooLarge = errors.New("image dimensions too large")

// Photo is an uploaded image after normalisation.
type Photo struct {
	Data        []byte
	ContentType string
	Ext         string
}

// Orientation reads the EXIF orientation tag, defaulting to 1.
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// Orient rewrites img so that it displays upright for the given EXIF orientation.
func Orient(img image.Image, orientation int) image.Image {
	if orientation <= 1 || orientation > 8 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	// Orientations 5-8 swap width and height.
	dw, dh := w, h
	if orientation >= 5 {
		dw, dh = h, w
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch orientation {
			case 2:
				dx, dy = w-1-x, y
			case 3:
				dx, dy = w-1-x, h-1-y
			case 4:
				dx, dy = x, h-1-y
			case 5:
				dx, dy = y, x
			case 6:
				dx, dy = h-1-y, x
			case 7:
				dx, dy = h-1-y, w-1-x
			case 8:
				dx, dy = y, w-1-x
			}
			dst.Set(dx, dy, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

// fit returns the size of a w x h image scaled down to fit within max.
func fit(w, h, max int) (int, int) {
	if w <= max && h <= max {
		return w, h
	}
	if w >= h {
		nh := h * max / w
		if nh < 1 {
			nh = 1
		}
		return max, nh
	}
	nw := w * max / h
	if nw < 1 {
		nw = 1
	}
	return nw, max
}

// Normalize re-encodes a JPEG or PNG upright, within MaxDimension, as JPEG.
// Images already upright and small enough are returned unchanged, as are
// formats it does not handle.
func Normalize(data []byte, contentType, ext string) (*Photo, error) {
	orig := &Photo{Data: data, ContentType: contentType, Ext: ext}
	if contentType != "image/jpeg" && contentType != "image/png" {
		return orig, nil
	}

	orientation := 1
	if contentType == "image/jpeg" {
		orientation = Orientation(data)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxPixels/cfg.Height {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	img = Orient(img, orientation)

	b := img.Bounds()
	w, h := fit(b.Dx(), b.Dy(), MaxDimension)
	if orientation == 1 && w == b.Dx() && h == b.Dy() {
		return orig, nil
	}

	// PNG transparency flattens onto white rather than black.
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	log.Infof("Image normalised: %d bytes -> %d bytes (%dx%d -> %dx%d, orientation %d)",
		len(data), buf.Len(), b.Dx(), b.Dy(), w, h, orientation)
	return &Photo{Data: buf.Bytes(), ContentType: "image/jpeg", Ext: ".jpg"}, nil
}
