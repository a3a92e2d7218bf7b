// Package imagecrop cuts a card out of a photo using a rectangle given in
// percentages of the source image, the unit the upload form works in.
package imagecrop

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"
)

var (
	ErrInvalidRect       = errors.New("crop rectangle is empty or out of range")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTooManyPixels     = errors.New("image dimensions exceed the pixel limit")
)

const (
	// JPEGQuality is used when re-encoding jpeg crops.
	JPEGQuality = 90
	// MaxPixels bounds width*height of a decoded image, about 40 megapixels.
	MaxPixels = 40_000_000
)

// Rect is a crop area in percent (0..100) of the source width and height.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Validate rejects zero-area rectangles and values outside 0..100.
func (r Rect) Validate() error {
	for _, v := range []float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || v < 0 || v > 100 {
			return ErrInvalidRect
		}
	}
	if r.Width <= 0 || r.Height <= 0 || r.X >= 100 || r.Y >= 100 {
		return ErrInvalidRect
	}
	return nil
}

// ToPixels converts r to pixel coordinates inside bounds. Edges running past
// the image are clamped.
func (r Rect) ToPixels(bounds image.Rectangle) (image.Rectangle, error) {
	if err := r.Validate(); err != nil {
		return image.Rectangle{}, err
	}
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	x0 := bounds.Min.X + int(math.Round(r.X*w/100))
	y0 := bounds.Min.Y + int(math.Round(r.Y*h/100))
	x1 := bounds.Min.X + int(math.Round(math.Min(r.X+r.Width, 100)*w/100))
	y1 := bounds.Min.Y + int(math.Round(math.Min(r.Y+r.Height, 100)*h/100))
	px := image.Rect(x0, y0, x1, y1).Intersect(bounds)
	if px.Empty() {
		return image.Rectangle{}, ErrInvalidRect
	}
	return px, nil
}

// Apply returns the cropped copy of img.
func Apply(img image.Image, r Rect) (image.Image, error) {
	px, err := r.ToPixels(img.Bounds())
	if err != nil {
		return nil, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, px.Dx(), px.Dy()))
	draw.Draw(dst, dst.Bounds(), img, px.Min, draw.Src)
	return dst, nil
}

// Decode reads a jpeg or png image and reports its format name. The header
// is checked against MaxPixels before any pixel buffer is allocated.
func Decode(r io.Reader) (image.Image, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", decodeErr(err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", decodeErr(err)
	}
	return img, format, nil
}

func decodeErr(err error) error {
	if errors.Is(err, image.ErrFormat) {
		return ErrUnsupportedFormat
	}
	return fmt.Errorf("decode image: %w", err)
}

// Encode writes img in the given format.
func Encode(w io.Writer, img image.Image, format string) error {
	switch format {
	case "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	case "png":
		return png.Encode(w, img)
	default:
		return ErrUnsupportedFormat
	}
}

// Crop decodes src, applies r and re-encodes in the source format. It
// returns the encoded bytes and the matching content type.
func Crop(src io.Reader, r Rect) ([]byte, string, error) {
	img, format, err := Decode(src)
	if err != nil {
		return nil, "", err
	}
	out, err := Apply(img, r)
	if err != nil {
		return nil, "", err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, out, format); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "image/" + format, nil
}
