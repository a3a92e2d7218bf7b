package imagecrop

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPixels(t *testing.T) {
	bounds := image.Rect(0, 0, 200, 100)

	px, err := Rect{X: 10, Y: 20, Width: 50, Height: 50}.ToPixels(bounds)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(20, 20, 120, 70), px)

	px, err = Rect{X: 80, Y: 80, Width: 50, Height: 50}.ToPixels(bounds)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(160, 80, 200, 100), px, "clamped to the image")

	for _, bad := range []Rect{
		{X: 0, Y: 0, Width: 0, Height: 10},
		{X: -1, Y: 0, Width: 10, Height: 10},
		{X: 0, Y: 0, Width: 101, Height: 10},
		{X: 100, Y: 0, Width: 10, Height: 10},
	} {
		_, err := bad.ToPixels(bounds)
		assert.ErrorIs(t, err, ErrInvalidRect, "%+v", bad)
	}
}

func TestCropKeepsFormat(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for x := 5; x < 10; x++ {
		for y := 0; y < 10; y++ {
			src.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	out, contentType, err := Crop(&buf, Rect{X: 50, Y: 0, Width: 50, Height: 100})
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)

	img, format, err := Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 5, img.Bounds().Dx())
	assert.Equal(t, 10, img.Bounds().Dy())
	r, _, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, _, err := Decode(bytes.NewReader([]byte("not an image")))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

// hugePNG returns a valid 1x1 png whose header claims width x height.
func hugePNG(t *testing.T, width, height uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	data := buf.Bytes()
	require.Equal(t, "IHDR", string(data[12:16]))
	binary.BigEndian.PutUint32(data[16:20], width)
	binary.BigEndian.PutUint32(data[20:24], height)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecodeRejectsHugeDimensions(t *testing.T) {
	_, _, err := Decode(bytes.NewReader(hugePNG(t, 16000, 16000)))
	assert.ErrorIs(t, err, ErrTooManyPixels)

	_, _, err = Crop(bytes.NewReader(hugePNG(t, 16000, 16000)), Rect{Width: 10, Height: 10})
	assert.ErrorIs(t, err, ErrTooManyPixels)
}
