package background

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

func TestFitWithin(t *testing.T) {
	cases := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{1920, 1080, 1080, 1080, 607},
		{1080, 1920, 1080, 607, 1080},
		{800, 600, 1080, 800, 600},
		{4000, 4000, 1000, 1000, 1000},
		{500, 300, 0, 500, 300},
	}
	for _, c := range cases {
		w, h := FitWithin(c.w, c.h, c.max)
		assert.Equal(t, c.wantW, w, "%dx%d", c.w, c.h)
		assert.Equal(t, c.wantH, h, "%dx%d", c.w, c.h)
	}
}

func TestLoad_ResizesLargeImage(t *testing.T) {
	img, err := NewLoader().Load(context.Background(), encodePNG(t, 400, 200), 100)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 50), img.Bounds())

	r, g, b, _ := img.At(50, 25).RGBA()
	assert.InDelta(t, 200, r>>8, 2)
	assert.InDelta(t, 100, g>>8, 2)
	assert.InDelta(t, 50, b>>8, 2)
}

func TestLoad_KeepsSmallImage(t *testing.T) {
	img, err := NewLoader().Load(context.Background(), encodePNG(t, 40, 30), 1080)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())
}

func TestLoad_JPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 16, 8)), nil))
	img, err := NewLoader().Load(context.Background(), &buf, 8)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 4), img.Bounds())
}

func TestLoad_Garbage(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), strings.NewReader("not an image"), 100)
	assert.Error(t, err)
}

func TestLoad_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader().Load(ctx, encodePNG(t, 4, 4), 100)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad_RejectsOversizedBeforeDecoding(t *testing.T) {
	// A flat gray image compresses to a few KB whatever its size.
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2000, 1500))))

	_, err := NewLoader(WithMaxPixels(1_000_000)).Load(context.Background(), &buf, 1080)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.ErrorContains(t, err, "2000x1500")
}

func TestLoad_AtPixelLimit(t *testing.T) {
	img, err := NewLoader(WithMaxPixels(40*30)).Load(context.Background(), encodePNG(t, 40, 30), 1080)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())
}
