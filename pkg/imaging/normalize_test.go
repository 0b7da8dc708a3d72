package imaging_test

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"routedog/pkg/imaging"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFitDimensions(t *testing.T) {
	tests := []struct {
		name      string
		w, h, max int
		wantW     int
		wantH     int
	}{
		{"landscape", 1000, 500, 100, 100, 50},
		{"rounds down", 1000, 333, 100, 100, 33},
		{"rounds up", 1000, 335, 100, 100, 34},
		{"portrait", 600, 1200, 800, 400, 800},
		{"square", 2000, 2000, 800, 800, 800},
		{"no upscale", 640, 480, 800, 640, 480},
		{"exactly max", 800, 10, 800, 800, 10},
		{"thin strip keeps one pixel", 5000, 2, 100, 100, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := imaging.FitDimensions(tt.w, tt.h, tt.max)
			require.Equal(t, tt.wantW, w)
			require.Equal(t, tt.wantH, h)
		})
	}
}

func TestLuma(t *testing.T) {
	require.EqualValues(t, 76, imaging.Luma(255, 0, 0))  // 76.245
	require.EqualValues(t, 150, imaging.Luma(0, 255, 0)) // 149.685
	require.EqualValues(t, 29, imaging.Luma(0, 0, 255))  // 29.07
	require.EqualValues(t, 255, imaging.Luma(255, 255, 255))
	require.EqualValues(t, 0, imaging.Luma(0, 0, 0))
	require.EqualValues(t, 118, imaging.Luma(100, 150, 50)) // 29.9+88.05+5.7
}

func TestGrayscaleKeepsAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 100, G: 150, B: 50, A: 77})
	img.SetNRGBA(1, 0, color.NRGBA{R: 255, G: 0, B: 0, A: 255})

	imaging.Grayscale(img)

	require.Equal(t, color.NRGBA{R: 118, G: 118, B: 118, A: 77}, img.NRGBAAt(0, 0))
	require.Equal(t, color.NRGBA{R: 76, G: 76, B: 76, A: 255}, img.NRGBAAt(1, 0))
}

func TestNormalizeOpaqueImage(t *testing.T) {
	src := solid(1000, 500, color.NRGBA{R: 255, A: 255})

	out, err := imaging.Normalize(bytes.NewReader(encodePNG(t, src)), 100, 0.5)
	require.NoError(t, err)
	require.Equal(t, imaging.MIMEJPEG, out.MIMEType)
	require.Equal(t, 100, out.Width)
	require.Equal(t, 50, out.Height)

	decoded, err := jpeg.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 100, 50), decoded.Bounds())
	_, isGray := decoded.(*image.Gray)
	require.True(t, isGray)

	// JPEG is lossy; a flat red field should land near its luma.
	g := color.GrayModel.Convert(decoded.At(50, 25)).(color.Gray)
	require.InDelta(t, 76, int(g.Y), 3)
}

func TestNormalizeDoesNotUpscale(t *testing.T) {
	src := solid(64, 48, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	out, err := imaging.NormalizeProfile(bytes.NewReader(encodePNG(t, src)), imaging.Readable)
	require.NoError(t, err)
	require.Equal(t, 64, out.Width)
	require.Equal(t, 48, out.Height)
}

func TestNormalizeTranslucentImageUsesPNG(t *testing.T) {
	src := solid(300, 200, color.NRGBA{R: 0, G: 255, B: 0, A: 255})
	src.SetNRGBA(0, 0, color.NRGBA{R: 0, G: 255, B: 0, A: 0})
	for x := 0; x < 300; x++ {
		src.SetNRGBA(x, 199, color.NRGBA{R: 0, G: 255, B: 0, A: 128})
	}

	out, err := imaging.Normalize(bytes.NewReader(encodePNG(t, src)), 1000, 0.7)
	require.NoError(t, err)
	require.Equal(t, imaging.MIMEPNG, out.MIMEType)

	decoded, err := png.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	c := color.NRGBAModel.Convert(decoded.At(10, 10)).(color.NRGBA)
	require.Equal(t, color.NRGBA{R: 150, G: 150, B: 150, A: 255}, c)

	edge := color.NRGBAModel.Convert(decoded.At(10, 199)).(color.NRGBA)
	require.EqualValues(t, 128, edge.A)

	corner := color.NRGBAModel.Convert(decoded.At(0, 0)).(color.NRGBA)
	require.Zero(t, corner.A)
}

func TestNormalizeDecodesBMP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, solid(200, 400, color.NRGBA{R: 200, G: 200, B: 200, A: 255})))

	out, err := imaging.NormalizeProfile(&buf, imaging.Thumbnail)
	require.NoError(t, err)
	require.Equal(t, 50, out.Width)
	require.Equal(t, 100, out.Height)
	require.Equal(t, imaging.MIMEJPEG, out.MIMEType)
}

func TestNormalizeErrors(t *testing.T) {
	_, err := imaging.Normalize(strings.NewReader("definitely not an image"), 100, 0.5)
	require.ErrorIs(t, err, imaging.ErrDecode)

	raw := encodePNG(t, solid(10, 10, color.NRGBA{A: 255}))
	_, err = imaging.Normalize(bytes.NewReader(raw), 0, 0.5)
	require.ErrorIs(t, err, imaging.ErrInvalidDimension)

	_, err = imaging.Normalize(bytes.NewReader(raw), 100, 0)
	require.ErrorIs(t, err, imaging.ErrInvalidQuality)

	_, err = imaging.Normalize(bytes.NewReader(raw), 100, 1.5)
	require.ErrorIs(t, err, imaging.ErrInvalidQuality)
}

// hugePNG returns a tiny PNG whose header claims w x h pixels.
func hugePNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	raw := encodePNG(t, image.NewGray(image.Rect(0, 0, 1, 1)))
	// Signature (8), IHDR length (4), "IHDR" (4), then width and height.
	binary.BigEndian.PutUint32(raw[16:20], w)
	binary.BigEndian.PutUint32(raw[20:24], h)
	binary.BigEndian.PutUint32(raw[29:33], crc32.ChecksumIEEE(raw[12:29]))
	return raw
}

func TestNormalizeRejectsTooManyPixels(t *testing.T) {
	_, err := imaging.Normalize(bytes.NewReader(hugePNG(t, 50000, 50000)), 800, 0.7)
	require.ErrorIs(t, err, imaging.ErrTooLarge)

	_, err = imaging.NormalizeProfile(bytes.NewReader(hugePNG(t, 12000, 12000)), imaging.Readable)
	require.ErrorIs(t, err, imaging.ErrTooLarge)

	raw := encodePNG(t, solid(20, 20, color.NRGBA{R: 9, A: 255}))
	_, err = imaging.NormalizeProfile(bytes.NewReader(raw), imaging.Profile{MaxDimension: 100, Quality: 0.5, MaxPixels: 399})
	require.ErrorIs(t, err, imaging.ErrTooLarge)

	out, err := imaging.NormalizeProfile(bytes.NewReader(raw), imaging.Profile{MaxDimension: 100, Quality: 0.5, MaxPixels: 400})
	require.NoError(t, err)
	require.Equal(t, 20, out.Width)
}

func TestDataURLRoundTrip(t *testing.T) {
	out, err := imaging.NormalizeProfile(bytes.NewReader(encodePNG(t, solid(20, 20, color.NRGBA{B: 255, A: 255}))), imaging.Thumbnail)
	require.NoError(t, err)

	url := out.DataURL()
	require.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))

	mime, data, err := imaging.ParseDataURL(url)
	require.NoError(t, err)
	require.Equal(t, imaging.MIMEJPEG, mime)
	require.Equal(t, out.Data, data)

	for _, bad := range []string{"", "image/png;base64,AAAA", "data:image/png,AAAA", "data:image/png;base64", "data:image/png;base64,@@@"} {
		_, _, err := imaging.ParseDataURL(bad)
		require.ErrorIs(t, err, imaging.ErrInvalidDataURL, bad)
	}
}

func TestNormalizeConcurrently(t *testing.T) {
	raw := encodePNG(t, solid(900, 600, color.NRGBA{R: 30, G: 60, B: 90, A: 255}))

	var wg sync.WaitGroup
	results := make([]*imaging.Encoded, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := imaging.Thumbnail
			if i%2 == 1 {
				p = imaging.Readable
			}
			results[i], errs[i] = imaging.NormalizeProfile(bytes.NewReader(raw), p)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		if i%2 == 0 {
			require.Equal(t, 100, results[i].Width)
			require.Equal(t, 67, results[i].Height)
		} else {
			require.Equal(t, 800, results[i].Width)
			require.Equal(t, 533, results[i].Height)
		}
	}
}
