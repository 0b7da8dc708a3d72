// Package imaging bounds user photos before they are cached: it downscales
// them, converts them to grayscale and re-encodes them.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"strings"

	"golang.org/x/image/draw"

	// Registered decoders.
	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
)

var (
	ErrDecode           = errors.New("cannot decode image")
	ErrInvalidDimension = errors.New("max dimension must be positive")
	ErrInvalidQuality   = errors.New("quality must be in (0, 1]")
	ErrInvalidDataURL   = errors.New("invalid data url")
	ErrTooLarge         = errors.New("image has too many pixels")
)

// DefaultMaxPixels caps the decoded size of a source image.
const DefaultMaxPixels int64 = 50_000_000

// Profile is a named normalization target.
type Profile struct {
	MaxDimension int
	Quality      float64
	// MaxPixels bounds width*height of the source; 0 means DefaultMaxPixels.
	MaxPixels int64
}

var (
	// Thumbnail is kept alongside routes for list and grid display.
	Thumbnail = Profile{MaxDimension: 100, Quality: 0.5}
	// Readable is the full-screen view that goes into the image cache.
	Readable = Profile{MaxDimension: 800, Quality: 0.7}
)

// Encoded is a normalized image.
type Encoded struct {
	MIMEType string
	Data     []byte
	Width    int
	Height   int
}

// DataURL renders the image as a self-describing data URL.
func (e *Encoded) DataURL() string {
	return "data:" + e.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(e.Data)
}

// ParseDataURL splits a base64 data URL into its MIME type and payload.
func ParseDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	header, body, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	mime, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return mime, data, nil
}

func NormalizeProfile(r io.Reader, p Profile) (*Encoded, error) {
	return normalize(r, p.MaxDimension, p.Quality, p.MaxPixels)
}

// Normalize decodes r, shrinks it so the longer side is at most maxDimension,
// converts it to grayscale and re-encodes it. Opaque images become JPEG at
// the given quality; images with transparency become PNG. Sources above
// DefaultMaxPixels are rejected with ErrTooLarge.
func Normalize(r io.Reader, maxDimension int, quality float64) (*Encoded, error) {
	return normalize(r, maxDimension, quality, DefaultMaxPixels)
}

func normalize(r io.Reader, maxDimension int, quality float64, maxPixels int64) (*Encoded, error) {
	if maxDimension <= 0 {
		return nil, ErrInvalidDimension
	}
	if !(quality > 0 && quality <= 1) {
		return nil, ErrInvalidQuality
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	// The header is checked before the pixel buffer is allocated.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	b := src.Bounds()
	w, h := FitDimensions(b.Dx(), b.Dy(), maxDimension)
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Copy(dst, image.Point{}, src, b, draw.Src, nil)
	} else {
		draw.BiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}
	Grayscale(dst)

	var buf bytes.Buffer
	out := &Encoded{Width: w, Height: h}
	if dst.Opaque() {
		out.MIMEType = MIMEJPEG
		err = jpeg.Encode(&buf, toGray(dst), &jpeg.Options{Quality: jpegQuality(quality)})
	} else {
		out.MIMEType = MIMEPNG
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", out.MIMEType, err)
	}
	out.Data = buf.Bytes()
	return out, nil
}

// FitDimensions scales (w, h) so the longer side equals maxDimension when it
// exceeds it. Smaller images keep their size.
func FitDimensions(w, h, maxDimension int) (int, int) {
	if w <= maxDimension && h <= maxDimension {
		return w, h
	}
	scaleShort := func(short, long int) int {
		n := int(math.Round(float64(short) * float64(maxDimension) / float64(long)))
		return max(n, 1)
	}
	if w >= h {
		return maxDimension, scaleShort(h, w)
	}
	return scaleShort(w, h), maxDimension
}

// Luma returns round(0.299R + 0.587G + 0.114B).
func Luma(r, g, b uint8) uint8 {
	y := math.Round(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b))
	if y > 255 {
		y = 255
	}
	return uint8(y)
}

// Grayscale rewrites every pixel of img in place. Alpha is left unchanged.
func Grayscale(img *image.NRGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			l := Luma(row[i], row[i+1], row[i+2])
			row[i], row[i+1], row[i+2] = l, l, l
		}
	}
}

// toGray copies the luma of an already grayscale NRGBA image.
func toGray(img *image.NRGBA) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Pix[out.PixOffset(x, y)] = img.Pix[img.PixOffset(x, y)]
		}
	}
	return out
}

func jpegQuality(q float64) int {
	n := int(math.Round(q * 100))
	return min(max(n, 1), 100)
}
