// Package qrcode turns the base64 QR payload issued by the service into
// something a terminal can show, or a file a phone can scan.
package qrcode

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"strings"
)

var (
	ErrEmptyPayload = errors.New("empty qrcode payload")
	ErrBlankImage   = errors.New("qrcode image has no dark pixels")
)

// Payload is a decoded QR raster.
type Payload struct {
	// Raw holds the encoded image bytes as received.
	Raw []byte
	// Format is the image format name, e.g. "png".
	Format string
	Image  image.Image
}

// Decode accepts a bare base64 string or a data: URI.
func Decode(payload string) (*Payload, error) {
	raw, err := DecodeBytes(payload)
	if err != nil {
		return nil, err
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode qrcode image: %w", err)
	}
	return &Payload{Raw: raw, Format: format, Image: img}, nil
}

// DecodeBytes strips an optional data: URI prefix and base64-decodes the rest.
func DecodeBytes(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		if i := strings.Index(payload, ","); i >= 0 {
			payload = payload[i+1:]
		} else {
			payload = ""
		}
	}
	payload = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, payload)
	if payload == "" {
		return nil, ErrEmptyPayload
	}

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if raw, err := enc.DecodeString(payload); err == nil && len(raw) > 0 {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("failed to decode qrcode payload: invalid base64")
}

// Save writes the decoded image bytes to path.
func Save(payload, path string) error {
	raw, err := DecodeBytes(payload)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write qrcode: %w", err)
	}
	return nil
}

// Bitmap is a grid of dark/light modules.
type Bitmap struct {
	Width  int
	Height int
	bits   []bool
}

// NewBitmap returns an all-light bitmap.
func NewBitmap(w, h int) *Bitmap {
	return &Bitmap{Width: w, Height: h, bits: make([]bool, w*h)}
}

// Dark reports whether (x, y) is dark. Out-of-range cells are light.
func (b *Bitmap) Dark(x, y int) bool {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return false
	}
	return b.bits[y*b.Width+x]
}

// Set marks (x, y) dark or light.
func (b *Bitmap) Set(x, y int, dark bool) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return
	}
	b.bits[y*b.Width+x] = dark
}

func isDark(c color.Color) bool {
	_, _, _, a := c.RGBA()
	if a < 0x8000 {
		return false
	}
	return color.GrayModel.Convert(c).(color.Gray).Y < 128
}

// Modules recovers the module grid of a rendered QR code. The module size is
// taken from the top-left finder pattern, which is seven modules wide.
func Modules(img image.Image) (*Bitmap, error) {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !isDark(img.At(x, y)) {
				continue
			}
			minX = min(minX, x)
			minY = min(minY, y)
			maxX = max(maxX, x)
			maxY = max(maxY, y)
		}
	}
	if maxX < minX {
		return nil, ErrBlankImage
	}

	run := 0
	for x := minX; x <= maxX && isDark(img.At(x, minY)); x++ {
		run++
	}
	module := float64(run) / 7
	if module < 1 {
		module = 1
	}

	cols := int(math.Round(float64(maxX-minX+1) / module))
	rows := int(math.Round(float64(maxY-minY+1) / module))
	cols, rows = max(cols, 1), max(rows, 1)

	bm := NewBitmap(cols, rows)
	for j := 0; j < rows; j++ {
		y := minY + int((float64(j)+0.5)*module)
		for i := 0; i < cols; i++ {
			x := minX + int((float64(i)+0.5)*module)
			bm.Set(i, j, isDark(img.At(x, y)))
		}
	}
	return bm, nil
}
