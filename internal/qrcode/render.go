package qrcode

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTooWide is returned when the code does not fit the available width.
var ErrTooWide = errors.New("qrcode does not fit the terminal")

// QuietZone is the light margin, in modules, drawn around the code.
const QuietZone = 2

// RenderOptions controls terminal rendering.
type RenderOptions struct {
	// MaxWidth is the column budget; 0 means unlimited.
	MaxWidth int
	// Invert draws light modules as glyphs, for light-on-dark terminals.
	Invert bool
}

// Render draws bm with half-block glyphs: one column per module, two module
// rows per text line, so modules come out square.
func Render(bm *Bitmap, opts RenderOptions) (string, error) {
	width := bm.Width + 2*QuietZone
	if opts.MaxWidth > 0 && width > opts.MaxWidth {
		return "", fmt.Errorf("%w: needs %d columns, have %d", ErrTooWide, width, opts.MaxWidth)
	}

	ink := func(x, y int) bool {
		d := bm.Dark(x-QuietZone, y-QuietZone)
		if opts.Invert {
			return !d
		}
		return d
	}

	height := bm.Height + 2*QuietZone
	var sb strings.Builder
	for y := 0; y < height; y += 2 {
		for x := 0; x < width; x++ {
			top := ink(x, y)
			bottom := y+1 < height && ink(x, y+1)
			switch {
			case top && bottom:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bottom:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		if y+2 < height {
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

// RenderPayload decodes payload and renders it for the terminal.
func RenderPayload(payload string, opts RenderOptions) (string, error) {
	p, err := Decode(payload)
	if err != nil {
		return "", err
	}
	bm, err := Modules(p.Image)
	if err != nil {
		return "", err
	}
	return Render(bm, opts)
}
