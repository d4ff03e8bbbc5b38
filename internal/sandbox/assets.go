package sandbox

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image/color"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
)

var placeholderPalette = []color.NRGBA{
	{R: 0xE5, G: 0x7C, B: 0x8F, A: 0xFF},
	{R: 0x7C, G: 0x9C, B: 0xE5, A: 0xFF},
	{R: 0x8F, G: 0xC9, B: 0x9A, A: 0xFF},
	{R: 0xF2, G: 0xB5, B: 0x6B, A: 0xFF},
	{R: 0xA7, G: 0x8B, B: 0xD9, A: 0xFF},
	{R: 0x5F, G: 0xB8, B: 0xC4, A: 0xFF},
}

var (
	fontOnce  sync.Once
	labelFont *truetype.Font
	fontErr   error
)

// fontFace returns the embedded Go Bold face at size points.
func fontFace(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		labelFont, fontErr = truetype.Parse(gobold.TTF)
	})
	if fontErr != nil {
		return nil, fmt.Errorf("parse font: %w", fontErr)
	}
	return truetype.NewFace(labelFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}

// renderPlaceholder draws the preview image for a persona or dress: a
// colored card keyed on seed with the label's initials. Pending assets get
// a dimmed overlay.
func renderPlaceholder(seed string, label string, pending bool) ([]byte, error) {
	const size = 256
	dc := gg.NewContext(size, size)

	dc.DrawRoundedRectangle(0, 0, size, size, 24)
	dc.Clip()
	dc.SetColor(pickColor(seed))
	dc.DrawRectangle(0, 0, size, size)
	dc.Fill()

	big, err := fontFace(112)
	if err != nil {
		return nil, err
	}
	dc.SetFontFace(big)
	dc.SetColor(color.White)
	dc.DrawStringAnchored(initials(label), size/2, size/2, 0.5, 0.35)
	if pending {
		small, err := fontFace(22)
		if err != nil {
			return nil, err
		}
		dc.SetRGBA(0, 0, 0, 0.35)
		dc.DrawRectangle(0, 0, size, size)
		dc.Fill()
		dc.SetFontFace(small)
		dc.SetColor(color.White)
		dc.DrawStringAnchored("generating", size/2, size-28, 0.5, 0.5)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func pickColor(seed string) color.NRGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return placeholderPalette[int(h.Sum32()%uint32(len(placeholderPalette)))]
}

func initials(label string) string {
	fields := strings.Fields(label)
	switch len(fields) {
	case 0:
		return "?"
	case 1:
		return strings.ToUpper(firstRune(fields[0]))
	default:
		return strings.ToUpper(firstRune(fields[0]) + firstRune(fields[len(fields)-1]))
	}
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}
