package artifact

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image/color"
	"math"
	"math/rand"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/zeebo/blake3"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
)

var stylePalettes = map[string][]color.NRGBA{
	"cyberpunk":  {{0x0D, 0x02, 0x21, 0xFF}, {0xFF, 0x00, 0x7F, 0xFF}, {0x00, 0xF0, 0xFF, 0xFF}, {0xFA, 0xFF, 0x00, 0xFF}},
	"vaporwave":  {{0xFF, 0x71, 0xCE, 0xFF}, {0x01, 0xCD, 0xFE, 0xFF}, {0x05, 0xFF, 0xA1, 0xFF}, {0xB9, 0x67, 0xFF, 0xFF}},
	"abstract":   {{0x26, 0x46, 0x53, 0xFF}, {0x2A, 0x9D, 0x8F, 0xFF}, {0xE9, 0xC4, 0x6A, 0xFF}, {0xE7, 0x6F, 0x51, 0xFF}},
	"surrealism": {{0x1B, 0x26, 0x3B, 0xFF}, {0x41, 0x5A, 0x77, 0xFF}, {0xE0, 0xE1, 0xDD, 0xFF}, {0xC9, 0xA2, 0x27, 0xFF}},
	"pixelart":   {{0x1A, 0x1C, 0x2C, 0xFF}, {0x5D, 0x27, 0x5D, 0xFF}, {0xB1, 0x3E, 0x53, 0xFF}, {0xFF, 0xCD, 0x75, 0xFF}},
}

// Procedural renders a deterministic generative image for a prompt. It needs
// no network and serves as the last provider in the chain.
type Procedural struct {
	Size int

	face font.Face
}

func NewProcedural(size int) (*Procedural, error) {
	if size <= 0 {
		size = 768
	}
	f, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse label font: %w", err)
	}
	face := truetype.NewFace(f, &truetype.Options{
		Size:    float64(size) / 32,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	return &Procedural{Size: size, face: face}, nil
}

func (*Procedural) Name() string { return "procedural" }

func (p *Procedural) Render(ctx context.Context, req ImageRequest) (RawImage, error) {
	if err := ctx.Err(); err != nil {
		return RawImage{}, err
	}
	size := p.Size
	rng := rand.New(rand.NewSource(seedOf(req.Prompt + "|" + req.Style + "|" + req.Theme)))
	palette := paletteFor(req.Style, rng)

	dc := gg.NewContext(size, size)
	s := float64(size)

	grad := gg.NewLinearGradient(0, 0, s, s)
	grad.AddColorStop(0, palette[0])
	grad.AddColorStop(1, palette[1%len(palette)])
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, s, s)
	dc.Fill()

	switch strings.ToLower(req.Style) {
	case "pixelart":
		drawPixels(dc, rng, palette, size)
	case "vaporwave":
		drawSunGrid(dc, rng, palette, s)
	default:
		drawOrbs(dc, rng, palette, s)
	}
	drawGrain(dc, rng, size)

	if p.face != nil && req.Theme != "" {
		dc.SetFontFace(p.face)
		label := strings.ToUpper(req.Theme)
		dc.SetColor(color.NRGBA{0, 0, 0, 0x99})
		dc.DrawStringAnchored(label, s/2+2, s-s/16+2, 0.5, 0.5)
		dc.SetColor(color.White)
		dc.DrawStringAnchored(label, s/2, s-s/16, 0.5, 0.5)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return RawImage{}, fmt.Errorf("encode png: %w", err)
	}
	return RawImage{Bytes: buf.Bytes(), MimeType: "image/png"}, nil
}

func seedOf(s string) int64 {
	sum := blake3.Sum256([]byte(s))
	return int64(binary.LittleEndian.Uint64(sum[:8]))
}

func paletteFor(style string, rng *rand.Rand) []color.NRGBA {
	if p, ok := stylePalettes[strings.ToLower(style)]; ok {
		return p
	}
	out := make([]color.NRGBA, 4)
	for i := range out {
		out[i] = color.NRGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 0xFF}
	}
	return out
}

func drawOrbs(dc *gg.Context, rng *rand.Rand, palette []color.NRGBA, s float64) {
	for i := 0; i < 24; i++ {
		c := palette[rng.Intn(len(palette))]
		c.A = uint8(60 + rng.Intn(140))
		dc.SetColor(c)
		dc.DrawCircle(rng.Float64()*s, rng.Float64()*s, s*(0.03+rng.Float64()*0.2))
		dc.Fill()
	}
	dc.SetLineWidth(s / 300)
	for i := 0; i < 12; i++ {
		c := palette[rng.Intn(len(palette))]
		dc.SetColor(c)
		x, y := rng.Float64()*s, rng.Float64()*s
		dc.MoveTo(x, y)
		dc.CubicTo(rng.Float64()*s, rng.Float64()*s, rng.Float64()*s, rng.Float64()*s, rng.Float64()*s, rng.Float64()*s)
		dc.Stroke()
	}
}

func drawSunGrid(dc *gg.Context, rng *rand.Rand, palette []color.NRGBA, s float64) {
	horizon := s * 0.6
	dc.SetColor(palette[len(palette)-1])
	dc.DrawCircle(s/2, horizon, s*0.22)
	dc.Fill()

	dc.SetColor(palette[0])
	dc.DrawRectangle(0, horizon, s, s-horizon)
	dc.Fill()

	dc.SetColor(palette[2%len(palette)])
	dc.SetLineWidth(s / 400)
	for i := 1; i <= 12; i++ {
		y := horizon + (s-horizon)*math.Pow(float64(i)/12, 2)
		dc.DrawLine(0, y, s, y)
	}
	for i := -10; i <= 10; i++ {
		dc.DrawLine(s/2, horizon, s/2+float64(i)*s/8, s)
	}
	dc.Stroke()

	dc.SetColor(color.White)
	for i := 0; i < 80; i++ {
		dc.DrawPoint(rng.Float64()*s, rng.Float64()*horizon*0.8, 1+rng.Float64()*1.5)
		dc.Fill()
	}
}

func drawPixels(dc *gg.Context, rng *rand.Rand, palette []color.NRGBA, size int) {
	cell := size / 32
	if cell < 1 {
		cell = 1
	}
	for y := 0; y < size; y += cell {
		for x := 0; x < size; x += cell {
			if rng.Intn(3) != 0 {
				continue
			}
			dc.SetColor(palette[rng.Intn(len(palette))])
			dc.DrawRectangle(float64(x), float64(y), float64(cell), float64(cell))
			dc.Fill()
		}
	}
}

// drawGrain adds per-pixel film grain.
func drawGrain(dc *gg.Context, rng *rand.Rand, size int) {
	img := dc.Image()
	rgba, ok := img.(interface {
		Set(x, y int, c color.Color)
	})
	if !ok {
		return
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			n := rng.Intn(25) - 12
			rgba.Set(x, y, color.RGBA{clamp8(int(r>>8) + n), clamp8(int(g>>8) + n), clamp8(int(b>>8) + n), 0xFF})
		}
	}
}

func clamp8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
