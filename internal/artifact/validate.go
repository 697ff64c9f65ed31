package artifact

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	_ "image/jpeg"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

type Validation struct {
	MinBytes       int
	AllowedFormats []string
	MaxDimension   int
}

type validated struct {
	bytes    []byte
	mimeType string
	width    int
	height   int
}

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }

// check enforces size and format, then downscales to MaxDimension when needed.
// Size is checked on the provider payload, before any re-encoding.
func (v Validation) check(raw []byte) (validated, error) {
	if v.MinBytes > 0 && len(raw) < v.MinBytes {
		return validated{}, &validationError{msg: fmt.Sprintf("artifact too small: %d bytes, minimum %d", len(raw), v.MinBytes)}
	}

	detected := mimetype.Detect(raw)
	if !v.allowed(detected) {
		return validated{}, &validationError{msg: fmt.Sprintf("unsupported artifact format: %s", detected.String())}
	}
	mimeType := strings.Split(detected.String(), ";")[0]

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return validated{}, &validationError{msg: fmt.Sprintf("unsupported artifact format: decode %s: %v", mimeType, err)}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if v.MaxDimension <= 0 || (w <= v.MaxDimension && h <= v.MaxDimension) {
		return validated{bytes: raw, mimeType: mimeType, width: w, height: h}, nil
	}

	nw, nh := fit(w, h, v.MaxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return validated{}, fmt.Errorf("encode png: %w", err)
	}
	return validated{bytes: buf.Bytes(), mimeType: "image/png", width: nw, height: nh}, nil
}

func (v Validation) allowed(m *mimetype.MIME) bool {
	if len(v.AllowedFormats) == 0 {
		return strings.HasPrefix(m.String(), "image/")
	}
	for _, f := range v.AllowedFormats {
		if m.Is(f) {
			return true
		}
	}
	return false
}

func fit(w, h, max int) (int, int) {
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
