package artifact

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/artforge-backend/internal/catalog"
	"github.com/yungbote/artforge-backend/internal/gateway"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

type stubWriter struct {
	name  string
	text  string
	err   error
	calls int
}

func (w *stubWriter) Name() string { return w.name }
func (w *stubWriter) Complete(context.Context, string, string) (string, error) {
	w.calls++
	return w.text, w.err
}

type stubImages struct {
	name  string
	raw   RawImage
	err   error
	calls int
	last  ImageRequest
}

func (p *stubImages) Name() string { return p.name }
func (p *stubImages) Render(_ context.Context, req ImageRequest) (RawImage, error) {
	p.calls++
	p.last = req
	return p.raw, p.err
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return c
}

func procedural(t *testing.T, size int) *Procedural {
	t.Helper()
	p, err := NewProcedural(size)
	require.NoError(t, err)
	return p
}

var defaultCheck = Validation{MinBytes: 10240, AllowedFormats: []string{"image/png"}, MaxDimension: 1024}

func TestGenerateRejectsSmallArtifact(t *testing.T) {
	img := &stubImages{name: "stub", raw: RawImage{Bytes: bytes.Repeat([]byte{1}, 500)}}
	g, err := NewGenerator(testCatalog(t), nil, []ImageProvider{img}, Config{Validation: defaultCheck}, logger.Nop())
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "cyberpunk", "quantum realms")
	require.Error(t, err)
	assert.True(t, gateway.IsGenerationError(err))
	assert.Contains(t, err.Error(), "artifact too small")
}

func TestGenerateRejectsWrongFormat(t *testing.T) {
	payload := []byte(strings.Repeat("not an image at all ", 1000))
	img := &stubImages{name: "stub", raw: RawImage{Bytes: payload}}
	g, err := NewGenerator(testCatalog(t), nil, []ImageProvider{img}, Config{Validation: defaultCheck}, logger.Nop())
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "cyberpunk", "quantum realms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported artifact format")
}

func TestGenerateFallsBackAcrossImageProviders(t *testing.T) {
	broken := &stubImages{name: "openai", err: errors.New("503 from upstream")}
	g, err := NewGenerator(testCatalog(t), nil, []ImageProvider{broken, procedural(t, 256)}, Config{Validation: defaultCheck}, logger.Nop())
	require.NoError(t, err)

	a, err := g.Generate(context.Background(), "vaporwave", "cosmic exploration")
	require.NoError(t, err)
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, "procedural", a.Provider)
	assert.Equal(t, "image/png", a.MimeType)
	assert.GreaterOrEqual(t, len(a.Bytes), 10240)
	assert.Equal(t, "Cosmic Exploration Vaporwave", a.DraftMetadata.Name)
	v, _ := a.DraftMetadata.Trait("Theme")
	assert.Equal(t, "cosmic exploration", v)
}

func TestImageAttemptsAreBounded(t *testing.T) {
	broken := &stubImages{name: "openai", err: errors.New("boom")}
	backup := &stubImages{name: "other", err: errors.New("unused")}
	g, err := NewGenerator(testCatalog(t), nil, []ImageProvider{broken, backup}, Config{MaxImageAttempts: 1}, logger.Nop())
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "abstract", "digital evolution")
	require.Error(t, err)
	assert.Equal(t, 0, backup.calls)
	assert.Equal(t, "openai", gateway.ProviderOf(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestPromptWritersInOrderThenTemplate(t *testing.T) {
	local := &stubWriter{name: "local", err: errors.New("connection refused")}
	remote := &stubWriter{name: "openrouter", text: "  \"A glowing koi in rain\"  "}
	img := &stubImages{name: "proc", err: errors.New("stop here")}

	g, err := NewGenerator(testCatalog(t), []PromptWriter{local, remote}, []ImageProvider{img}, Config{}, logger.Nop())
	require.NoError(t, err)
	_, _ = g.Generate(context.Background(), "surrealism", "ancient futures")
	assert.Equal(t, 1, local.calls)
	assert.Equal(t, 1, remote.calls)
	assert.Equal(t, "A glowing koi in rain", img.last.Prompt)

	remote.err = errors.New("rate limited")
	_, _ = g.Generate(context.Background(), "surrealism", "ancient futures")
	assert.Equal(t, 2, local.calls)
	assert.Equal(t, 2, remote.calls)
	assert.True(t, strings.HasPrefix(img.last.Prompt, "ancient futures rendered in surrealism style"), img.last.Prompt)
}

func TestGenerateDownscalesLargeImages(t *testing.T) {
	check := Validation{AllowedFormats: []string{"image/png"}, MaxDimension: 128}
	g, err := NewGenerator(testCatalog(t), nil, []ImageProvider{procedural(t, 300)}, Config{Validation: check}, logger.Nop())
	require.NoError(t, err)

	a, err := g.Generate(context.Background(), "pixelart", "cyber mythology")
	require.NoError(t, err)
	assert.Equal(t, 128, a.Width)
	assert.Equal(t, 128, a.Height)

	cfg, err := png.DecodeConfig(bytes.NewReader(a.Bytes))
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Width)
}

func TestProceduralIsDeterministic(t *testing.T) {
	p := procedural(t, 128)
	req := ImageRequest{Prompt: "p", Style: "cyberpunk", Theme: "quantum realms"}
	a, err := p.Render(context.Background(), req)
	require.NoError(t, err)
	b, err := p.Render(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, a.Bytes, b.Bytes)

	req.Style = "unknown-style"
	c, err := p.Render(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, a.Bytes, c.Bytes)
}

func TestNewGeneratorRequiresImageProvider(t *testing.T) {
	_, err := NewGenerator(testCatalog(t), nil, nil, Config{}, logger.Nop())
	assert.Error(t, err)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Bio-Mechanical Fusion Pixelart", Title("pixelart", "bio-mechanical fusion"))
}
