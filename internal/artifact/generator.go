package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/artforge-backend/internal/catalog"
	"github.com/yungbote/artforge-backend/internal/gateway"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

const templateSource = "template"

type Config struct {
	Validation Validation
	// Attempt bounds; zero means one attempt per configured provider.
	MaxPromptAttempts int
	MaxImageAttempts  int
}

// Generator implements gateway.ArtifactGenerator over ordered provider lists.
// Prompt writing degrades to the catalog template when every writer fails;
// image rendering has no such fallback.
type Generator struct {
	log     *logger.Logger
	catalog *catalog.Catalog
	writers []PromptWriter
	images  []ImageProvider
	check   Validation

	maxPromptAttempts int
	maxImageAttempts  int
}

func NewGenerator(cat *catalog.Catalog, writers []PromptWriter, images []ImageProvider, cfg Config, baseLog *logger.Logger) (*Generator, error) {
	if cat == nil {
		return nil, errors.New("artifact generator: catalog required")
	}
	if len(images) == 0 {
		return nil, errors.New("artifact generator: at least one image provider required")
	}
	g := &Generator{
		log:               baseLog.With("service", "ArtifactGenerator"),
		catalog:           cat,
		writers:           writers,
		images:            images,
		check:             cfg.Validation,
		maxPromptAttempts: bound(cfg.MaxPromptAttempts, len(writers)),
		maxImageAttempts:  bound(cfg.MaxImageAttempts, len(images)),
	}
	return g, nil
}

func bound(max, n int) int {
	if max <= 0 || max > n {
		return n
	}
	return max
}

func (g *Generator) Generate(ctx context.Context, style, theme string) (gateway.Artifact, error) {
	vars := g.vars(style, theme)
	prompt, source := g.writePrompt(ctx, vars)

	var (
		lastErr      error
		lastProvider string
	)
	for attempt := 0; attempt < g.maxImageAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return gateway.Artifact{}, gateway.NewGenerationError(lastProvider, "canceled", err)
		}
		p := g.images[attempt]
		lastProvider = p.Name()
		start := time.Now()

		raw, err := p.Render(ctx, ImageRequest{Prompt: prompt, Style: style, Theme: theme})
		if err != nil {
			lastErr = err
			g.log.Warn("Image provider failed", "provider", p.Name(), "attempt", attempt+1, "error", err)
			continue
		}
		v, err := g.check.check(raw.Bytes)
		if err != nil {
			lastErr = err
			g.log.Warn("Image rejected", "provider", p.Name(), "attempt", attempt+1, "bytes", len(raw.Bytes), "error", err)
			continue
		}

		finalPrompt := prompt
		if raw.RevisedPrompt != "" {
			finalPrompt = raw.RevisedPrompt
		}
		g.log.Info("Artifact generated",
			"provider", p.Name(),
			"prompt_source", source,
			"bytes", len(v.bytes),
			"width", v.width,
			"height", v.height,
			"duration", time.Since(start).String(),
		)
		return gateway.Artifact{
			Prompt:        finalPrompt,
			Bytes:         v.bytes,
			MimeType:      v.mimeType,
			Width:         v.width,
			Height:        v.height,
			Provider:      p.Name(),
			DraftMetadata: g.draft(style, theme, vars),
		}, nil
	}

	var ve *validationError
	if errors.As(lastErr, &ve) {
		return gateway.Artifact{}, gateway.NewGenerationError(lastProvider, ve.msg, nil)
	}
	return gateway.Artifact{}, gateway.NewGenerationError(lastProvider, "image generation failed", lastErr)
}

// writePrompt tries each writer once, in order, up to the attempt bound.
func (g *Generator) writePrompt(ctx context.Context, vars map[string]string) (string, string) {
	system := g.catalog.Prompt.System
	user := catalog.Render(g.catalog.Prompt.User, vars)

	for attempt := 0; attempt < g.maxPromptAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		w := g.writers[attempt]
		text, err := w.Complete(ctx, system, user)
		if err != nil {
			g.log.Warn("Prompt writer failed", "provider", w.Name(), "attempt", attempt+1, "error", err)
			continue
		}
		return cleanPrompt(text), w.Name()
	}
	return catalog.Render(g.catalog.Prompt.Fallback, vars), templateSource
}

func (g *Generator) vars(style, theme string) map[string]string {
	return map[string]string{
		"style":           style,
		"styleDescriptor": g.catalog.StyleDescriptor(style),
		"theme":           theme,
		"themeDescriptor": g.catalog.ThemeDescriptor(theme),
	}
}

// draft carries the content fields; the orchestrator adds naming, royalties and URLs.
func (g *Generator) draft(style, theme string, vars map[string]string) gateway.Metadata {
	return gateway.Metadata{
		Name:        Title(style, theme),
		Description: catalog.Render(g.catalog.Prompt.Description, vars),
		Attributes: []gateway.Trait{
			{TraitType: "Style", Value: style},
			{TraitType: "Theme", Value: theme},
			{TraitType: "Generation", Value: "Autonomous"},
		},
		Properties: gateway.Properties{Category: "image"},
	}
}

// Title is the human name for a (style, theme) pair.
func Title(style, theme string) string {
	return fmt.Sprintf("%s %s", titleCase(theme), titleCase(style))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		parts := strings.Split(w, "-")
		for j, p := range parts {
			if p != "" {
				parts[j] = strings.ToUpper(p[:1]) + p[1:]
			}
		}
		words[i] = strings.Join(parts, "-")
	}
	return strings.Join(words, " ")
}

func cleanPrompt(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`")
	return strings.Join(strings.Fields(s), " ")
}
