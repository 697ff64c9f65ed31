package artifact

import (
	"context"

	"github.com/yungbote/artforge-backend/internal/platform/openai"
)

// PromptWriter turns instructions into an image prompt.
type PromptWriter interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}

type ImageRequest struct {
	Prompt string
	Style  string
	Theme  string
}

type RawImage struct {
	Bytes         []byte
	MimeType      string
	RevisedPrompt string
}

// ImageProvider renders one image for a prompt.
type ImageProvider interface {
	Name() string
	Render(ctx context.Context, req ImageRequest) (RawImage, error)
}

// OpenAIImages adapts the images API client.
type OpenAIImages struct {
	Client openai.Client
}

func (OpenAIImages) Name() string { return "openai" }

func (p OpenAIImages) Render(ctx context.Context, req ImageRequest) (RawImage, error) {
	img, err := p.Client.GenerateImage(ctx, req.Prompt)
	if err != nil {
		return RawImage{}, err
	}
	return RawImage{Bytes: img.Bytes, MimeType: img.MimeType, RevisedPrompt: img.RevisedPrompt}, nil
}
