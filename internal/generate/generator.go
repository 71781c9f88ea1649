// Package generate talks to the generative model service: question drafting,
// slide variations, the winner poster and the session report.
package generate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"aiquiz-service/internal/domain"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const (
	DefaultTextModel  = "gemini-2.5-pro"
	DefaultImageModel = "gemini-2.5-flash-image"
	DefaultTimeout    = 90 * time.Second
	// DefaultVariationConcurrency caps parallel image requests of one call.
	DefaultVariationConcurrency = 4
)

// Models is the slice of the genai client this package uses.
type Models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Options struct {
	TextModel            string
	ImageModel           string
	Timeout              time.Duration
	VariationConcurrency int
	Logger               zerolog.Logger
}

type Generator struct {
	models      Models
	textModel   string
	imageModel  string
	timeout     time.Duration
	concurrency int
	log         zerolog.Logger
}

func New(models Models, opts Options) *Generator {
	if opts.TextModel == "" {
		opts.TextModel = DefaultTextModel
	}
	if opts.ImageModel == "" {
		opts.ImageModel = DefaultImageModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.VariationConcurrency <= 0 {
		opts.VariationConcurrency = DefaultVariationConcurrency
	}
	return &Generator{
		models:      models,
		textModel:   opts.TextModel,
		imageModel:  opts.ImageModel,
		timeout:     opts.Timeout,
		concurrency: opts.VariationConcurrency,
		log:         opts.Logger.With().Str("component", "generator").Logger(),
	}
}

// NewClient connects to the Gemini API.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

func (g *Generator) call(ctx context.Context, model string, parts []*genai.Part, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, model, []*genai.Content{{Role: "user", Parts: parts}}, config)
	if err != nil {
		return nil, err
	}
	g.log.Debug().Str("model", model).Dur("took", time.Since(start)).Msg("model call finished")
	return resp, nil
}

func textPart(text string) *genai.Part {
	return &genai.Part{Text: text}
}

func imagePart(img domain.Image) *genai.Part {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: img.Data}}
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && !p.Thought {
			b.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// responseImage returns the first inline image of the response.
func responseImage(resp *genai.GenerateContentResponse) (domain.Image, bool) {
	if resp == nil {
		return domain.Image{}, false
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
				return domain.Image{MIMEType: p.InlineData.MIMEType, Data: p.InlineData.Data}, true
			}
		}
	}
	return domain.Image{}, false
}

// stripFences removes a markdown code fence some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func genErr(op string, err error) error {
	return &domain.GenerationError{Op: op, Err: err}
}

func genErrf(op, format string, args ...any) error {
	return genErr(op, fmt.Errorf(format, args...))
}

func selected(slides []domain.Slide, limit int) []domain.Slide {
	var out []domain.Slide
	for _, s := range slides {
		if !s.Selected || s.Image.Empty() {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
