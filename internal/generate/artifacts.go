package generate

import (
	"context"
	"fmt"
	"strings"

	"aiquiz-service/internal/domain"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"
)

const (
	// MaxVariations bounds the count of one variation request.
	MaxVariations = 4

	reportSlideLimit   = 3
	infographicExcerpt = 200
)

func imageConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{ResponseModalities: []string{"IMAGE", "TEXT"}}
}

func (g *Generator) image(ctx context.Context, op string, parts []*genai.Part) (domain.Image, error) {
	resp, err := g.call(ctx, g.imageModel, parts, imageConfig())
	if err != nil {
		return domain.Image{}, genErr(op, err)
	}
	img, ok := responseImage(resp)
	if !ok {
		return domain.Image{}, genErr(op, domain.ErrEmptyResponse)
	}
	return img, nil
}

// SlideVariations asks for count redesigns of src in parallel. Failed
// variants are logged and left out, so the result holds 0..count images.
func (g *Generator) SlideVariations(ctx context.Context, src domain.Image, instruction string, count int) ([]domain.Image, error) {
	const op = "slide variations"
	if src.Empty() {
		return nil, genErrf(op, "source image required")
	}
	if count <= 0 {
		count = 1
	}
	if count > MaxVariations {
		count = MaxVariations
	}
	prompt := fmt.Sprintf(`Redesign this presentation slide. %s
Keep the content and meaning of the slide. Output a 16:9 landscape image.`, strings.TrimSpace(instruction))

	results := make([]domain.Image, count)
	var eg errgroup.Group
	eg.SetLimit(g.concurrency)
	for i := 0; i < count; i++ {
		eg.Go(func() error {
			img, err := g.image(ctx, op, []*genai.Part{imagePart(src), textPart(prompt)})
			if err != nil {
				g.log.Warn().Err(err).Int("variant", i).Msg("slide variation failed")
				return nil
			}
			results[i] = img
			return nil
		})
	}
	_ = eg.Wait()

	out := make([]domain.Image, 0, count)
	for _, img := range results {
		if !img.Empty() {
			out = append(out, img)
		}
	}
	g.log.Info().Int("requested", count).Int("returned", len(out)).Msg("slide variations generated")
	return out, nil
}

// WinnerPoster draws the celebration poster for the session winner.
func (g *Generator) WinnerPoster(ctx context.Context, profile domain.WinnerProfile) (domain.Image, error) {
	winner := strings.TrimSpace(profile.WinnerName)
	if winner == "" {
		winner = "Winner"
	}
	prompt := fmt.Sprintf(`Create a celebratory award poster for the winner of a corporate learning quiz.
Winner: %s
Company: %s
Style: festive, confetti, trophy, professional typography. Vertical 3:4 portrait layout.
Write the winner name and the company name clearly on the poster.`, winner, strings.TrimSpace(profile.CompanyName))

	parts := []*genai.Part{textPart(prompt)}
	if !profile.Photo.Empty() {
		parts = append(parts, textPart("Feature the person in this photo as the winner:"), imagePart(profile.Photo))
	}
	return g.image(ctx, "winner poster", parts)
}

// SessionReport writes the learning summary, then an infographic built from
// it. Both must succeed.
func (g *Generator) SessionReport(ctx context.Context, slides []domain.Slide, questions []domain.Question) (domain.SessionReport, error) {
	const op = "session report"
	var prompts strings.Builder
	for i, q := range questions {
		fmt.Fprintf(&prompts, "%d. %s\n", i+1, q.Prompt)
	}
	prompt := fmt.Sprintf(`Write a learning summary report of a quiz session in Korean plain text (no markdown).
Use exactly these three sections:
1. 핵심 요약
2. 주요 학습 개념
3. 퀴즈 리뷰

Quiz questions:
%s`, prompts.String())

	pages := selected(slides, reportSlideLimit)
	parts := []*genai.Part{textPart(prompt)}
	for _, s := range pages {
		parts = append(parts, imagePart(s.Image))
	}
	resp, err := g.call(ctx, g.textModel, parts, nil)
	if err != nil {
		return domain.SessionReport{}, genErr(op, err)
	}
	text := responseText(resp)
	if text == "" {
		return domain.SessionReport{}, genErr(op, domain.ErrEmptyResponse)
	}

	infoParts := []*genai.Part{textPart(fmt.Sprintf(`Create a clean educational infographic summarising this learning session.
Vertical 3:4 layout, Korean labels.
Summary: %s`, excerpt(text, infographicExcerpt)))}
	for _, s := range pages {
		infoParts = append(infoParts, imagePart(s.Image))
	}
	infographic, err := g.image(ctx, op, infoParts)
	if err != nil {
		return domain.SessionReport{}, err
	}
	return domain.SessionReport{Text: text, Infographic: infographic}, nil
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
