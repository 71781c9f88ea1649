package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"aiquiz-service/internal/domain"
	"github.com/google/uuid"
	"google.golang.org/genai"
)

// Source is the material questions are drafted from: selected slides,
// extracted text, or both.
type Source struct {
	Slides  []domain.Slide
	Content *domain.ExtractedContent
}

// regenerateSlideLimit bounds the context sent along with a rewrite.
const regenerateSlideLimit = 5

type draftQuestion struct {
	Type          string   `json:"type"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

func questionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"type":          {Type: genai.TypeString, Enum: []string{string(domain.KindMultipleChoice), string(domain.KindShortAnswer)}},
			"question":      {Type: genai.TypeString},
			"options":       {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"correctAnswer": {Type: genai.TypeString},
			"explanation":   {Type: genai.TypeString},
		},
		Required: []string{"type", "question", "correctAnswer", "explanation"},
	}
}

const languageRules = `Rules:
- The primary language must be Korean (한국어).
- If an English term is crucial, write it as "Korean (English)".
- When the explanation refers to a source slide, use exactly "[학습자료 {page_number} page 참고]".`

// Questions drafts a question set. Drafts that break question invariants are
// dropped; the call fails only when nothing valid is left.
func (g *Generator) Questions(ctx context.Context, src Source, cfg domain.GenerationConfig) ([]domain.Question, error) {
	const op = "generate questions"
	if cfg.Difficulty == "" {
		cfg.Difficulty = domain.DifficultyMedium
	}
	if cfg.MultipleChoiceCount+cfg.ShortAnswerCount <= 0 {
		return nil, genErrf(op, "no questions requested")
	}
	slides := selected(src.Slides, 0)
	hasText := src.Content != nil && strings.TrimSpace(src.Content.Body) != ""
	if len(slides) == 0 && !hasText {
		return nil, genErrf(op, "no source material")
	}

	prompt := fmt.Sprintf(`Create a learning quiz based on the provided material.

Configuration:
- Multiple choice questions: %d
- Short answer questions: %d
- Difficulty: %s

%s
- Questions must be strictly based on the material.
- Multiple choice questions need 4 options and the correct answer must be one of them verbatim.
- Output must be a JSON array.`, cfg.MultipleChoiceCount, cfg.ShortAnswerCount, cfg.Difficulty, languageRules)

	parts := []*genai.Part{textPart(prompt)}
	if hasText {
		parts = append(parts, textPart(fmt.Sprintf("Source (%s): %s\n\n%s", src.Content.Source, src.Content.Title, src.Content.Body)))
	}
	for _, s := range slides {
		parts = append(parts, textPart(fmt.Sprintf("Slide page %d:", s.PageNumber)), imagePart(s.Image))
	}

	resp, err := g.call(ctx, g.textModel, parts, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   &genai.Schema{Type: genai.TypeArray, Items: questionSchema()},
	})
	if err != nil {
		return nil, genErr(op, err)
	}
	text := responseText(resp)
	if text == "" {
		return nil, genErr(op, domain.ErrEmptyResponse)
	}
	var drafts []draftQuestion
	if err := json.Unmarshal([]byte(stripFences(text)), &drafts); err != nil {
		return nil, genErrf(op, "malformed response: %w", err)
	}

	questions := make([]domain.Question, 0, len(drafts))
	for i, d := range drafts {
		q := d.toQuestion(uuid.NewString(), domain.DefaultTimeLimitSeconds)
		if err := q.Validate(); err != nil {
			g.log.Warn().Err(err).Int("draft", i).Msg("dropping invalid generated question")
			continue
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, genErrf(op, "%w: no valid questions in response", domain.ErrInvalidQuestion)
	}
	g.log.Info().Int("requested", cfg.MultipleChoiceCount+cfg.ShortAnswerCount).Int("accepted", len(questions)).Msg("questions generated")
	return questions, nil
}

// RegenerateQuestion rewrites q following instruction. The result keeps the
// id and time limit of q; on any failure q is left untouched.
func (g *Generator) RegenerateQuestion(ctx context.Context, q domain.Question, instruction string, slides []domain.Slide) (domain.Question, error) {
	const op = "regenerate question"
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return domain.Question{}, genErrf(op, "instruction required")
	}
	original, err := json.Marshal(draftFrom(q))
	if err != nil {
		return domain.Question{}, genErr(op, err)
	}

	prompt := fmt.Sprintf(`Modify the following quiz question based on this instruction: %q.
Original question: %s

%s`, instruction, original, languageRules)
	parts := []*genai.Part{textPart(prompt)}
	for _, s := range selected(slides, regenerateSlideLimit) {
		parts = append(parts, imagePart(s.Image))
	}

	resp, err := g.call(ctx, g.textModel, parts, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   questionSchema(),
	})
	if err != nil {
		return domain.Question{}, genErr(op, err)
	}
	text := responseText(resp)
	if text == "" {
		return domain.Question{}, genErr(op, domain.ErrEmptyResponse)
	}
	var d draftQuestion
	if err := json.Unmarshal([]byte(stripFences(text)), &d); err != nil {
		return domain.Question{}, genErrf(op, "malformed response: %w", err)
	}

	merged := d.mergeInto(q)
	if err := merged.Validate(); err != nil {
		return domain.Question{}, genErr(op, err)
	}
	return merged, nil
}

func (d draftQuestion) toQuestion(id string, timeLimit int) domain.Question {
	q := domain.Question{
		ID:               id,
		Kind:             domain.QuestionKind(strings.TrimSpace(d.Type)),
		Prompt:           strings.TrimSpace(d.Question),
		Options:          d.Options,
		CorrectAnswer:    strings.TrimSpace(d.CorrectAnswer),
		Explanation:      strings.TrimSpace(d.Explanation),
		TimeLimitSeconds: timeLimit,
	}
	if q.Kind == domain.KindShortAnswer || q.Options == nil {
		q.Options = []string{}
	}
	return q
}

// mergeInto lays the non-empty draft fields over q.
func (d draftQuestion) mergeInto(q domain.Question) domain.Question {
	out := q
	if k := domain.QuestionKind(strings.TrimSpace(d.Type)); k != "" {
		out.Kind = k
	}
	if p := strings.TrimSpace(d.Question); p != "" {
		out.Prompt = p
	}
	if d.Options != nil {
		out.Options = d.Options
	}
	if a := strings.TrimSpace(d.CorrectAnswer); a != "" {
		out.CorrectAnswer = a
	}
	if e := strings.TrimSpace(d.Explanation); e != "" {
		out.Explanation = e
	}
	if out.Kind == domain.KindShortAnswer {
		out.Options = []string{}
	}
	return out
}

func draftFrom(q domain.Question) draftQuestion {
	return draftQuestion{
		Type:          string(q.Kind),
		Question:      q.Prompt,
		Options:       q.Options,
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
	}
}
