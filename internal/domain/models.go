package domain

import (
	"fmt"
	"sort"
	"time"
)

// QuestionKind distinguishes answerable multiple-choice questions from open prompts.
type QuestionKind string

const (
	KindMultipleChoice QuestionKind = "multiple-choice"
	KindShortAnswer    QuestionKind = "short-answer"
)

// DefaultTimeLimitSeconds is assigned to generated questions.
const DefaultTimeLimitSeconds = 15

// Question is immutable once a session has started with it.
type Question struct {
	ID               string       `json:"id"`
	Kind             QuestionKind `json:"type"`
	Prompt           string       `json:"question"`
	Options          []string     `json:"options"`
	CorrectAnswer    string       `json:"correctAnswer"`
	Explanation      string       `json:"explanation"`
	TimeLimitSeconds int          `json:"timeLimit"`
}

// Validate checks the structural invariants of a question.
func (q Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidQuestion)
	}
	if q.Prompt == "" {
		return fmt.Errorf("%w: question %s has no prompt", ErrInvalidQuestion, q.ID)
	}
	if q.TimeLimitSeconds <= 0 {
		return fmt.Errorf("%w: question %s has non-positive time limit", ErrInvalidQuestion, q.ID)
	}
	switch q.Kind {
	case KindMultipleChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: question %s needs at least two options", ErrInvalidQuestion, q.ID)
		}
		for _, opt := range q.Options {
			if opt == q.CorrectAnswer {
				return nil
			}
		}
		return fmt.Errorf("%w: question %s answer is not one of its options", ErrInvalidQuestion, q.ID)
	case KindShortAnswer:
		return nil
	default:
		return fmt.Errorf("%w: question %s has unknown kind %q", ErrInvalidQuestion, q.ID, q.Kind)
	}
}

// View strips the answer key so the question can be broadcast to students.
func (q Question) View() QuestionView {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return QuestionView{
		ID:               q.ID,
		Kind:             q.Kind,
		Prompt:           q.Prompt,
		Options:          options,
		TimeLimitSeconds: q.TimeLimitSeconds,
	}
}

// QuestionView is the student-facing part of a question.
type QuestionView struct {
	ID               string       `json:"id"`
	Kind             QuestionKind `json:"type"`
	Prompt           string       `json:"question"`
	Options          []string     `json:"options"`
	TimeLimitSeconds int          `json:"timeLimit"`
}

// Deck is an authored question set a session is started from.
type Deck struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Validate checks every question and that question ids are unique.
func (d Deck) Validate() error {
	if len(d.Questions) == 0 {
		return fmt.Errorf("%w: deck has no questions", ErrInvalidDeck)
	}
	seen := make(map[string]struct{}, len(d.Questions))
	for _, q := range d.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDeck, err)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %s", ErrInvalidDeck, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}

// Difficulty steers question generation.
type Difficulty string

const (
	DifficultyHigh   Difficulty = "High"
	DifficultyMedium Difficulty = "Medium"
	DifficultyLow    Difficulty = "Low"
)

// GenerationConfig is the request shape for question generation.
type GenerationConfig struct {
	MultipleChoiceCount int        `json:"multipleChoiceCount" binding:"gte=0,lte=20"`
	ShortAnswerCount    int        `json:"shortAnswerCount" binding:"gte=0,lte=20"`
	Difficulty          Difficulty `json:"difficulty" binding:"omitempty,oneof=High Medium Low"`
}

// DefaultGenerationConfig mirrors the editor defaults.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MultipleChoiceCount: 5,
		ShortAnswerCount:    2,
		Difficulty:          DifficultyMedium,
	}
}

// Image is an encoded picture (slide page, poster, infographic).
type Image struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"-"`
}

// Empty reports whether the image carries no bytes.
func (i Image) Empty() bool {
	return len(i.Data) == 0
}

// Slide is one ingested page.
type Slide struct {
	ID         string `json:"id"`
	PageNumber int    `json:"pageNumber"`
	Image      Image  `json:"image"`
	Selected   bool   `json:"selected"`
}

// ExtractedContent is the text pulled from a URL.
type ExtractedContent struct {
	Source string `json:"source"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Body   string `json:"content"`
}

const (
	SourceYouTube = "youtube"
	SourceWebpage = "webpage"
)

// AnswerRecord is the first accepted submission of a participant for a question.
type AnswerRecord struct {
	Value               string  `json:"value"`
	Correct             bool    `json:"correct"`
	ResponseTimeSeconds float64 `json:"responseTimeSeconds"`
	Points              int     `json:"points"`
}

// Participant represents a quiz participant and their accumulated score.
type Participant struct {
	ID          string                  `json:"id"`
	DisplayName string                  `json:"displayName"`
	Score       int                     `json:"score"`
	Answers     map[string]AnswerRecord `json:"answers"`
	JoinOrder   int                     `json:"joinOrder"`
	JoinedAt    time.Time               `json:"joinedAt"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (p Participant) Clone() Participant {
	out := p
	out.Answers = make(map[string]AnswerRecord, len(p.Answers))
	for k, v := range p.Answers {
		out.Answers[k] = v
	}
	return out
}

// RankParticipants orders by score descending, ties by join order.
func RankParticipants(participants []Participant) []Participant {
	ranked := make([]Participant, len(participants))
	copy(ranked, participants)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].JoinOrder < ranked[j].JoinOrder
	})
	return ranked
}

// LeaderboardEntry is a snapshot-friendly view of a participant.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Score         int    `json:"score"`
}

// OptionCount is one bar of the answer distribution chart.
type OptionCount struct {
	Option  string `json:"option"`
	Count   int    `json:"count"`
	Correct bool   `json:"correct"`
}

// AnswerDistribution summarises the answers given to one question.
type AnswerDistribution struct {
	QuestionID   string        `json:"questionId"`
	Options      []OptionCount `json:"options"`
	Answered     int           `json:"answered"`
	Correct      int           `json:"correct"`
	Participants int           `json:"participants"`
}

// WinnerProfile feeds the celebratory poster.
type WinnerProfile struct {
	CompanyName string
	WinnerName  string
	Photo       Image
}

// SessionReport is the generated learning summary.
type SessionReport struct {
	Text        string
	Infographic Image
}

// FinalArtifacts are the generated outputs assembled into the exported report.
type FinalArtifacts struct {
	Poster       Image     `json:"poster"`
	SummaryText  string    `json:"summaryText"`
	SummaryImage Image     `json:"summaryImage"`
	GeneratedAt  time.Time `json:"generatedAt"`
}
