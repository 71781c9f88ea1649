package http

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"aiquiz-service/internal/app"
	"aiquiz-service/internal/domain"
	"aiquiz-service/internal/generate"
	"aiquiz-service/internal/ingest"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SlideIngester turns uploads into slide images.
type SlideIngester interface {
	IngestAll(ctx context.Context, files []ingest.File, offset int) ([]domain.Slide, error)
}

// ContentExtractor pulls learning text out of a URL.
type ContentExtractor interface {
	Extract(ctx context.Context, url string) (domain.ExtractedContent, error)
}

// QuestionGenerator drafts and rewrites questions and slide art.
type QuestionGenerator interface {
	Questions(ctx context.Context, src generate.Source, cfg domain.GenerationConfig) ([]domain.Question, error)
	RegenerateQuestion(ctx context.Context, q domain.Question, instruction string, slides []domain.Slide) (domain.Question, error)
	SlideVariations(ctx context.Context, src domain.Image, instruction string, count int) ([]domain.Image, error)
}

// AuthoringHandler serves the editor: uploads, extraction, generation and decks.
type AuthoringHandler struct {
	ingester       SlideIngester
	extractor      ContentExtractor
	generator      QuestionGenerator
	decks          *app.DeckService
	maxUploadBytes int64
	log            zerolog.Logger
}

type AuthoringOptions struct {
	Ingester       SlideIngester
	Extractor      ContentExtractor
	Generator      QuestionGenerator
	Decks          *app.DeckService
	MaxUploadBytes int64
	Logger         zerolog.Logger
}

const defaultMaxUpload = 50 << 20

func NewAuthoringHandler(opts AuthoringOptions) *AuthoringHandler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	return &AuthoringHandler{
		ingester:       opts.Ingester,
		extractor:      opts.Extractor,
		generator:      opts.Generator,
		decks:          opts.Decks,
		maxUploadBytes: opts.MaxUploadBytes,
		log:            opts.Logger.With().Str("component", "authoring_handler").Logger(),
	}
}

// UploadSlides handles POST /api/slides (multipart "files", optional "offset").
func (h *AuthoringHandler) UploadSlides(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Fail(c, http.StatusRequestEntityTooLarge, ErrFileTooLarge)
			return
		}
		Fail(c, http.StatusBadRequest, ErrFileRequired)
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		Fail(c, http.StatusBadRequest, ErrFileRequired)
		return
	}
	offset := 0
	if raw := c.PostForm("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil || offset < 0 {
			FailWithFields(c, http.StatusBadRequest, ErrValidation, map[string]string{"offset": "offset must be a non-negative integer"})
			return
		}
	}

	files := make([]ingest.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readUpload(fh)
		if err != nil {
			Fail(c, http.StatusBadRequest, ErrInvalidPayload)
			return
		}
		files = append(files, ingest.File{Name: fh.Filename, Data: data})
	}

	slides, err := h.ingester.IngestAll(c.Request.Context(), files, offset)
	if err != nil {
		h.log.Warn().Err(err).Int("files", len(files)).Msg("slide ingestion failed")
		FailErr(c, err)
		return
	}
	Success(c, http.StatusOK, gin.H{"slides": slidesToDTO(slides)})
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

type extractRequest struct {
	URL string `json:"url" binding:"required,url"`
}

// Extract handles POST /api/extract.
func (h *AuthoringHandler) Extract(c *gin.Context) {
	var req extractRequest
	if fields := Bind(c, &req); fields != nil {
		FailWithFields(c, http.StatusBadRequest, ErrValidation, fields)
		return
	}
	content, err := h.extractor.Extract(c.Request.Context(), req.URL)
	if err != nil {
		h.log.Warn().Err(err).Str("url", req.URL).Msg("extraction failed")
		FailErr(c, err)
		return
	}
	Success(c, http.StatusOK, content)
}

type generateRequest struct {
	Slides  []slideDTO               `json:"slides" binding:"omitempty,dive"`
	Content *domain.ExtractedContent `json:"content"`
	Config  *domain.GenerationConfig `json:"config" binding:"required"`
}

// GenerateQuestions handles POST /api/questions/generate.
func (h *AuthoringHandler) GenerateQuestions(c *gin.Context) {
	if !h.generationEnabled(c) {
		return
	}
	var req generateRequest
	if fields := Bind(c, &req); fields != nil {
		FailWithFields(c, http.StatusBadRequest, ErrValidation, fields)
		return
	}
	slides, err := slidesFromDTO(req.Slides)
	if err != nil {
		FailErr(c, err)
		return
	}
	questions, err := h.generator.Questions(c.Request.Context(), generate.Source{Slides: slides, Content: req.Content}, *req.Config)
	if err != nil {
		h.log.Warn().Err(err).Msg("question generation failed")
		FailErr(c, err)
		return
	}
	Success(c, http.StatusOK, gin.H{"questions": questions})
}

type regenerateRequest struct {
	Question    domain.Question `json:"question"`
	Instruction string          `json:"instruction" binding:"required"`
	Slides      []slideDTO      `json:"slides" binding:"omitempty,dive"`
}

// RegenerateQuestion handles POST /api/questions/regenerate.
func (h *AuthoringHandler) RegenerateQuestion(c *gin.Context) {
	if !h.generationEnabled(c) {
		return
	}
	var req regenerateRequest
	if fields := Bind(c, &req); fields != nil {
		FailWithFields(c, http.StatusBadRequest, ErrValidation, fields)
		return
	}
	slides, err := slidesFromDTO(req.Slides)
	if err != nil {
		FailErr(c, err)
		return
	}
	q, err := h.generator.RegenerateQuestion(c.Request.Context(), app.NormalizeQuestion(req.Question), req.Instruction, slides)
	if err != nil {
		h.log.Warn().Err(err).Str("question_id", req.Question.ID).Msg("question rewrite failed")
		FailErr(c, err)
		return
	}
	Success(c, http.StatusOK, gin.H{"question": q})
}

type variationsRequest struct {
	Image       string `json:"image" binding:"required"`
	Instruction string `json:"instruction"`
	Count       int    `json:"count" binding:"omitempty,gte=1,lte=4"`
}

// SlideVariations handles POST /api/slides/variations.
func (h *AuthoringHandler) SlideVariations(c *gin.Context) {
	if !h.generationEnabled(c) {
		return
	}
	var req variationsRequest
	if fields := Bind(c, &req); fields != nil {
		FailWithFields(c, http.StatusBadRequest, ErrValidation, fields)
		return
	}
	img, err := domain.ParseDataURL(req.Image)
	if err != nil {
		FailErr(c, err)
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}
	images, err := h.generator.SlideVariations(c.Request.Context(), img, req.Instruction, req.Count)
	if err != nil {
		FailErr(c, err)
		return
	}
	Success(c, http.StatusOK, gin.H{"images": imagesToDTO(images)})
}

type saveDeckRequest struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Questions []domain.Question `json:"questions" binding:"required,min=1"`
}

// SaveDeck handles POST /api/decks.
func (h *AuthoringHandler) SaveDeck(c *gin.Context) {
	var req saveDeckRequest
	if fields := Bind(c, &req); fields != nil {
		FailWithFields(c, http.StatusBadRequest, ErrValidation, fields)
		return
	}
	deck, err := h.decks.Save(c.Request.Context(), domain.Deck{ID: req.ID, Title: req.Title, Questions: req.Questions})
	if err != nil {
		FailErr(c, err)
		return
	}
	h.log.Info().Str("deck_id", deck.ID).Int("questions", len(deck.Questions)).Msg("deck saved")
	Success(c, http.StatusCreated, deck)
}

// GetDeck handles GET /api/decks/:id.
func (h *AuthoringHandler) GetDeck(c *gin.Context) {
	deck, err := h.decks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		FailErr(c, err)
		return
	}
	Success(c, http.StatusOK, deck)
}

func (h *AuthoringHandler) generationEnabled(c *gin.Context) bool {
	if h.generator == nil {
		Fail(c, http.StatusServiceUnavailable, ErrUnavailable)
		return false
	}
	return true
}
