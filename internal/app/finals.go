package app

import (
	"context"
	"io"
	"time"

	"aiquiz-service/internal/domain"
	"aiquiz-service/internal/report"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ArtifactGenerator produces the end-of-session images and text.
type ArtifactGenerator interface {
	WinnerPoster(ctx context.Context, profile domain.WinnerProfile) (domain.Image, error)
	SessionReport(ctx context.Context, slides []domain.Slide, questions []domain.Question) (domain.SessionReport, error)
}

// DocumentRenderer writes an assembled report.
type DocumentRenderer interface {
	Render(w io.Writer, doc report.Document) error
}

// FinalsRequest is the presenter's input for the closing artifacts.
type FinalsRequest struct {
	CompanyName string
	WinnerName  string
	WinnerPhoto domain.Image
	Slides      []domain.Slide
}

// FinalsService generates and exports the closing report of a session.
type FinalsService struct {
	live     *LiveService
	gen      ArtifactGenerator
	renderer DocumentRenderer
	now      func() time.Time
	log      zerolog.Logger
}

func NewFinalsService(live *LiveService, gen ArtifactGenerator, renderer DocumentRenderer, log zerolog.Logger) *FinalsService {
	return &FinalsService{
		live:     live,
		gen:      gen,
		renderer: renderer,
		now:      time.Now,
		log:      log.With().Str("component", "finals").Logger(),
	}
}

// Generate builds poster and report concurrently. Artifacts are stored only
// when both succeed, so a failure keeps any earlier result.
func (f *FinalsService) Generate(ctx context.Context, sessionID string, req FinalsRequest) (domain.FinalArtifacts, error) {
	session, err := f.live.Session(sessionID)
	if err != nil {
		return domain.FinalArtifacts{}, err
	}
	if f.gen == nil {
		return domain.FinalArtifacts{}, domain.ErrGenerationDisabled
	}
	host := session.Host()
	if host.State().Phase != domain.PhaseSessionComplete {
		return domain.FinalArtifacts{}, domain.ErrSessionNotComplete
	}

	winner := req.WinnerName
	if winner == "" {
		if ranking := host.Ranking(); len(ranking) > 0 {
			winner = ranking[0].DisplayName
		}
	}
	profile := domain.WinnerProfile{
		CompanyName: req.CompanyName,
		WinnerName:  winner,
		Photo:       req.WinnerPhoto,
	}

	var (
		poster  domain.Image
		summary domain.SessionReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		poster, err = f.gen.WinnerPoster(gctx, profile)
		return err
	})
	g.Go(func() error {
		var err error
		summary, err = f.gen.SessionReport(gctx, selectedSlides(req.Slides), host.Questions())
		return err
	})
	if err := g.Wait(); err != nil {
		f.log.Warn().Err(err).Str("session_id", sessionID).Msg("final artifacts failed")
		return domain.FinalArtifacts{}, err
	}

	artifacts := domain.FinalArtifacts{
		Poster:       poster,
		SummaryText:  summary.Text,
		SummaryImage: summary.Infographic,
		GeneratedAt:  f.now().UTC(),
	}
	session.setFinals(artifacts)
	f.log.Info().Str("session_id", sessionID).Str("winner", winner).Msg("final artifacts generated")
	return artifacts, nil
}

// Export renders the report of sessionID into w.
func (f *FinalsService) Export(_ context.Context, sessionID string, w io.Writer) error {
	session, err := f.live.Session(sessionID)
	if err != nil {
		return err
	}
	artifacts, ok := session.Finals()
	if !ok {
		return domain.ErrFinalsNotReady
	}
	doc, err := report.Assemble(session.Host().Participants(), artifacts)
	if err != nil {
		return err
	}
	return f.renderer.Render(w, doc)
}

func selectedSlides(slides []domain.Slide) []domain.Slide {
	out := make([]domain.Slide, 0, len(slides))
	for _, s := range slides {
		if s.Selected {
			out = append(out, s)
		}
	}
	return out
}
