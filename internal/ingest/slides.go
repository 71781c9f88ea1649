// Package ingest turns uploaded files into slide images.
package ingest

import (
	"context"
	"errors"
	"strings"

	"aiquiz-service/internal/domain"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Rasterizer renders every page of a PDF to an image, in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte) ([]domain.Image, error)
}

// File is one uploaded document.
type File struct {
	Name string
	Data []byte
}

type Ingester struct {
	pdf Rasterizer
	log zerolog.Logger
}

func NewIngester(pdf Rasterizer, log zerolog.Logger) *Ingester {
	return &Ingester{pdf: pdf, log: log.With().Str("component", "ingest").Logger()}
}

// Slides converts one file. Images become a single slide, PDFs one slide per
// page numbered from 1. Every slide starts selected.
func (i *Ingester) Slides(ctx context.Context, f File) ([]domain.Slide, error) {
	mt := mimetype.Detect(f.Data)
	switch {
	case strings.HasPrefix(mt.String(), "image/"):
		return []domain.Slide{newSlide(1, domain.Image{MIMEType: mt.String(), Data: f.Data})}, nil
	case mt.Is("application/pdf"):
		if i.pdf == nil {
			return nil, &domain.IngestionError{Format: mt.String(), Err: domain.ErrRasterizerUnavailable}
		}
		pages, err := i.pdf.Rasterize(ctx, f.Data)
		if err != nil {
			return nil, &domain.IngestionError{Format: mt.String(), Err: err}
		}
		slides := make([]domain.Slide, 0, len(pages))
		for n, img := range pages {
			slides = append(slides, newSlide(n+1, img))
		}
		return slides, nil
	default:
		return nil, &domain.IngestionError{Format: mt.String(), Err: domain.ErrUnsupportedFormat}
	}
}

// IngestAll converts several files, numbering pages sequentially after
// offset. Unsupported files are skipped; the call fails only when nothing
// usable was uploaded.
func (i *Ingester) IngestAll(ctx context.Context, files []File, offset int) ([]domain.Slide, error) {
	var (
		out     []domain.Slide
		lastErr error
	)
	next := offset + 1
	for _, f := range files {
		slides, err := i.Slides(ctx, f)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			i.log.Warn().Err(err).Str("file", f.Name).Msg("skipping file")
			lastErr = err
			continue
		}
		for _, s := range slides {
			s.PageNumber = next
			next++
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		if lastErr == nil {
			lastErr = &domain.IngestionError{Err: errors.New("no files uploaded")}
		}
		return nil, lastErr
	}
	return out, nil
}

func newSlide(page int, img domain.Image) domain.Slide {
	return domain.Slide{
		ID:         uuid.NewString(),
		PageNumber: page,
		Image:      img,
		Selected:   true,
	}
}
