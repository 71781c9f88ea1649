package http

import (
	"fmt"
	"time"

	"aiquiz-service/internal/domain"
)

// slideDTO carries slide images as data URLs.
type slideDTO struct {
	ID         string `json:"id"`
	PageNumber int    `json:"pageNumber"`
	Image      string `json:"image" binding:"required"`
	Selected   bool   `json:"selected"`
}

func slidesToDTO(slides []domain.Slide) []slideDTO {
	out := make([]slideDTO, len(slides))
	for i, s := range slides {
		out[i] = slideDTO{ID: s.ID, PageNumber: s.PageNumber, Image: s.Image.DataURL(), Selected: s.Selected}
	}
	return out
}

func slidesFromDTO(in []slideDTO) ([]domain.Slide, error) {
	out := make([]domain.Slide, len(in))
	for i, s := range in {
		img, err := domain.ParseDataURL(s.Image)
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", i+1, err)
		}
		out[i] = domain.Slide{ID: s.ID, PageNumber: s.PageNumber, Image: img, Selected: s.Selected}
	}
	return out, nil
}

func imagesToDTO(images []domain.Image) []string {
	out := make([]string, len(images))
	for i, img := range images {
		out[i] = img.DataURL()
	}
	return out
}

type artifactsDTO struct {
	Poster       string    `json:"poster"`
	SummaryText  string    `json:"summaryText"`
	SummaryImage string    `json:"summaryImage"`
	GeneratedAt  time.Time `json:"generatedAt"`
}

func artifactsToDTO(a domain.FinalArtifacts) artifactsDTO {
	return artifactsDTO{
		Poster:       a.Poster.DataURL(),
		SummaryText:  a.SummaryText,
		SummaryImage: a.SummaryImage.DataURL(),
		GeneratedAt:  a.GeneratedAt,
	}
}
