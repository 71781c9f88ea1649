// Package report lays out the end-of-session export: winner poster, summary
// with final rankings, then the summary infographic.
package report

import (
	"errors"
	"fmt"

	"aiquiz-service/internal/domain"
)

// ErrMissingArtifact is returned when a generated artifact is absent.
var ErrMissingArtifact = errors.New("missing report artifact")

const (
	SummaryTitle   = "AI Learning Report"
	RankingHeading = "Final Rankings"
)

type PageKind string

const (
	PagePoster  PageKind = "poster"
	PageSummary PageKind = "summary"
	PageImage   PageKind = "summary-image"
)

// Page is one page of the export. Image pages carry Image; the summary page
// carries the text fields.
type Page struct {
	Kind    PageKind
	Image   domain.Image
	Title   string
	Body    string
	Heading string
	Ranking []string
}

// Document is the ordered page list handed to a renderer.
type Document struct {
	Pages []Page
}

// Assemble builds the three pages in their fixed order. participants may be
// in any order; they are ranked by score with ties kept in join order.
func Assemble(participants []domain.Participant, artifacts domain.FinalArtifacts) (Document, error) {
	if artifacts.Poster.Empty() {
		return Document{}, fmt.Errorf("%w: poster", ErrMissingArtifact)
	}
	if artifacts.SummaryImage.Empty() {
		return Document{}, fmt.Errorf("%w: summary image", ErrMissingArtifact)
	}

	return Document{Pages: []Page{
		{Kind: PagePoster, Image: artifacts.Poster},
		{
			Kind:    PageSummary,
			Title:   SummaryTitle,
			Body:    artifacts.SummaryText,
			Heading: RankingHeading,
			Ranking: RankingLines(domain.RankParticipants(participants)),
		},
		{Kind: PageImage, Image: artifacts.SummaryImage},
	}}, nil
}

// RankingLines formats already ranked participants as "1. Name - 900 pts".
func RankingLines(ranked []domain.Participant) []string {
	lines := make([]string, 0, len(ranked))
	for i, p := range ranked {
		lines = append(lines, fmt.Sprintf("%d. %s - %d pts", i+1, p.DisplayName, p.Score))
	}
	return lines
}
