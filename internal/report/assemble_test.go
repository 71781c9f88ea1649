package report

import (
	"errors"
	"testing"

	"aiquiz-service/internal/domain"
)

func TestAssembleFixedPageOrder(t *testing.T) {
	participants := []domain.Participant{
		{ID: "a", DisplayName: "Alice", Score: 900, JoinOrder: 0},
		{ID: "b", DisplayName: "Bob", Score: 1200, JoinOrder: 1},
		{ID: "c", DisplayName: "Cara", Score: 900, JoinOrder: 2},
		{ID: "d", DisplayName: "Dan", Score: 0, JoinOrder: 3},
	}
	artifacts := domain.FinalArtifacts{
		Poster:       domain.Image{MIMEType: "image/png", Data: []byte("poster")},
		SummaryText:  "We covered photosynthesis.",
		SummaryImage: domain.Image{MIMEType: "image/png", Data: []byte("infographic")},
	}

	doc, err := Assemble(participants, artifacts)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(doc.Pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(doc.Pages))
	}
	kinds := []PageKind{PagePoster, PageSummary, PageImage}
	for i, kind := range kinds {
		if doc.Pages[i].Kind != kind {
			t.Fatalf("page %d: expected %s, got %s", i+1, kind, doc.Pages[i].Kind)
		}
	}
	if string(doc.Pages[0].Image.Data) != "poster" || string(doc.Pages[2].Image.Data) != "infographic" {
		t.Fatalf("image pages swapped: %+v", doc.Pages)
	}

	summary := doc.Pages[1]
	if summary.Title != SummaryTitle || summary.Body != artifacts.SummaryText {
		t.Fatalf("unexpected summary page: %+v", summary)
	}
	want := []string{
		"1. Bob - 1200 pts",
		"2. Alice - 900 pts",
		"3. Cara - 900 pts",
		"4. Dan - 0 pts",
	}
	if len(summary.Ranking) != len(want) {
		t.Fatalf("expected %d ranking lines, got %v", len(want), summary.Ranking)
	}
	for i := range want {
		if summary.Ranking[i] != want[i] {
			t.Fatalf("ranking line %d: expected %q, got %q", i, want[i], summary.Ranking[i])
		}
	}
}

func TestAssembleRequiresArtifacts(t *testing.T) {
	_, err := Assemble(nil, domain.FinalArtifacts{SummaryImage: domain.Image{Data: []byte{1}}})
	if !errors.Is(err, ErrMissingArtifact) {
		t.Fatalf("expected missing poster, got %v", err)
	}
	_, err = Assemble(nil, domain.FinalArtifacts{Poster: domain.Image{Data: []byte{1}}})
	if !errors.Is(err, ErrMissingArtifact) {
		t.Fatalf("expected missing summary image, got %v", err)
	}
}
