package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"aiquiz-service/internal/domain"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// strippedTags never carry lesson text.
const strippedTags = "script, style, nav, footer, header, noscript"

func (e *Extractor) webpage(ctx context.Context, target string) (domain.ExtractedContent, error) {
	page, err := e.get(ctx, target)
	if err != nil {
		return domain.ExtractedContent{}, err
	}
	title, body, err := pageText(page)
	if err != nil {
		return domain.ExtractedContent{}, err
	}
	if utf8.RuneCountInString(body) < minWebpageChars {
		return domain.ExtractedContent{}, fmt.Errorf("%w: page text too short", domain.ErrInsufficientContent)
	}
	return domain.ExtractedContent{
		Source: domain.SourceWebpage,
		Title:  title,
		Body:   truncate(body, e.maxChars),
	}, nil
}

// pageText returns the document title and its visible text with whitespace collapsed.
func pageText(page []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = "Untitled"
	}

	doc.Find(strippedTags).Remove()
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	var parts []string
	for _, n := range root.Nodes {
		parts = appendText(parts, n)
	}
	return title, collapse(strings.Join(parts, " ")), nil
}

// appendText collects text nodes in document order. Joining them with spaces
// keeps words of adjacent blocks apart.
func appendText(parts []string, n *html.Node) []string {
	if n.Type == html.TextNode {
		return append(parts, n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		parts = appendText(parts, c)
	}
	return parts
}
