// Package extract pulls lesson text out of YouTube videos and web pages.
package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"aiquiz-service/internal/domain"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxChars  = 15000
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	DefaultTimeout   = 15 * time.Second

	minTranscriptChars = 50
	minWebpageChars    = 100
	maxBodyBytes       = 8 << 20
)

type Options struct {
	Client    *http.Client
	UserAgent string
	MaxChars  int
	Timeout   time.Duration
	Logger    zerolog.Logger
}

type Extractor struct {
	client    *http.Client
	userAgent string
	maxChars  int
	timeout   time.Duration
	log       zerolog.Logger
}

func New(opts Options) *Extractor {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Extractor{
		client:    opts.Client,
		userAgent: opts.UserAgent,
		maxChars:  opts.MaxChars,
		timeout:   opts.Timeout,
		log:       opts.Logger.With().Str("component", "extract").Logger(),
	}
}

// Extract fetches rawURL and returns its text. YouTube links yield the
// caption transcript, anything else the visible page text. Every failure is
// an *domain.ExtractionError.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (domain.ExtractedContent, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.ExtractedContent{}, &domain.ExtractionError{URL: rawURL, Err: domain.ErrInvalidURL}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var content domain.ExtractedContent
	if id, ok := YouTubeID(rawURL); ok {
		content, err = e.youtube(ctx, id)
	} else {
		content, err = e.webpage(ctx, rawURL)
	}
	if err != nil {
		e.log.Warn().Err(err).Str("url", rawURL).Msg("extraction failed")
		return domain.ExtractedContent{}, &domain.ExtractionError{URL: rawURL, Err: err}
	}
	content.URL = rawURL
	e.log.Info().Str("url", rawURL).Str("source", content.Source).Int("chars", utf8.RuneCountInString(content.Body)).Msg("content extracted")
	return content, nil
}

func (e *Extractor) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", req.URL.Host, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

// collapse joins whitespace runs into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
