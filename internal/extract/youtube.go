package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"aiquiz-service/internal/domain"
	"github.com/PuerkitoBio/goquery"
)

var youtubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/shorts/([a-zA-Z0-9_-]{11})`),
}

// WatchURL is where video pages are fetched from.
var WatchURL = "https://www.youtube.com/watch?v="

// YouTubeID returns the 11 character video id of a YouTube link.
func YouTubeID(rawURL string) (string, bool) {
	for _, re := range youtubePatterns {
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return m[1], true
		}
	}
	return "", false
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
}

type playerResponse struct {
	Captions struct {
		Renderer struct {
			Tracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	VideoDetails struct {
		Title string `json:"title"`
	} `json:"videoDetails"`
}

type timedText struct {
	Lines []string `xml:"text"`
}

func (e *Extractor) youtube(ctx context.Context, videoID string) (domain.ExtractedContent, error) {
	page, err := e.get(ctx, WatchURL+videoID)
	if err != nil {
		return domain.ExtractedContent{}, err
	}

	player, err := parsePlayerResponse(page)
	if err != nil {
		return domain.ExtractedContent{}, err
	}
	track, ok := pickTrack(player.Captions.Renderer.Tracks)
	if !ok {
		return domain.ExtractedContent{}, domain.ErrNoTranscript
	}

	raw, err := e.get(ctx, track.BaseURL)
	if err != nil {
		return domain.ExtractedContent{}, err
	}
	transcript, err := parseTimedText(raw)
	if err != nil {
		return domain.ExtractedContent{}, err
	}
	if utf8.RuneCountInString(transcript) < minTranscriptChars {
		return domain.ExtractedContent{}, fmt.Errorf("%w: transcript too short", domain.ErrInsufficientContent)
	}

	return domain.ExtractedContent{
		Source: domain.SourceYouTube,
		Title:  videoTitle(page, player),
		Body:   truncate(transcript, e.maxChars),
	}, nil
}

// parsePlayerResponse decodes the ytInitialPlayerResponse object embedded in
// a watch page.
func parsePlayerResponse(page []byte) (playerResponse, error) {
	var player playerResponse
	idx := bytes.Index(page, []byte("ytInitialPlayerResponse"))
	if idx < 0 {
		return player, domain.ErrNoTranscript
	}
	start := bytes.IndexByte(page[idx:], '{')
	if start < 0 {
		return player, domain.ErrNoTranscript
	}
	dec := json.NewDecoder(bytes.NewReader(page[idx+start:]))
	if err := dec.Decode(&player); err != nil {
		return player, fmt.Errorf("decode player response: %w", err)
	}
	return player, nil
}

// pickTrack prefers Korean captions, then the first track.
func pickTrack(tracks []captionTrack) (captionTrack, bool) {
	if len(tracks) == 0 {
		return captionTrack{}, false
	}
	for _, t := range tracks {
		if t.LanguageCode == "ko" {
			return t, true
		}
	}
	return tracks[0], true
}

func parseTimedText(raw []byte) (string, error) {
	var tt timedText
	if err := xml.Unmarshal(raw, &tt); err != nil {
		return "", fmt.Errorf("decode captions: %w", err)
	}
	parts := make([]string, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		// captions are often double escaped
		text := collapse(html.UnescapeString(line))
		if text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", domain.ErrNoTranscript
	}
	return strings.Join(parts, " "), nil
}

func videoTitle(page []byte, player playerResponse) string {
	if t := strings.TrimSpace(player.VideoDetails.Title); t != "" {
		return t
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err == nil {
		if t := strings.TrimSpace(strings.TrimSuffix(doc.Find("title").First().Text(), " - YouTube")); t != "" {
			return t
		}
	}
	return "YouTube Video"
}
