package domain

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrInvalidImage is returned for image payloads that cannot be decoded.
var ErrInvalidImage = errors.New("invalid image data")

// DataURL encodes the image as a data: URL, or "" when empty.
func (i Image) DataURL() string {
	if i.Empty() {
		return ""
	}
	mime := i.MIMEType
	if mime == "" {
		mime = mimetype.Detect(i.Data).String()
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// ParseDataURL accepts a data: URL or bare base64. The MIME type comes from
// the URL header when present and is sniffed otherwise.
func ParseDataURL(raw string) (Image, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Image{}, nil
	}
	var mime string
	if strings.HasPrefix(raw, "data:") {
		header, payload, ok := strings.Cut(raw, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return Image{}, ErrInvalidImage
		}
		mime = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		raw = payload
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return Image{}, ErrInvalidImage
	}
	if mime == "" {
		mime = mimetype.Detect(data).String()
	}
	return Image{MIMEType: mime, Data: data}, nil
}
