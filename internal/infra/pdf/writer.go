// Package pdf renders assembled session reports as A4 documents.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"aiquiz-service/internal/report"
	"github.com/signintech/gopdf"
)

// ErrFontRequired is returned when no TrueType font is configured. The
// summary text is Korean, so the built-in PDF fonts cannot draw it.
var ErrFontRequired = errors.New("pdf export needs a ttf font")

const (
	fontFamily = "report"
	mm         = 72.0 / 25.4

	margin       = 15 * mm
	summaryImgW  = 180 * mm
	summaryImgH  = 240 * mm
	titleSize    = 22
	headingSize  = 15
	bodySize     = 11
	lineHeight   = 16.0
	headingSpace = 28.0
)

// Writer renders report.Documents with gopdf.
type Writer struct {
	font []byte
}

// NewWriter loads the TrueType font at fontPath. An empty path yields a
// Writer whose Render always fails with ErrFontRequired.
func NewWriter(fontPath string) (*Writer, error) {
	if fontPath == "" {
		return &Writer{}, nil
	}
	data, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	return &Writer{font: data}, nil
}

func (w *Writer) Render(out io.Writer, doc report.Document) error {
	if len(w.font) == 0 {
		return ErrFontRequired
	}
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	if err := pdf.AddTTFFontData(fontFamily, w.font); err != nil {
		return fmt.Errorf("load font: %w", err)
	}

	for i, page := range doc.Pages {
		pdf.AddPage()
		var err error
		switch page.Kind {
		case report.PagePoster:
			err = drawImage(pdf, page, margin, margin, gopdf.PageSizeA4.W-2*margin, gopdf.PageSizeA4.H-2*margin)
		case report.PageImage:
			err = drawImage(pdf, page, margin, margin, summaryImgW, summaryImgH)
		case report.PageSummary:
			err = drawSummary(pdf, page)
		default:
			err = fmt.Errorf("unknown page kind %q", page.Kind)
		}
		if err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
	}
	return pdf.Write(out)
}

// drawImage fits the image into the box keeping its aspect ratio, centred
// horizontally.
func drawImage(pdf *gopdf.GoPdf, page report.Page, x, y, maxW, maxH float64) error {
	holder, err := gopdf.ImageHolderByBytes(page.Image.Data)
	if err != nil {
		return err
	}
	w, h := maxW, maxH
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(page.Image.Data)); err == nil && cfg.Width > 0 && cfg.Height > 0 {
		ratio := float64(cfg.Width) / float64(cfg.Height)
		if maxW/maxH > ratio {
			w = maxH * ratio
		} else {
			h = maxW / ratio
		}
	}
	x += (maxW - w) / 2
	return pdf.ImageByHolder(holder, x, y, &gopdf.Rect{W: w, H: h})
}

// drawSummary writes title, report body and rankings. Text that runs past
// the bottom margin is cut off.
func drawSummary(pdf *gopdf.GoPdf, page report.Page) error {
	width := gopdf.PageSizeA4.W - 2*margin
	bottom := gopdf.PageSizeA4.H - margin
	y := margin

	if err := pdf.SetFont(fontFamily, "", titleSize); err != nil {
		return err
	}
	pdf.SetXY(margin, y)
	if err := pdf.Cell(nil, page.Title); err != nil {
		return err
	}
	y += headingSpace + 8

	if err := pdf.SetFont(fontFamily, "", bodySize); err != nil {
		return err
	}
	y, err := writeLines(pdf, wrap(pdf, page.Body, width), y, bottom)
	if err != nil {
		return err
	}

	y += lineHeight
	if y+headingSpace > bottom {
		return nil
	}
	if err := pdf.SetFont(fontFamily, "", headingSize); err != nil {
		return err
	}
	pdf.SetXY(margin, y)
	if err := pdf.Cell(nil, page.Heading); err != nil {
		return err
	}
	y += headingSpace

	if err := pdf.SetFont(fontFamily, "", bodySize); err != nil {
		return err
	}
	_, err = writeLines(pdf, page.Ranking, y, bottom)
	return err
}

func writeLines(pdf *gopdf.GoPdf, lines []string, y, bottom float64) (float64, error) {
	for _, line := range lines {
		if y+lineHeight > bottom {
			break
		}
		pdf.SetXY(margin, y)
		if err := pdf.Cell(nil, line); err != nil {
			return y, err
		}
		y += lineHeight
	}
	return y, nil
}

// wrap splits text on newlines, then to the given width.
func wrap(pdf *gopdf.GoPdf, text string, width float64) []string {
	var out []string
	for _, para := range bytes.Split([]byte(text), []byte("\n")) {
		if len(bytes.TrimSpace(para)) == 0 {
			out = append(out, "")
			continue
		}
		lines, err := pdf.SplitText(string(para), width)
		if err != nil {
			out = append(out, string(para))
			continue
		}
		out = append(out, lines...)
	}
	return out
}
