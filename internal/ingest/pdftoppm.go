package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"aiquiz-service/internal/domain"
)

// DefaultDPI roughly matches a 2x browser render of a slide deck.
const DefaultDPI = 110

// Pdftoppm rasterises PDFs with poppler's pdftoppm executable.
type Pdftoppm struct {
	Path string
	DPI  int
}

func (p Pdftoppm) Rasterize(ctx context.Context, pdf []byte) ([]domain.Image, error) {
	bin := p.Path
	if bin == "" {
		bin = "pdftoppm"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRasterizerUnavailable, err)
	}
	dpi := p.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	dir, err := os.MkdirTemp("", "slides-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, err
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-jpeg", "-r", strconv.Itoa(dpi), in, filepath.Join(dir, "page"))
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	files, err := filepath.Glob(filepath.Join(dir, "page-*.jpg"))
	if err != nil {
		return nil, err
	}
	sortPages(files)

	images := make([]domain.Image, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		images = append(images, domain.Image{MIMEType: "image/jpeg", Data: data})
	}
	return images, nil
}

// sortPages orders page-N.jpg by N whatever the zero padding.
func sortPages(files []string) {
	sort.Slice(files, func(i, j int) bool {
		return pageNumber(files[i]) < pageNumber(files[j])
	})
}

func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".jpg")
	_, num, _ := strings.Cut(base, "-")
	n, _ := strconv.Atoi(num)
	return n
}
