package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/ledongthuc/pdf"

	"github.com/insightdelivered/statement-converter/internal/models"
)

// ErrNoTextLayer is returned when a PDF has no usable text, which usually
// means it is a scanned image.
var ErrNoTextLayer = errors.New("no readable text could be extracted from PDF; the file may be image-based or scanned")

// Extractor produces the per-page token lists of a statement PDF.
type Extractor interface {
	ExtractFile(ctx context.Context, path string) (models.PDFFile, error)
	ExtractReader(ctx context.Context, name string, r io.ReaderAt, size int64) (models.PDFFile, error)
}

const (
	// defaultColumnGap is the horizontal gap, in points, above which two runs
	// on one line are separate table cells.
	defaultColumnGap = 15
	// spaceRatio of the font size is the gap that reads as a word space.
	spaceRatio = 0.2
)

// PDFExtractor reads the text layer with ledongthuc/pdf. Glyphs are grouped
// into lines by baseline and into runs by horizontal distance. Runs become
// tokens; a column gap between two runs becomes an empty token.
type PDFExtractor struct {
	ColumnGap float64
	Logger    *log.Logger
}

// New returns a PDFExtractor with default geometry.
func New(logger *log.Logger) *PDFExtractor {
	if logger == nil {
		logger = log.Default()
	}
	return &PDFExtractor{ColumnGap: defaultColumnGap, Logger: logger}
}

// ExtractFile reads the PDF at path. The file name becomes the PDFFile name.
func (e *PDFExtractor) ExtractFile(ctx context.Context, path string) (file models.PDFFile, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: PDF library crashed: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return models.PDFFile{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return e.extract(ctx, filepath.Base(path), r)
}

// ExtractReader reads an in-memory PDF such as an upload.
func (e *PDFExtractor) ExtractReader(ctx context.Context, name string, ra io.ReaderAt, size int64) (file models.PDFFile, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: PDF library crashed: %v", name, r)
		}
	}()

	r, err := pdf.NewReader(ra, size)
	if err != nil {
		return models.PDFFile{}, fmt.Errorf("reading %s: %w", name, err)
	}
	return e.extract(ctx, name, r)
}

func (e *PDFExtractor) extract(ctx context.Context, name string, r *pdf.Reader) (models.PDFFile, error) {
	numPages := r.NumPage()
	if numPages == 0 {
		return models.PDFFile{}, fmt.Errorf("%s: PDF has no pages", name)
	}

	gap := e.ColumnGap
	if gap <= 0 {
		gap = defaultColumnGap
	}

	pages := make([][]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return models.PDFFile{}, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, []string{})
			continue
		}
		pages = append(pages, tokensFromGlyphs(page.Content().Text, gap))
	}

	if !isReadableText(pages) {
		// Some encoders only survive the row-based path.
		e.logger().Debug("Content stream unreadable, trying rows", "file", name)
		pages = extractByRow(r, numPages)
		if !isReadableText(pages) {
			return models.PDFFile{}, fmt.Errorf("%s: %w", name, ErrNoTextLayer)
		}
	}

	file := models.PDFFile{Name: name, Pages: pages}
	e.logger().Debug("Extracted text layer", "file", name, "pages", len(pages), "tokens", file.TokenCount())
	return file, nil
}

func (e *PDFExtractor) logger() *log.Logger {
	if e.Logger == nil {
		return log.Default()
	}
	return e.Logger
}

type line struct {
	y      int
	glyphs []pdf.Text
}

// tokensFromGlyphs turns a page's glyphs into tokens in reading order: lines
// top to bottom, runs left to right.
func tokensFromGlyphs(glyphs []pdf.Text, columnGap float64) []string {
	byY := make(map[int]*line)
	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		// Round Y to group glyphs sharing a baseline.
		y := int(math.Round(g.Y))
		l, ok := byY[y]
		if !ok {
			l = &line{y: y}
			byY[y] = l
		}
		l.glyphs = append(l.glyphs, g)
	}

	lines := make([]*line, 0, len(byY))
	for _, l := range byY {
		lines = append(lines, l)
	}
	// PDF Y grows upwards.
	sort.Slice(lines, func(a, b int) bool { return lines[a].y > lines[b].y })

	tokens := []string{}
	var run strings.Builder
	flush := func() {
		s := strings.TrimSpace(run.String())
		run.Reset()
		if s != "" && s != models.PageBreak {
			tokens = append(tokens, s)
		}
	}

	for _, l := range lines {
		sort.SliceStable(l.glyphs, func(a, b int) bool { return l.glyphs[a].X < l.glyphs[b].X })

		var end float64
		for i, g := range l.glyphs {
			if i > 0 {
				gap := g.X - end
				switch {
				case gap > columnGap:
					flush()
					tokens = append(tokens, "")
				case gap > spaceRatio*g.FontSize && !strings.HasSuffix(run.String(), " ") && g.S != " ":
					run.WriteByte(' ')
				}
			}
			run.WriteString(g.S)
			end = g.X + g.W
		}
		flush()
	}

	return tokens
}

// extractByRow uses the library's own row grouping, one token per word.
func extractByRow(r *pdf.Reader, numPages int) [][]string {
	pages := make([][]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		tokens := []string{}
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, tokens)
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			pages = append(pages, tokens)
			continue
		}
		for _, row := range rows {
			for _, word := range row.Content {
				if s := strings.TrimSpace(word.S); s != "" && s != models.PageBreak {
					tokens = append(tokens, s)
				}
			}
		}
		pages = append(pages, tokens)
	}
	return pages
}

// textQuality returns the share of runes that are ASCII letters, digits,
// whitespace or common punctuation. Identity-encoded fonts produce text that
// fails this even though unicode.IsLetter would accept it.
func textQuality(pages [][]string) float64 {
	total, readable := 0, 0
	for _, page := range pages {
		for _, tok := range page {
			for _, r := range tok {
				total++
				if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
					(r >= '0' && r <= '9') || unicode.IsSpace(r) ||
					strings.ContainsRune(".,-/:;()'\"$£€%&@#!?+=*", r) {
					readable++
				}
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// commonWords appear on virtually every statement.
var commonWords = []string{
	"bank", "account", "balance", "date", "statement", "transaction",
	"opening", "closing", "debit", "credit", "total", "page", "bsb",
}

func containsCommonWords(pages [][]string) bool {
	var b strings.Builder
	for _, page := range pages {
		for _, tok := range page {
			b.WriteString(strings.ToLower(tok))
			b.WriteByte(' ')
		}
	}
	combined := b.String()
	for _, word := range commonWords {
		if strings.Contains(combined, word) {
			return true
		}
	}
	return false
}

// isReadableText requires more than 50 characters, at least 60% readable
// runes and one recognisable statement word.
func isReadableText(pages [][]string) bool {
	n := 0
	for _, page := range pages {
		for _, tok := range page {
			n += len(tok)
		}
	}
	if n <= 50 || textQuality(pages) <= 0.6 {
		return false
	}
	return containsCommonWords(pages)
}
