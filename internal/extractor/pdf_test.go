package extractor

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-converter/internal/models"
)

// word lays out s as one glyph per rune, 5pt wide each.
func word(s string, x, y float64) []pdf.Text {
	var out []pdf.Text
	for _, r := range s {
		out = append(out, pdf.Text{FontSize: 10, X: x, Y: y, W: 5, S: string(r)})
		x += 5
	}
	return out
}

func glyphs(parts ...[]pdf.Text) []pdf.Text {
	var out []pdf.Text
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestTokensFromGlyphs(t *testing.T) {
	t.Run("columns become blank separated tokens", func(t *testing.T) {
		g := glyphs(
			word("Date", 10, 700),
			word("Transaction", 60, 700),
			word("Balance", 200, 700),
		)
		assert.Equal(t, []string{"Date", "", "Transaction", "", "Balance"}, tokensFromGlyphs(g, defaultColumnGap))
	})

	t.Run("word gaps become spaces", func(t *testing.T) {
		g := glyphs(
			word("Coffee", 10, 700),
			word("Shop", 43, 700),
		)
		assert.Equal(t, []string{"Coffee Shop"}, tokensFromGlyphs(g, defaultColumnGap))
	})

	t.Run("lines top to bottom, glyphs left to right", func(t *testing.T) {
		g := glyphs(
			word("second", 10, 600),
			word("line", 10, 700.3),
			word("first", 200, 699.8),
		)
		assert.Equal(t, []string{"line", "", "first", "second"}, tokensFromGlyphs(g, defaultColumnGap))
	})

	t.Run("reserved page break text is dropped", func(t *testing.T) {
		g := glyphs(word(models.PageBreak, 10, 700), word("ok", 10, 600))
		assert.Equal(t, []string{"ok"}, tokensFromGlyphs(g, defaultColumnGap))
	})

	t.Run("empty page", func(t *testing.T) {
		assert.Empty(t, tokensFromGlyphs(nil, defaultColumnGap))
	})
}

func TestIsReadableText(t *testing.T) {
	statement := [][]string{{
		"Commonwealth Bank", "Account Number", "", "06 2000 12345678",
		"Date", "", "Transaction", "", "Debit", "", "Credit", "", "Balance",
	}}
	assert.True(t, isReadableText(statement))

	assert.False(t, isReadableText([][]string{{"Balance"}}), "too short")

	garbage := [][]string{{strings.Repeat("éßøæ", 30)}}
	assert.False(t, isReadableText(garbage), "not ascii")

	lorem := [][]string{{strings.Repeat("lorem ipsum dolor sit amet ", 5)}}
	assert.False(t, isReadableText(lorem), "no statement words")
}

func TestTextQuality(t *testing.T) {
	assert.Equal(t, 0.0, textQuality(nil))
	assert.Equal(t, 1.0, textQuality([][]string{{"$1,234.56 CR"}}))
	assert.InDelta(t, 0.5, textQuality([][]string{{"abéé"}}), 0.001)
}

func TestExtractReader_NotAPDF(t *testing.T) {
	e := New(nil)
	data := []byte("definitely not a pdf")
	_, err := e.ExtractReader(context.Background(), "junk.pdf", bytes.NewReader(data), int64(len(data)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "junk.pdf")
}

func TestExtractFile_Missing(t *testing.T) {
	e := New(nil)
	_, err := e.ExtractFile(context.Background(), "does-not-exist.pdf")
	assert.Error(t, err)
}
