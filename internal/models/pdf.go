package models

// PageBreak is the reserved token inserted between pages when a file is
// flattened. Extractors never emit it.
const PageBreak = "--__PAGE_BREAK__--"

// PDFFile is the text layer of one statement: each page is the ordered list of
// trimmed text items in reading order.
type PDFFile struct {
	Name  string     `json:"name"`
	Pages [][]string `json:"pages"`
}

// Flatten concatenates the pages into one token stream, appending PageBreak
// after every page.
func (f PDFFile) Flatten() []string {
	n := 0
	for _, p := range f.Pages {
		n += len(p) + 1
	}
	out := make([]string, 0, n)
	for _, p := range f.Pages {
		out = append(out, p...)
		out = append(out, PageBreak)
	}
	return out
}

// TokenCount returns the number of tokens across all pages.
func (f PDFFile) TokenCount() int {
	n := 0
	for _, p := range f.Pages {
		n += len(p)
	}
	return n
}
