package ingest

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFPage is the extracted text of a single PDF page.
type PDFPage struct {
	Number int // 1-based
	Text   string
}

// ExtractPDFPages opens a PDF file on disk and extracts plain text page by
// page. Pages that fail to parse or contain no text are skipped.
func ExtractPDFPages(path string) ([]PDFPage, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var pages []PDFPage
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, PDFPage{Number: i, Text: NormalizeText(text)})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no extractable text in pdf")
	}
	return pages, nil
}
