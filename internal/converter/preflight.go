package converter

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFPageCount returns the page count of a PDF file.
// Fails on corrupt or encrypted files, which lets the pipeline reject
// them before the conversion round trip.
func PDFPageCount(path string) (int, error) {
	count, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF structure; %w", err)
	}
	if count < 1 {
		return 0, fmt.Errorf("PDF has no pages")
	}
	return count, nil
}
