// Package pdfmeta probes uploaded PDF files for catalog metadata.
package pdfmeta

import (
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// PageCount returns the number of pages in a PDF. The parser panics on some
// malformed files, so failures of any kind are reported as an error and the
// caller stores an unknown page count instead.
func PageCount(r io.ReaderAt, size int64) (count int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			count = 0
			err = fmt.Errorf("parse pdf: %v", rec)
		}
	}()
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	count = reader.NumPage()
	if count <= 0 {
		return 0, fmt.Errorf("pdf reports no pages")
	}
	return count, nil
}
