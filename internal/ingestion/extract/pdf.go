package extract

import (
	"bytes"
	"strings"

	"github.com/dslipak/pdf"

	"github.com/helpdeck/helpdeck/internal/domain"
)

// PDFExtractor reads the plain-text layer of a PDF.
type PDFExtractor struct{}

func (e *PDFExtractor) Extract(data []byte) (Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, domain.IngestionError("failed to open pdf", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return Result{}, domain.IngestionError("failed to extract pdf text", err)
	}

	buf := bytes.NewBuffer(nil)
	if _, err := buf.ReadFrom(plain); err != nil {
		return Result{}, domain.IngestionError("failed to read pdf text", err)
	}

	text := sanitizeUTF8(strings.TrimSpace(buf.String()))
	if text == "" {
		return Result{}, domain.IngestionError("pdf has no extractable text", nil)
	}

	return Result{Text: text}, nil
}
