package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/helpdeck/helpdeck/internal/domain"
)

// DocxExtractor reads paragraph and table text from a Word document.
type DocxExtractor struct{}

func (e *DocxExtractor) Extract(data []byte) (Result, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, domain.IngestionError("failed to open docx", err)
	}

	var sb strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch item.(type) {
		case *docx.Paragraph, *docx.Table:
			fmt.Fprintln(&sb, item)
		}
	}

	text := sanitizeUTF8(strings.TrimSpace(sb.String()))
	if text == "" {
		return Result{}, domain.IngestionError("docx has no extractable text", nil)
	}

	return Result{Text: text}, nil
}
