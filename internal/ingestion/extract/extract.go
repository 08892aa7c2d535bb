// Package extract turns raw document payloads (HTML, PDF, Word, plain text)
// into clean text for chunking.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/helpdeck/helpdeck/internal/domain"
)

// Result is the extracted text plus the best-effort title.
type Result struct {
	Title string
	Text  string
}

// Extractor converts one payload format to text.
type Extractor interface {
	Extract(data []byte) (Result, error)
}

// Registry resolves the extractor for a content type or filename.
type Registry struct {
	html Extractor
	pdf  Extractor
	docx Extractor
	text Extractor
}

func NewRegistry() *Registry {
	return &Registry{
		html: &HTMLExtractor{},
		pdf:  &PDFExtractor{},
		docx: &DocxExtractor{},
		text: &TextExtractor{},
	}
}

// ForContentType picks the extractor for a negotiated media type.
func (r *Registry) ForContentType(mediaType string) (Extractor, error) {
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return r.html, nil
	case "application/pdf":
		return r.pdf, nil
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return r.docx, nil
	case "text/plain", "text/markdown":
		return r.text, nil
	default:
		return nil, domain.IngestionError(fmt.Sprintf("no extractor for content type %q", mediaType), nil)
	}
}

// ForFilename picks the extractor for an uploaded file by extension.
func (r *Registry) ForFilename(name string) (Extractor, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return r.html, nil
	case ".pdf":
		return r.pdf, nil
	case ".docx":
		return r.docx, nil
	case ".txt", ".md", ".markdown":
		return r.text, nil
	default:
		return nil, domain.IngestionError(fmt.Sprintf("unsupported file type %q", filepath.Ext(name)), nil)
	}
}
