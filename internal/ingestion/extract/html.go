package extract

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/helpdeck/helpdeck/internal/domain"
)

// HTMLExtractor pulls the visible text out of an HTML page, skipping
// script, style and other non-content subtrees.
type HTMLExtractor struct{}

func (e *HTMLExtractor) Extract(data []byte) (Result, error) {
	doc, err := html.Parse(strings.NewReader(string(data)))
	if err != nil {
		return Result{}, domain.IngestionError("failed to parse html", err)
	}

	var b strings.Builder
	var title string

	var walk func(n *html.Node, skip bool)
	walk = func(n *html.Node, skip bool) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "svg":
				skip = true
			case "title":
				if title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				skip = true
			}
		}

		if n.Type == html.TextNode && !skip {
			t := strings.TrimSpace(n.Data)
			if t != "" {
				b.WriteString(t)
				b.WriteString("\n")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, skip)
		}
	}
	walk(doc, false)

	lines := strings.Split(b.String(), "\n")
	var filtered []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if len(l) > 1 {
			filtered = append(filtered, l)
		}
	}

	text := strings.Join(filtered, "\n")
	if text == "" {
		return Result{}, domain.IngestionError("html page has no extractable text", nil)
	}

	return Result{Title: title, Text: text}, nil
}
