package extract

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Web fetches a page and extracts its visible text.
type Web struct {
	client *http.Client
}

// NewWeb returns a web extractor with a bounded request timeout.
func NewWeb() *Web {
	return &Web{client: &http.Client{Timeout: 30 * time.Second}}
}

func (w *Web) CanHandle(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func (w *Web) Extract(ctx context.Context, source string) (*Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch failed with status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	title, text := walkHTML(doc)
	if title == "" {
		title = source
	}
	return &Content{SourceRef: source, Title: title, RawText: text}, nil
}

// walkHTML collects the page title and visible text, skipping script and
// style subtrees.
func walkHTML(doc *html.Node) (string, string) {
	var title string
	var b strings.Builder
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if n.FirstChild != nil && title == "" {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr":
				b.WriteString("\n")
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)
	return title, collapseBlankLines(b.String())
}

func collapseBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, "\n")
}
