package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// pageContent is what the HTML strategies pull out of a fetched document.
type pageContent struct {
	Title       string
	Description string // meta description or og:description
	Body        string // visible text, whitespace-collapsed
}

// parsePage extracts the title, meta description and visible text from an
// HTML document. Script, style and noscript subtrees are skipped entirely.
func parsePage(raw string) pageContent {
	var pc pageContent

	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		// Not parseable as HTML; treat the whole body as text.
		pc.Body = collapseWhitespace(raw)
		return pc
	}

	var sb strings.Builder
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template", "iframe":
				return
			case "title":
				if pc.Title == "" {
					pc.Title = strings.TrimSpace(textOf(n))
				}
				return
			case "meta":
				name := attr(n, "name")
				property := attr(n, "property")
				if name == "description" || property == "og:description" {
					if content := strings.TrimSpace(attr(n, "content")); content != "" && pc.Description == "" {
						pc.Description = content
					}
				}
			case "br", "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6":
				sb.WriteByte(' ')
			}
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)

	pc.Body = collapseWhitespace(sb.String())
	return pc
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// collapseWhitespace squashes all runs of whitespace into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
