package extraction

import (
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skippedElements never contribute to page content.
var skippedElements = map[atom.Atom]struct{}{
	atom.Script:   {},
	atom.Style:    {},
	atom.Noscript: {},
	atom.Iframe:   {},
	atom.Svg:      {},
	atom.Form:     {},
	atom.Nav:      {},
	atom.Header:   {},
	atom.Footer:   {},
	atom.Aside:    {},
	atom.Template: {},
}

type markdownConverter struct {
	blocks    []string
	base      *url.URL
	collector *imageCollector
}

// convertToMarkdown renders the parsed document body as markdown and feeds
// discovered images to the collector with their surrounding text.
func convertToMarkdown(doc *html.Node, base *url.URL, collector *imageCollector) string {
	c := &markdownConverter{base: base, collector: collector}
	c.walk(findBody(doc))
	return strings.Join(c.blocks, "\n\n")
}

func (c *markdownConverter) walk(node *html.Node) {
	if node == nil {
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode {
			if child.Type == html.TextNode {
				if text := collapseWhitespace(child.Data); text != "" {
					c.appendBlock(text)
				}
			}
			continue
		}
		if _, skip := skippedElements[child.DataAtom]; skip {
			continue
		}
		switch child.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			level := int(child.Data[1] - '0')
			if text := c.inlineText(child); text != "" {
				c.appendBlock(strings.Repeat("#", level) + " " + text)
			}
		case atom.P:
			if text := c.inlineText(child); text != "" {
				c.appendBlock(text)
			}
		case atom.Blockquote:
			if text := c.inlineText(child); text != "" {
				c.appendBlock("> " + text)
			}
		case atom.Pre:
			raw := rawText(child)
			if strings.TrimSpace(raw) != "" {
				c.appendBlock("```\n" + strings.TrimRight(raw, "\n") + "\n```")
			}
		case atom.Ul, atom.Ol:
			c.appendList(child, child.DataAtom == atom.Ol)
		case atom.Img:
			c.visitImage(child)
		case atom.Br, atom.Hr:
			// Block separators fall out of the join.
		default:
			c.walk(child)
		}
	}
}

func (c *markdownConverter) appendList(list *html.Node, ordered bool) {
	var items []string
	index := 1
	for child := list.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode || child.DataAtom != atom.Li {
			continue
		}
		text := c.inlineText(child)
		if text == "" {
			continue
		}
		if ordered {
			items = append(items, strconv.Itoa(index)+". "+text)
			index++
		} else {
			items = append(items, "- "+text)
		}
	}
	if len(items) > 0 {
		c.blocks = append(c.blocks, strings.Join(items, "\n"))
	}
}

// inlineText renders the inline content of a block element, converting links
// and emphasis and recording any images encountered inside it.
func (c *markdownConverter) inlineText(node *html.Node) string {
	var b strings.Builder
	c.renderInline(node, &b)
	return collapseWhitespace(b.String())
}

func (c *markdownConverter) renderInline(node *html.Node, b *strings.Builder) {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case html.TextNode:
			b.WriteString(child.Data)
		case html.ElementNode:
			if _, skip := skippedElements[child.DataAtom]; skip {
				continue
			}
			switch child.DataAtom {
			case atom.A:
				text := c.inlineText(child)
				href := c.resolveURL(attrValue(child, "href"))
				if text == "" {
					continue
				}
				if href == "" {
					b.WriteString(text)
				} else {
					b.WriteString("[" + text + "](" + href + ")")
				}
			case atom.Strong, atom.B:
				if text := c.inlineText(child); text != "" {
					b.WriteString("**" + text + "**")
				}
			case atom.Em, atom.I:
				if text := c.inlineText(child); text != "" {
					b.WriteString("*" + text + "*")
				}
			case atom.Code:
				if text := collapseWhitespace(rawText(child)); text != "" {
					b.WriteString("`" + text + "`")
				}
			case atom.Img:
				c.visitImage(child)
			case atom.Br:
				b.WriteString(" ")
			default:
				c.renderInline(child, b)
			}
		}
	}
}

func (c *markdownConverter) visitImage(node *html.Node) {
	src := c.resolveURL(attrValue(node, "src"))
	if src == "" {
		return
	}
	alt := collapseWhitespace(attrValue(node, "alt"))
	nearby := ""
	if len(c.blocks) > 0 {
		nearby = tailText(c.blocks[len(c.blocks)-1], 200)
	}
	c.collector.add(src, alt, nearby)
	c.appendBlock("![" + alt + "](" + src + ")")
}

func (c *markdownConverter) appendBlock(text string) {
	c.blocks = append(c.blocks, text)
}

func (c *markdownConverter) resolveURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") || strings.HasPrefix(raw, "javascript:") {
		return ""
	}
	if c.base == nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return c.base.ResolveReference(ref).String()
}

// extractTitle returns the document title, falling back to the first heading.
func extractTitle(doc *html.Node) string {
	if title := collapseWhitespace(textOfFirst(doc, atom.Title)); title != "" {
		return title
	}
	return collapseWhitespace(textOfFirst(doc, atom.H1))
}

func findBody(doc *html.Node) *html.Node {
	if body := findFirst(doc, atom.Body); body != nil {
		return body
	}
	return doc
}

func findFirst(node *html.Node, target atom.Atom) *html.Node {
	if node == nil {
		return nil
	}
	if node.Type == html.ElementNode && node.DataAtom == target {
		return node
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if found := findFirst(child, target); found != nil {
			return found
		}
	}
	return nil
}

func textOfFirst(doc *html.Node, target atom.Atom) string {
	if node := findFirst(doc, target); node != nil {
		return rawText(node)
	}
	return ""
}

func rawText(node *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			visit(child)
		}
	}
	visit(node)
	return b.String()
}

func attrValue(node *html.Node, name string) string {
	for _, attr := range node.Attr {
		if strings.EqualFold(attr.Key, name) {
			return attr.Val
		}
	}
	return ""
}

func collapseWhitespace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func tailText(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[len(runes)-limit:])
}
