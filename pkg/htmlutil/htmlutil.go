package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// NormalizeText strips non-printable characters, trims the ends and
// collapses runs of whitespace into a single space.
func NormalizeText(text string) string {
	text = removeNonPrintable(text)
	text = strings.TrimSpace(text)
	return innerWhitespace.ReplaceAllString(text, " ")
}

// NodeText is the normalized text of a node and all its children.
func NodeText(node *html.Node) string {
	return NormalizeText(GetText(node))
}

type Anchor struct {
	Name string
	Url  *url.URL
}

// GetAnchors resolves every `href` in the selection against `base`, nodes
// without an href or with an unparsable one are skipped.
func GetAnchors(base *url.URL, sel *goquery.Selection) []Anchor {
	var anchors []Anchor
	for _, n := range sel.Nodes {
		href := ""
		hasHref := false
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				hasHref = true
				break
			}
		}
		if !hasHref {
			continue
		}

		link, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			continue
		}
		if base != nil {
			link = base.ResolveReference(link)
		}

		anchors = append(anchors, Anchor{
			Name: NodeText(n),
			Url:  link,
		})
	}
	return anchors
}
