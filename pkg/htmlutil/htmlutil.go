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

// GetText returns the concatenated text of every text node under node.
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

var innerWhitespace = regexp.MustCompile(`\s+`)

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
func NormalizeText(s string) string {
	s = removeNonPrintable(s)
	s = strings.TrimSpace(s)
	return innerWhitespace.ReplaceAllString(s, " ")
}

type Anchor struct {
	Name string
	Url  *url.URL
}

// GetAnchors collects the anchors in sel, hrefs are resolved against base.
// Anchors with an unparseable href are skipped.
func GetAnchors(base *url.URL, sel *goquery.Selection) []Anchor {
	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}

		link, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			continue
		}
		if base != nil {
			link = base.ResolveReference(link)
		}

		anchors = append(anchors, Anchor{
			Name: NormalizeText(GetText(n)),
			Url:  link,
		})
	}
	return anchors
}
