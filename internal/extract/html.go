package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// nonTextSelectors lists elements whose content is never visible text.
// Navigation and footers stay: portals often carry their transparency
// links and contact details there.
const nonTextSelectors = "script, style, noscript, template"

// HTML extracts visible text from an HTML page and keeps the parse tree for
// link discovery.
type HTML struct{}

func (HTML) Kind() Kind { return KindHTML }

func (HTML) Extract(body []byte, contentType string) (*Content, error) {
	body, err := toUTF8(body, contentType)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	gq := goquery.NewDocumentFromNode(doc)
	gq.Find(nonTextSelectors).Remove()

	return &Content{
		Text: collapse(gq.Text()),
		Doc:  doc,
	}, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
