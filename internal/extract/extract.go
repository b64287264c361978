// Package extract turns fetched resource bytes into plain text for keyword
// matching. The set of resource kinds is closed: HTML pages, PDF documents
// and spreadsheets.
package extract

import (
	"errors"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// Kind is the extraction variant for a resource.
type Kind int

const (
	KindHTML Kind = iota
	KindPDF
	KindSpreadsheet
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindSpreadsheet:
		return "spreadsheet"
	default:
		return "html"
	}
}

// Content is the result of a successful extraction.
type Content struct {
	Text string
	// Doc is the parsed tree for HTML resources, nil otherwise.
	Doc *html.Node
}

// Extractor converts raw bytes of one resource kind to text. contentType is
// the response header value, possibly empty; text formats take their
// charset from it. Implementations are stateless and safe for concurrent use.
type Extractor interface {
	Kind() Kind
	Extract(body []byte, contentType string) (*Content, error)
}

// ErrUnsupported is returned for formats recognised but not decodable.
var ErrUnsupported = errors.New("unsupported format")

var extractors = map[Kind]Extractor{
	KindHTML:        HTML{},
	KindPDF:         PDF{},
	KindSpreadsheet: Spreadsheet{},
}

// For returns the extractor for k.
func For(k Kind) Extractor {
	if e, ok := extractors[k]; ok {
		return e
	}
	return HTML{}
}

// Classify picks the extraction variant for a resource: the URL suffix wins,
// then the declared content type, then content sniffing. Anything
// unrecognised is treated as HTML.
func Classify(rawURL, contentType string, body []byte) Kind {
	if u, err := url.Parse(rawURL); err == nil {
		switch strings.ToLower(path.Ext(u.Path)) {
		case ".pdf":
			return KindPDF
		case ".csv", ".xls", ".xlsx":
			return KindSpreadsheet
		case ".htm", ".html", ".php", ".asp", ".aspx", ".jsp":
			return KindHTML
		}
	}

	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "application/pdf":
			return KindPDF
		case "text/csv",
			"application/vnd.ms-excel",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
			return KindSpreadsheet
		case "text/html", "application/xhtml+xml":
			return KindHTML
		}
	}

	if mt, _, err := mime.ParseMediaType(http.DetectContentType(body)); err == nil && mt == "application/pdf" {
		return KindPDF
	}
	return KindHTML
}
