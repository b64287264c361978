package extract

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// toUTF8 decodes body using the charset from contentType, a byte order mark
// or an HTML <meta> declaration, in that order. A body that is already valid
// UTF-8 is returned as is unless the charset came from the header or a BOM.
// Undeclared non-UTF-8 bytes are read as windows-1252.
func toUTF8(body []byte, contentType string) ([]byte, error) {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || (!certain && utf8.Valid(body)) {
		return body, nil
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return out, nil
}
