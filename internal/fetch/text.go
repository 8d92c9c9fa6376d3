package fetch

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// noiseSelector lists elements whose content is never human-readable page text.
const noiseSelector = "script, style, noscript, template, svg, iframe, head"

// blockElements get a separator around their text so adjacent blocks do not
// run together.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true, "ol": true,
	"p": true, "pre": true, "section": true, "table": true, "td": true, "th": true,
	"tr": true, "ul": true, "button": true, "option": true,
}

// ExtractText decodes HTML to UTF-8, drops non-content elements and
// returns the visible text with whitespace collapsed, truncated to maxChars
// runes. contentType is the response Content-Type header, used for its
// charset parameter. maxChars <= 0 disables truncation.
func ExtractText(r io.Reader, contentType string, maxChars int) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", eris.Wrap(err, "fetch: read html")
	}

	doc, err := goquery.NewDocumentFromReader(decodeHTML(raw, contentType))
	if err != nil {
		return "", eris.Wrap(err, "fetch: parse html")
	}

	doc.Find(noiseSelector).Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var b strings.Builder
	for _, n := range root.Nodes {
		writeText(&b, n)
	}

	return truncateRunes(strings.Join(strings.Fields(b.String()), " "), maxChars), nil
}

// decodeHTML returns a UTF-8 reader over raw. A BOM or a charset in the
// Content-Type header is always honoured. Otherwise a body that is already
// valid UTF-8 is kept as is, and anything else is decoded per its <meta>
// declaration, falling back to windows-1252.
func decodeHTML(raw []byte, contentType string) io.Reader {
	enc, name, certain := charset.DetermineEncoding(raw, contentType)
	if enc == encoding.Nop || (!certain && utf8.Valid(raw)) {
		return bytes.NewReader(raw)
	}
	zap.L().Debug("fetch: decoding page charset", zap.String("charset", name))
	return transform.NewReader(bytes.NewReader(raw), enc.NewDecoder())
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.CommentNode:
		return
	}

	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block {
		b.WriteByte(' ')
	}
}

// truncateRunes keeps the first n runes of s.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
