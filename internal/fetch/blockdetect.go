package fetch

import (
	"bytes"
	"net/http"
)

// BlockType names the interstitial a homepage fetch landed on instead of
// the company's own page.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// shellPageBytes is the size below which a page that only asks for
// JavaScript or redirects carries no usable company text.
const shellPageBytes = 2000

// cdnHeaders mark a Cloudflare edge answering on the origin's behalf.
var cdnHeaders = []string{"Cf-Ray", "Cf-Cache-Status", "Cf-Mitigated"}

// blockMarker matches when every needle appears in the lowercased body.
type blockMarker struct {
	kind      BlockType
	needles   [][]byte
	shellOnly bool // only pages under shellPageBytes
}

// Checked in order; the first match wins.
var blockMarkers = []blockMarker{
	{kind: BlockCloudflare, needles: [][]byte{[]byte("checking your browser")}},
	{kind: BlockCloudflare, needles: [][]byte{[]byte("cf-browser-verification")}},
	{kind: BlockCloudflare, needles: [][]byte{[]byte("cloudflare"), []byte("challenge")}},
	{kind: BlockCaptcha, needles: [][]byte{[]byte("captcha")}},
	{kind: BlockJSShell, needles: [][]byte{[]byte("<noscript"), []byte("javascript")}, shellOnly: true},
	{kind: BlockJSShell, needles: [][]byte{[]byte(`http-equiv="refresh"`)}, shellOnly: true},
}

// DetectBlock reports whether a homepage response is an anti-bot or
// JavaScript-only page rather than readable company content.
func DetectBlock(statusCode int, header http.Header, body []byte) BlockType {
	if statusCode == http.StatusForbidden || statusCode == http.StatusServiceUnavailable {
		if servedByCloudflare(header) {
			return BlockCloudflare
		}
	}

	lower := bytes.ToLower(body)
	for _, m := range blockMarkers {
		if m.shellOnly && len(body) >= shellPageBytes {
			continue
		}
		if containsAll(lower, m.needles) {
			return m.kind
		}
	}
	return BlockNone
}

func servedByCloudflare(header http.Header) bool {
	for _, h := range cdnHeaders {
		if header.Get(h) != "" {
			return true
		}
	}
	return bytes.EqualFold([]byte(header.Get("Server")), []byte("cloudflare"))
}

func containsAll(haystack []byte, needles [][]byte) bool {
	for _, n := range needles {
		if !bytes.Contains(haystack, n) {
			return false
		}
	}
	return true
}
