package fetch

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		body   string
		want   BlockType
	}{
		{
			name:   "cloudflare header on 403",
			status: http.StatusForbidden,
			header: http.Header{"Cf-Ray": []string{"8a1b2c3d"}},
			want:   BlockCloudflare,
		},
		{
			name:   "cloudflare server on 503",
			status: http.StatusServiceUnavailable,
			header: http.Header{"Server": []string{"cloudflare"}},
			want:   BlockCloudflare,
		},
		{
			name:   "plain 403 is not a block",
			status: http.StatusForbidden,
			body:   "forbidden",
			want:   BlockNone,
		},
		{
			name:   "cloudflare interstitial",
			status: http.StatusOK,
			body:   "<html><title>Just a moment...</title>Checking your browser before accessing</html>",
			want:   BlockCloudflare,
		},
		{
			name:   "captcha",
			status: http.StatusOK,
			body:   `<div class="g-recaptcha">Please complete the CAPTCHA</div>`,
			want:   BlockCaptcha,
		},
		{
			name:   "tiny js shell",
			status: http.StatusOK,
			body:   `<html><noscript>You need to enable JavaScript to run this app.</noscript><div id="root"></div></html>`,
			want:   BlockJSShell,
		},
		{
			name:   "meta refresh",
			status: http.StatusOK,
			body:   `<meta http-equiv="refresh" content="0; url=/home">`,
			want:   BlockJSShell,
		},
		{
			name:   "large page with noscript is fine",
			status: http.StatusOK,
			body:   `<noscript>enable javascript</noscript>` + strings.Repeat("<p>Pricing and plans</p>", 200),
			want:   BlockNone,
		},
		{
			name:   "normal page",
			status: http.StatusOK,
			body:   "<html><body><h1>Acme</h1><p>Plans start at $10/month.</p></body></html>",
			want:   BlockNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := tt.header
			if header == nil {
				header = http.Header{}
			}
			assert.Equal(t, tt.want, DetectBlock(tt.status, header, []byte(tt.body)))
		})
	}
}
