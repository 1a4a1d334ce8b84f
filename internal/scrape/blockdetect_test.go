package scrape

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name    string
		resp    *http.Response
		body    string
		blocked bool
		kind    BlockType
	}{
		{
			name:    "cloudflare 403 with cf-ray",
			resp:    &http.Response{StatusCode: 403, Header: http.Header{"Cf-Ray": {"abc123"}}},
			blocked: true, kind: BlockCloudflare,
		},
		{
			name:    "cloudflare 503 server header",
			resp:    &http.Response{StatusCode: 503, Header: http.Header{"Server": {"cloudflare"}}},
			blocked: true, kind: BlockCloudflare,
		},
		{
			name:    "recaptcha widget",
			resp:    &http.Response{StatusCode: 200, Header: http.Header{}},
			body:    `<div class="g-recaptcha" data-sitekey="x"></div>`,
			blocked: true, kind: BlockCaptcha,
		},
		{
			name:    "js shell",
			resp:    &http.Response{StatusCode: 200, Header: http.Header{}},
			body:    `<html><noscript>This site requires JavaScript</noscript></html>`,
			blocked: true, kind: BlockJSShell,
		},
		{
			name:    "paywall",
			resp:    &http.Response{StatusCode: 200, Header: http.Header{}},
			body:    `<p>Subscribe to continue reading this story.</p>`,
			blocked: true, kind: BlockPaywall,
		},
		{
			name: "normal article",
			resp: &http.Response{StatusCode: 200, Header: http.Header{}},
			body: "<article>" + strings.Repeat("Initech reported quarterly revenue growth. ", 20) + "</article>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocked, kind := DetectBlock(tt.resp, []byte(tt.body))
			assert.Equal(t, tt.blocked, blocked)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestLooksBlocked(t *testing.T) {
	assert.True(t, LooksBlocked("too short"))
	assert.True(t, LooksBlocked("Just a moment... "+strings.Repeat("x", 300)))
	assert.False(t, LooksBlocked(strings.Repeat("Regulators approved the merger on Monday. ", 10)))
	// Challenge phrases inside a long article are not a block.
	long := strings.Repeat("Analysts say access denied claims were overstated. ", 60)
	assert.False(t, LooksBlocked(long))
}
