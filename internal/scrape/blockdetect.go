package scrape

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockPaywall    BlockType = "paywall"
	BlockJSShell    BlockType = "js_shell"
)

var challengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"attention required",
}

var paywallSignatures = []string{
	"subscribe to continue reading",
	"to continue reading, subscribe",
	"already a subscriber",
	"this article is for subscribers",
}

// DetectBlock checks an HTTP response for anti-bot protection, paywalls,
// or JavaScript-only shells.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp != nil && (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable) {
		if resp.Header.Get("cf-ray") != "" || strings.EqualFold(resp.Header.Get("server"), "cloudflare") {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))
	switch {
	case strings.Contains(lower, "cf-browser-verification"),
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge"):
		return true, BlockCloudflare
	case strings.Contains(lower, "g-recaptcha"), strings.Contains(lower, "hcaptcha"):
		return true, BlockCaptcha
	}
	if len(body) < 2000 && strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
		return true, BlockJSShell
	}
	if t := blockedText(lower); t != BlockNone {
		return true, t
	}
	return false, BlockNone
}

// LooksBlocked reports whether extracted text is a challenge or paywall page
// rather than an article. Short bodies are treated as unusable.
func LooksBlocked(text string) bool {
	text = strings.TrimSpace(text)
	if len(text) < 200 {
		return true
	}
	return blockedText(strings.ToLower(text)) != BlockNone
}

func blockedText(lower string) BlockType {
	if len(lower) < 1500 {
		for _, sig := range challengeSignatures {
			if strings.Contains(lower, sig) {
				return BlockCloudflare
			}
		}
	}
	if len(lower) < 3000 {
		for _, sig := range paywallSignatures {
			if strings.Contains(lower, sig) {
				return BlockPaywall
			}
		}
	}
	return BlockNone
}
