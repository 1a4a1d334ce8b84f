package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLToMarkdown_PrefersArticle(t *testing.T) {
	html := `<html><head><title>t</title><script>var x=1;</script></head><body>
<nav><a href="/">Home</a></nav>
<article><h1>Initech acquires Globex</h1><p>The deal is valued at <strong>$2B</strong>.</p></article>
<footer>Copyright</footer></body></html>`

	out, err := HTMLToMarkdown(html)
	require.NoError(t, err)
	assert.Contains(t, out, "# Initech acquires Globex")
	assert.Contains(t, out, "**$2B**")
	assert.NotContains(t, out, "Home")
	assert.NotContains(t, out, "Copyright")
	assert.NotContains(t, out, "var x")
}

func TestHTMLToMarkdown_FallsBackToBody(t *testing.T) {
	out, err := HTMLToMarkdown(`<body><p>Plain body text</p><aside>Related</aside></body>`)
	require.NoError(t, err)
	assert.Equal(t, "Plain body text", out)
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Acme & Initech merge", PlainText("<b>Acme</b> &amp; Initech   merge"))
	assert.Equal(t, "no markup here", PlainText("  no   markup\nhere "))
	assert.Equal(t, "", PlainText(""))
}

func TestPageTitle(t *testing.T) {
	assert.Equal(t, "OG Title", PageTitle(`<head><meta property="og:title" content="OG Title"><title>Doc</title></head>`))
	assert.Equal(t, "Doc", PageTitle(`<head><title> Doc </title></head>`))
	assert.Equal(t, "", PageTitle(`<p>none</p>`))
}
