package scrape

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// boilerplate is removed before an HTML document is converted.
const boilerplate = "script, style, noscript, nav, footer, header, aside, form, iframe, .advert, .ad, .newsletter, .related"

// HTMLToMarkdown converts an HTML article body to markdown. When the
// document contains an <article> or <main> element only that subtree is
// converted.
func HTMLToMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", eris.Wrap(err, "scrape: parse html")
	}
	doc.Find(boilerplate).Remove()

	sel := doc.Find("article").First()
	if sel.Length() == 0 {
		sel = doc.Find("main").First()
	}
	if sel.Length() == 0 {
		sel = doc.Find("body")
	}

	body, err := goquery.OuterHtml(sel)
	if err != nil {
		return "", eris.Wrap(err, "scrape: render selection")
	}

	out, err := md.NewConverter("", true, nil).ConvertString(body)
	if err != nil {
		return "", eris.Wrap(err, "scrape: convert to markdown")
	}
	return strings.TrimSpace(out), nil
}

// PlainText strips markup from a snippet (search descriptions often carry
// <b> highlights and entities) and collapses whitespace. Input without any
// markup is returned trimmed.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// PageTitle returns the <title> of an HTML document, or "".
func PageTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && og != "" {
		return strings.TrimSpace(og)
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
