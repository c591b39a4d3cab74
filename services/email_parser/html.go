package email_parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var blankLines = regexp.MustCompile(`\n\s*\n+`)

// HTMLToPlainText strips markup, scripts and styles from an HTML body.
func HTMLToPlainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, head").Each(func(i int, el *goquery.Selection) {
		el.Remove()
	})
	doc.Find("br, p, div, tr, li").Each(func(i int, el *goquery.Selection) {
		el.AppendHtml("\n")
	})

	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}

	text = blankLines.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text), nil
}
