// Package extract pulls the answer and its sources out of rendered chat HTML.
//
// Everything here works on HTML snapshots taken from the browser, so the
// selectors can be exercised without a live page.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jaytaylor/html2text"

	"github.com/IshaanNene/chatprobe/internal/types"
)

// Response returns the inner HTML of the first element matching selector.
func Response(pageHTML, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return "", &types.ExtractError{Selector: selector, Err: err}
	}

	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", &types.ExtractError{Selector: selector, Err: types.ErrNoResponse}
	}

	inner, err := sel.Html()
	if err != nil {
		return "", &types.ExtractError{Selector: selector, Err: err}
	}
	return inner, nil
}

// PlainText renders response HTML as readable text, keeping link targets.
func PlainText(fragment string) (string, error) {
	if strings.TrimSpace(fragment) == "" {
		return "", nil
	}
	return html2text.FromString(fragment, html2text.Options{OmitLinks: false})
}
