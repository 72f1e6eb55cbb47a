package extract

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/chatprobe/internal/types"
)

// SectionXPath returns the XPath of the container whose direct div child
// reads exactly header.
func SectionXPath(header string) string {
	return fmt.Sprintf("//div[text()=%s]/..", xpathLiteral(header))
}

// Sources extracts the links of one section of the sources panel.
//
// Every anchor under the section becomes a Source: its href (with
// trackingSuffix removed), and the text of the second and third div below
// it as headline and snippet. Anchors with fewer than three divs are skipped.
func Sources(pageHTML, header, trackingSuffix string) ([]types.Source, error) {
	doc, err := htmlquery.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return nil, &types.ExtractError{Selector: header, Err: err}
	}
	return sourcesFromNode(doc, header, trackingSuffix)
}

func sourcesFromNode(doc *html.Node, header, trackingSuffix string) ([]types.Source, error) {
	expr := SectionXPath(header)
	section, err := htmlquery.Query(doc, expr)
	if err != nil {
		return nil, &types.ExtractError{Selector: expr, Err: err}
	}
	if section == nil {
		return nil, &types.ExtractError{Selector: expr, Err: types.ErrSectionNotFound}
	}

	links, err := htmlquery.QueryAll(section, ".//a")
	if err != nil {
		return nil, &types.ExtractError{Selector: expr, Err: err}
	}

	results := make([]types.Source, 0, len(links))
	for _, link := range links {
		href := htmlquery.SelectAttr(link, "href")
		if trackingSuffix != "" {
			href = strings.ReplaceAll(href, trackingSuffix, "")
		}

		divs, err := htmlquery.QueryAll(link, ".//div")
		if err != nil || len(divs) < 3 {
			continue
		}

		results = append(results, types.Source{
			URL:      href,
			Headline: nodeText(divs[1]),
			Snippet:  nodeText(divs[2]),
		})
	}
	return results, nil
}

// nodeText returns the whitespace-normalized text of n.
func nodeText(n *html.Node) string {
	return strings.Join(strings.Fields(htmlquery.InnerText(n)), " ")
}

// xpathLiteral quotes s for use inside an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
