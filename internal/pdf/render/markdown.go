package render

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/a3tai/faithful-pdf/internal/pdf/model"
	"github.com/a3tai/faithful-pdf/internal/pdf/text"
)

var listMarker = regexp.MustCompile(`^\s*(\d+[.)]|[-*•])\s+`)

type block struct {
	y    float64
	kind string
	html string
}

// Semantic renders pages as structural HTML: headings, paragraphs, lists
// and tables in reading order. Positions are dropped.
func Semantic(pages []model.Page) string {
	var b strings.Builder
	for _, p := range pages {
		var items []block
		for _, tb := range p.TextBlocks {
			items = append(items, textBlock(tb))
		}
		for _, e := range p.Tables {
			if t := e.Table(); t != nil {
				items = append(items, block{y: e.Box.Y0, kind: "table", html: tableHTML(t)})
			}
		}
		if len(items) == 0 && strings.TrimSpace(p.Text) != "" {
			for _, para := range strings.Split(text.Normalize(p.Text), "\n\n") {
				items = append(items, block{kind: text.BlockParagraph, html: "<p>" + html.EscapeString(para) + "</p>"})
			}
		}
		sort.SliceStable(items, func(i, j int) bool { return items[i].y < items[j].y })

		fmt.Fprintf(&b, `<section data-page="%d">`, p.PageNumber)
		inList := false
		for _, it := range items {
			if it.kind == text.BlockListItem && !inList {
				b.WriteString("<ul>")
				inList = true
			} else if it.kind != text.BlockListItem && inList {
				b.WriteString("</ul>")
				inList = false
			}
			b.WriteString(it.html)
		}
		if inList {
			b.WriteString("</ul>")
		}
		b.WriteString("</section>")
	}
	return b.String()
}

func textBlock(tb model.TextBlock) block {
	body := html.EscapeString(text.Normalize(tb.Text))
	it := block{y: tb.Position.Y, kind: tb.BlockType}
	switch tb.BlockType {
	case text.BlockHeading:
		level := tb.Level
		if level < 1 || level > 6 {
			level = 2
		}
		it.html = fmt.Sprintf("<h%d>%s</h%d>", level, body, level)
	case text.BlockListItem:
		it.html = "<li>" + strings.TrimSpace(listMarker.ReplaceAllString(body, "")) + "</li>"
	case text.BlockFootnote:
		it.html = "<p><small>" + body + "</small></p>"
	default:
		it.html = "<p>" + body + "</p>"
	}
	return it
}

func tableHTML(t *model.Table) string {
	var b strings.Builder
	b.WriteString("<table>")
	for r, row := range t.Data {
		tag := "td"
		if r == 0 {
			tag = "th"
			b.WriteString("<thead>")
		}
		b.WriteString("<tr>")
		for _, cell := range row {
			fmt.Fprintf(&b, "<%s>%s</%s>", tag, html.EscapeString(cell), tag)
		}
		b.WriteString("</tr>")
		if r == 0 {
			b.WriteString("</thead><tbody>")
		}
	}
	if len(t.Data) > 0 {
		b.WriteString("</tbody>")
	}
	b.WriteString("</table>")
	return b.String()
}

// Markdown converts pages to GitHub flavored markdown
func (r *Renderer) Markdown(pages []model.Page) (string, error) {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	out, err := conv.ConvertString(Semantic(pages))
	if err != nil {
		r.logger.Warn("markdown conversion failed", zap.Error(err))
		return "", fmt.Errorf("failed to convert to markdown: %w", err)
	}
	return strings.TrimSpace(out) + "\n", nil
}

// PageFragment returns the div of one page from a rendered document
func PageFragment(doc string, page int) (string, error) {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("failed to parse document: %w", err)
	}
	sel := d.Find(fmt.Sprintf(`.pdf-page[data-page="%d"]`, page))
	if sel.Length() == 0 {
		return "", fmt.Errorf("page %d not found in document", page)
	}
	return goquery.OuterHtml(sel.First())
}
