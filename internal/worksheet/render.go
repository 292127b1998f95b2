package worksheet

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RenderHTML returns the worksheet as HTML tables. Rows carry
// data-row-index (1-based) and value cells data-column-index (0-based, B-O).
func (w *Worksheet) RenderHTML() (string, error) {
	snap := w.snapshot()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(skeleton()))
	if err != nil {
		return "", err
	}

	for _, id := range Tables {
		g := snap[id]
		for r := range g {
			for c, cell := range g[r] {
				if cell.Empty() {
					continue
				}
				sel := doc.Find(fmt.Sprintf(`table#%s tr[data-row-index="%d"] td[data-column-index="%d"]`, id, r+1, c))
				sel.SetText(cell.Text)
				if len(cell.Classes) > 0 {
					sel.SetAttr("class", strings.Join(cell.Classes, " "))
				}
				if cell.Bold {
					sel.SetAttr("style", "font-weight: bold")
				}
				if cell.Platform != "" {
					sel.SetAttr("data-platform", cell.Platform)
				}
				if cell.Numeric {
					sel.SetAttr("data-value", cell.Value.StringFixed(2))
				}
			}
		}
	}
	return goquery.OuterHtml(doc.Find("div.worksheet"))
}

func skeleton() string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="worksheet">`)
	for _, id := range Tables {
		fmt.Fprintf(&b, `<table id="%s" class="results-table"><thead><tr><th></th>`, id)
		for c := 0; c < Columns; c++ {
			fmt.Fprintf(&b, `<th>%s</th>`, ColumnName(c))
		}
		b.WriteString(`</tr></thead><tbody>`)
		for r := 1; r <= Rows; r++ {
			fmt.Fprintf(&b, `<tr data-row-index="%d"><td class="row-header">%d</td>`, r, r)
			for c := 0; c < Columns; c++ {
				fmt.Fprintf(&b, `<td data-column-index="%d"></td>`, c)
			}
			b.WriteString(`</tr>`)
		}
		b.WriteString(`</tbody></table>`)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

// ColumnName maps a value column index to its letter, B for 0.
func ColumnName(col int) string {
	return string(rune('B' + col))
}
