package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/extrame/xls"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"sellerbooks/internal"
	"sellerbooks/internal/util"
)

var ErrUnsupportedFormat = errors.New("unsupported report format")

var (
	errEmptyText   = errors.New("document has no text layer")
	errNoWorksheet = errors.New("workbook has no rows")
)

// Decoded is a report reduced to what the extractor reads: text for PDF
// statements, rows for spreadsheet and CSV exports.
type Decoded struct {
	Format internal.InputFormat
	Name   string
	Text   string
	Rows   [][]string
	Pages  int
}

func (d Decoded) Tabular() bool {
	return d.Format != internal.FormatPDF
}

// DetectFormat picks the decoder by file extension, then by content.
func DetectFormat(name string, blob []byte) (internal.InputFormat, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return internal.FormatPDF, nil
	case ".xlsx", ".xlsm":
		return internal.FormatXLSX, nil
	case ".xls":
		return internal.FormatXLS, nil
	case ".csv", ".tsv", ".txt":
		return internal.FormatCSV, nil
	case ".eml":
		return internal.FormatEML, nil
	}

	switch {
	case bytes.HasPrefix(blob, []byte("%PDF-")):
		return internal.FormatPDF, nil
	case bytes.HasPrefix(blob, []byte("PK\x03\x04")):
		return internal.FormatXLSX, nil
	case bytes.HasPrefix(blob, []byte{0xD0, 0xCF, 0x11, 0xE0}):
		return internal.FormatXLS, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// Decode turns a report blob into text or rows.
func Decode(name string, blob []byte) (Decoded, error) {
	format, err := DetectFormat(name, blob)
	if err != nil {
		return Decoded{}, err
	}
	out := Decoded{Format: format, Name: name}
	switch format {
	case internal.FormatPDF:
		out.Text, out.Pages, err = DecodePDF(blob)
	case internal.FormatXLSX:
		out.Rows, err = DecodeXLSX(blob)
	case internal.FormatXLS:
		out.Rows, err = DecodeXLS(blob)
	case internal.FormatCSV:
		out.Rows, err = DecodeCSV(blob)
	case internal.FormatEML:
		return DecodeEML(name, blob)
	}
	if err != nil {
		return Decoded{}, fmt.Errorf("decode %s: %w", format, err)
	}
	return out, nil
}

// DecodePDF returns the text layer of every page joined by newlines.
func DecodePDF(content []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader: %v", r)
		}
	}()

	// pdfcpu validates the cross-reference structure the text reader trusts blindly
	pages, err = api.PageCount(bytes.NewReader(content), model.NewDefaultConfiguration())
	if err != nil {
		return "", 0, err
	}

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, err
	}
	parts := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		parts = append(parts, pageText)
	}
	text = strings.Join(parts, "\n")
	if strings.TrimSpace(text) == "" {
		return "", pages, errEmptyText
	}
	return text, pages, nil
}

// DecodeXLSX returns the first sheet holding any rows. Cells keep their raw
// values so amounts are not reformatted by number styles.
func DecodeXLSX(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			continue
		}
		if hasCells(rows) {
			return rows, nil
		}
	}
	return nil, errNoWorksheet
}

func DecodeXLS(content []byte) (rows [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("xls reader: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(content), "utf-8")
	if err != nil {
		return nil, err
	}
	for s := 0; s < wb.NumSheets(); s++ {
		sheet := wb.GetSheet(s)
		if sheet == nil {
			continue
		}
		rows = rows[:0]
		for i := 0; i <= int(sheet.MaxRow); i++ {
			row := sheet.Row(i)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cells := make([]string, 0, row.LastCol())
			for c := 0; c < row.LastCol(); c++ {
				cells = append(cells, strings.TrimSpace(row.Col(c)))
			}
			rows = append(rows, cells)
		}
		if hasCells(rows) {
			return rows, nil
		}
	}
	return nil, errNoWorksheet
}

// DecodeCSV reads UTF-8 or Windows-1252 exports with comma, semicolon or
// tab delimiters.
func DecodeCSV(content []byte) ([][]string, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	var src io.Reader = bytes.NewReader(content)
	if !utf8.Valid(content) {
		src = transform.NewReader(src, charmap.Windows1252.NewDecoder())
	}

	r := csv.NewReader(src)
	r.Comma = sniffDelimiter(content)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if !hasCells(rows) {
		return nil, errNoWorksheet
	}
	return rows, nil
}

func sniffDelimiter(content []byte) rune {
	sample := content
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := bytes.Count(sample, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// DecodeEML decodes the first report attachment of a mail, or the body text
// when it carries none.
func DecodeEML(name string, raw []byte) (Decoded, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return Decoded{}, fmt.Errorf("decode eml: %w", err)
	}

	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			continue
		}
		format, err := DetectFormat(filename, att.Content)
		if err != nil || format == internal.FormatEML {
			continue
		}
		return Decode(filename, att.Content)
	}

	body := env.Text
	if strings.TrimSpace(body) == "" && env.HTML != "" {
		body = htmlText(env.HTML)
	}
	if strings.TrimSpace(body) == "" {
		return Decoded{}, fmt.Errorf("decode eml: %w", errEmptyText)
	}
	// a forwarded statement body reads like a PDF text layer
	return Decoded{Format: internal.FormatPDF, Name: name, Text: body}, nil
}

func hasCells(rows [][]string) bool {
	for _, row := range rows {
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				return true
			}
		}
	}
	return false
}

// rowsText flattens rows into text for marketplace detection.
func rowsText(rows [][]string) string {
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(util.NormalizeSpaces(strings.Join(row, " ")))
		b.WriteByte('\n')
	}
	return b.String()
}

// htmlText keeps the text of an HTML mail body, one line per block element.
func htmlText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p,div,tr,li,h1,h2,h3").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	doc.Find("td,th").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return doc.Text()
}
