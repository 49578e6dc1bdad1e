package tools

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/PabloGalante/insighter/internal/domain"
)

const defaultMaxChars = 20000

// DocumentTools returns the file analyzer's parsers.
// describer may be nil, in which case image parsing is not offered.
func DocumentTools(fetcher *Fetcher, describer ImageDescriber) []Tool {
	out := []Tool{
		&PDFTool{fetcher: fetcher},
		&WordTool{fetcher: fetcher},
		&DataFileTool{fetcher: fetcher},
	}
	if describer != nil {
		out = append(out, &ImageFileTool{describer: describer})
	}
	return out
}

func urlParam() domain.ToolParam {
	return domain.ToolParam{Name: "url", Type: domain.ParamString, Description: "URL of the uploaded file.", Required: true}
}

func maxCharsParam() domain.ToolParam {
	return domain.ToolParam{Name: "max_chars", Type: domain.ParamInteger, Description: fmt.Sprintf("Maximum characters to return (default %d).", defaultMaxChars)}
}

// PDFTool extracts the plain text of a PDF.
type PDFTool struct {
	fetcher *Fetcher
}

func (t *PDFTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "parse_pdf_document",
		Description: "Extract the text content of a PDF file.",
		Params:      []domain.ToolParam{urlParam(), maxCharsParam()},
	}
}

func (t *PDFTool) Call(ctx context.Context, _ ToolContext, args map[string]any) (string, error) {
	data, err := t.fetcher.Fetch(ctx, getString(args, "url"))
	if err != nil {
		return "", failed("download", err)
	}

	text, pages, err := pdfText(data)
	if err != nil {
		return "", failed("parse pdf", err)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Sprintf("pdf has %d pages but no extractable text (it may be scanned)", pages), nil
	}
	return fmt.Sprintf("pdf, %d pages:\n%s", pages, truncate(text, getInt(args, "max_chars", defaultMaxChars))), nil
}

func pdfText(data []byte) (text string, pages int, err error) {
	defer func() {
		// the pdf package panics on some malformed inputs
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", 0, err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", 0, err
	}
	return buf.String(), r.NumPage(), nil
}

// WordTool extracts paragraphs from a .docx file.
type WordTool struct {
	fetcher *Fetcher
}

func (t *WordTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "parse_word_document",
		Description: "Extract the paragraphs of a Word (.docx) document.",
		Params:      []domain.ToolParam{urlParam(), maxCharsParam()},
	}
}

func (t *WordTool) Call(ctx context.Context, _ ToolContext, args map[string]any) (string, error) {
	data, err := t.fetcher.Fetch(ctx, getString(args, "url"))
	if err != nil {
		return "", failed("download", err)
	}

	text, err := docxText(data)
	if err != nil {
		return "", failed("parse word document", err)
	}
	if strings.TrimSpace(text) == "" {
		return "document is empty", nil
	}
	return truncate(text, getInt(args, "max_chars", defaultMaxChars)), nil
}

func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("not a docx archive: %w", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body = f
			break
		}
	}
	if body == nil {
		return "", errors.New("word/document.xml missing")
	}

	rc, err := body.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var (
		b      strings.Builder
		inText bool
	)
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(el)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// DataFileTool previews a CSV/TSV file and summarizes numeric columns.
type DataFileTool struct {
	fetcher *Fetcher
}

func (t *DataFileTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "parse_data_file",
		Description: "Read a CSV or TSV file: column names, row count, a preview and numeric column statistics.",
		Params: []domain.ToolParam{
			urlParam(),
			{Name: "preview_rows", Type: domain.ParamInteger, Description: "Rows to preview (default 10)."},
		},
	}
}

func (t *DataFileTool) Call(ctx context.Context, _ ToolContext, args map[string]any) (string, error) {
	url := getString(args, "url")
	data, err := t.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", failed("download", err)
	}

	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	if strings.HasSuffix(strings.ToLower(url), ".tsv") {
		r.Comma = '\t'
	}
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return "", failed("parse data file", err)
	}
	if len(records) == 0 {
		return "file is empty", nil
	}
	return summarizeRecords(records, getInt(args, "preview_rows", 10)), nil
}

type columnStats struct {
	count         int
	min, max, sum float64
}

func summarizeRecords(records [][]string, preview int) string {
	header, rows := records[0], records[1:]

	var b strings.Builder
	fmt.Fprintf(&b, "columns (%d): %s\n", len(header), strings.Join(header, ", "))
	fmt.Fprintf(&b, "rows: %d\n", len(rows))

	if preview > 0 && len(rows) > 0 {
		b.WriteString("\npreview:\n| " + strings.Join(header, " | ") + " |\n")
		for i, row := range rows {
			if i >= preview {
				break
			}
			b.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
	}

	stats := make([]columnStats, len(header))
	numeric := make([]bool, len(header))
	for i := range numeric {
		numeric[i] = true
	}
	for _, row := range rows {
		for i := range header {
			if i >= len(row) || strings.TrimSpace(row[i]) == "" {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
			if err != nil {
				numeric[i] = false
				continue
			}
			s := &stats[i]
			if s.count == 0 {
				s.min, s.max = v, v
			}
			s.min = math.Min(s.min, v)
			s.max = math.Max(s.max, v)
			s.sum += v
			s.count++
		}
	}

	first := true
	for i, name := range header {
		if !numeric[i] || stats[i].count == 0 {
			continue
		}
		if first {
			b.WriteString("\nnumeric columns:\n")
			first = false
		}
		s := stats[i]
		fmt.Fprintf(&b, "- %s: min=%g max=%g mean=%.4g\n", name, s.min, s.max, s.sum/float64(s.count))
	}
	return strings.TrimRight(b.String(), "\n")
}
