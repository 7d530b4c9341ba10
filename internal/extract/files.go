package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
)

// PDF extracts text from PDF files page by page.
type PDF struct{}

func NewPDF() *PDF { return &PDF{} }

func (p *PDF) CanHandle(source string) bool { return hasExt(source, ".pdf") }

func (p *PDF) Extract(ctx context.Context, source string) (*Content, error) {
	f, err := os.Open(source)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}
	return &Content{SourceRef: source, Title: titleFromPath(source), RawText: b.String()}, nil
}

// Text handles plain text files.
type Text struct{}

func NewText() *Text { return &Text{} }

func (t *Text) CanHandle(source string) bool { return hasExt(source, ".txt", ".text") }

func (t *Text) Extract(ctx context.Context, source string) (*Content, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, err
	}
	return &Content{SourceRef: source, Title: titleFromPath(source), RawText: string(data)}, nil
}

// Docx extracts paragraph text from Word documents.
type Docx struct{}

func NewDocx() *Docx { return &Docx{} }

func (d *Docx) CanHandle(source string) bool { return hasExt(source, ".docx") }

func (d *Docx) Extract(ctx context.Context, source string) (*Content, error) {
	r, err := docx.ReadDocxFile(source)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	var b strings.Builder
	for _, line := range strings.Split(textFromXML(content, "w:t"), "\n") {
		if t := strings.TrimSpace(line); t != "" {
			b.WriteString(t)
			b.WriteString("\n")
		}
	}
	return &Content{SourceRef: source, Title: titleFromPath(source), RawText: b.String()}, nil
}

// XLSX extracts sheet contents from Excel workbooks.
type XLSX struct{}

func NewXLSX() *XLSX { return &XLSX{} }

func (x *XLSX) CanHandle(source string) bool { return hasExt(source, ".xlsx") }

func (x *XLSX) Extract(ctx context.Context, source string) (*Content, error) {
	f, err := xlsx.OpenFile(source)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	for _, sheet := range f.Sheets {
		fmt.Fprintf(&b, "Sheet: %s\n", sheet.Name)
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				b.WriteString(cell.String())
				b.WriteString("\t")
			}
			b.WriteString("\n")
		}
	}
	return &Content{SourceRef: source, Title: titleFromPath(source), RawText: b.String()}, nil
}

// ODS extracts sheet contents from OpenDocument spreadsheets.
type ODS struct{}

func NewODS() *ODS { return &ODS{} }

func (o *ODS) CanHandle(source string) bool { return hasExt(source, ".ods") }

func (o *ODS) Extract(ctx context.Context, source string) (*Content, error) {
	f, err := excelize.OpenFile(source)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var b strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "Sheet: %s\n", sheetName)
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
	}
	return &Content{SourceRef: source, Title: titleFromPath(source), RawText: b.String()}, nil
}

// textFromXML pulls the text content of the named element out of raw
// document XML.
func textFromXML(xmlContent, tag string) string {
	var b strings.Builder
	openTag := "<" + tag
	closeTag := "</" + tag + ">"
	parts := strings.Split(xmlContent, openTag)
	for i, part := range parts {
		if i == 0 {
			continue
		}
		// Skip past the rest of the opening tag.
		gt := strings.Index(part, ">")
		if gt < 0 {
			continue
		}
		rest := part[gt+1:]
		if end := strings.Index(rest, closeTag); end >= 0 {
			b.WriteString(rest[:end])
			b.WriteString(" ")
		} else if end := strings.Index(rest, "</"); end >= 0 {
			b.WriteString(rest[:end])
			b.WriteString(" ")
		}
	}
	return b.String()
}
