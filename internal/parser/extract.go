package parser

import (
	"archive/zip"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"brand-rag/internal/models"
)

const defaultPageNumber = 1

var (
	wordTextRegex  = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	slideTextRegex = regexp.MustCompile(`<a:t>([^<]*)</a:t>`)
	slideNameRegex = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// ExtractPages returns the non-empty pages of a document. Formats without
// pages map slides or sheets to page numbers, or return a single page.
func ExtractPages(filePath string) ([]models.Page, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	var (
		pages []models.Page
		err   error
	)
	switch ext {
	case ".pdf":
		pages, err = extractPDF(filePath)
	case ".docx":
		pages, err = extractDOCX(filePath)
	case ".pptx":
		pages, err = extractPPTX(filePath)
	case ".xlsx":
		pages, err = extractXLSX(filePath)
	case ".xlsm", ".xltx":
		pages, err = extractWorkbook(filePath)
	case ".txt", ".md":
		pages, err = extractText(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", filepath.Base(filePath), err)
	}
	return pages, nil
}

func appendPage(pages []models.Page, number int, text string) []models.Page {
	if strings.TrimSpace(text) == "" {
		return pages
	}
	return append(pages, models.Page{Number: number, Text: text})
}

func extractPDF(filePath string) ([]models.Page, error) {
	f, err := os.Open(filePath)
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

	var pages []models.Page
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = appendPage(pages, i, text)
	}
	log.Debug().Str("file", filepath.Base(filePath)).Int("pages", numPages).Int("with_text", len(pages)).Msg("Extracted PDF")
	return pages, nil
}

func extractDOCX(filePath string) ([]models.Page, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	text := wordXMLToText(r.Editable().GetContent())
	return appendPage(nil, defaultPageNumber, text), nil
}

// wordXMLToText keeps one line per <w:p> paragraph.
func wordXMLToText(content string) string {
	var b strings.Builder
	for _, para := range strings.Split(content, "</w:p>") {
		var line strings.Builder
		for _, m := range wordTextRegex.FindAllStringSubmatch(para, -1) {
			line.WriteString(m[1])
		}
		if s := strings.TrimSpace(line.String()); s != "" {
			b.WriteString(html.UnescapeString(s))
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func extractPPTX(filePath string) ([]models.Page, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	type slide struct {
		number int
		file   *zip.File
	}
	var slides []slide
	for _, file := range f.File {
		m := slideNameRegex.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{number: n, file: file})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	var pages []models.Page
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", s.number, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", s.number, err)
		}
		pages = appendPage(pages, s.number, slideXMLToText(string(data)))
	}
	return pages, nil
}

// slideXMLToText keeps one line per <a:p> paragraph.
func slideXMLToText(content string) string {
	var b strings.Builder
	for _, para := range strings.Split(content, "</a:p>") {
		var parts []string
		for _, m := range slideTextRegex.FindAllStringSubmatch(para, -1) {
			parts = append(parts, m[1])
		}
		if s := strings.TrimSpace(strings.Join(parts, " ")); s != "" {
			b.WriteString(html.UnescapeString(s))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func extractXLSX(filePath string) ([]models.Page, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var pages []models.Page
	for i, sheet := range f.Sheets {
		var text strings.Builder
		fmt.Fprintf(&text, "## Sheet: %s\n\n", sheet.Name)
		rows := 0
		for _, row := range sheet.Rows {
			if row == nil {
				continue
			}
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			if line := strings.TrimSpace(strings.Join(cells, "\t")); line != "" {
				text.WriteString(line + "\n")
				rows++
			}
		}
		if rows > 0 {
			pages = appendPage(pages, i+1, text.String())
		}
	}
	return pages, nil
}

func extractWorkbook(filePath string) ([]models.Page, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []models.Page
	for i, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		var text strings.Builder
		fmt.Fprintf(&text, "## Sheet: %s\n\n", sheetName)
		n := 0
		for _, row := range rows {
			if line := strings.TrimSpace(strings.Join(row, "\t")); line != "" {
				text.WriteString(line + "\n")
				n++
			}
		}
		if n > 0 {
			pages = appendPage(pages, i+1, text.String())
		}
	}
	return pages, nil
}

func extractText(filePath string) ([]models.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return appendPage(nil, defaultPageNumber, string(data)), nil
}
