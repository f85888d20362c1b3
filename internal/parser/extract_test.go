package parser

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, body := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestExtractText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("BRAND VOICE\n\nWarm and precise."), 0o600))

	pages, err := ExtractPages(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
	assert.Contains(t, pages[0].Text, "Warm and precise.")
}

func TestExtractEmptyText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte(" \n\n "), 0o600))

	pages, err := ExtractPages(path)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestExtractDOCX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brief.docx")
	writeZip(t, path, map[string]string{
		"word/document.xml": `<w:document><w:body>` +
			`<w:p><w:r><w:t>Creative Brief</w:t></w:r></w:p>` +
			`<w:p><w:r><w:t xml:space="preserve">Colour you can </w:t></w:r><w:r><w:t>trust &amp; share</w:t></w:r></w:p>` +
			`</w:body></w:document>`,
		"word/_rels/document.xml.rels": `<Relationships/>`,
	})

	pages, err := ExtractPages(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Creative Brief\n\nColour you can trust & share\n\n", pages[0].Text)
}

func TestExtractPPTXOrdersSlides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	writeZip(t, path, map[string]string{
		"ppt/slides/slide10.xml":           `<p:sld><a:p><a:t>Ten</a:t></a:p></p:sld>`,
		"ppt/slides/slide2.xml":            `<p:sld><a:p><a:t>Two</a:t><a:t>words</a:t></a:p></p:sld>`,
		"ppt/slides/slide3.xml":            `<p:sld></p:sld>`,
		"ppt/slides/_rels/slide2.xml.rels": `<Relationships/>`,
		"ppt/presentation.xml":             `<p:presentation/>`,
	})

	pages, err := ExtractPages(path)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 2, pages[0].Number)
	assert.Equal(t, "Two words\n", pages[0].Text)
	assert.Equal(t, 10, pages[1].Number)
}

func TestExtractXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "palette.xlsx")
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Palette")
	require.NoError(t, err)
	row := sheet.AddRow()
	row.AddCell().SetString("Spyder Red")
	row.AddCell().SetString("#E4002B")
	_, err = f.AddSheet("Empty")
	require.NoError(t, err)
	require.NoError(t, f.Save(path))

	pages, err := ExtractPages(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
	assert.Contains(t, pages[0].Text, "## Sheet: Palette")
	assert.Contains(t, pages[0].Text, "Spyder Red\t#E4002B")
}

func TestExtractWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.xlsm")
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Channel"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Instagram"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	pages, err := ExtractPages(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0].Text, "Channel\tInstagram")
}

func TestExtractUnsupported(t *testing.T) {
	_, err := ExtractPages("logo.png")
	assert.ErrorContains(t, err, "unsupported file format: .png")
}

func TestExtractMissingPDF(t *testing.T) {
	_, err := ExtractPages(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
