package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Resource catalog",
		Headers: []string{"Title", "Grade"},
		Rows: []map[string]string{
			{"Title": "Fractions, part 1", "Grade": "Grade 3"},
			{"Title": "Photosynthesis", "Grade": "Grade 7"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := CSVExporter{}.Render(sampleDataset())
	require.NoError(t, err)
	require.Equal(t, "Title,Grade\n\"Fractions, part 1\",Grade 3\nPhotosynthesis,Grade 7\n", string(out))
}

func TestPDFExporterRender(t *testing.T) {
	out, err := PDFExporter{}.Render(sampleDataset())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := CSVExporter{}.Render(Dataset{})
	require.Error(t, err)
	_, err = PDFExporter{}.Render(Dataset{})
	require.Error(t, err)
}

func TestForFormat(t *testing.T) {
	e, ok := ForFormat("PDF")
	require.True(t, ok)
	require.Equal(t, "application/pdf", e.ContentType())

	e, ok = ForFormat("")
	require.True(t, ok)
	require.Equal(t, FormatCSV, e.Extension())

	_, ok = ForFormat("xlsx")
	require.False(t, ok)
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
