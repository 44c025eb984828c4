package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Title: "Pagos a profesores",
		Columns: []Column{
			{Key: "teacher", Label: "Profesor"},
			{Key: "classes", Label: "Clases", Align: "R"},
			{Key: "total", Label: "Total", Align: "R"},
		},
		Rows: []map[string]string{
			{"teacher": "Ana Núñez", "classes": "4", "total": "200.00"},
			{"teacher": "Luis", "classes": "1", "total": "50.00"},
		},
		Footer: map[string]string{"teacher": "Total", "classes": "5", "total": "250.00"},
	}
}

func TestRenderCSV(t *testing.T) {
	data, err := RenderCSV(sampleTable())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, utf8BOM))

	records, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"Profesor", "Clases", "Total"}, records[0])
	assert.Equal(t, []string{"Ana Núñez", "4", "200.00"}, records[1])
	assert.Equal(t, []string{"Total", "5", "250.00"}, records[3])
}

func TestRenderPDF(t *testing.T) {
	data, err := RenderPDF(sampleTable())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestRenderRequiresColumns(t *testing.T) {
	_, err := RenderCSV(Table{})
	assert.Error(t, err)
	_, err = RenderPDF(Table{})
	assert.Error(t, err)
}
