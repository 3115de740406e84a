package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sitecheck/internal/checker"
)

func sampleRows() []checker.Row {
	return []checker.Row{
		{
			checker.ColURL:        "https://a.example/",
			checker.ColStatusCode: "200",
			checker.AltColumn(1):  "logo",
		},
		{
			checker.ColURL:        "https://b.example/",
			checker.ColStatusCode: "404",
			checker.AltColumn(1):  "",
			checker.AltColumn(2):  "banner",
			checker.AltColumn(3):  "icon",
		},
	}
}

func sampleOptions() checker.CheckOptions {
	return checker.CheckOptions{StatusCodes: true, Images: true}
}

func TestUnionSchemaWidestAltWins(t *testing.T) {
	t.Parallel()

	schema := UnionSchema(sampleOptions(), sampleRows())

	require.Contains(t, schema, checker.AltColumn(3))
	require.NotContains(t, schema, checker.AltColumn(4))
	require.Equal(t, checker.ColURL, schema[0])
}

func TestUnionSchemaNoRows(t *testing.T) {
	t.Parallel()

	schema := UnionSchema(sampleOptions(), nil)
	require.Equal(t, []string{
		checker.ColURL,
		checker.ColStatusCode,
		checker.ColImgCount,
		checker.ColAltCount,
	}, schema)
}

func TestAltIndex(t *testing.T) {
	t.Parallel()

	n, ok := altIndex("Alt-7")
	require.True(t, ok)
	require.Equal(t, 7, n)

	for _, column := range []string{"Alt-0", "Alt-x", "Alternative-1", checker.ColStatusCode} {
		_, ok := altIndex(column)
		require.False(t, ok, column)
	}
}

func TestRowsToCSV(t *testing.T) {
	t.Parallel()

	schema := UnionSchema(sampleOptions(), sampleRows())
	out, err := RowsToCSV(schema, sampleRows())
	require.NoError(t, err)

	require.True(t, bytes.HasPrefix(out, []byte{0xEF, 0xBB, 0xBF}), "spreadsheet tools need the BOM")

	records, err := csv.NewReader(bytes.NewReader(out[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, schema, records[0])

	header := records[0]
	first := records[1]
	second := records[2]
	byCol := func(rec []string, col string) string {
		for i, name := range header {
			if name == col {
				return rec[i]
			}
		}
		t.Fatalf("column %q missing from header", col)
		return ""
	}

	require.Equal(t, "https://a.example/", byCol(first, checker.ColURL))
	require.Equal(t, "logo", byCol(first, checker.AltColumn(1)))
	require.Empty(t, byCol(first, checker.AltColumn(3)), "narrow rows pad with empty cells")
	require.Equal(t, "icon", byCol(second, checker.AltColumn(3)))
}

func TestRowsToXLSX(t *testing.T) {
	t.Parallel()

	schema := UnionSchema(sampleOptions(), sampleRows())
	out, err := RowsToXLSX(schema, sampleRows())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, schema, rows[0])
	require.Equal(t, "https://a.example/", rows[1][0])
	require.Equal(t, "404", rows[2][1])
}

func TestRowsToCSVEmptyBatch(t *testing.T) {
	t.Parallel()

	out, err := RowsToCSV([]string{checker.ColURL}, nil)
	require.NoError(t, err)
	require.Equal(t, append([]byte{0xEF, 0xBB, 0xBF}, []byte(checker.ColURL+"\n")...), out)
}
