package csvparser

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/ginjaninja78/branch-sales-aggregator/internal/config"
)

func defaultSettings() config.CSVSettings {
	return config.CSVSettings{Delimiter: ",", Encoding: "utf-8"}
}

func TestParse_BasicTable(t *testing.T) {
	input := "Shop,Product Code,Quantity\n" +
		"AWAISIA,P1,3\n" +
		"\n" +
		"BAHRIA TOWN,\"P,2\",4\n"

	data, err := ParseString(input, defaultSettings())
	require.NoError(t, err)

	assert.Equal(t, []string{"Shop", "Product Code", "Quantity"}, data.Headers)
	assert.Equal(t, 3, data.ColumnCount)
	require.Equal(t, 2, data.RowCount)
	assert.Equal(t, []string{"BAHRIA TOWN", "P,2", "4"}, data.Records[1])
	assert.Equal(t, []int{2, 4}, data.Lines)
}

func TestParse_SkipsAllEmptyRecords(t *testing.T) {
	input := "A,B\n,,\n1,2\n  ,\n"
	data, err := ParseString(input, defaultSettings())
	require.NoError(t, err)
	assert.Equal(t, 1, data.RowCount)
}

func TestParse_StripsUTF8BOMAndHeaderWhitespace(t *testing.T) {
	input := "\xEF\xBB\xBFShop , Quantity\nX,1\n"
	data, err := ParseString(input, defaultSettings())
	require.NoError(t, err)
	assert.Equal(t, []string{"Shop", "Quantity"}, data.Headers)
}

func TestParse_RaggedRows(t *testing.T) {
	input := "A,B,C\n1\n1,2,3,4\n"
	data, err := ParseString(input, defaultSettings())
	require.NoError(t, err)
	assert.Len(t, data.Records[0], 1)
	assert.Len(t, data.Records[1], 4)
}

func TestParse_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "\n\n", ",,\n"} {
		_, err := ParseString(input, defaultSettings())
		assert.True(t, errors.Is(err, ErrEmptyInput), "input %q", input)
	}
}

func TestParse_HeaderOnly(t *testing.T) {
	data, err := ParseString("Shop,Quantity\n", defaultSettings())
	require.NoError(t, err)
	assert.Equal(t, 0, data.RowCount)
	assert.Empty(t, data.Records)
}

func TestParse_Windows1252(t *testing.T) {
	encoded, err := charmap.Windows1252.NewEncoder().String("Shop,Product Name\nAWAISIA,Crème\n")
	require.NoError(t, err)

	settings := defaultSettings()
	settings.Encoding = "windows-1252"

	data, err := Parse(bytes.NewReader([]byte(encoded)), settings)
	require.NoError(t, err)
	assert.Equal(t, "Crème", data.Records[0][1])
}

func TestParse_AlternativeDelimiter(t *testing.T) {
	settings := defaultSettings()
	settings.Delimiter = "semicolon"

	data, err := ParseString("A;B\n1,5;2\n", settings)
	require.NoError(t, err)
	assert.Equal(t, []string{"1,5", "2"}, data.Records[0])
}

func TestParse_UnsupportedEncoding(t *testing.T) {
	settings := defaultSettings()
	settings.Encoding = "ebcdic"
	_, err := ParseString("A\n1\n", settings)
	assert.Error(t, err)
}
