package processing

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTable = `date,region,cases
2024-01-01,north,10
2024-01-02,north,12
2024-01-03,south,7
`

func TestParseTable(t *testing.T) {
	t.Parallel()

	table, err := ParseTable(strings.NewReader(testTable))
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "region", "cases"}, table.Header)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, []string{"2024-01-03", "south", "7"}, table.Rows[2])
}

func TestParseTableEmpty(t *testing.T) {
	t.Parallel()

	_, err := ParseTable(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header row")
}

func TestTableSelect(t *testing.T) {
	t.Parallel()

	table, err := ParseTable(strings.NewReader(testTable))
	require.NoError(t, err)

	selected, err := table.Select([]string{"cases", "date"})
	require.NoError(t, err)

	assert.Equal(t, []string{"cases", "date"}, selected.Header)
	assert.Equal(t, []string{"10", "2024-01-01"}, selected.Rows[0])
}

func TestTableSelectMissingColumn(t *testing.T) {
	t.Parallel()

	table, err := ParseTable(strings.NewReader(testTable))
	require.NoError(t, err)

	_, err = table.Select([]string{"date", "deaths"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "deaths" not found`)
}

func TestTableAggregate(t *testing.T) {
	t.Parallel()

	table, err := ParseTable(strings.NewReader(testTable))
	require.NoError(t, err)

	tests := []struct {
		stat string
		want string
	}{
		{stat: "mean", want: "9.666666666666666"},
		{stat: "sum", want: "29"},
		{stat: "min", want: "7"},
		{stat: "max", want: "12"},
		{stat: "count", want: "3"},
	}

	for _, tt := range tests {
		t.Run(tt.stat, func(t *testing.T) {
			t.Parallel()
			result, err := table.Aggregate("cases", tt.stat)
			require.NoError(t, err)
			require.Len(t, result.Rows, 1)
			assert.Equal(t, []string{"cases", tt.stat, tt.want}, result.Rows[0])
		})
	}
}

func TestTableAggregateErrors(t *testing.T) {
	t.Parallel()

	table, err := ParseTable(strings.NewReader(testTable))
	require.NoError(t, err)

	_, err = table.Aggregate("deaths", "mean")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = table.Aggregate("region", "mean")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-numeric")

	_, err = table.Aggregate("cases", "median")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown statistic")
}

func TestTableEncode(t *testing.T) {
	t.Parallel()

	table, err := ParseTable(strings.NewReader(testTable))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, table.Encode(&buf))
	assert.Equal(t, testTable, buf.String())
}
