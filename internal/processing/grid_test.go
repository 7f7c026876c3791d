package processing

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGrid = `ncols 3
nrows 3
xllcorner 0
yllcorner 0
cellsize 1
nodata_value -9999
1 2 3
4 -9999 6
7 8 9
`

func TestParseGrid(t *testing.T) {
	t.Parallel()

	g, err := ParseGrid(strings.NewReader(testGrid))
	require.NoError(t, err)

	assert.Equal(t, 3, g.NCols)
	assert.Equal(t, 3, g.NRows)
	assert.InDelta(t, 0.0, g.XLL, 1e-12)
	assert.InDelta(t, 0.0, g.YLL, 1e-12)
	assert.InDelta(t, 1.0, g.CellSize, 1e-12)
	assert.InDelta(t, -9999.0, g.NoData, 1e-12)
	assert.Equal(t, []float64{4, -9999, 6}, g.Values[1])
}

func TestParseGridErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "missing header",
			input:   "ncols 2\nnrows 1\nxllcorner 0\nyllcorner 0\n1 2\n",
			wantErr: "cellsize is missing",
		},
		{
			name:    "row count mismatch",
			input:   "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2\n",
			wantErr: "body has 1 rows",
		},
		{
			name:    "column count mismatch",
			input:   "ncols 2\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3\n",
			wantErr: "row 0 has 3 values",
		},
		{
			name:    "non-numeric value",
			input:   "ncols 2\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 abc\n",
			wantErr: "invalid grid value",
		},
		{
			name:    "zero cellsize",
			input:   "ncols 2\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 0\n1 2\n",
			wantErr: "cellsize 0 is invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseGrid(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGridEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	g, err := ParseGrid(strings.NewReader(testGrid))
	require.NoError(t, err)

	var first bytes.Buffer
	require.NoError(t, g.Encode(&first))

	reparsed, err := ParseGrid(bytes.NewReader(first.Bytes()))
	require.NoError(t, err)

	var second bytes.Buffer
	require.NoError(t, reparsed.Encode(&second))

	assert.Equal(t, first.Bytes(), second.Bytes(), "encoding must be a fixed point")
}

func TestGridClip(t *testing.T) {
	t.Parallel()

	g, err := ParseGrid(strings.NewReader(testGrid))
	require.NoError(t, err)

	clipped, ok := g.Clip(1, 1, 3, 3)
	require.True(t, ok)

	assert.Equal(t, 2, clipped.NCols)
	assert.Equal(t, 2, clipped.NRows)
	assert.InDelta(t, 1.0, clipped.XLL, 1e-12)
	assert.InDelta(t, 1.0, clipped.YLL, 1e-12)
	assert.Equal(t, []float64{2, 3}, clipped.Values[0])
	assert.Equal(t, []float64{-9999, 6}, clipped.Values[1])
}

func TestGridClipOutOfBounds(t *testing.T) {
	t.Parallel()

	g, err := ParseGrid(strings.NewReader(testGrid))
	require.NoError(t, err)

	_, ok := g.Clip(100, 100, 200, 200)
	assert.False(t, ok)
}

func TestGridZonalStats(t *testing.T) {
	t.Parallel()

	g, err := ParseGrid(strings.NewReader(testGrid))
	require.NoError(t, err)

	stats, ok := g.ZonalStats(0, 0, 3, 3)
	require.True(t, ok)

	// Data cells are 1..9 with the center removed by nodata.
	assert.Equal(t, 8, stats.Count)
	assert.InDelta(t, 40.0, stats.Sum, 1e-12)
	assert.InDelta(t, 5.0, stats.Mean, 1e-12)
	assert.InDelta(t, 1.0, stats.Min, 1e-12)
	assert.InDelta(t, 9.0, stats.Max, 1e-12)
	assert.InDelta(t, math.Sqrt(7.5), stats.Std, 1e-12)
}

func TestGridZonalStatsEmptyBox(t *testing.T) {
	t.Parallel()

	g, err := ParseGrid(strings.NewReader(testGrid))
	require.NoError(t, err)

	_, ok := g.ZonalStats(50, 50, 60, 60)
	assert.False(t, ok)
}

func TestGridNormalizeLongitude(t *testing.T) {
	t.Parallel()

	input := `ncols 4
nrows 1
xllcorner 0
yllcorner 0
cellsize 90
nodata_value -9999
1 2 3 4
`
	g, err := ParseGrid(strings.NewReader(input))
	require.NoError(t, err)

	normalized := g.NormalizeLongitude()

	// Centers 45, 135, 225, 315 map to 45, 135, -135, -45.
	assert.InDelta(t, -180.0, normalized.XLL, 1e-12)
	assert.Equal(t, []float64{3, 4, 1, 2}, normalized.Values[0])
}

func TestGridNormalizeLongitudeAlreadyInRange(t *testing.T) {
	t.Parallel()

	g, err := ParseGrid(strings.NewReader(testGrid))
	require.NoError(t, err)

	assert.Same(t, g, g.NormalizeLongitude())
}
