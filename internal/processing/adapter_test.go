package processing

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocha-dap/aadatakit/internal/config"
)

func writeArtifact(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestParseTransformSpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    TransformSpec
		wantErr bool
	}{
		{
			name:  "bare name",
			input: "normalize-longitude",
			want:  TransformSpec{Name: "normalize-longitude"},
		},
		{
			name:  "name with args",
			input: "clip:0,0,10,10",
			want:  TransformSpec{Name: "clip", Args: "0,0,10,10"},
		},
		{
			name:  "aggregate keeps nested separator",
			input: "aggregate:cases:mean",
			want:  TransformSpec{Name: "aggregate", Args: "cases:mean"},
		},
		{
			name:    "unknown name",
			input:   "reproject:4326",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			spec, err := ParseTransformSpec(tt.input)
			if tt.wantErr {
				var terr *TransformError
				require.ErrorAs(t, err, &terr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, spec)
			assert.Equal(t, tt.input, spec.String())
		})
	}
}

func TestAdapterProcessGridClip(t *testing.T) {
	t.Parallel()

	path := writeArtifact(t, "artifact.asc", testGrid)
	adapter := NewAdapter()

	spec, err := ParseTransformSpec("clip:1,1,3,3")
	require.NoError(t, err)

	result, err := adapter.Process(context.Background(), ProcessRequest{
		ArtifactPath: path,
		Format:       config.FormatGrid,
		SourceID:     "chirps",
		Version:      "2024-01",
		Spec:         spec,
	})
	require.NoError(t, err)

	assert.Equal(t, "chirps", result.SourceID)
	assert.Equal(t, "2024-01", result.Version)
	assert.Equal(t, "clip:1,1,3,3", result.Transform)
	assert.Equal(t, "text/x-esri-ascii-grid", result.ContentType)

	clipped, err := ParseGrid(bytes.NewReader(result.Content))
	require.NoError(t, err)
	assert.Equal(t, 2, clipped.NCols)
	assert.Equal(t, 2, clipped.NRows)
}

func TestAdapterProcessGridStats(t *testing.T) {
	t.Parallel()

	path := writeArtifact(t, "artifact.asc", testGrid)
	adapter := NewAdapter()

	spec, err := ParseTransformSpec("stats:all=0,0,3,3;empty=50,50,60,60")
	require.NoError(t, err)

	result, err := adapter.Process(context.Background(), ProcessRequest{
		ArtifactPath: path,
		Format:       config.FormatGrid,
		Spec:         spec,
	})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)

	table, err := ParseTable(bytes.NewReader(result.Content))
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "mean", "std", "min", "max", "sum", "count"}, table.Header)

	// The empty region contributes no row.
	require.Len(t, table.Rows, 1)
	row := table.Rows[0]
	assert.Equal(t, "all", row[0])
	assert.Equal(t, "5", row[1])
	assert.Equal(t, "1", row[3])
	assert.Equal(t, "9", row[4])
	assert.Equal(t, "40", row[5])
	assert.Equal(t, "8", row[6])
}

func TestAdapterProcessTableSelect(t *testing.T) {
	t.Parallel()

	path := writeArtifact(t, "artifact.csv", testTable)
	adapter := NewAdapter()

	spec, err := ParseTransformSpec("select:date,cases")
	require.NoError(t, err)

	result, err := adapter.Process(context.Background(), ProcessRequest{
		ArtifactPath: path,
		Format:       config.FormatTable,
		Spec:         spec,
	})
	require.NoError(t, err)
	assert.Equal(t, "date,cases\n2024-01-01,10\n2024-01-02,12\n2024-01-03,7\n", string(result.Content))
}

func TestAdapterProcessTableAggregate(t *testing.T) {
	t.Parallel()

	path := writeArtifact(t, "artifact.csv", testTable)
	adapter := NewAdapter()

	spec, err := ParseTransformSpec("aggregate:cases:sum")
	require.NoError(t, err)

	result, err := adapter.Process(context.Background(), ProcessRequest{
		ArtifactPath: path,
		Format:       config.FormatTable,
		Spec:         spec,
	})
	require.NoError(t, err)
	assert.Equal(t, "column,stat,value\ncases,sum,29\n", string(result.Content))
}

func TestAdapterProcessDeterministic(t *testing.T) {
	t.Parallel()

	path := writeArtifact(t, "artifact.asc", testGrid)
	adapter := NewAdapter()

	spec, err := ParseTransformSpec("stats:all=0,0,3,3")
	require.NoError(t, err)

	req := ProcessRequest{ArtifactPath: path, Format: config.FormatGrid, Spec: spec}

	first, err := adapter.Process(context.Background(), req)
	require.NoError(t, err)
	second, err := adapter.Process(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Content, second.Content, "identical inputs must produce byte-identical output")
}

func TestAdapterProcessUnsupportedFormat(t *testing.T) {
	t.Parallel()

	adapter := NewAdapter()
	spec, err := ParseTransformSpec("normalize-longitude")
	require.NoError(t, err)

	_, err = adapter.Process(context.Background(), ProcessRequest{
		ArtifactPath: "ignored",
		Format:       "netcdf",
		Spec:         spec,
	})
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestAdapterProcessInapplicableTransform(t *testing.T) {
	t.Parallel()

	adapter := NewAdapter()

	tests := []struct {
		name      string
		artifact  string
		format    string
		transform string
	}{
		{
			name:      "table transform on grid",
			artifact:  testGrid,
			format:    config.FormatGrid,
			transform: "select:region",
		},
		{
			name:      "grid transform on table",
			artifact:  testTable,
			format:    config.FormatTable,
			transform: "clip:0,0,1,1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ext := "csv"
			if tt.format == config.FormatGrid {
				ext = "asc"
			}
			path := writeArtifact(t, "artifact."+ext, tt.artifact)

			spec, err := ParseTransformSpec(tt.transform)
			require.NoError(t, err)

			_, err = adapter.Process(context.Background(), ProcessRequest{
				ArtifactPath: path,
				Format:       tt.format,
				Spec:         spec,
			})
			var terr *TransformError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, tt.format, terr.Format)
		})
	}
}

func TestAdapterProcessMalformedArguments(t *testing.T) {
	t.Parallel()

	adapter := NewAdapter()
	path := writeArtifact(t, "artifact.asc", testGrid)

	tests := []string{
		"clip:1,2,3",
		"clip:abc,0,1,1",
		"clip:2,0,1,1",
		"stats:",
		"stats:a=0,0,1,1;a=0,0,2,2",
		"stats:noequals",
	}

	for _, transform := range tests {
		t.Run(transform, func(t *testing.T) {
			t.Parallel()

			spec, err := ParseTransformSpec(transform)
			require.NoError(t, err)

			_, err = adapter.Process(context.Background(), ProcessRequest{
				ArtifactPath: path,
				Format:       config.FormatGrid,
				Spec:         spec,
			})
			var terr *TransformError
			require.ErrorAs(t, err, &terr)
		})
	}
}
