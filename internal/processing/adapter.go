package processing

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/ocha-dap/aadatakit/internal/config"
)

// Transformation names understood by the adapter.
const (
	TransformClip               = "clip"
	TransformStats              = "stats"
	TransformNormalizeLongitude = "normalize-longitude"
	TransformSelect             = "select"
	TransformAggregate          = "aggregate"
)

// TransformSpec is a parsed transformation declaration of the form
// "name" or "name:args"
type TransformSpec struct {
	Name string
	Args string
}

// ParseTransformSpec parses a transformation declaration
func ParseTransformSpec(spec string) (TransformSpec, error) {
	name, args, _ := strings.Cut(spec, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return TransformSpec{}, &TransformError{Transform: spec, Reason: "empty transformation name"}
	}

	switch name {
	case TransformClip, TransformStats, TransformNormalizeLongitude,
		TransformSelect, TransformAggregate:
	default:
		return TransformSpec{}, &TransformError{Transform: spec, Reason: "unknown transformation"}
	}

	return TransformSpec{Name: name, Args: args}, nil
}

func (s TransformSpec) String() string {
	if s.Args == "" {
		return s.Name
	}
	return s.Name + ":" + s.Args
}

// ProcessRequest identifies the artifact to process and the transformation
// to apply. SourceID and Version are carried into the result metadata.
type ProcessRequest struct {
	ArtifactPath string
	Format       string
	SourceID     string
	Version      string
	Spec         TransformSpec
}

// ProcessedArtifact is the output of a processing run. Content is fully
// deterministic for a given (artifact, transformation) pair; GeneratedAt is
// metadata only and never part of Content.
type ProcessedArtifact struct {
	SourceID    string
	Version     string
	Transform   string
	ContentType string
	GeneratedAt time.Time
	Content     []byte
}

// Adapter converts raw artifacts into analysis-ready representations
type Adapter struct{}

// NewAdapter creates a processing adapter
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Process loads the artifact according to its declared format and applies
// the transformation. It has no side effects beyond the returned value.
func (a *Adapter) Process(ctx context.Context, req ProcessRequest) (*ProcessedArtifact, error) {
	logger := logr.FromContextOrDiscard(ctx)

	var (
		content     []byte
		contentType string
		err         error
	)

	switch req.Format {
	case config.FormatGrid:
		content, contentType, err = a.processGrid(req)
	case config.FormatTable:
		content, contentType, err = a.processTable(req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Format)
	}
	if err != nil {
		return nil, err
	}

	logger.V(1).Info("artifact processed",
		"source", req.SourceID, "transform", req.Spec.String(), "bytes", len(content))

	return &ProcessedArtifact{
		SourceID:    req.SourceID,
		Version:     req.Version,
		Transform:   req.Spec.String(),
		ContentType: contentType,
		GeneratedAt: time.Now().UTC(),
		Content:     content,
	}, nil
}

func (a *Adapter) processGrid(req ProcessRequest) ([]byte, string, error) {
	//nolint:gosec // Path comes from the cache manager, not user input
	f, err := os.Open(req.ArtifactPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	grid, err := ParseGrid(f)
	if err != nil {
		return nil, "", fmt.Errorf("%w: not a valid grid artifact: %v", ErrUnsupportedFormat, err)
	}

	switch req.Spec.Name {
	case TransformClip:
		box, boxErr := parseBoundingBox(req.Spec)
		if boxErr != nil {
			return nil, "", boxErr
		}
		clipped, ok := grid.Clip(box[0], box[1], box[2], box[3])
		if !ok {
			return nil, "", &TransformError{
				Transform: req.Spec.String(), Format: req.Format,
				Reason: "no grid cells within clip bounds",
			}
		}
		return encodeGrid(clipped)

	case TransformNormalizeLongitude:
		return encodeGrid(grid.NormalizeLongitude())

	case TransformStats:
		regions, regionsErr := parseRegions(req.Spec)
		if regionsErr != nil {
			return nil, "", regionsErr
		}
		return encodeZonalStats(grid, regions)

	default:
		return nil, "", &TransformError{
			Transform: req.Spec.String(), Format: req.Format,
			Reason: "transformation requires a tabular artifact",
		}
	}
}

func (a *Adapter) processTable(req ProcessRequest) ([]byte, string, error) {
	//nolint:gosec // Path comes from the cache manager, not user input
	f, err := os.Open(req.ArtifactPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	table, err := ParseTable(f)
	if err != nil {
		return nil, "", fmt.Errorf("%w: not a valid table artifact: %v", ErrUnsupportedFormat, err)
	}

	switch req.Spec.Name {
	case TransformSelect:
		if strings.TrimSpace(req.Spec.Args) == "" {
			return nil, "", &TransformError{
				Transform: req.Spec.String(), Format: req.Format,
				Reason: "select requires at least one column",
			}
		}
		columns := strings.Split(req.Spec.Args, ",")
		for i := range columns {
			columns[i] = strings.TrimSpace(columns[i])
		}
		selected, selErr := table.Select(columns)
		if selErr != nil {
			return nil, "", &TransformError{
				Transform: req.Spec.String(), Format: req.Format, Reason: selErr.Error(),
			}
		}
		return encodeTable(selected)

	case TransformAggregate:
		column, stat, ok := strings.Cut(req.Spec.Args, ":")
		if !ok || column == "" || stat == "" {
			return nil, "", &TransformError{
				Transform: req.Spec.String(), Format: req.Format,
				Reason: "aggregate requires <column>:<stat>",
			}
		}
		aggregated, aggErr := table.Aggregate(strings.TrimSpace(column), strings.TrimSpace(stat))
		if aggErr != nil {
			return nil, "", &TransformError{
				Transform: req.Spec.String(), Format: req.Format, Reason: aggErr.Error(),
			}
		}
		return encodeTable(aggregated)

	default:
		return nil, "", &TransformError{
			Transform: req.Spec.String(), Format: req.Format,
			Reason: "transformation requires a grid artifact",
		}
	}
}

// namedRegion is a labelled bounding box used by the stats transformation
type namedRegion struct {
	name string
	box  [4]float64
}

// parseBoundingBox parses "minx,miny,maxx,maxy" transform arguments
func parseBoundingBox(spec TransformSpec) ([4]float64, error) {
	var box [4]float64
	fields := strings.Split(spec.Args, ",")
	if len(fields) != 4 {
		return box, &TransformError{
			Transform: spec.String(),
			Reason:    "clip requires <minx>,<miny>,<maxx>,<maxy>",
		}
	}
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return box, &TransformError{
				Transform: spec.String(),
				Reason:    fmt.Sprintf("invalid bound %q", field),
			}
		}
		box[i] = v
	}
	if box[0] >= box[2] || box[1] >= box[3] {
		return box, &TransformError{
			Transform: spec.String(),
			Reason:    "bounds must satisfy minx < maxx and miny < maxy",
		}
	}
	return box, nil
}

// parseRegions parses "name=minx,miny,maxx,maxy;..." transform arguments
func parseRegions(spec TransformSpec) ([]namedRegion, error) {
	if strings.TrimSpace(spec.Args) == "" {
		return nil, &TransformError{
			Transform: spec.String(),
			Reason:    "stats requires at least one <name>=<minx>,<miny>,<maxx>,<maxy> region",
		}
	}

	var regions []namedRegion
	seen := map[string]bool{}
	for _, part := range strings.Split(spec.Args, ";") {
		name, bounds, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, &TransformError{
				Transform: spec.String(),
				Reason:    fmt.Sprintf("invalid region %q", part),
			}
		}
		if seen[name] {
			return nil, &TransformError{
				Transform: spec.String(),
				Reason:    fmt.Sprintf("duplicate region %q", name),
			}
		}
		seen[name] = true

		boxSpec := TransformSpec{Name: spec.Name, Args: bounds}
		box, err := parseBoundingBox(boxSpec)
		if err != nil {
			return nil, &TransformError{
				Transform: spec.String(),
				Reason:    fmt.Sprintf("region %q: invalid bounds %q", name, bounds),
			}
		}
		regions = append(regions, namedRegion{name: name, box: box})
	}
	return regions, nil
}

func encodeGrid(g *Grid) ([]byte, string, error) {
	var buf bytes.Buffer
	if err := g.Encode(&buf); err != nil {
		return nil, "", fmt.Errorf("failed to encode grid: %w", err)
	}
	return buf.Bytes(), "text/x-esri-ascii-grid", nil
}

func encodeTable(t *Table) ([]byte, string, error) {
	var buf bytes.Buffer
	if err := t.Encode(&buf); err != nil {
		return nil, "", fmt.Errorf("failed to encode table: %w", err)
	}
	return buf.Bytes(), "text/csv", nil
}

// encodeZonalStats computes per-region statistics and renders them as CSV,
// regions in declaration order. Regions with no data cells are skipped.
func encodeZonalStats(g *Grid, regions []namedRegion) ([]byte, string, error) {
	result := &Table{
		Header: []string{"region", "mean", "std", "min", "max", "sum", "count"},
	}
	for _, region := range regions {
		stats, ok := g.ZonalStats(region.box[0], region.box[1], region.box[2], region.box[3])
		if !ok {
			continue
		}
		result.Rows = append(result.Rows, []string{
			region.name,
			formatFloat(stats.Mean),
			formatFloat(stats.Std),
			formatFloat(stats.Min),
			formatFloat(stats.Max),
			formatFloat(stats.Sum),
			strconv.Itoa(stats.Count),
		})
	}
	return encodeTable(result)
}
