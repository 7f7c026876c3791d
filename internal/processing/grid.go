package processing

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// defaultNoData is the conventional ESRI ASCII grid nodata marker
const defaultNoData = -9999

// Grid is an in-memory ESRI ASCII grid raster. Values are stored row-major
// with the first row being the northernmost, matching the file layout.
type Grid struct {
	NCols    int
	NRows    int
	XLL      float64
	YLL      float64
	CellSize float64
	NoData   float64
	Values   [][]float64
}

// ParseGrid reads an ESRI ASCII grid. Grids arriving with south-up row
// ordering cannot be represented in this format, but inverted longitude
// ranges (0..360) are preserved as-is and handled by NormalizeLongitude.
func ParseGrid(r io.Reader) (*Grid, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	g := &Grid{NoData: defaultNoData}
	headers := map[string]bool{}

	// Header lines are "<key> <value>" pairs; the grid body starts at the
	// first line whose leading token is numeric.
	var bodyLines []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		if len(bodyLines) == 0 && len(fields) == 2 && !isNumericToken(fields[0]) {
			key := strings.ToLower(fields[0])
			value, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid grid header %q: %w", line, err)
			}
			switch key {
			case "ncols":
				g.NCols = int(value)
			case "nrows":
				g.NRows = int(value)
			case "xllcorner":
				g.XLL = value
			case "yllcorner":
				g.YLL = value
			case "cellsize":
				g.CellSize = value
			case "nodata_value":
				g.NoData = value
			default:
				return nil, fmt.Errorf("unknown grid header %q", fields[0])
			}
			headers[key] = true
			continue
		}

		bodyLines = append(bodyLines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read grid: %w", err)
	}

	for _, required := range []string{"ncols", "nrows", "xllcorner", "yllcorner", "cellsize"} {
		if !headers[required] {
			return nil, fmt.Errorf("grid header %s is missing", required)
		}
	}
	if g.NCols <= 0 || g.NRows <= 0 {
		return nil, fmt.Errorf("grid dimensions %dx%d are invalid", g.NCols, g.NRows)
	}
	if g.CellSize <= 0 {
		return nil, fmt.Errorf("grid cellsize %g is invalid", g.CellSize)
	}
	if len(bodyLines) != g.NRows {
		return nil, fmt.Errorf("grid body has %d rows, header declares %d", len(bodyLines), g.NRows)
	}

	g.Values = make([][]float64, g.NRows)
	for i, line := range bodyLines {
		fields := strings.Fields(line)
		if len(fields) != g.NCols {
			return nil, fmt.Errorf("grid row %d has %d values, header declares %d", i, len(fields), g.NCols)
		}
		row := make([]float64, g.NCols)
		for j, field := range fields {
			value, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid grid value %q at row %d col %d: %w", field, i, j, err)
			}
			row[j] = value
		}
		g.Values[i] = row
	}

	return g, nil
}

func isNumericToken(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// Encode writes the grid in canonical ASCII grid form: headers in fixed
// order and every number through formatFloat, so encoding is deterministic.
func (g *Grid) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "ncols %d\n", g.NCols)
	fmt.Fprintf(bw, "nrows %d\n", g.NRows)
	fmt.Fprintf(bw, "xllcorner %s\n", formatFloat(g.XLL))
	fmt.Fprintf(bw, "yllcorner %s\n", formatFloat(g.YLL))
	fmt.Fprintf(bw, "cellsize %s\n", formatFloat(g.CellSize))
	fmt.Fprintf(bw, "nodata_value %s\n", formatFloat(g.NoData))

	for _, row := range g.Values {
		for j, value := range row {
			if j > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(formatFloat(value)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// CellCenter returns the geographic center of the cell at (row, col)
func (g *Grid) CellCenter(row, col int) (x, y float64) {
	x = g.XLL + (float64(col)+0.5)*g.CellSize
	y = g.YLL + (float64(g.NRows-1-row)+0.5)*g.CellSize
	return x, y
}

// Clip returns the subgrid whose cell centers fall within the bounding box.
// Returns ok=false when no cells overlap.
func (g *Grid) Clip(minX, minY, maxX, maxY float64) (*Grid, bool) {
	firstRow, lastRow := -1, -1
	firstCol, lastCol := -1, -1

	for row := 0; row < g.NRows; row++ {
		_, y := g.CellCenter(row, 0)
		if y >= minY && y <= maxY {
			if firstRow < 0 {
				firstRow = row
			}
			lastRow = row
		}
	}
	for col := 0; col < g.NCols; col++ {
		x, _ := g.CellCenter(0, col)
		if x >= minX && x <= maxX {
			if firstCol < 0 {
				firstCol = col
			}
			lastCol = col
		}
	}
	if firstRow < 0 || firstCol < 0 {
		return nil, false
	}

	clipped := &Grid{
		NCols:    lastCol - firstCol + 1,
		NRows:    lastRow - firstRow + 1,
		CellSize: g.CellSize,
		NoData:   g.NoData,
	}
	clipped.XLL = g.XLL + float64(firstCol)*g.CellSize
	clipped.YLL = g.YLL + float64(g.NRows-1-lastRow)*g.CellSize

	clipped.Values = make([][]float64, clipped.NRows)
	for row := 0; row < clipped.NRows; row++ {
		clipped.Values[row] = append([]float64(nil), g.Values[firstRow+row][firstCol:lastCol+1]...)
	}
	return clipped, true
}

// NormalizeLongitude converts a grid stored with 0..360 longitudes to the
// -180..180 range, reordering columns so longitude ascends. Grids already in
// range are returned unchanged.
func (g *Grid) NormalizeLongitude() *Grid {
	maxX, _ := g.CellCenter(0, g.NCols-1)
	if maxX <= 180 {
		return g
	}

	type column struct {
		x     float64
		index int
	}
	columns := make([]column, g.NCols)
	for col := 0; col < g.NCols; col++ {
		x, _ := g.CellCenter(0, col)
		converted := math.Mod(x+180, 360) - 180
		columns[col] = column{x: converted, index: col}
	}
	sort.SliceStable(columns, func(i, j int) bool { return columns[i].x < columns[j].x })

	normalized := &Grid{
		NCols:    g.NCols,
		NRows:    g.NRows,
		YLL:      g.YLL,
		CellSize: g.CellSize,
		NoData:   g.NoData,
	}
	normalized.XLL = columns[0].x - 0.5*g.CellSize

	normalized.Values = make([][]float64, g.NRows)
	for row := 0; row < g.NRows; row++ {
		newRow := make([]float64, g.NCols)
		for col, c := range columns {
			newRow[col] = g.Values[row][c.index]
		}
		normalized.Values[row] = newRow
	}
	return normalized
}

// Stats are the per-region zonal statistics computed over a grid
type Stats struct {
	Mean  float64
	Std   float64
	Min   float64
	Max   float64
	Sum   float64
	Count int
}

// ZonalStats computes statistics over the cells whose centers fall within
// the bounding box, ignoring nodata cells. Returns ok=false when the box
// contains no data cells.
func (g *Grid) ZonalStats(minX, minY, maxX, maxY float64) (Stats, bool) {
	var s Stats
	s.Min = math.Inf(1)
	s.Max = math.Inf(-1)

	var sumSquares float64
	for row := 0; row < g.NRows; row++ {
		for col := 0; col < g.NCols; col++ {
			x, y := g.CellCenter(row, col)
			if x < minX || x > maxX || y < minY || y > maxY {
				continue
			}
			value := g.Values[row][col]
			if value == g.NoData {
				continue
			}
			s.Count++
			s.Sum += value
			sumSquares += value * value
			s.Min = math.Min(s.Min, value)
			s.Max = math.Max(s.Max, value)
		}
	}
	if s.Count == 0 {
		return Stats{}, false
	}

	n := float64(s.Count)
	s.Mean = s.Sum / n
	variance := sumSquares/n - s.Mean*s.Mean
	if variance < 0 {
		variance = 0
	}
	s.Std = math.Sqrt(variance)
	return s, true
}

// formatFloat is the single canonical float formatting used in all encoded
// output; shortest round-trip representation keeps results bit-stable.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
