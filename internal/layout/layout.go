// Package layout computes wrapped row placement for a rendered score and
// carries the per-render geometry snapshot consumed by selection and
// playback math.
package layout

// Config holds the layout constants for a render pass.
type Config struct {
	StaveWidth     float64 // width of one measure's stave segment
	StaveHeight    float64
	MeasuresPerRow int
	Padding        float64 // horizontal canvas padding
	RowSpacing     float64 // vertical gap between rows
	TopY           float64 // first row's top offset
}

func DefaultConfig() Config {
	return Config{
		StaveWidth:     220,
		StaveHeight:    80,
		MeasuresPerRow: 4,
		Padding:        20,
		RowSpacing:     40,
		TopY:           60,
	}
}

// Row is one wrapped line of measures.
type Row struct {
	Index        int
	StartMeasure int
	EndMeasure   int // inclusive
	Y            float64
}

// Plan is the computed layout for a measure count.
type Plan struct {
	Rows         []Row
	TotalRows    int
	CanvasWidth  float64
	CanvasHeight float64
}

// Compute lays out measureCount measures into wrapped rows. Pure; a zero
// measure count yields zero rows and a minimal canvas.
func Compute(measureCount int, cfg Config) Plan {
	perRow := cfg.MeasuresPerRow
	if perRow < 1 {
		perRow = 1
	}
	totalRows := 0
	if measureCount > 0 {
		totalRows = (measureCount + perRow - 1) / perRow
	}
	rows := make([]Row, 0, totalRows)
	for i := 0; i < totalRows; i++ {
		start := i * perRow
		end := start + perRow - 1
		if end >= measureCount {
			end = measureCount - 1
		}
		rows = append(rows, Row{
			Index:        i,
			StartMeasure: start,
			EndMeasure:   end,
			Y:            cfg.TopY + float64(i)*(cfg.StaveHeight+cfg.RowSpacing),
		})
	}
	width := cfg.Padding*2 + float64(perRow)*cfg.StaveWidth
	height := cfg.TopY + cfg.Padding
	if totalRows > 0 {
		last := rows[totalRows-1]
		height = last.Y + cfg.StaveHeight + cfg.Padding
	}
	return Plan{
		Rows:         rows,
		TotalRows:    totalRows,
		CanvasWidth:  width,
		CanvasHeight: height,
	}
}

// RowFor locates the row covering a measure index.
func (p Plan) RowFor(measure int) (Row, bool) {
	for _, r := range p.Rows {
		if measure >= r.StartMeasure && measure <= r.EndMeasure {
			return r, true
		}
	}
	return Row{}, false
}
