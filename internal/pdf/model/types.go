package model

import (
	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
)

// TextSpan is a run of text with its font and semantic classification
type TextSpan struct {
	Text         string  `json:"text"`
	FontFamily   string  `json:"font_family,omitempty"`
	FontSize     float64 `json:"font_size"`
	Bold         bool    `json:"bold"`
	Italic       bool    `json:"italic"`
	SemanticType string  `json:"semantic_type,omitempty"`
	Source       string  `json:"source,omitempty"`
}

// Table detection methods.
const (
	MethodGridSnap  = "grid_snap"
	MethodGeometric = "geometric_analysis"
)

// Table is a rectangular grid of cell strings
type Table struct {
	Data       [][]string    `json:"data"`
	Rows       int           `json:"rows"`
	Cols       int           `json:"cols"`
	Method     string        `json:"method"`
	HasHeader  bool          `json:"has_header"`
	HasBorders bool          `json:"has_borders"`
	TableType  string        `json:"table_type,omitempty"`
	Columns    []ColumnMeta  `json:"columns,omitempty"`
	Regularity string        `json:"regularity,omitempty"`
	Grid       *GridGeometry `json:"grid,omitempty"`
	// Spans are the member spans of a table found without ruling. They
	// are rendered where they were found.
	Spans []CellSpan `json:"-"`
}

// ColumnMeta describes the inferred content type of a column
type ColumnMeta struct {
	Index     int    `json:"index"`
	DataType  string `json:"data_type"`
	Alignment string `json:"alignment"`
}

// GridGeometry records the ruling a grid-snapped table was built on and the
// placement of every snapped span. Cells are not serialized.
type GridGeometry struct {
	ColEdges []float64    `json:"col_edges"`
	RowEdges []float64    `json:"row_edges"`
	Cells    [][]GridCell `json:"-"`
}

// GridCell is one cell of a snapped grid
type GridCell struct {
	Box   geom.Box
	Spans []CellSpan
}

// CellSpan is a span placed inside a grid cell
type CellSpan struct {
	Text     string
	Box      geom.Box
	FontSize float64
	Font     string
	Bold     bool
}

// Normalize pads every row to the widest row so the grid is rectangular,
// and refreshes Rows and Cols.
func (t *Table) Normalize() {
	cols := 0
	for _, row := range t.Data {
		if len(row) > cols {
			cols = len(row)
		}
	}
	for i, row := range t.Data {
		for len(row) < cols {
			row = append(row, "")
		}
		t.Data[i] = row
	}
	t.Rows = len(t.Data)
	t.Cols = cols
}

// Image is an embedded raster drawn on the page
type Image struct {
	ImageData    string      `json:"image_data,omitempty"`
	Format       string      `json:"format,omitempty"`
	PixelWidth   int         `json:"pixel_width"`
	PixelHeight  int         `json:"pixel_height"`
	Name         string      `json:"name,omitempty"`
	IsBackground bool        `json:"is_background"`
	OCROverlay   *OCROverlay `json:"ocr_overlay,omitempty"`
}

// Shape is a stroked or filled vector primitive
type Shape struct {
	ShapeType  string          `json:"shape_type"`
	Properties ShapeProperties `json:"properties"`
}

// ShapeProperties holds paint attributes
type ShapeProperties struct {
	StrokeColor string  `json:"stroke_color,omitempty"`
	FillColor   string  `json:"fill_color,omitempty"`
	LineWidth   float64 `json:"line_width"`
}

// TextBlock is a group of nearby lines outside table zones
type TextBlock struct {
	ID         string        `json:"id"`
	Page       int           `json:"page"`
	Index      int           `json:"index"`
	Text       string        `json:"text"`
	BlockType  string        `json:"block_type"`
	FontSize   float64       `json:"font_size"`
	FontFamily string        `json:"font_family,omitempty"`
	Bold       bool          `json:"bold"`
	SpanCount  int           `json:"span_count"`
	Level      int           `json:"level,omitempty"`
	Confidence float64       `json:"confidence"`
	Position   geom.Position `json:"position"`
	Box        geom.Box      `json:"-"`
}
