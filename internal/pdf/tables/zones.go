// Package tables finds table-like regions in positioned text and turns the
// ones backed by real vector ruling into cell grids.
package tables

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
	"github.com/a3tai/faithful-pdf/internal/pdf/text"
)

// domainKeywords mark rows of composition and specification tables. A hit
// is worth two points.
var domainKeywords = []string{
	"mg", "agent", "European", "Pharmacopoeia", "monograph", "substance",
	"Diluent", "Lubricant", "Binding", "Flow", "Disintegrant", "Film-coating",
}

// footnoteStart matches the numbered or symbol marker a footnote opens with
var footnoteStart = regexp.MustCompile(`^(\d{1,2}|[*†‡])\s`)

// Config holds the zone and grid detection thresholds
type Config struct {
	// RowTolerance groups spans whose y0 lies within this distance of the
	// row's running average.
	RowTolerance float64
	// MinScore is the row score needed to count as a table row.
	MinScore int
	// MinZoneRows is the number of consecutive table rows that form a zone.
	MinZoneRows int
	// FootnoteLength is the combined row length above which a row opening
	// with a footnote marker is rejected.
	FootnoteLength int
	// ShortCell is the average cell length below which a row scores a point.
	ShortCell float64
	// SpacingSlack is the largest deviation from the mean gap that still
	// counts as regular spacing.
	SpacingSlack float64

	// LineTolerance widens the zone when collecting ruling.
	LineTolerance float64
	// MinOverlap is the run a line must share with the zone.
	MinOverlap float64
	// MinLines is the number of horizontal and vertical lines that make a grid.
	MinLines int
	// RectWidthCoverage and RectHeightCoverage are the zone fractions a
	// single rectangle must cover to count as a frame.
	RectWidthCoverage  float64
	RectHeightCoverage float64
	// EdgeEpsilon merges edge candidates closer than this.
	EdgeEpsilon float64

	// Geometric enables clustering tables out of unruled column layouts.
	Geometric bool
}

// DefaultConfig returns the standard thresholds
func DefaultConfig() Config {
	return Config{
		RowTolerance:       8,
		MinScore:           3,
		MinZoneRows:        2,
		FootnoteLength:     50,
		ShortCell:          15,
		SpacingSlack:       25,
		LineTolerance:      1,
		MinOverlap:         5,
		MinLines:           3,
		RectWidthCoverage:  0.6,
		RectHeightCoverage: 0.4,
		EdgeEpsilon:        0.8,
		Geometric:          true,
	}
}

// Zone is a run of consecutive table-like rows
type Zone struct {
	Spans []text.Span
	Rows  int
	Box   geom.Box
}

// Detector finds zones and snaps them onto ruling
type Detector struct {
	cfg    Config
	logger *zap.Logger
}

// NewDetector creates a detector. A nil logger discards output.
func NewDetector(cfg Config, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{cfg: cfg, logger: logger}
}

// Zones groups spans into rows and merges consecutive qualifying rows into
// candidate zones. A row that does not qualify ends the current run.
func (d *Detector) Zones(spans []text.Span) []Zone {
	if len(spans) == 0 {
		return nil
	}

	var zones []Zone
	var run [][]text.Span
	flush := func() {
		if len(run) >= d.cfg.MinZoneRows {
			zones = append(zones, newZone(run))
		}
		run = nil
	}

	for _, row := range text.GroupRows(spans, d.cfg.RowTolerance) {
		if d.IsTableRow(row) {
			run = append(run, row)
			continue
		}
		flush()
	}
	flush()

	d.logger.Debug("table zones detected",
		zap.Int("spans", len(spans)),
		zap.Int("zones", len(zones)))
	return zones
}

func newZone(rows [][]text.Span) Zone {
	z := Zone{Rows: len(rows)}
	for i, row := range rows {
		for j, s := range row {
			if i == 0 && j == 0 {
				z.Box = s.Box
			} else {
				z.Box = z.Box.Union(s.Box)
			}
			z.Spans = append(z.Spans, s)
		}
	}
	return z
}

// IsTableRow scores one visual row. Rows with fewer than two spans never
// qualify, and long rows opening with a footnote marker are rejected.
func (d *Detector) IsTableRow(row []text.Span) bool {
	return len(row) >= 2 && d.RowScore(row) >= d.cfg.MinScore
}

// RowScore returns the table-likelihood score of a row, or -1 for a
// footnote row.
func (d *Detector) RowScore(row []text.Span) int {
	parts := make([]string, len(row))
	for i, s := range row {
		parts[i] = s.Text
	}
	combined := strings.Join(parts, " ")
	if len([]rune(combined)) > d.cfg.FootnoteLength && footnoteStart.MatchString(combined) {
		return -1
	}

	score := 0
	starts := make(map[float64]struct{}, len(row))
	for _, s := range row {
		starts[geom.Round(s.Box.X0, 1)] = struct{}{}
	}
	if len(starts) >= 2 {
		score++
	}
	if strings.IndexFunc(combined, unicode.IsDigit) >= 0 {
		score++
	}
	for _, kw := range domainKeywords {
		if strings.Contains(combined, kw) {
			score += 2
			break
		}
	}
	if len(row) >= 3 {
		total := 0
		for _, s := range row {
			total += s.RuneCount()
		}
		if float64(total)/float64(len(row)) < d.cfg.ShortCell {
			score++
		}
		if d.regularSpacing(row) {
			score++
		}
	}
	return score
}

// regularSpacing reports whether at least 60% of the gaps between
// neighbouring spans are within SpacingSlack of the mean gap.
func (d *Detector) regularSpacing(row []text.Span) bool {
	gaps := make([]float64, 0, len(row)-1)
	sum := 0.0
	for i := 1; i < len(row); i++ {
		g := row[i].Box.X0 - row[i-1].Box.X1
		gaps = append(gaps, g)
		sum += g
	}
	if len(gaps) == 0 {
		return false
	}
	mean := sum / float64(len(gaps))
	regular := 0
	for _, g := range gaps {
		if math.Abs(g-mean) < d.cfg.SpacingSlack {
			regular++
		}
	}
	return float64(regular) >= float64(len(gaps))*0.6
}
