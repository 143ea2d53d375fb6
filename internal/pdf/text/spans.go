// Package text turns glyph runs into positioned spans, groups spans into
// classified blocks and repairs line-broken text.
package text

import (
	"math"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
	"github.com/a3tai/faithful-pdf/internal/pdf/wrapper"
)

// Span is a positioned piece of text. IDs are assigned in reading order
// and are stable within one extraction call.
type Span struct {
	ID    int
	Text  string
	Font  string
	Size  float64
	Flags int
	Box   geom.Box
}

func (s Span) Bold() bool         { return s.Flags&wrapper.FlagBold != 0 }
func (s Span) Italic() bool       { return s.Flags&wrapper.FlagItalic != 0 }
func (s Span) Center() geom.Point { return s.Box.Center() }
func (s Span) RuneCount() int     { return len([]rune(s.Text)) }
func (s Span) Baseline() float64  { return s.Box.Y1 - s.Size*0.2 }

func (s Span) sameStyle(o Span) bool {
	return s.Font == o.Font && math.Abs(s.Size-o.Size) < 0.5
}

// JoinConfig controls how adjacent runs merge
type JoinConfig struct {
	// GapFactor multiplies the font size to get the largest gap bridged
	// between runs.
	GapFactor float64
	// SingleCharGapFactor applies between two single-character runs, which
	// letter-spaced headings produce.
	SingleCharGapFactor float64
	// MinGap is the floor of the bridged gap in points.
	MinGap float64
}

// DefaultJoinConfig returns the standard joining thresholds
func DefaultJoinConfig() JoinConfig {
	return JoinConfig{GapFactor: 0.95, SingleCharGapFactor: 1.6, MinGap: 0.5}
}

// Extractor builds spans from the runs of one page
type Extractor struct {
	cfg JoinConfig
}

// NewExtractor creates an extractor
func NewExtractor(cfg JoinConfig) *Extractor {
	if cfg.GapFactor <= 0 {
		cfg = DefaultJoinConfig()
	}
	return &Extractor{cfg: cfg}
}

// Extract joins runs that share a baseline and style into spans, drops
// whitespace-only spans and assigns sequential IDs in (y, x) order.
func (e *Extractor) Extract(runs []wrapper.TextRun) []Span {
	var spans []Span
	var cur *Span
	lastRunChars := 0

	flush := func() {
		if cur == nil {
			return
		}
		cur.Text = strings.TrimSpace(norm.NFC.String(cur.Text))
		if cur.Text != "" {
			spans = append(spans, *cur)
		}
		cur = nil
	}

	for _, r := range runs {
		if r.Text == "" {
			continue
		}
		run := Span{Text: r.Text, Font: r.Font, Size: r.FontSize, Flags: r.Flags, Box: r.Box}
		runChars := len([]rune(r.Text))

		if cur != nil && e.continues(*cur, run, lastRunChars, runChars) {
			gap := run.Box.X0 - cur.Box.X1
			if gap > run.Size*0.2 && !strings.HasSuffix(cur.Text, " ") && !strings.HasPrefix(run.Text, " ") {
				cur.Text += " "
			}
			cur.Text += run.Text
			cur.Box = cur.Box.Union(run.Box)
			cur.Flags |= run.Flags
			lastRunChars = runChars
			continue
		}

		flush()
		c := run
		cur = &c
		lastRunChars = runChars
	}
	flush()

	sort.SliceStable(spans, func(i, j int) bool {
		if math.Abs(spans[i].Box.Y0-spans[j].Box.Y0) > 0.5 {
			return spans[i].Box.Y0 < spans[j].Box.Y0
		}
		return spans[i].Box.X0 < spans[j].Box.X0
	})
	for i := range spans {
		spans[i].ID = i
	}
	return spans
}

// continues reports whether run extends cur on the same line
func (e *Extractor) continues(cur, run Span, lastChars, runChars int) bool {
	if !cur.sameStyle(run) {
		return false
	}
	if math.Abs(cur.Baseline()-run.Baseline()) > run.Size*0.3 {
		return false
	}
	gap := run.Box.X0 - cur.Box.X1
	if gap < -run.Size*0.5 {
		return false
	}
	limit := math.Max(e.cfg.MinGap, run.Size*e.cfg.GapFactor)
	if lastChars == 1 && runChars == 1 {
		limit = math.Max(limit, run.Size*e.cfg.SingleCharGapFactor)
	}
	return gap <= limit
}

// Text joins spans into page text, one line per visual row
func Text(spans []Span, rowTolerance float64) string {
	rows := GroupRows(spans, rowTolerance)
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		parts := make([]string, 0, len(row))
		for _, s := range row {
			parts = append(parts, s.Text)
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return strings.Join(lines, "\n")
}

// GroupRows sorts spans by y0 and groups them into visual rows: a span
// joins the current row when its y0 is within tolerance of the row's
// running average y0. Spans inside a row are sorted by x0.
func GroupRows(spans []Span, tolerance float64) [][]Span {
	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Box.Y0 < sorted[j].Box.Y0
	})

	var rows [][]Span
	var avg float64
	for _, s := range sorted {
		n := len(rows)
		if n > 0 && math.Abs(s.Box.Y0-avg) <= tolerance {
			rows[n-1] = append(rows[n-1], s)
			count := float64(len(rows[n-1]))
			avg += (s.Box.Y0 - avg) / count
			continue
		}
		rows = append(rows, []Span{s})
		avg = s.Box.Y0
	}

	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool {
			return row[i].Box.X0 < row[j].Box.X0
		})
	}
	return rows
}
