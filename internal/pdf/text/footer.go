package text

import (
	"fmt"
	"math"

	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
)

// FooterBand is the bottom fraction of the page treated as footer area
const FooterBand = 0.12

// DedupFooters drops repeated boxes in the footer band: boxes in the same
// column, band and size bucket that overlap an earlier one by more than
// 40%, and exact duplicate footer text. Spans above the band pass through.
func DedupFooters(spans []Span, page geom.Size) []Span {
	limit := page.Height * (1 - FooterBand)
	buckets := map[string][]geom.Box{}
	seenText := map[string]bool{}

	out := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.Box.Y0 < limit {
			out = append(out, s)
			continue
		}
		if seenText[s.Text] {
			continue
		}
		key := footerBucket(s.Box, page)
		dup := false
		for _, b := range buckets[key] {
			if b.OverlapRatio(s.Box) > 0.4 {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		buckets[key] = append(buckets[key], s.Box)
		seenText[s.Text] = true
		out = append(out, s)
	}
	return out
}

func footerBucket(b geom.Box, page geom.Size) string {
	col := "C"
	c := b.Center().X
	switch {
	case c < page.Width/3:
		col = "L"
	case c > page.Width*2/3:
		col = "R"
	}
	band := int(math.Floor(b.Y0 / 10))
	return fmt.Sprintf("%s:%d:%d:%d", col, band, int(b.Width()/10), int(b.Height()/5))
}
