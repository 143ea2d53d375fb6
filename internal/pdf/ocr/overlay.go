package ocr

import (
	"fmt"
	"strings"

	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
	"github.com/a3tai/faithful-pdf/internal/pdf/model"
)

// Editable turns recognized words into editable regions. With merge set,
// words on the same line whose heights agree within threshold pixels and
// whose gap is at most twice the threshold become one region.
func Editable(words []model.OCRWord, width, height int, merge bool, threshold int) []model.EditableElement {
	out := []model.EditableElement{}
	if len(words) == 0 {
		return out
	}

	var groups [][]model.OCRWord
	for _, w := range words {
		if merge && len(groups) > 0 {
			g := groups[len(groups)-1]
			last := g[len(g)-1]
			gap := w.BBox.X - (last.BBox.X + last.BBox.Width)
			if !w.IsSymbol && !last.IsSymbol &&
				abs(w.BBox.Y-last.BBox.Y) <= threshold &&
				abs(w.BBox.Height-last.BBox.Height) <= threshold &&
				gap >= -threshold && gap <= 2*threshold {
				groups[len(groups)-1] = append(g, w)
				continue
			}
		}
		groups = append(groups, []model.OCRWord{w})
	}

	for i, g := range groups {
		texts := make([]string, len(g))
		var conf float64
		box := g[0].BBox
		font := g[0].Font
		for j, w := range g {
			texts[j] = w.Text
			conf += w.Confidence
			box = unionPixels(box, w.BBox)
			font.Size = max(font.Size, w.Font.Size)
		}
		text := strings.Join(texts, " ")
		conf = geom.Round(conf/float64(len(g)), 1)
		pos := percentBox(box, width, height)
		kind := EditableType(text)

		out = append(out, model.EditableElement{
			ID:           fmt.Sprintf("ocr_elem_%d", i),
			Text:         text,
			OriginalText: text,
			Type:         kind,
			Confidence:   conf,
			Position:     pos,
			Font:         font,
			Style:        elementStyle(pos, font, conf),
			Validation:   model.ValidationFor(kind),
			WordCount:    len(g),
		})
	}
	return out
}

func unionPixels(a, b model.PixelBox) model.PixelBox {
	x0, y0 := min(a.X, b.X), min(a.Y, b.Y)
	x1 := max(a.X+a.Width, b.X+b.Width)
	y1 := max(a.Y+a.Height, b.Y+b.Height)
	return model.PixelBox{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// elementStyle is the inline CSS placing an element over its image
func elementStyle(pos model.PercentBox, font model.FontEstimate, conf float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "position:absolute;left:%g%%;top:%g%%;width:%g%%;height:%g%%;",
		pos.Left, pos.Top, pos.Width, pos.Height)
	fmt.Fprintf(&b, "font-size:%gpx;font-weight:%s;font-family:%s;font-style:%s;",
		font.Size, font.Weight, font.Family, font.Style)
	switch {
	case conf < 50:
		b.WriteString("border:1px dashed #dc3545;")
	case conf < 75:
		b.WriteString("border:1px dashed #ffc107;")
	}
	return b.String()
}

// Assess grades an overlay from its word confidences and the share of
// technical tokens.
func Assess(words []model.OCRWord) model.QualityAssessment {
	q := model.QualityAssessment{
		Overall:        "poor",
		Distribution:   map[string]int{"high": 0, "medium": 0, "low": 0},
		TypeCounts:     map[string]int{},
		Recommendation: "No text detected",
	}
	if len(words) == 0 {
		return q
	}

	var sum float64
	for _, w := range words {
		c := finite(w.Confidence)
		sum += c
		switch {
		case c >= 70:
			q.Distribution["high"]++
		case c >= 40:
			q.Distribution["medium"]++
		default:
			q.Distribution["low"]++
		}
		q.TypeCounts[w.TechnicalType]++
		if IsTechnical(w.TechnicalType) {
			q.TechnicalElements++
		}
	}

	n := float64(len(words))
	avg := sum / n
	coverage := float64(q.TechnicalElements) / n
	q.TotalWords = len(words)
	q.AverageConfidence = geom.Round(avg, 1)
	q.TechnicalCoverage = geom.Round(coverage*100, 1)

	switch {
	case avg >= 70 && coverage >= 0.3:
		q.Overall = "excellent"
		q.Recommendation = "Recognition is reliable; technical values can be edited directly"
	case avg >= 50 && coverage >= 0.2:
		q.Overall = "good"
		q.Recommendation = "Recognition is mostly reliable; check highlighted values"
	case avg >= 30 && coverage >= 0.1:
		q.Overall = "fair"
		q.Recommendation = "Review recognized values before use"
	default:
		q.Overall = "poor"
		q.Recommendation = "Recognition is unreliable; consider a higher resolution scan"
	}
	return q
}

// Capabilities derives the editor features offered for an overlay
func Capabilities(words []model.OCRWord, q model.QualityAssessment) model.EditingCapabilities {
	var c model.EditingCapabilities
	for _, w := range words {
		if !w.IsSymbol {
			c.CanEditText = true
		}
		switch w.TechnicalType {
		case TypeDimension, TypeDecimalNumber:
			c.CanEditNumbers = true
			c.CanEditDimensions = true
		case TypeDiameter, TypeRadius, TypeAngle, TypeTolerance:
			c.CanEditDimensions = true
		}
		if w.IsSymbol {
			c.HasSymbols = true
		}
	}
	c.NeedsReview = q.Overall == "poor" || q.Overall == "fair"
	return c
}
