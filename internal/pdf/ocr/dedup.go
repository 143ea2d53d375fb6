package ocr

import (
	"math"
	"sort"

	"github.com/tidwall/rtree"

	"github.com/a3tai/faithful-pdf/internal/pdf/model"
)

// Dedup collapses detections of the same spot made by different passes and
// variants. Candidates are visited best score first and a candidate is kept
// only when no kept word has its center within tolerance pixels, so no two
// retained words are closer than tolerance. Ties keep the earlier
// candidate. The result is in reading order.
func Dedup(words []model.OCRWord, tolerance float64) []model.OCRWord {
	if len(words) == 0 {
		return nil
	}

	order := make([]int, len(words))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return words[order[a]].Score > words[order[b]].Score
	})

	var kept rtree.RTreeG[int]
	var out []model.OCRWord
	for _, i := range order {
		cx, cy := center(words[i].BBox)
		clash := false
		kept.Search(
			[2]float64{cx - tolerance, cy - tolerance},
			[2]float64{cx + tolerance, cy + tolerance},
			func(p, _ [2]float64, _ int) bool {
				if math.Hypot(p[0]-cx, p[1]-cy) <= tolerance {
					clash = true
					return false
				}
				return true
			})
		if clash {
			continue
		}
		pt := [2]float64{cx, cy}
		kept.Insert(pt, pt, len(out))
		out = append(out, words[i])
	}

	sortReading(out)
	return out
}

func center(b model.PixelBox) (float64, float64) {
	return float64(b.X) + float64(b.Width)/2, float64(b.Y) + float64(b.Height)/2
}

func sortReading(words []model.OCRWord) {
	sort.SliceStable(words, func(i, j int) bool {
		if words[i].BBox.Y != words[j].BBox.Y {
			return words[i].BBox.Y < words[j].BBox.Y
		}
		return words[i].BBox.X < words[j].BBox.X
	})
}
