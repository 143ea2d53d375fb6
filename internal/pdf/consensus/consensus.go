// Package consensus merges the output of independent extraction methods.
// Elements are bucketed by coarse position and a bucket seen by more than
// one method is treated as confirmed.
package consensus

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
	"github.com/a3tai/faithful-pdf/internal/pdf/model"
)

// BucketSize is the grid, in points, positions are rounded to
const BucketSize = 10.0

// Method names used by the page pipeline.
const (
	MethodNativeText = "native_text"
	MethodVectorGrid = "vector_grid"
	MethodGeometric  = "geometric_clustering"
	MethodLayout     = "layout_regions"
)

// Method is the element set produced by one extraction backend. Only
// primary methods contribute elements to the merged output; the others
// vote.
type Method struct {
	Name     string
	Primary  bool
	Elements []model.Element
}

// Result is the merged element set with its agreement statistics
type Result struct {
	Elements       []model.Element
	Methods        []string
	Buckets        int
	HighConfidence int
	Unique         int
	Agreement      float64
}

type bucketKey struct {
	page int
	kind model.ElementType
	x, y int
}

type bucket struct {
	methods map[string]bool
	primary []int
}

// Orchestrator merges method outputs
type Orchestrator struct {
	logger *zap.Logger
}

// New creates an orchestrator
func New(logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{logger: logger}
}

func keyOf(e model.Element) bucketKey {
	return bucketKey{
		page: e.Page,
		kind: e.Type(),
		x:    int(math.Round(e.Box.X0 / BucketSize)),
		y:    int(math.Round(e.Box.Y0 / BucketSize)),
	}
}

// Merge buckets every element by page, type and position. In a bucket hit
// by several methods the primary elements get confidence hits/backends,
// where backends counts the methods that produced that element type at
// all. Single-method buckets keep their native confidence. The agreement
// score is the share of buckets with more than one hit.
func (o *Orchestrator) Merge(methods []Method) Result {
	res := Result{Elements: []model.Element{}}
	backends := map[model.ElementType]map[string]bool{}
	buckets := map[bucketKey]*bucket{}
	var order []bucketKey
	var primary []model.Element

	for _, m := range methods {
		res.Methods = append(res.Methods, m.Name)
		for _, e := range m.Elements {
			k := keyOf(e)
			b, ok := buckets[k]
			if !ok {
				b = &bucket{methods: map[string]bool{}}
				buckets[k] = b
				order = append(order, k)
			}
			b.methods[m.Name] = true
			if backends[k.kind] == nil {
				backends[k.kind] = map[string]bool{}
			}
			backends[k.kind][m.Name] = true
			if m.Primary {
				b.primary = append(b.primary, len(primary))
				primary = append(primary, e)
			}
		}
	}

	for _, k := range order {
		b := buckets[k]
		hits := len(b.methods)
		if hits < 2 {
			res.Unique++
			continue
		}
		res.HighConfidence++
		conf := math.Min(float64(hits)/float64(len(backends[k.kind])), 1)
		for _, i := range b.primary {
			primary[i].Confidence = geom.Round(conf, 3)
		}
	}

	res.Buckets = len(order)
	if res.Buckets > 0 {
		res.Agreement = geom.Round(float64(res.HighConfidence)/float64(res.Buckets), 3)
	}
	res.Elements = append(res.Elements, primary...)
	ReadingOrder(res.Elements)

	o.logger.Debug("consensus merged",
		zap.Strings("methods", res.Methods),
		zap.Int("buckets", res.Buckets),
		zap.Int("high_confidence", res.HighConfidence),
		zap.Int("unique", res.Unique),
		zap.Float64("agreement", res.Agreement))
	return res
}

// Combine folds per-page results into document totals
func Combine(results []Result) Result {
	total := Result{Elements: []model.Element{}}
	seen := map[string]bool{}
	for _, r := range results {
		total.Elements = append(total.Elements, r.Elements...)
		total.Buckets += r.Buckets
		total.HighConfidence += r.HighConfidence
		total.Unique += r.Unique
		for _, m := range r.Methods {
			if !seen[m] {
				seen[m] = true
				total.Methods = append(total.Methods, m)
			}
		}
	}
	if total.Buckets > 0 {
		total.Agreement = geom.Round(float64(total.HighConfidence)/float64(total.Buckets), 3)
	}
	return total
}

// Summary converts the statistics into the metadata block of a result
func (r Result) Summary(normalized string) *model.Consensus {
	methods := r.Methods
	if methods == nil {
		methods = []string{}
	}
	return &model.Consensus{
		Methods:        methods,
		AgreementScore: r.Agreement,
		HighConfidence: r.HighConfidence,
		Unique:         r.Unique,
		NormalizedText: normalized,
	}
}

// ReadingOrder sorts elements by page, then top to bottom, then left to
// right.
func ReadingOrder(elements []model.Element) {
	sort.SliceStable(elements, func(i, j int) bool {
		a, b := elements[i], elements[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.Box.Y0 != b.Box.Y0 {
			return a.Box.Y0 < b.Box.Y0
		}
		return a.Box.X0 < b.Box.X0
	})
}

// Regions turns text blocks into layout-region votes
func Regions(blocks []model.TextBlock, size geom.Size) []model.Element {
	out := make([]model.Element, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, model.NewElement(b.Page, b.Box, size, b.Confidence, &model.TextSpan{
			Text:         b.Text,
			FontFamily:   b.FontFamily,
			FontSize:     b.FontSize,
			Bold:         b.Bold,
			SemanticType: b.BlockType,
			Source:       MethodLayout,
		}))
	}
	return out
}
