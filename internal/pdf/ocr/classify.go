package ocr

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/a3tai/faithful-pdf/internal/pdf/model"
)

// Technical token categories.
const (
	TypeDiameter        = "diameter"
	TypeDimension       = "dimension"
	TypeRadius          = "radius"
	TypeAngle           = "angle"
	TypeSectionLine     = "section_line"
	TypeDetailReference = "detail_reference"
	TypeAnnotation      = "annotation"
	TypeVolumeUnit      = "volume_unit"
	TypeTolerance       = "tolerance"
	TypeLabel           = "label"
	TypeDecimalNumber   = "decimal_number"
	TypeFraction        = "fraction"
	TypeDescription     = "description"
	TypeText            = "text"

	TypeDegreeSymbol    = "degree_symbol"
	TypeToleranceSymbol = "tolerance_symbol"
	TypePrimeSymbol     = "prime_symbol"
	TypeSurfaceSymbol   = "surface_symbol"
	TypeDiameterSymbol  = "diameter_symbol"
)

var (
	reDiameter    = regexp.MustCompile(`^[øØ]\d+\.?\d*$`)
	reDimension   = regexp.MustCompile(`^\d+\.?\d*$`)
	reRadius      = regexp.MustCompile(`^[rR]\d+\.?\d*$`)
	reAngle       = regexp.MustCompile(`^\d+\.?\d*°?$`)
	reSectionLine = regexp.MustCompile(`^[A-Z]-[A-Z]$`)
	reDetailRef   = regexp.MustCompile(`^[Dd]etail\s+[A-Z]$`)
	reAnnotation  = regexp.MustCompile(`^[A-Z]'?$`)
	reVolumeUnit  = regexp.MustCompile(`(cm3|mm3|cm²|mm²|ml)`)
	reDecimal     = regexp.MustCompile(`^\d+[,.]\d+$`)
	reCapital     = regexp.MustCompile(`^[A-Z]$`)
)

// Classify returns the technical category of a recognized token
func Classify(text string) string {
	t := strings.TrimSpace(text)
	lower := strings.ToLower(t)
	switch {
	case reDiameter.MatchString(t):
		return TypeDiameter
	case reDimension.MatchString(t):
		return TypeDimension
	case reRadius.MatchString(t):
		return TypeRadius
	case reAngle.MatchString(t):
		return TypeAngle
	case reSectionLine.MatchString(t):
		return TypeSectionLine
	case reDetailRef.MatchString(t):
		return TypeDetailReference
	case reAnnotation.MatchString(t):
		return TypeAnnotation
	case reVolumeUnit.MatchString(lower):
		return TypeVolumeUnit
	case strings.Contains(t, "±") || strings.Contains(t, "+/-"):
		return TypeTolerance
	case isUpper(t) && len([]rune(t)) > 2:
		return TypeLabel
	case reDecimal.MatchString(t):
		return TypeDecimalNumber
	case strings.Contains(t, "/") && strings.IndexFunc(t, unicode.IsDigit) >= 0:
		return TypeFraction
	case len([]rune(t)) > 5 && strings.Contains(t, " "):
		return TypeDescription
	default:
		return TypeText
	}
}

// isUpper reports whether s has at least one cased letter and no
// lowercase ones.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

// IsTechnical reports whether the category counts toward technical coverage
func IsTechnical(kind string) bool {
	switch kind {
	case TypeDiameter, TypeDimension, TypeRadius, TypeSectionLine, TypeAnnotation, TypeAngle:
		return true
	}
	return false
}

// isAnnotation reports whether the token may be smaller than ordinary text
func isAnnotation(kind string) bool {
	switch kind {
	case TypeAnnotation, TypeSectionLine, TypeDiameter, TypeRadius, TypeDimension:
		return true
	}
	return false
}

var confidenceThresholds = map[string]float64{
	TypeDiameter:        15,
	TypeDimension:       20,
	TypeRadius:          25,
	TypeAngle:           30,
	TypeSectionLine:     25,
	TypeDetailReference: 30,
	TypeAnnotation:      20,
	TypeVolumeUnit:      35,
	TypeTolerance:       25,
	TypeLabel:           40,
	TypeDecimalNumber:   20,
	TypeFraction:        30,
	TypeDescription:     50,
	TypeText:            40,
}

// Threshold is the minimum confidence for a token of this category. A
// whitelist pass is ten points more lenient, never below ten.
func Threshold(kind string, pass Pass) float64 {
	t, ok := confidenceThresholds[kind]
	if !ok {
		t = 30
	}
	if pass.Whitelist != "" {
		t -= 10
	}
	return math.Max(t, 10)
}

var typeBonus = map[string]float64{
	TypeDiameter:      20,
	TypeDimension:     15,
	TypeRadius:        15,
	TypeSectionLine:   10,
	TypeAnnotation:    10,
	TypeAngle:         10,
	TypeTolerance:     10,
	TypeDecimalNumber: 5,
}

// Score ranks competing detections of the same spot: confidence plus a
// category bonus, a bonus for well-formed tokens and a penalty for stray
// single characters.
func Score(text string, confidence float64, kind string) float64 {
	score := confidence + typeBonus[kind]
	switch {
	case reDiameter.MatchString(text):
		score += 25
	case reDimension.MatchString(text):
		score += 15
	case reSectionLine.MatchString(text):
		score += 20
	}
	if len([]rune(text)) == 1 && !reCapital.MatchString(text) {
		score -= 20
	}
	return score
}

var displayPriority = map[string]int{
	TypeDiameter:        1,
	TypeDimension:       1,
	TypeRadius:          2,
	TypeSectionLine:     2,
	TypeDecimalNumber:   2,
	TypeAnnotation:      3,
	TypeAngle:           3,
	TypeTolerance:       4,
	TypeDetailReference: 4,
	TypeVolumeUnit:      5,
	TypeLabel:           6,
	TypeFraction:        7,
	TypeDescription:     8,
	TypeText:            9,
}

// DisplayPriority orders overlay words, 1 being the most important
func DisplayPriority(kind string) int {
	if p, ok := displayPriority[kind]; ok {
		return p
	}
	return 5
}

var fontFamilies = map[string]string{
	TypeSectionLine:   "Arial Black, sans-serif",
	TypeLabel:         "Arial Black, sans-serif",
	TypeVolumeUnit:    "Times New Roman, serif",
	TypeFraction:      "Times New Roman, serif",
	TypeDecimalNumber: "Courier New, monospace",
}

// EstimateFont infers a rendering font from the category and box size
func EstimateFont(text, kind string, width, height int) model.FontEstimate {
	h := float64(height)
	var size float64
	switch kind {
	case TypeDiameter, TypeDimension, TypeRadius:
		size = clamp(h*0.9, 10, 24)
	case TypeAnnotation, TypeSectionLine:
		size = clamp(h*0.8, 8, 16)
	case TypeLabel:
		size = clamp(h*0.85, 12, 32)
	default:
		size = clamp(h*0.8, 8, 20)
	}

	charWidth := float64(width)
	if n := len([]rune(text)); n > 0 {
		charWidth /= float64(n)
	}

	weight := "normal"
	switch {
	case (kind == TypeDiameter || kind == TypeDimension || kind == TypeRadius) && height > 12,
		kind == TypeSectionLine,
		kind == TypeLabel && isUpper(text),
		charWidth > h*0.7:
		weight = "bold"
	}

	style := "normal"
	if kind == TypeDetailReference || kind == TypeVolumeUnit {
		style = "italic"
	}

	family, ok := fontFamilies[kind]
	if !ok {
		family = "Arial, sans-serif"
	}
	return model.FontEstimate{Size: math.Round(size), Weight: weight, Family: family, Style: style}
}

var (
	reNumber      = regexp.MustCompile(`^\d+\.?\d*$`)
	reReferenceID = regexp.MustCompile(`^[A-Z]{2,}-[A-Z0-9]+-\d+$`)
	reDate        = regexp.MustCompile(`^\d{1,2}[/.-]\d{1,2}[/.-]\d{4}$`)
	reQuantity    = regexp.MustCompile(`(?i)\d\s*(mg|ml|µg|kg|g|l|%)(\b|$)`)
)

// EditableType classifies an editable element for input validation
func EditableType(text string) string {
	t := strings.TrimSpace(text)
	lower := strings.ToLower(t)
	switch {
	case reNumber.MatchString(t):
		return model.EditableNumber
	case reReferenceID.MatchString(t):
		return model.EditableReferenceID
	case reDate.MatchString(t):
		return model.EditableDate
	case reQuantity.MatchString(t):
		return model.EditableQuantity
	case containsAny(lower, "pharmacopoeia", "monograph", "european"):
		return model.EditableReference
	case len([]rune(t)) > 20 && strings.Contains(t, " "):
		return model.EditableDescription
	case isUpper(t) && len([]rune(t)) > 2:
		return model.EditableHeading
	default:
		return model.EditableText
	}
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
