package tables

import (
	"regexp"
	"strings"

	"github.com/a3tai/faithful-pdf/internal/pdf/model"
)

// Column data types.
const (
	ColumnEmpty         = "empty"
	ColumnNumeric       = "numeric"
	ColumnReference     = "reference"
	ColumnIngredients   = "ingredients"
	ColumnRole          = "role"
	ColumnSpecification = "specification"
	ColumnText          = "text"
)

var (
	numericCell = regexp.MustCompile(`(?i)^\d+\.?\d*\s*(mg|g|ml|%|mm|cm|µg)?$`)

	referenceTerms = []string{"pharmacopoeia", "monograph", "house", "european"}
	headerKeywords = []string{"ingredients", "amount", "role", "specification", "component", "function", "quantity"}
)

// Analyze fills in the column types, header flag and table type
func Analyze(t *model.Table) {
	t.Columns = ColumnMetadata(t.Data)
	t.HasHeader = DetectHeader(t.Data)
	t.TableType = ClassifyTable(t.Data)
}

// Clean trims cells, blanks "nan" placeholders, drops empty rows and pads
// the rest to a rectangle.
func Clean(data [][]string) [][]string {
	var out [][]string
	cols := 0
	for _, row := range data {
		cleaned := make([]string, len(row))
		keep := false
		for i, cell := range row {
			cell = strings.TrimSpace(cell)
			if strings.EqualFold(cell, "nan") {
				cell = ""
			}
			cleaned[i] = cell
			keep = keep || cell != ""
		}
		if keep {
			out = append(out, cleaned)
			if len(cleaned) > cols {
				cols = len(cleaned)
			}
		}
	}
	for i := range out {
		for len(out[i]) < cols {
			out[i] = append(out[i], "")
		}
	}
	return out
}

// ColumnMetadata infers a data type and alignment per column
func ColumnMetadata(data [][]string) []model.ColumnMeta {
	if len(data) == 0 || len(data[0]) == 0 {
		return nil
	}
	cols := len(data[0])
	out := make([]model.ColumnMeta, cols)
	for c := 0; c < cols; c++ {
		var contents []string
		for _, row := range data {
			if c < len(row) && row[c] != "" {
				contents = append(contents, row[c])
			}
		}
		kind := ColumnType(contents)
		align := "left"
		if kind == ColumnNumeric {
			align = "right"
		}
		out[c] = model.ColumnMeta{Index: c, DataType: kind, Alignment: align}
	}
	return out
}

// ColumnType classifies a column by its dominant content
func ColumnType(contents []string) string {
	if len(contents) == 0 {
		return ColumnEmpty
	}
	numeric, reference := 0, 0
	for _, content := range contents {
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		lower := strings.ToLower(content)
		switch {
		case numericCell.MatchString(content):
			numeric++
		case containsAny(lower, referenceTerms):
			reference++
		}
	}

	total := float64(len(contents))
	joined := strings.ToLower(strings.Join(contents, ""))
	switch {
	case float64(numeric)/total > 0.7:
		return ColumnNumeric
	case float64(reference)/total > 0.5:
		return ColumnReference
	case containsAny(joined, []string{"ingredients", "substance", "component"}):
		return ColumnIngredients
	case containsAny(joined, []string{"role", "function", "purpose"}):
		return ColumnRole
	case containsAny(joined, []string{"specification", "standard", "ref"}):
		return ColumnSpecification
	default:
		return ColumnText
	}
}

// DetectHeader decides whether the first row is a header. It scores short
// non-empty cells, header keywords (two points) and a first row noticeably
// shorter than the second, and needs two points.
func DetectHeader(data [][]string) bool {
	if len(data) < 2 || len(data[0]) == 0 {
		return false
	}
	first := data[0]
	score := 0

	short := true
	for _, cell := range first {
		c := strings.TrimSpace(cell)
		if c == "" || len([]rune(c)) >= 50 {
			short = false
			break
		}
	}
	if short {
		score++
	}

	for _, cell := range first {
		if containsAny(strings.ToLower(cell), headerKeywords) {
			score += 2
			break
		}
	}

	if avgLen(first) < avgLen(data[1])*0.7 {
		score++
	}
	return score >= 2
}

func avgLen(row []string) float64 {
	if len(row) == 0 {
		return 0
	}
	total := 0
	for _, cell := range row {
		total += len([]rune(cell))
	}
	return float64(total) / float64(len(row))
}

// ClassifyTable names the kind of document table from its vocabulary
func ClassifyTable(data [][]string) string {
	if len(data) == 0 {
		return "unknown"
	}
	rows := make([]string, len(data))
	for i, row := range data {
		rows[i] = strings.Join(row, " ")
	}
	all := strings.ToLower(strings.Join(rows, " "))

	switch {
	case strings.Contains(all, "ingredients") && strings.Contains(all, "amount"):
		return "composition"
	case strings.Contains(all, "specification") && containsAny(all, []string{"pharmacopoeia", "monograph"}):
		return "specifications"
	case containsAny(all, []string{"test", "method"}):
		return "analytical"
	case containsAny(all, []string{"stability", "storage"}):
		return "stability"
	case strings.Contains(all, "dose"):
		return "dosage"
	default:
		return "general"
	}
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
