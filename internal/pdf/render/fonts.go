package render

import "strings"

var webFonts = map[string]string{
	"Times-Roman":           "Times New Roman",
	"Times-Bold":            "Times New Roman",
	"Times-Italic":          "Times New Roman",
	"Times-BoldItalic":      "Times New Roman",
	"Helvetica":             "Arial",
	"Helvetica-Bold":        "Arial",
	"Helvetica-Oblique":     "Arial",
	"Helvetica-BoldOblique": "Arial",
	"Courier":               "Courier New",
	"Courier-Bold":          "Courier New",
	"Courier-Oblique":       "Courier New",
	"Courier-BoldOblique":   "Courier New",
}

// NormalizeFont maps a PDF font name to a web font. Subset prefixes such
// as "ABCDEF+" are dropped; unknown names pass through.
func NormalizeFont(name string) string {
	if i := strings.LastIndex(name, "+"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "Times New Roman"
	}
	if f, ok := webFonts[name]; ok {
		return f
	}
	return name
}
