// Package render re-emits extracted pages as absolutely positioned HTML
// that can be edited in a browser, and converts documents to markdown.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
	"github.com/a3tai/faithful-pdf/internal/pdf/model"
	"github.com/a3tai/faithful-pdf/internal/pdf/ocr"
)

//go:embed static
var static embed.FS

// Positioning modes.
const (
	Percent = "percent"
	Pixels  = "px"
)

// cellPadding keeps snapped spans off the cell ruling
const cellPadding = 4.0

// rectMargin is the slack when testing a rectangle against grid zones
const rectMargin = 0.8

var documentTemplate = template.Must(template.ParseFS(static, "static/document.html.tmpl"))

// Options controls the HTML output
type Options struct {
	// Positioning is Percent or Pixels.
	Positioning string
	Editable    bool
}

// DefaultOptions returns percentage positioning with editing enabled
func DefaultOptions() Options {
	return Options{Positioning: Percent, Editable: true}
}

// Page is one page to paint
type Page struct {
	Number   int
	Size     geom.Size
	Elements []model.Element
	// GridBoxes are the zones whose ruling produced a table; rectangles
	// inside them are not repainted.
	GridBoxes  []geom.Box
	OCRApplied bool
}

// Renderer produces page fragments and documents
type Renderer struct {
	opts   Options
	css    string
	script string
	logger *zap.Logger
}

// NewRenderer creates a renderer
func NewRenderer(opts Options, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Positioning != Pixels {
		opts.Positioning = Percent
	}
	css, _ := static.ReadFile("static/faithful.css")
	script, _ := static.ReadFile("static/editor.js")
	return &Renderer{opts: opts, css: string(css), script: string(script), logger: logger}
}

// Page renders one page as a positioned div
func (r *Renderer) Page(p Page) string {
	size := p.Size
	if size.Width <= 0 || size.Height <= 0 {
		size = geom.Size{Width: 612, Height: 792}
	}
	frame := geom.Box{X1: size.Width, Y1: size.Height}

	var b strings.Builder
	if r.opts.Positioning == Percent {
		fmt.Fprintf(&b, `<div class="pdf-page percent" data-page="%d" data-width="%s" data-height="%s" style="width:%spx;aspect-ratio:%s / %s;">`,
			p.Number, num(size.Width), num(size.Height), num(size.Width), num(size.Width), num(size.Height))
	} else {
		fmt.Fprintf(&b, `<div class="pdf-page" data-page="%d" data-width="%s" data-height="%s" style="width:%spx;height:%spx;">`,
			p.Number, num(size.Width), num(size.Height), num(size.Width), num(size.Height))
	}

	for _, e := range p.Elements {
		switch c := e.Content.(type) {
		case *model.TextSpan:
			r.text(&b, e, c, frame)
		case *model.Table:
			r.table(&b, e, c, frame)
		case *model.Image:
			if c.IsBackground && p.OCRApplied {
				continue
			}
			r.image(&b, e, c, frame)
		case *model.Shape:
			if c.ShapeType == "rectangle" && insideAny(e.Box, p.GridBoxes) {
				continue
			}
			r.shape(&b, e, c, frame)
		}
	}
	b.WriteString("</div>")
	return b.String()
}

// Document wraps page fragments into a standalone HTML document
func (r *Renderer) Document(title string, pages []string) (string, error) {
	frags := make([]template.HTML, len(pages))
	for i, p := range pages {
		frags[i] = template.HTML(p)
	}
	var buf bytes.Buffer
	err := documentTemplate.Execute(&buf, struct {
		Title    string
		CSS      template.CSS
		Script   template.JS
		Editable bool
		Pages    []template.HTML
	}{
		Title:    title,
		CSS:      template.CSS(r.css),
		Script:   template.JS(r.script),
		Editable: r.opts.Editable,
		Pages:    frags,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return buf.String(), nil
}

// Placeholder is the page shown when nothing could be extracted
func Placeholder(message string) string {
	return `<div class="pdf-document"><div class="pdf-error"><p>This document could not be extracted.</p><p>` +
		html.EscapeString(message) + `</p></div></div>`
}

// ErrorPage is the page div emitted in place of a page that failed
func (r *Renderer) ErrorPage(number int, size geom.Size, message string) string {
	page := r.Page(Page{Number: number, Size: size})
	return strings.TrimSuffix(page, "</div>") +
		`<div class="pdf-error"><p>Page ` + strconv.Itoa(number) + ` could not be extracted.</p><p>` +
		html.EscapeString(message) + `</p></div></div>`
}

// place positions b inside frame, in percent of the frame or in points
// relative to its origin.
func (r *Renderer) place(b, frame geom.Box) string {
	left, top := b.X0-frame.X0, b.Y0-frame.Y0
	w, h := max(b.Width(), 1), max(b.Height(), 1)
	if r.opts.Positioning == Percent && frame.Width() > 0 && frame.Height() > 0 {
		fw, fh := frame.Width(), frame.Height()
		return fmt.Sprintf("left:%s%%;top:%s%%;width:%s%%;height:%s%%;",
			num(left/fw*100), num(top/fh*100), num(w/fw*100), num(h/fh*100))
	}
	return fmt.Sprintf("left:%spx;top:%spx;width:%spx;height:%spx;", num(left), num(top), num(w), num(h))
}

func (r *Renderer) text(b *strings.Builder, e model.Element, t *model.TextSpan, frame geom.Box) {
	box := e.Box
	size := t.FontSize
	weight := "normal"
	if t.Bold {
		weight = "bold"
	}

	class := "pdf-text-element"
	if size < 9 || strings.HasPrefix(t.Text, "1 ") {
		class = "pdf-footnote"
		size = max(size, 7)
	} else {
		if size > 12 {
			weight = "bold"
		}
		// grow to the line height but not past the bottom of the frame
		box.Y1 = geom.Clamp(box.Y0+max(box.Height(), size*1.2), box.Y1, max(frame.Y1, box.Y1))
	}
	if t.SemanticType != "" {
		class += " sem-" + t.SemanticType
	}
	class += confidenceClass(e.Confidence)

	fmt.Fprintf(b, `<div class="%s" data-id="%s"%s style="%sfont-family:'%s', Times, serif;font-size:%spx;font-weight:%s;">%s</div>`,
		class, e.ID, r.editAttrs(t.Text), r.place(box, frame), html.EscapeString(NormalizeFont(t.FontFamily)),
		num(size), weight, html.EscapeString(t.Text))
}

func (r *Renderer) table(b *strings.Builder, e model.Element, t *model.Table, frame geom.Box) {
	if t.Grid != nil && len(t.Grid.Cells) > 0 {
		fmt.Fprintf(b, `<div class="pdf-table" data-id="%s" data-method="%s" data-rows="%d" data-cols="%d">`,
			e.ID, t.Method, t.Rows, t.Cols)
		for _, row := range t.Grid.Cells {
			for _, cell := range row {
				fmt.Fprintf(b, `<div class="pdf-cell" style="%s">`, r.place(cell.Box, frame))
				for _, s := range cell.Spans {
					r.cellSpan(b, s, cell.Box)
				}
				b.WriteString("</div>")
			}
		}
		b.WriteString("</div>")
		return
	}

	// unruled tables keep their spans where they were found
	fmt.Fprintf(b, `<div class="pdf-table" data-id="%s" data-method="%s" data-rows="%d" data-cols="%d">`,
		e.ID, t.Method, t.Rows, t.Cols)
	for _, s := range t.Spans {
		weight := "normal"
		if s.Bold {
			weight = "bold"
		}
		fmt.Fprintf(b, `<div class="pdf-text-element"%s style="%sfont-family:'%s', Times, serif;font-size:%spx;font-weight:%s;">%s</div>`,
			r.editAttrs(s.Text), r.place(s.Box, frame), html.EscapeString(NormalizeFont(s.Font)),
			num(s.FontSize), weight, html.EscapeString(s.Text))
	}
	b.WriteString("</div>")
}

// cellSpan places a snapped span inside its cell, at least cellPadding from
// the cell's top left corner.
func (r *Renderer) cellSpan(b *strings.Builder, s model.CellSpan, cell geom.Box) {
	left := max(cellPadding, s.Box.X0-cell.X0)
	top := max(cellPadding, s.Box.Y0-cell.Y0)
	box := geom.Box{
		X0: cell.X0 + left,
		Y0: cell.Y0 + top,
		X1: cell.X0 + left + max(s.Box.Width(), 1),
		Y1: cell.Y0 + top + max(s.Box.Height(), 1),
	}
	weight := "normal"
	if s.Bold {
		weight = "bold"
	}
	fmt.Fprintf(b, `<div class="pdf-cell-text"%s style="%sfont-family:'%s', Times, serif;font-size:%spx;font-weight:%s;">%s</div>`,
		r.editAttrs(s.Text), r.place(box, cell), html.EscapeString(NormalizeFont(s.Font)),
		num(s.FontSize), weight, html.EscapeString(s.Text))
}

func (r *Renderer) image(b *strings.Builder, e model.Element, img *model.Image, frame geom.Box) {
	fmt.Fprintf(b, `<div class="pdf-image-frame" data-id="%s" style="%s">`, e.ID, r.place(e.Box, frame))
	if img.ImageData != "" {
		format := img.Format
		if format == "" {
			format = "png"
		}
		fmt.Fprintf(b, `<img class="pdf-image" src="data:image/%s;base64,%s" alt="%s" style="left:0;top:0;width:100%%;height:100%%;">`,
			html.EscapeString(format), img.ImageData, html.EscapeString(img.Name))
	}
	if o := img.OCROverlay; o != nil && len(o.EditableElements) > 0 {
		b.WriteString(`<div class="ocr-overlay" style="left:0;top:0;width:100%;height:100%;">`)
		for _, el := range o.EditableElements {
			fmt.Fprintf(b, `<div class="editable-element sem-%s" data-id="%s" data-type="%s" data-confidence="%s"%s%s style="%s">%s</div>`,
				el.Type, el.ID, el.Type, num(el.Confidence), r.editMarker(), r.validationAttrs(el.Validation),
				html.EscapeString(el.Style), html.EscapeString(el.Text))
		}
		b.WriteString("</div>")
	}
	b.WriteString("</div>")
}

func (r *Renderer) shape(b *strings.Builder, e model.Element, s *model.Shape, frame geom.Box) {
	stroke := s.Properties.StrokeColor
	if stroke == "" {
		stroke = "#333"
	}
	width := max(s.Properties.LineWidth, 1)
	var border string
	switch {
	case s.ShapeType == "line" && e.Box.Height() < 0.5:
		border = fmt.Sprintf("border-top:%spx solid %s;", num(width), stroke)
	case s.ShapeType == "line" && e.Box.Width() < 0.5:
		border = fmt.Sprintf("border-left:%spx solid %s;", num(width), stroke)
	case s.ShapeType == "line":
		return
	default:
		border = fmt.Sprintf("border:%spx solid %s;", num(width), stroke)
		if s.Properties.FillColor != "" {
			border += "background:" + s.Properties.FillColor + ";"
		}
	}
	fmt.Fprintf(b, `<div class="pdf-shape" style="%s%s"></div>`, r.place(e.Box, frame), html.EscapeString(border))
}

// editAttrs marks text editable with the validation rule of its type
func (r *Renderer) editAttrs(text string) string {
	if !r.opts.Editable {
		return ""
	}
	kind := ocr.EditableType(text)
	return r.editMarker() + fmt.Sprintf(` data-type="%s"`, kind) + r.validationAttrs(model.ValidationFor(kind))
}

func (r *Renderer) editMarker() string {
	if !r.opts.Editable {
		return ""
	}
	return ` data-editable="true"`
}

func (r *Renderer) validationAttrs(v model.ValidationRule) string {
	if !r.opts.Editable || v.Pattern == "" {
		return ""
	}
	return fmt.Sprintf(` data-validation="%s" data-validation-message="%s"`,
		html.EscapeString(v.Pattern), html.EscapeString(v.Message))
}

func confidenceClass(c float64) string {
	switch {
	case c < 0.5:
		return " confidence-low"
	case c < 0.75:
		return " confidence-medium"
	}
	return ""
}

func insideAny(b geom.Box, zones []geom.Box) bool {
	for _, z := range zones {
		if b.X0 >= z.X0-rectMargin && b.Y0 >= z.Y0-rectMargin &&
			b.X1 <= z.X1+rectMargin && b.Y1 <= z.Y1+rectMargin {
			return true
		}
	}
	return false
}

func num(v float64) string {
	return strconv.FormatFloat(geom.Round(v, 3), 'f', -1, 64)
}
