package wrapper

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"

	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
)

// Letter size is used when a page carries no usable MediaBox.
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

// LedongthucBackend is the native backend: positioned glyph runs, vector
// paths and image placements come from ledongthuc/pdf. Image payloads are
// delegated to an optional ImageSource because ledongthuc cannot decode
// DCT and most other image filters.
type LedongthucBackend struct {
	images func(data []byte) ImageSource
}

// ImageSource supplies encoded image bytes for a page, keyed by XObject name
type ImageSource interface {
	PageImages(pageNum int) (map[string]ImageRef, error)
}

// NewLedongthucBackend creates the native backend. imageSource may be nil.
func NewLedongthucBackend(imageSource func(data []byte) ImageSource) *LedongthucBackend {
	return &LedongthucBackend{images: imageSource}
}

// Type returns the backend type
func (b *LedongthucBackend) Type() BackendType {
	return BackendLedongthuc
}

// Open parses the document. ledongthuc panics on some malformed files, so
// the panic is converted into an error here.
func (b *LedongthucBackend) Open(data []byte) (doc Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = &WrapperError{Backend: BackendLedongthuc, Op: "open", Err: fmt.Errorf("parser panic: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &WrapperError{Backend: BackendLedongthuc, Op: "open", Err: err}
	}

	d := &LedongthucDocument{reader: reader}
	if b.images != nil {
		d.images = b.images(data)
	}
	return d, nil
}

// LedongthucDocument implements Document using ledongthuc/pdf
type LedongthucDocument struct {
	reader    *pdf.Reader
	images    ImageSource
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// PageCount returns the number of pages
func (d *LedongthucDocument) PageCount() int {
	return d.reader.NumPage()
}

// Page returns the 1-based page
func (d *LedongthucDocument) Page(pageNum int) (Page, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil, &WrapperError{Backend: BackendLedongthuc, Op: "page", Err: ErrDocumentClosed}
	}
	if pageNum < 1 || pageNum > d.reader.NumPage() {
		return nil, &WrapperError{Backend: BackendLedongthuc, Op: "page", Err: fmt.Errorf("%w: %d", ErrPageNotFound, pageNum)}
	}

	p := d.reader.Page(pageNum)
	if p.V.IsNull() {
		return nil, &WrapperError{Backend: BackendLedongthuc, Op: "page", Err: fmt.Errorf("%w: %d", ErrPageNotFound, pageNum)}
	}

	origin, size := mediaBox(p.V)
	return &LedongthucPage{
		page:   p,
		number: pageNum,
		origin: origin,
		size:   size,
		images: d.images,
	}, nil
}

// Metadata reads the trailer Info dictionary
func (d *LedongthucDocument) Metadata() (m Metadata) {
	defer func() {
		if recover() != nil {
			m = Metadata{}
		}
	}()
	trailer := d.reader.Trailer()
	if enc := trailer.Key("Encrypt"); !enc.IsNull() {
		m.Encrypted = true
		m.Permissions = int32(enc.Key("P").Int64())
	}
	info := trailer.Key("Info")
	if info.IsNull() {
		return m
	}
	m.Title = info.Key("Title").Text()
	m.Author = info.Key("Author").Text()
	m.Subject = info.Key("Subject").Text()
	m.Creator = info.Key("Creator").Text()
	m.Producer = info.Key("Producer").Text()
	return m
}

// Close marks the document closed. The reader works on an in-memory copy,
// so there is no file handle to release.
func (d *LedongthucDocument) Close() error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
	})
	return nil
}

// mediaBox resolves the inheritable MediaBox, walking up the page tree
func mediaBox(v pdf.Value) (geom.Point, geom.Size) {
	for node := v; !node.IsNull(); node = node.Key("Parent") {
		box := node.Key("MediaBox")
		if box.Kind() == pdf.Array && box.Len() == 4 {
			x0, y0 := box.Index(0).Float64(), box.Index(1).Float64()
			x1, y1 := box.Index(2).Float64(), box.Index(3).Float64()
			w, h := x1-x0, y1-y0
			if w > 0 && h > 0 {
				return geom.Point{X: x0, Y: y0}, geom.Size{Width: w, Height: h}
			}
		}
	}
	return geom.Point{}, geom.Size{Width: defaultPageWidth, Height: defaultPageHeight}
}

// LedongthucPage implements Page using ledongthuc/pdf
type LedongthucPage struct {
	page   pdf.Page
	number int
	origin geom.Point
	size   geom.Size
	images ImageSource
}

func (p *LedongthucPage) Number() int     { return p.number }
func (p *LedongthucPage) Size() geom.Size { return p.size }

// toTop converts a bottom-up user-space y into top-down page space
func (p *LedongthucPage) toTop(y float64) float64 {
	return p.size.Height - (y - p.origin.Y)
}

// TextRuns returns the glyph runs of the page in content-stream order.
// Fonts without a Widths array report zero advances; those glyphs are laid
// out with estimated widths so a run does not collapse onto one x.
func (p *LedongthucPage) TextRuns() ([]TextRun, error) {
	content := p.page.Content()
	runs := make([]TextRun, 0, len(content.Text))

	var lastX, lastY, lastW, cursor float64
	for i, t := range content.Text {
		size := t.FontSize
		if size <= 0 {
			size = 1
		}
		x := t.X
		w := t.W
		if w <= 0 {
			w = estimateAdvance(t.S, size)
		}
		if i > 0 && lastW <= 0 && math.Abs(t.X-lastX) < 0.01 && math.Abs(t.Y-lastY) < 0.01 {
			x = cursor
		}
		lastX, lastY, lastW = t.X, t.Y, t.W
		cursor = x + w

		if t.S == "" {
			continue
		}
		x0 := x - p.origin.X
		// glyph box approximated from the baseline: ascent 0.8em, descent 0.2em
		top := p.toTop(t.Y + size*0.8)
		bottom := p.toTop(t.Y - size*0.2)
		runs = append(runs, TextRun{
			Text:     t.S,
			Font:     t.Font,
			FontSize: size,
			Box:      geom.NewBox(x0, top, x0+w, bottom),
			Flags:    fontFlags(t.Font),
		})
	}
	return runs, nil
}

// estimateAdvance approximates glyph widths of a proportional font in em
func estimateAdvance(s string, size float64) float64 {
	var em float64
	for _, r := range s {
		switch {
		case r == ' ':
			em += 0.28
		case r == 'i' || r == 'l' || r == 'j' || r == '.' || r == ',' || r == '\'':
			em += 0.25
		case r >= 'A' && r <= 'Z', r == 'm', r == 'w':
			em += 0.68
		default:
			em += 0.52
		}
	}
	return em * size
}

// fontFlags derives style flags from the base font name
func fontFlags(font string) int {
	name := strings.ToLower(font)
	flags := 0
	if strings.Contains(name, "bold") || strings.Contains(name, "black") || strings.Contains(name, "heavy") {
		flags |= FlagBold
	}
	if strings.Contains(name, "italic") || strings.Contains(name, "oblique") {
		flags |= FlagItalic
	}
	return flags
}

// Paths walks the content stream and returns every painted path
func (p *LedongthucPage) Paths() ([]Path, error) {
	w := p.walk()
	return w.paths, nil
}

// Images returns the image placements, filled with payloads from the image
// source when one is configured.
func (p *LedongthucPage) Images() ([]ImageRef, error) {
	w := p.walk()
	if len(w.images) == 0 || p.images == nil {
		return w.images, nil
	}

	payloads, err := p.images.PageImages(p.number)
	if err != nil {
		return w.images, err
	}

	unmatched := make([]ImageRef, 0, len(payloads))
	for _, ref := range payloads {
		unmatched = append(unmatched, ref)
	}

	for i := range w.images {
		ref, ok := payloads[w.images[i].Name]
		if !ok && len(unmatched) == 1 && len(w.images) == 1 {
			ref, ok = unmatched[0], true
		}
		if ok {
			w.images[i].Data = ref.Data
			w.images[i].Format = ref.Format
			if w.images[i].Width == 0 {
				w.images[i].Width = ref.Width
				w.images[i].Height = ref.Height
			}
		}
	}
	return w.images, nil
}

// PlainText concatenates the page runs in stream order
func (p *LedongthucPage) PlainText() (string, error) {
	runs, err := p.TextRuns()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, r := range runs {
		sb.WriteString(r.Text)
	}
	return sb.String(), nil
}

func (p *LedongthucPage) walk() *contentWalker {
	w := newContentWalker(p.page.Resources(), p.toPage)
	contents := p.page.V.Key("Contents")
	if contents.Kind() == pdf.Array {
		for i := 0; i < contents.Len(); i++ {
			w.interpret(contents.Index(i))
		}
	} else {
		w.interpret(contents)
	}
	return w
}

// toPage maps a user-space point to top-left page space
func (p *LedongthucPage) toPage(x, y float64) geom.Point {
	return geom.Point{X: x - p.origin.X, Y: p.toTop(y)}
}
