// Package model defines the extraction result: pages of positioned,
// typed elements and the JSON contract persisted by callers.
package model

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
)

// ElementType is the JSON discriminator of an Element
type ElementType string

const (
	ElementText  ElementType = "text"
	ElementTable ElementType = "table"
	ElementImage ElementType = "image"
	ElementShape ElementType = "shape"
)

// Content is the variant payload of an Element: *TextSpan, *Table, *Image
// or *Shape.
type Content interface {
	elementType() ElementType
}

func (*TextSpan) elementType() ElementType { return ElementText }
func (*Table) elementType() ElementType    { return ElementTable }
func (*Image) elementType() ElementType    { return ElementImage }
func (*Shape) elementType() ElementType    { return ElementShape }

// Element is one positioned item on a page
type Element struct {
	ID         string
	Page       int
	Index      int
	Box        geom.Box
	Position   geom.Position
	Confidence float64
	Content    Content
}

// Type returns the discriminator of the element's content
func (e *Element) Type() ElementType {
	if e.Content == nil {
		return ""
	}
	return e.Content.elementType()
}

// TextSpan returns the text payload or nil
func (e *Element) TextSpan() *TextSpan {
	t, _ := e.Content.(*TextSpan)
	return t
}

// Table returns the table payload or nil
func (e *Element) Table() *Table {
	t, _ := e.Content.(*Table)
	return t
}

// Image returns the image payload or nil
func (e *Element) Image() *Image {
	t, _ := e.Content.(*Image)
	return t
}

// Shape returns the shape payload or nil
func (e *Element) Shape() *Shape {
	t, _ := e.Content.(*Shape)
	return t
}

// NewElement places content on a page. The position is derived from box
// clamped to the page.
func NewElement(page int, box geom.Box, size geom.Size, confidence float64, content Content) Element {
	clamped := box.Clamp(size)
	return Element{
		Page:       page,
		Box:        clamped,
		Position:   clamped.Position(size),
		Confidence: geom.Round(geom.Clamp(confidence, 0, 1), 3),
		Content:    content,
	}
}

var idNamespace = uuid.MustParse("6f1c1d1e-55a4-4c1b-9a1e-3b1d2f0c7a10")

// SortReadingOrder orders elements by (y, x) and assigns indexes and
// stable identifiers derived from page, type, index and box.
func SortReadingOrder(elements []Element) {
	sort.SliceStable(elements, func(i, j int) bool {
		a, b := elements[i].Box, elements[j].Box
		if a.Y0 != b.Y0 {
			return a.Y0 < b.Y0
		}
		return a.X0 < b.X0
	})
	for i := range elements {
		elements[i].Index = i
		elements[i].ID = StableID(elements[i].Page, elements[i].Type(), i, elements[i].Box)
	}
}

// StableID returns a name-based UUID so repeated extractions of the same
// file produce the same identifiers.
func StableID(page int, kind ElementType, index int, box geom.Box) string {
	key := fmt.Sprintf("%d/%s/%d/%.2f,%.2f,%.2f,%.2f", page, kind, index, box.X0, box.Y0, box.X1, box.Y1)
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

type elementHeader struct {
	Type       ElementType   `json:"type"`
	ID         string        `json:"id"`
	Page       int           `json:"page"`
	Index      int           `json:"index"`
	Position   geom.Position `json:"position"`
	Confidence float64       `json:"confidence"`
}

// MarshalJSON flattens the common fields and the variant payload into one
// object carrying a "type" discriminator.
func (e Element) MarshalJSON() ([]byte, error) {
	head, err := json.Marshal(elementHeader{
		Type:       e.Type(),
		ID:         e.ID,
		Page:       e.Page,
		Index:      e.Index,
		Position:   e.Position,
		Confidence: e.Confidence,
	})
	if err != nil {
		return nil, err
	}
	if e.Content == nil {
		return head, nil
	}

	body, err := json.Marshal(e.Content)
	if err != nil {
		return nil, err
	}
	if len(body) <= 2 {
		return head, nil
	}
	// splice {"type":...} and {"text":...} into one object
	out := make([]byte, 0, len(head)+len(body))
	out = append(out, head[:len(head)-1]...)
	out = append(out, ',')
	out = append(out, body[1:]...)
	return out, nil
}

// UnmarshalJSON restores the variant from its "type" discriminator
func (e *Element) UnmarshalJSON(data []byte) error {
	var head elementHeader
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	var content Content
	switch head.Type {
	case ElementText:
		content = &TextSpan{}
	case ElementTable:
		content = &Table{}
	case ElementImage:
		content = &Image{}
	case ElementShape:
		content = &Shape{}
	case "":
	default:
		return fmt.Errorf("unknown element type %q", head.Type)
	}
	if content != nil {
		if err := json.Unmarshal(data, content); err != nil {
			return err
		}
	}

	*e = Element{
		ID:         head.ID,
		Page:       head.Page,
		Index:      head.Index,
		Position:   head.Position,
		Confidence: head.Confidence,
		Content:    content,
		Box: geom.Box{
			X0: head.Position.X,
			Y0: head.Position.Y,
			X1: head.Position.X + head.Position.Width,
			Y1: head.Position.Y + head.Position.Height,
		},
	}
	return nil
}
