package model

// OCROverlay carries everything recognized on one image
type OCROverlay struct {
	Available           bool                `json:"ocr_available"`
	Words               []OCRWord           `json:"words"`
	EditableElements    []EditableElement   `json:"editable_elements"`
	Quality             QualityAssessment   `json:"quality"`
	EditingCapabilities EditingCapabilities `json:"editing_capabilities"`
	ImageWidth          int                 `json:"image_width"`
	ImageHeight         int                 `json:"image_height"`
	Passes              int                 `json:"passes"`
	Error               string              `json:"error,omitempty"`
}

// PixelBox is a box in image pixels
type PixelBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PercentBox is a box relative to the image, in percent
type PercentBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FontEstimate is the inferred rendering font of a recognized word
type FontEstimate struct {
	Size   float64 `json:"size"`
	Weight string  `json:"weight"`
	Family string  `json:"family"`
	Style  string  `json:"style"`
}

// OCRWord is one recognized token retained after deduplication
type OCRWord struct {
	Text            string       `json:"text"`
	Confidence      float64      `json:"confidence"`
	Score           float64      `json:"score"`
	BBox            PixelBox     `json:"bbox"`
	Position        PercentBox   `json:"position"`
	TechnicalType   string       `json:"technical_type"`
	Font            FontEstimate `json:"font"`
	DisplayPriority int          `json:"display_priority"`
	Source          string       `json:"source"`
	IsSymbol        bool         `json:"is_symbol,omitempty"`
}

// ValidationRule is client-side input validation metadata
type ValidationRule struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
}

// EditableElement is an in-browser editable text region over an image
type EditableElement struct {
	ID           string         `json:"id"`
	Text         string         `json:"text"`
	OriginalText string         `json:"original_text"`
	Type         string         `json:"type"`
	Confidence   float64        `json:"confidence"`
	Position     PercentBox     `json:"position"`
	Font         FontEstimate   `json:"font"`
	Style        string         `json:"style"`
	Validation   ValidationRule `json:"validation"`
	WordCount    int            `json:"word_count"`
}

// QualityAssessment summarizes recognition quality of an overlay
type QualityAssessment struct {
	Overall           string         `json:"overall"`
	AverageConfidence float64        `json:"average_confidence"`
	TechnicalCoverage float64        `json:"technical_coverage"`
	Distribution      map[string]int `json:"confidence_distribution"`
	TypeCounts        map[string]int `json:"type_counts"`
	Recommendation    string         `json:"recommendation"`
	TotalWords        int            `json:"total_words"`
	TechnicalElements int            `json:"technical_elements"`
}

// EditingCapabilities flags what the browser editor may offer
type EditingCapabilities struct {
	CanEditText       bool `json:"can_edit_text"`
	CanEditNumbers    bool `json:"can_edit_numbers"`
	CanEditDimensions bool `json:"can_edit_dimensions"`
	HasSymbols        bool `json:"has_symbols"`
	NeedsReview       bool `json:"needs_review"`
}
