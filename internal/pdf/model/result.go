package model

import (
	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
)

// Processing states of a document extraction.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Page is the extraction output of one page
type Page struct {
	PageNumber     int         `json:"page_number"`
	Text           string      `json:"text"`
	PageDimensions geom.Size   `json:"page_dimensions"`
	Elements       []Element   `json:"elements"`
	Images         []Element   `json:"images"`
	Tables         []Element   `json:"tables"`
	TextBlocks     []TextBlock `json:"text_blocks"`
	CharsCount     int         `json:"chars_count"`
	OCRApplied     bool        `json:"ocr_applied,omitempty"`
	Error          string      `json:"error,omitempty"`
	HTML           string      `json:"-"`
}

// NewPlaceholderPage is emitted in place of a page that failed
func NewPlaceholderPage(number int, size geom.Size, message string) Page {
	if size.Width <= 0 || size.Height <= 0 {
		size = geom.Size{Width: 612, Height: 792}
	}
	return Page{
		PageNumber:     number,
		PageDimensions: size,
		Elements:       []Element{},
		Images:         []Element{},
		Tables:         []Element{},
		TextBlocks:     []TextBlock{},
		Error:          message,
	}
}

// Structure aggregates elements across pages
type Structure struct {
	Elements   []Element   `json:"elements"`
	Tables     []Element   `json:"tables"`
	Images     []Element   `json:"images"`
	TextBlocks []TextBlock `json:"text_blocks"`
	Metadata   Metadata    `json:"metadata"`
}

// Metadata describes the document and the run that produced the result
type Metadata struct {
	Title            string          `json:"title,omitempty"`
	Author           string          `json:"author,omitempty"`
	Subject          string          `json:"subject,omitempty"`
	Creator          string          `json:"creator,omitempty"`
	Producer         string          `json:"producer,omitempty"`
	PageCount        int             `json:"page_count"`
	Backend          string          `json:"backend"`
	Capabilities     map[string]bool `json:"capabilities"`
	Status           string          `json:"status"`
	ProcessingTimeMS int64           `json:"processing_time_ms"`
	TableCount       int             `json:"table_count"`
	ImageCount       int             `json:"image_count"`
	OCRWordCount     int             `json:"ocr_word_count"`
	FailedPages      []int           `json:"failed_pages,omitempty"`
	Consensus        *Consensus      `json:"consensus,omitempty"`

	// Encrypted documents list the rights their permissions withhold.
	Encrypted    bool     `json:"encrypted,omitempty"`
	Restrictions []string `json:"restrictions,omitempty"`
}

// Consensus reports cross-method agreement when the orchestrator ran
type Consensus struct {
	Methods        []string `json:"methods"`
	AgreementScore float64  `json:"agreement_score"`
	HighConfidence int      `json:"high_confidence"`
	Unique         int      `json:"unique"`
	NormalizedText string   `json:"normalized_text,omitempty"`
}

// ExtractionResult is the top-level value returned for a document. It is
// not modified after Extract returns.
type ExtractionResult struct {
	Extracted        bool      `json:"extracted"`
	ExtractionMethod string    `json:"extraction_method"`
	Text             string    `json:"text"`
	HTML             string    `json:"html"`
	Pages            []Page    `json:"pages"`
	Structure        Structure `json:"structure"`
	Errors           []string  `json:"errors"`
}
