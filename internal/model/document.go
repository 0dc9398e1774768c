package model

import "time"

// ExtractionMethod identifies how text was pulled out of a filed document.
type ExtractionMethod string

const (
	ExtractionMethodNone ExtractionMethod = "none"
	ExtractionMethodText ExtractionMethod = "text"
	ExtractionMethodOCR  ExtractionMethod = "ocr"
	ExtractionMethodAI   ExtractionMethod = "ai"
)

// Document is a filed artifact tied to an entity. ExtractedText, Method and
// Confidence are populated once the extraction collaborator has processed it.
type Document struct {
	ID           string    `json:"document_id"`
	EntityNumber string    `json:"company_number"`
	FilingDate   time.Time `json:"filing_date"`
	Category     string    `json:"category"`
	Description  string    `json:"description,omitempty"`

	ExtractedText string           `json:"extracted_text,omitempty"`
	Method        ExtractionMethod `json:"extraction_method,omitempty"`
	Confidence    float64          `json:"extraction_confidence,omitempty"`
}

// Extraction is the output of the DocumentExtractor collaborator.
type Extraction struct {
	Text       string           `json:"text"`
	Method     ExtractionMethod `json:"method"`
	Confidence float64          `json:"confidence"`
}

// Usable reports whether the extraction produced text worth comparing.
func (e Extraction) Usable() bool {
	return e.Text != "" && e.Confidence > 0
}
