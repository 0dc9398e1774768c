package model

// MismatchKind classifies what canonical field a discrepancy was found against.
type MismatchKind string

const (
	MismatchName MismatchKind = "name_mismatch"
	MismatchDate MismatchKind = "date_mismatch"
)

// Severity buckets a mismatch by how far the extracted value drifted from the
// canonical one.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Mismatch is a scored discrepancy between a canonical registry field and a
// value extracted from a filed document. Expected and Found carry the raw
// compared values for audit.
type Mismatch struct {
	Kind         MismatchKind `json:"kind"`
	EntityNumber string       `json:"company_number"`
	DocumentID   string       `json:"document_id"`
	Expected     string       `json:"expected"`
	Found        string       `json:"found"`
	Similarity   float64      `json:"similarity"`
	Severity     Severity     `json:"severity"`
}
