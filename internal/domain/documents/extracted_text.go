package documents

// Provenance tags where extracted text came from.
type Provenance string

const (
	ProvenanceOCR         Provenance = "ocr"
	ProvenancePlainRead   Provenance = "plain-read"
	ProvenancePlaceholder Provenance = "placeholder"
)

// IsReal reports whether the text came from the document itself.
func (p Provenance) IsReal() bool {
	return p == ProvenanceOCR || p == ProvenancePlainRead
}

type ExtractedText struct {
	Text       string     `json:"text"`
	Provenance Provenance `json:"provenance"`
	// Warnings collects the reasons earlier stages were skipped.
	Warnings []string `json:"warnings,omitempty"`
}
