package expense

import "time"

// ParsedAmount is a monetary value extracted from a document
type ParsedAmount struct {
	ValueCents int64  `json:"value_cents"`
	Currency   string `json:"currency"`
}

// ParsedItem is one line item extracted from an uploaded receipt or invoice.
// Fields the parser could not read stay at their zero value; Amount is nil
// when no monetary value was found. Parsed items are validated at the OCR
// boundary and consumed exactly once by the merge, then discarded.
type ParsedItem struct {
	URL         string        `json:"url,omitempty"`
	Description string        `json:"description,omitempty"`
	IncurredAt  *time.Time    `json:"incurred_at,omitempty"`
	Amount      *ParsedAmount `json:"amount,omitempty"`
}

// ParsedExpense is the structured result extracted from one document
type ParsedExpense struct {
	Description string       `json:"description,omitempty"`
	Items       []ParsedItem `json:"items"`
}

// UploadResult is what the upload/parse collaborator produces for one file.
// Parsed is nil when the document yielded no structured data; the file URL
// is always present.
type UploadResult struct {
	FileURL string         `json:"file_url"`
	Parsed  *ParsedExpense `json:"parsed,omitempty"`
}

// hasItems reports whether the result carries structured line items
func (r UploadResult) hasItems() bool {
	return r.Parsed != nil && len(r.Parsed.Items) > 0
}
