package expense

import "time"

// Type classifies an expense draft
type Type string

const (
	TypeReceipt Type = "RECEIPT"
	TypeInvoice Type = "INVOICE"
	TypeCharge  Type = "CHARGE"
	TypeGrant   Type = "GRANT"
)

// ItemsRequireFile reports whether every line item of this expense type must
// carry its own file. Receipts and charges attach the document per item;
// invoices and grants attach files at the expense level.
func (t Type) ItemsRequireFile() bool {
	return t == TypeReceipt || t == TypeCharge
}

// Item is one line of an expense form. An empty ID means the item has not
// been persisted yet. AmountCents is nil while unset; once set it is always
// denominated in the form's currency.
type Item struct {
	ID          string     `json:"id,omitempty"`
	URL         string     `json:"url,omitempty"`
	Description string     `json:"description"`
	IncurredAt  *time.Time `json:"incurred_at,omitempty"`
	AmountCents *int64     `json:"amount_cents,omitempty"`
	Currency    string     `json:"currency,omitempty"`
}

// FileRef points at an uploaded file attached to the expense as a whole
type FileRef struct {
	URL string `json:"url"`
}

// FormValues is the in-progress expense form. A single form never mixes
// currencies across items.
type FormValues struct {
	Type          Type      `json:"type"`
	Currency      string    `json:"currency,omitempty"`
	Description   string    `json:"description"`
	Items         []Item    `json:"items"`
	AttachedFiles []FileRef `json:"attached_files"`
}

// Clone returns a deep copy so merges never touch the caller's form
func (f FormValues) Clone() FormValues {
	out := f
	out.Items = make([]Item, len(f.Items))
	for i, it := range f.Items {
		out.Items[i] = it
		if it.IncurredAt != nil {
			t := *it.IncurredAt
			out.Items[i].IncurredAt = &t
		}
		if it.AmountCents != nil {
			v := *it.AmountCents
			out.Items[i].AmountCents = &v
		}
	}
	out.AttachedFiles = append([]FileRef(nil), f.AttachedFiles...)
	return out
}

// hasAttachedFile reports whether a file URL is already attached
func (f FormValues) hasAttachedFile(url string) bool {
	for _, file := range f.AttachedFiles {
		if file.URL == url {
			return true
		}
	}
	return false
}
