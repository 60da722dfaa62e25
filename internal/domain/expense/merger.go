package expense

import "go.uber.org/zap"

// NoReplace is passed to MergeAll when no existing item slot should be
// overwritten by the batch.
const NoReplace = -1

// Merger folds parsed document results into an in-progress expense form.
//
// Merging is strictly data-preserving: a field absent from the parsed result
// never clears what the user already entered, a cross-currency amount is
// dropped rather than mixed in, and no degenerate input aborts the merge of
// the remaining items in a batch.
type Merger struct {
	logger *zap.Logger
}

// NewMerger creates a merger
func NewMerger(logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{logger: logger}
}

// MergeOne writes one parsed item into the form item at index. An index at
// (or past) the end of the item list appends a new item. Returns whether a
// meaningful write occurred.
//
// Items parsed with a zero amount are not supported and are skipped
// entirely; the target item stays untouched.
func (m *Merger) MergeOne(form *FormValues, parsed ParsedItem, index int) bool {
	if parsed.Amount != nil && parsed.Amount.ValueCents == 0 {
		// Known product limitation, kept observable rather than silent
		m.logger.Warn("Skipping zero-amount parsed item",
			zap.String("description", parsed.Description),
			zap.String("currency", parsed.Amount.Currency))
		return false
	}

	var item Item
	existing := index >= 0 && index < len(form.Items)
	if existing {
		item = form.Items[index]
	}

	if parsed.URL != "" {
		if form.Type.ItemsRequireFile() {
			item.URL = parsed.URL
		} else if !form.hasAttachedFile(parsed.URL) {
			form.AttachedFiles = append(form.AttachedFiles, FileRef{URL: parsed.URL})
		}
	}

	if parsed.Description != "" {
		item.Description = parsed.Description
	}

	if parsed.IncurredAt != nil {
		t := *parsed.IncurredAt
		item.IncurredAt = &t
	}

	if form.Currency == "" && parsed.Amount != nil && parsed.Amount.Currency != "" {
		item.Currency = parsed.Amount.Currency
	}

	// The amount only lands when its currency matches the form's; forms
	// never mix currencies across items
	if parsed.Amount != nil && form.Currency != "" && parsed.Amount.Currency == form.Currency {
		v := parsed.Amount.ValueCents
		item.AmountCents = &v
		item.Currency = form.Currency
	}

	if existing {
		form.Items[index] = item
	} else {
		form.Items = append(form.Items, item)
	}
	return true
}

// MergeAll folds a batch of upload results into the form, in the order the
// files were uploaded.
//
// Results carrying line items feed the item list: the batch adopts a single
// currency only when every parsed item agrees on one, the first successful
// merge consumes replaceIndex (pass NoReplace for none) and the rest append.
// Results without structured data become new items when the expense type
// requires a file per item, attached files otherwise. When the batch is a
// single parsed document and the form has no description yet, the document's
// top-level description is adopted.
func (m *Merger) MergeAll(form *FormValues, results []UploadResult, replaceIndex int) {
	var withItems, fileOnly []UploadResult
	for _, r := range results {
		if r.hasItems() {
			withItems = append(withItems, r)
		} else {
			fileOnly = append(fileOnly, r)
		}
	}

	var allItems []ParsedItem
	for _, r := range withItems {
		allItems = append(allItems, r.Parsed.Items...)
	}

	if len(allItems) > 0 {
		if currency, ok := singleCurrency(allItems); ok {
			form.Currency = currency
		}

		for _, parsed := range allItems {
			index := replaceIndex
			if index == NoReplace {
				index = len(form.Items)
			}
			if m.MergeOne(form, parsed, index) {
				replaceIndex = NoReplace
			}
		}

		if len(results) == 1 && results[0].Parsed != nil && form.Description == "" {
			form.Description = results[0].Parsed.Description
		}
	}

	for _, r := range fileOnly {
		if form.Type.ItemsRequireFile() {
			form.Items = append(form.Items, Item{URL: r.FileURL})
		} else {
			form.AttachedFiles = append(form.AttachedFiles, FileRef{URL: r.FileURL})
		}
	}
}

// singleCurrency returns the batch currency when every parsed item carries
// the same non-empty one
func singleCurrency(items []ParsedItem) (string, bool) {
	currency := ""
	for _, item := range items {
		c := ""
		if item.Amount != nil {
			c = item.Amount.Currency
		}
		if c == "" {
			return "", false
		}
		if currency == "" {
			currency = c
		} else if c != currency {
			return "", false
		}
	}
	return currency, currency != ""
}
