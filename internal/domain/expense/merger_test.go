package expense

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cents(v int64) *int64 { return &v }

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestMergeOne_ZeroAmountIsRejected(t *testing.T) {
	m := NewMerger(nil)
	form := FormValues{
		Type:     TypeReceipt,
		Currency: "USD",
		Items: []Item{
			{Description: "Team lunch", AmountCents: cents(4200), Currency: "USD"},
		},
	}
	before := form.Clone()

	merged := m.MergeOne(&form, ParsedItem{
		Description: "Parking",
		Amount:      &ParsedAmount{ValueCents: 0, Currency: "USD"},
	}, 0)

	assert.False(t, merged)
	assert.Equal(t, before, form, "zero-amount item must leave the form untouched")
}

func TestMergeOne_NeverClearsExistingFields(t *testing.T) {
	m := NewMerger(nil)
	form := FormValues{
		Type:     TypeReceipt,
		Currency: "USD",
		Items: []Item{
			{
				Description: "Taxi to airport",
				IncurredAt:  date("2024-03-01"),
				URL:         "https://files.example.com/receipt-1.pdf",
			},
		},
	}

	// Parsed item carries only an amount; everything else is absent
	merged := m.MergeOne(&form, ParsedItem{
		Amount: &ParsedAmount{ValueCents: 1200, Currency: "USD"},
	}, 0)

	require.True(t, merged)
	item := form.Items[0]
	assert.Equal(t, "Taxi to airport", item.Description)
	assert.Equal(t, date("2024-03-01"), item.IncurredAt)
	assert.Equal(t, "https://files.example.com/receipt-1.pdf", item.URL)
	require.NotNil(t, item.AmountCents)
	assert.Equal(t, int64(1200), *item.AmountCents)
}

func TestMergeOne_CrossCurrencyAmountIsDropped(t *testing.T) {
	m := NewMerger(nil)
	form := FormValues{Type: TypeReceipt, Currency: "USD", Items: []Item{{}}}

	merged := m.MergeOne(&form, ParsedItem{
		Description: "Hotel",
		Amount:      &ParsedAmount{ValueCents: 9900, Currency: "EUR"},
	}, 0)

	require.True(t, merged, "the description write still counts")
	assert.Equal(t, "Hotel", form.Items[0].Description)
	assert.Nil(t, form.Items[0].AmountCents, "EUR amount must not land on a USD form")
}

func TestMergeOne_AdoptsItemCurrencyWhenFormHasNone(t *testing.T) {
	m := NewMerger(nil)
	form := FormValues{Type: TypeReceipt, Items: []Item{{}}}

	merged := m.MergeOne(&form, ParsedItem{
		Amount: &ParsedAmount{ValueCents: 500, Currency: "GBP"},
	}, 0)

	require.True(t, merged)
	assert.Equal(t, "GBP", form.Items[0].Currency)
	assert.Nil(t, form.Items[0].AmountCents, "amount needs a form currency to land")
	assert.Empty(t, form.Currency, "MergeOne alone never forces the form currency")
}

func TestMergeOne_URLHandlingDependsOnExpenseType(t *testing.T) {
	m := NewMerger(nil)

	t.Run("receipt types carry the file on the item", func(t *testing.T) {
		form := FormValues{Type: TypeReceipt, Currency: "USD", Items: []Item{{}}}
		m.MergeOne(&form, ParsedItem{URL: "https://files.example.com/r.pdf"}, 0)
		assert.Equal(t, "https://files.example.com/r.pdf", form.Items[0].URL)
		assert.Empty(t, form.AttachedFiles)
	})

	t.Run("invoice types attach the file to the expense", func(t *testing.T) {
		form := FormValues{Type: TypeInvoice, Currency: "USD", Items: []Item{{}}}
		m.MergeOne(&form, ParsedItem{URL: "https://files.example.com/i.pdf"}, 0)
		assert.Empty(t, form.Items[0].URL)
		require.Len(t, form.AttachedFiles, 1)
		assert.Equal(t, "https://files.example.com/i.pdf", form.AttachedFiles[0].URL)
	})

	t.Run("already attached files are not duplicated", func(t *testing.T) {
		form := FormValues{
			Type:          TypeInvoice,
			Currency:      "USD",
			Items:         []Item{{}},
			AttachedFiles: []FileRef{{URL: "https://files.example.com/i.pdf"}},
		}
		m.MergeOne(&form, ParsedItem{URL: "https://files.example.com/i.pdf"}, 0)
		assert.Len(t, form.AttachedFiles, 1)
	})
}

func TestMergeOne_IndexPastEndAppends(t *testing.T) {
	m := NewMerger(nil)
	form := FormValues{Type: TypeReceipt, Currency: "USD"}

	merged := m.MergeOne(&form, ParsedItem{Description: "Taxi"}, 0)

	require.True(t, merged)
	require.Len(t, form.Items, 1)
	assert.Equal(t, "Taxi", form.Items[0].Description)
	assert.Empty(t, form.Items[0].ID, "appended items are not persisted yet")
}

func TestMergeAll_EndToEnd(t *testing.T) {
	m := NewMerger(nil)
	form := FormValues{Type: TypeReceipt}

	m.MergeAll(&form, []UploadResult{
		{
			FileURL: "https://files.example.com/taxi.pdf",
			Parsed: &ParsedExpense{
				Items: []ParsedItem{
					{Description: "Taxi", Amount: &ParsedAmount{ValueCents: 1200, Currency: "USD"}},
				},
			},
		},
	}, NoReplace)

	assert.Equal(t, "USD", form.Currency)
	require.Len(t, form.Items, 1)
	item := form.Items[0]
	assert.Equal(t, "Taxi", item.Description)
	assert.Equal(t, "USD", item.Currency)
	require.NotNil(t, item.AmountCents)
	assert.Equal(t, int64(1200), *item.AmountCents)
	assert.Empty(t, item.ID)
}

func TestMergeAll_MixedCurrenciesLeaveFormCurrencyAlone(t *testing.T) {
	m := NewMerger(nil)
	form := FormValues{Type: TypeReceipt}

	m.MergeAll(&form, []UploadResult{
		{
			FileURL: "https://files.example.com/a.pdf",
			Parsed: &ParsedExpense{Items: []ParsedItem{
				{Description: "Taxi", Amount: &ParsedAmount{ValueCents: 1200, Currency: "USD"}},
			}},
		},
		{
			FileURL: "https://files.example.com/b.pdf",
			Parsed: &ParsedExpense{Items: []ParsedItem{
				{Description: "Hotel", Amount: &ParsedAmount{ValueCents: 9900, Currency: "EUR"}},
			}},
		},
	}, NoReplace)

	assert.Empty(t, form.Currency, "conflicting currencies must not force one")
	require.Len(t, form.Items, 2)
	assert.Nil(t, form.Items[0].AmountCents)
	assert.Nil(t, form.Items[1].AmountCents)
	assert.Equal(t, "Taxi", form.Items[0].Description)
	assert.Equal(t, "Hotel", form.Items[1].Description)
}

func TestMergeAll_FileOnlyResults(t *testing.T) {
	m := NewMerger(nil)

	t.Run("appends one item for receipt types", func(t *testing.T) {
		form := FormValues{
			Type:     TypeReceipt,
			Currency: "USD",
			Items:    []Item{{Description: "Existing", AmountCents: cents(100), Currency: "USD"}},
		}

		m.MergeAll(&form, []UploadResult{{FileURL: "https://files.example.com/scan.pdf"}}, NoReplace)

		require.Len(t, form.Items, 2)
		assert.Equal(t, "Existing", form.Items[0].Description, "existing items stay unmodified")
		assert.Equal(t, int64(100), *form.Items[0].AmountCents)
		assert.Equal(t, "https://files.example.com/scan.pdf", form.Items[1].URL)
	})

	t.Run("appends one attachment for invoice types", func(t *testing.T) {
		form := FormValues{Type: TypeInvoice, Currency: "USD"}

		m.MergeAll(&form, []UploadResult{{FileURL: "https://files.example.com/scan.pdf"}}, NoReplace)

		assert.Empty(t, form.Items)
		require.Len(t, form.AttachedFiles, 1)
		assert.Equal(t, "https://files.example.com/scan.pdf", form.AttachedFiles[0].URL)
	})
}

func TestMergeAll_ReplaceIndexConsumedByFirstSuccess(t *testing.T) {
	m := NewMerger(nil)
	form := FormValues{
		Type:     TypeReceipt,
		Currency: "USD",
		Items: []Item{
			{Description: "Placeholder"},
			{Description: "Keep me", AmountCents: cents(700), Currency: "USD"},
		},
	}

	m.MergeAll(&form, []UploadResult{
		{
			FileURL: "https://files.example.com/multi.pdf",
			Parsed: &ParsedExpense{Items: []ParsedItem{
				{Description: "Flight", Amount: &ParsedAmount{ValueCents: 30000, Currency: "USD"}},
				{Description: "Baggage", Amount: &ParsedAmount{ValueCents: 3500, Currency: "USD"}},
			}},
		},
	}, 0)

	require.Len(t, form.Items, 3)
	assert.Equal(t, "Flight", form.Items[0].Description, "first item replaces the slot")
	assert.Equal(t, "Keep me", form.Items[1].Description, "other slots never overwritten")
	assert.Equal(t, "Baggage", form.Items[2].Description, "subsequent items append")
}

func TestMergeAll_ReplaceIndexSurvivesFailedMerge(t *testing.T) {
	m := NewMerger(nil)
	form := FormValues{
		Type:     TypeReceipt,
		Currency: "USD",
		Items:    []Item{{Description: "Placeholder"}},
	}

	// First parsed item is unsupported (zero amount); the slot stays
	// available for the next one
	m.MergeAll(&form, []UploadResult{
		{
			FileURL: "https://files.example.com/multi.pdf",
			Parsed: &ParsedExpense{Items: []ParsedItem{
				{Description: "Freebie", Amount: &ParsedAmount{ValueCents: 0, Currency: "USD"}},
				{Description: "Dinner", Amount: &ParsedAmount{ValueCents: 5600, Currency: "USD"}},
			}},
		},
	}, 0)

	require.Len(t, form.Items, 1)
	assert.Equal(t, "Dinner", form.Items[0].Description)
}

func TestMergeAll_DescriptionAdoption(t *testing.T) {
	m := NewMerger(nil)

	result := UploadResult{
		FileURL: "https://files.example.com/r.pdf",
		Parsed: &ParsedExpense{
			Description: "Conference trip",
			Items: []ParsedItem{
				{Description: "Taxi", Amount: &ParsedAmount{ValueCents: 1200, Currency: "USD"}},
			},
		},
	}

	t.Run("adopted for a single result on an empty form", func(t *testing.T) {
		form := FormValues{Type: TypeReceipt}
		m.MergeAll(&form, []UploadResult{result}, NoReplace)
		assert.Equal(t, "Conference trip", form.Description)
	})

	t.Run("existing description wins", func(t *testing.T) {
		form := FormValues{Type: TypeReceipt, Description: "My trip"}
		m.MergeAll(&form, []UploadResult{result}, NoReplace)
		assert.Equal(t, "My trip", form.Description)
	})

	t.Run("not adopted for multi-file batches", func(t *testing.T) {
		form := FormValues{Type: TypeReceipt}
		m.MergeAll(&form, []UploadResult{result, {FileURL: "https://files.example.com/other.pdf"}}, NoReplace)
		assert.Empty(t, form.Description)
	})
}

func TestFormValues_CloneIsDeep(t *testing.T) {
	form := FormValues{
		Type:          TypeReceipt,
		Currency:      "USD",
		Items:         []Item{{Description: "Taxi", AmountCents: cents(1200), IncurredAt: date("2024-03-01")}},
		AttachedFiles: []FileRef{{URL: "https://files.example.com/a.pdf"}},
	}

	clone := form.Clone()
	*clone.Items[0].AmountCents = 9999
	clone.Items[0].Description = "Changed"
	clone.AttachedFiles[0].URL = "changed"

	assert.Equal(t, int64(1200), *form.Items[0].AmountCents)
	assert.Equal(t, "Taxi", form.Items[0].Description)
	assert.Equal(t, "https://files.example.com/a.pdf", form.AttachedFiles[0].URL)
}
