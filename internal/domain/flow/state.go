package flow

// Profile holds the data collected on the PROFILE step.
// A guest contributor has no account; only the email identifies them.
type Profile struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsGuest bool   `json:"is_guest"`
}

// Details holds the data collected on the DETAILS step.
// All monetary values are integer minor units (cents).
type Details struct {
	AmountCents      int64  `json:"amount_cents"`
	Currency         string `json:"currency"`
	PlatformTipCents int64  `json:"platform_tip_cents"`
	Quantity         int    `json:"quantity"`
	Interval         string `json:"interval,omitempty"`
	FreeTier         bool   `json:"free_tier"`
}

// Payment holds the data collected on the PAYMENT step
type Payment struct {
	MethodID   string `json:"method_id"`
	MethodName string `json:"method_name,omitempty"`
}

// Summary holds the data collected on the SUMMARY step.
// TaxCents is computed upstream (VAT etc.) and applied once per order.
type Summary struct {
	TaxCents   int64  `json:"tax_cents"`
	CountryISO string `json:"country_iso,omitempty"`
}

// StepView is a read-only projection of one step for the rendering layer.
// Disabled marks steps past the navigation frontier.
type StepView struct {
	Name      StepName `json:"name"`
	Index     int      `json:"index"`
	Visited   bool     `json:"visited"`
	Completed bool     `json:"completed"`
	Disabled  bool     `json:"disabled"`
}

// Snapshot is a read-only view of the whole flow for the rendering layer
type Snapshot struct {
	CurrentStep     StepName   `json:"current_step"`
	CurrentIndex    int        `json:"current_index"`
	LastVisitedStep int        `json:"last_visited_step"`
	Submitted       bool       `json:"submitted"`
	TotalCents      int64      `json:"total_cents"`
	Currency        string     `json:"currency"`
	Steps           []StepView `json:"steps"`
}
