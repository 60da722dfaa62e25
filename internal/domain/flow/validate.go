package flow

import (
	"strings"

	"github.com/collectivehq/funding-flow/pkg/utils"
)

// validateProfile requires a name, or an email for guest contributors
func validateProfile(p Profile) []FieldError {
	var errs []FieldError
	if p.IsGuest {
		if strings.TrimSpace(p.Email) == "" {
			errs = append(errs, FieldError{Field: "email", Message: "guest contributions require an email"})
		}
	} else if strings.TrimSpace(p.Name) == "" && strings.TrimSpace(p.Email) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name or email is required"})
	}
	if p.Email != "" {
		if err := utils.ValidateEmail(p.Email); err != nil {
			errs = append(errs, FieldError{Field: "email", Message: "email is not valid"})
		}
	}
	return errs
}

// validateDetails requires a positive amount unless the tier is free
func validateDetails(d Details) []FieldError {
	var errs []FieldError
	if !d.FreeTier && d.AmountCents <= 0 {
		errs = append(errs, FieldError{Field: "amount", Message: "amount must be positive"})
	}
	if d.AmountCents < 0 {
		errs = append(errs, FieldError{Field: "amount", Message: "amount cannot be negative"})
	}
	if d.PlatformTipCents < 0 {
		errs = append(errs, FieldError{Field: "platform_tip", Message: "tip cannot be negative"})
	}
	if d.Quantity < 0 {
		errs = append(errs, FieldError{Field: "quantity", Message: "quantity cannot be negative"})
	}
	if !d.FreeTier {
		if err := utils.ValidateCurrencyCode(d.Currency); err != nil {
			errs = append(errs, FieldError{Field: "currency", Message: "a valid currency code is required"})
		}
	}
	return errs
}

// validatePayment requires a payment method unless the order total is zero
func validatePayment(p Payment, d Details, s Summary) []FieldError {
	if ComputeTotal(d, s) == 0 {
		return nil
	}
	if strings.TrimSpace(p.MethodID) == "" {
		return []FieldError{{Field: "payment_method", Message: "a payment method is required"}}
	}
	return nil
}
