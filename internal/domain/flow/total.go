package flow

// ComputeTotal returns the order total in minor units.
//
// Quantity multiplies the tier amount and the platform tip (countable tiers
// such as event tickets); tax is applied once per order. A free tier with no
// custom amount entered is always zero, whatever the tip or tax fields hold.
// Pure function: no side effects, same inputs always yield the same total.
func ComputeTotal(d Details, s Summary) int64 {
	if d.FreeTier && d.AmountCents == 0 {
		return 0
	}
	quantity := int64(d.Quantity)
	if quantity < 1 {
		quantity = 1
	}
	return quantity*(d.AmountCents+d.PlatformTipCents) + s.TaxCents
}
