package dispatch

import "strings"

// DefaultCountryCode is the dialing prefix re-applied to local numbers.
const DefaultCountryCode = "55"

// NormalizePhone converts a free-form Brazilian phone number into a channel
// address (country code + area code + number, digits only).
// It reports false when the number cannot be a valid address.
func NormalizePhone(raw string) (string, bool) {
	return NormalizePhoneWithCountry(raw, DefaultCountryCode)
}

// NormalizePhoneWithCountry is NormalizePhone for an arbitrary country code.
//
// Non-digits and leading zeros are dropped. A number that carries the country
// code in front of a 10 or 11 digit local number is kept as is; this check
// comes first so that normalizing an address again never changes it. Otherwise
// a 10 or 11 digit local number (area code included) gets the country code
// prepended. Longer numbers starting with the country code pass through.
func NormalizePhoneWithCountry(raw, countryCode string) (string, bool) {
	digits := onlyDigits(raw)
	if digits == "" || countryCode == "" {
		return "", false
	}

	local := strings.TrimLeft(digits, "0")
	if rest, ok := strings.CutPrefix(local, countryCode); ok && isLocalLength(len(rest)) {
		return local, true
	}
	if isLocalLength(len(local)) {
		return countryCode + local, true
	}
	if len(digits) >= 12 && strings.HasPrefix(digits, countryCode) {
		return digits, true
	}
	return "", false
}

// SamePhone reports whether two raw numbers normalize to the same address.
func SamePhone(a, b string) bool {
	return SamePhoneWithCountry(a, b, DefaultCountryCode)
}

// SamePhoneWithCountry is SamePhone for an arbitrary country code.
func SamePhoneWithCountry(a, b, countryCode string) bool {
	na, okA := NormalizePhoneWithCountry(a, countryCode)
	nb, okB := NormalizePhoneWithCountry(b, countryCode)
	return okA && okB && na == nb
}

func isLocalLength(n int) bool {
	return n == 10 || n == 11
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
