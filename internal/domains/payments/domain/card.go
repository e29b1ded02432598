package domain

import "regexp"

var (
	cardNumberPattern = regexp.MustCompile(`^\d{12,19}$`)
	cardExpiryPattern = regexp.MustCompile(`^\d{2}/\d{2}$`)
	cardCVVPattern    = regexp.MustCompile(`^\d{3,4}$`)
)

// CardDetails are the structural card fields demanded for the CARD
// method before any OTP comparison happens.
type CardDetails struct {
	Number string
	Expiry string
	CVV    string
}

// Validate returns per-field problems, empty when the details are
// structurally sound. Only shape is checked, never issuer validity.
func (c CardDetails) Validate() map[string]string {
	problems := map[string]string{}
	if !cardNumberPattern.MatchString(c.Number) {
		problems["cardNumber"] = "must be 12-19 digits"
	}
	if !cardExpiryPattern.MatchString(c.Expiry) {
		problems["cardExpiry"] = "must match MM/YY"
	}
	if !cardCVVPattern.MatchString(c.CVV) {
		problems["cardCvv"] = "must be 3-4 digits"
	}
	return problems
}
