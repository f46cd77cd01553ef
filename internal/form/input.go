package form

import (
	"encoding/json"
	"strings"
)

// Input carries the raw field values submitted by the invoice form. It binds
// from both form-encoded and JSON bodies.
type Input struct {
	CustomerID string    `form:"customerId" json:"customerId"`
	Amount     RawAmount `form:"amount" json:"amount"`
	Status     string    `form:"status" json:"status"`
}

// RawAmount is an amount exactly as submitted: a form string or a JSON number
// or string. Coercion happens during Schema.Parse so that a malformed amount
// surfaces as a field error rather than a binding failure.
type RawAmount string

// UnmarshalJSON accepts strings, numbers and null. Any other literal is kept
// verbatim and rejected later by the amount rule.
func (a *RawAmount) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	switch {
	case raw == "null":
		*a = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = RawAmount(s)
	default:
		*a = RawAmount(raw)
	}
	return nil
}

// UnmarshalParam satisfies echo.BindUnmarshaler for form and query binding.
func (a *RawAmount) UnmarshalParam(param string) error {
	*a = RawAmount(param)
	return nil
}
