package invoice

import (
	"github.com/Additional-Code/invoicer/pkg/errorbank"
)

// User-facing messages. Persistence messages never carry the underlying
// cause; it is only logged.
const (
	msgCreateInvalid = "Missing Fields. Failed to Create Invoice."
	msgUpdateInvalid = "Missing Fields. Failed to Update Invoice."
	msgCreateFailed  = "Database Error: Failed to Create Invoice."
	msgUpdateFailed  = "Database Error: Failed to Update Invoice."
	msgDeleteFailed  = "Database Error: Failed to Delete Invoice."
	msgListFailed    = "Database Error: Failed to Fetch Invoices."
	msgMissingID     = "Invoice id is required."
)

// State is the result handed back to a form after a failed mutation.
type State struct {
	Errors  map[string][]string `json:"errors,omitempty"`
	Message string              `json:"message"`
}

// StateOf converts an error returned by Service into the form result. A nil
// error yields the zero State.
func StateOf(err error) State {
	if err == nil {
		return State{}
	}
	appErr := errorbank.From(err)
	return State{
		Errors:  appErr.FieldErrors(),
		Message: appErr.Message(),
	}
}

// IsValidation reports whether err is a user-correctable validation failure.
func IsValidation(err error) bool {
	return errorbank.IsKind(err, errorbank.KindUnprocessableEntity)
}
