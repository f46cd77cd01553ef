// Package form validates and normalizes invoice form submissions.
//
// A Schema is built once at startup and shared; it holds no per-request
// state and is safe for concurrent use.
package form

import (
	"errors"
	"math"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an invoice.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

// Field names as they appear on the wire.
const (
	FieldCustomerID = "customerId"
	FieldAmount     = "amount"
	FieldStatus     = "status"
)

// Amount bounds checked before any decimal arithmetic. Rescaling a decimal
// costs time proportional to its exponent, so "1e-10000000" must be refused
// from its text alone.
const (
	maxAmountLength = 32
	minExponent     = -18
	maxExponent     = 18
)

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(math.MaxInt64)
)

// FieldErrors maps a field name to its human-readable messages.
type FieldErrors map[string][]string

// Add appends a message for field.
func (fe FieldErrors) Add(field, message string) {
	fe[field] = append(fe[field], message)
}

// Fields is a validated and normalized submission.
type Fields struct {
	CustomerID  string
	Amount      decimal.Decimal
	AmountCents int64
	Status      Status
}

// submission is the validator-facing view of an Input. Cents is derived from
// Amount before validation and is zero when Amount is not a usable number, so
// an amount must be present and worth at least one cent.
type submission struct {
	CustomerID string `field:"customerId" validate:"required"`
	Amount     string `field:"amount" validate:"required"`
	Cents      int64  `field:"amount" validate:"gt=0"`
	Status     string `field:"status" validate:"required,oneof=pending paid"`
}

var defaultMessages = map[string]string{
	FieldCustomerID: "Please select a customer.",
	FieldAmount:     "Please enter an amount greater than $0.",
	FieldStatus:     "Please select an invoice status.",
}

// Schema validates invoice submissions.
type Schema struct {
	validate *validator.Validate
	messages map[string]string
}

// NewSchema builds the invoice schema.
func NewSchema() (*Schema, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("field"); name != "" {
			return name
		}
		return f.Name
	})

	messages := make(map[string]string, len(defaultMessages))
	for k, msg := range defaultMessages {
		messages[k] = msg
	}
	return &Schema{validate: v, messages: messages}, nil
}

// MustSchema is NewSchema for package-level initialisation.
func MustSchema() *Schema {
	s, err := NewSchema()
	if err != nil {
		panic(err)
	}
	return s
}

// Parse validates in and returns the normalized fields. When validation fails
// the returned FieldErrors is non-empty and Fields must be ignored.
func (s *Schema) Parse(in Input) (Fields, FieldErrors) {
	sub := submission{
		CustomerID: strings.TrimSpace(in.CustomerID),
		Amount:     strings.TrimSpace(string(in.Amount)),
		Status:     strings.TrimSpace(in.Status),
	}

	amount, cents, err := parseAmount(sub.Amount)
	if err == nil {
		sub.Cents = cents
	}

	if err := s.validate.Struct(sub); err != nil {
		return Fields{}, s.fieldErrors(err)
	}

	return Fields{
		CustomerID:  sub.CustomerID,
		Amount:      amount,
		AmountCents: sub.Cents,
		Status:      Status(sub.Status),
	}, nil
}

func (s *Schema) fieldErrors(err error) FieldErrors {
	fe := FieldErrors{}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// Only reachable on programmer error (non-struct input).
		fe.Add("_", err.Error())
		return fe
	}
	for _, ve := range verrs {
		field := ve.Field()
		msg, ok := s.messages[field]
		if !ok {
			msg = field + " is invalid"
		}
		// Amount and Cents share a field name; report it once.
		if slices.Contains(fe[field], msg) {
			continue
		}
		fe.Add(field, msg)
	}
	return fe
}

// ToCents converts a decimal amount to minor units, rounding half away from
// zero.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

var (
	errAmountNotNumber   = errors.New("amount is not a number")
	errAmountOutOfRange  = errors.New("amount precision out of range")
	errAmountNotPositive = errors.New("amount must be greater than zero")
	errAmountTooLarge    = errors.New("amount overflows minor units")
)

// parseAmount parses raw once and returns it with its value in cents.
func parseAmount(raw string) (decimal.Decimal, int64, error) {
	if len(raw) > maxAmountLength {
		return decimal.Decimal{}, 0, errAmountOutOfRange
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, 0, errAmountNotNumber
	}
	if exp := d.Exponent(); exp < minExponent || exp > maxExponent {
		return decimal.Decimal{}, 0, errAmountOutOfRange
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, 0, errAmountNotPositive
	}
	cents := d.Mul(hundred).Round(0)
	if cents.GreaterThan(maxCents) {
		return decimal.Decimal{}, 0, errAmountTooLarge
	}
	return d, cents.IntPart(), nil
}
