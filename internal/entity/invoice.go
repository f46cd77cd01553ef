package entity

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// DateLayout is the ISO 8601 calendar date format used for invoice dates.
const DateLayout = "2006-01-02"

// Date is a calendar date in DateLayout form.
type Date string

// DateOf returns the calendar date of t in UTC.
func DateOf(t time.Time) Date {
	return Date(t.UTC().Format(DateLayout))
}

// Scan accepts the representations drivers use for DATE columns: text from
// postgres and mysql, and time.Time from sqlite.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = ""
	case string:
		*d = Date(trimDate(v))
	case []byte:
		*d = Date(trimDate(string(v)))
	case time.Time:
		*d = Date(v.Format(DateLayout))
	default:
		return fmt.Errorf("entity: cannot scan %T into Date", src)
	}
	return nil
}

// Value stores the date as text.
func (d Date) Value() (driver.Value, error) {
	return string(d), nil
}

func trimDate(s string) string {
	if len(s) > len(DateLayout) {
		return s[:len(DateLayout)]
	}
	return s
}

// Invoice is a customer invoice. Amount is stored in minor currency units.
type Invoice struct {
	bun.BaseModel `bun:"table:invoices,alias:i"`

	ID         string    `bun:"id,pk" json:"id"`
	CustomerID string    `bun:"customer_id,notnull" json:"customer_id"`
	Amount     int64     `bun:"amount,notnull" json:"amount"`
	Status     string    `bun:"status,notnull" json:"status"`
	Date       Date      `bun:"date,type:date,notnull" json:"date"`
	Customer   *Customer `bun:"rel:belongs-to,join:customer_id=id" json:"customer,omitempty"`
}

// Customer is the party an invoice is billed to.
type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	ID       string `bun:"id,pk" json:"id"`
	Name     string `bun:"name,notnull" json:"name"`
	Email    string `bun:"email,notnull" json:"email"`
	ImageURL string `bun:"image_url" json:"image_url"`
}
