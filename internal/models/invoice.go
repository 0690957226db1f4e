package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InvoiceStatus represents the status of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
)

// InvoiceStatuses lists every accepted status, in display order.
var InvoiceStatuses = []InvoiceStatus{InvoiceStatusPending, InvoiceStatusPaid}

// Valid reports whether s is one of the known statuses.
func (s InvoiceStatus) Valid() bool {
	return s == InvoiceStatusPending || s == InvoiceStatusPaid
}

// DateLayout is the calendar date format stored in the date column.
const DateLayout = "2006-01-02"

// Invoice is a row of the invoices table.
// Amount is stored in cents. ID and Date are fixed at creation.
type Invoice struct {
	ID         string        `gorm:"primaryKey;size:36" json:"id"`
	CustomerID string        `gorm:"size:36;not null;index" json:"customer_id"`
	Amount     int64         `gorm:"not null" json:"amount"`
	Status     InvoiceStatus `gorm:"size:20;not null" json:"status"`
	Date       time.Time     `gorm:"type:date;not null" json:"date"`

	Customer *Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
}

// TableName pins the table name used by the SQL migrations.
func (Invoice) TableName() string { return "invoices" }

// BeforeCreate assigns a UUID when the row has none.
func (i *Invoice) BeforeCreate(_ *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// DateString returns the issue date as YYYY-MM-DD.
func (i *Invoice) DateString() string {
	return i.Date.Format(DateLayout)
}

// AmountUnits returns the amount in currency units, e.g. 4550 -> 45.50.
func (i *Invoice) AmountUnits() float64 {
	return float64(i.Amount) / 100
}

// IsPaid returns true if the invoice has been paid.
func (i *Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid
}

// CustomerName returns the preloaded customer's name, or the raw id.
func (i *Invoice) CustomerName() string {
	if i.Customer != nil && i.Customer.Name != "" {
		return i.Customer.Name
	}
	return i.CustomerID
}
