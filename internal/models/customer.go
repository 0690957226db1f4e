package models

// Customer is owned by another part of the dashboard. Invoices only
// reference it and read it for display.
type Customer struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	Name     string `gorm:"size:255;not null" json:"name"`
	Email    string `gorm:"size:255" json:"email,omitempty"`
	ImageURL string `gorm:"size:255" json:"image_url,omitempty"`
}

// TableName pins the table name used by the SQL migrations.
func (Customer) TableName() string { return "customers" }
