package services

import (
	"math"
	"strings"

	"github.com/diewo77/invoice-dashboard/internal/models"
	"github.com/diewo77/invoice-dashboard/internal/repository"
	"github.com/diewo77/invoice-dashboard/validation"
	"github.com/shopspring/decimal"
)

// Form field names accepted by create and update.
const (
	FieldCustomerID = "customerId"
	FieldAmount     = "amount"
	FieldStatus     = "status"
)

// InvoiceForm is the schema shared by create and update. Id and date are
// never read from the form.
type InvoiceForm struct {
	CustomerID string `form:"customerId" json:"customerId" validate:"required"`
	Amount     string `form:"amount" json:"amount" validate:"required"`
	Status     string `form:"status" json:"status" validate:"required,oneof=pending paid"`
}

// FormFromValues picks the invoice fields out of a loosely typed mapping.
func FormFromValues(values map[string]string) InvoiceForm {
	return InvoiceForm{
		CustomerID: strings.TrimSpace(values[FieldCustomerID]),
		Amount:     strings.TrimSpace(values[FieldAmount]),
		Status:     strings.TrimSpace(values[FieldStatus]),
	}
}

// Values returns the form as the mapping handlers re-render on error.
func (f InvoiceForm) Values() map[string]string {
	return map[string]string{
		FieldCustomerID: f.CustomerID,
		FieldAmount:     f.Amount,
		FieldStatus:     f.Status,
	}
}

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(math.MaxInt64)
)

// ToCents converts a currency amount such as "45.50" to minor units,
// rounding half away from zero. The second result is a violation code,
// empty on success.
func ToCents(amount string) (int64, string) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, validation.CodeInvalidNumber
	}
	if d.IsNegative() {
		return 0, validation.CodeMustNotBeNegative
	}
	cents := d.Mul(hundred).Round(0)
	if cents.GreaterThan(maxCents) {
		return 0, validation.CodeOutOfRange
	}
	return cents.IntPart(), ""
}

// Parse validates the form and converts it to storable fields.
func (f InvoiceForm) Parse() (repository.InvoiceFields, error) {
	v := make(validation.Violations)
	validation.Required(FieldCustomerID, f.CustomerID, v)
	validation.Struct(f, v)

	var cents int64
	if _, bad := v[FieldAmount]; !bad {
		var code string
		if cents, code = ToCents(f.Amount); code != "" {
			v[FieldAmount] = code
		}
	}
	if err := v.Err(); err != nil {
		return repository.InvoiceFields{}, err
	}
	return repository.InvoiceFields{
		CustomerID: f.CustomerID,
		Amount:     cents,
		Status:     models.InvoiceStatus(f.Status),
	}, nil
}
