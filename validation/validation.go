// Package validation checks loosely typed form input and collects
// per-field violation codes that templates translate through i18n.
package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Violation codes.
const (
	CodeRequired          = "required"
	CodeInvalidNumber     = "invalid_number"
	CodeMustNotBeNegative = "must_not_be_negative"
	CodeOutOfRange        = "out_of_range"
	CodeInvalidChoice     = "invalid_choice"
	CodeInvalid           = "invalid"
)

// Violations maps a form field name to a violation code.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Err returns nil when there are no violations, an *Error otherwise.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return &Error{Violations: v}
}

// Error is returned by operations whose input failed validation.
type Error struct {
	Violations Violations
}

func (e *Error) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f := range e.Violations {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+"="+e.Violations[f])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// AsError unwraps err into a validation *Error.
func AsError(err error) (*Error, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = CodeRequired
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	vd := validator.New(validator.WithRequiredStructEnabled())
	// Report violations under the submitted field name rather than the Go one.
	vd.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return vd
}

// Struct validates s against its `validate` tags and merges any failures
// into v. Fields that already carry a violation keep it.
func Struct(s any, v Violations) {
	err := validate.Struct(s)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v["_"] = CodeInvalid
		return
	}
	for _, fe := range fieldErrs {
		if _, exists := v[fe.Field()]; exists {
			continue
		}
		v[fe.Field()] = codeForTag(fe.Tag())
	}
}

func codeForTag(tag string) string {
	switch tag {
	case "required":
		return CodeRequired
	case "oneof":
		return CodeInvalidChoice
	case "numeric", "number":
		return CodeInvalidNumber
	case "gte", "min":
		return CodeMustNotBeNegative
	case "lte", "max":
		return CodeOutOfRange
	default:
		return CodeInvalid
	}
}
