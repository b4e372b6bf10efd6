package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var v *validator.Validate

// pattern is a custom string tag: empty values pass so omitempty/required decide.
type pattern struct {
	re  *regexp.Regexp
	msg string
}

var patterns = map[string]pattern{
	// optional leading +, 7 to 20 digits, spaces and dashes allowed
	"phone": {regexp.MustCompile(`^\+?[0-9][0-9 \-]{5,18}[0-9]$`), "Invalid phone number"},
	// 24h wall clock
	"hhmm": {regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`), "Invalid time (use HH:MM)"},
	"slug": {regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`), "Invalid slug (lowercase letters, digits and dashes)"},
}

// Fixed messages for tags whose wording does not depend on the parameter.
var fixed = map[string]string{
	"required": "This field is required",
	"email":    "Invalid email format",
	"url":      "Invalid URL",
	"oneof":    "Value is not allowed",
	"uuid":     "Invalid UUID format",
	"uuid4":    "Invalid UUID format",
	"datetime": "Invalid date (use YYYY-MM-DD)",
}

func init() {
	v = validator.New()

	// Error keys use the JSON name, not the Go field name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	for tag, p := range patterns {
		re := p.re
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			val := strings.TrimSpace(fl.Field().String())
			return val == "" || re.MatchString(val)
		})
	}
}

func message(e validator.FieldError) string {
	if m, ok := fixed[e.Tag()]; ok {
		return m
	}
	if p, ok := patterns[e.Tag()]; ok {
		return p.msg
	}
	unit := ""
	if e.Kind() == reflect.String {
		unit = " characters"
	}
	switch e.Tag() {
	case "min":
		return fmt.Sprintf("Must be at least %s%s", e.Param(), unit)
	case "max":
		return fmt.Sprintf("Must be at most %s%s", e.Param(), unit)
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", e.Param())
	case "lte":
		return fmt.Sprintf("Must be less than or equal to %s", e.Param())
	case "gtfield":
		return fmt.Sprintf("Must be after %s", strings.ToLower(e.Param()))
	}
	return e.Error()
}

// Validate returns field errors keyed by JSON name, nil when s is valid.
// The error is non-nil only when s cannot be validated at all.
func Validate(s any) (map[string][]string, error) {
	err := v.Struct(s)
	if err == nil {
		return nil, nil
	}
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil, err
	}
	out := make(map[string][]string, len(ve))
	for _, e := range ve {
		out[e.Field()] = append(out[e.Field()], message(e))
	}
	return out, nil
}

// Field builds a single-field error map, for checks that need the database.
func Field(name, msg string) map[string][]string {
	return map[string][]string{name: {msg}}
}
