package users

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var minDateOfBirth = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateInput checks a UserInput against the field rules. The date of
// birth must parse and fall between 1900-01-01 and today.
func ValidateInput(v *validator.Validate, input UserInput, now time.Time) (time.Time, error) {
	fields := map[string]string{}

	if err := v.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return time.Time{}, err
		}
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}

	var dob time.Time
	if _, seen := fields["dateOfBirth"]; !seen {
		parsed, err := time.Parse("2006-01-02", input.DateOfBirth)
		switch {
		case err != nil:
			fields["dateOfBirth"] = "must be a date in YYYY-MM-DD format"
		case parsed.Before(minDateOfBirth):
			fields["dateOfBirth"] = "must be on or after 1900-01-01"
		case parsed.After(now):
			fields["dateOfBirth"] = "must not be in the future"
		default:
			dob = parsed
		}
	}

	if len(fields) > 0 {
		return time.Time{}, ValidationError{Fields: fields}
	}
	return dob, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "alpha":
		return "must contain only letters"
	case "email":
		return "must be a valid email address"
	case "numeric":
		return "must contain only digits"
	case "len":
		return "must be exactly " + fe.Param() + " digits"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
