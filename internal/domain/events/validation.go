package events

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// placenameRE matches city, state and country names: letters plus the
// punctuation that legitimately appears in them (St. John's, Baie-Comeau).
var placenameRE = regexp.MustCompile(`^[a-zA-Z ,.'-]+$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("placename", func(fl validator.FieldLevel) bool {
		return placenameRE.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// ValidateInput checks an EventInput against the field rules plus the
// cross-field invariants: the event date must parse and not lie in the
// past, and booked seats can never exceed total seats.
func ValidateInput(v *validator.Validate, input EventInput, now time.Time) (time.Time, error) {
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

	var eventDate time.Time
	if _, seen := fields["eventDate"]; !seen {
		parsed, err := time.Parse("2006-01-02", input.EventDate)
		if err != nil {
			fields["eventDate"] = "must be a date in YYYY-MM-DD format"
		} else if parsed.Before(now.Truncate(24 * time.Hour)) {
			fields["eventDate"] = "must not be in the past"
		} else {
			eventDate = parsed
		}
	}

	if input.BookedSeats > input.TotalSeats {
		fields["bookedSeats"] = "must not exceed totalSeats"
	}

	if len(fields) > 0 {
		return time.Time{}, ValidationError{Fields: fields}
	}
	return eventDate, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must have at least " + fe.Param() + " entries"
		}
		return "must be at least " + fe.Param() + " characters"
	case "max":
		if fe.Kind() == reflect.Slice {
			return "must have at most " + fe.Param() + " entries"
		}
		return "must be at most " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "placename":
		return "contains invalid characters"
	default:
		return "is invalid"
	}
}
