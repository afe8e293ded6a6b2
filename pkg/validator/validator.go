package validator

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/vedran77/relay/internal/domain"
)

// ValidationErrors maps a json field name to a human readable message.
type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("participant", func(fl validator.FieldLevel) bool {
		_, err := domain.NewParticipantID(fl.Field().String())
		return err == nil
	})
	return v
}

// Struct checks the validate tags of s. Failures come back as ValidationErrors.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	errs := make(ValidationErrors)
	for _, fe := range fieldErrs {
		errs.Add(fieldName(fe), message(fe))
	}
	return errs
}

// fieldName keeps the slice index of dive errors, e.g. member_ids[2].
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "participant":
		return "must be 1-64 letters, digits, '.', '@' or '-'"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "uuid", "uuid4":
		return "must be a valid id"
	default:
		return "is invalid"
	}
}

// ValidateBody checks a message body after trimming.
func ValidateBody(body string) ValidationErrors {
	errs := make(ValidationErrors)
	body = strings.TrimSpace(body)
	if body == "" {
		errs.Add("body", "Message body is required")
	} else if utf8.RuneCountInString(body) > domain.MaxBodyLength {
		errs.Add("body", fmt.Sprintf("Message body must be at most %d characters", domain.MaxBodyLength))
	}
	return errs
}

func ValidateGroup(name string, members []domain.ParticipantID) ValidationErrors {
	errs := make(ValidationErrors)

	name = strings.TrimSpace(name)
	if name == "" {
		errs.Add("name", "Group name is required")
	} else if utf8.RuneCountInString(name) > domain.MaxGroupNameLength {
		errs.Add("name", fmt.Sprintf("Group name must be at most %d characters", domain.MaxGroupNameLength))
	}

	if len(members) == 0 {
		errs.Add("member_ids", "At least one member is required")
	}
	return errs
}

// ValidateLimit checks a page size.
func ValidateLimit(limit, max int) ValidationErrors {
	errs := make(ValidationErrors)
	if limit < 1 || limit > max {
		errs.Add("limit", fmt.Sprintf("Limit must be between 1 and %d", max))
	}
	return errs
}
