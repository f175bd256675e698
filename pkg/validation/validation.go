package validation

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var (
	// IDRegex validates session, room and user identifiers
	IDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

	// KeyRegex validates profession and language keys
	KeyRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_+#.-]*$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json field names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("minute", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		if !ok {
			return false
		}
		return !t.IsZero() && t.Second() == 0 && t.Nanosecond() == 0
	})
	_ = v.RegisterValidation("key", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || KeyRegex.MatchString(s)
	})
	_ = v.RegisterValidation("id", func(fl validator.FieldLevel) bool {
		return IDRegex.MatchString(fl.Field().String())
	})

	return v
}

// Struct validates s using its `validate` tags and flattens the failures
// into one readable error.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s is too long (max %s)", fe.Field(), fe.Param())
	case "minute":
		return fmt.Sprintf("%s must be a UTC timestamp with minute granularity", fe.Field())
	case "key", "id":
		return fmt.Sprintf("%s has an invalid format", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// ValidateID validates an opaque identifier.
func ValidateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s is required", kind)
	}
	if len(id) > 128 {
		return fmt.Errorf("%s is too long (max 128 characters)", kind)
	}
	if !IDRegex.MatchString(id) {
		return fmt.Errorf("invalid %s format", kind)
	}
	return nil
}

// ValidateHTTPSURL validates that raw is an absolute https URL and returns it parsed.
func ValidateHTTPSURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("URL is required")
	}
	if len(raw) > 2048 {
		return nil, fmt.Errorf("URL is too long (max 2048 characters)")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme (must be https)")
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("URL must have a host")
	}
	if u.User != nil {
		return nil, fmt.Errorf("URL must not carry credentials")
	}
	return u, nil
}

// ValidateStringLength checks the rune length of s.
func ValidateStringLength(field, s string, min, max int) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%s contains invalid characters", field)
	}
	n := utf8.RuneCountInString(s)
	if n < min {
		return fmt.Errorf("%s must be at least %d characters", field, min)
	}
	if max > 0 && n > max {
		return fmt.Errorf("%s is too long (max %d characters)", field, max)
	}
	return nil
}

// TruncateRunes cuts s to at most max runes.
func TruncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
