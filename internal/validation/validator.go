// Package validation checks user input before it is sent to the backend.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/wolfeidau/classdesk/internal/models"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid input")

// custom validation tags
const (
	notBlankTag = "notblank"
	roleTag     = "role"
	mobileTag   = "mobile"
)

var mobilePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

var (
	initOnce   sync.Once
	validate   *validator.Validate
	translator ut.Translator
)

func instance() (*validator.Validate, ut.Translator) {
	initOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// english error messages for validation errors
		_en := en.New()
		uni := ut.New(_en, _en)
		translator, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(validate, translator)

		// report JSON names instead of Go field names
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
		_ = validate.RegisterValidation(roleTag, roleValidation)
		_ = validate.RegisterValidation(mobileTag, mobileValidation)

		registerCustomTranslation(notBlankTag, "{0} cannot be blank")
		registerCustomTranslation(roleTag, "{0} must be one of admin, teacher or student")
		registerCustomTranslation(mobileTag, "{0} must be a valid mobile number")
	})
	return validate, translator
}

func registerCustomTranslation(tag, text string) {
	_ = validate.RegisterTranslation(tag, translator,
		func(t ut.Translator) error {
			return t.Add(tag, text, true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, err := t.T(tag, fe.Field())
			if err != nil {
				return fe.Error()
			}
			return msg
		},
	)
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

func roleValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return models.Role(str).Valid()
	}
	return false
}

func mobileValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return mobilePattern.MatchString(strings.TrimSpace(str))
	}
	return false
}

// ValidationError carries the translated message for each failing field, keyed by JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, e.Fields[name])
	}
	return fmt.Sprintf("%s: %s", ErrInvalid, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

// Struct validates v using its validate tags.
func Struct(v any) error {
	val, trans := instance()

	err := val.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Translate(trans)
	}
	return &ValidationError{Fields: fields}
}

// Result is the outcome of validating a single form value.
type Result struct {
	Valid bool
	Error string
}

func ok() Result { return Result{Valid: true} }

func invalid(msg string) Result { return Result{Error: msg} }

func checkVar(value, tag string) bool {
	val, _ := instance()
	return val.Var(value, tag) == nil
}
