// Package validation configures the shared struct validator with Spanish messages.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/locales/es"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	es_translations "github.com/go-playground/validator/v10/translations/es"
)

const clockTag = "clock"

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Validator bundles the validator instance with its translator.
type Validator struct {
	*validator.Validate
	translator ut.Translator
}

// New returns a validator that reports field names using JSON tags and
// translates messages to Spanish.
func New() *Validator {
	validate := validator.New()

	locale := es.New()
	uni := ut.New(locale, locale)
	translator, _ := uni.GetTranslator("es")
	_ = es_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(clockTag, func(fl validator.FieldLevel) bool {
		return clockPattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterTranslation(clockTag, translator, func(ut.Translator) error { return nil },
		func(_ ut.Translator, fe validator.FieldError) string {
			return fe.Field() + " debe tener el formato HH:MM"
		})

	return &Validator{Validate: validate, translator: translator}
}

// Messages flattens validation errors into a field -> message map.
func (v *Validator) Messages(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Translate(v.translator)
	}
	return out
}

// Describe renders validation errors as a single sentence for the response envelope.
func (v *Validator) Describe(err error) string {
	messages := v.Messages(err)
	if len(messages) == 0 {
		return ""
	}
	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		parts = append(parts, msg)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
