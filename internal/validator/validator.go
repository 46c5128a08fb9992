package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/scienceprep/exam-backend/internal/model"
)

// Phone length bounds once whitespace is removed. The upper bound keeps
// phones within the student_phone columns.
const (
	MinPhoneDigits = 10
	MaxPhoneLength = 20
)

// trans is the singleton English translator for validation errors.
var (
	trans     ut.Translator
	setupOnce sync.Once
)

// Setup registers the validator with English translations and the custom
// phone and prep_level tags on Gin's binding engine. Safe to call more than once.
func Setup() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*govalidator.Validate)
		if !ok {
			return
		}

		// Use JSON tag name for field names in error messages.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation("phone", validatePhone)
		_ = v.RegisterValidation("prep_level", validatePrepLevel)

		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		registerMessage(v, "phone", "{0} must contain 10 to 20 digits")
		registerMessage(v, "prep_level", "{0} must be one of 1st-prep, 2nd-prep, 3rd-prep")
	})
}

func registerMessage(v *govalidator.Validate, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, text, true)
		},
		func(ut ut.Translator, fe govalidator.FieldError) string {
			msg, _ := ut.T(tag, fe.Field())
			return msg
		},
	)
}

// validatePhone accepts digits, an optional leading plus and whitespace.
// After whitespace removal the phone holds at least MinPhoneDigits digits
// and at most MaxPhoneLength characters.
func validatePhone(fl govalidator.FieldLevel) bool {
	compact := strings.Join(strings.Fields(fl.Field().String()), "")
	if len(compact) > MaxPhoneLength {
		return false
	}
	digits := strings.TrimPrefix(compact, "+")
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(digits) >= MinPhoneDigits
}

func validatePrepLevel(fl govalidator.FieldLevel) bool {
	return model.PrepLevel(fl.Field().String()).Valid()
}

// TranslateErrors takes a binding/validation error and returns a map of
// field name → human-readable error message. If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(trans)
		}
		return fields
	}

	// Not a validation error (e.g., JSON syntax error).
	fields["detail"] = err.Error()
	return fields
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
